// Package seal turns an owner address into a symmetric key and encrypts
// file content with it.
//
// Two modes are provided. Legacy derives the key from the address alone and
// uses AES-256-CBC with an all-zero IV, so the same owner and plaintext
// always produce the same ciphertext (and therefore the same CID). Sealed
// mixes a deployment secret into the key with HKDF and uses AES-256-GCM
// with a random nonce per file.
package seal

import (
	"crypto/sha256"
	"fmt"
	"io"

	bsvhash "github.com/bsv-blockchain/go-sdk/primitives/hash"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeyLen is the length of the derived AES-256 key in bytes.
	KeyLen = 32

	// HKDFInfo is the info string for sealed-mode key derivation.
	HKDFInfo = "filevault sealed v1"
)

// DeriveKey returns SHA256(address) as a 32-byte key.
// The result depends only on the address string.
func DeriveKey(address string) ([]byte, error) {
	if address == "" {
		return nil, ErrEmptyAddress
	}
	return bsvhash.Sha256([]byte(address)), nil
}

// DeriveSealedKey derives a 32-byte key with HKDF-SHA256 using the secret as
// input keying material and the address as salt.
func DeriveSealedKey(secret []byte, address string) ([]byte, error) {
	if address == "" {
		return nil, ErrEmptyAddress
	}
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	reader := hkdf.New(sha256.New, secret, []byte(address), []byte(HKDFInfo))
	key := make([]byte, KeyLen)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHKDFFailure, err)
	}
	return key, nil
}
