package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const (
	// NonceLen is the length of the AES-GCM nonce in bytes.
	NonceLen = 12

	// GCMTagLen is the length of the GCM authentication tag in bytes.
	GCMTagLen = 16

	// SealedVersion prefixes every sealed ciphertext.
	SealedVersion byte = 0x01

	// MinSealedLen is version + nonce + tag.
	MinSealedLen = 1 + NonceLen + GCMTagLen
)

// Cipher encrypts and decrypts file content on behalf of an owner address.
type Cipher interface {
	Encrypt(address string, plaintext []byte) ([]byte, error)
	Decrypt(address string, ciphertext []byte) ([]byte, error)
}

var (
	_ Cipher = Legacy{}
	_ Cipher = Sealed{}
)

// Legacy is the address-keyed zero-IV AES-256-CBC cipher.
// Identical plaintexts for the same owner encrypt to identical ciphertexts.
type Legacy struct{}

func (Legacy) Encrypt(address string, plaintext []byte) ([]byte, error) {
	key, err := DeriveKey(address)
	if err != nil {
		return nil, err
	}
	return Encrypt(key, plaintext)
}

func (Legacy) Decrypt(address string, ciphertext []byte) ([]byte, error) {
	key, err := DeriveKey(address)
	if err != nil {
		return nil, err
	}
	return Decrypt(key, ciphertext)
}

// Sealed encrypts with AES-256-GCM under HKDF(Secret, address) and a random
// nonce per call.
//
// Output format: version(1B) || nonce(12B) || ciphertext || tag(16B).
//
// Because the nonce is random, re-uploading the same file yields a new CID.
type Sealed struct {
	Secret []byte
}

func (s Sealed) Encrypt(address string, plaintext []byte) ([]byte, error) {
	gcm, err := s.aead(address)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("seal: failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, 1+NonceLen+len(plaintext)+GCMTagLen)
	out = append(out, SealedVersion)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, []byte(address)), nil
}

func (s Sealed) Decrypt(address string, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < MinSealedLen || ciphertext[0] != SealedVersion {
		return nil, ErrInvalidCiphertext
	}
	gcm, err := s.aead(address)
	if err != nil {
		return nil, err
	}

	nonce := ciphertext[1 : 1+NonceLen]
	plaintext, err := gcm.Open(nil, nonce, ciphertext[1+NonceLen:], []byte(address))
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

func (s Sealed) aead(address string) (cipher.AEAD, error) {
	key, err := DeriveSealedKey(s.Secret, address)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("seal: AES cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("seal: GCM creation failed: %w", err)
	}
	return gcm, nil
}
