package seal

import "errors"

var (
	// ErrEmptyAddress indicates an empty owner address was given to the key deriver.
	ErrEmptyAddress = errors.New("seal: address is empty")

	// ErrInvalidKeyLength indicates the key is not a 32-byte AES-256 key.
	ErrInvalidKeyLength = errors.New("seal: key must be 32 bytes")

	// ErrInvalidCiphertext indicates the ciphertext is empty, truncated or not block aligned.
	ErrInvalidCiphertext = errors.New("seal: invalid ciphertext")

	// ErrIntegrity indicates decryption produced invalid output (bad padding or failed authentication).
	ErrIntegrity = errors.New("seal: integrity check failed")

	// ErrEmptySecret indicates the sealed cipher was configured without a secret.
	ErrEmptySecret = errors.New("seal: secret is empty")

	// ErrHKDFFailure indicates HKDF key derivation failed.
	ErrHKDFFailure = errors.New("seal: HKDF key derivation failed")
)
