package seal

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
)

// zeroIV is the fixed initialization vector used by the legacy cipher.
var zeroIV = make([]byte, aes.BlockSize)

// Encrypt encrypts plaintext with AES-256-CBC, a zero IV and PKCS7 padding.
// Empty plaintext is valid and yields a single padding block.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKeyLength
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, zeroIV).CryptBlocks(out, padded)
	return out, nil
}

// Decrypt reverses Encrypt.
//
// Decrypting with the wrong key returns ErrIntegrity when the recovered
// padding is malformed. When the garbage happens to end in valid padding,
// the garbage is returned without an error; CBC carries no authentication.
func Decrypt(key, ciphertext []byte) ([]byte, error) {
	if len(key) != KeyLen {
		return nil, ErrInvalidKeyLength
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrInvalidCiphertext
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, ErrInvalidKeyLength
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, zeroIV).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrIntegrity
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrIntegrity
		}
	}
	return data[:len(data)-n], nil
}
