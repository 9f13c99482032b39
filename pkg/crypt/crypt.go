// Package crypt encrypts per-user Gemini API keys at rest with AES-256-CBC.
// Ciphertext is encoded "ivhex:cipherhex"; the cipher key is derived from a
// server-held secret with scrypt.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const minSecretLength = 32

var (
	// ErrInvalidCiphertext indicates a payload that is not "ivhex:cipherhex"
	// or fails padding checks after decryption.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// Cipher performs symmetric encryption with a derived 32-byte key.
type Cipher struct {
	key []byte
}

// New derives the AES key from the configured secret.
func New(secret string) (*Cipher, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("encryption secret must be at least %d bytes", minSecretLength)
	}
	key, err := scrypt.Key([]byte(secret), []byte("salt"), 1<<15, 8, 1, 32)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &Cipher{key: key}, nil
}

// Encrypt returns "ivhex:cipherhex" for the plaintext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("plaintext is empty")
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. A wrong key or mangled payload returns
// ErrInvalidCiphertext rather than garbage.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	parts := strings.SplitN(encoded, ":", 2)
	if len(parts) != 2 {
		return "", ErrInvalidCiphertext
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", ErrInvalidCiphertext
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", ErrInvalidCiphertext
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	plain, err := unpad(out)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}

func pad(data []byte) []byte {
	n := aes.BlockSize - len(data)%aes.BlockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidCiphertext
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, ErrInvalidCiphertext
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidCiphertext
		}
	}
	return data[:len(data)-n], nil
}
