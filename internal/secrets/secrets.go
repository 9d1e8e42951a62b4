// Package secrets seals values stored at rest with AES-256-GCM.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks a sealed value and its format version
const sealedPrefix = "v1:"

var (
	// ErrMissingKey is returned when no key material is configured
	ErrMissingKey = errors.New("encryption key is empty")
	// ErrDecrypt is returned for values that were not sealed with this key
	ErrDecrypt = errors.New("failed to decrypt value")
)

// Cipher seals and opens short secrets such as OAuth tokens
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a 256-bit AES key from the configured secret
func NewCipher(secret string) (*Cipher, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingKey
	}
	key := sha256.Sum256([]byte(secret))

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Cipher{aead: gcm}, nil
}

// Seal encrypts plaintext with a fresh nonce. The result is printable.
func (c *Cipher) Seal(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to read nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal
func (c *Cipher) Open(value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, sealedPrefix)
	if !ok {
		return "", ErrDecrypt
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecrypt
	}

	n := c.aead.NonceSize()
	if len(data) < n {
		return "", ErrDecrypt
	}
	plaintext, err := c.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
