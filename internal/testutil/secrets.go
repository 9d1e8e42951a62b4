package testutil

import (
	"github.com/welldanyogia/mailpilot-backend/internal/secrets"
)

// TestTokenKey is the token encryption key used across package tests
const TestTokenKey = "test-token-key-0123456789abcdefgh"

// NewTokenCipher returns a cipher keyed with TestTokenKey
func NewTokenCipher() *secrets.Cipher {
	c, err := secrets.NewCipher(TestTokenKey)
	if err != nil {
		panic(err)
	}
	return c
}
