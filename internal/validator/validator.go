// Package validator provides input validation and sanitization functions
// for the mailpilot API layer.
package validator

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Validation errors
var (
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrInputTooLong    = errors.New("input exceeds maximum length")
	ErrEmptyInput      = errors.New("input cannot be empty")
	ErrTooManyItems    = errors.New("too many items")
	ErrDuplicateItem   = errors.New("duplicate item")
	ErrInvalidIdentity = errors.New("identifier must be positive")
)

// ValidateEmail validates email address format according to RFC 5322.
// Accepts either a bare address or a "Name <addr>" form.
// Returns nil if valid, or an appropriate error.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	if email == "" {
		return ErrEmptyInput
	}

	// RFC 5321 specifies max email length of 254 characters
	if utf8.RuneCountInString(email) > 254 {
		return ErrInputTooLong
	}

	// Use Go's mail package for RFC 5322 validation
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}

	return nil
}

// ValidateRecipients validates every address in a recipient list.
// The list must not be empty.
func ValidateRecipients(recipients []string) error {
	if len(recipients) == 0 {
		return ErrEmptyInput
	}
	for _, r := range recipients {
		if err := ValidateEmail(r); err != nil {
			return err
		}
	}
	return nil
}

// ValidateIDList checks a list of identifiers is non-empty, within max and free of duplicates.
func ValidateIDList(ids []uint, max int) error {
	if len(ids) == 0 {
		return ErrEmptyInput
	}
	if len(ids) > max {
		return ErrTooManyItems
	}
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			return ErrInvalidIdentity
		}
		if _, dup := seen[id]; dup {
			return ErrDuplicateItem
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Pagination constants
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ValidatePagination validates and sanitizes pagination parameters.
// Returns sanitized limit and offset values.
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// SanitizeString removes potentially dangerous characters and enforces length limits.
// Removes control characters and trims whitespace.
func SanitizeString(input string, maxLength int) string {
	// Remove control characters (ASCII 0-31 and 127)
	input = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, input)

	// Trim whitespace
	input = strings.TrimSpace(input)

	// Enforce maximum length if specified
	if maxLength > 0 && utf8.RuneCountInString(input) > maxLength {
		runes := []rune(input)
		input = string(runes[:maxLength])
	}

	return input
}

// SanitizeMultiline is SanitizeString for free text such as draft bodies and
// prompts: newlines and tabs survive, other control characters do not.
func SanitizeMultiline(input string, maxLength int) string {
	input = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, input)

	input = strings.TrimSpace(input)

	if maxLength > 0 && utf8.RuneCountInString(input) > maxLength {
		runes := []rune(input)
		input = string(runes[:maxLength])
	}

	return input
}
