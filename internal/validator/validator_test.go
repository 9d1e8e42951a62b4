package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr error
	}{
		// Valid emails
		{"valid simple email", "test@example.com", nil},
		{"valid with subdomain", "user@mail.example.com", nil},
		{"valid with plus", "user+tag@example.com", nil},
		{"valid with dots", "first.last@example.com", nil},
		{"valid uppercase normalized", "TEST@EXAMPLE.COM", nil},
		{"valid with whitespace trimmed", "  test@example.com  ", nil},

		// Invalid emails
		{"empty string", "", ErrEmptyInput},
		{"whitespace only", "   ", ErrEmptyInput},
		{"missing @", "testexample.com", ErrInvalidEmail},
		{"missing domain", "test@", ErrInvalidEmail},
		{"missing local part", "@example.com", ErrInvalidEmail},
		{"double @", "test@@example.com", ErrInvalidEmail},
		{"invalid chars", "test<>@example.com", ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail_TooLong(t *testing.T) {
	// Create email longer than 254 characters
	// Need to ensure total length > 254
	longLocal := strings.Repeat("a", 250)
	longEmail := longLocal + "@example.com" // Total: 250 + 12 = 262 chars
	err := ValidateEmail(longEmail)
	assert.ErrorIs(t, err, ErrInputTooLong)
}

func TestValidateEmail_NamedAddress(t *testing.T) {
	assert.NoError(t, ValidateEmail("Alice Smith <alice@example.com>"))
}

func TestValidateRecipients(t *testing.T) {
	tests := []struct {
		name       string
		recipients []string
		wantErr    error
	}{
		{"single valid", []string{"a@example.com"}, nil},
		{"several valid", []string{"a@example.com", "Bob <b@example.com>"}, nil},
		{"empty list", nil, ErrEmptyInput},
		{"one invalid", []string{"a@example.com", "nope"}, ErrInvalidEmail},
		{"blank entry", []string{" "}, ErrEmptyInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecipients(tt.recipients)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateIDList(t *testing.T) {
	many := make([]uint, 21)
	for i := range many {
		many[i] = uint(i + 1)
	}

	tests := []struct {
		name    string
		ids     []uint
		wantErr error
	}{
		{"one id", []uint{7}, nil},
		{"at max", many[:20], nil},
		{"empty", []uint{}, ErrEmptyInput},
		{"over max", many, ErrTooManyItems},
		{"duplicate", []uint{1, 2, 1}, ErrDuplicateItem},
		{"zero id", []uint{0}, ErrInvalidIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIDList(tt.ids, 20)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeMultiline(t *testing.T) {
	assert.Equal(t, "Hi Bob,\n\n\tThanks", SanitizeMultiline("  Hi Bob,\n\n\tThanks\x00 ", 0))
	assert.Equal(t, "Hi", SanitizeMultiline("Hi Bob", 2))
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxLength int
		expected  string
	}{
		{"normal string", "hello world", 0, "hello world"},
		{"with control chars", "hello\x00world", 0, "helloworld"},
		{"with tab", "hello\tworld", 0, "helloworld"},
		{"with newline", "hello\nworld", 0, "helloworld"},
		{"trim whitespace", "  hello  ", 0, "hello"},
		{"enforce max length", "hello world", 5, "hello"},
		{"max length zero means no limit", "hello world", 0, "hello world"},
		{"empty string", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeString(tt.input, tt.maxLength)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestValidatePagination(t *testing.T) {
	tests := []struct {
		name           string
		inputLimit     int
		inputOffset    int
		expectedLimit  int
		expectedOffset int
	}{
		{"valid values", 10, 20, 10, 20},
		{"zero limit uses default", 0, 0, DefaultLimit, 0},
		{"negative limit uses default", -5, 0, DefaultLimit, 0},
		{"limit exceeds max", 200, 0, MaxLimit, 0},
		{"negative offset becomes zero", 10, -5, 10, 0},
		{"all defaults", 0, -1, DefaultLimit, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := ValidatePagination(tt.inputLimit, tt.inputOffset)
			assert.Equal(t, tt.expectedLimit, limit)
			assert.Equal(t, tt.expectedOffset, offset)
		})
	}
}
