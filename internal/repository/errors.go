package repository

import (
	"errors"
	"strings"
)

// Common repository errors
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrInvalidInput   = errors.New("invalid input")
	// ErrStaleState is returned when a conditional status update finds the
	// row in a different status than expected.
	ErrStaleState = errors.New("record is not in the expected state")
)

// isDuplicateKeyError checks if the error is a duplicate key violation
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "UNIQUE constraint") ||
		strings.Contains(errStr, "23505") // PostgreSQL unique violation code
}
