package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Domain-specific error types
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicateEntry indicates a unique constraint violation
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrMessageNotFound indicates the message was not found
	ErrMessageNotFound = errors.New("message not found")

	// ErrDraftNotFound indicates the draft was not found
	ErrDraftNotFound = errors.New("draft not found")

	// ErrRuleNotFound indicates the rule was not found
	ErrRuleNotFound = errors.New("rule not found")

	// ErrJobNotFound indicates the batch job was not found
	ErrJobNotFound = errors.New("batch job not found")

	// ErrInvalidState indicates a draft or job is not in the status an operation requires
	ErrInvalidState = errors.New("invalid state transition")

	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates forbidden access
	ErrForbidden = errors.New("forbidden")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal server error")

	// Upstream errors
	// ErrUpstreamUnavailable indicates the mailbox provider or model is unreachable
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrSendFailure indicates the mailbox provider rejected or failed a send
	ErrSendFailure = errors.New("send failed")

	// ErrCursorInvalid indicates the incremental sync cursor expired
	ErrCursorInvalid = errors.New("sync cursor invalid")

	// ErrAuthRevoked indicates the mailbox authorization is no longer valid
	ErrAuthRevoked = errors.New("mailbox authorization revoked")

	// ErrRateLimited indicates the provider throttled the request
	ErrRateLimited = errors.New("rate limited")

	// ErrModelUnavailable indicates the language model could not be reached
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrModelTimeout indicates the language model did not answer in time
	ErrModelTimeout = errors.New("model timeout")
)

// Error codes for API responses
const (
	CodeNotFound            = "NOT_FOUND"
	CodeDuplicateEntry      = "DUPLICATE_ENTRY"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidState        = "INVALID_STATE"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeInternalError       = "INTERNAL_ERROR"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeSendFailure         = "SEND_FAILED"
	CodeMailboxRevoked      = "MAILBOX_REVOKED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeModelTimeout        = "MODEL_TIMEOUT"
)

// AppError represents an application error with context
type AppError struct {
	Err     error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field problem found in a request so callers
// can report them together.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

// NewValidationError creates a ValidationError with a single field problem
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field problem
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field problem was recorded
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns the error only when it carries field problems
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrDraftNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrJobNotFound)
}

// IsDuplicateEntry checks if the error is a duplicate entry error
func IsDuplicateEntry(err error) bool {
	return errors.Is(err, ErrDuplicateEntry)
}

// IsInvalidInput checks if the error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsValidation checks if the error carries field-level validation problems
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationError extracts ValidationError from an error if it exists
func GetValidationError(err error) *ValidationError {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}

// IsRetryable reports whether the failure is transient and the trigger may retry later
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrModelUnavailable) ||
		errors.Is(err, ErrModelTimeout)
}

// GetErrorCode returns the appropriate error code for an error
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}

	switch {
	case IsNotFound(err):
		return CodeNotFound
	case IsDuplicateEntry(err):
		return CodeDuplicateEntry
	case IsValidation(err):
		return CodeValidation
	case IsInvalidInput(err):
		return CodeInvalidInput
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrAuthRevoked):
		return CodeMailboxRevoked
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrModelTimeout):
		return CodeModelTimeout
	case errors.Is(err, ErrSendFailure):
		return CodeSendFailure
	case errors.Is(err, ErrUpstreamUnavailable), errors.Is(err, ErrModelUnavailable):
		return CodeUpstreamUnavailable
	default:
		return CodeInternalError
	}
}
