package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAppError_CreatesErrorWithCorrectFields(t *testing.T) {
	baseErr := errors.New("base error")
	appErr := NewAppError(baseErr, "custom message", CodeNotFound)

	assert.Equal(t, baseErr, appErr.Err)
	assert.Equal(t, "custom message", appErr.Message)
	assert.Equal(t, CodeNotFound, appErr.Code)
}

func TestAppError_Error_ReturnsMessage(t *testing.T) {
	baseErr := errors.New("base error")
	appErr := NewAppError(baseErr, "custom message", CodeNotFound)

	assert.Equal(t, "custom message", appErr.Error())
}

func TestAppError_Error_ReturnsBaseErrorWhenNoMessage(t *testing.T) {
	baseErr := errors.New("base error")
	appErr := NewAppError(baseErr, "", CodeNotFound)

	assert.Equal(t, "base error", appErr.Error())
}

func TestAppError_Unwrap_ReturnsWrappedError(t *testing.T) {
	baseErr := errors.New("base error")
	appErr := NewAppError(baseErr, "custom message", CodeNotFound)

	unwrapped := appErr.Unwrap()
	assert.Equal(t, baseErr, unwrapped)
}

func TestWrap_WrapsErrorWithContext(t *testing.T) {
	baseErr := errors.New("base error")
	wrapped := Wrap(baseErr, "context")

	assert.Contains(t, wrapped.Error(), "context")
	assert.Contains(t, wrapped.Error(), "base error")
}

func TestWrap_ReturnsNilForNilError(t *testing.T) {
	wrapped := Wrap(nil, "context")
	assert.Nil(t, wrapped)
}

func TestIsNotFound_ReturnsTrueForNotFoundErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"ErrNotFound", ErrNotFound, true},
		{"ErrMessageNotFound", ErrMessageNotFound, true},
		{"ErrDraftNotFound", ErrDraftNotFound, true},
		{"ErrRuleNotFound", ErrRuleNotFound, true},
		{"ErrJobNotFound", ErrJobNotFound, true},
		{"wrapped ErrNotFound", Wrap(ErrNotFound, "context"), true},
		{"other error", errors.New("other"), false},
		{"ErrDuplicateEntry", ErrDuplicateEntry, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsNotFound(tt.err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestIsDuplicateEntry_ReturnsTrueForDuplicateErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"ErrDuplicateEntry", ErrDuplicateEntry, true},
		{"wrapped ErrDuplicateEntry", Wrap(ErrDuplicateEntry, "context"), true},
		{"other error", errors.New("other"), false},
		{"ErrNotFound", ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsDuplicateEntry(tt.err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestIsInvalidInput_ReturnsTrueForInvalidInputErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"ErrInvalidInput", ErrInvalidInput, true},
		{"wrapped ErrInvalidInput", Wrap(ErrInvalidInput, "context"), true},
		{"other error", errors.New("other"), false},
		{"ErrNotFound", ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsInvalidInput(tt.err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestValidationError_CollectsFields(t *testing.T) {
	ve := &ValidationError{}
	assert.False(t, ve.HasErrors())
	assert.Nil(t, ve.OrNil())

	ve.Add("message_ids", "must not be empty")
	ve.Add("conditions", "unknown field")

	assert.True(t, ve.HasErrors())
	assert.Len(t, ve.Fields, 2)
	assert.Contains(t, ve.Error(), "message_ids: must not be empty")
	assert.Contains(t, ve.Error(), "conditions: unknown field")
}

func TestValidationError_MatchesInvalidInput(t *testing.T) {
	err := Wrap(NewValidationError("name", "required"), "create rule")

	assert.True(t, IsValidation(err))
	assert.True(t, IsInvalidInput(err))
	assert.Equal(t, "name", GetValidationError(err).Fields[0].Field)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"upstream unavailable", ErrUpstreamUnavailable, true},
		{"rate limited", Wrap(ErrRateLimited, "sync"), true},
		{"model timeout", ErrModelTimeout, true},
		{"model unavailable", ErrModelUnavailable, true},
		{"auth revoked", ErrAuthRevoked, false},
		{"validation", NewValidationError("x", "y"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestGetErrorCode_ReturnsCorrectCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrNotFound", ErrNotFound, CodeNotFound},
		{"ErrMessageNotFound", ErrMessageNotFound, CodeNotFound},
		{"ErrDraftNotFound", ErrDraftNotFound, CodeNotFound},
		{"ErrDuplicateEntry", ErrDuplicateEntry, CodeDuplicateEntry},
		{"ErrInvalidInput", ErrInvalidInput, CodeInvalidInput},
		{"ValidationError", NewValidationError("a", "b"), CodeValidation},
		{"ErrInvalidState", ErrInvalidState, CodeInvalidState},
		{"ErrAuthRevoked", ErrAuthRevoked, CodeMailboxRevoked},
		{"ErrRateLimited", ErrRateLimited, CodeRateLimited},
		{"ErrSendFailure", ErrSendFailure, CodeSendFailure},
		{"ErrModelUnavailable", ErrModelUnavailable, CodeUpstreamUnavailable},
		{"ErrModelTimeout", ErrModelTimeout, CodeModelTimeout},
		{"AppError code wins", NewAppError(errors.New("x"), "msg", CodeForbidden), CodeForbidden},
		{"ErrUnauthorized", ErrUnauthorized, CodeUnauthorized},
		{"ErrForbidden", ErrForbidden, CodeForbidden},
		{"unknown error", errors.New("unknown"), CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GetErrorCode(tt.err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestErrorCodes_AreCorrectValues(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", CodeNotFound)
	assert.Equal(t, "DUPLICATE_ENTRY", CodeDuplicateEntry)
	assert.Equal(t, "INVALID_INPUT", CodeInvalidInput)
	assert.Equal(t, "VALIDATION_ERROR", CodeValidation)
	assert.Equal(t, "MAILBOX_REVOKED", CodeMailboxRevoked)
	assert.Equal(t, "UNAUTHORIZED", CodeUnauthorized)
	assert.Equal(t, "FORBIDDEN", CodeForbidden)
	assert.Equal(t, "INTERNAL_ERROR", CodeInternalError)
}

func TestAppError_ImplementsErrorInterface(t *testing.T) {
	var err error = NewAppError(ErrNotFound, "test", CodeNotFound)
	assert.NotNil(t, err)
	assert.Equal(t, "test", err.Error())
}

func TestAppError_CanBeUnwrappedWithErrorsIs(t *testing.T) {
	appErr := NewAppError(ErrNotFound, "test", CodeNotFound)

	// errors.Is should work through Unwrap
	assert.True(t, errors.Is(appErr, ErrNotFound))
}
