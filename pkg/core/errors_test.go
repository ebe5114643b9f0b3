package core

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:    ErrInvalidRequest,
		Message: "thematic group out of range",
	}
	require.Equal(t, "invalid_request_error: thematic group out of range", err.Error())
}

func TestError_WithCode(t *testing.T) {
	err := &Error{
		Type:    ErrRateLimit,
		Message: "too many requests",
		Code:    "rate_limit_exceeded",
	}
	require.Equal(t, "rate_limit_error: too many requests (code: rate_limit_exceeded)", err.Error())
}

func TestNewRateLimitError(t *testing.T) {
	err := NewRateLimitError("rate limit exceeded", 60)
	require.Equal(t, ErrRateLimit, err.Type)
	require.NotNil(t, err.RetryAfter)
	require.Equal(t, 60, *err.RetryAfter)
}

func TestNewInvalidRequestErrorWithParam(t *testing.T) {
	err := NewInvalidRequestErrorWithParam("required", "sessionId")
	require.Equal(t, ErrInvalidRequest, err.Type)
	require.Equal(t, "sessionId", err.Param)
}

func TestError_IsRetryable(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{ErrInvalidRequest, false},
		{ErrAuthentication, false},
		{ErrPermission, false},
		{ErrNotFound, false},
		{ErrRateLimit, true},
		{ErrAPI, true},
		{ErrOverloaded, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			err := &Error{Type: tt.errType}
			require.Equal(t, tt.retryable, err.IsRetryable())
		})
	}
}

func TestErrorTypeForStatus(t *testing.T) {
	require.Equal(t, ErrInvalidRequest, ErrorTypeForStatus(http.StatusBadRequest))
	require.Equal(t, ErrInvalidRequest, ErrorTypeForStatus(http.StatusUnprocessableEntity))
	require.Equal(t, ErrAuthentication, ErrorTypeForStatus(http.StatusUnauthorized))
	require.Equal(t, ErrPermission, ErrorTypeForStatus(http.StatusForbidden))
	require.Equal(t, ErrNotFound, ErrorTypeForStatus(http.StatusNotFound))
	require.Equal(t, ErrRateLimit, ErrorTypeForStatus(http.StatusTooManyRequests))
	require.Equal(t, ErrOverloaded, ErrorTypeForStatus(529))
	require.Equal(t, ErrAPI, ErrorTypeForStatus(http.StatusInternalServerError))
}
