package tarangerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Unwrap_PreservesOriginalError(t *testing.T) {
	originalErr := errors.New("original error")
	wrapped := New(ErrUnreadable, "file not found: test.txt", originalErr)

	require.NotNil(t, wrapped)
	assert.Equal(t, originalErr, errors.Unwrap(wrapped))
	assert.True(t, errors.Is(wrapped, originalErr))
}

func TestError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{name: "not indexed", code: ErrNotIndexed, message: "no manifest", expected: "[ERR_NOT_INDEXED] no manifest"},
		{name: "path escape", code: ErrPathEscape, message: "outside root", expected: "[ERR_PATH_ESCAPE] outside root"},
		{name: "network", code: ErrNetwork, message: "timed out", expected: "[ERR_NETWORK] timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrUnreadable, "file A not found", nil)
	err2 := New(ErrUnreadable, "file B not found", nil)
	assert.True(t, errors.Is(err1, err2))
}

func TestError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	err1 := New(ErrUnreadable, "file not found", nil)
	err2 := New(ErrPathEscape, "escape", nil)
	assert.False(t, errors.Is(err1, err2))
}

func TestError_WithDetails_AddsContext(t *testing.T) {
	err := New(ErrUnreadable, "file not found", nil)
	err = err.WithDetail("path", "/foo/bar.go")
	err = err.WithDetail("size", "1024")

	assert.Equal(t, "/foo/bar.go", err.Details["path"])
	assert.Equal(t, "1024", err.Details["size"])
}

func TestError_WithSuggestion_AddsSuggestion(t *testing.T) {
	err := New(ErrNetwork, "connection timed out", nil)
	err = err.WithSuggestion("check your network connection")
	assert.Equal(t, "check your network connection", err.Suggestion)
}

func TestError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrNotIndexed, CategoryIndex},
		{ErrStateVersionMismatch, CategoryIndex},
		{ErrFileTooLarge, CategoryIO},
		{ErrPathEscape, CategoryIO},
		{ErrNetwork, CategoryNetwork},
		{ErrAuth, CategoryNetwork},
		{ErrNoopEdit, CategoryValidation},
		{ErrSearchNotFound, CategoryValidation},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrStateVersionMismatch, SeverityFatal},
		{ErrUnreadable, SeverityError},
		{ErrNetwork, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrNetwork, true},
		{ErrAuth, false},
		{ErrUnreadable, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesErrorFromError(t *testing.T) {
	originalErr := errors.New("something went wrong")
	wrapped := Wrap(ErrNetwork, originalErr)

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrNetwork, wrapped.Code)
	assert.Equal(t, "something went wrong", wrapped.Message)
	assert.Equal(t, originalErr, wrapped.Cause)
}

func TestNotIndexed_CreatesIndexCategoryError(t *testing.T) {
	err := NotIndexed("/repo")
	assert.Equal(t, CategoryIndex, err.Category)
	assert.Equal(t, ErrNotIndexed, err.Code)
	assert.NotEmpty(t, err.Suggestion)
}

func TestPathEscape_RecordsRequestedPath(t *testing.T) {
	err := PathEscape("../../etc/passwd")
	assert.Equal(t, ErrPathEscape, err.Code)
	assert.Equal(t, "../../etc/passwd", err.Details["path"])
}

func TestNetworkError_CreatesRetryableError(t *testing.T) {
	err := NetworkError("connection refused", nil)
	assert.Equal(t, CategoryNetwork, err.Category)
	assert.True(t, err.Retryable)
}

func TestAuthError_NeverRetryable(t *testing.T) {
	err := AuthError("invalid token", nil)
	assert.Equal(t, CategoryNetwork, err.Category)
	assert.False(t, err.Retryable)
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "retryable error", err: New(ErrNetwork, "timeout", nil), expected: true},
		{name: "non-retryable error", err: New(ErrUnreadable, "not found", nil), expected: false},
		{name: "wrapped retryable error", err: Wrap(ErrNetwork, errors.New("wrapped")), expected: true},
		{name: "standard error", err: errors.New("standard error"), expected: false},
		{name: "nil error", err: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "fatal error", err: New(ErrStateVersionMismatch, "version mismatch", nil), expected: true},
		{name: "non-fatal error", err: New(ErrUnreadable, "not found", nil), expected: false},
		{name: "standard error", err: errors.New("standard error"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}
