package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityFatal, false},
		{"missing credential", ErrCodeMissingCredential, CategoryConfig, SeverityFatal, false},
		{"file read", ErrCodeFileRead, CategoryIO, SeverityError, false},
		{"timeout", ErrCodeNetworkTimeout, CategoryNetwork, SeverityWarning, true},
		{"rate limited", ErrCodeRateLimited, CategoryNetwork, SeverityWarning, true},
		{"server error", ErrCodeServerError, CategoryNetwork, SeverityWarning, true},
		{"auth", ErrCodeAuthFailed, CategoryNetwork, SeverityError, false},
		{"dimension", ErrCodeDimensionMismatch, CategoryValidation, SeverityError, false},
		{"parse", ErrCodeParseFailed, CategoryParse, SeverityError, false},
		{"upsert", ErrCodeUpsertFailed, CategoryStorage, SeverityError, false},
		{"internal", ErrCodeInternal, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestErrorFormat(t *testing.T) {
	err := New(ErrCodeFileRead, "cannot read main.rs", nil)
	assert.Equal(t, "[ERR_202_FILE_READ] cannot read main.rs", err.Error())
}

func TestUnwrapChain(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeNetworkUnavailable, cause)

	require.NotNil(t, err)
	assert.ErrorIs(t, err, cause)
	assert.True(t, stderrors.Is(err, New(ErrCodeNetworkUnavailable, "other message", nil)))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeFileTooLarge, "file exceeds limit", nil).
		WithDetail("path", "src/big.rs").
		WithDetail("size", "600000").
		WithSuggestion("raise max_file_size or exclude the file")

	assert.Equal(t, "src/big.rs", err.Details["path"])
	assert.Equal(t, "600000", err.Details["size"])
	assert.NotEmpty(t, err.Suggestion)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeNetworkTimeout, "t", nil)))
	assert.False(t, IsRetryable(New(ErrCodeAuthFailed, "a", nil)))
	assert.False(t, IsRetryable(fmt.Errorf("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeMissingCredential, "no key", nil)))
	assert.False(t, IsFatal(New(ErrCodeParseFailed, "bad syntax", nil)))
	assert.False(t, IsFatal(nil))
}

func TestGetCodeAndCategory(t *testing.T) {
	err := New(ErrCodeBatchFailed, "batch 2 failed", nil)
	assert.Equal(t, ErrCodeBatchFailed, GetCode(err))
	assert.Equal(t, CategoryInternal, GetCategory(err))

	assert.Equal(t, "", GetCode(fmt.Errorf("plain")))
	assert.Equal(t, Category(""), GetCategory(nil))
}
