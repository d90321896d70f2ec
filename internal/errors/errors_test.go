package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code     string
		category Category
		severity Severity
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError},
		{ErrCodeFetchFailed, CategoryIngest, SeverityWarning},
		{ErrCodeEmbedFailed, CategoryEmbedding, SeverityFatal},
		{ErrCodeIndexNotTrained, CategoryIndex, SeverityFatal},
		{ErrCodeIndexLoad, CategoryIndex, SeverityFatal},
		{ErrCodeModelIncompatible, CategoryIndex, SeverityFatal},
		{ErrCodeRetrievalTimeout, CategoryRetrieval, SeverityError},
		{ErrCodeGenerateFailed, CategoryGeneration, SeverityError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeEmbedFailed, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), ErrCodeEmbedFailed)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeEmbedFailed, nil))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeIndexLoad, "missing metadata", nil)
	b := New(ErrCodeIndexLoad, "different message", nil)
	c := New(ErrCodeIndexCorrupt, "row count mismatch", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestIs_MatchesThroughWrapping(t *testing.T) {
	inner := New(ErrCodeRetrievalTimeout, "embed exceeded budget", nil)
	wrapped := fmt.Errorf("retrieve: %w", inner)

	assert.True(t, stderrors.Is(wrapped, New(ErrCodeRetrievalTimeout, "", nil)))
}

func TestRetryableAndFatal(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeFetchFailed, "timeout", nil)))
	assert.False(t, IsRetryable(New(ErrCodeRetrievalTimeout, "timeout", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))

	assert.True(t, IsFatal(New(ErrCodeIndexCorrupt, "mismatch", nil)))
	assert.False(t, IsFatal(New(ErrCodeGenerateFailed, "llm down", nil)))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeFetchFailed, "status 503", nil).
		WithDetail("url", "https://astanait.edu.kz/admissions")

	assert.Equal(t, "https://astanait.edu.kz/admissions", err.Details["url"])
}

func TestGetCodeAndCategory(t *testing.T) {
	err := New(ErrCodeIndexLoad, "no such file", nil)
	assert.Equal(t, ErrCodeIndexLoad, GetCode(err))
	assert.Equal(t, CategoryIndex, GetCategory(err))

	assert.Equal(t, "", GetCode(stderrors.New("plain")))
}
