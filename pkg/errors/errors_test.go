package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndWrap(t *testing.T) {
	err := New(ErrorTypeCollector, "collector reported failure")
	assert.Contains(t, err.Error(), "collector")
	assert.Contains(t, err.Error(), "collector reported failure")

	cause := stderrors.New("connection refused")
	wrapped := Wrap(cause, ErrorTypeConnection, "search request failed")
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "search request failed")
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeAllSources, "every source failed").
		WithDetail("sources", []string{"browser", "api"}).
		WithDetail("run_id", "abc")

	require.NotNil(t, err.Details)
	assert.Equal(t, "abc", err.Details["run_id"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrorTypeTimeout, "deadline exceeded")))
	assert.True(t, IsRetryable(New(ErrorTypeRateLimit, "throttled")))
	assert.True(t, IsRetryable(New(ErrorTypeConnection, "reset")))

	assert.False(t, IsRetryable(New(ErrorTypeInvalidRequest, "empty search term")))
	assert.False(t, IsRetryable(New(ErrorTypeConfig, "bad config")))
	assert.False(t, IsRetryable(stderrors.New("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeInvalidRequest, "empty search term")
	assert.True(t, IsType(err, ErrorTypeInvalidRequest))
	assert.False(t, IsType(err, ErrorTypeTimeout))

	// works through wrapping
	wrapped := Wrap(err, ErrorTypeInternal, "outer")
	assert.True(t, IsType(wrapped, ErrorTypeInternal))
}

func TestStackCaptured(t *testing.T) {
	err := New(ErrorTypeInternal, "boom")
	assert.NotEmpty(t, err.Stack)
}
