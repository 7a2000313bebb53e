package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClassifyUnsupportedFormat(t *testing.T) {
	err := classify("gemini", errors.New("RuntimeError: Invalid binary data format"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	var pErr *ProviderError
	assert.False(t, errors.As(err, &pErr))
}

func TestClassifyTimeout(t *testing.T) {
	err := classify("openai", fmt.Errorf("post: %w", context.DeadlineExceeded))

	var pErr *ProviderError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "request timed out", pErr.Message)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassifyGenericFailure(t *testing.T) {
	err := classify("gemini", errors.New("429 quota exceeded"))

	var pErr *ProviderError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "gemini", pErr.Provider)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestFinishEmpty(t *testing.T) {
	_, err := finish("gemini", "  \n ")
	assert.ErrorIs(t, err, ErrEmptyResult)

	text, err := finish("gemini", "  hello \n")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Name: "telepathy"}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown provider")
}

func TestNewOpenAIProvider(t *testing.T) {
	p, err := New(context.Background(), Config{Name: "openai", OpenAIAPIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}
