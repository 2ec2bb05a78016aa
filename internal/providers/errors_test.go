package providers

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota": ErrorQuota,
		"429 rate":           ErrorRate,
		"context too long":   ErrorContext,
		"timeout":            ErrorTransient,
		"bad request":        ErrorPermanent,
	}
	for msg, want := range cases {
		require.Equal(t, want, ClassifyError(errors.New(msg)), msg)
	}
	require.Equal(t, ErrorType(""), ClassifyError(nil))
}

func TestClassifyOpenAIAPIError(t *testing.T) {
	wrap := func(e *openai.APIError) error { return fmt.Errorf("chat: %w", e) }
	require.Equal(t, ErrorRate, ClassifyError(wrap(&openai.APIError{HTTPStatusCode: 429, Message: "slow down"})))
	require.Equal(t, ErrorTransient, ClassifyError(wrap(&openai.APIError{HTTPStatusCode: 503, Message: "x"})))
	require.Equal(t, ErrorQuota, ClassifyError(wrap(&openai.APIError{HTTPStatusCode: 400, Code: "insufficient_quota", Message: "x"})))
}
