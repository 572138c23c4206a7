package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type scriptedProvider struct {
	errs  []error
	calls int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	idx := p.calls
	p.calls++
	if idx < len(p.errs) && p.errs[idx] != nil {
		return "", p.errs[idx]
	}
	return "generated output text", nil
}

func (p *scriptedProvider) GenerateWithFile(ctx context.Context, model string, prompt string, data []byte, mimeType string) (string, error) {
	return p.Generate(ctx, model, prompt)
}

func TestCallerRetriesRateLimit(t *testing.T) {
	provider := &scriptedProvider{errs: []error{ErrRateLimited, ErrRateLimited, nil}}
	caller := NewCaller(provider, "m", time.Second, 3, time.Millisecond)
	var usage Usage
	out, err := caller.Generate(context.Background(), "test_op", "some prompt", &usage)
	require.NoError(t, err)
	require.Equal(t, "generated output text", out)
	require.Equal(t, 3, provider.calls)
	// Only the successful call is accounted.
	require.Len(t, usage.Entries, 1)
	require.Equal(t, "test_op", usage.Entries[0].Operation)
}

func TestCallerExhaustsRetries(t *testing.T) {
	provider := &scriptedProvider{errs: []error{ErrRateLimited, ErrRateLimited, ErrRateLimited}}
	caller := NewCaller(provider, "m", time.Second, 3, time.Millisecond)
	var usage Usage
	_, err := caller.Generate(context.Background(), "test_op", "p", &usage)
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, 3, provider.calls)
	require.Empty(t, usage.Entries)
}

func TestCallerNoRetryOnQuotaExhaustion(t *testing.T) {
	provider := &scriptedProvider{errs: []error{ErrQuotaExhausted}}
	caller := NewCaller(provider, "m", time.Second, 3, time.Millisecond)
	var usage Usage
	_, err := caller.Generate(context.Background(), "test_op", "p", &usage)
	require.ErrorIs(t, err, ErrQuotaExhausted)
	require.Equal(t, 1, provider.calls)
}

func TestCallerNoRetryOnClientError(t *testing.T) {
	provider := &scriptedProvider{errs: []error{genai.APIError{Code: 400, Message: "bad request"}}}
	caller := NewCaller(provider, "m", time.Second, 3, time.Millisecond)
	var usage Usage
	_, err := caller.Generate(context.Background(), "test_op", "p", &usage)
	require.Error(t, err)
	require.Equal(t, 1, provider.calls)
}

func TestCallerRetriesServerError(t *testing.T) {
	provider := &scriptedProvider{errs: []error{genai.APIError{Code: 503, Message: "overloaded"}, nil}}
	caller := NewCaller(provider, "m", time.Second, 3, time.Millisecond)
	var usage Usage
	out, err := caller.Generate(context.Background(), "test_op", "p", &usage)
	require.NoError(t, err)
	require.Equal(t, "generated output text", out)
	require.Equal(t, 2, provider.calls)
}

func TestCallerFileInputAccounting(t *testing.T) {
	provider := &scriptedProvider{}
	caller := NewCaller(provider, "m", time.Second, 1, time.Millisecond)
	var usage Usage
	data := make([]byte, 4000)
	_, err := caller.GenerateWithFile(context.Background(), "pdf_extract", "prompt text!", data, "application/pdf", &usage)
	require.NoError(t, err)
	require.Len(t, usage.Entries, 1)
	// 12 prompt chars and 4000 file bytes at 4 chars per token.
	require.Equal(t, 3+1000, usage.Entries[0].InputTokens)
}

func TestClassify(t *testing.T) {
	require.NoError(t, classify(nil))
	require.ErrorIs(t,
		classify(genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}),
		ErrQuotaExhausted)
	require.ErrorIs(t,
		classify(genai.APIError{Code: 429, Status: "TOO_MANY_REQUESTS"}),
		ErrRateLimited)
	plain := errors.New("dial tcp: connection refused")
	require.Equal(t, plain, classify(plain))
}

func TestRetryable(t *testing.T) {
	require.False(t, retryable(nil))
	require.False(t, retryable(ErrQuotaExhausted))
	require.False(t, retryable(ErrUnavailable))
	require.True(t, retryable(ErrRateLimited))
	require.False(t, retryable(genai.APIError{Code: 403}))
	require.True(t, retryable(genai.APIError{Code: 500}))
	require.True(t, retryable(errors.New("network down")))
}
