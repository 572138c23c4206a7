package ai

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Caller is the retrying transport every outbound AI call goes through. It
// binds a provider to a model, applies the timeout and the backoff policy,
// and records token usage per call.
type Caller struct {
	provider    IProvider
	model       string
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
}

func NewCaller(provider IProvider, model string, timeout time.Duration, maxAttempts int, baseDelay time.Duration) *Caller {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	return &Caller{
		provider:    provider,
		model:       model,
		timeout:     timeout,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}
}

func (c *Caller) Generate(ctx context.Context, operation, prompt string, usage *Usage) (string, error) {
	return c.call(ctx, operation, prompt, usage, func(ctx context.Context) (string, error) {
		return c.provider.Generate(ctx, c.model, prompt)
	})
}

func (c *Caller) GenerateWithFile(ctx context.Context, operation, prompt string, data []byte, mimeType string, usage *Usage) (string, error) {
	extraInput := len(data) / charsPerToken
	return c.callWithExtraInput(ctx, operation, prompt, usage, extraInput, func(ctx context.Context) (string, error) {
		return c.provider.GenerateWithFile(ctx, c.model, prompt, data, mimeType)
	})
}

func (c *Caller) call(ctx context.Context, operation, prompt string, usage *Usage, fn func(ctx context.Context) (string, error)) (string, error) {
	return c.callWithExtraInput(ctx, operation, prompt, usage, 0, fn)
}

func (c *Caller) callWithExtraInput(ctx context.Context, operation, prompt string, usage *Usage, extraInput int, fn func(ctx context.Context) (string, error)) (string, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("operation", operation), zap.String("model", c.model))
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		var output string
		output, lastErr = c.attempt(ctx, fn)
		if lastErr == nil {
			usage.Add(operation, EstimateTokens(prompt)+extraInput, EstimateTokens(output))
			return output, nil
		}
		if !retryable(lastErr) {
			logger.Error("ai call failed, not retryable", zap.Int("attempt", attempt), zap.Error(lastErr))
			return "", lastErr
		}
		if attempt == c.maxAttempts {
			break
		}
		// Exponential backoff: baseDelay * 2^(attempt-1).
		delay := c.baseDelay << (attempt - 1)
		logger.Warn("ai call failed, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	logger.Error("ai call failed, retries exhausted", zap.Int("attempts", c.maxAttempts), zap.Error(lastErr))
	return "", lastErr
}

func (c *Caller) attempt(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return fn(ctx)
}
