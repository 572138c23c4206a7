package ai

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

var (
	// ErrUnavailable means the provider is not configured at all.
	ErrUnavailable = errors.New("ai provider unavailable")
	// ErrRateLimited is a transient 429; callers retry with backoff.
	ErrRateLimited = errors.New("ai rate limited")
	// ErrQuotaExhausted is a terminal 429 (RESOURCE_EXHAUSTED): retrying
	// will not help until the quota resets.
	ErrQuotaExhausted = errors.New("ai quota exhausted")
)

// classify maps provider API failures onto the package sentinels so callers
// can tell rate-limiting from quota exhaustion from everything else.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 && strings.Contains(strings.ToUpper(apiErr.Status), "RESOURCE_EXHAUSTED"):
			return fmt.Errorf("%w: %s", ErrQuotaExhausted, apiErr.Message)
		case apiErr.Code == 429:
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		}
	}
	return err
}

// retryable reports whether another attempt may succeed: 429 rate limits,
// 5xx responses and plain network failures are retryable; quota exhaustion
// and any other 4xx are not.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExhausted) || errors.Is(err, ErrUnavailable) {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 400 && apiErr.Code < 500 {
			return false
		}
		return apiErr.Code >= 500
	}
	return true
}
