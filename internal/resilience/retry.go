// Package resilience provides retry with exponential backoff for
// transient failures, primarily sqlite lock contention on the run store.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryConfig bounds the retry loop.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
		Retryable:     IsTransient,
	}
}

// IsTransient reports whether an error looks like temporary storage
// contention. Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"database is locked", "database table is locked", "busy", "connection reset"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Retry runs fn with the default config.
func Retry(ctx context.Context, fn func() error) error {
	return RetryWithConfig(ctx, DefaultRetryConfig(), fn)
}

// RetryWithConfig runs fn until it succeeds, the error is not retryable,
// the attempts are exhausted or the context ends.
func RetryWithConfig(ctx context.Context, config RetryConfig, fn func() error) error {
	if config.Retryable == nil {
		config.Retryable = IsTransient
	}

	var lastErr error
	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !config.Retryable(lastErr) {
			return lastErr
		}
		if attempt == config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delayFor(config, attempt)):
		}
	}
	return lastErr
}

func delayFor(config RetryConfig, attempt int) time.Duration {
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt)))
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	if config.Jitter && delay > 10 {
		delay += time.Duration(rand.Int63n(int64(delay / 10)))
	}
	return delay
}
