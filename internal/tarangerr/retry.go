package tarangerr

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// RetryConfig bounds a retry loop.
type RetryConfig struct {
	// MaxRetries is the retry budget, not counting the initial attempt.
	MaxRetries int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the exponentially growing wait.
	MaxDelay time.Duration

	// Multiplier grows the delay after each retry.
	Multiplier float64

	// Jitter randomizes each wait into [0.5, 1.0] of its nominal value.
	Jitter bool
}

// DefaultRetryConfig returns the default backoff bounds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
		Jitter:       false,
	}
}

// Retry runs fn with bounded exponential backoff, the policy the stream
// client applies to its callback POSTs. A typed *Error whose code is not
// retryable stops the loop immediately - an auth rejection or protocol
// error doesn't improve by waiting. Context cancellation aborts both
// between attempts and mid-wait.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var terr *Error
		if errors.As(err, &terr) && !terr.Retryable {
			return err
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		wait := delay
		if cfg.Jitter {
			wait = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
