package apierr

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds retry parameters for exponential backoff.
//
// All fields must be non-negative. Invalid values are normalized:
//   - MaxRetries < 0 becomes 0 (single attempt)
//   - BaseDelay <= 0 becomes 1ms
//   - MaxDelay <= 0 becomes BaseDelay
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// OnRetry, if set, is called before each wait with the failed attempt
	// number (starting at 1), its error and the upcoming delay.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig is used for uploads when nothing else is configured.
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 4,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   8 * time.Second,
}

func (c *RetryConfig) normalize() {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = c.BaseDelay
	}
}

// RetryWithBackoff executes fn with exponential backoff retry.
// It retries only if shouldRetry returns true for the error.
// fn receives the 1-based attempt number.
func RetryWithBackoff[T any](
	ctx context.Context,
	cfg RetryConfig,
	fn func(attempt int) (T, error),
	shouldRetry func(error) bool,
) (T, error) {
	cfg.normalize()

	var zero T
	var lastErr error
	delay := cfg.BaseDelay

	for attempt := 1; attempt <= cfg.MaxRetries+1; attempt++ {
		if attempt > 1 {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt-1, lastErr, delay)
			}
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
			delay = min(delay*2, cfg.MaxDelay)
		}

		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}
	}

	return zero, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}
