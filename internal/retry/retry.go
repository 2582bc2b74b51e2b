// Package retry runs remote calls with exponential backoff
package retry

import (
	"context"
	"math"
	"time"
)

// Config holds the configuration for retry logic
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultConfig returns the retry policy used for model servers
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		BackoffMultiple: 2.0,
	}
}

// Retryable reports whether a failed attempt should be tried again
type Retryable func(err error) bool

// Logger receives a line for every retry
type Logger func(template string, args ...interface{})

// delay computes the wait before the given retry using exponential backoff
func (c Config) delay(retry int) time.Duration {
	d := time.Duration(float64(c.BaseDelay) * math.Pow(c.BackoffMultiple, float64(retry)))
	if d > c.MaxDelay {
		d = c.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, the retries
// are exhausted or ctx is done. The last error is returned on exhaustion.
func Do[T any](ctx context.Context, cfg Config, name string, retryable Retryable, logger Logger, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			d := cfg.delay(attempt - 1)
			if logger != nil {
				logger("%s retry %d/%d after %v: %v", name, attempt, cfg.MaxRetries, d, lastErr)
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(d):
			}
		}

		result, err := fn(attempt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if retryable == nil || !retryable(err) {
			return zero, err
		}
	}

	return zero, lastErr
}
