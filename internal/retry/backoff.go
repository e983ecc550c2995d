// Package retry implements exponential backoff with optional jitter.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Config configures retry behavior with exponential backoff
type Config struct {
	MaxRetries int           // Maximum number of retry attempts (default: 3)
	BaseDelay  time.Duration // Base delay between retries (default: 1s)
	MaxDelay   time.Duration // Maximum delay between retries (default: 30s)
	Multiplier float64       // Exponential backoff multiplier (default: 2.0)
	Jitter     bool          // Add random jitter to prevent thundering herd (default: true)
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// StoreConfig returns a retry configuration tuned for the conversation
// store's find-or-create race. The race resolves on the next read, so
// delays are short.
func StoreConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  25 * time.Millisecond,
		MaxDelay:   250 * time.Millisecond,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Do executes operation with exponential backoff. It returns nil as soon as
// one attempt succeeds, the context error if the context is cancelled while
// waiting, and otherwise the last attempt's error.
func Do(ctx context.Context, config Config, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(config, attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := operation(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return lastErr
}

func backoffDelay(config Config, attempt int) time.Duration {
	delay := float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt-1))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	if config.Jitter {
		// Up to 25% random jitter on top of the computed delay.
		delay += delay * 0.25 * rand.Float64()
	}

	return time.Duration(delay)
}
