// Package retry implements bounded exponential backoff with jitter for
// transport errors, per the error handling design: retried locally,
// never surfaced to the caller as anything but engine-absent or
// analysis-skipped once attempts are exhausted.
package retry

import (
	"context"
	"math/rand"
	"time"
)

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 4, BaseDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Do invokes fn up to cfg.MaxAttempts times, backing off exponentially
// with full jitter between attempts. It stops early if ctx is canceled
// or shouldRetry returns false for the latest error.
func Do(ctx context.Context, cfg Config, shouldRetry func(error) bool, fn func(ctx context.Context) error) error {
	var err error
	delay := cfg.BaseDelay
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			jittered := time.Duration(rand.Int63n(int64(delay) + 1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jittered):
			}
			delay *= 2
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
	}
	return err
}
