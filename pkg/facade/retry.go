package facade

import (
	"context"
	"math/rand"
	"time"
)

// retryConfig is the jittered exponential backoff policy from spec §7:
// at most 3 attempts (the first call plus 2 retries), 100ms -> 2s.
type retryConfig struct {
	maxAttempts int
	base        time.Duration
	max         time.Duration
}

func defaultRetry() retryConfig {
	return retryConfig{maxAttempts: 3, base: 100 * time.Millisecond, max: 2 * time.Second}
}

// withRetry runs fn up to cfg.maxAttempts times with jittered exponential
// backoff between attempts, returning the last error if every attempt fails.
func withRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	var err error
	delay := cfg.base
	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == cfg.maxAttempts-1 {
			break
		}
		jittered := delay/2 + time.Duration(rand.Int63n(int64(delay/2+1)))
		select {
		case <-time.After(jittered):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > cfg.max {
			delay = cfg.max
		}
	}
	return err
}
