package orchestrate

import (
	"context"
	"math/rand"
	"time"
)

// retryConfig bounds an exponential backoff loop.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  time.Second,
	maxDelay:   10 * time.Second,
}

// withRetry runs fn up to maxRetries+1 times with exponential backoff and
// full jitter. Context cancellation wins over the remaining attempts.
func withRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	delay := cfg.baseDelay
	var err error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = fn(); err == nil {
			return nil
		}
		if attempt == cfg.maxRetries {
			break
		}
		sleep := time.Duration(rand.Int63n(int64(delay)) + 1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
		delay *= 2
		if delay > cfg.maxDelay {
			delay = cfg.maxDelay
		}
	}
	return err
}
