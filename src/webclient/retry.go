package webclient

import (
	"context"
	"time"
)

// AttemptFunc is one request attempt. A non-nil error or a 429/5xx status
// marks the attempt transient and eligible for retry.
type AttemptFunc func() (status int, body []byte, err error)

// DoWithRetry runs fn up to attempts times with exponential backoff capped
// at 30s. 4xx statuses other than 429 return immediately; clients decide
// what they mean.
func DoWithRetry(ctx context.Context, attempts int, initialDelay time.Duration, fn AttemptFunc) (int, []byte, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 2 * time.Second
	}
	delay := initialDelay
	var (
		status int
		body   []byte
		err    error
	)
	for i := 0; i < attempts; i++ {
		status, body, err = fn()
		if err == nil && status != 429 && status < 500 {
			return status, body, nil
		}
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return status, body, ctx.Err()
		case <-t.C:
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	return status, body, err
}
