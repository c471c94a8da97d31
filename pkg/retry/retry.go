// Package retry is the single retry policy used by the escrow orchestrator
// and the reconciler. One place decides attempts, backoff and which errors
// are worth another try.
package retry

import (
	"context"
	"time"
)

type Policy struct {
	MaxAttempts int
	Backoff     time.Duration // first delay; doubles each attempt
	MaxBackoff  time.Duration
}

// Default is tuned for short gateway calls behind an HTTP request.
var Default = Policy{MaxAttempts: 3, Backoff: 250 * time.Millisecond, MaxBackoff: 2 * time.Second}

// Do runs fn until it succeeds, attempts run out, retryable says stop, or
// ctx is done. A nil retryable retries everything.
func (p Policy) Do(ctx context.Context, fn func() error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.Backoff
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if p.MaxBackoff > 0 && delay > p.MaxBackoff {
			delay = p.MaxBackoff
		}
	}
	return err
}
