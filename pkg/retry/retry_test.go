package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, Backoff: time.Microsecond, MaxBackoff: time.Microsecond}
}

func TestDo(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := fastPolicy(3).Do(ctx, func() error { calls++; return nil }, nil)
		if err != nil || calls != 1 {
			t.Fatalf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		err := fastPolicy(3).Do(ctx, func() error {
			calls++
			if calls < 3 {
				return errTransient
			}
			return nil
		}, nil)
		if err != nil || calls != 3 {
			t.Fatalf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("returns last error when attempts run out", func(t *testing.T) {
		calls := 0
		err := fastPolicy(3).Do(ctx, func() error { calls++; return errTransient }, nil)
		if !errors.Is(err, errTransient) || calls != 3 {
			t.Fatalf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		fatal := errors.New("fatal")
		calls := 0
		err := fastPolicy(3).Do(ctx, func() error { calls++; return fatal }, func(err error) bool {
			return !errors.Is(err, fatal)
		})
		if !errors.Is(err, fatal) || calls != 1 {
			t.Fatalf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("zero attempts still runs once", func(t *testing.T) {
		calls := 0
		_ = Policy{}.Do(ctx, func() error { calls++; return errTransient }, nil)
		if calls != 1 {
			t.Fatalf("calls=%d", calls)
		}
	})

	t.Run("cancelled context stops between attempts", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		calls := 0
		err := Policy{MaxAttempts: 5, Backoff: time.Millisecond}.Do(cctx, func() error {
			calls++
			return errTransient
		}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v", err)
		}
		if calls != 1 {
			t.Fatalf("calls=%d", calls)
		}
	})
}
