package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rendis/rootfinder/pkg/schema"
)

// RetryPolicy bounds retries of store writes that hit a locked database.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultRetryPolicy retries a locked write three times, 20ms, 40ms, 80ms apart.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: 20 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

// isRetryable reports whether a store error is transient. Only lock
// contention and deadline expiry qualify; structured errors never do.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *schema.SolverError
	if errors.As(err, &se) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{"database is locked", "database table is locked", "sqlite_busy"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// backoff returns the exponential delay before retry attempt (0-based),
// capped at MaxDelay.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.Delay <= 0 {
		return 0
	}
	delay := p.Delay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// do runs fn until it succeeds, fails permanently, or the attempts run out.
func (p RetryPolicy) do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil || !isRetryable(err) || attempt >= p.Attempts {
			return err
		}
		if werr := waitForBackoff(ctx, p.backoff(attempt)); werr != nil {
			return err
		}
	}
}

// waitForBackoff sleeps for delay or returns early if ctx is cancelled.
func waitForBackoff(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
