package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"thirdcoast.systems/shorts/internal/jobs"
)

// RetryPolicy retries an operation a bounded number of times with linear
// backoff, only for errors Retryable accepts.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	Retryable  func(error) bool
}

// DefaultRetryPolicy retries twice on transient job errors.
func DefaultRetryPolicy(backoff time.Duration) RetryPolicy {
	return RetryPolicy{MaxRetries: 2, Backoff: backoff, Retryable: jobs.Retryable}
}

func (p RetryPolicy) backoff() retry.Backoff {
	attempt := 0
	linear := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * p.Backoff, false
	})
	return retry.WithMaxRetries(uint64(max(p.MaxRetries, 0)), linear)
}

// Do runs fn until it succeeds, fails permanently or retries run out. The
// last error is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = jobs.Retryable
	}

	attempt := 0
	return retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt <= p.MaxRetries {
			slog.Warn("retrying after transient failure", "op", op, "attempt", attempt, "error", err)
		}
		return retry.RetryableError(err)
	})
}
