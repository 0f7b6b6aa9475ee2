package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/shorts/internal/jobs"
)

// Sweeper fails jobs stuck in a non-terminal state past MaxAge.
type Sweeper struct {
	Store    StaleStore
	MaxAge   time.Duration
	Interval time.Duration
}

// SweepOnce runs a single pass and returns the failed job ids.
func (s *Sweeper) SweepOnce(ctx context.Context) ([]uuid.UUID, error) {
	msg := jobs.Message(jobs.Errorf(jobs.KindInternal, "job did not finish within %s", s.MaxAge))
	ids, err := s.Store.FailStale(ctx, s.MaxAge, msg)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		slog.Warn("failed stale job", "job_id", id, "max_age", s.MaxAge)
	}
	return ids, nil
}

// Run sweeps immediately and then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			slog.Error("stale job sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Cancel marks a job failed as cancelled. Cancelling a terminal job is a no-op.
func Cancel(ctx context.Context, store JobStore, id uuid.UUID) error {
	err := store.Fail(ctx, id, jobs.Message(&jobs.Error{Kind: jobs.KindCancelled}))
	if errors.Is(err, jobs.ErrTerminal) {
		return nil
	}
	return err
}
