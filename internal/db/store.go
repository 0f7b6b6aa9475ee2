package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/shorts/internal/jobs"
)

// Store maps the generated queries onto the job model.
type Store struct {
	dbc *DatabaseConnection
	q   *Queries
}

func NewStore(dbc *DatabaseConnection) *Store {
	return &Store{dbc: dbc, q: New(dbc)}
}

func toJob(r *Job) *jobs.Job {
	j := &jobs.Job{
		ID:           FromPgUUID(r.ID),
		UserRef:      r.UserRef,
		SourceRef:    r.SourceRef,
		Settings:     r.Settings,
		Status:       jobs.Status(r.Status),
		Progress:     int(r.Progress),
		ErrorMessage: deref(r.ErrorMessage),
		SourceTitle:  deref(r.SourceTitle),
		WorkerID:     deref(r.WorkerID),
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
		StartedAt:    NilTimePtr(r.StartedAt),
		CompletedAt:  NilTimePtr(r.CompletedAt),
	}
	return j
}

func toFragment(r *Fragment) *jobs.Fragment {
	return &jobs.Fragment{
		ID:           FromPgUUID(r.ID),
		JobID:        FromPgUUID(r.JobID),
		Number:       int(r.FragmentNumber),
		ChunkIndex:   int(r.ChunkIndex),
		Path:         r.Path,
		StartTime:    r.StartTime,
		Duration:     r.Duration,
		SizeBytes:    r.SizeBytes,
		ExternalLink: deref(r.ExternalLink),
		CreatedAt:    r.CreatedAt.Time,
	}
}

func (s *Store) CreateJob(ctx context.Context, userRef, sourceRef string, settings jobs.Settings) (*jobs.Job, error) {
	row, err := s.q.CreateJob(ctx, &CreateJobParams{
		UserRef:   userRef,
		SourceRef: sourceRef,
		Settings:  settings,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return toJob(row), nil
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	row, err := s.q.GetJob(ctx, PgUUID(id))
	if IsNoRows(err) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return toJob(row), nil
}

func (s *Store) ListRecentJobs(ctx context.Context, limit int) ([]*jobs.Job, error) {
	rows, err := s.q.ListRecentJobs(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]*jobs.Job, 0, len(rows))
	for _, r := range rows {
		out = append(out, toJob(r))
	}
	return out, nil
}

// NextPendingJobID returns the oldest pending job, or uuid.Nil when the queue is empty.
func (s *Store) NextPendingJobID(ctx context.Context) (uuid.UUID, error) {
	id, err := s.q.NextPendingJobID(ctx)
	if IsNoRows(err) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("next pending job: %w", err)
	}
	return FromPgUUID(id), nil
}

// ClaimJob moves a pending job to downloading for workerID. Any other status
// yields jobs.ErrDuplicateExecution.
func (s *Store) ClaimJob(ctx context.Context, id uuid.UUID, workerID string) (*jobs.Job, error) {
	row, err := s.q.ClaimJob(ctx, &ClaimJobParams{ID: PgUUID(id), WorkerID: StringPtr(workerID)})
	if IsNoRows(err) {
		return nil, jobs.ErrDuplicateExecution
	}
	if err != nil {
		return nil, fmt.Errorf("claim job %s: %w", id, err)
	}
	return toJob(row), nil
}

// UpdateProgress records a stage boundary. Progress never decreases.
func (s *Store) UpdateProgress(ctx context.Context, id uuid.UUID, status jobs.Status, progress int) error {
	n, err := s.q.UpdateJobProgress(ctx, &UpdateJobProgressParams{
		ID:       PgUUID(id),
		Status:   string(status),
		Progress: int32(progress),
	})
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n == 0 {
		return jobs.ErrTerminal
	}
	return nil
}

func (s *Store) SetSourceTitle(ctx context.Context, id uuid.UUID, title string) error {
	return s.q.SetJobSourceTitle(ctx, &SetJobSourceTitleParams{ID: PgUUID(id), SourceTitle: StringPtr(title)})
}

func (s *Store) InsertFragment(ctx context.Context, f *jobs.Fragment) (*jobs.Fragment, error) {
	row, err := s.q.InsertFragment(ctx, &InsertFragmentParams{
		JobID:          PgUUID(f.JobID),
		FragmentNumber: int32(f.Number),
		ChunkIndex:     int32(f.ChunkIndex),
		Path:           f.Path,
		StartTime:      f.StartTime,
		Duration:       f.Duration,
		SizeBytes:      f.SizeBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("insert fragment %d: %w", f.Number, err)
	}
	return toFragment(row), nil
}

func (s *Store) SetFragmentLink(ctx context.Context, fragmentID uuid.UUID, link string) error {
	return s.q.SetFragmentLink(ctx, &SetFragmentLinkParams{ID: PgUUID(fragmentID), ExternalLink: StringPtr(link)})
}

func (s *Store) ListFragments(ctx context.Context, jobID uuid.UUID) ([]*jobs.Fragment, error) {
	rows, err := s.q.ListFragmentsByJob(ctx, PgUUID(jobID))
	if err != nil {
		return nil, fmt.Errorf("list fragments: %w", err)
	}
	out := make([]*jobs.Fragment, 0, len(rows))
	for _, r := range rows {
		out = append(out, toFragment(r))
	}
	return out, nil
}

func (s *Store) Complete(ctx context.Context, id uuid.UUID) error {
	n, err := s.q.CompleteJob(ctx, PgUUID(id))
	if err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	if n == 0 {
		return jobs.ErrTerminal
	}
	return nil
}

// Fail marks a non-terminal job failed. Failing a terminal job returns jobs.ErrTerminal.
func (s *Store) Fail(ctx context.Context, id uuid.UUID, message string) error {
	n, err := s.q.FailJob(ctx, &FailJobParams{ID: PgUUID(id), ErrorMessage: StringPtr(message)})
	if err != nil {
		return fmt.Errorf("fail job %s: %w", id, err)
	}
	if n == 0 {
		return jobs.ErrTerminal
	}
	return nil
}

// FailStale fails every non-terminal job created more than maxAge ago.
func (s *Store) FailStale(ctx context.Context, maxAge time.Duration, message string) ([]uuid.UUID, error) {
	ids, err := s.q.FailStaleJobs(ctx, &FailStaleJobsParams{
		ErrorMessage:  StringPtr(message),
		MaxAgeSeconds: maxAge.Seconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("fail stale jobs: %w", err)
	}
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		out = append(out, FromPgUUID(id))
	}
	return out, nil
}
