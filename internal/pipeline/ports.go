package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"thirdcoast.systems/shorts/internal/captions"
	"thirdcoast.systems/shorts/internal/jobs"
	"thirdcoast.systems/shorts/internal/media"
	"thirdcoast.systems/shorts/internal/sink"
	"thirdcoast.systems/shorts/internal/source"
	"thirdcoast.systems/shorts/internal/transform"
	"thirdcoast.systems/shorts/pkg/ffmpeg"
)

// JobStore is the persistence the orchestrator needs. Updates against a
// terminal job return jobs.ErrTerminal.
type JobStore interface {
	GetJob(ctx context.Context, id uuid.UUID) (*jobs.Job, error)
	ClaimJob(ctx context.Context, id uuid.UUID, workerID string) (*jobs.Job, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, status jobs.Status, progress int) error
	SetSourceTitle(ctx context.Context, id uuid.UUID, title string) error
	InsertFragment(ctx context.Context, f *jobs.Fragment) (*jobs.Fragment, error)
	SetFragmentLink(ctx context.Context, fragmentID uuid.UUID, link string) error
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
}

// StaleStore fails jobs that have been non-terminal for too long.
type StaleStore interface {
	FailStale(ctx context.Context, maxAge time.Duration, message string) ([]uuid.UUID, error)
}

type SourceFetcher interface {
	Fetch(ctx context.Context, sourceRef, destDir string) (*source.Result, error)
}

type Prober interface {
	Probe(ctx context.Context, path string) media.Info
}

type ChunkSplitter interface {
	Split(ctx context.Context, jobDir, source string, info media.Info) ([]jobs.Chunk, []media.ChunkFailure, error)
}

type CaptionSource interface {
	Words(ctx context.Context, chunk jobs.Chunk) []captions.Word
}

type Transformer interface {
	Transform(ctx context.Context, chunk jobs.Chunk, graph *ffmpeg.Graph, enc transform.Encoding) (jobs.TransformedChunk, error)
}

type Cutter interface {
	Cut(ctx context.Context, jobID uuid.UUID, tc jobs.TransformedChunk, fragmentLen float64, firstNumber int) ([]jobs.Fragment, error)
}

type Sink interface {
	Upload(ctx context.Context, jobID uuid.UUID, paths []string) []sink.Result
}

type Notifier interface {
	NotifyJobCompleted(ctx context.Context, jobID uuid.UUID, userRef string, fragments int) error
	NotifyJobFailed(ctx context.Context, jobID uuid.UUID, userRef, message string) error
}
