// Package pipeline sequences a job from source to published fragments.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"thirdcoast.systems/shorts/internal/captions"
	"thirdcoast.systems/shorts/internal/compose"
	"thirdcoast.systems/shorts/internal/jobs"
	"thirdcoast.systems/shorts/internal/media"
	"thirdcoast.systems/shorts/internal/transform"
	"thirdcoast.systems/shorts/pkg/ffmpeg"
)

// Options are the per-worker settings shared by every job.
type Options struct {
	WorkDir          string
	WorkerID         string
	Limits           jobs.FragmentLimits
	Fonts            compose.Fonts
	Subheader        string
	FPS              int
	MaxBitrate       string
	ChunkParallelism int
	Retry            RetryPolicy
}

// Orchestrator runs jobs end to end. It holds no per-job state.
type Orchestrator struct {
	Store       JobStore
	Fetcher     SourceFetcher
	Prober      Prober
	Splitter    ChunkSplitter
	Captions    CaptionSource
	Transformer Transformer
	Cutter      Cutter
	Sink        Sink
	Notifier    Notifier
	Options     Options
}

// Outcome is the final state of a Run.
type Outcome struct {
	Status    jobs.Status
	Fragments int
}

// run is the state of one execution.
type run struct {
	job    *jobs.Job
	dir    string
	status jobs.Status
}

// Run executes job id. A job that is not pending, or that another execution
// holds, is left untouched and jobs.ErrDuplicateExecution is returned along
// with its current status.
func (o *Orchestrator) Run(ctx context.Context, id uuid.UUID) (Outcome, error) {
	job, err := o.Store.GetJob(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if job.Status != jobs.StatusPending {
		return Outcome{Status: job.Status}, jobs.ErrDuplicateExecution
	}

	if err := os.MkdirAll(o.Options.WorkDir, 0o755); err != nil {
		return Outcome{Status: job.Status}, fmt.Errorf("create work dir: %w", err)
	}
	lock := flock.New(filepath.Join(o.Options.WorkDir, id.String()+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return Outcome{Status: job.Status}, fmt.Errorf("lock job: %w", err)
	}
	if !locked {
		return Outcome{Status: job.Status}, jobs.ErrDuplicateExecution
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	claimed, err := o.Store.ClaimJob(ctx, id, o.Options.WorkerID)
	if err != nil {
		return Outcome{Status: job.Status}, err
	}
	job = claimed

	r := &run{job: job, dir: filepath.Join(o.Options.WorkDir, id.String()), status: job.Status}
	defer os.RemoveAll(r.dir)

	start := time.Now()
	slog.Info("job started", "job_id", id, "source", job.SourceRef, "worker_id", o.Options.WorkerID)

	fragments, err := o.execute(ctx, r)
	// The job may have been cancelled or failed under us; keep the store's verdict.
	if err == nil {
		err = o.Store.Complete(context.WithoutCancel(ctx), id)
	}
	if err != nil {
		return o.fail(ctx, r, err)
	}

	slog.Info("job completed", "job_id", id, "fragments", fragments, "elapsed", time.Since(start))
	if nerr := o.Notifier.NotifyJobCompleted(context.WithoutCancel(ctx), id, job.UserRef, fragments); nerr != nil {
		slog.Warn("completion notification failed", "job_id", id, "error", nerr)
	}
	return Outcome{Status: jobs.StatusCompleted, Fragments: fragments}, nil
}

func (o *Orchestrator) fail(ctx context.Context, r *run, err error) (Outcome, error) {
	id := r.job.ID
	if errors.Is(err, jobs.ErrTerminal) {
		slog.Info("job became terminal during execution, stopping", "job_id", id)
		current, gerr := o.Store.GetJob(context.WithoutCancel(ctx), id)
		if gerr != nil {
			return Outcome{Status: jobs.StatusFailed}, err
		}
		return Outcome{Status: current.Status}, err
	}

	msg := jobs.Message(err)
	slog.Error("job failed", "job_id", id, "kind", jobs.KindOf(err), "error", err)
	if ferr := o.Store.Fail(context.WithoutCancel(ctx), id, msg); ferr != nil && !errors.Is(ferr, jobs.ErrTerminal) {
		slog.Error("failed to record job failure", "job_id", id, "error", ferr)
	}
	if nerr := o.Notifier.NotifyJobFailed(context.WithoutCancel(ctx), id, r.job.UserRef, msg); nerr != nil {
		slog.Warn("failure notification failed", "job_id", id, "error", nerr)
	}
	return Outcome{Status: jobs.StatusFailed}, err
}

// advance moves the job forward. It returns jobs.ErrTerminal once the job
// has been finished elsewhere.
func (o *Orchestrator) advance(ctx context.Context, r *run, status jobs.Status, progress int) error {
	if !jobs.CanTransition(r.status, status) {
		return jobs.Errorf(jobs.KindInternal, "invalid transition %s -> %s", r.status, status)
	}
	if err := o.Store.UpdateProgress(ctx, r.job.ID, status, progress); err != nil {
		return err
	}
	r.status = status
	slog.Info("job progress", "job_id", r.job.ID, "status", status, "progress", progress)
	return nil
}

// ensureActive stops work on a job that has been cancelled.
func (o *Orchestrator) ensureActive(ctx context.Context, id uuid.UUID) error {
	job, err := o.Store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return jobs.ErrTerminal
	}
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) (int, error) {
	id := r.job.ID
	settings := r.job.Settings.Normalize(o.Options.Limits)
	fragmentLen := float64(settings.FragmentDuration)

	// Downloading: already set by the claim.
	var src *sourceResult
	err := o.Options.Retry.Do(ctx, "fetch", func(ctx context.Context) error {
		res, err := o.Fetcher.Fetch(ctx, r.job.SourceRef, filepath.Join(r.dir, "source"))
		if err != nil {
			return err
		}
		src = &sourceResult{path: res.Path, duration: res.Duration, title: res.Title}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if src.title != "" {
		if err := o.Store.SetSourceTitle(ctx, id, src.title); err != nil {
			slog.Warn("failed to record source title", "job_id", id, "error", err)
		}
	}

	info := o.Prober.Probe(ctx, src.path)
	if info.Degraded {
		slog.Warn("continuing with degraded probe", "job_id", id,
			"kind", jobs.KindProbeDegraded, "fetched_duration", src.duration)
		if info.Duration <= 0 {
			info.Duration = src.duration
		}
	}

	if err := o.advance(ctx, r, jobs.StatusProcessing, jobs.ProgressProcessing); err != nil {
		return 0, err
	}

	chunks, failures, err := o.Splitter.Split(ctx, r.dir, src.path, info)
	if err != nil {
		return 0, jobs.Errorf(jobs.KindInternal, "split source: %w", err)
	}
	if len(chunks) == 0 {
		return 0, allChunksFailed(len(failures), firstFailure(failures))
	}

	transformed, err := o.transformAll(ctx, r, settings, chunks)
	if err != nil {
		return 0, err
	}
	if err := o.ensureActive(ctx, id); err != nil {
		return 0, err
	}

	fragments, err := o.cutAll(ctx, r, transformed, fragmentLen)
	if err != nil {
		return 0, err
	}

	if err := o.advance(ctx, r, jobs.StatusProcessing, jobs.ProgressTransformed); err != nil {
		return 0, err
	}
	if err := o.ensureActive(ctx, id); err != nil {
		return 0, err
	}
	if err := o.advance(ctx, r, jobs.StatusUploading, jobs.ProgressUploading); err != nil {
		return 0, err
	}

	o.publish(ctx, id, fragments)
	return len(fragments), nil
}

type sourceResult struct {
	path     string
	duration float64
	title    string
}

// transformAll renders chunks with at most ChunkParallelism in flight.
// Results keep chunk order; failed chunks are nil.
func (o *Orchestrator) transformAll(ctx context.Context, r *run, settings jobs.Settings, chunks []jobs.Chunk) ([]*jobs.TransformedChunk, error) {
	style := compose.NewStyle(settings, o.Options.Fonts, o.Options.Subheader)
	enc := transform.Encoding{
		FPS:              o.Options.FPS,
		MaxBitrate:       o.Options.MaxBitrate,
		KeyframeInterval: time.Duration(settings.FragmentDuration) * time.Second,
	}

	results := make([]*jobs.TransformedChunk, len(chunks))
	errs := make([]error, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.Options.ChunkParallelism, 1))
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := o.ensureActive(gctx, r.job.ID); err != nil {
				return err
			}
			tc, err := o.transformChunk(gctx, chunk, style, settings, enc)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Warn("chunk transform failed", "job_id", r.job.ID, "chunk", chunk.Index, "error", err)
				errs[i] = err
				return nil
			}
			results[i] = &tc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, tc := range results {
		if tc != nil {
			return results, nil
		}
	}
	var first error
	for _, err := range errs {
		if err != nil {
			first = err
			break
		}
	}
	return nil, allChunksFailed(len(chunks), first)
}

func (o *Orchestrator) transformChunk(ctx context.Context, chunk jobs.Chunk, style compose.Style, settings jobs.Settings, enc transform.Encoding) (jobs.TransformedChunk, error) {
	var overlays []ffmpeg.Filter
	if settings.SubtitlesEnabled {
		overlays = captions.Overlay(o.Captions.Words(ctx, chunk), style.Caption)
	}
	graph := compose.Compose(style, overlays...)

	var tc jobs.TransformedChunk
	err := o.Options.Retry.Do(ctx, fmt.Sprintf("transform chunk %d", chunk.Index), func(ctx context.Context) error {
		var err error
		tc, err = o.Transformer.Transform(ctx, chunk, graph, enc)
		return err
	})
	return tc, err
}

// cutAll cuts transformed chunks in order so fragment numbers are contiguous
// across the job, and records each fragment.
func (o *Orchestrator) cutAll(ctx context.Context, r *run, transformed []*jobs.TransformedChunk, fragmentLen float64) ([]*jobs.Fragment, error) {
	var stored []*jobs.Fragment
	var lastErr error
	next := 1
	for _, tc := range transformed {
		if tc == nil {
			continue
		}
		frags, err := o.Cutter.Cut(ctx, r.job.ID, *tc, fragmentLen, next)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("chunk cut failed", "job_id", r.job.ID, "chunk", tc.Chunk.Index, "error", err)
			lastErr = err
			continue
		}
		for i := range frags {
			f, err := o.Store.InsertFragment(ctx, &frags[i])
			if err != nil {
				return nil, jobs.Errorf(jobs.KindInternal, "record fragment: %w", err)
			}
			stored = append(stored, f)
		}
		next += len(frags)
	}
	if len(stored) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no fragments produced")
		}
		return nil, &jobs.Error{Kind: jobs.KindTransformFailure, Msg: causeText(lastErr), Err: lastErr}
	}
	return stored, nil
}

// publish hands fragments to the sink. Failures only leave links empty.
func (o *Orchestrator) publish(ctx context.Context, id uuid.UUID, fragments []*jobs.Fragment) {
	paths := make([]string, len(fragments))
	for i, f := range fragments {
		paths[i] = f.Path
	}

	for i, res := range o.Sink.Upload(ctx, id, paths) {
		if i >= len(fragments) {
			break
		}
		f := fragments[i]
		if !res.OK() {
			slog.Warn("fragment not published", "job_id", id, "fragment", f.Number,
				"error", jobs.Errorf(jobs.KindSinkFailure, "%w", res.Err))
			continue
		}
		f.ExternalLink = res.Link
		if err := o.Store.SetFragmentLink(ctx, f.ID, res.Link); err != nil {
			slog.Warn("failed to record fragment link", "job_id", id, "fragment", f.Number, "error", err)
		}
		_ = os.Remove(f.Path)
	}
}

func allChunksFailed(n int, cause error) error {
	if cause == nil {
		cause = errors.New("no usable chunks")
	}
	return &jobs.Error{
		Kind: jobs.KindTransformFailure,
		Msg:  fmt.Sprintf("all %d chunks failed: %s", n, causeText(cause)),
		Err:  cause,
	}
}

// causeText drops the category label of an already categorized error.
func causeText(err error) string {
	var je *jobs.Error
	if errors.As(err, &je) && je.Msg != "" {
		return je.Msg
	}
	return err.Error()
}

func firstFailure(failures []media.ChunkFailure) error {
	if len(failures) == 0 {
		return nil
	}
	return failures[0].Err
}
