// Package transform runs ffmpeg once per chunk against the composed layout graph.
package transform

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"thirdcoast.systems/shorts/internal/compose"
	"thirdcoast.systems/shorts/internal/jobs"
	"thirdcoast.systems/shorts/internal/media"
	"thirdcoast.systems/shorts/pkg/ffmpeg"
)

// Encoding controls the output stream parameters.
type Encoding struct {
	FPS        int
	MaxBitrate string
	// KeyframeInterval forces keyframes so later stream-copy cuts land exactly.
	KeyframeInterval time.Duration
}

// Executor renders chunks into vertical, captioned video.
type Executor struct {
	Timeout time.Duration

	run   func(ctx context.Context, cmd *ffmpeg.Command) error
	probe func(ctx context.Context, path string) media.Info
}

func NewExecutor(timeout time.Duration, prober *media.Prober) *Executor {
	return &Executor{
		Timeout: timeout,
		run:     runWithProgress,
		probe:   prober.Probe,
	}
}

// progressEvery throttles debug progress logs for long renders.
const progressEvery = 10 * time.Second

func runWithProgress(ctx context.Context, cmd *ffmpeg.Command) error {
	progress := make(chan ffmpeg.Progress, 8)
	proc, err := cmd.StartWithProgress(ctx, progress)
	if err != nil {
		return err
	}
	var last time.Time
	for p := range progress {
		if time.Since(last) < progressEvery && p.Progress != "end" {
			continue
		}
		last = time.Now()
		slog.Debug("transform progress", "output", cmd.Output(),
			"out_time", p.OutTimeSeconds(), "fps", p.FPS, "speed", p.Speed)
	}
	return proc.Wait()
}

// GraphPath and OutputPath are fixed per chunk directory.
func GraphPath(chunk jobs.Chunk) string  { return filepath.Join(chunk.Dir, "graph.txt") }
func OutputPath(chunk jobs.Chunk) string { return filepath.Join(chunk.Dir, "processed.mp4") }

// Command builds the ffmpeg invocation for chunk. The graph is read from a
// script file written next to the output.
func Command(chunk jobs.Chunk, enc Encoding) *ffmpeg.Command {
	opts := []ffmpeg.Option{
		ffmpeg.LogLevel("error"),
		ffmpeg.FilterScript(GraphPath(chunk)),
		ffmpeg.MapStream("[" + compose.OutputLabel + "]"),
	}
	if chunk.HasAudio {
		opts = append(opts, ffmpeg.MapStream("0:a:0?"))
	}
	opts = append(opts, ffmpeg.PresetShorts(enc.FPS, enc.MaxBitrate)...)
	if enc.KeyframeInterval > 0 {
		opts = append(opts, ffmpeg.KeyframeEvery(enc.KeyframeInterval))
	}
	if chunk.HasAudio {
		opts = append(opts, ffmpeg.PresetAAC()...)
	}
	return ffmpeg.NewCommand(chunk.Path, OutputPath(chunk), opts...)
}

// Transform renders chunk through graph. A timeout is reported as a
// transient transform failure; any other ffmpeg failure is permanent for
// the chunk.
func (e *Executor) Transform(ctx context.Context, chunk jobs.Chunk, graph *ffmpeg.Graph, enc Encoding) (jobs.TransformedChunk, error) {
	if err := os.WriteFile(GraphPath(chunk), []byte(graph.String()), 0o644); err != nil {
		return jobs.TransformedChunk{}, jobs.Errorf(jobs.KindInternal, "write graph script: %w", err)
	}

	runCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := Command(chunk, enc)
	start := time.Now()
	slog.Info("transforming chunk", "chunk", chunk.Index, "duration", chunk.Duration, "filters", graph.Len())

	if err := e.run(runCtx, cmd); err != nil {
		_ = os.Remove(cmd.Output())
		if ctx.Err() != nil {
			return jobs.TransformedChunk{}, ctx.Err()
		}
		var ffErr *ffmpeg.Error
		timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &ffErr) && ffErr.TimedOut)
		jerr := jobs.Errorf(jobs.KindTransformFailure, "chunk %d: %w", chunk.Index, err)
		if timedOut {
			jerr = jobs.Errorf(jobs.KindTransformFailure, "chunk %d timed out after %s: %w", chunk.Index, e.Timeout, err)
			jerr.Transient = true
		}
		return jobs.TransformedChunk{}, jerr
	}

	info := e.probe(ctx, cmd.Output())
	duration := info.Duration
	if duration <= 0 {
		duration = chunk.Duration
	}
	slog.Info("chunk transformed", "chunk", chunk.Index, "duration", duration, "elapsed", time.Since(start))

	return jobs.TransformedChunk{Chunk: chunk, Path: cmd.Output(), Duration: duration}, nil
}
