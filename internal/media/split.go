package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"thirdcoast.systems/shorts/internal/jobs"
	"thirdcoast.systems/shorts/pkg/ffmpeg"
)

// ChunkFailure records a chunk that could not be extracted.
type ChunkFailure struct {
	Index int
	Err   error
}

// Splitter slices long sources into bounded chunks by stream copy.
type Splitter struct {
	Threshold float64
	Timeout   time.Duration
	run       Runner
}

func NewSplitter(threshold float64, timeout time.Duration) *Splitter {
	return &Splitter{Threshold: threshold, Timeout: timeout, run: runCommand}
}

// ChunkDir is the per-chunk working directory, 1-based.
func ChunkDir(jobDir string, index int) string {
	return filepath.Join(jobDir, fmt.Sprintf("chunk_%d", index))
}

// Split returns the extracted chunks in order. Chunks that fail to extract
// are returned as failures and left out; err is reserved for problems with
// the working directory itself.
func (s *Splitter) Split(ctx context.Context, jobDir, source string, info Info) ([]jobs.Chunk, []ChunkFailure, error) {
	spans := PlanChunks(info.Duration, s.Threshold)

	if len(spans) == 1 {
		dir := ChunkDir(jobDir, 1)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create chunk dir: %w", err)
		}
		return []jobs.Chunk{{
			Index:    1,
			Path:     source,
			Duration: info.Duration,
			Dir:      dir,
			HasAudio: info.HasAudio,
		}}, nil, nil
	}

	var chunks []jobs.Chunk
	var failures []ChunkFailure
	for i, span := range spans {
		index := i + 1
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		dir := ChunkDir(jobDir, index)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create chunk dir: %w", err)
		}
		out := filepath.Join(jobDir, fmt.Sprintf("chunk_%d.mp4", index))

		start := time.Now()
		if err := s.extract(ctx, source, out, span); err != nil {
			slog.Warn("chunk extraction failed", "chunk", index, "error", err)
			_ = os.Remove(out)
			failures = append(failures, ChunkFailure{Index: index, Err: err})
			continue
		}
		slog.Debug("chunk extracted", "chunk", index, "start", span.Start, "duration", span.Duration, "elapsed", time.Since(start))

		chunks = append(chunks, jobs.Chunk{
			Index:    index,
			Path:     out,
			Start:    span.Start,
			Duration: span.Duration,
			Dir:      dir,
			HasAudio: info.HasAudio,
		})
	}
	return chunks, failures, nil
}

func (s *Splitter) extract(ctx context.Context, source, out string, span Span) error {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	opts := append(seekOpts(span.Start), ffmpeg.Duration(ffmpeg.Seconds(span.Duration)), ffmpeg.LogLevel("error"))
	opts = append(opts, ffmpeg.PresetSlice()...)
	return s.run(ctx, ffmpeg.NewCommand(source, out, opts...))
}
