package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"thirdcoast.systems/shorts/internal/jobs"
	"thirdcoast.systems/shorts/pkg/ffmpeg"
)

// Cutter slices transformed chunks into fixed-length fragments by stream copy.
type Cutter struct {
	MinFragment float64
	// Timeout applies to each cut separately.
	Timeout time.Duration
	run     Runner
}

func NewCutter(minFragment float64, timeout time.Duration) *Cutter {
	return &Cutter{MinFragment: minFragment, Timeout: timeout, run: runCommand}
}

// FragmentPath is where fragment number n of a chunk is written.
func FragmentPath(chunkDir string, n int) string {
	return filepath.Join(chunkDir, fmt.Sprintf("fragment_%03d.mp4", n))
}

// Cut writes the fragments of tc numbered from firstNumber. Any failed cut
// fails the whole chunk: partial outputs are removed and nothing is returned,
// so the caller can reuse firstNumber for the next chunk.
func (c *Cutter) Cut(ctx context.Context, jobID uuid.UUID, tc jobs.TransformedChunk, fragmentLen float64, firstNumber int) ([]jobs.Fragment, error) {
	spans := PlanFragments(tc.Duration, fragmentLen, c.MinFragment)

	fragments := make([]jobs.Fragment, 0, len(spans))
	cleanup := func() {
		for _, f := range fragments {
			_ = os.Remove(f.Path)
		}
	}

	for i, span := range spans {
		number := firstNumber + i
		out := FragmentPath(tc.Chunk.Dir, number)

		if err := c.cut(ctx, tc.Path, out, span); err != nil {
			_ = os.Remove(out)
			cleanup()
			return nil, jobs.Errorf(jobs.KindTransformFailure, "cut fragment %d of chunk %d: %w", number, tc.Chunk.Index, err)
		}

		st, err := os.Stat(out)
		if err != nil {
			cleanup()
			return nil, jobs.Errorf(jobs.KindTransformFailure, "fragment %d missing: %w", number, err)
		}

		fragments = append(fragments, jobs.Fragment{
			JobID:      jobID,
			Number:     number,
			ChunkIndex: tc.Chunk.Index,
			Path:       out,
			StartTime:  tc.Chunk.Start + span.Start,
			Duration:   span.Duration,
			SizeBytes:  st.Size(),
		})
		slog.Debug("fragment cut", "job_id", jobID, "chunk", tc.Chunk.Index, "fragment", number,
			"duration", span.Duration, "size", humanize.Bytes(uint64(st.Size())))
	}
	return fragments, nil
}

func (c *Cutter) cut(ctx context.Context, in, out string, span Span) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	opts := seekOpts(span.Start)
	if span.Duration > 0 {
		opts = append(opts, ffmpeg.Duration(ffmpeg.Seconds(span.Duration)))
	}
	opts = append(opts, ffmpeg.LogLevel("error"))
	opts = append(opts, ffmpeg.PresetSlice()...)
	return c.run(ctx, ffmpeg.NewCommand(in, out, opts...))
}
