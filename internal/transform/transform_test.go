package transform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/shorts/internal/compose"
	"thirdcoast.systems/shorts/internal/jobs"
	"thirdcoast.systems/shorts/internal/media"
	"thirdcoast.systems/shorts/pkg/ffmpeg"
)

func testChunk(t *testing.T, hasAudio bool) jobs.Chunk {
	return jobs.Chunk{Index: 1, Path: "/w/chunk_1.mp4", Duration: 62, Dir: t.TempDir(), HasAudio: hasAudio}
}

func testGraph() *ffmpeg.Graph {
	return compose.Compose(compose.NewStyle(jobs.Settings{Quality: "720p"}, compose.Fonts{}, ""))
}

func TestCommand(t *testing.T) {
	chunk := testChunk(t, true)
	args := strings.Join(Command(chunk, Encoding{FPS: 30, MaxBitrate: "8M", KeyframeInterval: 30 * time.Second}).Build(), " ")

	assert.Contains(t, args, "-filter_complex_script "+filepath.Join(chunk.Dir, "graph.txt"))
	assert.Contains(t, args, "-map [vout] -map 0:a:0?")
	assert.Contains(t, args, "-c:v libx264")
	assert.Contains(t, args, "-force_key_frames expr:gte(t,n_forced*30.000)")
	assert.Contains(t, args, "-c:a aac")
	assert.True(t, strings.HasSuffix(args, filepath.Join(chunk.Dir, "processed.mp4")))

	silent := strings.Join(Command(testChunk(t, false), Encoding{FPS: 30}).Build(), " ")
	assert.NotContains(t, silent, "0:a")
	assert.NotContains(t, silent, "-c:a")
	assert.NotContains(t, silent, "-maxrate")
}

func TestTransform(t *testing.T) {
	chunk := testChunk(t, true)
	e := NewExecutor(time.Minute, media.NewProberWith(func(context.Context, string) (*ffmpeg.ProbeResult, error) {
		return &ffmpeg.ProbeResult{Duration: 61.9, FPS: 30}, nil
	}))
	e.run = func(ctx context.Context, cmd *ffmpeg.Command) error {
		return os.WriteFile(cmd.Output(), []byte("video"), 0o644)
	}

	g := testGraph()
	tc, err := e.Transform(context.Background(), chunk, g, Encoding{FPS: 30})
	require.NoError(t, err)
	assert.Equal(t, OutputPath(chunk), tc.Path)
	assert.Equal(t, 61.9, tc.Duration)
	assert.Equal(t, chunk, tc.Chunk)

	script, err := os.ReadFile(GraphPath(chunk))
	require.NoError(t, err)
	assert.Equal(t, g.String(), string(script))
}

func TestTransform_DegradedProbeKeepsChunkDuration(t *testing.T) {
	chunk := testChunk(t, false)
	e := NewExecutor(time.Minute, media.NewProberWith(func(context.Context, string) (*ffmpeg.ProbeResult, error) {
		return nil, errors.New("unreadable")
	}))
	e.run = func(ctx context.Context, cmd *ffmpeg.Command) error { return nil }

	tc, err := e.Transform(context.Background(), chunk, testGraph(), Encoding{FPS: 30})
	require.NoError(t, err)
	assert.Equal(t, 62.0, tc.Duration)
}

func TestTransform_Failures(t *testing.T) {
	prober := media.NewProberWith(func(context.Context, string) (*ffmpeg.ProbeResult, error) { return nil, nil })

	t.Run("non-zero exit is permanent", func(t *testing.T) {
		e := NewExecutor(time.Minute, prober)
		e.run = func(ctx context.Context, cmd *ffmpeg.Command) error {
			return &ffmpeg.Error{Stderr: "Invalid argument", Err: errors.New("exit status 1")}
		}
		_, err := e.Transform(context.Background(), testChunk(t, true), testGraph(), Encoding{FPS: 30})
		require.Error(t, err)
		assert.Equal(t, jobs.KindTransformFailure, jobs.KindOf(err))
		assert.False(t, jobs.Retryable(err))
	})

	t.Run("timeout is transient", func(t *testing.T) {
		e := NewExecutor(10*time.Millisecond, prober)
		e.run = func(ctx context.Context, cmd *ffmpeg.Command) error {
			<-ctx.Done()
			return &ffmpeg.Error{Err: errors.New("signal: killed"), TimedOut: true}
		}
		_, err := e.Transform(context.Background(), testChunk(t, true), testGraph(), Encoding{FPS: 30})
		require.Error(t, err)
		assert.Equal(t, jobs.KindTransformFailure, jobs.KindOf(err))
		assert.True(t, jobs.Retryable(err))
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("cancellation passes through", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		e := NewExecutor(time.Minute, prober)
		e.run = func(ctx context.Context, cmd *ffmpeg.Command) error {
			cancel()
			return errors.New("killed")
		}
		_, err := e.Transform(ctx, testChunk(t, true), testGraph(), Encoding{FPS: 30})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
