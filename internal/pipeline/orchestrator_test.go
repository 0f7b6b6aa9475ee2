package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/shorts/internal/jobs"
	"thirdcoast.systems/shorts/internal/media"
	"thirdcoast.systems/shorts/internal/sink"
)

type harness struct {
	store       *memStore
	fetcher     *fakeFetcher
	transformer *fakeTransformer
	notifier    *recordingNotifier
	orch        *Orchestrator
	exportDir   string
}

func newHarness(t *testing.T, duration float64) *harness {
	t.Helper()
	h := &harness{
		store:       newMemStore(),
		fetcher:     &fakeFetcher{duration: duration},
		transformer: &fakeTransformer{},
		notifier:    &recordingNotifier{},
		exportDir:   t.TempDir(),
	}
	h.orch = &Orchestrator{
		Store:       h.store,
		Fetcher:     h.fetcher,
		Prober:      fakeProber{info: media.Info{Duration: duration, FPS: 30, HasAudio: true}},
		Splitter:    planSplitter{threshold: 300},
		Captions:    fallbackCaptions{},
		Transformer: h.transformer,
		Cutter:      fileCutter{minFragment: 15},
		Sink:        sink.NewLocalSink(h.exportDir, "https://cdn.example.com"),
		Notifier:    h.notifier,
		Options: Options{
			WorkDir:          t.TempDir(),
			WorkerID:         "worker-test",
			Limits:           jobs.FragmentLimits{Min: 15, Max: 60, Default: 30},
			FPS:              30,
			ChunkParallelism: 1,
			Retry:            RetryPolicy{MaxRetries: 2, Retryable: jobs.Retryable},
		},
	}
	return h
}

func (h *harness) enqueue(settings jobs.Settings) uuid.UUID {
	return h.store.add(jobs.Job{UserRef: "user-1", SourceRef: "https://example.com/v", Settings: settings})
}

var defaultSettings = jobs.Settings{FragmentDuration: 30, Quality: "1080p", SubtitlesEnabled: true, Title: "Demo"}

func seq(from, to int) []int {
	var out []int
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestRun_Completes(t *testing.T) {
	h := newHarness(t, 620)
	id := h.enqueue(defaultSettings)

	out, err := h.orch.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, out.Status)
	// 300s -> 10, 300s -> 10, 20s -> 1.
	assert.Equal(t, 21, out.Fragments)
	assert.Equal(t, seq(1, 21), h.store.fragmentNumbers())

	job := h.store.get(id)
	assert.Equal(t, jobs.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "Source title", job.SourceTitle)
	assert.Equal(t, "worker-test", job.WorkerID)
	assert.Equal(t, []jobs.Status{
		jobs.StatusDownloading,
		jobs.StatusProcessing,
		jobs.StatusProcessing,
		jobs.StatusUploading,
		jobs.StatusCompleted,
	}, h.store.history)

	last := h.store.fragments[20]
	assert.Equal(t, 600.0, last.StartTime)
	assert.Equal(t, 20.0, last.Duration)
	assert.Equal(t, "https://cdn.example.com/"+id.String()+"/fragment_021.mp4", last.ExternalLink)
	assert.FileExists(t, filepath.Join(h.exportDir, id.String(), "fragment_021.mp4"))

	assert.Equal(t, []int{21}, h.notifier.completed)
	assert.NoDirExists(t, filepath.Join(h.orch.Options.WorkDir, id.String()))
	assert.NoFileExists(t, filepath.Join(h.orch.Options.WorkDir, id.String()+".lock"))
}

func TestRun_TerminalJobIsNoop(t *testing.T) {
	for _, status := range []jobs.Status{jobs.StatusCompleted, jobs.StatusFailed, jobs.StatusProcessing} {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness(t, 60)
			id := h.store.add(jobs.Job{SourceRef: "x", Status: status, Progress: 42})

			out, err := h.orch.Run(context.Background(), id)
			assert.ErrorIs(t, err, jobs.ErrDuplicateExecution)
			assert.Equal(t, status, out.Status)
			assert.Zero(t, h.fetcher.calls)
			assert.Empty(t, h.store.history)
			assert.Equal(t, 42, h.store.get(id).Progress)
			assert.Empty(t, h.notifier.completed)
			assert.Empty(t, h.notifier.failed)
		})
	}
}

func TestRun_SecondRunAfterCompletion(t *testing.T) {
	h := newHarness(t, 50)
	id := h.enqueue(defaultSettings)

	_, err := h.orch.Run(context.Background(), id)
	require.NoError(t, err)
	frags := len(h.store.fragments)

	out, err := h.orch.Run(context.Background(), id)
	assert.ErrorIs(t, err, jobs.ErrDuplicateExecution)
	assert.Equal(t, jobs.StatusCompleted, out.Status)
	assert.Len(t, h.store.fragments, frags)
	assert.Equal(t, 1, h.fetcher.calls)
}

func TestRun_LockedJobIsDuplicate(t *testing.T) {
	h := newHarness(t, 50)
	id := h.enqueue(defaultSettings)

	held := flock.New(filepath.Join(h.orch.Options.WorkDir, id.String()+".lock"))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	out, err := h.orch.Run(context.Background(), id)
	assert.ErrorIs(t, err, jobs.ErrDuplicateExecution)
	assert.Equal(t, jobs.StatusPending, out.Status)
	assert.Zero(t, h.fetcher.calls)
	assert.Equal(t, jobs.StatusPending, h.store.get(id).Status)
}

func TestRun_AllChunksFail(t *testing.T) {
	h := newHarness(t, 620)
	h.transformer.fail = map[int]error{
		1: jobs.Errorf(jobs.KindTransformFailure, "chunk 1: exit status 1"),
		2: jobs.Errorf(jobs.KindTransformFailure, "chunk 2: exit status 1"),
		3: jobs.Errorf(jobs.KindTransformFailure, "chunk 3: exit status 1"),
	}
	id := h.enqueue(defaultSettings)

	out, err := h.orch.Run(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, jobs.StatusFailed, out.Status)
	assert.Equal(t, jobs.KindTransformFailure, jobs.KindOf(err))

	job := h.store.get(id)
	assert.Equal(t, jobs.StatusFailed, job.Status)
	assert.Equal(t, "transform failed: all 3 chunks failed: chunk 1: exit status 1", job.ErrorMessage)
	assert.Empty(t, h.store.fragments)
	assert.Len(t, h.notifier.failed, 1)
	assert.NoDirExists(t, filepath.Join(h.orch.Options.WorkDir, id.String()))
	// Permanent failures are not retried.
	assert.Equal(t, 1, h.transformer.calls[1])
}

func TestRun_PartialChunkFailure(t *testing.T) {
	h := newHarness(t, 620)
	h.transformer.fail = map[int]error{2: jobs.Errorf(jobs.KindTransformFailure, "chunk 2: exit status 1")}
	id := h.enqueue(defaultSettings)

	out, err := h.orch.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, out.Status)
	assert.Equal(t, 11, out.Fragments)
	assert.Equal(t, seq(1, 11), h.store.fragmentNumbers())
	for _, f := range h.store.fragments {
		assert.NotEqual(t, 2, f.ChunkIndex)
	}
}

func TestRun_TransientTransformRetried(t *testing.T) {
	h := newHarness(t, 60)
	timeout := jobs.Errorf(jobs.KindTransformFailure, "chunk 1 timed out")
	timeout.Transient = true
	h.transformer.fail = map[int]error{1: timeout}
	id := h.enqueue(defaultSettings)

	_, err := h.orch.Run(context.Background(), id)
	require.Error(t, err)
	assert.Equal(t, 3, h.transformer.calls[1])
	assert.Equal(t, jobs.StatusFailed, h.store.get(id).Status)
}

func TestRun_ParallelChunksKeepNumbering(t *testing.T) {
	h := newHarness(t, 1290)
	h.orch.Options.ChunkParallelism = 3
	id := h.enqueue(jobs.Settings{FragmentDuration: 60})

	out, err := h.orch.Run(context.Background(), id)
	require.NoError(t, err)
	// 4 x 300s -> 5 each, 90s -> 60 + 30.
	assert.Equal(t, 22, out.Fragments)
	assert.Equal(t, seq(1, 22), h.store.fragmentNumbers())
	for i := 1; i < len(h.store.fragments); i++ {
		assert.LessOrEqual(t, h.store.fragments[i-1].ChunkIndex, h.store.fragments[i].ChunkIndex)
	}
}

func TestRun_FetchRetries(t *testing.T) {
	transient := jobs.Errorf(jobs.KindTransientFetch, "connection reset")

	t.Run("transient then success", func(t *testing.T) {
		h := newHarness(t, 50)
		h.fetcher.errs = []error{transient, transient}
		id := h.enqueue(defaultSettings)

		out, err := h.orch.Run(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, jobs.StatusCompleted, out.Status)
		assert.Equal(t, 3, h.fetcher.calls)
		assert.Equal(t, 2, out.Fragments)
	})

	t.Run("retries exhausted", func(t *testing.T) {
		h := newHarness(t, 50)
		h.fetcher.errs = []error{transient, transient, transient, transient}
		id := h.enqueue(defaultSettings)

		_, err := h.orch.Run(context.Background(), id)
		require.Error(t, err)
		assert.Equal(t, 3, h.fetcher.calls)
		assert.Equal(t, "download failed: connection reset", h.store.get(id).ErrorMessage)
	})

	t.Run("permanent fails immediately", func(t *testing.T) {
		h := newHarness(t, 50)
		h.fetcher.errs = []error{jobs.Errorf(jobs.KindSourceUnavailable, "Private video")}
		id := h.enqueue(defaultSettings)

		out, err := h.orch.Run(context.Background(), id)
		require.Error(t, err)
		assert.Equal(t, jobs.StatusFailed, out.Status)
		assert.Equal(t, 1, h.fetcher.calls)
		assert.Equal(t, "source unavailable: Private video", h.store.get(id).ErrorMessage)
		assert.Equal(t, []jobs.Status{jobs.StatusDownloading, jobs.StatusFailed}, h.store.history)
	})
}

func TestRun_CancelledMidRun(t *testing.T) {
	h := newHarness(t, 620)
	id := h.enqueue(defaultSettings)
	h.transformer.before = func(c jobs.Chunk) {
		if c.Index == 1 {
			assert.NoError(t, Cancel(context.Background(), h.store, id))
		}
	}

	out, err := h.orch.Run(context.Background(), id)
	assert.ErrorIs(t, err, jobs.ErrTerminal)
	assert.Equal(t, jobs.StatusFailed, out.Status)

	job := h.store.get(id)
	assert.Equal(t, "cancelled", job.ErrorMessage)
	assert.Empty(t, h.store.fragments)
	assert.Zero(t, h.transformer.calls[2])
	assert.Empty(t, h.notifier.failed)
}

func TestRun_CancelledDuringLastChunk(t *testing.T) {
	h := newHarness(t, 50)
	id := h.enqueue(defaultSettings)
	h.transformer.before = func(c jobs.Chunk) {
		assert.NoError(t, Cancel(context.Background(), h.store, id))
	}

	out, err := h.orch.Run(context.Background(), id)
	assert.ErrorIs(t, err, jobs.ErrTerminal)
	assert.Equal(t, jobs.StatusFailed, out.Status)
	assert.Equal(t, 1, h.transformer.calls[0])

	job := h.store.get(id)
	assert.Equal(t, "cancelled", job.ErrorMessage)
	assert.Empty(t, h.store.fragments)
	assert.Empty(t, h.notifier.failed)
	assert.Empty(t, h.notifier.completed)
}

func TestRun_CancelledDuringCutSkipsPublish(t *testing.T) {
	h := newHarness(t, 50)
	id := h.enqueue(defaultSettings)
	h.orch.Cutter = hookCutter{Cutter: h.orch.Cutter, after: func() {
		assert.NoError(t, Cancel(context.Background(), h.store, id))
	}}

	out, err := h.orch.Run(context.Background(), id)
	assert.ErrorIs(t, err, jobs.ErrTerminal)
	assert.Equal(t, jobs.StatusFailed, out.Status)
	assert.NoDirExists(t, filepath.Join(h.exportDir, id.String()))
	assert.Empty(t, h.notifier.completed)
}

func TestRun_SinkFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, 50)
	h.orch.Sink = failingSink{}
	h.notifier.err = errors.New("ntfy down")
	id := h.enqueue(defaultSettings)

	out, err := h.orch.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCompleted, out.Status)
	for _, f := range h.store.fragments {
		assert.Empty(t, f.ExternalLink)
	}
}

func TestRun_ShortSourceSingleFragment(t *testing.T) {
	h := newHarness(t, 8)
	id := h.enqueue(defaultSettings)

	out, err := h.orch.Run(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 1, out.Fragments)
	assert.Equal(t, 8.0, h.store.fragments[0].Duration)
}

func TestRun_DegradedProbeUsesFetchedDuration(t *testing.T) {
	h := newHarness(t, 50)
	h.orch.Prober = fakeProber{info: media.Info{FPS: media.DefaultFPS, Degraded: true}}
	id := h.enqueue(defaultSettings)

	out, err := h.orch.Run(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Fragments)
}

func TestCancel(t *testing.T) {
	store := newMemStore()
	done := store.add(jobs.Job{Status: jobs.StatusCompleted})
	require.NoError(t, Cancel(context.Background(), store, done))
	assert.Equal(t, jobs.StatusCompleted, store.get(done).Status)

	pending := store.add(jobs.Job{})
	require.NoError(t, Cancel(context.Background(), store, pending))
	assert.Equal(t, jobs.StatusFailed, store.get(pending).Status)
	assert.Equal(t, "cancelled", store.get(pending).ErrorMessage)
}

func TestSweeper(t *testing.T) {
	store := newMemStore()
	old := store.add(jobs.Job{Status: jobs.StatusProcessing})
	store.jobs[old].CreatedAt = time.Now().Add(-4 * time.Hour)
	fresh := store.add(jobs.Job{})
	finished := store.add(jobs.Job{Status: jobs.StatusCompleted})
	store.jobs[finished].CreatedAt = time.Now().Add(-4 * time.Hour)

	s := &Sweeper{Store: store, MaxAge: 3 * time.Hour, Interval: time.Minute}
	ids, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{old}, ids)
	assert.Equal(t, jobs.StatusFailed, store.get(old).Status)
	assert.True(t, strings.HasPrefix(store.get(old).ErrorMessage, "internal error: job did not finish within 3h0m0s"))
	assert.Equal(t, jobs.StatusPending, store.get(fresh).Status)
	assert.Equal(t, jobs.StatusCompleted, store.get(finished).Status)
}

func TestCleanWorkDir(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, uuid.NewString())
	recent := filepath.Join(root, uuid.NewString())
	require.NoError(t, os.MkdirAll(old, 0o755))
	require.NoError(t, os.MkdirAll(recent, 0o755))
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	n, err := CleanWorkDir(root, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoDirExists(t, old)
	assert.DirExists(t, recent)

	n, err = CleanWorkDir(filepath.Join(root, "missing"), time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}
