package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
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

type memStore struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*jobs.Job
	fragments []*jobs.Fragment
	history   []jobs.Status
}

func newMemStore() *memStore {
	return &memStore{jobs: map[uuid.UUID]*jobs.Job{}}
}

func (s *memStore) add(j jobs.Job) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.Status == "" {
		j.Status = jobs.StatusPending
	}
	j.CreatedAt = time.Now()
	s.jobs[j.ID] = &j
	return j.ID
}

func (s *memStore) get(id uuid.UUID) jobs.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *memStore) GetJob(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, jobs.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *memStore) ClaimJob(ctx context.Context, id uuid.UUID, workerID string) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	if j == nil || j.Status != jobs.StatusPending {
		return nil, jobs.ErrDuplicateExecution
	}
	j.Status = jobs.StatusDownloading
	j.Progress = jobs.ProgressDownloading
	j.WorkerID = workerID
	s.history = append(s.history, j.Status)
	cp := *j
	return &cp, nil
}

func (s *memStore) UpdateProgress(ctx context.Context, id uuid.UUID, status jobs.Status, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	if j.Status.Terminal() {
		return jobs.ErrTerminal
	}
	j.Status = status
	j.Progress = max(j.Progress, progress)
	s.history = append(s.history, status)
	return nil
}

func (s *memStore) SetSourceTitle(ctx context.Context, id uuid.UUID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id].SourceTitle = title
	return nil
}

func (s *memStore) InsertFragment(ctx context.Context, f *jobs.Fragment) (*jobs.Fragment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	cp.ID = uuid.New()
	s.fragments = append(s.fragments, &cp)
	out := cp
	return &out, nil
}

func (s *memStore) SetFragmentLink(ctx context.Context, fragmentID uuid.UUID, link string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.fragments {
		if f.ID == fragmentID {
			f.ExternalLink = link
			return nil
		}
	}
	return errors.New("fragment not found")
}

func (s *memStore) Complete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	if j.Status.Terminal() {
		return jobs.ErrTerminal
	}
	j.Status = jobs.StatusCompleted
	j.Progress = jobs.ProgressCompleted
	s.history = append(s.history, j.Status)
	return nil
}

func (s *memStore) Fail(ctx context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status.Terminal() {
		return jobs.ErrTerminal
	}
	j.Status = jobs.StatusFailed
	j.ErrorMessage = message
	s.history = append(s.history, j.Status)
	return nil
}

func (s *memStore) FailStale(ctx context.Context, maxAge time.Duration, message string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, j := range s.jobs {
		if !j.Status.Terminal() && time.Since(j.CreatedAt) > maxAge {
			j.Status = jobs.StatusFailed
			j.ErrorMessage = message
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) fragmentNumbers() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.fragments))
	for i, f := range s.fragments {
		out[i] = f.Number
	}
	return out
}

type fakeFetcher struct {
	mu       sync.Mutex
	errs     []error
	calls    int
	duration float64
}

func (f *fakeFetcher) Fetch(ctx context.Context, sourceRef, destDir string) (*source.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &source.Result{Path: "/src/source.mp4", Duration: f.duration, Title: "Source title"}, nil
}

type fakeProber struct{ info media.Info }

func (p fakeProber) Probe(ctx context.Context, path string) media.Info { return p.info }

// planSplitter slices by plan only and never touches the source.
type planSplitter struct{ threshold float64 }

func (s planSplitter) Split(ctx context.Context, jobDir, src string, info media.Info) ([]jobs.Chunk, []media.ChunkFailure, error) {
	var chunks []jobs.Chunk
	for i, span := range media.PlanChunks(info.Duration, s.threshold) {
		dir := media.ChunkDir(jobDir, i+1)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
		chunks = append(chunks, jobs.Chunk{
			Index:    i + 1,
			Path:     filepath.Join(jobDir, "chunk.mp4"),
			Start:    span.Start,
			Duration: span.Duration,
			Dir:      dir,
			HasAudio: info.HasAudio,
		})
	}
	return chunks, nil, nil
}

type fallbackCaptions struct{}

func (fallbackCaptions) Words(ctx context.Context, chunk jobs.Chunk) []captions.Word {
	return captions.Fallback(chunk.Duration)
}

type fakeTransformer struct {
	mu     sync.Mutex
	fail   map[int]error
	calls  map[int]int
	before func(chunk jobs.Chunk)
}

func (t *fakeTransformer) Transform(ctx context.Context, chunk jobs.Chunk, graph *ffmpeg.Graph, enc transform.Encoding) (jobs.TransformedChunk, error) {
	if t.before != nil {
		t.before(chunk)
	}
	t.mu.Lock()
	if t.calls == nil {
		t.calls = map[int]int{}
	}
	t.calls[chunk.Index]++
	err := t.fail[chunk.Index]
	t.mu.Unlock()
	if err != nil {
		return jobs.TransformedChunk{}, err
	}
	return jobs.TransformedChunk{Chunk: chunk, Path: transform.OutputPath(chunk), Duration: chunk.Duration}, nil
}

// fileCutter plans fragments and writes placeholder files.
type fileCutter struct{ minFragment float64 }

func (c fileCutter) Cut(ctx context.Context, jobID uuid.UUID, tc jobs.TransformedChunk, fragmentLen float64, first int) ([]jobs.Fragment, error) {
	var out []jobs.Fragment
	for i, span := range media.PlanFragments(tc.Duration, fragmentLen, c.minFragment) {
		n := first + i
		p := media.FragmentPath(tc.Chunk.Dir, n)
		if err := os.WriteFile(p, []byte("frag"), 0o644); err != nil {
			return nil, err
		}
		out = append(out, jobs.Fragment{
			JobID: jobID, Number: n, ChunkIndex: tc.Chunk.Index, Path: p,
			StartTime: tc.Chunk.Start + span.Start, Duration: span.Duration, SizeBytes: 4,
		})
	}
	return out, nil
}

type failingSink struct{}

func (failingSink) Upload(ctx context.Context, jobID uuid.UUID, paths []string) []sink.Result {
	out := make([]sink.Result, len(paths))
	for i, p := range paths {
		out[i] = sink.Result{Path: p, Err: errors.New("quota exceeded")}
	}
	return out
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []int
	failed    []string
	err       error
}

func (n *recordingNotifier) NotifyJobCompleted(ctx context.Context, jobID uuid.UUID, userRef string, fragments int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, fragments)
	return n.err
}

func (n *recordingNotifier) NotifyJobFailed(ctx context.Context, jobID uuid.UUID, userRef, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, message)
	return n.err
}

// hookCutter calls after each time a chunk has been cut.
type hookCutter struct {
	Cutter
	after func()
}

func (c hookCutter) Cut(ctx context.Context, jobID uuid.UUID, tc jobs.TransformedChunk, fragmentLen float64, first int) ([]jobs.Fragment, error) {
	out, err := c.Cutter.Cut(ctx, jobID, tc, fragmentLen, first)
	if err == nil && c.after != nil {
		c.after()
	}
	return out, err
}
