// Package source resolves a job's source reference to a local media file.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"thirdcoast.systems/shorts/internal/jobs"
	"thirdcoast.systems/shorts/internal/media"
	"thirdcoast.systems/shorts/pkg/ytdlp"
)

// Result is a fetched source ready for processing.
type Result struct {
	Path     string
	Duration float64
	Title    string
	Size     int64
	// Owned is true when Path lives in the job directory and may be deleted with it.
	Owned bool
}

// Downloader is the subset of *ytdlp.Client the fetcher uses.
type Downloader interface {
	GetInfo(ctx context.Context, url string, extraArgs ...string) (*ytdlp.Info, error)
	Download(ctx context.Context, url, destDir string, opts ytdlp.DownloadOptions) (string, error)
}

// Limits are the source ceilings. Zero disables a check.
type Limits struct {
	MaxBytes    uint64
	MaxDuration time.Duration
}

// Fetcher downloads remote sources with yt-dlp and accepts local files as-is.
type Fetcher struct {
	Downloader Downloader
	Prober     *media.Prober
	Limits     Limits
	// Timeout bounds a single fetch attempt.
	Timeout time.Duration
}

func NewFetcher(d Downloader, prober *media.Prober, limits Limits, timeout time.Duration) *Fetcher {
	return &Fetcher{Downloader: d, Prober: prober, Limits: limits, Timeout: timeout}
}

// IsRemote reports whether ref should be fetched over the network.
func IsRemote(ref string) bool {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Fetch makes sourceRef available locally under destDir. Errors are *jobs.Error
// with KindSourceUnavailable, KindSourceTooLarge or KindTransientFetch.
func (f *Fetcher) Fetch(ctx context.Context, sourceRef, destDir string) (*Result, error) {
	ref := strings.TrimSpace(sourceRef)
	if ref == "" {
		return nil, jobs.Errorf(jobs.KindSourceUnavailable, "empty source reference")
	}

	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	if !IsRemote(ref) {
		return f.local(ctx, strings.TrimPrefix(ref, "file://"))
	}
	return f.remote(ctx, ref, destDir)
}

func (f *Fetcher) local(ctx context.Context, path string) (*Result, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, jobs.Errorf(jobs.KindSourceUnavailable, "%s: %w", path, err)
	}
	if st.IsDir() {
		return nil, jobs.Errorf(jobs.KindSourceUnavailable, "%s is a directory", path)
	}
	res := &Result{Path: path, Size: st.Size(), Title: strings.TrimSuffix(st.Name(), filepath.Ext(st.Name()))}
	if err := f.checkSize(res.Size); err != nil {
		return nil, err
	}
	res.Duration = f.Prober.Probe(ctx, path).Duration
	if err := f.checkDuration(res.Duration); err != nil {
		return nil, err
	}
	return res, nil
}

func (f *Fetcher) remote(ctx context.Context, ref, destDir string) (*Result, error) {
	info, err := f.Downloader.GetInfo(ctx, ref)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if info.IsLive {
		return nil, jobs.Errorf(jobs.KindSourceUnavailable, "live streams are not supported")
	}
	if err := f.checkDuration(info.Duration); err != nil {
		return nil, err
	}
	if size := info.Size(); size > 0 {
		if err := f.checkSize(size); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, jobs.Errorf(jobs.KindInternal, "create source dir: %w", err)
	}

	start := time.Now()
	path, err := f.Downloader.Download(ctx, ref, destDir, ytdlp.DownloadOptions{MaxFileSize: int64(f.Limits.MaxBytes)})
	if err != nil {
		return nil, classify(ctx, err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, jobs.Errorf(jobs.KindTransientFetch, "downloaded file missing: %w", err)
	}
	res := &Result{Path: path, Title: info.Title, Size: st.Size(), Duration: info.Duration, Owned: true}
	slog.Info("source downloaded", "url", ref, "size", humanize.Bytes(uint64(res.Size)), "elapsed", time.Since(start))

	if err := f.checkSize(res.Size); err != nil {
		return nil, err
	}
	if probed := f.Prober.Probe(ctx, path); probed.Duration > 0 {
		res.Duration = probed.Duration
	}
	if err := f.checkDuration(res.Duration); err != nil {
		return nil, err
	}
	return res, nil
}

func (f *Fetcher) checkSize(size int64) error {
	if f.Limits.MaxBytes > 0 && size > 0 && uint64(size) > f.Limits.MaxBytes {
		return jobs.Errorf(jobs.KindSourceTooLarge, "%s exceeds the %s limit",
			humanize.Bytes(uint64(size)), humanize.Bytes(f.Limits.MaxBytes))
	}
	return nil
}

func (f *Fetcher) checkDuration(seconds float64) error {
	if f.Limits.MaxDuration > 0 && seconds > f.Limits.MaxDuration.Seconds() {
		return jobs.Errorf(jobs.KindSourceTooLarge, "duration %s exceeds the %s limit",
			time.Duration(seconds*float64(time.Second)).Round(time.Second), f.Limits.MaxDuration)
	}
	return nil
}

// classify maps yt-dlp failures onto the job taxonomy. Unrecognized failures
// are permanent.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	reason := ytdlp.Reason(err)
	switch ytdlp.Classify(err) {
	case ytdlp.ClassTooLarge:
		return &jobs.Error{Kind: jobs.KindSourceTooLarge, Msg: reason, Err: err}
	case ytdlp.ClassTransient:
		return &jobs.Error{Kind: jobs.KindTransientFetch, Msg: reason, Err: err}
	case ytdlp.ClassUnavailable:
		return &jobs.Error{Kind: jobs.KindSourceUnavailable, Msg: reason, Err: err}
	default:
		return &jobs.Error{Kind: jobs.KindSourceUnavailable, Msg: fmt.Sprintf("fetch failed: %s", reason), Err: err}
	}
}
