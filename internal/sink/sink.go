// Package sink hands finished fragments to their final storage.
package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Result is the outcome for one file, in input order.
type Result struct {
	Path string
	Link string
	Err  error
}

// OK reports whether the file was stored.
func (r Result) OK() bool { return r.Err == nil }

// LocalSink copies fragments into ExportDir/<jobID>/ and links them under PublicBaseURL.
type LocalSink struct {
	ExportDir     string
	PublicBaseURL string
}

func NewLocalSink(exportDir, publicBaseURL string) *LocalSink {
	return &LocalSink{ExportDir: exportDir, PublicBaseURL: publicBaseURL}
}

// Upload stores every path independently; a failure affects only its own result.
func (s *LocalSink) Upload(ctx context.Context, jobID uuid.UUID, paths []string) []Result {
	results := make([]Result, len(paths))
	dir := filepath.Join(s.ExportDir, jobID.String())
	mkErr := os.MkdirAll(dir, 0o755)

	for i, p := range paths {
		results[i].Path = p
		switch {
		case mkErr != nil:
			results[i].Err = fmt.Errorf("create export dir: %w", mkErr)
		case ctx.Err() != nil:
			results[i].Err = ctx.Err()
		default:
			name := filepath.Base(p)
			if err := copyFile(p, filepath.Join(dir, name)); err != nil {
				results[i].Err = err
				break
			}
			results[i].Link = s.link(jobID, name)
		}
		if results[i].Err != nil {
			slog.Warn("fragment upload failed", "job_id", jobID, "path", p, "error", results[i].Err)
		}
	}
	return results
}

func (s *LocalSink) link(jobID uuid.UUID, name string) string {
	if s.PublicBaseURL == "" {
		return filepath.Join(s.ExportDir, jobID.String(), name)
	}
	link, err := url.JoinPath(s.PublicBaseURL, jobID.String(), name)
	if err != nil {
		return filepath.Join(s.ExportDir, jobID.String(), name)
	}
	return link
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open fragment: %w", err)
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy fragment: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close export file: %w", err)
	}
	return os.Rename(tmp, dst)
}
