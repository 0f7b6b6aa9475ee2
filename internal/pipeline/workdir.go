package pipeline

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CleanWorkDir removes job directories under root that were last modified
// more than maxAge ago. Left behind when a worker dies mid-job.
func CleanWorkDir(root string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		p := filepath.Join(root, e.Name())
		if err := os.RemoveAll(p); err != nil {
			slog.Warn("failed to remove old work dir", "path", p, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
