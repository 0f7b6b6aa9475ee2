package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNoOutput is returned when yt-dlp exits cleanly without producing a file.
var ErrNoOutput = errors.New("ytdlp: no file produced")

// DownloadOptions bounds a single download.
type DownloadOptions struct {
	// MaxFileSize in bytes; 0 disables the limit.
	MaxFileSize int64
	// Format overrides the default format selector.
	Format string
}

// Download fetches a single video into destDir as source.<ext> and returns the
// final file path reported by yt-dlp.
func (c *Client) Download(ctx context.Context, url, destDir string, opts DownloadOptions) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("ytdlp: url is required")
	}
	if strings.TrimSpace(destDir) == "" {
		return "", fmt.Errorf("ytdlp: destDir is required")
	}

	format := opts.Format
	if format == "" {
		format = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/bestvideo+bestaudio/best"
	}

	args := []string{
		"-o", filepath.Join(destDir, "source.%(ext)s"),
		"--no-playlist",
		"--merge-output-format", "mp4",
		"--no-colors",
		"--no-part",
		"--format", format,
		"--print", "after_move:filepath",
	}
	if opts.MaxFileSize > 0 {
		args = append(args, "--max-filesize", strconv.FormatInt(opts.MaxFileSize, 10))
	}
	args = append(args, url)

	stdout, stderr, err := c.exec(ctx, args...)
	if err != nil {
		return "", wrapExecError(c.PathOrDefault(), args, stdout, stderr, err)
	}

	path := lastLine(string(stdout))
	if path == "" {
		// yt-dlp skips oversized files with a zero exit status.
		return "", wrapExecError(c.PathOrDefault(), args, stdout, stderr, ErrNoOutput)
	}
	return path, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
