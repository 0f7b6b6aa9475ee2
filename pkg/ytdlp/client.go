// Package ytdlp wraps the yt-dlp command line for metadata lookups and downloads.
package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// streamWriter forwards each output line to a callback while buffering the whole stream.
type streamWriter struct {
	stream   string
	callback func(stream string, line string)
	buffer   *bytes.Buffer
	pending  []byte
}

func (w *streamWriter) Write(p []byte) (n int, err error) {
	if w.buffer != nil {
		w.buffer.Write(p)
	}
	w.pending = append(w.pending, p...)

	// Progress lines are redrawn with \r, so both \r and \n end a line.
	for {
		idx := bytes.IndexAny(w.pending, "\r\n")
		if idx < 0 {
			break
		}
		line := string(w.pending[:idx])

		consume := 1
		if w.pending[idx] == '\r' && idx+1 < len(w.pending) && w.pending[idx+1] == '\n' {
			consume = 2
		}
		w.pending = w.pending[idx+consume:]

		if trimmed := strings.TrimSpace(line); trimmed != "" && w.callback != nil {
			w.callback(w.stream, trimmed)
		}
	}
	return len(p), nil
}

// ExecError describes a failed yt-dlp invocation.
type ExecError struct {
	Cmd      string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Cause    error
}

func (e *ExecError) Error() string {
	msg := lastErrorLine(e.Stderr)
	if msg == "" {
		msg = strings.TrimSpace(e.Cmd + " " + strings.Join(e.Args, " "))
	}
	if e.ExitCode != 0 {
		return fmt.Sprintf("ytdlp: command failed (exit %d): %s", e.ExitCode, msg)
	}
	return fmt.Sprintf("ytdlp: command failed: %s", msg)
}

func (e *ExecError) Unwrap() error { return e.Cause }

// Client runs yt-dlp.
type Client struct {
	// Path to the yt-dlp executable. Defaults to "yt-dlp" (PATH lookup).
	Path string

	// ExtraArgs are always prepended to per-call args.
	ExtraArgs []string

	// LogCallback receives each line of stdout/stderr output.
	LogCallback func(stream string, line string)

	execFn func(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// New returns a client using yt-dlp from PATH.
func New() *Client {
	return &Client{Path: "yt-dlp"}
}

// PathOrDefault returns the configured path or "yt-dlp" if unset.
func (c *Client) PathOrDefault() string {
	if strings.TrimSpace(c.Path) == "" {
		return "yt-dlp"
	}
	return c.Path
}

func (c *Client) exec(ctx context.Context, args ...string) ([]byte, []byte, error) {
	name := c.PathOrDefault()

	fullArgs := make([]string, 0, len(c.ExtraArgs)+len(args)+1)
	fullArgs = append(fullArgs, c.ExtraArgs...)
	if c.LogCallback != nil {
		fullArgs = append(fullArgs, "--newline")
	}
	fullArgs = append(fullArgs, args...)

	if c.execFn != nil {
		return c.execFn(ctx, name, fullArgs...)
	}

	slog.Debug("ytdlp: executing", "cmd", name, "args", fullArgs)
	cmd := exec.CommandContext(ctx, name, fullArgs...)
	var outBuf, errBuf bytes.Buffer
	if c.LogCallback != nil {
		cmd.Stdout = &streamWriter{stream: "stdout", callback: c.LogCallback, buffer: &outBuf}
		cmd.Stderr = &streamWriter{stream: "stderr", callback: c.LogCallback, buffer: &errBuf}
	} else {
		cmd.Stdout = &outBuf
		cmd.Stderr = &errBuf
	}

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Version returns `yt-dlp --version`.
func (c *Client) Version(ctx context.Context) (string, error) {
	args := []string{"--version"}
	stdout, stderr, err := c.exec(ctx, args...)
	if err != nil {
		return "", wrapExecError(c.PathOrDefault(), args, stdout, stderr, err)
	}
	return strings.TrimSpace(string(stdout)), nil
}

// Info models the subset of yt-dlp JSON metadata the fetcher needs.
type Info struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	WebpageURL     string  `json:"webpage_url"`
	Extractor      string  `json:"extractor"`
	Duration       float64 `json:"duration"`
	IsLive         bool    `json:"is_live"`
	FileSize       int64   `json:"filesize"`
	FileSizeApprox int64   `json:"filesize_approx"`
}

// Size returns the exact or approximate size in bytes, or 0 when unknown.
func (i *Info) Size() int64 {
	if i.FileSize > 0 {
		return i.FileSize
	}
	return i.FileSizeApprox
}

// GetInfo runs yt-dlp in metadata-only mode and parses its JSON output.
func (c *Client) GetInfo(ctx context.Context, url string, extraArgs ...string) (*Info, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("ytdlp: url is required")
	}

	args := []string{"--dump-single-json", "--skip-download", "--no-playlist"}
	args = append(args, extraArgs...)
	args = append(args, url)

	stdout, stderr, err := c.exec(ctx, args...)
	if err != nil {
		return nil, wrapExecError(c.PathOrDefault(), args, stdout, stderr, err)
	}

	info := &Info{}
	if err := json.Unmarshal(bytes.TrimSpace(stdout), info); err != nil {
		return nil, fmt.Errorf("ytdlp: parse json: %w", err)
	}
	return info, nil
}

func wrapExecError(cmd string, args []string, stdout []byte, stderr []byte, cause error) error {
	exitCode := 0
	var ee *exec.ExitError
	if errors.As(cause, &ee) {
		exitCode = ee.ExitCode()
	}

	return &ExecError{
		Cmd:      cmd,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   strings.TrimSpace(string(stdout)),
		Stderr:   strings.TrimSpace(string(stderr)),
		Cause:    cause,
	}
}

// lastErrorLine returns the last "ERROR:" line of yt-dlp output, or the last line.
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); strings.HasPrefix(l, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(l, "ERROR:"))
		}
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
