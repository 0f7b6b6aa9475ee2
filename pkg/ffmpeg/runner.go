package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Binary is the ffmpeg executable resolved via PATH.
var Binary = "ffmpeg"

// Process represents a running ffmpeg process with lifecycle management.
type Process struct {
	cmd    *exec.Cmd
	ctx    context.Context
	pid    int
	done   chan struct{}
	err    error
	stderr bytes.Buffer
}

// PID returns the process ID, or 0 if not started.
func (p *Process) PID() int {
	return p.pid
}

// Wait blocks until the process completes and returns any error.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Kill sends SIGKILL to the process.
func (p *Process) Kill() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Done returns a channel that closes when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Stderr returns the captured stderr output (available after Wait).
func (p *Process) Stderr() string {
	return p.stderr.String()
}

// Start starts an ffmpeg process. The process is killed when ctx is done.
// When progress is non-nil it receives -progress updates and is closed on exit.
func Start(ctx context.Context, args []string, progress chan<- Progress) (*Process, error) {
	cmd := exec.CommandContext(ctx, Binary, args...)

	p := &Process{
		cmd:  cmd,
		ctx:  ctx,
		done: make(chan struct{}),
	}
	cmd.Stderr = &p.stderr

	var scanner *bufio.Scanner
	if progress != nil {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg: stdout pipe: %w", err)
		}
		scanner = bufio.NewScanner(stdout)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg: start: %w", err)
	}
	p.pid = cmd.Process.Pid

	go func() {
		defer close(p.done)
		if scanner != nil {
			ParseProgressOutput(scanner, progress)
			close(progress)
		}
		if err := cmd.Wait(); err != nil {
			p.err = &Error{
				Args:     args,
				Stderr:   p.stderr.String(),
				Err:      err,
				TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
			}
		}
	}()

	return p, nil
}

func run(ctx context.Context, args []string, progress chan<- Progress) error {
	proc, err := Start(ctx, args, progress)
	if err != nil {
		return err
	}
	return proc.Wait()
}

// Error represents an ffmpeg execution error with context.
type Error struct {
	Args   []string
	Stderr string
	Err    error
	// TimedOut is set when the process was killed by its context deadline.
	TimedOut bool
}

// Error implements error.
func (e *Error) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("ffmpeg: timed out: %v", e.Err)
	}
	if tail := e.Tail(3); tail != "" {
		return fmt.Sprintf("ffmpeg: %v: %s", e.Err, tail)
	}
	return fmt.Sprintf("ffmpeg: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Tail returns the last n non-empty lines of stderr.
func (e *Error) Tail(n int) string {
	trimmed := strings.TrimSpace(e.Stderr)
	if trimmed == "" {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// Command returns the command line that was executed.
func (e *Error) Command() string {
	return Binary + " " + strings.Join(e.Args, " ")
}
