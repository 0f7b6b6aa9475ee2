// Package ffmpeg provides a composable API for building and executing ffmpeg commands.
package ffmpeg

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Command represents an ffmpeg command being built.
type Command struct {
	input       string
	output      string
	preInput    []string // args before -i (input seeking)
	postInput   []string // codec/output args after stream mapping
	graph       string   // inline -filter_complex
	graphScript string   // -filter_complex_script path
	maps        []string // -map specs, in order
}

// Option modifies a Command. Options are composable and order-independent
// with respect to argument placement.
type Option interface {
	Apply(cmd *Command)
}

// OptionFunc is a function that implements Option.
type OptionFunc func(cmd *Command)

// Apply implements Option.
func (f OptionFunc) Apply(cmd *Command) { f(cmd) }

// NewCommand creates a command with input/output and applies options.
func NewCommand(input, output string, opts ...Option) *Command {
	cmd := &Command{
		input:  input,
		output: output,
	}
	for _, opt := range opts {
		opt.Apply(cmd)
	}
	return cmd
}

// Input returns the command's input path.
func (c *Command) Input() string { return c.input }

// Output returns the command's output path.
func (c *Command) Output() string { return c.output }

// Build returns the complete ffmpeg argument list.
func (c *Command) Build() []string {
	args := []string{"-hide_banner", "-y"}
	args = append(args, c.preInput...)
	args = append(args, "-i", c.input)

	switch {
	case c.graphScript != "":
		args = append(args, "-filter_complex_script", c.graphScript)
	case c.graph != "":
		args = append(args, "-filter_complex", c.graph)
	}
	for _, m := range c.maps {
		args = append(args, "-map", m)
	}

	args = append(args, c.postInput...)

	ext := strings.ToLower(filepath.Ext(c.output))
	if ext == ".mp4" || ext == ".m4a" || ext == ".mov" {
		args = append(args, "-movflags", "+faststart")
	}

	return append(args, c.output)
}

// Run executes the ffmpeg command.
func (c *Command) Run(ctx context.Context) error {
	return run(ctx, c.Build(), nil)
}

// Start starts the command and returns a Process handle for lifecycle management.
// The caller is responsible for calling Wait() or Kill() to clean up.
func (c *Command) Start(ctx context.Context) (*Process, error) {
	return Start(ctx, c.Build(), nil)
}

// StartWithProgress starts the command with -progress reporting on stdout.
func (c *Command) StartWithProgress(ctx context.Context, progress chan<- Progress) (*Process, error) {
	args := c.Build()
	withProgress := []string{args[0], args[1], "-progress", "pipe:1", "-nostats"}
	withProgress = append(withProgress, args[2:]...)
	return Start(ctx, withProgress, progress)
}

// Run executes the ffmpeg command with the given options.
func Run(ctx context.Context, input, output string, opts ...Option) error {
	return NewCommand(input, output, opts...).Run(ctx)
}

// --- Seeking ---

// Seek sets the start position (input seeking, before -i).
func Seek(start time.Duration) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.preInput = append(cmd.preInput, "-ss", formatDuration(start))
	})
}

// Duration limits the output duration (-t).
func Duration(d time.Duration) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-t", formatDuration(d))
	})
}

// Seconds converts fractional seconds to a time.Duration with millisecond precision.
func Seconds(s float64) time.Duration {
	return time.Duration(s*1000) * time.Millisecond
}

// --- Video ---

// VideoCodec sets the video codec (-c:v).
func VideoCodec(codec string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-c:v", codec)
	})
}

// CRF sets the constant rate factor.
func CRF(value int) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-crf", itoa(value))
	})
}

// Preset sets the encoder preset (ultrafast, fast, medium, ...).
func Preset(name string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-preset", name)
	})
}

// PixelFormat sets the pixel format (-pix_fmt).
func PixelFormat(fmt string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-pix_fmt", fmt)
	})
}

// MaxBitrate caps the video bitrate (-maxrate/-bufsize at twice the rate).
func MaxBitrate(rate string, bufsize string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-maxrate", rate, "-bufsize", bufsize)
	})
}

// FrameRate sets the output frame rate (-r).
func FrameRate(fps int) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-r", itoa(fps))
	})
}

// KeyframeEvery forces a keyframe at every multiple of interval so that later
// stream-copy cuts on those boundaries are frame exact.
func KeyframeEvery(interval time.Duration) Option {
	return OptionFunc(func(cmd *Command) {
		if interval <= 0 {
			return
		}
		expr := "expr:gte(t,n_forced*" + formatDuration(interval) + ")"
		cmd.postInput = append(cmd.postInput, "-force_key_frames", expr)
	})
}

// --- Audio ---

// AudioCodec sets the audio codec (-c:a).
func AudioCodec(codec string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-c:a", codec)
	})
}

// AudioBitrate sets the audio bitrate (-b:a).
func AudioBitrate(bitrate string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-b:a", bitrate)
	})
}

// AudioChannels sets the number of audio channels (-ac).
func AudioChannels(n int) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-ac", itoa(n))
	})
}

// AudioSampleRate sets the audio sample rate (-ar).
func AudioSampleRate(hz int) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-ar", itoa(hz))
	})
}

// --- Stream selection ---

// CopyAll copies all streams without re-encoding (-c copy).
var CopyAll Option = OptionFunc(func(cmd *Command) {
	cmd.postInput = append(cmd.postInput, "-c", "copy")
})

// NoVideo drops video from the output (-vn).
var NoVideo Option = OptionFunc(func(cmd *Command) {
	cmd.postInput = append(cmd.postInput, "-vn")
})

// ZeroTimestamps shifts output timestamps so the slice starts at zero.
var ZeroTimestamps Option = OptionFunc(func(cmd *Command) {
	cmd.postInput = append(cmd.postInput, "-avoid_negative_ts", "make_zero")
})

// MapStream maps a stream or graph label (-map {spec}).
func MapStream(spec string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.maps = append(cmd.maps, spec)
	})
}

// --- Filters ---

// FilterGraph passes a complex graph inline (-filter_complex).
func FilterGraph(g *Graph) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.graph = g.String()
	})
}

// FilterScript reads the complex graph from a file (-filter_complex_script).
// It takes precedence over FilterGraph.
func FilterScript(path string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.graphScript = path
	})
}

// --- Misc ---

// LogLevel sets the logging level.
func LogLevel(level string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.preInput = append([]string{"-loglevel", level}, cmd.preInput...)
	})
}

// ExtraArgs adds raw output arguments (escape hatch for unsupported options).
func ExtraArgs(args ...string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, args...)
	})
}

func formatDuration(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
