package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBuild(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		output   string
		opts     []Option
		wantArgs []string
	}{
		{
			name:   "stream copy slice",
			input:  "source.mp4",
			output: "chunk_1.mp4",
			opts:   append([]Option{Seek(300 * time.Second), Duration(300 * time.Second)}, PresetSlice()...),
			wantArgs: []string{
				"-hide_banner", "-y",
				"-ss", "300.000",
				"-i", "source.mp4",
				"-map", "0",
				"-t", "300.000",
				"-c", "copy",
				"-avoid_negative_ts", "make_zero",
				"-movflags", "+faststart",
				"chunk_1.mp4",
			},
		},
		{
			name:   "filter script with optional audio",
			input:  "chunk_1.mp4",
			output: "processed.mp4",
			opts: []Option{
				FilterScript("/tmp/graph.txt"),
				MapStream("[vout]"),
				MapStream("0:a?"),
				VideoCodec("libx264"),
				KeyframeEvery(30 * time.Second),
			},
			wantArgs: []string{
				"-hide_banner", "-y",
				"-i", "chunk_1.mp4",
				"-filter_complex_script", "/tmp/graph.txt",
				"-map", "[vout]",
				"-map", "0:a?",
				"-c:v", "libx264",
				"-force_key_frames", "expr:gte(t,n_forced*30.000)",
				"-movflags", "+faststart",
				"processed.mp4",
			},
		},
		{
			name:   "inline graph",
			input:  "in.mp4",
			output: "out.mkv",
			opts: []Option{
				FilterGraph(NewGraph().Add([]string{"0:v"}, []string{"vout"}, GaussianBlur(20))),
				MapStream("[vout]"),
			},
			wantArgs: []string{
				"-hide_banner", "-y",
				"-i", "in.mp4",
				"-filter_complex", "[0:v]gblur=sigma=20[vout]",
				"-map", "[vout]",
				"out.mkv",
			},
		},
		{
			name:   "speech audio",
			input:  "chunk.mp4",
			output: "speech.wav",
			opts:   append([]Option{MapStream("0:a:0")}, PresetSpeechWAV()...),
			wantArgs: []string{
				"-hide_banner", "-y",
				"-i", "chunk.mp4",
				"-map", "0:a:0",
				"-vn",
				"-c:a", "pcm_s16le",
				"-ar", "16000",
				"-ac", "1",
				"speech.wav",
			},
		},
		{
			name:   "loglevel goes first",
			input:  "in.mp4",
			output: "out.mp4",
			opts:   []Option{Seek(time.Second), LogLevel("error")},
			wantArgs: []string{
				"-hide_banner", "-y",
				"-loglevel", "error",
				"-ss", "1.000",
				"-i", "in.mp4",
				"-movflags", "+faststart",
				"out.mp4",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewCommand(tt.input, tt.output, tt.opts...).Build()
			assert.Equal(t, tt.wantArgs, got)
		})
	}
}

func TestFilterScriptTakesPrecedence(t *testing.T) {
	g := NewGraph().Add([]string{"0:v"}, []string{"vout"}, Format("yuv420p"))
	args := NewCommand("in.mp4", "out.mp4", FilterGraph(g), FilterScript("g.txt")).Build()
	assert.Contains(t, args, "-filter_complex_script")
	assert.NotContains(t, args, "-filter_complex")
}

func TestBuild_GraphOnlyNoSimpleFilterChain(t *testing.T) {
	g := NewGraph().Add([]string{"0:v"}, []string{"vout"}, Format("yuv420p"))
	args := NewCommand("in.mp4", "out.mp4", FilterGraph(g), MapStream("[vout]")).Build()
	assert.NotContains(t, args, "-vf")
	assert.Equal(t, []string{"-hide_banner", "-y", "-i", "in.mp4", "-filter_complex", "[0:v]format=yuv420p[vout]", "-map", "[vout]"}, args[:8])
}

func TestPresetShorts(t *testing.T) {
	args := NewCommand("in.mp4", "out.mp4", PresetShorts(30, "8M")...).Build()
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-r 30")
	assert.Contains(t, joined, "-maxrate 8M -bufsize 8M")
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, Seconds(1.5))
	assert.Equal(t, "20.250", formatDuration(Seconds(20.25)))
}

func TestProgressParsing(t *testing.T) {
	input := strings.Join([]string{
		"frame=30",
		"fps=29.97",
		"out_time_us=1000000",
		"speed=2.5x",
		"progress=continue",
		"frame=60",
		"out_time_us=2000000",
		"progress=end",
		"ignored=after end",
	}, "\n")

	ch := make(chan Progress, 4)
	ParseProgressOutput(bufio.NewScanner(strings.NewReader(input)), ch)
	close(ch)

	var got []Progress
	for p := range ch {
		got = append(got, p)
	}
	require.Len(t, got, 2)
	assert.Equal(t, int64(30), got[0].Frame)
	assert.Equal(t, "2.5x", got[0].Speed)
	assert.Equal(t, 1.0, got[0].OutTimeSeconds())
	assert.Equal(t, "end", got[1].Progress)
	assert.Equal(t, 50, got[1].Percent(4))
	assert.Equal(t, 100, got[1].Percent(1))
	assert.Equal(t, 0, got[1].Percent(0))
}

func TestParseProbe(t *testing.T) {
	raw := `{
		"format": {"format_name": "mov,mp4,m4a", "duration": "62.500000", "size": "1048576", "bit_rate": "134217"},
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001", "pix_fmt": "yuv420p"},
			{"codec_type": "audio", "codec_name": "aac", "channels": 2, "sample_rate": "48000"}
		]
	}`

	res, err := ParseProbe([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 1920, res.Width)
	assert.Equal(t, 1080, res.Height)
	assert.InDelta(t, 29.97, res.FPS, 0.01)
	assert.Equal(t, 62.5, res.Duration)
	assert.Equal(t, int64(1048576), res.Size)
	assert.True(t, res.HasAudio())
	assert.Equal(t, 48000, res.AudioSampleRate)
}

func TestParseProbe_VideoOnlyStreamDuration(t *testing.T) {
	raw := `{"format": {}, "streams": [{"codec_type": "video", "codec_name": "vp9", "width": 640, "height": 360, "r_frame_rate": "25/1", "avg_frame_rate": "0/0", "duration": "12.0"}]}`
	res, err := ParseProbe([]byte(raw))
	require.NoError(t, err)
	assert.False(t, res.HasAudio())
	assert.Equal(t, 25.0, res.FPS)
	assert.Equal(t, 12.0, res.Duration)
}

func TestParseProbe_Invalid(t *testing.T) {
	_, err := ParseProbe([]byte("not json"))
	assert.Error(t, err)
}

func TestParseFrameRate(t *testing.T) {
	assert.Equal(t, 30.0, parseFrameRate("30/1"))
	assert.Equal(t, 0.0, parseFrameRate("0/0"))
	assert.Equal(t, 0.0, parseFrameRate(""))
}

func TestErrorTail(t *testing.T) {
	e := &Error{Stderr: "a\nb\nc\nd\n", Err: errors.New("exit status 1")}
	assert.Equal(t, "b\nc\nd", e.Tail(3))
	assert.Equal(t, "ffmpeg: exit status 1: b\nc\nd", e.Error())

	timeout := &Error{Err: errors.New("signal: killed"), TimedOut: true}
	assert.Equal(t, "ffmpeg: timed out: signal: killed", timeout.Error())
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath(Binary); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath(ProbeBinary); err != nil {
		t.Skip("ffprobe not installed")
	}
}

func generateTestVideo(t *testing.T, duration time.Duration) string {
	t.Helper()
	output := filepath.Join(t.TempDir(), "test_input.mp4")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d := formatDuration(duration)
	args := []string{
		"-hide_banner", "-y",
		"-f", "lavfi", "-i", "testsrc2=duration=" + d + ":size=320x240:rate=30",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=" + d,
		"-c:v", "libx264", "-preset", "ultrafast", "-crf", "28",
		"-c:a", "aac", "-b:a", "64k",
		"-pix_fmt", "yuv420p",
		"-shortest",
		output,
	}

	proc, err := Start(ctx, args, nil)
	require.NoError(t, err)
	require.NoError(t, proc.Wait(), "stderr: %s", proc.Stderr())
	return output
}

func TestIntegration_GraphRender(t *testing.T) {
	requireFFmpeg(t)

	input := generateTestVideo(t, 2*time.Second)
	output := filepath.Join(t.TempDir(), "vertical.mp4")

	g := NewGraph().
		Add([]string{"0:v"}, []string{"bg", "main"}, Split(2)).
		Add([]string{"bg"}, []string{"bgb"}, ScaleCover(180, 320), CropCenter(180, 320), GaussianBlur(20)).
		Add([]string{"main"}, []string{"fg"}, ScaleCover(180, 224), CropCenter(180, 224)).
		Add([]string{"bgb", "fg"}, []string{"vout"}, Overlay("(W-w)/2", "(H-h)/2"), SquarePixels())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opts := []Option{FilterGraph(g), MapStream("[vout]"), MapStream("0:a?")}
	opts = append(opts, PresetShorts(30, "")...)
	opts = append(opts, PresetAAC()...)
	require.NoError(t, Run(ctx, input, output, opts...))

	res, err := Probe(ctx, output)
	require.NoError(t, err)
	assert.Equal(t, 180, res.Width)
	assert.Equal(t, 320, res.Height)
	assert.True(t, res.HasAudio())
}

func TestIntegration_TimeoutKills(t *testing.T) {
	requireFFmpeg(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	args := []string{"-hide_banner", "-y", "-re", "-f", "lavfi", "-i", "testsrc2=duration=30", "-f", "null", "-"}
	proc, err := Start(ctx, args, nil)
	require.NoError(t, err)

	err = proc.Wait()
	var ffErr *Error
	require.ErrorAs(t, err, &ffErr)
	assert.True(t, ffErr.TimedOut)
}
