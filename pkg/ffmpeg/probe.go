package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeBinary is the ffprobe executable resolved via PATH.
var ProbeBinary = "ffprobe"

// ProbeResult contains media file metadata.
type ProbeResult struct {
	Width       int
	Height      int
	FPS         float64
	VideoCodec  string
	PixelFormat string

	AudioCodec      string
	AudioChannels   int
	AudioSampleRate int

	Duration   float64 // seconds
	Bitrate    int64
	Size       int64
	FormatName string

	VideoStreams int
	AudioStreams int
}

// HasAudio reports whether at least one audio stream is present.
func (r *ProbeResult) HasAudio() bool {
	return r != nil && r.AudioStreams > 0
}

type ffprobeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		PixelFormat  string `json:"pix_fmt"`
		Duration     string `json:"duration"`
		SampleRate   string `json:"sample_rate"`
		Channels     int    `json:"channels"`
	} `json:"streams"`
}

// Probe runs ffprobe on a file and returns metadata.
func Probe(ctx context.Context, path string) (*ProbeResult, error) {
	args := []string{
		"-hide_banner",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, ProbeBinary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return ParseProbe(stdout.Bytes())
}

// ParseProbe decodes ffprobe -print_format json output.
func ParseProbe(raw []byte) (*ProbeResult, error) {
	var output ffprobeOutput
	if err := json.Unmarshal(raw, &output); err != nil {
		return nil, fmt.Errorf("ffprobe: parse output: %w", err)
	}

	result := &ProbeResult{FormatName: output.Format.FormatName}
	result.Duration, _ = strconv.ParseFloat(output.Format.Duration, 64)
	result.Bitrate, _ = strconv.ParseInt(output.Format.BitRate, 10, 64)
	result.Size, _ = strconv.ParseInt(output.Format.Size, 10, 64)

	for _, stream := range output.Streams {
		switch stream.CodecType {
		case "video":
			result.VideoStreams++
			if result.VideoCodec != "" {
				continue
			}
			result.Width = stream.Width
			result.Height = stream.Height
			result.VideoCodec = stream.CodecName
			result.PixelFormat = stream.PixelFormat
			result.FPS = parseFrameRate(stream.AvgFrameRate)
			if result.FPS == 0 {
				result.FPS = parseFrameRate(stream.RFrameRate)
			}
			if result.Duration == 0 {
				result.Duration, _ = strconv.ParseFloat(stream.Duration, 64)
			}
		case "audio":
			result.AudioStreams++
			if result.AudioCodec != "" {
				continue
			}
			result.AudioCodec = stream.CodecName
			result.AudioChannels = stream.Channels
			result.AudioSampleRate, _ = strconv.Atoi(stream.SampleRate)
		}
	}

	return result, nil
}

// parseFrameRate parses ffprobe rationals such as "30/1" or "30000/1001".
func parseFrameRate(rate string) float64 {
	var num, den int
	if _, err := fmt.Sscanf(rate, "%d/%d", &num, &den); err != nil || den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
