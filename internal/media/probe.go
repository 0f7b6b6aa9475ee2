// Package media plans and executes the stream-copy stages of a job: probing
// the source, splitting it into chunks and cutting transformed chunks into
// fragments.
package media

import (
	"context"
	"log/slog"

	"thirdcoast.systems/shorts/pkg/ffmpeg"
)

// DefaultFPS is assumed when the source frame rate cannot be read.
const DefaultFPS = 30.0

// Info is what the pipeline needs to know about a media file.
type Info struct {
	Duration float64
	Width    int
	Height   int
	FPS      float64
	HasAudio bool
	Codec    string
	// Degraded is set when probing failed and defaults were applied.
	Degraded bool
}

type ProbeFunc func(ctx context.Context, path string) (*ffmpeg.ProbeResult, error)

// Prober wraps ffprobe and never fails: missing metadata yields defaults.
type Prober struct {
	probe ProbeFunc
}

func NewProber() *Prober {
	return &Prober{probe: ffmpeg.Probe}
}

// NewProberWith uses fn instead of ffprobe.
func NewProberWith(fn ProbeFunc) *Prober {
	return &Prober{probe: fn}
}

func (p *Prober) Probe(ctx context.Context, path string) Info {
	res, err := p.probe(ctx, path)
	if err != nil || res == nil {
		slog.Warn("probe failed, using defaults", "path", path, "error", err)
		return Info{FPS: DefaultFPS, Degraded: true}
	}

	info := Info{
		Duration: res.Duration,
		Width:    res.Width,
		Height:   res.Height,
		FPS:      res.FPS,
		HasAudio: res.HasAudio(),
		Codec:    res.VideoCodec,
	}
	if info.FPS <= 0 {
		info.FPS = DefaultFPS
		info.Degraded = true
	}
	if info.Duration <= 0 {
		info.Duration = 0
		info.Degraded = true
	}
	if info.Degraded {
		slog.Warn("incomplete probe metadata", "path", path, "duration", info.Duration, "fps", info.FPS)
	}
	return info
}
