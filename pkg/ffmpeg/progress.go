package ffmpeg

import (
	"bufio"
	"strconv"
	"strings"
)

// Progress is one -progress block emitted by ffmpeg.
type Progress struct {
	Frame     int64
	FPS       float64
	OutTimeUS int64
	Speed     string
	Progress  string // "continue" or "end"
}

// OutTimeSeconds returns the output position in seconds.
func (p Progress) OutTimeSeconds() float64 {
	return float64(p.OutTimeUS) / 1_000_000
}

// Percent returns the output position as a percentage of total seconds, capped at 100.
func (p Progress) Percent(total float64) int {
	if total <= 0 {
		return 0
	}
	pct := int(p.OutTimeSeconds() / total * 100)
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// ProgressParser accumulates key=value lines into Progress blocks.
type ProgressParser struct {
	current Progress
}

// ParseLine consumes a line and reports whether a block is complete.
func (p *ProgressParser) ParseLine(line string) bool {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return false
	}

	switch key {
	case "frame":
		p.current.Frame, _ = strconv.ParseInt(value, 10, 64)
	case "fps":
		p.current.FPS, _ = strconv.ParseFloat(value, 64)
	case "out_time_us", "out_time_ms":
		// out_time_ms is misnamed by ffmpeg and also carries microseconds.
		p.current.OutTimeUS, _ = strconv.ParseInt(value, 10, 64)
	case "speed":
		p.current.Speed = strings.TrimSpace(value)
	case "progress":
		p.current.Progress = value
		return true
	}
	return false
}

// Current returns the accumulated progress.
func (p *ProgressParser) Current() Progress {
	return p.current
}

// ParseProgressOutput reads -progress output and sends each completed block.
func ParseProgressOutput(scanner *bufio.Scanner, progress chan<- Progress) {
	var parser ProgressParser
	for scanner.Scan() {
		if !parser.ParseLine(scanner.Text()) {
			continue
		}
		progress <- parser.Current()
		if parser.Current().Progress == "end" {
			// Drain so ffmpeg never blocks on a full pipe.
			for scanner.Scan() {
			}
			return
		}
	}
}
