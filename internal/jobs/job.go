package jobs

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Quality presets accepted in Settings.
const (
	Quality720p  = "720p"
	Quality1080p = "1080p"
	Quality4K    = "4k"
)

// Settings are the per-job choices made by the requester.
// Stored as JSONB.
type Settings struct {
	FragmentDuration int    `json:"fragment_duration"`
	Quality          string `json:"quality"`
	SubtitlesEnabled bool   `json:"subtitles_enabled"`
	Title            string `json:"title,omitempty"`
	TitleColor       string `json:"title_color,omitempty"`
	TitleSize        string `json:"title_size,omitempty"`
	SubtitleColor    string `json:"subtitle_color,omitempty"`
	SubtitleSize     string `json:"subtitle_size,omitempty"`
}

// FragmentLimits bound the requested fragment duration in seconds and carry
// the quality used when a request names none.
type FragmentLimits struct {
	Min            int
	Max            int
	Default        int
	DefaultQuality string
}

// Normalize returns a copy with fragment duration clamped to limits and a
// missing or unknown quality replaced by the default (1080p when unset).
func (s Settings) Normalize(l FragmentLimits) Settings {
	switch {
	case s.FragmentDuration <= 0:
		s.FragmentDuration = l.Default
	case s.FragmentDuration < l.Min:
		s.FragmentDuration = l.Min
	case s.FragmentDuration > l.Max:
		s.FragmentDuration = l.Max
	}
	s.Quality = strings.ToLower(strings.TrimSpace(s.Quality))
	if !validQuality(s.Quality) {
		s.Quality = Quality1080p
		if validQuality(l.DefaultQuality) {
			s.Quality = l.DefaultQuality
		}
	}
	s.Title = strings.TrimSpace(s.Title)
	return s
}

func validQuality(q string) bool {
	switch q {
	case Quality720p, Quality1080p, Quality4K:
		return true
	}
	return false
}

// Scan implements sql.Scanner for JSONB columns.
func (s *Settings) Scan(value any) error {
	if value == nil {
		*s = Settings{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("Settings.Scan: expected []byte, got %T", value)
	}
	return json.Unmarshal(b, s)
}

// Value implements driver.Valuer for JSONB columns.
func (s Settings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Job is one request to turn a source video into fragments.
type Job struct {
	ID           uuid.UUID
	UserRef      string
	SourceRef    string
	Settings     Settings
	Status       Status
	Progress     int
	ErrorMessage string
	SourceTitle  string
	WorkerID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// Fragment is a final output segment.
type Fragment struct {
	ID           uuid.UUID
	JobID        uuid.UUID
	Number       int
	ChunkIndex   int
	Path         string
	StartTime    float64
	Duration     float64
	SizeBytes    int64
	ExternalLink string
	CreatedAt    time.Time
}

// Chunk is a bounded slice of the source. Ephemeral.
type Chunk struct {
	Index    int
	Path     string
	Start    float64
	Duration float64
	// Dir holds this chunk's intermediate outputs.
	Dir string
	// HasAudio is copied from the source probe.
	HasAudio bool
}

// TransformedChunk is a chunk after composition. Ephemeral.
type TransformedChunk struct {
	Chunk    Chunk
	Path     string
	Duration float64
}
