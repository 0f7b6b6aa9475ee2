// Package captions produces word-level timed captions for a chunk and turns
// them into animated drawtext layers.
package captions

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"thirdcoast.systems/shorts/internal/jobs"
	"thirdcoast.systems/shorts/pkg/ffmpeg"
	"thirdcoast.systems/shorts/pkg/whisper"
)

// Word is one caption word, timed in seconds relative to the chunk start.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Recognizer transcribes a speech WAV into timed words. *whisper.Client
// satisfies it.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath, outputDir string) ([]whisper.Word, error)
}

// MinRecognitionTimeout keeps very short chunks from getting an unusable budget.
const MinRecognitionTimeout = 30 * time.Second

// Engine derives captions from a chunk's audio. It never fails: any problem
// with extraction or recognition falls back to placeholder captions.
type Engine struct {
	Recognizer Recognizer
	// SecondsPerSecond scales the recognition budget with chunk duration.
	SecondsPerSecond float64
	// Ceiling caps the recognition budget.
	Ceiling time.Duration

	extract func(ctx context.Context, in, out string) error
}

func NewEngine(r Recognizer, secondsPerSecond float64, ceiling time.Duration) *Engine {
	return &Engine{
		Recognizer:       r,
		SecondsPerSecond: secondsPerSecond,
		Ceiling:          ceiling,
		extract:          ffmpeg.ExtractSpeechAudio,
	}
}

// Timeout is the recognition budget for a chunk of the given duration.
func (e *Engine) Timeout(duration float64) time.Duration {
	d := max(time.Duration(duration*e.SecondsPerSecond*float64(time.Second)), MinRecognitionTimeout)
	if e.Ceiling > 0 && d > e.Ceiling {
		d = e.Ceiling
	}
	return d
}

// Words returns normalized captions for chunk, spanning at most [0, chunk.Duration].
func (e *Engine) Words(ctx context.Context, chunk jobs.Chunk) []Word {
	if !chunk.HasAudio || e.Recognizer == nil {
		return Fallback(chunk.Duration)
	}

	start := time.Now()
	words, err := e.recognize(ctx, chunk)
	if err != nil {
		slog.Warn("speech recognition unavailable, using placeholder captions",
			"chunk", chunk.Index, "error", jobs.Errorf(jobs.KindRecognitionUnavailable, "%w", err))
		return Fallback(chunk.Duration)
	}

	words = Normalize(words, chunk.Duration)
	if len(words) == 0 {
		slog.Info("no speech recognized, using placeholder captions", "chunk", chunk.Index)
		return Fallback(chunk.Duration)
	}
	slog.Debug("captions recognized", "chunk", chunk.Index, "words", len(words), "elapsed", time.Since(start))
	return words
}

func (e *Engine) recognize(ctx context.Context, chunk jobs.Chunk) ([]Word, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Timeout(chunk.Duration))
	defer cancel()

	audio := filepath.Join(chunk.Dir, "speech.wav")
	if err := e.extract(ctx, chunk.Path, audio); err != nil {
		return nil, err
	}

	recognized, err := e.Recognizer.Transcribe(ctx, audio, chunk.Dir)
	if err != nil {
		return nil, err
	}
	words := make([]Word, 0, len(recognized))
	for _, w := range recognized {
		words = append(words, Word{Text: w.Text, Start: w.Start, End: w.End})
	}
	return words, nil
}
