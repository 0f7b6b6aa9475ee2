package application

import (
	"context"
	"log/slog"
	"time"

	"thirdcoast.systems/shorts/internal/captions"
	"thirdcoast.systems/shorts/internal/compose"
	"thirdcoast.systems/shorts/internal/config"
	"thirdcoast.systems/shorts/internal/db"
	"thirdcoast.systems/shorts/internal/jobs"
	"thirdcoast.systems/shorts/internal/media"
	"thirdcoast.systems/shorts/internal/notifications"
	"thirdcoast.systems/shorts/internal/pipeline"
	"thirdcoast.systems/shorts/internal/sink"
	"thirdcoast.systems/shorts/internal/source"
	"thirdcoast.systems/shorts/internal/transform"
	"thirdcoast.systems/shorts/pkg/whisper"
	"thirdcoast.systems/shorts/pkg/ytdlp"
)

// NewOrchestrator wires the production pipeline components from conf.
func NewOrchestrator(conf *config.Config, store *db.Store, id string) *pipeline.Orchestrator {
	prober := media.NewProber()

	yt := ytdlp.New()
	yt.Path = conf.YtdlpCmd
	yt.LogCallback = ytdlpLogger(slog.Default())

	var recognizer captions.Recognizer
	if conf.WhisperEnabled {
		w := whisper.New(conf.WhisperCmd, conf.WhisperModel)
		w.Device = conf.WhisperDevice
		w.Language = conf.WhisperLanguage
		recognizer = w
	}

	limits := source.Limits{
		MaxBytes:    conf.MaxSourceBytes,
		MaxDuration: time.Duration(conf.MaxSourceDurationSeconds) * time.Second,
	}

	return &pipeline.Orchestrator{
		Store:       store,
		Fetcher:     source.NewFetcher(yt, prober, limits, conf.FetchTimeout()),
		Prober:      prober,
		Splitter:    media.NewSplitter(float64(conf.ChunkThresholdSeconds), conf.CutTimeout()),
		Captions:    captions.NewEngine(recognizer, float64(conf.RecognitionSecondsPerSecond), conf.RecognitionCeiling()),
		Transformer: transform.NewExecutor(conf.TransformTimeout(), prober),
		Cutter:      media.NewCutter(float64(conf.MinFragmentSeconds), conf.CutTimeout()),
		Sink:        sink.NewLocalSink(conf.ExportDir, conf.PublicBaseURL),
		Notifier:    notifications.NewService(conf.NtfyTopic, time.Duration(conf.NtfyTimeoutSeconds)*time.Second),
		Options: pipeline.Options{
			WorkDir:          conf.WorkDir,
			WorkerID:         id,
			Limits:           conf.FragmentLimits(),
			Fonts:            compose.Fonts{Title: conf.TitleFont, Fallback: conf.FallbackFont},
			Subheader:        conf.SubheaderText,
			FPS:              conf.OutputFPS,
			MaxBitrate:       conf.OutputMaxBitrate,
			ChunkParallelism: conf.ChunkParallelism,
			Retry: pipeline.RetryPolicy{
				MaxRetries: conf.RetryMax,
				Backoff:    conf.RetryBackoff(),
				Retryable:  jobs.Retryable,
			},
		},
	}
}

// YtdlpVersion reports the configured yt-dlp build; the worker logs it at startup.
func YtdlpVersion(ctx context.Context, conf *config.Config) (string, error) {
	yt := ytdlp.New()
	yt.Path = conf.YtdlpCmd
	return yt.Version(ctx)
}
