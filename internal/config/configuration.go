package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"reflect"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"thirdcoast.systems/shorts/internal/jobs"
)

type Config struct {
	// Database
	DatabaseDSN     string `mapstructure:"DATABASE_DSN" validate:"required"`
	DatabaseRetries int    `mapstructure:"DATABASE_RETRIES" validate:"gte=0"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"oneof=json text"`

	// Workers
	WorkDir          string `mapstructure:"WORKDIR" validate:"required"`
	Workers          int    `mapstructure:"WORKERS" validate:"gte=1,lte=64"`
	ChunkParallelism int    `mapstructure:"CHUNK_PARALLELISM" validate:"gte=1,lte=16"`

	// Media
	ChunkThresholdSeconds  int    `mapstructure:"CHUNK_THRESHOLD_SECONDS" validate:"gte=30"`
	MinFragmentSeconds     int    `mapstructure:"MIN_FRAGMENT_SECONDS" validate:"gte=1"`
	MaxFragmentSeconds     int    `mapstructure:"MAX_FRAGMENT_SECONDS" validate:"gtefield=MinFragmentSeconds"`
	DefaultFragmentSeconds int    `mapstructure:"DEFAULT_FRAGMENT_SECONDS" validate:"gtefield=MinFragmentSeconds,ltefield=MaxFragmentSeconds"`
	DefaultQuality         string `mapstructure:"DEFAULT_QUALITY" validate:"oneof=720p 1080p 4k"`
	OutputFPS              int    `mapstructure:"OUTPUT_FPS" validate:"gte=1,lte=120"`
	OutputMaxBitrate       string `mapstructure:"OUTPUT_MAX_BITRATE"`
	TitleFont              string `mapstructure:"TITLE_FONT"`
	FallbackFont           string `mapstructure:"FALLBACK_FONT"`
	SubheaderText          string `mapstructure:"SUBHEADER_TEXT"`

	// Per-invocation timeouts
	CutTimeoutSeconds                int `mapstructure:"CUT_TIMEOUT_SECONDS" validate:"gte=1"`
	TransformTimeoutSeconds          int `mapstructure:"TRANSFORM_TIMEOUT_SECONDS" validate:"gte=1"`
	FetchTimeoutSeconds              int `mapstructure:"FETCH_TIMEOUT_SECONDS" validate:"gte=1"`
	RecognitionSecondsPerSecond      int `mapstructure:"RECOGNITION_SECONDS_PER_SECOND" validate:"gte=1"`
	RecognitionTimeoutCeilingSeconds int `mapstructure:"RECOGNITION_TIMEOUT_CEILING_SECONDS" validate:"gte=1"`

	// Retry and sweep
	RetryMax                  int `mapstructure:"RETRY_MAX" validate:"gte=0,lte=2"`
	RetryBackoffSeconds       int `mapstructure:"RETRY_BACKOFF_SECONDS" validate:"gte=0"`
	StaleJobMaxAgeMinutes     int `mapstructure:"STALE_JOB_MAX_AGE_MINUTES" validate:"gte=1"`
	StaleSweepIntervalSeconds int `mapstructure:"STALE_SWEEP_INTERVAL_SECONDS" validate:"gte=1"`
	WorkDirMaxAgeHours        int `mapstructure:"WORKDIR_MAX_AGE_HOURS" validate:"gte=1"`

	// Source ceilings
	MaxSourceSize            string `mapstructure:"MAX_SOURCE_SIZE" validate:"required"`
	MaxSourceDurationSeconds int    `mapstructure:"MAX_SOURCE_DURATION_SECONDS" validate:"gte=1"`
	MaxSourceBytes           uint64 `mapstructure:"-"`

	// External tools
	YtdlpCmd        string `mapstructure:"YTDLP_CMD"`
	WhisperCmd      string `mapstructure:"WHISPER_CMD"`
	WhisperModel    string `mapstructure:"WHISPER_MODEL"`
	WhisperDevice   string `mapstructure:"WHISPER_DEVICE"`
	WhisperLanguage string `mapstructure:"WHISPER_LANGUAGE"`
	WhisperEnabled  bool   `mapstructure:"WHISPER_ENABLED"`

	// Sink and notifications
	ExportDir          string `mapstructure:"EXPORT_DIR" validate:"required"`
	PublicBaseURL      string `mapstructure:"PUBLIC_BASE_URL" validate:"omitempty,url"`
	NtfyTopic          string `mapstructure:"NTFY_TOPIC" validate:"omitempty,url"`
	NtfyTimeoutSeconds int    `mapstructure:"NTFY_TIMEOUT_SECONDS" validate:"gte=1"`

	// HTTP API (empty disables it in the worker)
	APIAddr string `mapstructure:"API_ADDR"`
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	typ := reflect.TypeOf(c)
	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("mapstructure")
		if tag != "" && tag != "-" {
			_ = viper.BindEnv(tag)
		}
	}
}

func setDefaults() {
	viper.SetDefault("DATABASE_RETRIES", 10)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("WORKDIR", "/tmp/shorts")
	viper.SetDefault("WORKERS", 2)
	viper.SetDefault("CHUNK_PARALLELISM", 1)
	viper.SetDefault("CHUNK_THRESHOLD_SECONDS", 300)
	viper.SetDefault("MIN_FRAGMENT_SECONDS", 15)
	viper.SetDefault("MAX_FRAGMENT_SECONDS", 60)
	viper.SetDefault("DEFAULT_FRAGMENT_SECONDS", 30)
	viper.SetDefault("DEFAULT_QUALITY", jobs.Quality1080p)
	viper.SetDefault("OUTPUT_FPS", 30)
	viper.SetDefault("OUTPUT_MAX_BITRATE", "8M")
	viper.SetDefault("TITLE_FONT", "/app/fonts/Obelix Pro.ttf")
	viper.SetDefault("FALLBACK_FONT", "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf")
	viper.SetDefault("CUT_TIMEOUT_SECONDS", 300)
	viper.SetDefault("TRANSFORM_TIMEOUT_SECONDS", 1200)
	viper.SetDefault("FETCH_TIMEOUT_SECONDS", 1800)
	viper.SetDefault("RECOGNITION_SECONDS_PER_SECOND", 2)
	viper.SetDefault("RECOGNITION_TIMEOUT_CEILING_SECONDS", 600)
	viper.SetDefault("RETRY_MAX", 2)
	viper.SetDefault("RETRY_BACKOFF_SECONDS", 120)
	viper.SetDefault("STALE_JOB_MAX_AGE_MINUTES", 180)
	viper.SetDefault("STALE_SWEEP_INTERVAL_SECONDS", 300)
	viper.SetDefault("WORKDIR_MAX_AGE_HOURS", 24)
	viper.SetDefault("MAX_SOURCE_SIZE", "2GB")
	viper.SetDefault("MAX_SOURCE_DURATION_SECONDS", 10800)
	viper.SetDefault("YTDLP_CMD", "yt-dlp")
	viper.SetDefault("WHISPER_CMD", "whisper")
	viper.SetDefault("WHISPER_MODEL", "base")
	viper.SetDefault("WHISPER_DEVICE", "cpu")
	viper.SetDefault("WHISPER_ENABLED", true)
	viper.SetDefault("EXPORT_DIR", "/var/lib/shorts/exports")
	viper.SetDefault("NTFY_TIMEOUT_SECONDS", 10)
}

// LoadConfig reads configuration from the environment. envFiles are loaded
// first when present; variables already set in the environment win.
func LoadConfig(ctx context.Context, envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	bindEnv(Config{})
	viper.AutomaticEnv()
	setDefaults()

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	size, err := humanize.ParseBytes(cfg.MaxSourceSize)
	if err != nil {
		return nil, fmt.Errorf("parse MAX_SOURCE_SIZE: %w", err)
	}
	cfg.MaxSourceBytes = size

	slog.Debug("Loaded configuration", "workdir", cfg.WorkDir, "workers", cfg.Workers, "max_source", humanize.Bytes(size))
	return &cfg, nil
}

// FragmentLimits returns the configured fragment bounds and default quality.
func (c *Config) FragmentLimits() jobs.FragmentLimits {
	return jobs.FragmentLimits{
		Min:            c.MinFragmentSeconds,
		Max:            c.MaxFragmentSeconds,
		Default:        c.DefaultFragmentSeconds,
		DefaultQuality: c.DefaultQuality,
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c *Config) CutTimeout() time.Duration       { return seconds(c.CutTimeoutSeconds) }
func (c *Config) TransformTimeout() time.Duration { return seconds(c.TransformTimeoutSeconds) }
func (c *Config) FetchTimeout() time.Duration     { return seconds(c.FetchTimeoutSeconds) }
func (c *Config) RetryBackoff() time.Duration     { return seconds(c.RetryBackoffSeconds) }
func (c *Config) StaleSweepInterval() time.Duration {
	return seconds(c.StaleSweepIntervalSeconds)
}
func (c *Config) StaleJobMaxAge() time.Duration {
	return time.Duration(c.StaleJobMaxAgeMinutes) * time.Minute
}
func (c *Config) WorkDirMaxAge() time.Duration {
	return time.Duration(c.WorkDirMaxAgeHours) * time.Hour
}
func (c *Config) RecognitionCeiling() time.Duration {
	return seconds(c.RecognitionTimeoutCeilingSeconds)
}
