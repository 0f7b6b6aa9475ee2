package application

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a JSON or text slog logger and installs it as the default.
func NewLogger(level, format string) *slog.Logger {
	return newLogger(os.Stdout, level, format)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps debug/info/warn/error to slog levels, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ytdlpLogger returns a yt-dlp line callback. Status lines ("[download] ...")
// and warnings go to debug; the JSON metadata dump and printed paths are skipped.
func ytdlpLogger(logger *slog.Logger) func(stream, line string) {
	return func(stream, line string) {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "["):
			logger.Debug("yt-dlp", "stream", stream, "line", line)
		case strings.HasPrefix(line, "WARNING:"), strings.HasPrefix(line, "ERROR:"):
			logger.Debug("yt-dlp", "stream", stream, "line", line)
		}
	}
}
