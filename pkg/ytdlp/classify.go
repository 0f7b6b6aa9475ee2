package ytdlp

import (
	"context"
	"errors"
	"strings"
)

// Class groups yt-dlp failures by how a caller should react.
type Class int

const (
	// ClassUnknown failures carry no recognizable signature.
	ClassUnknown Class = iota
	// ClassUnavailable means the source is gone, private, or unsupported. Retrying cannot help.
	ClassUnavailable
	// ClassTooLarge means the source exceeded a configured size ceiling.
	ClassTooLarge
	// ClassTransient covers timeouts and network trouble worth retrying.
	ClassTransient
)

func (c Class) String() string {
	switch c {
	case ClassUnavailable:
		return "unavailable"
	case ClassTooLarge:
		return "too_large"
	case ClassTransient:
		return "transient"
	default:
		return "unknown"
	}
}

var unavailablePatterns = []string{
	"video unavailable",
	"private video",
	"has been removed",
	"is not available",
	"account associated with this video has been terminated",
	"unsupported url",
	"is not a valid url",
	"sign in to confirm your age",
	"members-only",
	"http error 400",
	"http error 403",
	"http error 404",
	"http error 410",
}

var tooLargePatterns = []string{
	"larger than max-filesize",
	"max-filesize",
}

var transientPatterns = []string{
	"timed out",
	"timeout",
	"connection reset",
	"connection refused",
	"connection aborted",
	"temporary failure in name resolution",
	"network is unreachable",
	"remote end closed connection",
	"incompleteread",
	"unable to download webpage",
	"http error 429",
	"http error 500",
	"http error 502",
	"http error 503",
	"http error 504",
}

// Classify inspects an error returned by the client.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	text := strings.ToLower(err.Error())
	var ee *ExecError
	if errors.As(err, &ee) {
		text = strings.ToLower(ee.Stderr + "\n" + ee.Stdout)
		if errors.Is(ee.Cause, ErrNoOutput) && !containsAny(text, unavailablePatterns) {
			return ClassTooLarge
		}
	}

	switch {
	case containsAny(text, tooLargePatterns):
		return ClassTooLarge
	case containsAny(text, unavailablePatterns):
		return ClassUnavailable
	case containsAny(text, transientPatterns):
		return ClassTransient
	default:
		return ClassUnknown
	}
}

// Reason returns the most relevant error line for user-facing messages.
func Reason(err error) string {
	var ee *ExecError
	if errors.As(err, &ee) {
		if line := lastErrorLine(ee.Stderr); line != "" {
			return line
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
