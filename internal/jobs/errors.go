package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes pipeline failures.
type Kind string

const (
	KindSourceUnavailable      Kind = "source_unavailable"
	KindSourceTooLarge         Kind = "source_too_large"
	KindTransientFetch         Kind = "transient_fetch"
	KindProbeDegraded          Kind = "probe_degraded"
	KindTransformFailure       Kind = "transform_failure"
	KindRecognitionUnavailable Kind = "recognition_unavailable"
	KindSinkFailure            Kind = "sink_failure"
	KindDuplicateExecution     Kind = "duplicate_execution"
	KindCancelled              Kind = "cancelled"
	KindInternal               Kind = "internal"
)

var kindLabels = map[Kind]string{
	KindSourceUnavailable:      "source unavailable",
	KindSourceTooLarge:         "source too large",
	KindTransientFetch:         "download failed",
	KindProbeDegraded:          "probe degraded",
	KindTransformFailure:       "transform failed",
	KindRecognitionUnavailable: "recognition unavailable",
	KindSinkFailure:            "upload failed",
	KindDuplicateExecution:     "already processed",
	KindCancelled:              "cancelled",
	KindInternal:               "internal error",
}

// MaxMessageLength bounds Job.ErrorMessage.
const MaxMessageLength = 300

// Error is a categorized pipeline error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
	// Transient marks failures that may succeed on retry.
	Transient bool
}

// Errorf builds a categorized error. A trailing %w argument is unwrapped normally.
func Errorf(kind Kind, format string, args ...any) *Error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Msg: wrapped.Error(), Err: errors.Unwrap(wrapped)}
}

func (e *Error) Error() string {
	label := kindLabels[e.Kind]
	if label == "" {
		label = string(e.Kind)
	}
	if e.Msg == "" {
		return label
	}
	return label + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind exposes the kind as a string for generic classifiers.
func (e *Error) ErrorKind() string { return string(e.Kind) }

// ErrDuplicateExecution is returned when a job is terminal or already owned by another execution.
var ErrDuplicateExecution = &Error{Kind: KindDuplicateExecution, Msg: "job already processed or in progress"}

// KindOf returns the kind of err, KindCancelled for context cancellation,
// and KindInternal for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindInternal
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindTransientFetch || e.Transient
}

// Message renders err as a short categorized string suitable for Job.ErrorMessage.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var msg string
	var e *Error
	if errors.As(err, &e) {
		msg = e.Error()
	} else {
		msg = kindLabels[KindOf(err)] + ": " + err.Error()
	}
	// Keep the first line only; external tools can emit multi-line diagnostics.
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	msg = strings.TrimSpace(msg)
	if len(msg) > MaxMessageLength {
		msg = strings.ToValidUTF8(msg[:MaxMessageLength-3], "") + "..."
	}
	return msg
}

// Store sentinels.
var (
	ErrNotFound = errors.New("job not found")
	// ErrTerminal is returned by store updates against a completed or failed job.
	ErrTerminal = errors.New("job is terminal")
)
