package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCancelled marks work interrupted by a stop request. It is never a
	// real failure and stages map it to their phase-specific fallback status.
	ErrCancelled = errors.New("cancelled")
	// ErrCommandFailed marks a subprocess that exited non-zero. The wrapped
	// message carries a stderr tail for diagnosis.
	ErrCommandFailed = errors.New("command failed")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	// ErrWorkerInit marks a resident worker subprocess that failed to become
	// ready. Callers restart the worker once before surfacing it.
	ErrWorkerInit = errors.New("worker init error")
	ErrTimeout    = errors.New("timeout")
	ErrTransient  = errors.New("transient failure")
)

// Wrap builds an error message that includes phase context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, phase, operation, message string, err error) error {
	detail := buildDetail(phase, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsCancelled reports whether err resolves to a stop request.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// NeedsWorkerRestart reports whether err warrants restarting a resident
// worker before retrying the request once.
func NeedsWorkerRestart(err error) bool {
	return errors.Is(err, ErrWorkerInit) || errors.Is(err, ErrTimeout)
}

func buildDetail(phase, operation, message string) string {
	parts := make([]string, 0, 3)
	if phase = strings.TrimSpace(phase); phase != "" {
		parts = append(parts, phase)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Truncate trims an error text to at most limit runes for persistence in the
// task row. The head of the message is kept; the command stderr tails are
// already bounded by the process runner.
func Truncate(message string, limit int) string {
	message = strings.TrimSpace(message)
	if limit <= 0 || len(message) <= limit {
		return message
	}
	runes := []rune(message)
	if len(runes) <= limit {
		return message
	}
	return string(runes[:limit])
}
