package pipeline

import (
	"errors"
	"fmt"
)

// UnsupportedFormatError indicates the source audio uses a container or
// codec outside the configured allow-list. Not retryable.
type UnsupportedFormatError struct {
	Path   string
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Format == "" {
		return fmt.Sprintf("unsupported audio format: %s", e.Path)
	}
	return fmt.Sprintf("unsupported audio format %q: %s", e.Format, e.Path)
}

// MissingResourceError indicates the stored audio handle cannot be read.
// Fatal for the whole file.
type MissingResourceError struct {
	Path string
	Err  error
}

func (e *MissingResourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("audio resource unavailable: %s", e.Path)
	}
	return fmt.Sprintf("audio resource unavailable: %s: %v", e.Path, e.Err)
}

func (e *MissingResourceError) Unwrap() error { return e.Err }

// BackendUnavailableError indicates a transient backend failure
// (connection refused, 5xx, rate limiting). Retryable.
type BackendUnavailableError struct {
	Backend string
	Err     error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s backend unavailable: %v", e.Backend, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

// RecognitionError indicates the backend rejected a single window, e.g.
// because the exported audio is malformed. Fatal for that window only.
type RecognitionError struct {
	Reason string
	Err    error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("recognition failed: %s", e.Reason)
	}
	return fmt.Sprintf("recognition failed: %s: %v", e.Reason, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed repository write. Fatal for the file.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsRetryable reports whether the error is transient and worth another
// attempt against the same backend.
func IsRetryable(err error) bool {
	var be *BackendUnavailableError
	return errors.As(err, &be)
}
