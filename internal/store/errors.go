package store

import (
	"errors"
	"fmt"
)

var (
	// ErrIOUnavailable matches failures to read the transcript root or a
	// transcript file that exists.
	ErrIOUnavailable = errors.New("transcript storage unavailable")
	// ErrSessionNotFound is returned by FindSession when no project holds
	// the requested session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSessionID rejects ids that would escape the project directory.
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrLineTooLong is wrapped by the parse failure recorded for a line
	// longer than the loader's limit.
	ErrLineTooLong = errors.New("line too long")
)

// IOError describes a filesystem failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIOUnavailable }
