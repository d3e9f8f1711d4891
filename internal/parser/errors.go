package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax matches lines that are not valid JSON.
	ErrSyntax = errors.New("invalid transcript line")
	// ErrUnknownEventKind matches lines whose "type" is not recognized.
	ErrUnknownEventKind = errors.New("unknown event kind")
)

// FailureKind classifies a parse failure.
type FailureKind int

const (
	FailureSyntax FailureKind = iota + 1
	FailureUnknownEventKind
)

func (k FailureKind) String() string {
	switch k {
	case FailureSyntax:
		return "syntax"
	case FailureUnknownEventKind:
		return "unknown_event_kind"
	default:
		return "unknown"
	}
}

// Error is returned by ParseLine for lines that cannot become an event.
type Error struct {
	Kind FailureKind
	Type string // offending "type" value for FailureUnknownEventKind
	Err  error  // underlying decoder error for FailureSyntax
}

func (e *Error) Error() string {
	switch e.Kind {
	case FailureUnknownEventKind:
		if e.Type == "" {
			return "unknown event kind: missing type"
		}
		return fmt.Sprintf("unknown event kind %q", e.Type)
	default:
		if e.Err != nil {
			return fmt.Sprintf("invalid transcript line: %v", e.Err)
		}
		return "invalid transcript line"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the sentinel for the failure kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrSyntax:
		return e.Kind == FailureSyntax
	case ErrUnknownEventKind:
		return e.Kind == FailureUnknownEventKind
	}
	return false
}

// Failure records a line that was skipped while reading a transcript.
type Failure struct {
	Line int
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("line %d: %v", f.Line, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }
