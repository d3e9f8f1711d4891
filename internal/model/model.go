// Package model defines the typed representation of one transcript line.
package model

import (
	"fmt"
)

// EventKind is the top-level "type" field of a transcript line.
type EventKind string

const (
	EventSystem    EventKind = "system"
	EventAssistant EventKind = "assistant"
	EventUser      EventKind = "user"
	EventResult    EventKind = "result"
	EventError     EventKind = "error"
	EventMeta      EventKind = "meta"
)

// EventKinds returns every recognized event kind.
func EventKinds() []EventKind {
	return []EventKind{EventSystem, EventAssistant, EventUser, EventResult, EventError, EventMeta}
}

// Valid reports whether k is one of EventKinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventSystem, EventAssistant, EventUser, EventResult, EventError, EventMeta:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown event kind %q", string(k))
	}
	return []byte(k), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(text []byte) error {
	kind := EventKind(text)
	if !kind.Valid() {
		return fmt.Errorf("unknown event kind %q", string(text))
	}
	*k = kind
	return nil
}

// ContentKind is the "type" field of a message content block.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentToolUse    ContentKind = "tool_use"
	ContentToolResult ContentKind = "tool_result"
)

// ContentKinds returns every recognized content kind.
func ContentKinds() []ContentKind {
	return []ContentKind{ContentText, ContentToolUse, ContentToolResult}
}

// Valid reports whether k is one of ContentKinds.
func (k ContentKind) Valid() bool {
	switch k {
	case ContentText, ContentToolUse, ContentToolResult:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (k ContentKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("unknown content kind %q", string(k))
	}
	return []byte(k), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ContentKind) UnmarshalText(text []byte) error {
	kind := ContentKind(text)
	if !kind.Valid() {
		return fmt.Errorf("unknown content kind %q", string(text))
	}
	*k = kind
	return nil
}
