package model

import (
	"encoding/json"
	"time"
)

// Event is one parsed transcript line. Only Kind is guaranteed to be set.
type Event struct {
	Kind         EventKind
	Subtype      string
	Message      *Message
	SessionID    string
	Project      string // working directory recorded by the writer
	Timestamp    time.Time
	RawTimestamp string
	Error        *ErrorInfo
	Checkpoint   json.RawMessage // opaque, preserved verbatim
	IsMeta       bool
	LeafID       string
	Summary      string

	UUID       string
	ParentUUID string

	Line int    // 1-based line number in the transcript, 0 when unknown
	Raw  string // source line
}

// HasCheckpoint reports whether the event carries checkpoint data.
func (e Event) HasCheckpoint() bool {
	switch string(e.Checkpoint) {
	case "", "null", "{}", "[]", `""`:
		return false
	}
	return true
}

// Role returns the message role, falling back to the event kind.
func (e Event) Role() string {
	if e.Message != nil && e.Message.Role != "" {
		return e.Message.Role
	}
	return string(e.Kind)
}

// Message is the envelope carried by assistant and user events.
type Message struct {
	ID           string
	Role         string
	Model        string
	StopReason   string
	StopSequence string
	Content      []Content // order defines presentation order
	Usage        *Usage
}

// Content is one typed fragment of a Message.
type Content struct {
	Kind ContentKind

	// text
	Text string

	// tool_use
	ID    string
	Name  string
	Input json.RawMessage

	// tool_result
	ToolUseID string
	Result    string
	IsError   bool
}

// Usage holds token counters reported with an assistant message.
type Usage struct {
	InputTokens              int
	OutputTokens             int
	CacheCreationInputTokens int
	CacheReadInputTokens     int
}

// ErrorInfo describes an error reported by the writer.
type ErrorInfo struct {
	Kind    string
	Message string
	Code    string
}
