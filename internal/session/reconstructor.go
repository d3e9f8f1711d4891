// Package session folds transcript events into a Session and its metrics.
package session

import (
	"errors"
	"fmt"
	"strings"

	"sessionlog/internal/model"
	"sessionlog/internal/parser"
)

// ErrUnhandledKind is returned by Fold for an event kind it has no rule for.
var ErrUnhandledKind = errors.New("unhandled event kind")

// Session is a transcript after one fold pass.
type Session struct {
	ID            string
	Events        []model.Event
	Metrics       Metrics
	ParseFailures []parser.Failure
}

// Reconstructor accumulates a Session one event at a time. It is not safe
// for concurrent use; build one per load.
type Reconstructor struct {
	rules     Rules
	session   Session
	seenModel map[string]struct{}
}

// NewReconstructor creates a Reconstructor using rules. Empty rule lists
// fall back to DefaultRules.
func NewReconstructor(id string, rules Rules) *Reconstructor {
	return &Reconstructor{
		rules:     rules.Merge(DefaultRules()),
		session:   Session{ID: id},
		seenModel: make(map[string]struct{}),
	}
}

// Fold appends event and applies it to the metrics. The event is kept even
// when its kind is unhandled.
func (r *Reconstructor) Fold(event model.Event) error {
	r.session.Events = append(r.session.Events, event)
	m := &r.session.Metrics

	if !event.Timestamp.IsZero() {
		if m.FirstMessageTime.IsZero() {
			m.FirstMessageTime = event.Timestamp
		}
		if event.Timestamp.After(m.LastMessageTime) {
			m.LastMessageTime = event.Timestamp
		}
	}

	if event.IsMeta {
		return nil
	}

	switch event.Kind {
	case model.EventSystem:
		if r.rules.IsResume(event.Subtype) {
			m.WasResumed = true
		}
	case model.EventAssistant:
		r.foldAssistant(event.Message)
	case model.EventUser:
		r.foldUser(event.Message)
	case model.EventResult:
		if event.HasCheckpoint() {
			m.CheckpointCount++
		}
	case model.EventError:
		m.ErrorsEncountered++
	case model.EventMeta:
	default:
		return fmt.Errorf("%w: %q", ErrUnhandledKind, event.Kind)
	}
	return nil
}

func (r *Reconstructor) foldAssistant(msg *model.Message) {
	m := &r.session.Metrics
	m.PromptsSent++
	if msg == nil {
		return
	}

	for _, c := range msg.Content {
		switch c.Kind {
		case model.ContentToolUse:
			m.ToolsExecuted++
			switch r.rules.Classify(c.Name, c.Input) {
			case ToolFileCreated:
				m.FilesCreated++
			case ToolFileModified:
				m.FilesModified++
			case ToolFileDeleted:
				m.FilesDeleted++
			case ToolMCP:
				m.MCPCalls++
			}
		case model.ContentText:
			m.CodeBlocksGenerated += CountFences(c.Text) / 2
		}
	}

	if u := msg.Usage; u != nil {
		m.InputTokens += nonNegative(u.InputTokens)
		m.OutputTokens += nonNegative(u.OutputTokens)
		m.CacheReadTokens += nonNegative(u.CacheReadInputTokens)
		m.CacheCreationTokens += nonNegative(u.CacheCreationInputTokens)
	}

	if msg.Model != "" {
		if _, ok := r.seenModel[msg.Model]; !ok {
			r.seenModel[msg.Model] = struct{}{}
			m.ModelChanges = append(m.ModelChanges, msg.Model)
		}
	}
}

func (r *Reconstructor) foldUser(msg *model.Message) {
	if msg == nil {
		return
	}
	m := &r.session.Metrics
	for _, c := range msg.Content {
		if c.Kind == model.ContentToolResult && c.IsError {
			m.ToolsFailed++
			m.ErrorsEncountered++
		}
	}
}

// RecordFailure notes a line that could not be parsed.
func (r *Reconstructor) RecordFailure(f parser.Failure) {
	r.session.ParseFailures = append(r.session.ParseFailures, f)
}

// Session returns a copy of the state accumulated so far. Further folds do
// not affect the returned value.
func (r *Reconstructor) Session() Session {
	s := r.session
	s.Events = append([]model.Event(nil), r.session.Events...)
	s.ParseFailures = append([]parser.Failure(nil), r.session.ParseFailures...)
	s.Metrics = r.session.Metrics.clone()
	return s
}

// Reconstruct folds events into a new Session. Events of an unhandled kind
// are kept but the first such error is returned alongside the result.
func Reconstruct(id string, events []model.Event, rules Rules) (Session, error) {
	r := NewReconstructor(id, rules)
	var firstErr error
	for _, e := range events {
		if err := r.Fold(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return r.Session(), firstErr
}

// CountFences counts lines opening or closing a fenced code block.
func CountFences(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			n++
		}
	}
	return n
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
