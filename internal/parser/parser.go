// Package parser turns one transcript line into a model.Event.
//
// Parsing is forward-compatible by contract: unknown fields are ignored,
// missing optional fields keep their zero value, unknown content-block types
// are dropped, and a line only fails when it is not JSON or when its "type"
// discriminant is not a recognized event kind.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"sessionlog/internal/model"
)

// Options configures a Parser.
type Options struct {
	// KindAliases maps additional wire "type" values onto recognized kinds.
	KindAliases map[string]model.EventKind
}

// DefaultKindAliases returns the aliases applied when Options.KindAliases is nil.
func DefaultKindAliases() map[string]model.EventKind {
	return map[string]model.EventKind{
		"summary": model.EventMeta,
	}
}

// Parser decodes transcript lines. It holds only immutable configuration
// and is safe for concurrent use.
type Parser struct {
	aliases map[string]model.EventKind
}

// New creates a Parser.
func New(opts Options) *Parser {
	aliases := opts.KindAliases
	if aliases == nil {
		aliases = DefaultKindAliases()
	}
	copied := make(map[string]model.EventKind, len(aliases))
	for k, v := range aliases {
		copied[k] = v
	}
	return &Parser{aliases: copied}
}

// ParseLine decodes one newline-stripped line. A blank line returns nil, nil.
// Failures are always *Error.
func (p *Parser) ParseLine(line []byte) (*model.Event, error) {
	line = trimLine(line)
	if len(line) == 0 {
		return nil, nil
	}

	var entry rawEntry
	if err := unmarshalTolerant(line, &entry); err != nil {
		return nil, &Error{Kind: FailureSyntax, Err: err}
	}

	kind, ok := p.resolveKind(entry.Type)
	if !ok {
		return nil, &Error{Kind: FailureUnknownEventKind, Type: entry.Type}
	}

	event := &model.Event{
		Kind:         kind,
		Subtype:      entry.Subtype,
		SessionID:    firstNonEmpty(entry.SessionID, entry.SessionIDSnake),
		Project:      entry.CWD,
		RawTimestamp: entry.Timestamp,
		Timestamp:    parseTimestamp(entry.Timestamp),
		Error:        entry.Error,
		IsMeta:       entry.IsMeta,
		LeafID:       entry.LeafUUID,
		Summary:      entry.Summary,
		UUID:         entry.UUID,
		ParentUUID:   entry.ParentUUID,
		Raw:          string(line),
	}
	if len(entry.Checkpoint) > 0 {
		event.Checkpoint = append(json.RawMessage(nil), entry.Checkpoint...)
	}
	if msg, ok := decodeMessage(entry.Message); ok {
		event.Message = msg
	}

	return event, nil
}

func (p *Parser) resolveKind(value string) (model.EventKind, bool) {
	kind := model.EventKind(value)
	if kind.Valid() {
		return kind, true
	}
	if alias, ok := p.aliases[value]; ok && alias.Valid() {
		return alias, true
	}
	return "", false
}

type rawEntry struct {
	Type           string           `json:"type"`
	Subtype        string           `json:"subtype"`
	UUID           string           `json:"uuid"`
	ParentUUID     string           `json:"parentUuid"`
	SessionID      string           `json:"sessionId"`
	SessionIDSnake string           `json:"session_id"`
	CWD            string           `json:"cwd"`
	Timestamp      string           `json:"timestamp"`
	Message        json.RawMessage  `json:"message"`
	Error          *model.ErrorInfo `json:"-"`
	RawError       json.RawMessage  `json:"error"`
	Checkpoint     json.RawMessage  `json:"checkpoint"`
	IsMeta         bool             `json:"isMeta"`
	Summary        string           `json:"summary"`
	LeafUUID       string           `json:"leafUuid"`
}

// UnmarshalJSON decodes the entry and then the error payload, which the
// writer emits either as an object or as a bare string.
func (e *rawEntry) UnmarshalJSON(data []byte) error {
	type plain rawEntry
	err := unmarshalTolerant(data, (*plain)(e))
	e.Error = decodeError(e.RawError)
	return err
}

type messagePayload struct {
	ID           string          `json:"id"`
	Role         string          `json:"role"`
	Model        string          `json:"model"`
	StopReason   string          `json:"stop_reason"`
	StopSequence string          `json:"stop_sequence"`
	Content      json.RawMessage `json:"content"`
	Usage        *usagePayload   `json:"usage"`
}

type usagePayload struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

type contentBlock struct {
	Type           string          `json:"type"`
	Text           string          `json:"text"`
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Input          json.RawMessage `json:"input"`
	ToolUseID      string          `json:"tool_use_id"`
	ToolUseIDCamel string          `json:"toolUseId"`
	Content        json.RawMessage `json:"content"`
	IsError        bool            `json:"is_error"`
}

type errorPayload struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Code    json.RawMessage `json:"code"`
}

func decodeMessage(raw json.RawMessage) (*model.Message, bool) {
	if isNull(raw) {
		return nil, false
	}

	var msg messagePayload
	if err := unmarshalTolerant(raw, &msg); err != nil {
		// A message that is not an object degrades to "no message".
		return nil, false
	}

	out := &model.Message{
		ID:           msg.ID,
		Role:         msg.Role,
		Model:        msg.Model,
		StopReason:   msg.StopReason,
		StopSequence: msg.StopSequence,
		Content:      decodeContent(msg.Content),
	}
	if msg.Usage != nil {
		out.Usage = &model.Usage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		}
	}
	return out, true
}

func decodeContent(raw json.RawMessage) []model.Content {
	if isNull(raw) {
		return nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return []model.Content{{Kind: model.ContentText, Text: asString}}
	}

	var blocks []json.RawMessage
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil
	}

	result := make([]model.Content, 0, len(blocks))
	for _, rawBlock := range blocks {
		var block contentBlock
		if err := unmarshalTolerant(rawBlock, &block); err != nil {
			continue
		}
		switch model.ContentKind(block.Type) {
		case model.ContentText:
			result = append(result, model.Content{Kind: model.ContentText, Text: block.Text})
		case model.ContentToolUse:
			c := model.Content{Kind: model.ContentToolUse, ID: block.ID, Name: block.Name}
			if len(block.Input) > 0 {
				c.Input = append(json.RawMessage(nil), block.Input...)
			}
			result = append(result, c)
		case model.ContentToolResult:
			result = append(result, model.Content{
				Kind:      model.ContentToolResult,
				ToolUseID: firstNonEmpty(block.ToolUseID, block.ToolUseIDCamel),
				Result:    flattenResult(block.Content),
				IsError:   block.IsError,
			})
		}
	}
	return result
}

// flattenResult turns a tool_result body (string or array of blocks) into text.
func flattenResult(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}

	var nested []contentBlock
	if err := json.Unmarshal(raw, &nested); err == nil {
		parts := make([]string, 0, len(nested))
		for _, nb := range nested {
			if nb.Text != "" {
				parts = append(parts, nb.Text)
			}
		}
		return strings.Join(parts, "\n")
	}

	return string(raw)
}

func decodeError(raw json.RawMessage) *model.ErrorInfo {
	if isNull(raw) {
		return nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" {
			return nil
		}
		return &model.ErrorInfo{Message: asString}
	}

	var payload errorPayload
	if err := unmarshalTolerant(raw, &payload); err != nil {
		return nil
	}
	info := &model.ErrorInfo{Kind: payload.Type, Message: payload.Message}
	if !isNull(payload.Code) {
		var code string
		if err := json.Unmarshal(payload.Code, &code); err == nil {
			info.Code = code
		} else {
			info.Code = string(payload.Code)
		}
	}
	return info
}

func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts
	}
	return time.Time{}
}

// unmarshalTolerant decodes raw into v, ignoring type mismatches on
// individual fields. The decoder keeps filling the remaining fields after
// such a mismatch, so v is still usable. A mismatch on the value itself
// (an array where an object was expected) is still an error.
func unmarshalTolerant(raw []byte, v any) error {
	err := json.Unmarshal(raw, v)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return nil
	}
	return err
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// trimLine removes surrounding whitespace and a UTF-8 BOM.
func trimLine(line []byte) []byte {
	line = bytes.TrimPrefix(line, []byte{0xEF, 0xBB, 0xBF})
	return bytes.TrimSpace(line)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
