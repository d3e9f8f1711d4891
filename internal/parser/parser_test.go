package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionlog/internal/model"
)

func parse(t *testing.T, line string) *model.Event {
	t.Helper()
	event, err := New(Options{}).ParseLine([]byte(line))
	require.NoError(t, err)
	require.NotNil(t, event)
	return event
}

func TestParseLineAssistant(t *testing.T) {
	line := `{"type":"assistant","uuid":"a-1","parentUuid":"u-1","sessionId":"s-1","cwd":"/Users/test/project","timestamp":"2025-01-05T10:00:01.250Z","message":{"id":"msg_01abc","role":"assistant","model":"model-a","stop_reason":"tool_use","content":[{"type":"text","text":"Let me look."},{"type":"tool_use","id":"toolu_1","name":"Read","input":{"file_path":"/tmp/README.md"}}],"usage":{"input_tokens":10,"output_tokens":15,"cache_read_input_tokens":7}}}`

	event := parse(t, line)

	assert.Equal(t, model.EventAssistant, event.Kind)
	assert.Equal(t, "s-1", event.SessionID)
	assert.Equal(t, "/Users/test/project", event.Project)
	assert.Equal(t, "a-1", event.UUID)
	assert.Equal(t, "u-1", event.ParentUUID)
	assert.Equal(t, time.Date(2025, 1, 5, 10, 0, 1, 250_000_000, time.UTC), event.Timestamp)
	assert.Equal(t, line, event.Raw)

	require.NotNil(t, event.Message)
	assert.Equal(t, "msg_01abc", event.Message.ID)
	assert.Equal(t, "model-a", event.Message.Model)
	assert.Equal(t, "tool_use", event.Message.StopReason)
	require.Len(t, event.Message.Content, 2)
	assert.Equal(t, model.ContentText, event.Message.Content[0].Kind)
	assert.Equal(t, "Let me look.", event.Message.Content[0].Text)
	assert.Equal(t, model.ContentToolUse, event.Message.Content[1].Kind)
	assert.Equal(t, "toolu_1", event.Message.Content[1].ID)
	assert.Equal(t, "Read", event.Message.Content[1].Name)
	assert.JSONEq(t, `{"file_path":"/tmp/README.md"}`, string(event.Message.Content[1].Input))

	require.NotNil(t, event.Message.Usage)
	assert.Equal(t, 10, event.Message.Usage.InputTokens)
	assert.Equal(t, 15, event.Message.Usage.OutputTokens)
	assert.Equal(t, 7, event.Message.Usage.CacheReadInputTokens)
	assert.Equal(t, 0, event.Message.Usage.CacheCreationInputTokens)
}

func TestParseLineUserStringContent(t *testing.T) {
	event := parse(t, `{"type":"user","message":{"role":"user","content":"What is Python?"}}`)

	require.NotNil(t, event.Message)
	require.Len(t, event.Message.Content, 1)
	assert.Equal(t, model.Content{Kind: model.ContentText, Text: "What is Python?"}, event.Message.Content[0])
}

func TestParseLineToolResult(t *testing.T) {
	cases := []struct {
		name string
		line string
		want model.Content
	}{
		{
			name: "string body",
			line: `{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"permission denied","is_error":true}]}}`,
			want: model.Content{Kind: model.ContentToolResult, ToolUseID: "toolu_1", Result: "permission denied", IsError: true},
		},
		{
			name: "block body",
			line: `{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_2","content":[{"type":"text","text":"line one"},{"type":"text","text":"line two"}]}]}}`,
			want: model.Content{Kind: model.ContentToolResult, ToolUseID: "toolu_2", Result: "line one\nline two"},
		},
		{
			name: "camelCase id",
			line: `{"type":"user","message":{"content":[{"type":"tool_result","toolUseId":"toolu_3","content":"ok"}]}}`,
			want: model.Content{Kind: model.ContentToolResult, ToolUseID: "toolu_3", Result: "ok"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := parse(t, tc.line)
			require.NotNil(t, event.Message)
			require.Len(t, event.Message.Content, 1)
			assert.Equal(t, tc.want, event.Message.Content[0])
		})
	}
}

func TestParseLineBlank(t *testing.T) {
	p := New(Options{})
	for _, line := range []string{"", "   ", "\t\r", "\xEF\xBB\xBF"} {
		event, err := p.ParseLine([]byte(line))
		assert.NoError(t, err, "line %q", line)
		assert.Nil(t, event, "line %q", line)
	}
}

func TestParseLineSyntaxError(t *testing.T) {
	p := New(Options{})
	for _, line := range []string{`{malformed json`, `[1,2,3]`, `"just a string"`, `{"type":"user"`} {
		event, err := p.ParseLine([]byte(line))
		assert.Nil(t, event)
		require.Error(t, err, "line %q", line)
		assert.True(t, errors.Is(err, ErrSyntax), "line %q: %v", line, err)
		assert.False(t, errors.Is(err, ErrUnknownEventKind))

		var perr *Error
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, FailureSyntax, perr.Kind)
	}
}

func TestParseLineUnknownKind(t *testing.T) {
	p := New(Options{})
	for _, line := range []string{`{"type":"stream_event"}`, `{"foo":"bar"}`, `{"type":42}`} {
		event, err := p.ParseLine([]byte(line))
		assert.Nil(t, event)
		assert.ErrorIs(t, err, ErrUnknownEventKind, "line %q", line)
	}
}

func TestParseLineRecognizesEveryKind(t *testing.T) {
	p := New(Options{})
	for _, kind := range model.EventKinds() {
		event, err := p.ParseLine([]byte(`{"type":"` + string(kind) + `"}`))
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.Equal(t, kind, event.Kind)
		assert.Nil(t, event.Message)
	}
}

func TestParseLineKindAliases(t *testing.T) {
	event := parse(t, `{"type":"summary","summary":"Reading and discussing README file","leafUuid":"asst-msg-2"}`)
	assert.Equal(t, model.EventMeta, event.Kind)
	assert.Equal(t, "Reading and discussing README file", event.Summary)
	assert.Equal(t, "asst-msg-2", event.LeafID)

	custom := New(Options{KindAliases: map[string]model.EventKind{"file-history-snapshot": model.EventResult}})
	event, err := custom.ParseLine([]byte(`{"type":"file-history-snapshot","checkpoint":{"messageId":"m1"}}`))
	require.NoError(t, err)
	assert.Equal(t, model.EventResult, event.Kind)
	assert.True(t, event.HasCheckpoint())

	_, err = custom.ParseLine([]byte(`{"type":"summary"}`))
	assert.ErrorIs(t, err, ErrUnknownEventKind, "custom aliases replace the defaults")
}

func TestParseLineToleratesOddShapes(t *testing.T) {
	cases := []struct {
		name  string
		line  string
		check func(t *testing.T, e *model.Event)
	}{
		{
			name: "unknown fields",
			line: `{"type":"system","subtype":"init","brandNew":{"x":1},"gitBranch":"main"}`,
			check: func(t *testing.T, e *model.Event) {
				assert.Equal(t, "init", e.Subtype)
			},
		},
		{
			name: "message is not an object",
			line: `{"type":"assistant","message":"oops"}`,
			check: func(t *testing.T, e *model.Event) {
				assert.Nil(t, e.Message)
			},
		},
		{
			name: "bad timestamp",
			line: `{"type":"user","timestamp":"yesterday"}`,
			check: func(t *testing.T, e *model.Event) {
				assert.True(t, e.Timestamp.IsZero())
				assert.Equal(t, "yesterday", e.RawTimestamp)
			},
		},
		{
			name: "unknown content blocks dropped",
			line: `{"type":"assistant","message":{"content":[{"type":"thinking","thinking":"hmm"},{"type":"text","text":"done"},{"type":"image","source":{}}]}}`,
			check: func(t *testing.T, e *model.Event) {
				require.NotNil(t, e.Message)
				require.Len(t, e.Message.Content, 1)
				assert.Equal(t, "done", e.Message.Content[0].Text)
			},
		},
		{
			name: "mistyped usage field",
			line: `{"type":"assistant","message":{"model":"model-a","usage":{"input_tokens":"12","output_tokens":3}}}`,
			check: func(t *testing.T, e *model.Event) {
				require.NotNil(t, e.Message)
				assert.Equal(t, "model-a", e.Message.Model)
				require.NotNil(t, e.Message.Usage)
				assert.Equal(t, 0, e.Message.Usage.InputTokens)
				assert.Equal(t, 3, e.Message.Usage.OutputTokens)
			},
		},
		{
			name: "mistyped meta flag",
			line: `{"type":"user","isMeta":"yes","sessionId":"s-9"}`,
			check: func(t *testing.T, e *model.Event) {
				assert.False(t, e.IsMeta)
				assert.Equal(t, "s-9", e.SessionID)
			},
		},
		{
			name: "snake case session id",
			line: `{"type":"result","session_id":"s-2"}`,
			check: func(t *testing.T, e *model.Event) {
				assert.Equal(t, "s-2", e.SessionID)
			},
		},
		{
			name: "bom prefix",
			line: "\xEF\xBB\xBF{\"type\":\"meta\"}",
			check: func(t *testing.T, e *model.Event) {
				assert.Equal(t, model.EventMeta, e.Kind)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, parse(t, tc.line))
		})
	}
}

func TestParseLineErrorPayload(t *testing.T) {
	event := parse(t, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded","code":529}}`)
	require.NotNil(t, event.Error)
	assert.Equal(t, model.ErrorInfo{Kind: "overloaded_error", Message: "Overloaded", Code: "529"}, *event.Error)

	event = parse(t, `{"type":"error","error":{"type":"api_error","message":"boom","code":"E42"}}`)
	assert.Equal(t, "E42", event.Error.Code)

	event = parse(t, `{"type":"error","error":"connection reset"}`)
	require.NotNil(t, event.Error)
	assert.Equal(t, "connection reset", event.Error.Message)

	event = parse(t, `{"type":"error"}`)
	assert.Nil(t, event.Error)
}

func TestParseLineCheckpointPreserved(t *testing.T) {
	event := parse(t, `{"type":"result","subtype":"success","checkpoint":{"id":"cp-1","files":["a.go"]}}`)
	assert.Equal(t, `{"id":"cp-1","files":["a.go"]}`, string(event.Checkpoint))
	assert.True(t, event.HasCheckpoint())
}

func TestFailureError(t *testing.T) {
	_, err := New(Options{}).ParseLine([]byte(`{"type":"nope"}`))
	f := Failure{Line: 7, Err: err}
	assert.Equal(t, `line 7: unknown event kind "nope"`, f.Error())
	assert.ErrorIs(t, f, ErrUnknownEventKind)
}
