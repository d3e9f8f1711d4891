package format

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"sessionlog/internal/model"
)

func TestRenderEventLines_Text(t *testing.T) {
	event := model.Event{
		Kind: model.EventAssistant,
		Message: &model.Message{
			Role:    "assistant",
			Content: []model.Content{{Kind: model.ContentText, Text: "one two three four five six"}},
		},
	}

	lines := RenderEventLines(event, 10)
	if len(lines) < 2 {
		t.Fatalf("expected wrapped lines, got %v", lines)
	}
	if strings.TrimSpace(lines[0]) == "" {
		t.Fatalf("first line should contain text: %v", lines)
	}
}

func TestRenderEventLines_ToolUse(t *testing.T) {
	event := model.Event{
		Kind: model.EventAssistant,
		Message: &model.Message{Content: []model.Content{
			{Kind: model.ContentToolUse, Name: "Read", Input: json.RawMessage(`{"file_path":"/tmp/a","limit":{"lines":2}}`)},
		}},
	}

	lines := RenderEventLines(event, 80)
	if lines[0] != "Tool: Read" || lines[1] != "Input:" {
		t.Fatalf("unexpected tool header: %v", lines)
	}
	if !strings.HasPrefix(lines[2], "{") || !strings.HasPrefix(lines[3], "  ") {
		t.Fatalf("json indentation missing: %v", lines)
	}
}

func TestRenderEventLines_ToolResult(t *testing.T) {
	event := model.Event{
		Kind: model.EventUser,
		Message: &model.Message{Content: []model.Content{
			{Kind: model.ContentToolResult, ToolUseID: "t1", Result: "permission denied", IsError: true},
		}},
	}

	lines := RenderEventLines(event, 80)
	if len(lines) != 1 || lines[0] != "Output (error): permission denied" {
		t.Fatalf("unexpected result lines: %v", lines)
	}
}

func TestRenderEventLines_NonMessageKinds(t *testing.T) {
	cases := []struct {
		event model.Event
		want  string
	}{
		{model.Event{Kind: model.EventSystem, Subtype: "init", Project: "/tmp/p"}, "System (init) in /tmp/p"},
		{model.Event{Kind: model.EventError, Error: &model.ErrorInfo{Kind: "api_error", Message: "boom", Code: "500"}}, "Error: api_error: boom (code 500)"},
		{model.Event{Kind: model.EventError}, "Error: (no details)"},
		{model.Event{Kind: model.EventMeta, Summary: "Reading README"}, "Reading README"},
		{model.Event{Kind: model.EventResult, Checkpoint: json.RawMessage(`{ "id": "cp-1" }`)}, `Checkpoint: {"id":"cp-1"}`},
	}

	for _, tc := range cases {
		lines := RenderEventLines(tc.event, 80)
		if len(lines) != 1 || lines[0] != tc.want {
			t.Errorf("%s: got %v, want %q", tc.event.Kind, lines, tc.want)
		}
	}
}

func TestRenderEvent(t *testing.T) {
	event := model.Event{
		Kind:      model.EventAssistant,
		Timestamp: time.Date(2025, 10, 25, 12, 0, 0, 0, time.UTC),
		Message: &model.Message{
			Role:    "assistant",
			Model:   "model-a",
			Content: []model.Content{{Kind: model.ContentText, Text: "Done."}},
		},
	}

	want := "[2025-10-25T12:00:00Z][assistant model-a]\nDone."
	if got := RenderEvent(event, 0); got != want {
		t.Fatalf("unexpected render:\n%q\n%q", got, want)
	}

	if got := RenderEvent(model.Event{Kind: model.EventUser, IsMeta: true}, 0); got != "[-][user (meta)]" {
		t.Fatalf("unexpected empty render: %q", got)
	}
}

func TestWrapBodyKeepsParagraphs(t *testing.T) {
	got := wrapBody("alpha beta gamma\n\ndelta", 11)
	want := "alpha beta\ngamma\n\ndelta"
	if got != want {
		t.Fatalf("unexpected wrap:\n%q\n%q", got, want)
	}
}
