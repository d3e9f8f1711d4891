package format

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"sessionlog/internal/model"
	"sessionlog/internal/parser"
	"sessionlog/internal/session"
)

func sampleSession() session.Session {
	start := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	return session.Session{
		ID:     "session-a",
		Events: make([]model.Event, 4),
		Metrics: session.Metrics{
			FirstMessageTime: start,
			LastMessageTime:  start.Add(90 * time.Second),
			PromptsSent:      3,
			ToolsExecuted:    2,
			FilesCreated:     1,
			ModelChanges:     []string{"model-a", "model-b"},
			InputTokens:      100,
			OutputTokens:     50,
		},
		ParseFailures: []parser.Failure{{Line: 2, Err: parser.ErrSyntax}, {Line: 9, Err: parser.ErrSyntax}},
	}
}

func TestWriteMetricsTable(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMetrics(&buf, sampleSession(), "table"); err != nil {
		t.Fatalf("WriteMetrics returned error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"METRIC", "Prompts sent", "00:01:30", "model-a → model-b", "150"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestWriteMetricsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMetrics(&buf, sampleSession(), "json"); err != nil {
		t.Fatalf("WriteMetrics returned error: %v", err)
	}

	var decoded struct {
		SessionID     string `json:"session_id"`
		ParseFailures int    `json:"parse_failures"`
		DurationSec   int    `json:"duration_seconds"`
		TotalTokens   int    `json:"total_tokens"`
		Metrics       struct {
			PromptsSent  int      `json:"prompts_sent"`
			ModelChanges []string `json:"model_changes"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if decoded.SessionID != "session-a" || decoded.ParseFailures != 2 || decoded.DurationSec != 90 || decoded.TotalTokens != 150 {
		t.Fatalf("unexpected record: %+v", decoded)
	}
	if decoded.Metrics.PromptsSent != 3 || len(decoded.Metrics.ModelChanges) != 2 {
		t.Fatalf("unexpected metrics: %+v", decoded.Metrics)
	}
}

func TestWriteMetricsJSONEmptyModels(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMetrics(&buf, session.Session{ID: "empty"}, "json"); err != nil {
		t.Fatalf("WriteMetrics returned error: %v", err)
	}
	if !strings.Contains(buf.String(), `"model_changes": []`) {
		t.Fatalf("expected empty model list:\n%s", buf.String())
	}
}

func TestFailureSummary(t *testing.T) {
	if got := FailureSummary(session.Session{}); got != "" {
		t.Fatalf("expected no summary, got %q", got)
	}
	if got := FailureSummary(sampleSession()); got != "2 lines could not be parsed" {
		t.Fatalf("unexpected summary: %q", got)
	}
}
