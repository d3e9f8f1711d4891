package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"sessionlog/internal/session"
)

type metricsRecord struct {
	SessionID     string          `json:"session_id"`
	Events        int             `json:"events"`
	ParseFailures int             `json:"parse_failures"`
	DurationSec   int             `json:"duration_seconds"`
	TotalTokens   int             `json:"total_tokens"`
	Metrics       session.Metrics `json:"metrics"`
}

// WriteMetrics writes the metrics of s in the requested format.
func WriteMetrics(w io.Writer, s session.Session, format string) error {
	format = strings.ToLower(format)
	switch format {
	case "", "table":
		return writeMetricsTable(w, s)
	case "json":
		m := s.Metrics
		if m.ModelChanges == nil {
			m.ModelChanges = []string{}
		}
		return writeJSON(w, metricsRecord{
			SessionID:     s.ID,
			Events:        len(s.Events),
			ParseFailures: len(s.ParseFailures),
			DurationSec:   int(m.Duration().Seconds()),
			TotalTokens:   m.TotalTokens(),
			Metrics:       m,
		})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// MetricRows returns the label/value pairs shown for a session.
func MetricRows(s session.Session) [][2]string {
	m := s.Metrics
	models := "-"
	if len(m.ModelChanges) > 0 {
		models = strings.Join(m.ModelChanges, " → ")
	}
	return [][2]string{
		{"Session", s.ID},
		{"Started", formatTime(m.FirstMessageTime)},
		{"Duration", formatDuration(m.Duration())},
		{"Events", fmt.Sprint(len(s.Events))},
		{"Prompts sent", fmt.Sprint(m.PromptsSent)},
		{"Tools executed", fmt.Sprint(m.ToolsExecuted)},
		{"Tools failed", fmt.Sprint(m.ToolsFailed)},
		{"Files created", fmt.Sprint(m.FilesCreated)},
		{"Files modified", fmt.Sprint(m.FilesModified)},
		{"Files deleted", fmt.Sprint(m.FilesDeleted)},
		{"MCP calls", fmt.Sprint(m.MCPCalls)},
		{"Code blocks", fmt.Sprint(m.CodeBlocksGenerated)},
		{"Errors", fmt.Sprint(m.ErrorsEncountered)},
		{"Checkpoints", fmt.Sprint(m.CheckpointCount)},
		{"Resumed", yesNo(m.WasResumed)},
		{"Models", models},
		{"Input tokens", fmt.Sprint(m.InputTokens)},
		{"Output tokens", fmt.Sprint(m.OutputTokens)},
		{"Cache read tokens", fmt.Sprint(m.CacheReadTokens)},
		{"Cache creation tokens", fmt.Sprint(m.CacheCreationTokens)},
		{"Total tokens", fmt.Sprint(m.TotalTokens())},
	}
}

func writeMetricsTable(w io.Writer, s session.Session) error {
	tw := newTable(w)
	tw.Style().Options.SeparateRows = false
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignCenter, WidthMax: 80},
	})
	tw.AppendHeader(table.Row{"Metric", "Value"})
	for _, row := range MetricRows(s) {
		tw.AppendRow(table.Row{row[0], row[1]})
	}
	_ = tw.Render()
	return nil
}

// FailureSummary returns the warning printed when lines were skipped, or ""
// when every line parsed.
func FailureSummary(s session.Session) string {
	switch n := len(s.ParseFailures); n {
	case 0:
		return ""
	case 1:
		return "1 line could not be parsed"
	default:
		return fmt.Sprintf("%d lines could not be parsed", n)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
