package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"sessionlog/internal/statsdb"
)

// WriteSnapshots writes stored metrics snapshots in the requested format.
func WriteSnapshots(w io.Writer, items []statsdb.Snapshot, includeHeader bool, format string) error {
	format = strings.ToLower(format)
	switch format {
	case "", "table":
		return writeSnapshotsTable(w, items, includeHeader)
	case "json":
		if items == nil {
			items = []statsdb.Snapshot{}
		}
		return writeJSON(w, items)
	case "jsonl":
		return writeJSONL(w, items)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func writeSnapshotsTable(w io.Writer, items []statsdb.Snapshot, includeHeader bool) error {
	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 7, Align: text.AlignRight, AlignHeader: text.AlignCenter},
	})

	if includeHeader {
		tw.AppendHeader(table.Row{"Project", "Session ID", "Captured", "Prompts", "Tools", "Failed", "Tokens"})
	}

	for _, item := range items {
		m := item.Metrics
		tw.AppendRow(table.Row{
			clipLeft(item.ProjectPath, maxPathWidth/2),
			item.SessionID,
			formatTime(item.CapturedAt),
			m.PromptsSent,
			m.ToolsExecuted,
			m.ToolsFailed,
			m.TotalTokens(),
		})
	}

	if len(items) == 0 {
		tw.AppendRow(table.Row{"(no snapshots)", "-", "-", 0, 0, 0, 0})
	}

	_ = tw.Render()
	return nil
}
