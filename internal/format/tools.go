package format

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"sessionlog/internal/session"
)

// WriteToolCalls writes one table row per tool call with the class the
// rules assign to it and whether its result reported an error.
func WriteToolCalls(w io.Writer, calls []session.ToolCall, rules session.Rules) error {
	tw := newTable(w)
	tw.Style().Options.SeparateRows = false
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
	})
	tw.AppendHeader(table.Row{"#", "Tool", "Class", "Status"})

	for i, call := range calls {
		tw.AppendRow(table.Row{i + 1, call.Name, rules.Classify(call.Name, call.Input).String(), toolStatus(call)})
	}
	if len(calls) == 0 {
		tw.AppendRow(table.Row{"-", "(no tool calls)", "-", "-"})
	}

	_ = tw.Render()
	return nil
}

func toolStatus(call session.ToolCall) string {
	switch {
	case call.Result == nil:
		return "pending"
	case call.Failed():
		return "error"
	default:
		return "ok"
	}
}
