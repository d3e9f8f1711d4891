// Package format provides formatting and rendering functions for session data.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"

	"sessionlog/internal/store"
)

const maxPathWidth = 60

// WriteProjects writes project listings to w in the requested format.
func WriteProjects(w io.Writer, items []store.Project, includeHeader bool, format string) error {
	format = strings.ToLower(format)
	switch format {
	case "", "table":
		return writeProjectsTable(w, items, includeHeader)
	case "plain":
		return writeProjectsPlain(w, items, includeHeader)
	case "json":
		return writeJSON(w, projectRecords(items))
	case "jsonl":
		return writeJSONL(w, projectRecords(items))
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// WriteSessions writes session summaries to w in the requested format.
func WriteSessions(w io.Writer, items []store.SessionSummary, includeHeader bool, format string) error {
	format = strings.ToLower(format)
	switch format {
	case "", "table":
		return writeSessionsTable(w, items, includeHeader)
	case "plain":
		return writeSessionsPlain(w, items, includeHeader)
	case "json":
		return writeJSON(w, items)
	case "jsonl":
		return writeJSONL(w, items)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// projectRecord is the serialized form of a project listing. Sessions are
// summarized by count to keep one line per project.
type projectRecord struct {
	Path         string    `json:"path"`
	EncodedName  string    `json:"encoded_name"`
	Dir          string    `json:"dir"`
	ModTime      time.Time `json:"mod_time"`
	SessionCount int       `json:"session_count"`
	Error        string    `json:"error,omitempty"`
}

func projectRecords(items []store.Project) []projectRecord {
	records := make([]projectRecord, 0, len(items))
	for _, p := range items {
		records = append(records, projectRecord{
			Path:         p.Path,
			EncodedName:  p.EncodedName,
			Dir:          p.Dir,
			ModTime:      p.ModTime,
			SessionCount: len(p.Sessions),
			Error:        projectError(p),
		})
	}
	return records
}

// sessionCount is "?" for a project whose directory could not be read.
func sessionCount(p store.Project) string {
	if p.Unreadable() {
		return "?"
	}
	return fmt.Sprint(len(p.Sessions))
}

func projectError(p store.Project) string {
	if p.Err == nil {
		return ""
	}
	return p.Err.Error()
}

func writeProjectsPlain(w io.Writer, items []store.Project, includeHeader bool) error {
	if includeHeader {
		if _, err := fmt.Fprintln(w, "path\tencoded_name\tsessions\tlast_modified"); err != nil {
			return err
		}
	}

	for _, item := range items {
		line := fmt.Sprintf("%s\t%s\t%s\t%s", item.Path, item.EncodedName, sessionCount(item), formatTime(item.ModTime))
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeSessionsPlain(w io.Writer, items []store.SessionSummary, includeHeader bool) error {
	if includeHeader {
		if _, err := fmt.Fprintln(w, "session_id\tmodified\tsize\tsidechain"); err != nil {
			return err
		}
	}

	for _, item := range items {
		line := fmt.Sprintf("%s\t%s\t%d\t%t", item.ID, formatTime(item.ModTime), item.Size, item.IsSidechain)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = true
	tw.Style().Options.SeparateHeader = true
	tw.Style().Options.DrawBorder = true
	return tw
}

func writeProjectsTable(w io.Writer, items []store.Project, includeHeader bool) error {
	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
	})

	if includeHeader {
		tw.AppendHeader(table.Row{"Project", "Sessions", "Last Modified"})
	}

	for _, item := range items {
		tw.AppendRow(table.Row{clipLeft(item.Path, maxPathWidth), sessionCount(item), formatTime(item.ModTime)})
	}

	if len(items) == 0 {
		tw.AppendRow(table.Row{"(no projects)", 0, "-"})
	}

	_ = tw.Render()
	return nil
}

func writeSessionsTable(w io.Writer, items []store.SessionSummary, includeHeader bool) error {
	tw := newTable(w)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
	})

	if includeHeader {
		tw.AppendHeader(table.Row{"Session ID", "Modified", "Size", "Agent"})
	}

	for _, item := range items {
		agent := ""
		if item.IsSidechain {
			agent = "yes"
		}
		tw.AppendRow(table.Row{item.ID, formatTime(item.ModTime), formatSize(item.Size), agent})
	}

	if len(items) == 0 {
		tw.AppendRow(table.Row{"(no sessions)", "-", "-", ""})
	}

	_ = tw.Render()
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds <= 0 {
		return "00:00:00"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// clipLeft keeps the tail of s within width display cells, so the most
// specific part of a long path stays visible.
func clipLeft(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	out := ""
	for i := len(runes) - 1; i >= 0; i-- {
		candidate := string(runes[i]) + out
		if runewidth.StringWidth(candidate)+1 > width {
			break
		}
		out = candidate
	}
	return "…" + out
}

func escapeNewlines(text string) string {
	return strings.ReplaceAll(text, "\n", "\\n")
}
