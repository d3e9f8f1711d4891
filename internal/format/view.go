package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"sessionlog/internal/model"
)

// RenderEventLines returns the formatted body lines for a transcript event.
func RenderEventLines(event model.Event, wrapWidth int) []string {
	switch event.Kind {
	case model.EventSystem:
		label := "System"
		if event.Subtype != "" {
			label += " (" + event.Subtype + ")"
		}
		if event.Project != "" {
			label += " in " + event.Project
		}
		return []string{label}
	case model.EventError:
		return []string{"Error: " + errorText(event.Error)}
	case model.EventMeta:
		if event.Summary != "" {
			return strings.Split(wrapBody(event.Summary, wrapWidth), "\n")
		}
	case model.EventResult:
		if event.HasCheckpoint() {
			return []string{"Checkpoint: " + compactJSON(event.Checkpoint)}
		}
	}

	if event.Message == nil {
		return nil
	}
	body := renderBlocks(event.Message.Content, wrapWidth)
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

// RenderEvent converts an event into a printable string with a header line.
func RenderEvent(event model.Event, wrapWidth int) string {
	lines := RenderEventLines(event, wrapWidth)
	header := fmt.Sprintf("[%s][%s]", formatEventTime(event.Timestamp), EventLabel(event))
	if len(lines) == 0 {
		return header
	}
	return header + "\n" + strings.Join(lines, "\n")
}

// EventLabel names the speaker of an event.
func EventLabel(event model.Event) string {
	label := event.Role()
	if event.Message != nil && event.Message.Model != "" && event.Kind == model.EventAssistant {
		label += " " + event.Message.Model
	}
	if event.IsMeta {
		label += " (meta)"
	}
	return label
}

func formatEventTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Format(time.RFC3339)
}

// renderBlocks joins content blocks into a printable string with optional wrapping.
func renderBlocks(blocks []model.Content, wrapWidth int) string {
	if len(blocks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		switch block.Kind {
		case model.ContentText:
			if text := strings.TrimSpace(block.Text); text != "" {
				parts = append(parts, wrapBody(text, wrapWidth))
			}
		case model.ContentToolUse:
			parts = append(parts, fmt.Sprintf("Tool: %s", block.Name))
			if len(block.Input) > 0 {
				parts = append(parts, fmt.Sprintf("Input:\n%s", formatJSON(string(block.Input))))
			}
		case model.ContentToolResult:
			label := "Output"
			if block.IsError {
				label = "Output (error)"
			}
			formatted := formatJSON(block.Result)
			if formatted == block.Result {
				parts = append(parts, fmt.Sprintf("%s: %s", label, block.Result))
			} else {
				parts = append(parts, fmt.Sprintf("%s:\n%s", label, formatted))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// wrapBody wraps text on word boundaries at width display cells. Existing
// line breaks are kept.
func wrapBody(text string, width int) string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return text
	}

	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if runewidth.StringWidth(current)+1+runewidth.StringWidth(word) > width {
				out = append(out, current)
				current = word
			} else {
				current += " " + word
			}
		}
		out = append(out, current)
	}
	return strings.Join(out, "\n")
}

func errorText(info *model.ErrorInfo) string {
	if info == nil {
		return "(no details)"
	}
	var b strings.Builder
	if info.Kind != "" {
		b.WriteString(info.Kind)
		b.WriteString(": ")
	}
	b.WriteString(info.Message)
	if info.Code != "" {
		fmt.Fprintf(&b, " (code %s)", info.Code)
	}
	return b.String()
}

func formatJSON(raw string) string {
	if raw == "" {
		return raw
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err == nil {
		return buf.String()
	}
	return raw
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return escapeNewlines(buf.String())
	}
	return escapeNewlines(string(raw))
}
