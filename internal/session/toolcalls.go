package session

import (
	"encoding/json"

	"sessionlog/internal/model"
)

// ToolCall is a tool_use block paired with the tool_result answering it.
type ToolCall struct {
	ID     string
	Name   string
	Input  json.RawMessage
	Result *model.Content
}

// Failed reports whether the paired result is an error.
func (c ToolCall) Failed() bool {
	return c.Result != nil && c.Result.IsError
}

// ToolCalls pairs tool_use blocks with their results, in tool_use order.
// Calls without a result keep a nil Result; results without a call are
// ignored.
func ToolCalls(events []model.Event) []ToolCall {
	var calls []ToolCall
	index := make(map[string]int)

	for _, e := range events {
		if e.Message == nil {
			continue
		}
		for i := range e.Message.Content {
			c := e.Message.Content[i]
			switch c.Kind {
			case model.ContentToolUse:
				if c.ID != "" {
					index[c.ID] = len(calls)
				}
				calls = append(calls, ToolCall{ID: c.ID, Name: c.Name, Input: c.Input})
			case model.ContentToolResult:
				pos, ok := index[c.ToolUseID]
				if !ok || calls[pos].Result != nil {
					continue
				}
				result := c
				calls[pos].Result = &result
			}
		}
	}
	return calls
}
