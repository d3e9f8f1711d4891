package session

import "time"

// Metrics summarizes a session. Every counter only grows as events are
// folded in.
type Metrics struct {
	FirstMessageTime    time.Time `json:"first_message_time"`
	LastMessageTime     time.Time `json:"last_message_time"`
	PromptsSent         int       `json:"prompts_sent"`
	ToolsExecuted       int       `json:"tools_executed"`
	ToolsFailed         int       `json:"tools_failed"`
	FilesCreated        int       `json:"files_created"`
	FilesModified       int       `json:"files_modified"`
	FilesDeleted        int       `json:"files_deleted"`
	MCPCalls            int       `json:"mcp_calls"`
	CodeBlocksGenerated int       `json:"code_blocks_generated"`
	ErrorsEncountered   int       `json:"errors_encountered"`
	CheckpointCount     int       `json:"checkpoint_count"`
	WasResumed          bool      `json:"was_resumed"`
	ModelChanges        []string  `json:"model_changes"`
	InputTokens         int       `json:"input_tokens"`
	OutputTokens        int       `json:"output_tokens"`
	CacheReadTokens     int       `json:"cache_read_tokens"`
	CacheCreationTokens int       `json:"cache_creation_tokens"`
}

// TotalTokens sums every token counter.
func (m Metrics) TotalTokens() int {
	return m.InputTokens + m.OutputTokens + m.CacheReadTokens + m.CacheCreationTokens
}

// Duration is the span between the first and last timestamped events.
func (m Metrics) Duration() time.Duration {
	if m.FirstMessageTime.IsZero() || m.LastMessageTime.IsZero() {
		return 0
	}
	return m.LastMessageTime.Sub(m.FirstMessageTime)
}

func (m Metrics) clone() Metrics {
	if m.ModelChanges != nil {
		m.ModelChanges = append([]string(nil), m.ModelChanges...)
	}
	return m
}
