package session

import (
	"encoding/json"
	"strings"
)

// Rules is the vocabulary used to classify tool invocations and to detect
// resumed sessions. Tool names are matched case-insensitively.
//
// The defaults are inferred from observed transcripts and are expected to
// drift with the writer; override them through the config file rather than
// editing the table.
type Rules struct {
	// WriteTools write whole files. A create signal makes the call count as
	// a created file, otherwise as a modified one.
	WriteTools []string `yaml:"write_tools" json:"write_tools"`
	// EditTools change existing files. A create signal (for example the
	// text editor tool's "command":"create") counts as a created file.
	EditTools []string `yaml:"edit_tools" json:"edit_tools"`
	// DeleteTools remove files.
	DeleteTools []string `yaml:"delete_tools" json:"delete_tools"`
	// CreateSignals are keywords that mark a write as creating a new file.
	// A signal is present when the tool name contains a keyword, when a
	// boolean input field whose name contains a keyword is true, or when
	// one of CreateSignalFields holds a keyword as its value.
	CreateSignals []string `yaml:"create_signals" json:"create_signals"`
	// CreateSignalFields are input fields whose string value is compared
	// against CreateSignals.
	CreateSignalFields []string `yaml:"create_signal_fields" json:"create_signal_fields"`
	// MCPPrefixes identify tools served over the external tool protocol.
	MCPPrefixes []string `yaml:"mcp_prefixes" json:"mcp_prefixes"`
	// ResumeSubtypes are system subtypes written when a session is resumed.
	ResumeSubtypes []string `yaml:"resume_subtypes" json:"resume_subtypes"`
}

// DefaultRules returns the built-in classification table.
func DefaultRules() Rules {
	return Rules{
		WriteTools:         []string{"Write", "write_file", "create_file", "NotebookWrite"},
		EditTools:          []string{"Edit", "MultiEdit", "NotebookEdit", "edit_file", "apply_patch", "str_replace_editor", "str_replace_based_edit_tool"},
		DeleteTools:        []string{"Delete", "delete_file", "remove_file"},
		CreateSignals:      []string{"create", "new"},
		CreateSignalFields: []string{"command", "mode", "operation", "action", "type"},
		MCPPrefixes:        []string{"mcp__"},
		ResumeSubtypes:     []string{"resume", "resumed", "session_resumed"},
	}
}

// Merge returns r with every empty list filled from fallback.
func (r Rules) Merge(fallback Rules) Rules {
	pick := func(a, b []string) []string {
		if len(a) > 0 {
			return a
		}
		return b
	}
	return Rules{
		WriteTools:         pick(r.WriteTools, fallback.WriteTools),
		EditTools:          pick(r.EditTools, fallback.EditTools),
		DeleteTools:        pick(r.DeleteTools, fallback.DeleteTools),
		CreateSignals:      pick(r.CreateSignals, fallback.CreateSignals),
		CreateSignalFields: pick(r.CreateSignalFields, fallback.CreateSignalFields),
		MCPPrefixes:        pick(r.MCPPrefixes, fallback.MCPPrefixes),
		ResumeSubtypes:     pick(r.ResumeSubtypes, fallback.ResumeSubtypes),
	}
}

// ToolClass is the bucket a tool invocation is counted in.
type ToolClass int

const (
	ToolOther ToolClass = iota
	ToolFileCreated
	ToolFileModified
	ToolFileDeleted
	ToolMCP
)

func (c ToolClass) String() string {
	switch c {
	case ToolFileCreated:
		return "file_created"
	case ToolFileModified:
		return "file_modified"
	case ToolFileDeleted:
		return "file_deleted"
	case ToolMCP:
		return "mcp"
	default:
		return "other"
	}
}

// Classify returns the bucket for a tool_use block. MCP tools are counted
// only as MCP calls even when their name suggests a file operation.
func (r Rules) Classify(name string, input json.RawMessage) ToolClass {
	lower := strings.ToLower(name)
	for _, prefix := range r.MCPPrefixes {
		if prefix != "" && strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return ToolMCP
		}
	}

	switch {
	case containsFold(r.DeleteTools, name):
		return ToolFileDeleted
	case containsFold(r.WriteTools, name), containsFold(r.EditTools, name):
		if r.hasCreateSignal(lower, input) {
			return ToolFileCreated
		}
		return ToolFileModified
	}
	return ToolOther
}

// IsResume reports whether a system subtype marks a resumed session.
func (r Rules) IsResume(subtype string) bool {
	return subtype != "" && containsFold(r.ResumeSubtypes, subtype)
}

func (r Rules) hasCreateSignal(lowerName string, input json.RawMessage) bool {
	for _, signal := range r.CreateSignals {
		if signal != "" && strings.Contains(lowerName, strings.ToLower(signal)) {
			return true
		}
	}

	if len(input) == 0 {
		return false
	}
	var fields map[string]any
	if err := json.Unmarshal(input, &fields); err != nil {
		return false
	}

	for key, value := range fields {
		switch v := value.(type) {
		case bool:
			if v && r.keyHasSignal(key) {
				return true
			}
		case string:
			if containsFold(r.CreateSignalFields, key) && containsFold(r.CreateSignals, v) {
				return true
			}
		}
	}
	return false
}

func (r Rules) keyHasSignal(key string) bool {
	key = strings.ToLower(key)
	for _, signal := range r.CreateSignals {
		if signal != "" && strings.Contains(key, strings.ToLower(signal)) {
			return true
		}
	}
	return false
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
