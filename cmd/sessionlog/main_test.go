package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sessionlog/internal/pathcodec"
)

const testProject = "/work/demo"

var transcriptLines = []string{
	`{"type":"system","subtype":"init","timestamp":"2025-01-05T10:00:00Z"}`,
	`{"type":"user","message":{"role":"user","content":"Create hello.go"},"timestamp":"2025-01-05T10:00:01Z"}`,
	`{"type":"assistant","message":{"model":"model-a","content":[{"type":"tool_use","id":"t1","name":"Write","input":{"file_path":"hello.go","create":true}}]},"timestamp":"2025-01-05T10:00:02Z"}`,
	`{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"disk full","is_error":true}]},"timestamp":"2025-01-05T10:00:03Z"}`,
	`not json`,
}

func setupRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, pathcodec.Encode(testProject))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := strings.Join(transcriptLines, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, "s-1.jsonl"), []byte(content), 0o644); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	return root
}

func runCmd(t *testing.T, root string, args ...string) (string, string, error) {
	t.Helper()
	return runCmdContext(t, context.Background(), root, args...)
}

func runCmdContext(t *testing.T, ctx context.Context, root string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	base := []string{"--root", root, "--config", filepath.Join(t.TempDir(), "missing.yaml")}
	cmd.SetArgs(append(base, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestProjectsCommand(t *testing.T) {
	root := setupRoot(t)

	out, _, err := runCmd(t, root, "projects", "--format", "plain", "--no-header")
	if err != nil {
		t.Fatalf("projects command failed: %v", err)
	}
	if !strings.HasPrefix(out, testProject+"\t-work-demo\t1\t") {
		t.Fatalf("unexpected projects output: %q", out)
	}
}

func TestProjectsCommandInvalidSort(t *testing.T) {
	if _, _, err := runCmd(t, setupRoot(t), "projects", "--sort", "size"); err == nil {
		t.Fatal("expected error for invalid sort")
	}
}

func TestSessionsCommandByEncodedName(t *testing.T) {
	root := setupRoot(t)

	out, _, err := runCmd(t, root, "sessions", "--format", "jsonl", "--", "-work-demo")
	if err != nil {
		t.Fatalf("sessions command failed: %v", err)
	}
	if !strings.Contains(out, `"id":"s-1"`) {
		t.Fatalf("unexpected sessions output: %q", out)
	}
}

func TestSessionsCommandUnknownProject(t *testing.T) {
	if _, _, err := runCmd(t, setupRoot(t), "sessions", "nope"); err == nil {
		t.Fatal("expected error for unknown project")
	}
}

func TestShowCommandFormatRaw(t *testing.T) {
	root := setupRoot(t)

	out, errOut, err := runCmd(t, root, "show", testProject, "s-1", "--format", "raw")
	if err != nil {
		t.Fatalf("show command failed: %v", err)
	}
	want := strings.Join(transcriptLines[1:4], "\n") + "\n"
	if out != want {
		t.Fatalf("raw output mismatch\nwant:\n%q\n\ngot:\n%q", want, out)
	}
	if !strings.Contains(errOut, "warning: 1 line could not be parsed") {
		t.Fatalf("expected parse warning, got %q", errOut)
	}
}

func TestShowCommandConflictingColorFlags(t *testing.T) {
	if _, _, err := runCmd(t, setupRoot(t), "show", "s-1", "--color", "--no-color"); err == nil {
		t.Fatal("expected error for --color with --no-color")
	}
}

func TestStatsCommandJSON(t *testing.T) {
	root := setupRoot(t)

	out, errOut, err := runCmd(t, root, "stats", "s-1", "--format", "json")
	if err != nil {
		t.Fatalf("stats command failed: %v", err)
	}

	var decoded struct {
		Events        int `json:"events"`
		ParseFailures int `json:"parse_failures"`
		Metrics       struct {
			PromptsSent       int      `json:"prompts_sent"`
			ToolsExecuted     int      `json:"tools_executed"`
			ToolsFailed       int      `json:"tools_failed"`
			FilesCreated      int      `json:"files_created"`
			ErrorsEncountered int      `json:"errors_encountered"`
			ModelChanges      []string `json:"model_changes"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, out)
	}
	m := decoded.Metrics
	if decoded.Events != 4 || decoded.ParseFailures != 1 {
		t.Fatalf("unexpected counts: %+v", decoded)
	}
	if m.PromptsSent != 1 || m.ToolsExecuted != 1 || m.ToolsFailed != 1 || m.FilesCreated != 1 || m.ErrorsEncountered != 1 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if len(m.ModelChanges) != 1 || m.ModelChanges[0] != "model-a" {
		t.Fatalf("unexpected models: %v", m.ModelChanges)
	}
	if !strings.Contains(errOut, "could not be parsed") {
		t.Fatalf("expected parse warning, got %q", errOut)
	}
}

func TestStatsCommandFilePath(t *testing.T) {
	root := setupRoot(t)
	path := filepath.Join(root, pathcodec.Encode(testProject), "s-1.jsonl")

	out, _, err := runCmd(t, root, "stats", path)
	if err != nil {
		t.Fatalf("stats command failed: %v", err)
	}
	if !strings.Contains(out, "s-1") || !strings.Contains(out, "Files created") {
		t.Fatalf("unexpected stats table:\n%s", out)
	}
}

func TestStatsCommandMissingSessionIsEmpty(t *testing.T) {
	root := setupRoot(t)

	out, _, err := runCmd(t, root, "stats", testProject, "not-yet-written", "--format", "json")
	if err != nil {
		t.Fatalf("stats command failed: %v", err)
	}
	if !strings.Contains(out, `"events": 0`) {
		t.Fatalf("expected empty session:\n%s", out)
	}
}

func TestExportAndHistory(t *testing.T) {
	root := setupRoot(t)
	db := filepath.Join(t.TempDir(), "nested", "stats.db")

	out, _, err := runCmd(t, root, "export", testProject, "--db", db)
	if err != nil {
		t.Fatalf("export command failed: %v", err)
	}
	if !strings.HasPrefix(out, "exported 1 of 1 sessions") {
		t.Fatalf("unexpected export output: %q", out)
	}

	out, _, err = runCmd(t, root, "history", "--db", db, "--format", "json", "--", "-work-demo")
	if err != nil {
		t.Fatalf("history command failed: %v", err)
	}
	var snaps []struct {
		ProjectPath string `json:"project_path"`
		SessionID   string `json:"session_id"`
	}
	if err := json.Unmarshal([]byte(out), &snaps); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, out)
	}
	if len(snaps) != 1 || snaps[0].SessionID != "s-1" || snaps[0].ProjectPath != testProject {
		t.Fatalf("unexpected history: %+v", snaps)
	}
}

func TestStatsCommandTools(t *testing.T) {
	root := setupRoot(t)

	out, _, err := runCmd(t, root, "stats", testProject, "s-1", "--tools")
	if err != nil {
		t.Fatalf("stats command failed: %v", err)
	}
	if !strings.Contains(out, "file_created") || !strings.Contains(out, "error") {
		t.Fatalf("expected tool call table:\n%s", out)
	}
}

func TestWatchCommandLeavesRootUntouched(t *testing.T) {
	root := setupRoot(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if _, _, err := runCmdContext(t, ctx, root, "watch", "/never/ran/here", "abc"); err != nil {
		t.Fatalf("watch command failed: %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "-work-demo" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("watch modified the transcript root: %v", names)
	}

	out, _, err := runCmd(t, root, "projects", "--format", "plain", "--no-header")
	if err != nil {
		t.Fatalf("projects command failed: %v", err)
	}
	if strings.Contains(out, "/never/ran/here") {
		t.Fatalf("watched project appeared in listing: %q", out)
	}
}
