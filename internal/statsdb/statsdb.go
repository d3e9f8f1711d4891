// Package statsdb persists session metrics snapshots in a local SQLite
// database so they can be compared across runs.
package statsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.

	"sessionlog/internal/session"
)

// ErrNotFound is returned when no snapshot exists for a session.
var ErrNotFound = errors.New("snapshot not found")

// Snapshot is the stored summary of one session at capture time.
type Snapshot struct {
	ProjectPath   string          `json:"project_path"`
	SessionID     string          `json:"session_id"`
	CapturedAt    time.Time       `json:"captured_at"`
	Events        int             `json:"events"`
	ParseFailures int             `json:"parse_failures"`
	Metrics       session.Metrics `json:"metrics"`
}

// NewSnapshot captures the metrics of s for the given project.
func NewSnapshot(projectPath string, s session.Session, capturedAt time.Time) Snapshot {
	return Snapshot{
		ProjectPath:   projectPath,
		SessionID:     s.ID,
		CapturedAt:    capturedAt,
		Events:        len(s.Events),
		ParseFailures: len(s.ParseFailures),
		Metrics:       s.Metrics,
	}
}

// Store wraps the SQLite connection.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath with WAL mode and a
// 5-second busy timeout, then runs any pending migrations.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("check journal mode: %w", err)
	}
	if journalMode != "wal" {
		_ = db.Close()
		return nil, fmt.Errorf("expected WAL journal mode, got %q", journalMode)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save replaces the stored snapshot for the snapshot's session.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	if snap.SessionID == "" {
		return errors.New("save snapshot: empty session id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m := snap.Metrics
	_, err = tx.ExecContext(ctx, `INSERT INTO snapshots (
		project_path, session_id, captured_at, event_count, parse_failures,
		first_message_at, last_message_at, prompts_sent, tools_executed, tools_failed,
		files_created, files_modified, files_deleted, mcp_calls, code_blocks,
		errors_encountered, checkpoint_count, was_resumed,
		input_tokens, output_tokens, cache_read_tokens, cache_creation_tokens
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(project_path, session_id) DO UPDATE SET
		captured_at = excluded.captured_at,
		event_count = excluded.event_count,
		parse_failures = excluded.parse_failures,
		first_message_at = excluded.first_message_at,
		last_message_at = excluded.last_message_at,
		prompts_sent = excluded.prompts_sent,
		tools_executed = excluded.tools_executed,
		tools_failed = excluded.tools_failed,
		files_created = excluded.files_created,
		files_modified = excluded.files_modified,
		files_deleted = excluded.files_deleted,
		mcp_calls = excluded.mcp_calls,
		code_blocks = excluded.code_blocks,
		errors_encountered = excluded.errors_encountered,
		checkpoint_count = excluded.checkpoint_count,
		was_resumed = excluded.was_resumed,
		input_tokens = excluded.input_tokens,
		output_tokens = excluded.output_tokens,
		cache_read_tokens = excluded.cache_read_tokens,
		cache_creation_tokens = excluded.cache_creation_tokens`,
		snap.ProjectPath, snap.SessionID, formatTime(snap.CapturedAt), snap.Events, snap.ParseFailures,
		formatTime(m.FirstMessageTime), formatTime(m.LastMessageTime), m.PromptsSent, m.ToolsExecuted, m.ToolsFailed,
		m.FilesCreated, m.FilesModified, m.FilesDeleted, m.MCPCalls, m.CodeBlocksGenerated,
		m.ErrorsEncountered, m.CheckpointCount, m.WasResumed,
		m.InputTokens, m.OutputTokens, m.CacheReadTokens, m.CacheCreationTokens,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", snap.SessionID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshot_models WHERE project_path = ? AND session_id = ?`,
		snap.ProjectPath, snap.SessionID,
	); err != nil {
		return fmt.Errorf("clear models for %s: %w", snap.SessionID, err)
	}
	for i, name := range m.ModelChanges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_models (project_path, session_id, position, model) VALUES (?, ?, ?, ?)`,
			snap.ProjectPath, snap.SessionID, i, name,
		); err != nil {
			return fmt.Errorf("insert model for %s: %w", snap.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", snap.SessionID, err)
	}
	return nil
}

// Get returns the stored snapshot for one session.
func (s *Store) Get(ctx context.Context, projectPath, sessionID string) (Snapshot, error) {
	snaps, err := s.query(ctx, selectSnapshots+` WHERE project_path = ? AND session_id = ?`, projectPath, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if len(snaps) == 0 {
		return Snapshot{}, fmt.Errorf("%s/%s: %w", projectPath, sessionID, ErrNotFound)
	}
	return snaps[0], nil
}

// List returns snapshots newest first. An empty projectPath lists every
// project.
func (s *Store) List(ctx context.Context, projectPath string) ([]Snapshot, error) {
	if projectPath == "" {
		return s.query(ctx, selectSnapshots+` ORDER BY captured_at DESC, session_id`)
	}
	return s.query(ctx, selectSnapshots+` WHERE project_path = ? ORDER BY captured_at DESC, session_id`, projectPath)
}

// Delete removes the snapshot for one session. Deleting a missing snapshot
// is not an error.
func (s *Store) Delete(ctx context.Context, projectPath, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE project_path = ? AND session_id = ?`,
		projectPath, sessionID,
	)
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", sessionID, err)
	}
	return nil
}

const selectSnapshots = `SELECT
	project_path, session_id, captured_at, event_count, parse_failures,
	first_message_at, last_message_at, prompts_sent, tools_executed, tools_failed,
	files_created, files_modified, files_deleted, mcp_calls, code_blocks,
	errors_encountered, checkpoint_count, was_resumed,
	input_tokens, output_tokens, cache_read_tokens, cache_creation_tokens
FROM snapshots`

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var captured, first, last string
		m := &snap.Metrics
		if err := rows.Scan(
			&snap.ProjectPath, &snap.SessionID, &captured, &snap.Events, &snap.ParseFailures,
			&first, &last, &m.PromptsSent, &m.ToolsExecuted, &m.ToolsFailed,
			&m.FilesCreated, &m.FilesModified, &m.FilesDeleted, &m.MCPCalls, &m.CodeBlocksGenerated,
			&m.ErrorsEncountered, &m.CheckpointCount, &m.WasResumed,
			&m.InputTokens, &m.OutputTokens, &m.CacheReadTokens, &m.CacheCreationTokens,
		); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.CapturedAt = parseTime(captured)
		m.FirstMessageTime = parseTime(first)
		m.LastMessageTime = parseTime(last)
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	rows.Close()

	for i := range snaps {
		models, err := s.models(ctx, snaps[i].ProjectPath, snaps[i].SessionID)
		if err != nil {
			return nil, err
		}
		snaps[i].Metrics.ModelChanges = models
	}
	return snaps, nil
}

func (s *Store) models(ctx context.Context, projectPath, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT model FROM snapshot_models WHERE project_path = ? AND session_id = ? ORDER BY position`,
		projectPath, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query models for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var models []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		models = append(models, name)
	}
	return models, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
