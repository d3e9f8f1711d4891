package statsdb

// schemaVersion is the current schema version. Increment when adding migrations.
const schemaVersion = 2

// migrations maps version numbers to SQL statements that bring the schema
// from (version-1) to (version).
var migrations = map[int]string{
	1: `
-- Latest metrics snapshot per session.
CREATE TABLE IF NOT EXISTS snapshots (
	project_path          TEXT    NOT NULL,
	session_id            TEXT    NOT NULL,
	captured_at           TEXT    NOT NULL,
	event_count           INTEGER NOT NULL DEFAULT 0,
	parse_failures        INTEGER NOT NULL DEFAULT 0,
	first_message_at      TEXT    NOT NULL DEFAULT '',
	last_message_at       TEXT    NOT NULL DEFAULT '',
	prompts_sent          INTEGER NOT NULL DEFAULT 0,
	tools_executed        INTEGER NOT NULL DEFAULT 0,
	tools_failed          INTEGER NOT NULL DEFAULT 0,
	files_created         INTEGER NOT NULL DEFAULT 0,
	files_modified        INTEGER NOT NULL DEFAULT 0,
	files_deleted         INTEGER NOT NULL DEFAULT 0,
	mcp_calls             INTEGER NOT NULL DEFAULT 0,
	code_blocks           INTEGER NOT NULL DEFAULT 0,
	errors_encountered    INTEGER NOT NULL DEFAULT 0,
	checkpoint_count      INTEGER NOT NULL DEFAULT 0,
	was_resumed           INTEGER NOT NULL DEFAULT 0,
	input_tokens          INTEGER NOT NULL DEFAULT 0,
	output_tokens         INTEGER NOT NULL DEFAULT 0,
	cache_read_tokens     INTEGER NOT NULL DEFAULT 0,
	cache_creation_tokens INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project_path, session_id)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_captured ON snapshots(captured_at);
`,
	2: `
-- Distinct models in order of first appearance.
CREATE TABLE IF NOT EXISTS snapshot_models (
	project_path TEXT    NOT NULL,
	session_id   TEXT    NOT NULL,
	position     INTEGER NOT NULL,
	model        TEXT    NOT NULL,
	PRIMARY KEY (project_path, session_id, position),
	FOREIGN KEY (project_path, session_id)
		REFERENCES snapshots(project_path, session_id) ON DELETE CASCADE
);
`,
}
