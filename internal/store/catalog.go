// Package store locates transcripts on disk and loads them into sessions.
//
// Transcripts live at <root>/<encoded-project>/<session-id>.jsonl, where the
// project directory name is the project path run through pathcodec.Encode.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"sessionlog/internal/logger"
	"sessionlog/internal/pathcodec"
)

// DefaultExtension is the transcript file suffix.
const DefaultExtension = ".jsonl"

// Project is one directory under the root.
type Project struct {
	// Path is the decoded project path. It may differ from the original
	// path when a segment contained the reserved character.
	Path string `json:"path"`
	// EncodedName is the directory name as found on disk.
	EncodedName string           `json:"encoded_name"`
	Dir         string           `json:"dir"`
	ModTime     time.Time        `json:"mod_time"`
	Sessions    []SessionSummary `json:"sessions"`
	// Err is set when the directory could not be read. Sessions is then
	// empty because it is unknown, not because the project has none.
	Err error `json:"-"`
}

// Unreadable reports whether the project directory could not be listed.
func (p Project) Unreadable() bool { return p.Err != nil }

// SessionSummary describes a transcript file without reading it.
type SessionSummary struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	// UUID is set when ID parses as a UUID.
	UUID *uuid.UUID `json:"uuid,omitempty"`
	// IsSidechain marks transcripts written by sub-agents (agent-*.jsonl).
	IsSidechain bool `json:"is_sidechain"`
}

// Catalog enumerates projects and sessions under a root directory. It holds
// only immutable configuration and is safe for concurrent use.
type Catalog struct {
	root string
	ext  string
	log  *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithExtension overrides the transcript file suffix.
func WithExtension(ext string) Option {
	return func(c *Catalog) {
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.ext = ext
	}
}

// WithLogger sets the logger used for non-fatal problems.
func WithLogger(l *slog.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCatalog creates a Catalog rooted at root.
func NewCatalog(root string, opts ...Option) *Catalog {
	c := &Catalog{root: root, ext: DefaultExtension, log: logger.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the catalog root directory.
func (c *Catalog) Root() string { return c.root }

// Extension returns the transcript file suffix, including the dot.
func (c *Catalog) Extension() string { return c.ext }

// ProjectDir returns the directory holding the transcripts of projectPath.
func (c *Catalog) ProjectDir(projectPath string) string {
	return filepath.Join(c.root, pathcodec.Encode(projectPath))
}

// SessionPath returns the transcript path for a session of projectPath.
func (c *Catalog) SessionPath(projectPath, sessionID string) (string, error) {
	if err := validateSessionID(sessionID); err != nil {
		return "", err
	}
	return filepath.Join(c.ProjectDir(projectPath), sessionID+c.ext), nil
}

// ListProjects returns every immediate subdirectory of the root with its
// sessions, in directory order. A project directory that cannot be read is
// listed without sessions.
func (c *Catalog) ListProjects(ctx context.Context) ([]Project, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, &IOError{Op: "list projects", Path: c.root, Err: err}
	}

	projects := make([]Project, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := filepath.Join(c.root, entry.Name())
		info, ok := c.dirInfo(entry, dir)
		if !ok {
			continue
		}

		project := Project{
			Path:        pathcodec.Decode(entry.Name()),
			EncodedName: entry.Name(),
			Dir:         dir,
			ModTime:     info.ModTime(),
		}
		sessions, err := c.readSessions(dir)
		if err != nil {
			c.log.Warn("skipping unreadable project directory", "dir", dir, "error", err)
			project.Err = &IOError{Op: "list sessions", Path: dir, Err: err}
		}
		project.Sessions = sessions

		projects = append(projects, project)
	}

	return projects, nil
}

// ListSessions returns the sessions of one project. A project that has no
// directory yet has no sessions.
func (c *Catalog) ListSessions(ctx context.Context, projectPath string) ([]SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := c.ProjectDir(projectPath)
	sessions, err := c.readSessions(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &IOError{Op: "list sessions", Path: dir, Err: err}
	}
	return sessions, nil
}

// FindSession searches every project for a session with the given id.
func (c *Catalog) FindSession(ctx context.Context, sessionID string) (Project, SessionSummary, error) {
	if sessionID == "" {
		return Project{}, SessionSummary{}, fmt.Errorf("%w: empty id", ErrInvalidSessionID)
	}

	projects, err := c.ListProjects(ctx)
	if err != nil {
		return Project{}, SessionSummary{}, err
	}

	want, err := uuid.Parse(sessionID)
	isUUID := err == nil
	for _, p := range projects {
		for _, s := range p.Sessions {
			if s.ID == sessionID || (isUUID && s.UUID != nil && *s.UUID == want) {
				return p, s, nil
			}
		}
	}
	return Project{}, SessionSummary{}, fmt.Errorf("%w: %s under %s", ErrSessionNotFound, sessionID, c.root)
}

func (c *Catalog) dirInfo(entry fs.DirEntry, path string) (fs.FileInfo, bool) {
	if entry.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			return nil, false
		}
		return info, true
	}
	if !entry.IsDir() {
		return nil, false
	}
	info, err := entry.Info()
	if err != nil {
		c.log.Warn("stat project directory", "dir", path, "error", err)
		return nil, false
	}
	return info, true
}

func (c *Catalog) readSessions(dir string) ([]SessionSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var sessions []SessionSummary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, c.ext) {
			continue
		}
		id := strings.TrimSuffix(name, c.ext)
		if id == "" {
			continue
		}

		summary := SessionSummary{
			ID:          id,
			Path:        filepath.Join(dir, name),
			IsSidechain: strings.HasPrefix(id, "agent-"),
		}
		if info, err := entry.Info(); err == nil {
			summary.Size = info.Size()
			summary.ModTime = info.ModTime()
		}
		if parsed, err := uuid.Parse(id); err == nil {
			summary.UUID = &parsed
		}
		sessions = append(sessions, summary)
	}
	return sessions, nil
}

// Project orderings accepted by SortProjects.
const (
	SortByPath     = "path"
	SortBySessions = "sessions"
	SortByModified = "modified"
)

// SortProjects orders projects in place. Unknown orderings sort by path.
func SortProjects(projects []Project, by string) {
	switch by {
	case SortBySessions:
		sort.SliceStable(projects, func(i, j int) bool {
			if len(projects[i].Sessions) != len(projects[j].Sessions) {
				return len(projects[i].Sessions) > len(projects[j].Sessions)
			}
			return projects[i].EncodedName < projects[j].EncodedName
		})
	case SortByModified:
		sort.SliceStable(projects, func(i, j int) bool {
			return projects[i].ModTime.After(projects[j].ModTime)
		})
	default:
		sort.SliceStable(projects, func(i, j int) bool {
			return projects[i].EncodedName < projects[j].EncodedName
		})
	}
}

// SortSessions orders sessions newest first, then by id.
func SortSessions(sessions []SessionSummary) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if !sessions[i].ModTime.Equal(sessions[j].ModTime) {
			return sessions[i].ModTime.After(sessions[j].ModTime)
		}
		return sessions[i].ID < sessions[j].ID
	})
}

func validateSessionID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}
