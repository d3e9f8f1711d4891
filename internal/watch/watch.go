// Package watch reports changes to session transcripts as they are written.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet window before a change is reported.
const DefaultDebounce = 200 * time.Millisecond

// Op describes what happened to a watched file.
type Op string

const (
	OpCreate Op = "create"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpRename Op = "rename"
)

// Change is a debounced notification for one file.
type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// Watcher observes one directory and reports changes to the files its
// match function accepts.
type Watcher struct {
	dir    string
	match  func(path string) bool
	window time.Duration
	log    *slog.Logger

	// file is set by File. Its directory may not exist yet.
	file string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithMatch restricts notifications to paths for which match returns true.
func WithMatch(match func(path string) bool) Option {
	return func(w *Watcher) {
		if match != nil {
			w.match = match
		}
	}
}

// WithExtension only reports files ending in ext.
func WithExtension(ext string) Option {
	return WithMatch(func(path string) bool { return filepath.Ext(path) == ext })
}

// WithDebounce sets the quiet window. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.window = d
		}
	}
}

// WithLogger sets the logger used for watcher errors.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

// New returns a watcher for dir. The directory must exist when Run starts.
func New(dir string, opts ...Option) *Watcher {
	w := &Watcher{
		dir:    dir,
		match:  func(string) bool { return true },
		window: DefaultDebounce,
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// File returns a watcher for a single file. Neither the file nor its
// directory has to exist: until the directory appears, the nearest existing
// ancestor is watched instead. Nothing is ever created on disk.
func File(path string, opts ...Option) *Watcher {
	clean := filepath.Clean(path)
	opts = append(opts, WithMatch(func(p string) bool { return filepath.Clean(p) == clean }))
	w := New(filepath.Dir(clean), opts...)
	w.file = clean
	return w
}

// Run blocks until ctx is cancelled, calling fn for every debounced change.
// fn is never called concurrently. An error from fn stops the watcher and
// is returned.
func (w *Watcher) Run(ctx context.Context, fn func(Change) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	watched, err := w.addDir(fsw)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	changes := make(chan Change, 16)
	deb := newDebouncer(w.window, func(c Change) {
		select {
		case changes <- c:
		case <-ctx.Done():
		}
	})
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-changes:
			if err := fn(c); err != nil {
				return err
			}

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if watched != w.dir && ev.Has(fsnotify.Create) && isAncestor(ev.Name, w.dir) {
				if watched, err = w.addDir(fsw); err != nil {
					return fmt.Errorf("watch %s: %w", w.dir, err)
				}
				w.log.Debug("watching closer directory", "dir", watched)
				if watched == w.dir && w.file != "" {
					// The file may have been written before the watch was added.
					if _, err := os.Stat(w.file); err == nil {
						deb.feed(Change{Path: w.file, Op: OpCreate, Time: time.Now()})
					}
				}
				continue
			}
			op := mapOp(ev.Op)
			if op == "" || !w.match(ev.Name) {
				continue
			}
			w.log.Debug("file changed", "path", ev.Name, "op", op)
			deb.feed(Change{Path: ev.Name, Op: op, Time: time.Now()})

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "dir", w.dir, "error", err)
		}
	}
}

// addDir watches w.dir, or for File watchers the nearest existing ancestor
// of it, and returns the directory actually watched.
func (w *Watcher) addDir(fsw *fsnotify.Watcher) (string, error) {
	dir := w.dir
	for {
		err := fsw.Add(dir)
		if err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if w.file == "" || !errors.Is(err, fs.ErrNotExist) || parent == dir {
			return "", err
		}
		dir = parent
	}
}

// isAncestor reports whether dir is target or one of its parents.
func isAncestor(dir, target string) bool {
	dir = filepath.Clean(dir)
	if dir == target {
		return true
	}
	rel, err := filepath.Rel(dir, target)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

func mapOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	case op.Has(fsnotify.Write):
		return OpWrite
	default:
		return ""
	}
}
