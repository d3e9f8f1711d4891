package store

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sessionlog/internal/logger"
	"sessionlog/internal/model"
	"sessionlog/internal/parser"
	"sessionlog/internal/session"
)

// DefaultMaxLineBytes bounds a single transcript line.
const DefaultMaxLineBytes = 64 * 1024 * 1024

// Loader reads transcripts and folds them into sessions. It holds only
// immutable configuration; every load builds its own reconstructor.
type Loader struct {
	catalog *Catalog
	parser  *parser.Parser
	rules   session.Rules
	maxLine int
	log     *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithParser sets the parser used for each line.
func WithParser(p *parser.Parser) LoaderOption {
	return func(l *Loader) {
		if p != nil {
			l.parser = p
		}
	}
}

// WithRules sets the tool classification rules.
func WithRules(rules session.Rules) LoaderOption {
	return func(l *Loader) { l.rules = rules }
}

// WithMaxLineBytes bounds the size of a single line.
func WithMaxLineBytes(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.maxLine = n
		}
	}
}

// WithLoaderLogger sets the logger used for skipped lines.
func WithLoaderLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLoader creates a Loader resolving paths through catalog.
func NewLoader(catalog *Catalog, opts ...LoaderOption) *Loader {
	l := &Loader{
		catalog: catalog,
		parser:  parser.New(parser.Options{}),
		rules:   session.DefaultRules(),
		maxLine: DefaultMaxLineBytes,
		log:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadSession reads the transcript of sessionID in projectPath. A session
// with no transcript yet loads as an empty Session and a nil error.
func (l *Loader) LoadSession(ctx context.Context, projectPath, sessionID string) (session.Session, error) {
	path, err := l.catalog.SessionPath(projectPath, sessionID)
	if err != nil {
		return session.Session{ID: sessionID}, err
	}
	return l.load(ctx, sessionID, path)
}

// LoadFile reads a transcript given by path. The session id is the file
// name without its extension.
func (l *Loader) LoadFile(ctx context.Context, path string) (session.Session, error) {
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return l.load(ctx, id, path)
}

func (l *Loader) load(ctx context.Context, id, path string) (session.Session, error) {
	r := session.NewReconstructor(id, l.rules)
	log := l.log.With("sessionID", id)

	err := l.iterate(ctx, path, func(event model.Event) error {
		if err := r.Fold(event); err != nil {
			log.Debug("event not counted", "line", event.Line, "error", err)
		}
		return nil
	}, func(f parser.Failure) {
		r.RecordFailure(f)
	})
	return r.Session(), err
}

// StreamSession calls fn for every event of a transcript, in file order,
// and returns the lines that could not be parsed. An error from fn stops
// the iteration and is returned as is.
func (l *Loader) StreamSession(ctx context.Context, projectPath, sessionID string, fn func(model.Event) error) ([]parser.Failure, error) {
	path, err := l.catalog.SessionPath(projectPath, sessionID)
	if err != nil {
		return nil, err
	}

	var failures []parser.Failure
	err = l.iterate(ctx, path, fn, func(f parser.Failure) {
		failures = append(failures, f)
	})
	return failures, err
}

// StreamFile is StreamSession for a transcript given by path.
func (l *Loader) StreamFile(ctx context.Context, path string, fn func(model.Event) error) ([]parser.Failure, error) {
	var failures []parser.Failure
	err := l.iterate(ctx, path, fn, func(f parser.Failure) {
		failures = append(failures, f)
	})
	return failures, err
}

func (l *Loader) iterate(ctx context.Context, path string, fn func(model.Event) error, onFailure func(parser.Failure)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return &IOError{Op: "open session file", Path: path, Err: err}
	}
	defer file.Close() //nolint:errcheck

	return l.scan(ctx, path, file, fn, onFailure)
}

func (l *Loader) scan(ctx context.Context, path string, r io.Reader, fn func(model.Event) error, onFailure func(parser.Failure)) error {
	lines := newLineReader(r, l.maxLine)
	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, tooLong, err := lines.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &IOError{Op: "read session file", Path: path, Err: fmt.Errorf("after line %d: %w", lineNo, err)}
		}
		lineNo++

		if tooLong {
			err := &parser.Error{Kind: parser.FailureSyntax, Err: fmt.Errorf("%w: limit is %d bytes", ErrLineTooLong, l.maxLine)}
			l.log.Debug("skipping line", "path", path, "line", lineNo, "error", err)
			onFailure(parser.Failure{Line: lineNo, Err: err})
			continue
		}

		event, err := l.parser.ParseLine(line)
		if err != nil {
			l.log.Debug("skipping line", "path", path, "line", lineNo, "error", err)
			onFailure(parser.Failure{Line: lineNo, Err: err})
			continue
		}
		if event == nil {
			continue
		}

		event.Line = lineNo
		if err := fn(*event); err != nil {
			return err
		}
	}
}

// lineReader splits a transcript into lines. A line longer than max is
// drained and reported instead of stopping the read.
type lineReader struct {
	r   *bufio.Reader
	max int
	buf []byte
}

func newLineReader(r io.Reader, maxLine int) *lineReader {
	return &lineReader{
		r:   bufio.NewReaderSize(r, min(64*1024, maxLine)),
		max: maxLine,
	}
}

// next returns the next line without its terminator. The returned slice is
// only valid until the following call. io.EOF marks the end of input.
func (lr *lineReader) next() (line []byte, tooLong bool, err error) {
	lr.buf = lr.buf[:0]
	read := false
	for {
		chunk, err := lr.r.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
		}
		if !tooLong {
			lr.buf = append(lr.buf, chunk...)
			if len(bytes.TrimRight(lr.buf, "\r\n")) > lr.max {
				tooLong = true
				lr.buf = lr.buf[:0]
			}
		}

		switch {
		case err == nil:
			return bytes.TrimRight(lr.buf, "\r\n"), tooLong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if !read {
				return nil, false, io.EOF
			}
			return bytes.TrimRight(lr.buf, "\r\n"), tooLong, nil
		default:
			return nil, false, err
		}
	}
}
