package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sessionlog/internal/format"
	"sessionlog/internal/model"
	"sessionlog/internal/parser"
	"sessionlog/internal/session"
	"sessionlog/internal/statsdb"
	"sessionlog/internal/store"
	"sessionlog/internal/view"
	"sessionlog/internal/watch"
)

func newProjectsCmd(global *globalOptions) *cobra.Command {
	var (
		formatFlag string
		sortFlag   string
		noHeader   bool
	)

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects with recorded sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}

			switch sortFlag {
			case store.SortByPath, store.SortBySessions, store.SortByModified:
			default:
				return fmt.Errorf("invalid --sort value: %s", sortFlag)
			}

			projects, err := a.catalog.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			store.SortProjects(projects, sortFlag)

			errs := cmd.ErrOrStderr()
			for _, p := range projects {
				if p.Unreadable() {
					fmt.Fprintf(errs, "warning: %v\n", p.Err) //nolint:errcheck
				}
			}

			return format.WriteProjects(cmd.OutOrStdout(), projects, !noHeader, strings.ToLower(formatFlag))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.StringVar(&sortFlag, "sort", store.SortByPath, "sort order: path, sessions, or modified")
	flags.BoolVar(&noHeader, "no-header", false, "omit header row for table and plain output")

	return cmd
}

func newSessionsCmd(global *globalOptions) *cobra.Command {
	var (
		formatFlag string
		noHeader   bool
		noAgents   bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "sessions <project>",
		Short: "List the sessions of a project, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}

			project, err := a.resolveProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			sessions, err := a.catalog.ListSessions(cmd.Context(), project)
			if err != nil {
				return err
			}
			store.SortSessions(sessions)

			if noAgents {
				kept := sessions[:0]
				for _, s := range sessions {
					if !s.IsSidechain {
						kept = append(kept, s)
					}
				}
				sessions = kept
			}
			if limit > 0 && len(sessions) > limit {
				sessions = sessions[:limit]
			}

			return format.WriteSessions(cmd.OutOrStdout(), sessions, !noHeader, strings.ToLower(formatFlag))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&formatFlag, "format", "table", "output format: table, plain, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit header row for table and plain output")
	flags.BoolVar(&noAgents, "no-agents", false, "hide sub-agent transcripts")
	flags.IntVar(&limit, "limit", 0, "limit number of sessions returned (0 means no limit)")

	return cmd
}

func newShowCmd(global *globalOptions) *cobra.Command {
	var (
		kindArg      string
		contentArg   string
		allFilter    bool
		raw          bool
		wrap         int
		maxEvents    int
		formatFlag   string
		forceColor   bool
		forceNoColor bool
	)

	cmd := &cobra.Command{
		Use:   "show [project] <session-id-or-path>",
		Short: "Render a session transcript",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if forceColor && forceNoColor {
				return errors.New("--color and --no-color cannot be used together")
			}
			if allFilter && (kindArg != "" || contentArg != "") {
				return errors.New("--all cannot be used with -K or -C")
			}

			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			t, err := a.resolveTarget(ctx, args)
			if err != nil {
				return err
			}
			path, err := a.path(t)
			if err != nil {
				return err
			}

			var failures []parser.Failure
			source := func(fn func(model.Event) error) error {
				var err error
				failures, err = a.stream(ctx, t, fn)
				return err
			}

			out := cmd.OutOrStdout()
			outFile, _ := out.(*os.File)
			err = view.Run(view.Options{
				Source:       source,
				Path:         path,
				Format:       formatFlag,
				Wrap:         wrap,
				MaxEvents:    maxEvents,
				KindArg:      kindArg,
				ContentArg:   contentArg,
				AllFilter:    allFilter,
				ForceColor:   forceColor,
				ForceNoColor: forceNoColor,
				RawFile:      raw,
				Out:          out,
				OutFile:      outFile,
			})
			if err != nil {
				return err
			}

			warnFailures(cmd.ErrOrStderr(), failures)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&kindArg, "kind", "K", "", "comma-separated event kinds to include (default: user,assistant)")
	flags.StringVarP(&contentArg, "content", "C", "", "comma-separated content kinds to include: text, tool_use, tool_result")
	flags.BoolVar(&allFilter, "all", false, "show every event, including meta events (overrides -K and -C)")
	flags.BoolVar(&raw, "raw", false, "output the transcript file unchanged")
	flags.IntVar(&wrap, "wrap", 0, "wrap message body at the given column width")
	flags.IntVar(&maxEvents, "max", 0, "show only the most recent N events (0 means no limit)")
	flags.StringVar(&formatFlag, "format", "text", "output format: text, chat, or raw")
	flags.BoolVar(&forceColor, "color", false, "force-enable ANSI colors even when stdout is not a TTY")
	flags.BoolVar(&forceNoColor, "no-color", false, "disable ANSI colors regardless of terminal detection")

	return cmd
}

func newStatsCmd(global *globalOptions) *cobra.Command {
	var (
		formatFlag string
		showTools  bool
	)

	cmd := &cobra.Command{
		Use:   "stats [project] <session-id-or-path>",
		Short: "Show the metrics reconstructed from a session",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}

			t, err := a.resolveTarget(cmd.Context(), args)
			if err != nil {
				return err
			}
			if showTools && strings.ToLower(formatFlag) == "json" {
				return errors.New("--tools is only available with table output")
			}

			s, err := a.load(cmd.Context(), t)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := format.WriteMetrics(out, s, formatFlag); err != nil {
				return err
			}
			if showTools {
				fmt.Fprintln(out) //nolint:errcheck
				if err := format.WriteToolCalls(out, session.ToolCalls(s.Events), a.cfg.Rules); err != nil {
					return err
				}
			}
			warnFailures(cmd.ErrOrStderr(), s.ParseFailures)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&formatFlag, "format", "table", "output format: table or json")
	flags.BoolVar(&showTools, "tools", false, "also list every tool call with its class and status (table format)")

	return cmd
}

func newWatchCmd(global *globalOptions) *cobra.Command {
	var (
		formatFlag string
		debounce   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [project] <session-id-or-path>",
		Short: "Reprint session metrics whenever the transcript changes",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			t, err := a.resolveTarget(ctx, args)
			if err != nil {
				return err
			}
			path, err := a.path(t)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			report := func() error {
				s, err := a.load(ctx, t)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "[%s] %s\n", time.Now().Format(time.TimeOnly), t) //nolint:errcheck
				if err := format.WriteMetrics(out, s, formatFlag); err != nil {
					return err
				}
				if summary := format.FailureSummary(s); summary != "" {
					fmt.Fprintf(out, "warning: %s\n", summary) //nolint:errcheck
				}
				return nil
			}

			w := watch.File(path,
				watch.WithDebounce(debounce),
				watch.WithLogger(a.log.WithSession(t.id)),
			)
			err = report()
			if err == nil {
				err = w.Run(ctx, func(watch.Change) error { return report() })
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&formatFlag, "format", "table", "output format: table or json")
	flags.DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before reloading after a change")

	return cmd
}

func newExportCmd(global *globalOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "export <project> [session-id]",
		Short: "Store session metrics snapshots in the stats database",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			project, err := a.resolveProject(ctx, args[0])
			if err != nil {
				return err
			}

			var ids []string
			if len(args) == 2 {
				ids = []string{args[1]}
			} else {
				sessions, err := a.catalog.ListSessions(ctx, project)
				if err != nil {
					return err
				}
				for _, s := range sessions {
					ids = append(ids, s.ID)
				}
			}

			db, err := a.openStats(dbPath)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			errs := cmd.ErrOrStderr()
			exported := 0
			for _, id := range ids {
				s, err := a.loader.LoadSession(ctx, project, id)
				if err != nil {
					if errors.Is(err, store.ErrIOUnavailable) {
						fmt.Fprintf(errs, "warning: %s: %v\n", id, err) //nolint:errcheck
						continue
					}
					return err
				}
				if err := db.Save(ctx, statsdb.NewSnapshot(project, s, time.Now().UTC())); err != nil {
					return err
				}
				exported++
			}

			fmt.Fprintf(cmd.OutOrStdout(), "exported %d of %d sessions to %s\n", exported, len(ids), a.statsPath(dbPath)) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "stats database path (default: $XDG_DATA_HOME/sessionlog/stats.db)")

	return cmd
}

func newHistoryCmd(global *globalOptions) *cobra.Command {
	var (
		dbPath     string
		formatFlag string
		noHeader   bool
	)

	cmd := &cobra.Command{
		Use:   "history [project]",
		Short: "List metrics snapshots stored by export",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			project := ""
			if len(args) == 1 {
				if project, err = a.resolveProject(ctx, args[0]); err != nil {
					return err
				}
			}

			db, err := a.openStats(dbPath)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			snaps, err := db.List(ctx, project)
			if err != nil {
				return err
			}
			return format.WriteSnapshots(cmd.OutOrStdout(), snaps, !noHeader, formatFlag)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&dbPath, "db", "", "stats database path (default: $XDG_DATA_HOME/sessionlog/stats.db)")
	flags.StringVar(&formatFlag, "format", "table", "output format: table, json, or jsonl")
	flags.BoolVar(&noHeader, "no-header", false, "omit header row for table output")

	return cmd
}

func (a *app) path(t target) (string, error) {
	if t.file != "" {
		return t.file, nil
	}
	return a.catalog.SessionPath(t.project, t.id)
}

func (a *app) load(ctx context.Context, t target) (session.Session, error) {
	if t.file != "" {
		return a.loader.LoadFile(ctx, t.file)
	}
	return a.loader.LoadSession(ctx, t.project, t.id)
}

func (a *app) stream(ctx context.Context, t target, fn func(model.Event) error) ([]parser.Failure, error) {
	if t.file != "" {
		return a.loader.StreamFile(ctx, t.file, fn)
	}
	return a.loader.StreamSession(ctx, t.project, t.id, fn)
}

func (a *app) statsPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return a.cfg.DBPath
}

func (a *app) openStats(flagValue string) (*statsdb.Store, error) {
	path := a.statsPath(flagValue)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create stats directory: %w", err)
	}
	a.log.Debug("opening stats database", "path", path)
	return statsdb.Open(path)
}

func warnFailures(w io.Writer, failures []parser.Failure) {
	if summary := format.FailureSummary(session.Session{ParseFailures: failures}); summary != "" {
		fmt.Fprintf(w, "warning: %s\n", summary) //nolint:errcheck
	}
}
