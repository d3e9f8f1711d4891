// Package main provides the sessionlog CLI for browsing assistant session
// transcripts and the metrics reconstructed from them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sessionlog/internal/config"
	"sessionlog/internal/logger"
	"sessionlog/internal/parser"
	"sessionlog/internal/store"
)

var version = "dev"

// globalOptions holds the persistent root flags.
type globalOptions struct {
	configPath string
	root       string
	extension  string
	debug      bool
}

// app is the per-invocation environment shared by the subcommands.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	catalog *store.Catalog
	loader  *store.Loader
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "sessionlog: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "sessionlog",
		Short:         "Browse assistant session transcripts and their metrics",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/sessionlog/config.yaml)")
	flags.StringVar(&opts.root, "root", "", "transcript root directory (env: "+config.EnvRoot+", default: ~/.claude/projects)")
	flags.StringVar(&opts.extension, "ext", "", "transcript file extension (default: .jsonl)")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging on stderr")

	cmd.AddCommand(newProjectsCmd(opts))
	cmd.AddCommand(newSessionsCmd(opts))
	cmd.AddCommand(newShowCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))

	return cmd
}

// newApp resolves configuration in order: defaults, config file,
// environment, flags.
func newApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	path := opts.configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)

	if opts.root != "" {
		cfg.Root = opts.root
	}
	if opts.extension != "" {
		cfg.Extension = opts.extension
	}
	if opts.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.New(cmd.ErrOrStderr(), cfg.Debug)
	catalog := store.NewCatalog(cfg.Root,
		store.WithExtension(cfg.Extension),
		store.WithLogger(log.WithComponent("catalog")),
	)
	loader := store.NewLoader(catalog,
		store.WithParser(parser.New(cfg.ParserOptions())),
		store.WithRules(cfg.Rules),
		store.WithMaxLineBytes(cfg.MaxLineBytes),
		store.WithLoaderLogger(log.WithComponent("loader")),
	)

	return &app{cfg: cfg, log: log, catalog: catalog, loader: loader}, nil
}

// target identifies one transcript, either inside the catalog or as a
// file given on the command line.
type target struct {
	project string
	id      string
	file    string
}

func (t target) String() string {
	if t.file != "" {
		return t.file
	}
	return t.project + " " + t.id
}

// resolveTarget accepts "<project> <session-id>", a transcript path, or a
// bare session id searched across every project.
func (a *app) resolveTarget(ctx context.Context, args []string) (target, error) {
	switch len(args) {
	case 2:
		project, err := a.resolveProject(ctx, args[0])
		if err != nil {
			return target{}, err
		}
		return target{project: project, id: args[1]}, nil
	case 1:
		arg := strings.TrimSpace(args[0])
		if arg == "" {
			return target{}, errors.New("session identifier is empty")
		}
		if info, err := os.Stat(arg); err == nil && !info.IsDir() {
			return target{file: arg, id: strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))}, nil
		}
		project, summary, err := a.catalog.FindSession(ctx, arg)
		if err != nil {
			return target{}, err
		}
		return target{project: project.Path, id: summary.ID}, nil
	default:
		return target{}, fmt.Errorf("expected <project> <session-id> or <session-id-or-path>, got %d arguments", len(args))
	}
}

// resolveProject accepts an absolute project path or the encoded
// directory name shown by the projects command.
func (a *app) resolveProject(ctx context.Context, arg string) (string, error) {
	if arg == "" {
		return "", errors.New("project is empty")
	}
	if filepath.IsAbs(arg) && !strings.HasPrefix(arg, a.catalog.Root()) {
		return filepath.Clean(arg), nil
	}

	projects, err := a.catalog.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range projects {
		if p.EncodedName == arg || p.Dir == arg || p.Path == arg {
			return p.Path, nil
		}
	}
	if filepath.IsAbs(arg) {
		return filepath.Clean(arg), nil
	}
	return "", fmt.Errorf("project not found: %s", arg)
}
