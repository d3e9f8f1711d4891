// Package config loads sessionlog settings from defaults, a YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sessionlog/internal/model"
	"sessionlog/internal/parser"
	"sessionlog/internal/session"
)

// EnvRoot overrides the transcript root.
const EnvRoot = "SESSIONLOG_ROOT"

// Config holds everything the CLI needs to build a catalog and loader.
type Config struct {
	// Root is the directory holding one subdirectory per project.
	Root string `yaml:"root"`
	// Extension is the transcript file suffix.
	Extension    string `yaml:"extension"`
	MaxLineBytes int    `yaml:"max_line_bytes"`
	Debug        bool   `yaml:"debug"`
	// DBPath is the default SQLite file for exported metrics.
	DBPath string        `yaml:"db_path"`
	Rules  session.Rules `yaml:"rules"`
	// KindAliases maps extra wire types onto event kinds.
	KindAliases map[string]string `yaml:"kind_aliases"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Root:         filepath.Join(home, ".claude", "projects"),
		Extension:    ".jsonl",
		MaxLineBytes: 64 * 1024 * 1024,
		DBPath:       filepath.Join(dataDir(home), "stats.db"),
		Rules:        session.DefaultRules(),
		KindAliases:  map[string]string{"summary": string(model.EventMeta)},
	}
}

// DefaultPath returns the config file read when none is given.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "sessionlog", "config.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sessionlog", "config.yaml")
}

func dataDir(home string) string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "sessionlog")
	}
	return filepath.Join(home, ".local", "share", "sessionlog")
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.Rules = cfg.Rules.Merge(session.DefaultRules())
	cfg.Root = expandHome(cfg.Root)
	cfg.DBPath = expandHome(cfg.DBPath)
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if root := strings.TrimSpace(getenv(EnvRoot)); root != "" {
		c.Root = expandHome(root)
	}
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if c.Root == "" {
		return errors.New("root directory is required")
	}
	if c.MaxLineBytes < 0 {
		return fmt.Errorf("max_line_bytes must not be negative, got %d", c.MaxLineBytes)
	}
	for wire, kind := range c.KindAliases {
		if !model.EventKind(kind).Valid() {
			return fmt.Errorf("kind alias %q: unknown event kind %q", wire, kind)
		}
	}
	return nil
}

// ParserOptions converts the alias table for the parser.
func (c *Config) ParserOptions() parser.Options {
	if c.KindAliases == nil {
		return parser.Options{}
	}
	aliases := make(map[string]model.EventKind, len(c.KindAliases))
	for wire, kind := range c.KindAliases {
		aliases[wire] = model.EventKind(kind)
	}
	return parser.Options{KindAliases: aliases}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
