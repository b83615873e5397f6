package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the optional per-project configuration file.
const FileName = ".saferun.yaml"

type ViewMode string

const (
	ViewLedger ViewMode = "ledger"
	ViewMerged ViewMode = "merged"
)

// Config holds the runtime settings for all subcommands. Precedence,
// lowest to highest: built-in defaults, .saferun.yaml, environment.
// Command-line flags override on top of the loaded config.
type Config struct {
	LogDir        string
	View          ViewMode
	SnippetLines  int
	ArchiveStrict bool
	RepoMarkers   []string
}

// fileConfig mirrors the yaml file; pointers distinguish "absent" from
// zero values.
type fileConfig struct {
	LogDir        *string  `yaml:"log_dir"`
	View          *string  `yaml:"view"`
	SnippetLines  *int     `yaml:"snippet_lines"`
	ArchiveStrict *bool    `yaml:"archive_strict"`
	RepoMarkers   []string `yaml:"repo_markers"`
}

// Load builds the configuration for an invocation rooted at dir.
func Load(dir string) (*Config, error) {
	c := &Config{
		LogDir:       ".agent/FAIL-LOGS",
		View:         ViewLedger,
		SnippetLines: 0,
		RepoMarkers:  []string{".git"},
	}

	if err := c.applyFile(filepath.Join(dir, FileName)); err != nil {
		return nil, err
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if fc.LogDir != nil {
		c.LogDir = *fc.LogDir
	}
	if fc.View != nil {
		view, err := parseView(*fc.View)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		c.View = view
	}
	if fc.SnippetLines != nil {
		if *fc.SnippetLines < 0 {
			return fmt.Errorf("%s: snippet_lines must be non-negative", path)
		}
		c.SnippetLines = *fc.SnippetLines
	}
	if fc.ArchiveStrict != nil {
		c.ArchiveStrict = *fc.ArchiveStrict
	}
	if fc.RepoMarkers != nil {
		c.RepoMarkers = fc.RepoMarkers
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("SAFE_LOG_DIR"); ok {
		c.LogDir = v
	}
	if v, ok := os.LookupEnv("SAFE_RUN_VIEW"); ok && v != "" {
		view, err := parseView(v)
		if err != nil {
			return fmt.Errorf("SAFE_RUN_VIEW: %w", err)
		}
		c.View = view
	}
	if v, ok := os.LookupEnv("SAFE_SNIPPET_LINES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("SAFE_SNIPPET_LINES must be a non-negative integer, got %q", v)
		}
		c.SnippetLines = n
	}
	if v, ok := os.LookupEnv("SAFE_ARCHIVE_STRICT"); ok {
		strict, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("SAFE_ARCHIVE_STRICT: %w", err)
		}
		c.ArchiveStrict = strict
	}
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true, nil
	case "", "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q (want true/false, yes/no, on/off or 1/0)", s)
	}
}

func parseView(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case ViewLedger:
		return ViewLedger, nil
	case ViewMerged:
		return ViewMerged, nil
	default:
		return "", fmt.Errorf("invalid view mode %q (want ledger or merged)", s)
	}
}
