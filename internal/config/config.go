package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/thatjpcsguy/supamulti/internal/ports"
)

// EnvPrefix is the prefix of environment variable overrides
const EnvPrefix = "SUPAMULTI_"

// Config represents the supamulti configuration
type Config struct {
	// Storage
	ProjectsDir  string `koanf:"projects_dir"`
	RegistryPath string `koanf:"registry_path"`
	HistoryPath  string `koanf:"history_path"`

	// Port settings
	BasePort int `koanf:"base_port"`

	Repo  RepoConfig  `koanf:"repo"`
	Stop  StopConfig  `koanf:"stop"`
	Log   LogConfig   `koanf:"log"`
	Hooks HooksConfig `koanf:"hooks"`
}

// RepoConfig describes the repository cloned for each project
type RepoConfig struct {
	URL   string `koanf:"url"`
	Ref   string `koanf:"ref"`
	Depth int    `koanf:"depth"`
}

// StopConfig controls how projects are stopped
type StopConfig struct {
	RemoveVolumes bool `koanf:"remove_volumes"`
}

// LogConfig controls diagnostic logging
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// HooksConfig holds inline hook scripts (fallback if hook files don't exist)
type HooksConfig struct {
	PostAdd   string `koanf:"post_add"`
	PostStart string `koanf:"post_start"`
	PreStop   string `koanf:"pre_stop"`
}

// Dir returns the supamulti state directory (~/.supamulti)
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".supamulti"), nil
}

// Default returns the built-in configuration
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	stateDir := filepath.Join(home, ".supamulti")

	return &Config{
		ProjectsDir:  filepath.Join(home, "supabase-projects"),
		RegistryPath: filepath.Join(stateDir, "registry.json"),
		HistoryPath:  filepath.Join(stateDir, "history.db"),
		BasePort:     ports.DefaultBase,
		Repo: RepoConfig{
			URL:   "https://github.com/supabase/supabase",
			Depth: 1,
		},
		Stop: StopConfig{RemoveVolumes: true},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}, nil
}

// Load builds the configuration from defaults, the config file and SUPAMULTI_* variables.
//
// Precedence (highest first): environment, config file, defaults. When path is
// empty ~/.supamulti/config.yaml is used if it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "config.yaml")
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// optional
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// SUPAMULTI_PROJECTS_DIR -> projects_dir, SUPAMULTI_STOP_REMOVE_VOLUMES -> stop.remove_volumes
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.expandVariables(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// sections whose keys are nested under a dotted path
var sections = []string{"repo", "stop", "log", "hooks"}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// expandVariables expands ~ and environment variables in paths
func (c *Config) expandVariables() error {
	for _, p := range []*string{&c.ProjectsDir, &c.RegistryPath, &c.HistoryPath} {
		expanded, err := expandPath(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

func expandPath(p string) (string, error) {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to expand ~ in %s: %w", p, err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	if p == "" {
		return p, nil
	}
	return filepath.Abs(p)
}

// Validate checks that all required fields are set
func (c *Config) Validate() error {
	required := map[string]string{
		"projects_dir":  c.ProjectsDir,
		"registry_path": c.RegistryPath,
		"repo.url":      c.Repo.URL,
	}

	var problems []string
	for field, value := range required {
		if value == "" {
			problems = append(problems, field+" is required")
		}
	}

	if c.BasePort < 2 || c.BasePort+443 > 65535 {
		problems = append(problems, fmt.Sprintf("base_port %d leaves no room for a port block", c.BasePort))
	}
	if c.Repo.Depth < 0 {
		problems = append(problems, "repo.depth must not be negative")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be console or json, got %q", c.Log.Format))
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}
