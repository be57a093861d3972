// Package materialize renders a project's configuration files from the
// templates shipped in its clone plus the project's ports and fresh secrets.
//
// Every rewrite works on a parsed document (dotenv lines, a YAML node tree,
// a TOML table) and reports the targets it could not find, so a template
// that drifted from the expected shape shows up as a warning instead of
// passing silently.
package materialize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/thatjpcsguy/supamulti/internal/ports"
)

// ErrTemplateMissing is returned when the required env template is absent
var ErrTemplateMissing = errors.New("environment template not found")

// Keys that receive a freshly generated secret
var secretKeys = []string{"POSTGRES_PASSWORD", "JWT_SECRET", "DASHBOARD_PASSWORD", "VAULT_ENC_KEY"}

// Keys derived from JWT_SECRET by signing; they are cleared and filled in by hand
var signedKeys = []string{"ANON_KEY", "SERVICE_ROLE_KEY"}

// Layout locates the template and output files relative to a project directory
type Layout struct {
	EnvTemplate string
	EnvFile     string
	ComposeFile string
	CLIConfig   string
}

// DefaultLayout matches the layout of the upstream repository
func DefaultLayout() Layout {
	return Layout{
		EnvTemplate: filepath.Join("docker", ".env.example"),
		EnvFile:     filepath.Join("docker", ".env"),
		ComposeFile: filepath.Join("docker", "docker-compose.yml"),
		CLIConfig:   filepath.Join("supabase", "config.toml"),
	}
}

// EnvResult carries the values generated for a project's env file
type EnvResult struct {
	Path    string
	Secrets map[string]string
}

// JWTSecret returns the generated JWT signing secret
func (r *EnvResult) JWTSecret() string {
	return r.Secrets["JWT_SECRET"]
}

// Materializer writes project configuration files
type Materializer struct {
	layout Layout
	logger *zap.Logger
	random func(n int) (string, error)
}

// New creates a materializer; a nil logger disables diagnostics
func New(layout Layout, logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		layout: layout,
		logger: logger,
		random: RandomAlphanumeric,
	}
}

// Layout returns the file layout in use
func (m *Materializer) Layout() Layout {
	return m.layout
}

// EnvPath returns the working env file of a project
func (m *Materializer) EnvPath(dir string) string {
	return filepath.Join(dir, m.layout.EnvFile)
}

// ComposeDir returns the directory docker compose runs in
func (m *Materializer) ComposeDir(dir string) string {
	return filepath.Dir(filepath.Join(dir, m.layout.ComposeFile))
}

// Env copies the env template to the working env file and fills in secrets and ports
func (m *Materializer) Env(dir string, block ports.Block) (*EnvResult, error) {
	templatePath := filepath.Join(dir, m.layout.EnvTemplate)
	env, err := ReadEnvFile(templatePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, templatePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read env template: %w", err)
	}

	result := &EnvResult{
		Path:    m.EnvPath(dir),
		Secrets: make(map[string]string),
	}

	for _, key := range secretKeys {
		value, err := m.random(SecretLength)
		if err != nil {
			return nil, err
		}
		if !env.Set(key, value) {
			m.logger.Warn("env template lacks key, appended", zap.String("key", key), zap.String("template", templatePath))
		}
		result.Secrets[key] = value
	}

	for _, key := range signedKeys {
		env.Set(key, "")
	}

	env.Set("KONG_HTTP_PORT", strconv.Itoa(block.API))
	env.Set("KONG_HTTPS_PORT", strconv.Itoa(block.KongHTTPS))

	// only touched when the template already declares them
	optional := map[string]int{
		"POSTGRES_PORT":                 block.DB,
		"STUDIO_PORT":                   block.Studio,
		"POOLER_PROXY_PORT_TRANSACTION": block.Pooler,
	}
	for key, port := range optional {
		if env.Has(key) {
			env.Set(key, strconv.Itoa(port))
		}
	}

	if err := env.WriteFile(result.Path); err != nil {
		return nil, fmt.Errorf("failed to write env file: %w", err)
	}

	m.logger.Debug("env file materialized", zap.String("path", result.Path))
	return result, nil
}

// EnsureEnv re-creates the working env file from the template when it is missing.
// It reports whether a new file was written.
func (m *Materializer) EnsureEnv(dir string, block ports.Block) (bool, error) {
	if _, err := os.Stat(m.EnvPath(dir)); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to check env file: %w", err)
	}

	if _, err := m.Env(dir, block); err != nil {
		return false, err
	}
	return true, nil
}

// ReadEnv loads the working env file of a project
func (m *Materializer) ReadEnv(dir string) (*EnvFile, error) {
	return ReadEnvFile(m.EnvPath(dir))
}

// Compose rewrites the project's compose file in place
func (m *Materializer) Compose(dir, projectID string, block ports.Block) (*ComposeReport, error) {
	path := filepath.Join(dir, m.layout.ComposeFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compose file: %w", err)
	}

	out, report, err := RewriteCompose(data, projectID, block)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat compose file: %w", err)
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("failed to write compose file: %w", err)
	}

	for _, port := range report.Unmatched {
		m.logger.Warn("no port mapping found for container port", zap.Int("container_port", port), zap.String("file", path))
	}
	m.logger.Debug("compose file rewritten",
		zap.String("path", path),
		zap.Strings("container_names", report.ContainerNames))

	return report, nil
}

// CLIConfig rewrites the optional CLI config. A missing file is reported
// as a warning string, not an error.
func (m *Materializer) CLIConfig(dir string, block ports.Block) ([]string, error) {
	path := filepath.Join(dir, m.layout.CLIConfig)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("cli config not found, skipping", zap.String("path", path))
		return []string{fmt.Sprintf("%s not found, skipped", m.layout.CLIConfig)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cli config: %w", err)
	}

	out, missing, err := RewriteCLIConfig(data, block)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat cli config: %w", err)
	}
	if err := os.WriteFile(path, out, info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("failed to write cli config: %w", err)
	}

	var warnings []string
	for _, section := range missing {
		m.logger.Warn("cli config section missing", zap.String("section", section), zap.String("path", path))
		warnings = append(warnings, fmt.Sprintf("%s has no [%s] section", m.layout.CLIConfig, section))
	}
	return warnings, nil
}
