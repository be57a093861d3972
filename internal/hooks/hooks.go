package hooks

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
)

// HookType represents the type of hook
type HookType string

const (
	PostAdd   HookType = "post-add"
	PostStart HookType = "post-start"
	PreStop   HookType = "pre-stop"
)

// Types lists the supported hooks in the order they fire in a project's life
func Types() []HookType {
	return []HookType{PostAdd, PostStart, PreStop}
}

// ParseType converts a hook name to its type
func ParseType(name string) (HookType, error) {
	for _, t := range Types() {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid hook name: %s. Valid options: post-add, post-start, pre-stop", name)
}

// Runner executes project hooks
type Runner struct {
	// Scripts are inline fallbacks used when a project has no hook file
	Scripts map[HookType]string
	Stdout  io.Writer
	Stderr  io.Writer
}

// NewRunner creates a runner streaming hook output to the terminal
func NewRunner(scripts map[HookType]string) *Runner {
	return &Runner{Scripts: scripts, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Path returns the file-based hook location inside a project directory
func Path(projectDir string, hookType HookType) string {
	return filepath.Join(projectDir, ".supamulti", "hooks", string(hookType)+".sh")
}

// Execute runs a hook if it exists, from the project directory.
// Priority: file-based hook > script from config. It reports whether a hook ran.
func (r *Runner) Execute(ctx context.Context, projectDir string, hookType HookType, env map[string]string) (bool, error) {
	hookPath := Path(projectDir, hookType)
	if _, err := os.Stat(hookPath); err == nil {
		fmt.Fprintf(r.Stdout, "🪝 Running %s hook (file-based)...\n", hookType)
		return true, r.run(ctx, projectDir, env, "bash", hookPath)
	}

	if script := r.Scripts[hookType]; script != "" {
		fmt.Fprintf(r.Stdout, "🪝 Running %s script (from config)...\n", hookType)
		return true, r.run(ctx, projectDir, env, "bash", "-c", script)
	}

	// No hook defined
	return false, nil
}

func (r *Runner) run(ctx context.Context, dir string, env map[string]string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	// Set environment variables
	cmd.Env = os.Environ()
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, env[k]))
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hook failed: %w", err)
	}

	return nil
}
