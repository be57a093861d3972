package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ErrNotInstalled is returned when docker or its compose plugin is unavailable
var ErrNotInstalled = errors.New("docker compose is not available")

// Compose runs `docker compose` with the project id as isolation namespace
type Compose struct {
	Binary string
	Stdout io.Writer
	Stderr io.Writer
}

// NewCompose creates a compose runner streaming to the terminal
func NewCompose() *Compose {
	return &Compose{
		Binary: "docker",
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// CheckAvailable verifies that docker and the compose plugin can be executed
func (c *Compose) CheckAvailable(ctx context.Context) error {
	if _, err := exec.LookPath(c.Binary); err != nil {
		return fmt.Errorf("%w: %s not found in PATH", ErrNotInstalled, c.Binary)
	}

	cmd := exec.CommandContext(ctx, c.Binary, "compose", "version")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", ErrNotInstalled, strings.TrimSpace(string(out)))
	}

	return nil
}

// Up starts Docker Compose containers
func (c *Compose) Up(ctx context.Context, projectName, dir string) error {
	fmt.Fprintln(c.Stdout, "🚀 Starting containers...")

	if err := c.run(ctx, dir, "compose", "-p", projectName, "up", "-d"); err != nil {
		return fmt.Errorf("failed to start containers: %w", err)
	}

	return nil
}

// Down stops and removes Docker Compose containers
func (c *Compose) Down(ctx context.Context, projectName, dir string, removeVolumes bool) error {
	fmt.Fprintln(c.Stdout, "🛑 Stopping containers...")

	args := []string{"compose", "-p", projectName, "down", "--remove-orphans"}
	if removeVolumes {
		args = append(args, "-v")
		fmt.Fprintln(c.Stdout, "   Removing volumes...")
	}

	if err := c.run(ctx, dir, args...); err != nil {
		return fmt.Errorf("failed to stop containers: %w", err)
	}

	return nil
}

// Logs streams logs from Docker Compose containers
func (c *Compose) Logs(ctx context.Context, projectName, dir string, follow bool) error {
	args := []string{"compose", "-p", projectName, "logs"}
	if follow {
		args = append(args, "-f")
	}

	return c.run(ctx, dir, args...)
}

// IsRunning checks if containers are running
func (c *Compose) IsRunning(ctx context.Context, projectName string) (bool, error) {
	cmd := exec.CommandContext(ctx, c.Binary, "compose", "-p", projectName, "ps", "--quiet")
	output, err := cmd.Output()
	if err != nil {
		return false, err
	}

	// If there's output, containers are running
	return len(strings.TrimSpace(string(output))) > 0, nil
}

func (c *Compose) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Dir = dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	return cmd.Run()
}
