package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatjpcsguy/supamulti/internal/lifecycle"
	"github.com/thatjpcsguy/supamulti/internal/ports"
	"github.com/thatjpcsguy/supamulti/internal/registry"
)

func init() {
	color.NoColor = true
}

// withHome points the default config, registry and projects paths into a temp dir
func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	root := NewRootCmd("test")
	root.SetArgs(args)
	root.SetIn(strings.NewReader(""))
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	code := Execute(root)
	return code, stdout.String(), stderr.String()
}

func seedProject(t *testing.T, home, id string) string {
	t.Helper()
	store, err := registry.Open(filepath.Join(home, ".supamulti", "registry.json"), ports.DefaultBase)
	require.NoError(t, err)

	dir := filepath.Join(home, "supabase-projects", id)
	require.NoError(t, os.MkdirAll(dir, 0755))

	require.NoError(t, store.Update(func(r *registry.Registry) error {
		return r.Put(registry.Project{ID: id, Directory: dir, Ports: r.Allocate()})
	}))
	return store.Path()
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"generic", errors.New("boom"), ExitError},
		{"missing dependency", fmt.Errorf("%w: docker", lifecycle.ErrMissingDependency), ExitMissingDependency},
		{"not found", fmt.Errorf("wrapped: %w", lifecycle.ErrProjectNotFound), ExitNotFound},
		{"exists", lifecycle.ErrProjectExists, ExitExists},
		{"directory exists", lifecycle.ErrDirectoryExists, ExitExists},
		{"invalid id", &usageError{lifecycle.ErrInvalidProjectID}, ExitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestReadProjectID(t *testing.T) {
	var out bytes.Buffer

	id, err := readProjectID(strings.NewReader("  demo  \nignored\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "demo", id)
	assert.Empty(t, out.String(), "no prompt when input is not a terminal")

	id, err = readProjectID(strings.NewReader("demo2"), &out)
	require.NoError(t, err)
	assert.Equal(t, "demo2", id)

	_, err = readProjectID(strings.NewReader("\n"), &out)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidProjectID)
}

func TestExecute_UnknownCommand(t *testing.T) {
	withHome(t)

	code, _, stderr := run(t, "bogus")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "unknown command")
	assert.Contains(t, stderr, "Usage:")
}

func TestExecute_MissingArgument(t *testing.T) {
	withHome(t)

	code, _, stderr := run(t, "start")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "Usage:")
}

func TestList_Empty(t *testing.T) {
	withHome(t)

	code, stdout, _ := run(t, "list")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "No projects found")
}

func TestRemove_UnknownProject(t *testing.T) {
	home := withHome(t)
	registryPath := seedProject(t, home, "demo")
	before, err := os.ReadFile(registryPath)
	require.NoError(t, err)

	code, _, stderr := run(t, "remove", "ghost")
	assert.Equal(t, ExitNotFound, code)
	assert.Contains(t, stderr, "ghost")
	assert.Contains(t, stderr, "Available projects:")
	assert.Contains(t, stderr, "demo")

	after, err := os.ReadFile(registryPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAdd_ExistingProject(t *testing.T) {
	home := withHome(t)
	seedProject(t, home, "demo")

	code, _, stderr := run(t, "add", "demo")
	assert.Equal(t, ExitExists, code)
	assert.Contains(t, stderr, "already exists")
}

func TestAdd_InvalidID(t *testing.T) {
	withHome(t)

	code, _, stderr := run(t, "add", "Not_Valid")
	assert.Equal(t, ExitError, code)
	assert.Contains(t, stderr, "invalid project id")
}

func TestHistory_Empty(t *testing.T) {
	withHome(t)

	code, stdout, _ := run(t, "history")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "No history recorded")
}

func TestPrune_DryRun(t *testing.T) {
	home := withHome(t)
	seedProject(t, home, "demo")
	require.NoError(t, os.RemoveAll(filepath.Join(home, "supabase-projects", "demo")))

	code, stdout, _ := run(t, "prune", "--dry-run")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "demo")
	assert.Contains(t, stdout, "Dry run")
}

func TestInfo(t *testing.T) {
	home := withHome(t)
	seedProject(t, home, "demo")

	code, stdout, _ := run(t, "info", "demo")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, "Project:   demo")
	assert.Contains(t, stdout, "api         54321")
	assert.Contains(t, stdout, "missing, will be regenerated on start")
}

func TestPrintProjects(t *testing.T) {
	var out bytes.Buffer
	block, _ := ports.Allocate(ports.DefaultBase)

	printProjects(&out, []lifecycle.Status{
		{Project: registry.Project{ID: "demo", Directory: "/srv/demo", Ports: block}, State: lifecycle.StateRunning},
	})

	s := out.String()
	assert.Contains(t, s, "PROJECT")
	assert.Contains(t, s, "demo")
	assert.Contains(t, s, "54321")
	assert.Contains(t, s, "running")
}
