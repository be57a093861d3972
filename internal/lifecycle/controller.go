// Package lifecycle drives a project through add, start, stop and remove.
//
// Mutating operations run under the registry lock. Add is a sequence of
// steps with compensations: a failure part way through removes the
// directory it created and the record it wrote, so a failed add leaves no
// trace except an advanced port watermark.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/thatjpcsguy/supamulti/internal/git"
	"github.com/thatjpcsguy/supamulti/internal/history"
	"github.com/thatjpcsguy/supamulti/internal/hooks"
	"github.com/thatjpcsguy/supamulti/internal/materialize"
	"github.com/thatjpcsguy/supamulti/internal/registry"
)

var (
	ErrProjectNotFound   = registry.ErrProjectNotFound
	ErrProjectExists     = registry.ErrProjectExists
	ErrTemplateMissing   = materialize.ErrTemplateMissing
	ErrDirectoryExists   = errors.New("project directory already exists")
	ErrDirectoryMissing  = errors.New("project directory is missing")
	ErrInvalidProjectID  = errors.New("invalid project id")
	ErrMissingDependency = errors.New("missing dependency")
)

const maxProjectIDLength = 63

var projectIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Project states reported by List and Info
const (
	StateRunning = "running"
	StateStopped = "stopped"
	StateUnknown = "unknown"
)

// Cloner fetches the platform repository into a directory
type Cloner interface {
	Clone(ctx context.Context, opts git.CloneOptions, targetDir string) error
}

// Runtime runs a project's containers
type Runtime interface {
	CheckAvailable(ctx context.Context) error
	Up(ctx context.Context, projectName, dir string) error
	Down(ctx context.Context, projectName, dir string, removeVolumes bool) error
	Logs(ctx context.Context, projectName, dir string, follow bool) error
	IsRunning(ctx context.Context, projectName string) (bool, error)
}

// HookRunner executes user hooks
type HookRunner interface {
	Execute(ctx context.Context, projectDir string, hookType hooks.HookType, env map[string]string) (bool, error)
}

// Journal records operations
type Journal interface {
	Record(ctx context.Context, projectID, action, outcome, detail string) error
	List(ctx context.Context, projectID string, limit int) ([]history.Event, error)
}

// Options configures a Controller
type Options struct {
	ProjectsDir string
	Repo        git.CloneOptions
	Store       *registry.Store
	Materialize *materialize.Materializer
	Cloner      Cloner
	Runtime     Runtime
	Hooks       HookRunner // optional
	Journal     Journal    // optional
	Out         io.Writer  // progress output; nil discards
	Logger      *zap.Logger
	HostIP      func() string // defaults to PrimaryIP

	// RemoveStop is used for the best-effort stop performed by Remove
	RemoveStop StopOptions
}

// Controller implements the project lifecycle
type Controller struct {
	projectsDir string
	repo        git.CloneOptions
	store       *registry.Store
	materialize *materialize.Materializer
	cloner      Cloner
	runtime     Runtime
	hooks       HookRunner
	journal     Journal
	out         io.Writer
	logger      *zap.Logger
	hostIP      func() string
	removeStop  StopOptions
}

// New creates a controller
func New(opts Options) (*Controller, error) {
	if opts.ProjectsDir == "" {
		return nil, errors.New("projects directory is required")
	}
	if opts.Store == nil || opts.Materialize == nil || opts.Cloner == nil || opts.Runtime == nil {
		return nil, errors.New("store, materializer, cloner and runtime are required")
	}

	c := &Controller{
		projectsDir: opts.ProjectsDir,
		repo:        opts.Repo,
		store:       opts.Store,
		materialize: opts.Materialize,
		cloner:      opts.Cloner,
		runtime:     opts.Runtime,
		hooks:       opts.Hooks,
		journal:     opts.Journal,
		out:         opts.Out,
		logger:      opts.Logger,
		hostIP:      opts.HostIP,
		removeStop:  opts.RemoveStop,
	}
	if c.out == nil {
		c.out = io.Discard
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.hostIP == nil {
		c.hostIP = PrimaryIP
	}
	return c, nil
}

// ValidateProjectID checks that id is usable as a directory name, container
// name prefix and compose project name
func ValidateProjectID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidProjectID)
	}
	if len(id) > maxProjectIDLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidProjectID, id, maxProjectIDLength)
	}
	if !projectIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q must start with a lowercase letter or digit and contain only lowercase letters, digits, '-' and '_'", ErrInvalidProjectID, id)
	}
	return nil
}

// ProjectDir returns the directory a project with the given id lives in
func (c *Controller) ProjectDir(id string) string {
	return filepath.Join(c.projectsDir, id)
}

// EnvPath returns the working env file of a project directory
func (c *Controller) EnvPath(dir string) string {
	return c.materialize.EnvPath(dir)
}

// CheckDependencies verifies that the container runtime is usable
func (c *Controller) CheckDependencies(ctx context.Context) error {
	if err := c.runtime.CheckAvailable(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMissingDependency, err)
	}
	return nil
}

// AddResult is the outcome of a successful Add
type AddResult struct {
	Project   registry.Project
	JWTSecret string
	Compose   *materialize.ComposeReport
	Warnings  []string
}

// Add provisions a new project: clone, configure, allocate ports and register
func (c *Controller) Add(ctx context.Context, id string) (*AddResult, error) {
	if err := ValidateProjectID(id); err != nil {
		return nil, err
	}

	unlock, err := c.store.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = unlock() }()

	reg, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if reg.Exists(id) {
		return nil, fmt.Errorf("%w: %s", ErrProjectExists, id)
	}

	dir := c.ProjectDir(id)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryExists, dir)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to check project directory: %w", err)
	}

	// the block is computed up front because the env file carries ports;
	// it is only persisted once the env file exists
	block := reg.Allocate()
	if err := block.Validate(); err != nil {
		return nil, err
	}
	for _, p := range reg.All() {
		if block.Overlaps(p.Ports) {
			return nil, fmt.Errorf("allocated ports overlap project %s; check last_port_assigned in %s", p.ID, c.store.Path())
		}
	}

	project := registry.Project{ID: id, Directory: dir, Ports: block}
	result := &AddResult{Project: project}

	s := &saga{logger: c.logger.With(zap.String("project", id))}

	s.add("create project directory",
		func(context.Context) error {
			if err := os.MkdirAll(c.projectsDir, 0755); err != nil {
				return err
			}
			return os.Mkdir(dir, 0755)
		},
		func(context.Context) error {
			fmt.Fprintf(c.out, "🧹 Removing %s\n", dir)
			return os.RemoveAll(dir)
		})

	s.add("clone repository",
		func(ctx context.Context) error {
			if c.repo.Ref != "" {
				fmt.Fprintf(c.out, "📦 Cloning %s (ref: %s)...\n", c.repo.URL, c.repo.Ref)
			} else {
				fmt.Fprintf(c.out, "📦 Cloning %s...\n", c.repo.URL)
			}
			return c.cloner.Clone(ctx, c.repo, dir)
		}, nil)

	s.add("materialize env file",
		func(context.Context) error {
			fmt.Fprintln(c.out, "🔐 Generating secrets and writing .env...")
			env, err := c.materialize.Env(dir, block)
			if err != nil {
				return err
			}
			result.JWTSecret = env.JWTSecret()
			return nil
		}, nil)

	s.add("register project",
		func(context.Context) error {
			if err := reg.Put(project); err != nil {
				return err
			}
			return c.store.Save(reg)
		},
		func(context.Context) error {
			// the watermark stays advanced; only the record goes
			return c.store.Update(func(r *registry.Registry) error {
				if !r.Exists(id) {
					return nil
				}
				return r.Delete(id)
			})
		})

	s.add("rewrite compose file",
		func(context.Context) error {
			fmt.Fprintln(c.out, "🔧 Rewriting compose file...")
			report, err := c.materialize.Compose(dir, id, block)
			if err != nil {
				return err
			}
			result.Compose = report
			for _, port := range report.Unmatched {
				result.Warnings = append(result.Warnings, fmt.Sprintf("compose file has no host mapping for container port %d", port))
			}
			return nil
		}, nil)

	if err := s.run(ctx); err != nil {
		c.record(ctx, id, "add", err, "")
		return nil, fmt.Errorf("failed to add project %s: %w", id, err)
	}

	warnings, err := c.materialize.CLIConfig(dir, block)
	if err != nil {
		c.logger.Warn("cli config rewrite failed", zap.String("project", id), zap.Error(err))
		warnings = append(warnings, fmt.Sprintf("CLI config not updated: %v", err))
	}
	result.Warnings = append(result.Warnings, warnings...)

	c.runHook(ctx, project, hooks.PostAdd)
	c.record(ctx, id, "add", nil, fmt.Sprintf("api=%d db=%d", block.API, block.DB))

	return result, nil
}

// StartResult is the outcome of a successful Start
type StartResult struct {
	Project    registry.Project
	EnvCreated bool
	Endpoints  []Endpoint
}

// Start brings a project's containers up
func (c *Controller) Start(ctx context.Context, id string) (*StartResult, error) {
	project, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := c.CheckDependencies(ctx); err != nil {
		return nil, err
	}
	if err := c.checkDirectory(project); err != nil {
		return nil, err
	}

	result := &StartResult{Project: project}

	created, err := c.materialize.EnsureEnv(project.Directory, project.Ports)
	if err != nil {
		c.record(ctx, id, "start", err, "")
		return nil, fmt.Errorf("failed to prepare env file: %w", err)
	}
	if created {
		c.logger.Warn("env file regenerated with new secrets", zap.String("project", id))
	}
	result.EnvCreated = created

	if err := c.runtime.Up(ctx, id, c.materialize.ComposeDir(project.Directory)); err != nil {
		c.record(ctx, id, "start", err, "")
		return nil, fmt.Errorf("failed to start project %s: %w", id, err)
	}

	c.runHook(ctx, project, hooks.PostStart)
	c.record(ctx, id, "start", nil, "")

	result.Endpoints = Endpoints(c.hostIP(), project.Ports)
	return result, nil
}

// StopOptions controls Stop
type StopOptions struct {
	RemoveVolumes bool
}

// Stop brings a project's containers down
func (c *Controller) Stop(ctx context.Context, id string, opts StopOptions) error {
	project, err := c.lookup(id)
	if err != nil {
		return err
	}
	if err := c.CheckDependencies(ctx); err != nil {
		return err
	}
	if err := c.checkDirectory(project); err != nil {
		return err
	}

	err = c.stop(ctx, project, opts)
	c.record(ctx, id, "stop", err, volumesDetail(opts))
	return err
}

func (c *Controller) stop(ctx context.Context, project registry.Project, opts StopOptions) error {
	c.runHook(ctx, project, hooks.PreStop)

	if err := c.runtime.Down(ctx, project.ID, c.materialize.ComposeDir(project.Directory), opts.RemoveVolumes); err != nil {
		return fmt.Errorf("failed to stop project %s: %w", project.ID, err)
	}
	return nil
}

// RemoveResult is the outcome of a successful Remove
type RemoveResult struct {
	Project  registry.Project
	Warnings []string
}

// Remove stops a project if it can and deletes its record. The directory stays on disk.
func (c *Controller) Remove(ctx context.Context, id string) (*RemoveResult, error) {
	unlock, err := c.store.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = unlock() }()

	reg, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	project, err := reg.Get(id)
	if err != nil {
		return nil, err
	}
	project.ID = id

	result := &RemoveResult{Project: project}

	stopErr := c.CheckDependencies(ctx)
	if stopErr == nil {
		if _, statErr := os.Stat(project.Directory); statErr != nil {
			stopErr = fmt.Errorf("%w: %s", ErrDirectoryMissing, project.Directory)
		} else {
			stopErr = c.stop(ctx, project, c.removeStop)
		}
	}
	if stopErr != nil {
		c.logger.Warn("stop before remove failed", zap.String("project", id), zap.Error(stopErr))
		result.Warnings = append(result.Warnings, fmt.Sprintf("could not stop containers: %v", stopErr))
	}

	if err := reg.Delete(id); err != nil {
		return nil, err
	}
	if err := c.store.Save(reg); err != nil {
		c.record(ctx, id, "remove", err, "")
		return nil, err
	}

	c.record(ctx, id, "remove", nil, "")
	return result, nil
}

// Prune unregisters projects whose directory no longer exists and returns them.
// With dryRun the registry is left untouched.
func (c *Controller) Prune(ctx context.Context, dryRun bool) ([]registry.Project, error) {
	unlock, err := c.store.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = unlock() }()

	reg, err := c.store.Load()
	if err != nil {
		return nil, err
	}

	var stale []registry.Project
	for _, p := range reg.All() {
		if c.checkDirectory(p) != nil {
			stale = append(stale, p)
		}
	}
	if dryRun || len(stale) == 0 {
		return stale, nil
	}

	for _, p := range stale {
		if err := reg.Delete(p.ID); err != nil {
			return nil, err
		}
	}
	if err := c.store.Save(reg); err != nil {
		return nil, err
	}

	for _, p := range stale {
		c.record(ctx, p.ID, "prune", nil, "directory missing: "+p.Directory)
	}
	return stale, nil
}

// Status is a project with its container state
type Status struct {
	Project registry.Project
	State   string
}

// List returns every project in registration order. The state is best-effort:
// it is StateUnknown when the runtime cannot be queried.
func (c *Controller) List(ctx context.Context) ([]Status, error) {
	reg, err := c.store.Load()
	if err != nil {
		return nil, err
	}

	projects := reg.All()
	if len(projects) == 0 {
		return nil, nil
	}

	runtimeOK := c.runtime.CheckAvailable(ctx) == nil

	statuses := make([]Status, 0, len(projects))
	for _, p := range projects {
		state := StateUnknown
		if runtimeOK {
			state = c.state(ctx, p.ID)
		}
		statuses = append(statuses, Status{Project: p, State: state})
	}
	return statuses, nil
}

// Projects returns the registered projects without querying the runtime
func (c *Controller) Projects() ([]registry.Project, error) {
	reg, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	return reg.All(), nil
}

// Info describes one project
type Info struct {
	Project   registry.Project
	State     string
	Revision  string
	EnvExists bool
	Endpoints []Endpoint
}

// Info returns the record, state and access URLs of a project
func (c *Controller) Info(ctx context.Context, id string) (*Info, error) {
	project, err := c.lookup(id)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Project:   project,
		State:     StateUnknown,
		Revision:  git.CurrentRevision(project.Directory),
		Endpoints: Endpoints(c.hostIP(), project.Ports),
	}
	if c.runtime.CheckAvailable(ctx) == nil {
		info.State = c.state(ctx, id)
	}
	if _, err := os.Stat(c.materialize.EnvPath(project.Directory)); err == nil {
		info.EnvExists = true
	}
	return info, nil
}

// Logs streams a project's container logs
func (c *Controller) Logs(ctx context.Context, id string, follow bool) error {
	project, err := c.lookup(id)
	if err != nil {
		return err
	}
	if err := c.CheckDependencies(ctx); err != nil {
		return err
	}
	if err := c.checkDirectory(project); err != nil {
		return err
	}
	return c.runtime.Logs(ctx, id, c.materialize.ComposeDir(project.Directory), follow)
}

// History returns journal entries, newest first. An empty id lists all projects.
func (c *Controller) History(ctx context.Context, id string, limit int) ([]history.Event, error) {
	if c.journal == nil {
		return nil, nil
	}
	return c.journal.List(ctx, id, limit)
}

// RunHook runs one hook of a project on demand and reports whether a hook
// was defined. Unlike hooks fired by operations, a failure is returned.
func (c *Controller) RunHook(ctx context.Context, id string, hookType hooks.HookType) (bool, error) {
	project, err := c.lookup(id)
	if err != nil {
		return false, err
	}
	if err := c.checkDirectory(project); err != nil {
		return false, err
	}
	if c.hooks == nil {
		return false, nil
	}
	return c.hooks.Execute(ctx, project.Directory, hookType, hookEnv(project))
}

func (c *Controller) lookup(id string) (registry.Project, error) {
	reg, err := c.store.Load()
	if err != nil {
		return registry.Project{}, err
	}
	project, err := reg.Get(id)
	if err != nil {
		return registry.Project{}, err
	}
	project.ID = id
	return project, nil
}

func (c *Controller) checkDirectory(project registry.Project) error {
	info, err := os.Stat(project.Directory)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrDirectoryMissing, project.Directory)
	}
	return nil
}

func (c *Controller) state(ctx context.Context, id string) string {
	running, err := c.runtime.IsRunning(ctx, id)
	if err != nil {
		c.logger.Debug("status query failed", zap.String("project", id), zap.Error(err))
		return StateUnknown
	}
	if running {
		return StateRunning
	}
	return StateStopped
}

// runHook executes a hook; failures are reported but never abort the operation
func (c *Controller) runHook(ctx context.Context, project registry.Project, hookType hooks.HookType) {
	if c.hooks == nil {
		return
	}

	ran, err := c.hooks.Execute(ctx, project.Directory, hookType, hookEnv(project))
	if err != nil {
		fmt.Fprintf(c.out, "Warning: %s hook failed: %v\n", hookType, err)
		c.logger.Warn("hook failed", zap.String("project", project.ID), zap.String("hook", string(hookType)), zap.Error(err))
		return
	}
	if ran {
		c.logger.Debug("hook executed", zap.String("project", project.ID), zap.String("hook", string(hookType)))
	}
}

func hookEnv(project registry.Project) map[string]string {
	env := map[string]string{
		"PROJECT_ID":  project.ID,
		"PROJECT_DIR": project.Directory,
	}
	for _, role := range project.Ports.Roles() {
		env[strings.ToUpper(role.Name)+"_PORT"] = strconv.Itoa(role.Port)
	}
	return env
}

func (c *Controller) record(ctx context.Context, id, action string, opErr error, detail string) {
	if c.journal == nil {
		return
	}

	outcome := history.OutcomeOK
	if opErr != nil {
		outcome = history.OutcomeFailed
		detail = opErr.Error()
	}
	if err := c.journal.Record(context.WithoutCancel(ctx), id, action, outcome, detail); err != nil {
		c.logger.Warn("failed to record history", zap.String("project", id), zap.Error(err))
	}
}

func volumesDetail(opts StopOptions) string {
	if opts.RemoveVolumes {
		return "volumes removed"
	}
	return "volumes kept"
}
