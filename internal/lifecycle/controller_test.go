package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatjpcsguy/supamulti/internal/git"
	"github.com/thatjpcsguy/supamulti/internal/history"
	"github.com/thatjpcsguy/supamulti/internal/hooks"
	"github.com/thatjpcsguy/supamulti/internal/materialize"
	"github.com/thatjpcsguy/supamulti/internal/ports"
	"github.com/thatjpcsguy/supamulti/internal/registry"
)

const templateEnv = `POSTGRES_PASSWORD=change-me
JWT_SECRET=change-me
ANON_KEY=eyJ.anon
SERVICE_ROLE_KEY=eyJ.service
DASHBOARD_PASSWORD=change-me
VAULT_ENC_KEY=change-me
POSTGRES_PORT=5432
KONG_HTTP_PORT=8000
KONG_HTTPS_PORT=8443
`

const templateCompose = `services:
  studio:
    container_name: supabase-studio
    ports:
      - "3000:3000"
  kong:
    container_name: supabase-kong
    ports:
      - ${KONG_HTTP_PORT}:8000/tcp
      - ${KONG_HTTPS_PORT}:8443/tcp
  db:
    container_name: supabase-db
    ports:
      - "5432:5432"
`

const templateCLIConfig = `[api]
port = 54321

[db]
port = 54322
shadow_port = 54320

[studio]
port = 54323
`

// fakeCloner writes a minimal checkout instead of cloning
type fakeCloner struct {
	files map[string]string
	err   error
	calls int
}

func (f *fakeCloner) Clone(_ context.Context, _ git.CloneOptions, dir string) error {
	f.calls++
	for rel, content := range f.files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	return f.err
}

type fakeRuntime struct {
	unavailable bool
	running     map[string]bool
	upErr       error
	downErr     error
	calls       []string
}

func (f *fakeRuntime) CheckAvailable(context.Context) error {
	if f.unavailable {
		return errors.New("docker not found")
	}
	return nil
}

func (f *fakeRuntime) Up(_ context.Context, name, dir string) error {
	f.calls = append(f.calls, "up "+name+" "+filepath.Base(dir))
	if f.upErr != nil {
		return f.upErr
	}
	if f.running == nil {
		f.running = make(map[string]bool)
	}
	f.running[name] = true
	return nil
}

func (f *fakeRuntime) Down(_ context.Context, name, dir string, removeVolumes bool) error {
	call := "down " + name + " " + filepath.Base(dir)
	if removeVolumes {
		call += " -v"
	}
	f.calls = append(f.calls, call)
	if f.downErr != nil {
		return f.downErr
	}
	delete(f.running, name)
	return nil
}

func (f *fakeRuntime) Logs(_ context.Context, name, _ string, follow bool) error {
	call := "logs " + name
	if follow {
		call += " -f"
	}
	f.calls = append(f.calls, call)
	return nil
}

func (f *fakeRuntime) IsRunning(_ context.Context, name string) (bool, error) {
	return f.running[name], nil
}

type fakeHooks struct {
	executed []hooks.HookType
	env      map[string]string
	err      error
}

func (f *fakeHooks) Execute(_ context.Context, _ string, hookType hooks.HookType, env map[string]string) (bool, error) {
	f.executed = append(f.executed, hookType)
	f.env = env
	return true, f.err
}

type fixture struct {
	ctrl     *Controller
	store    *registry.Store
	cloner   *fakeCloner
	runtime  *fakeRuntime
	hooks    *fakeHooks
	journal  *history.Journal
	out      *bytes.Buffer
	projects string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	store, err := registry.Open(filepath.Join(root, "state", "registry.json"), ports.DefaultBase)
	require.NoError(t, err)

	journal, err := history.Open(filepath.Join(root, "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	f := &fixture{
		store: store,
		cloner: &fakeCloner{files: map[string]string{
			"docker/.env.example":       templateEnv,
			"docker/docker-compose.yml": templateCompose,
			"supabase/config.toml":      templateCLIConfig,
		}},
		runtime:  &fakeRuntime{},
		hooks:    &fakeHooks{},
		journal:  journal,
		out:      &bytes.Buffer{},
		projects: filepath.Join(root, "projects"),
	}

	f.ctrl, err = New(Options{
		ProjectsDir: f.projects,
		Store:       store,
		Materialize: materialize.New(materialize.DefaultLayout(), nil),
		Cloner:      f.cloner,
		Runtime:     f.runtime,
		Hooks:       f.hooks,
		Journal:     journal,
		Out:         f.out,
		HostIP:      func() string { return "10.0.0.5" },
		RemoveStop:  StopOptions{RemoveVolumes: true},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) registryBytes(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	return data
}

func TestValidateProjectID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"demo", true},
		{"demo-2", true},
		{"0_test", true},
		{"", false},
		{"Demo", false},
		{"-demo", false},
		{"demo/../x", false},
		{"has space", false},
		{strings.Repeat("a", 63), true},
		{strings.Repeat("a", 64), false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateProjectID(tt.id)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidProjectID)
			}
		})
	}
}

func TestController_AddFirstProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.ctrl.Add(ctx, "demo")
	require.NoError(t, err)

	p := result.Project
	assert.Equal(t, filepath.Join(f.projects, "demo"), p.Directory)
	assert.Equal(t, 54321, p.Ports.API)
	assert.Equal(t, 54322, p.Ports.DB)
	assert.Equal(t, 54320, p.Ports.Shadow)
	assert.Equal(t, 54323, p.Ports.Studio)
	assert.Equal(t, 54764, p.Ports.KongHTTPS)
	assert.Len(t, result.JWTSecret, materialize.SecretLength)

	reg, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, 55321, reg.LastPortAssigned)
	assert.True(t, reg.Exists("demo"))

	env, err := materialize.ReadEnvFile(filepath.Join(p.Directory, "docker", ".env"))
	require.NoError(t, err)
	secret, _ := env.Get("JWT_SECRET")
	assert.Equal(t, result.JWTSecret, secret)
	httpPort, _ := env.Get("KONG_HTTP_PORT")
	assert.Equal(t, "54321", httpPort)

	compose, err := os.ReadFile(filepath.Join(p.Directory, "docker", "docker-compose.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(compose), "demo-supabase-db")
	assert.Contains(t, string(compose), "54322:5432")

	cli, err := os.ReadFile(filepath.Join(p.Directory, "supabase", "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(cli), "54321")

	assert.Equal(t, []hooks.HookType{hooks.PostAdd}, f.hooks.executed)
	assert.Equal(t, "54321", f.hooks.env["API_PORT"])
	assert.Equal(t, "demo", f.hooks.env["PROJECT_ID"])

	events, err := f.ctrl.History(ctx, "demo", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "add", events[0].Action)
	assert.Equal(t, history.OutcomeOK, events[0].Outcome)
}

func TestController_AddSecondProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.Add(ctx, "demo")
	require.NoError(t, err)
	result, err := f.ctrl.Add(ctx, "demo2")
	require.NoError(t, err)

	assert.Equal(t, 55321, result.Project.Ports.API)

	reg, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, 56321, reg.LastPortAssigned)

	ids := []string{}
	for _, p := range reg.All() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"demo", "demo2"}, ids)
}

func TestController_AddDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.Add(ctx, "demo")
	require.NoError(t, err)
	before := f.registryBytes(t)

	_, err = f.ctrl.Add(ctx, "demo")
	assert.ErrorIs(t, err, ErrProjectExists)
	assert.Equal(t, before, f.registryBytes(t))
	assert.Equal(t, 1, f.cloner.calls)
}

func TestController_AddExistingDirectory(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(f.projects, "demo")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0644))

	_, err := f.ctrl.Add(context.Background(), "demo")
	assert.ErrorIs(t, err, ErrDirectoryExists)
	assert.FileExists(t, filepath.Join(dir, "keep.txt"))
	assert.NoFileExists(t, f.store.Path())
}

func TestController_AddCloneFailure(t *testing.T) {
	f := newFixture(t)
	f.cloner.err = errors.New("network unreachable")

	_, err := f.ctrl.Add(context.Background(), "demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network unreachable")

	assert.NoDirExists(t, filepath.Join(f.projects, "demo"))
	assert.NoFileExists(t, f.store.Path())

	events, err := f.ctrl.History(context.Background(), "demo", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, history.OutcomeFailed, events[0].Outcome)
}

func TestController_AddMissingTemplate(t *testing.T) {
	f := newFixture(t)
	delete(f.cloner.files, "docker/.env.example")

	_, err := f.ctrl.Add(context.Background(), "demo")
	assert.ErrorIs(t, err, ErrTemplateMissing)
	assert.NoDirExists(t, filepath.Join(f.projects, "demo"))

	reg, err := f.store.Load()
	require.NoError(t, err)
	assert.False(t, reg.Exists("demo"))
}

func TestController_AddComposeFailureRollsBackRecord(t *testing.T) {
	f := newFixture(t)
	delete(f.cloner.files, "docker/docker-compose.yml")

	_, err := f.ctrl.Add(context.Background(), "demo")
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Join(f.projects, "demo"))

	reg, err := f.store.Load()
	require.NoError(t, err)
	assert.False(t, reg.Exists("demo"))
	assert.Equal(t, 55321, reg.LastPortAssigned, "watermark is not rolled back")
}

func TestController_AddWithoutCLIConfig(t *testing.T) {
	f := newFixture(t)
	delete(f.cloner.files, "supabase/config.toml")

	result, err := f.ctrl.Add(context.Background(), "demo")
	require.NoError(t, err)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, strings.Join(result.Warnings, "\n"), "config.toml")
}

func TestController_StartStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.Add(ctx, "demo")
	require.NoError(t, err)

	result, err := f.ctrl.Start(ctx, "demo")
	require.NoError(t, err)
	assert.False(t, result.EnvCreated)
	require.NotEmpty(t, result.Endpoints)
	assert.Equal(t, "http://10.0.0.5:54321", result.Endpoints[0].URL)

	statuses, err := f.ctrl.List(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, StateRunning, statuses[0].State)

	require.NoError(t, f.ctrl.Stop(ctx, "demo", StopOptions{RemoveVolumes: false}))
	require.NoError(t, f.ctrl.Stop(ctx, "demo", StopOptions{RemoveVolumes: true}))

	assert.Equal(t, []string{"up demo docker", "down demo docker", "down demo docker -v"}, f.runtime.calls)
	assert.Equal(t, []hooks.HookType{hooks.PostAdd, hooks.PostStart, hooks.PreStop, hooks.PreStop}, f.hooks.executed)
}

func TestController_StartRegeneratesEnv(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	added, err := f.ctrl.Add(ctx, "demo")
	require.NoError(t, err)
	envPath := filepath.Join(added.Project.Directory, "docker", ".env")
	require.NoError(t, os.Remove(envPath))

	result, err := f.ctrl.Start(ctx, "demo")
	require.NoError(t, err)
	assert.True(t, result.EnvCreated)
	assert.FileExists(t, envPath)
}

func TestController_StartUnknownProject(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.Start(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.Empty(t, f.runtime.calls)
}

func TestController_MissingDependency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctrl.Add(ctx, "demo")
	require.NoError(t, err)

	f.runtime.unavailable = true

	_, err = f.ctrl.Start(ctx, "demo")
	assert.ErrorIs(t, err, ErrMissingDependency)
	assert.ErrorIs(t, f.ctrl.Stop(ctx, "demo", StopOptions{}), ErrMissingDependency)
	assert.ErrorIs(t, f.ctrl.Logs(ctx, "demo", false), ErrMissingDependency)

	statuses, err := f.ctrl.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnknown, statuses[0].State)
}

func TestController_StartFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctrl.Add(ctx, "demo")
	require.NoError(t, err)

	f.runtime.upErr = errors.New("exit status 1")
	_, err = f.ctrl.Start(ctx, "demo")
	require.Error(t, err)

	events, err := f.ctrl.History(ctx, "demo", 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "start", events[0].Action)
	assert.Equal(t, history.OutcomeFailed, events[0].Outcome)
}

func TestController_Remove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	added, err := f.ctrl.Add(ctx, "demo")
	require.NoError(t, err)

	result, err := f.ctrl.Remove(ctx, "demo")
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.Contains(t, f.runtime.calls, "down demo docker -v")

	reg, err := f.store.Load()
	require.NoError(t, err)
	assert.False(t, reg.Exists("demo"))
	assert.Equal(t, 55321, reg.LastPortAssigned)
	assert.DirExists(t, added.Project.Directory, "files stay on disk")
}

func TestController_RemoveStopFailureIsWarning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.Add(ctx, "demo")
	require.NoError(t, err)
	f.runtime.downErr = errors.New("cannot connect to the docker daemon")

	result, err := f.ctrl.Remove(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)

	reg, err := f.store.Load()
	require.NoError(t, err)
	assert.False(t, reg.Exists("demo"))
}

func TestController_RemoveUnknownLeavesRegistryUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.Add(ctx, "demo")
	require.NoError(t, err)
	before := f.registryBytes(t)

	_, err = f.ctrl.Remove(ctx, "missing")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.Equal(t, before, f.registryBytes(t))
}

func TestController_ListEmpty(t *testing.T) {
	f := newFixture(t)

	statuses, err := f.ctrl.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

func TestController_Info(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.Add(ctx, "demo")
	require.NoError(t, err)

	info, err := f.ctrl.Info(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", info.Project.ID)
	assert.Equal(t, StateStopped, info.State)
	assert.True(t, info.EnvExists)
	assert.Empty(t, info.Revision, "fake clone is not a git repository")

	_, err = f.ctrl.Info(ctx, "ghost")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestController_HookFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t)
	f.hooks.err = errors.New("exit status 2")

	_, err := f.ctrl.Add(context.Background(), "demo")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "post-add hook failed")
}

func TestController_Logs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctrl.Add(ctx, "demo")
	require.NoError(t, err)

	require.NoError(t, f.ctrl.Logs(ctx, "demo", true))
	assert.Equal(t, []string{"logs demo -f"}, f.runtime.calls)
}

func TestController_Prune(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gone, err := f.ctrl.Add(ctx, "gone")
	require.NoError(t, err)
	_, err = f.ctrl.Add(ctx, "kept")
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(gone.Project.Directory))

	before := f.registryBytes(t)
	stale, err := f.ctrl.Prune(ctx, true)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "gone", stale[0].ID)
	assert.Equal(t, before, f.registryBytes(t), "dry run does not write")

	stale, err = f.ctrl.Prune(ctx, false)
	require.NoError(t, err)
	require.Len(t, stale, 1)

	reg, err := f.store.Load()
	require.NoError(t, err)
	assert.False(t, reg.Exists("gone"))
	assert.True(t, reg.Exists("kept"))
	assert.Equal(t, 56321, reg.LastPortAssigned)
}

func TestController_RunHook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctrl.Add(ctx, "demo")
	require.NoError(t, err)

	ran, err := f.ctrl.RunHook(ctx, "demo", hooks.PostStart)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, hooks.PostStart, f.hooks.executed[len(f.hooks.executed)-1])

	_, err = f.ctrl.RunHook(ctx, "ghost", hooks.PostStart)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}
