package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thatjpcsguy/supamulti/internal/config"
	"github.com/thatjpcsguy/supamulti/internal/docker"
	"github.com/thatjpcsguy/supamulti/internal/git"
	"github.com/thatjpcsguy/supamulti/internal/history"
	"github.com/thatjpcsguy/supamulti/internal/hooks"
	"github.com/thatjpcsguy/supamulti/internal/lifecycle"
	"github.com/thatjpcsguy/supamulti/internal/logging"
	"github.com/thatjpcsguy/supamulti/internal/materialize"
	"github.com/thatjpcsguy/supamulti/internal/registry"
)

// globalFlags are the persistent flags shared by every command
type globalFlags struct {
	configPath string
	verbose    bool
}

// app holds what a command needs once configuration is loaded
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	ctrl    *lifecycle.Controller
	journal *history.Journal
}

// newApp loads the configuration and wires the controller for one command invocation
func newApp(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if flags.verbose {
		level = "debug"
	}
	logger, err := logging.NewWithWriter(level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	store, err := registry.Open(cfg.RegistryPath, cfg.BasePort)
	if err != nil {
		return nil, err
	}

	out := cmd.OutOrStdout()

	a := &app{cfg: cfg, logger: logger}

	// the journal is informational; a broken history database never blocks an operation
	journal, err := history.Open(cfg.HistoryPath)
	if err != nil {
		logger.Warn("history journal unavailable", zap.String("path", cfg.HistoryPath), zap.Error(err))
	} else {
		a.journal = journal
	}

	runtime := docker.NewCompose()
	runtime.Stdout = out
	runtime.Stderr = cmd.ErrOrStderr()

	hookRunner := hooks.NewRunner(map[hooks.HookType]string{
		hooks.PostAdd:   cfg.Hooks.PostAdd,
		hooks.PostStart: cfg.Hooks.PostStart,
		hooks.PreStop:   cfg.Hooks.PreStop,
	})
	hookRunner.Stdout = out
	hookRunner.Stderr = cmd.ErrOrStderr()

	opts := lifecycle.Options{
		ProjectsDir: cfg.ProjectsDir,
		Repo: git.CloneOptions{
			URL:   cfg.Repo.URL,
			Ref:   cfg.Repo.Ref,
			Depth: cfg.Repo.Depth,
		},
		Store:       store,
		Materialize: materialize.New(materialize.DefaultLayout(), logger),
		Cloner:      git.NewCloner(cloneProgress(out, flags.verbose)),
		Runtime:     runtime,
		Hooks:       hookRunner,
		Out:         out,
		Logger:      logger,
		RemoveStop:  lifecycle.StopOptions{RemoveVolumes: cfg.Stop.RemoveVolumes},
	}
	if a.journal != nil {
		opts.Journal = a.journal
	}

	a.ctrl, err = lifecycle.New(opts)
	if err != nil {
		a.close()
		return nil, err
	}

	logger.Debug("configuration loaded",
		zap.String("projects_dir", cfg.ProjectsDir),
		zap.String("registry", cfg.RegistryPath),
		zap.Int("base_port", cfg.BasePort))

	return a, nil
}

func (a *app) close() {
	if a.journal != nil {
		_ = a.journal.Close()
	}
	_ = a.logger.Sync()
}

// cloneProgress returns where git transfer progress goes; it is only shown in verbose mode
func cloneProgress(out io.Writer, verbose bool) io.Writer {
	if verbose {
		return out
	}
	return nil
}
