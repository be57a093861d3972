package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thatjpcsguy/supamulti/internal/lifecycle"
)

// NewRootCmd creates the supamulti command tree
func NewRootCmd(version string) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "supamulti",
		Short: "Run multiple self-hosted Supabase instances side by side",
		Long: `Supamulti provisions isolated self-hosted Supabase projects on one machine.
Each project gets its own checkout, secrets and a non-overlapping block of host ports,
and is started and stopped with docker compose under its own project name.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file (default ~/.supamulti/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(NewAddCmd(flags))
	rootCmd.AddCommand(NewListCmd(flags))
	rootCmd.AddCommand(NewStartCmd(flags))
	rootCmd.AddCommand(NewStopCmd(flags))
	rootCmd.AddCommand(NewRemoveCmd(flags))
	rootCmd.AddCommand(NewInfoCmd(flags))
	rootCmd.AddCommand(NewLogsCmd(flags))
	rootCmd.AddCommand(NewHistoryCmd(flags))
	rootCmd.AddCommand(NewHooksCmd(flags))
	rootCmd.AddCommand(NewPruneCmd(flags))

	return rootCmd
}

// Execute runs the command tree and returns the process exit code
func Execute(rootCmd *cobra.Command) int {
	cmd, err := rootCmd.ExecuteC()
	if err == nil {
		return ExitOK
	}
	if cmd == nil {
		cmd = rootCmd
	}

	errOut := rootCmd.ErrOrStderr()
	fmt.Fprintf(errOut, "%s %v\n", red("Error:"), err)

	var usage *usageError
	if errors.As(err, &usage) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintln(errOut)
		fmt.Fprint(errOut, cmd.UsageString())
	}

	return ExitCode(err)
}

// usageError marks errors caused by wrong invocation
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// usageArgs wraps an argument validator so its failures print usage
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	}
}

// withApp loads the configuration and runs fn with a wired app
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(a *app) error) error {
	a, err := newApp(cmd, flags)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

// reportNotFound prints the registered projects after an unknown id
func reportNotFound(cmd *cobra.Command, a *app, err error) error {
	if !errors.Is(err, lifecycle.ErrProjectNotFound) {
		return err
	}

	projects, listErr := a.ctrl.Projects()
	if listErr != nil {
		return err
	}

	out := cmd.ErrOrStderr()
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects found")
		return err
	}
	fmt.Fprintln(out, "Available projects:")
	for _, p := range projects {
		fmt.Fprintf(out, "  %s\n", p.ID)
	}
	return err
}
