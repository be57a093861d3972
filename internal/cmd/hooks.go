package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thatjpcsguy/supamulti/internal/hooks"
)

// NewHooksCmd creates the hooks command
func NewHooksCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks <hook-name> <project-id>",
		Short: "Manually run a project hook",
		Long: `Manually execute a project hook.

A hook is the file .supamulti/hooks/<hook-name>.sh inside the project directory,
or the matching script under hooks: in the config file.

Available hooks:
  post-add    - Runs after a project has been created
  post-start  - Runs after containers start
  pre-stop    - Runs before containers stop

Examples:
  supamulti hooks post-start demo`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			hookType, err := hooks.ParseType(args[0])
			if err != nil {
				return &usageError{err}
			}
			id := args[1]

			return withApp(cmd, flags, func(a *app) error {
				ran, err := a.ctrl.RunHook(cmd.Context(), id, hookType)
				if err != nil {
					return reportNotFound(cmd, a, err)
				}

				out := cmd.OutOrStdout()
				if !ran {
					fmt.Fprintf(out, "No %s hook defined for %s\n", hookType, id)
					return nil
				}
				fmt.Fprintln(out, "✅ Hook completed successfully!")
				return nil
			})
		},
	}

	return cmd
}
