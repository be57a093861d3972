package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRemoveCmd creates the remove command
func NewRemoveCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "remove <project-id>",
		Aliases: []string{"rm"},
		Short:   "Stop a project and unregister it",
		Long: `Stops a project's containers (best effort) and removes it from the registry.
The project directory is left on disk.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				result, err := a.ctrl.Remove(cmd.Context(), args[0])
				if err != nil {
					return reportNotFound(cmd, a, err)
				}

				out := cmd.OutOrStdout()
				for _, w := range result.Warnings {
					fmt.Fprintf(out, "%s %s\n", yellow("Warning:"), w)
				}
				fmt.Fprintf(out, "%s %s removed from the registry\n", green("✅"), bold(result.Project.ID))
				fmt.Fprintf(out, "   Files are still in %s; delete them by hand if no longer needed\n", result.Project.Directory)
				return nil
			})
		},
	}

	return cmd
}
