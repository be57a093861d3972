package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPruneCmd creates the prune command
func NewPruneCmd(flags *globalFlags) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Unregister projects whose directory was deleted",
		Long: `Removes registry records of projects whose directory no longer exists.
Allocated ports are not reused.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				stale, err := a.ctrl.Prune(cmd.Context(), dryRun)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(stale) == 0 {
					fmt.Fprintln(out, "No stale projects found")
					return nil
				}

				fmt.Fprintln(out, "Found stale projects:")
				for _, p := range stale {
					fmt.Fprintf(out, "  - %s %s\n", p.ID, red(fmt.Sprintf("(%s is missing)", p.Directory)))
				}
				fmt.Fprintln(out)

				if dryRun {
					fmt.Fprintln(out, "Dry run - nothing removed")
					return nil
				}
				fmt.Fprintf(out, "✅ Unregistered %d project(s)\n", len(stale))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be removed")

	return cmd
}
