package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thatjpcsguy/supamulti/internal/lifecycle"
)

// NewStopCmd creates the stop command
func NewStopCmd(flags *globalFlags) *cobra.Command {
	var keepVolumes bool

	cmd := &cobra.Command{
		Use:   "stop <project-id>",
		Short: "Stop a project's containers",
		Long: `Stops a project with docker compose down. Volumes are removed unless
--keep-volumes is given or stop.remove_volumes is false in the config.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				opts := lifecycle.StopOptions{RemoveVolumes: a.cfg.Stop.RemoveVolumes && !keepVolumes}
				if err := a.ctrl.Stop(cmd.Context(), args[0], opts); err != nil {
					return reportNotFound(cmd, a, err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %s stopped\n", green("✅"), bold(args[0]))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&keepVolumes, "keep-volumes", false, "Keep the project's data volumes")

	return cmd
}
