package cmd

import (
	"github.com/spf13/cobra"
)

// NewLogsCmd creates the logs command
func NewLogsCmd(flags *globalFlags) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs <project-id>",
		Short: "View a project's container logs",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				if err := a.ctrl.Logs(cmd.Context(), args[0], follow); err != nil {
					return reportNotFound(cmd, a, err)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")

	return cmd
}
