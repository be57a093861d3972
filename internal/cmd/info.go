package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewInfoCmd creates the info command
func NewInfoCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info <project-id>",
		Short: "Show project info",
		Long:  `Shows the directory, status, port block and access URLs of a project.`,
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				info, err := a.ctrl.Info(cmd.Context(), args[0])
				if err != nil {
					return reportNotFound(cmd, a, err)
				}

				out := cmd.OutOrStdout()
				p := info.Project

				fmt.Fprintf(out, "Project:   %s\n", bold(p.ID))
				fmt.Fprintf(out, "Status:    %s\n", colorState(info.State))
				fmt.Fprintf(out, "Directory: %s\n", p.Directory)
				if info.Revision != "" {
					fmt.Fprintf(out, "Revision:  %s\n", info.Revision)
				}
				if !info.EnvExists {
					fmt.Fprintf(out, "Env file:  %s\n", yellow("missing, will be regenerated on start"))
				}

				fmt.Fprintln(out)
				fmt.Fprintln(out, "Ports:")
				for _, role := range p.Ports.Roles() {
					fmt.Fprintf(out, "  %-11s %d\n", role.Name, role.Port)
				}

				fmt.Fprintln(out)
				fmt.Fprintln(out, "URLs:")
				for _, e := range info.Endpoints {
					fmt.Fprintf(out, "  %-12s %s\n", e.Name+":", e.URL)
				}

				return nil
			})
		},
	}

	return cmd
}
