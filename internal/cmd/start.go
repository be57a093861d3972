package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStartCmd creates the start command
func NewStartCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <project-id>",
		Short: "Start a project's containers",
		Long: `Starts a project with docker compose, using the project id as compose project name.
A missing .env is generated again from the template before starting.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				result, err := a.ctrl.Start(cmd.Context(), args[0])
				if err != nil {
					return reportNotFound(cmd, a, err)
				}

				out := cmd.OutOrStdout()
				if result.EnvCreated {
					fmt.Fprintf(out, "%s .env was regenerated with new secrets; ANON_KEY and SERVICE_ROLE_KEY must be set again\n", yellow("Warning:"))
				}

				fmt.Fprintln(out)
				fmt.Fprintf(out, "%s %s is up\n", green("✅"), bold(result.Project.ID))
				for _, e := range result.Endpoints {
					fmt.Fprintf(out, "   %-12s %s\n", e.Name+":", e.URL)
				}
				return nil
			})
		},
	}

	return cmd
}
