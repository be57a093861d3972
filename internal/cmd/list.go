package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/thatjpcsguy/supamulti/internal/lifecycle"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// NewListCmd creates the list command
func NewListCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all projects",
		Long:    `Lists all registered projects with their ports, directory and container status.`,
		Args:    usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				statuses, err := a.ctrl.List(cmd.Context())
				if err != nil {
					return err
				}
				printProjects(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	}

	return cmd
}

func printProjects(out io.Writer, statuses []lifecycle.Status) {
	if len(statuses) == 0 {
		fmt.Fprintln(out, "No projects found")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PROJECT", "STATUS", "API", "DB", "STUDIO", "DIRECTORY").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, s := range statuses {
		p := s.Project
		t.Row(
			p.ID,
			colorState(s.State),
			strconv.Itoa(p.Ports.API),
			strconv.Itoa(p.Ports.DB),
			strconv.Itoa(p.Ports.Studio),
			p.Directory,
		)
	}

	fmt.Fprintln(out, t.Render())
}
