package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/thatjpcsguy/supamulti/internal/history"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd(flags *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [project-id]",
		Short: "Show recent operations",
		Long:  `Shows the most recent add, start, stop and remove operations, newest first.`,
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}

			return withApp(cmd, flags, func(a *app) error {
				events, err := a.ctrl.History(cmd.Context(), id, limit)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(events) == 0 {
					fmt.Fprintln(out, "No history recorded")
					return nil
				}

				t := table.New().
					Border(lipgloss.NormalBorder()).
					Headers("TIME", "PROJECT", "ACTION", "OUTCOME", "DETAIL").
					StyleFunc(func(row, col int) lipgloss.Style {
						if row == table.HeaderRow {
							return headerStyle
						}
						return cellStyle
					})

				for _, e := range events {
					outcome := green(e.Outcome)
					if e.Outcome == history.OutcomeFailed {
						outcome = red(e.Outcome)
					}
					t.Row(e.At.Local().Format("2006-01-02 15:04:05"), e.ProjectID, e.Action, outcome, e.Detail)
				}

				fmt.Fprintln(out, t.Render())
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show (0 for all)")

	return cmd
}
