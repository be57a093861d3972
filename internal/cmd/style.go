package cmd

import (
	"github.com/fatih/color"

	"github.com/thatjpcsguy/supamulti/internal/lifecycle"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// colorState color-codes a project state
func colorState(state string) string {
	switch state {
	case lifecycle.StateRunning:
		return green(state)
	case lifecycle.StateStopped:
		return yellow(state)
	default:
		return state
	}
}
