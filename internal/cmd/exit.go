package cmd

import (
	"errors"

	"github.com/thatjpcsguy/supamulti/internal/lifecycle"
)

// Process exit codes
const (
	ExitOK                = 0
	ExitError             = 1
	ExitMissingDependency = 2
	ExitNotFound          = 3
	ExitExists            = 4
)

// ExitCode maps an error returned by a command to the process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, lifecycle.ErrMissingDependency):
		return ExitMissingDependency
	case errors.Is(err, lifecycle.ErrProjectNotFound):
		return ExitNotFound
	case errors.Is(err, lifecycle.ErrProjectExists), errors.Is(err, lifecycle.ErrDirectoryExists):
		return ExitExists
	default:
		return ExitError
	}
}
