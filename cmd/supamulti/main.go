package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/thatjpcsguy/supamulti/internal/cmd"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := cmd.NewRootCmd(version)
	rootCmd.SetContext(ctx)

	code := cmd.Execute(rootCmd)
	stop()
	os.Exit(code)
}
