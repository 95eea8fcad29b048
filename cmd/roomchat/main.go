package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hh6422123-cyber/Eak/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, cli.Options{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}); err != nil {
		stop()
		os.Exit(1)
	}
}
