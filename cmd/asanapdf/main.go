// Package main is the entry point for the asanapdf CLI.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"asanapdf/internal/backend/asana"
	"asanapdf/internal/cli"
	"asanapdf/internal/commands"
	"asanapdf/internal/config"
	"asanapdf/internal/service"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// The dispatcher installs the configured logger as the default before
	// any command runs, so the client picks it up here.
	factory := func(ctx context.Context, cfg *config.Config, token string) (service.Service, error) {
		client, err := asana.New(ctx, cfg, token)
		if err != nil {
			return nil, err
		}
		return client.WithLogger(slog.Default()), nil
	}

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}
