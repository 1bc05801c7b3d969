package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kjstillabower/farm-records-service/internal/app"
	"github.com/kjstillabower/farm-records-service/internal/command"
	"github.com/kjstillabower/farm-records-service/internal/config"
	"github.com/kjstillabower/farm-records-service/internal/notify"
	"github.com/kjstillabower/farm-records-service/internal/observability"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	// Logs go to stderr; keep them quiet unless asked for.
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	logger, err := observability.NewLogger(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}
	defer func() { _ = observability.Flush(logger) }()

	a, err := app.New(cfg, logger, notify.Standard(logger))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := command.NewApp(a, os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	return 0
}
