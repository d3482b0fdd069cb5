// Package main is the entry point for the chat CLI. It operates on the
// same durable state as the API server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/capitalize-ai/knowledge-chat/internal/app"
	"github.com/capitalize-ai/knowledge-chat/internal/config"
	"github.com/capitalize-ai/knowledge-chat/pkg/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewStderr(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	open := func(ctx context.Context) (*app.Runtime, error) {
		return app.Build(ctx, cfg, log)
	}

	if err := newRootCmd(open).Execute(); err != nil {
		_ = log.Sync()
		os.Exit(1)
	}
}
