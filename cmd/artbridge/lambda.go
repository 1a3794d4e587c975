package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/galeriehaus/artbridge/internal/config"
)

// handleScheduledSync runs one sync cycle from a scheduled Lambda
// invocation. Configuration comes from the environment; the asset cache and
// sync state live in DynamoDB and SSM.
func handleScheduledSync(ctx context.Context) error {
	logger := slog.Default()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	engine, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building sync engine: %w", err)
	}

	result, runErr := engine.Run(ctx)
	if runErr != nil {
		return fmt.Errorf("sync run failed: %w", runErr)
	}

	if failed := result.Failed(); failed > 0 {
		// Individual record failures are already logged with their causes;
		// failing the invocation surfaces them in Lambda error metrics.
		return fmt.Errorf("sync completed with %d failed records", failed)
	}

	return nil
}
