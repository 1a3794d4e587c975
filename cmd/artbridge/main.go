// Package main provides the artbridge command: the Sanity to Webflow catalog
// sync. Run locally it is a CLI with sync, init, dedupe and repair-assets
// subcommands; deployed as a Lambda it runs a scheduled sync.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/galeriehaus/artbridge/internal/config"
	"github.com/galeriehaus/artbridge/internal/storage"
	"github.com/galeriehaus/artbridge/internal/sync"
)

func main() {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		lambda.Start(handleScheduledSync)
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := runCLI(os.Args[1:], logger); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runCLI dispatches the subcommand. A bare invocation runs a sync.
func runCLI(args []string, logger *slog.Logger) error {
	command := "sync"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "sync":
		return runSync(args, logger)
	case "init":
		return runInit()
	case "dedupe":
		return runDedupe(args, logger)
	case "repair-assets":
		return runRepairAssets(args, logger)
	case "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: artbridge [command] [flags]

Commands:
  sync           Sync the catalog from Sanity to Webflow (default)
  init           Create a sample configuration file
  dedupe         Delete duplicate items of one entity type
  repair-assets  Restore missing artwork images
  help           Show this help

Sync flags:
  --dry-run      Compute and log mappings without writing
  --types        Comma-separated entity types to sync (default: all)
  --batch-size   Items per batched write (default 100)
  --workers      Concurrent workers (default 4)
  --rate         Sustained requests per second (default 4)

Dedupe flags:
  --type         Entity type to deduplicate (required)
  --dry-run      Log deletions without executing them

Repair flags:
  --dry-run      Log repairs without executing them`)
}

// runContext returns a context cancelled on SIGINT/SIGTERM, so a run winds
// down between batches and flushes the asset cache instead of dying
// mid-write.
func runContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runSync(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "compute and log mappings without writing")
	types := fs.String("types", "", "comma-separated entity types to sync")
	batchSize := fs.Int("batch-size", 0, "items per batched write")
	workers := fs.Int("workers", 0, "concurrent workers")
	rateLimit := fs.Float64("rate", 0, "sustained requests per second")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	if *dryRun {
		cfg.Sync.DryRun = true
	}
	if *types != "" {
		cfg.Sync.Types = splitTypes(*types)
	}
	if *batchSize > 0 {
		cfg.Sync.BatchSize = *batchSize
	}
	if *workers > 0 {
		cfg.Sync.Workers = *workers
	}
	if *rateLimit > 0 {
		cfg.Sync.RateLimit = *rateLimit
	}

	ctx, cancel := runContext()
	defer cancel()

	if cfg.RunLockPath != "" {
		lock, err := storage.AcquireRunLock(cfg.RunLockPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("failed to release run lock", "error", err)
			}
		}()
	}

	engine, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}

	result, runErr := engine.Run(ctx)
	if result != nil {
		printSummary(result)
	}
	if runErr != nil {
		return runErr
	}
	if result.Failed() > 0 {
		return fmt.Errorf("%d records failed to sync", result.Failed())
	}
	return nil
}

func runDedupe(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("dedupe", flag.ContinueOnError)
	entityType := fs.String("type", "", "entity type to deduplicate")
	dryRun := fs.Bool("dry-run", false, "log deletions without executing them")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *entityType == "" {
		return fmt.Errorf("--type is required")
	}

	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, cancel := runContext()
	defer cancel()

	maintenance, err := buildMaintenance(ctx, cfg, *dryRun, logger)
	if err != nil {
		return err
	}

	result, err := maintenance.Dedupe(ctx, sync.EntityType(*entityType))
	if err != nil {
		return err
	}

	fmt.Printf("Deduplicated %s: %d groups, %d deleted, %d errors\n",
		*entityType, result.Groups, result.Deleted, len(result.Errors))
	return errorsToErr(result.Errors)
}

func runRepairAssets(args []string, logger *slog.Logger) error {
	fs := flag.NewFlagSet("repair-assets", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "log repairs without executing them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, cancel := runContext()
	defer cancel()

	maintenance, err := buildMaintenance(ctx, cfg, *dryRun, logger)
	if err != nil {
		return err
	}

	result, err := maintenance.RepairArtworkImages(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Repaired %d artworks, %d unmatched, %d errors\n",
		result.Repaired, result.Unmatched, len(result.Errors))
	return errorsToErr(result.Errors)
}

// printSummary writes the per-type counts to stdout. It runs even after a
// fatal abort, covering whatever completed.
func printSummary(result *sync.Result) {
	if result.DryRun {
		fmt.Println("Sync summary (dry-run):")
	} else {
		fmt.Println("Sync summary:")
	}
	for _, t := range sync.SyncOrder() {
		tr, ok := result.Types[t]
		if !ok {
			continue
		}
		fmt.Printf("  %-10s created=%d updated=%d skipped=%d failed=%d assets-failed=%d unresolved=%d\n",
			t, tr.Created, tr.Updated, tr.Skipped, tr.Failed, tr.AssetsFailed, tr.Unresolved)
	}
	if len(result.Duplicates) > 0 {
		fmt.Printf("  %d duplicate natural keys flagged; run 'artbridge dedupe' to clean up\n",
			len(result.Duplicates))
	}
	fmt.Printf("  back-references updated: %d\n", result.ReferencesUpdated)
}

// loadSettings prefers the local config file when present, falling back to
// environment variables.
func loadSettings() (*config.Settings, error) {
	if config.LocalConfigExists() {
		return config.LoadLocal()
	}
	return config.Load()
}

func splitTypes(csv string) []string {
	var types []string
	for _, t := range strings.Split(csv, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}

func errorsToErr(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%d operations failed, first: %w", len(errs), errs[0])
}
