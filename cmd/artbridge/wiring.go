package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/galeriehaus/artbridge/internal/assetcache"
	"github.com/galeriehaus/artbridge/internal/config"
	"github.com/galeriehaus/artbridge/internal/sanity"
	"github.com/galeriehaus/artbridge/internal/storage"
	"github.com/galeriehaus/artbridge/internal/sync"
	"github.com/galeriehaus/artbridge/internal/transport"
	"github.com/galeriehaus/artbridge/internal/webflow"
)

// buildEngine wires clients and stores from settings into a sync engine.
func buildEngine(ctx context.Context, cfg *config.Settings, logger *slog.Logger) (*sync.Engine, error) {
	httpClient := newHTTPClient(cfg, logger)

	source, target, err := newClients(ctx, cfg, httpClient)
	if err != nil {
		return nil, err
	}

	store, err := newCacheStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cache, err := assetcache.Open(ctx, store)
	if err != nil {
		return nil, err
	}

	stateStore, err := newStateStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return sync.New(sync.Config{
		AssetCache:  cache,
		BatchSize:   cfg.Sync.BatchSize,
		Collections: cfg.Collections,
		DryRun:      cfg.Sync.DryRun,
		Locales:     cfg.Locales,
		Logger:      logger,
		Source:      source,
		StateStore:  stateStore,
		Target:      target,
		Types:       cfg.Sync.Types,
		Workers:     cfg.Sync.Workers,
	})
}

// buildMaintenance wires the target client into a maintenance tool.
func buildMaintenance(
	ctx context.Context,
	cfg *config.Settings,
	dryRun bool,
	logger *slog.Logger,
) (*sync.Maintenance, error) {
	httpClient := newHTTPClient(cfg, logger)

	_, target, err := newClients(ctx, cfg, httpClient)
	if err != nil {
		return nil, err
	}

	return sync.NewMaintenance(sync.MaintenanceConfig{
		Collections: cfg.Collections,
		DryRun:      dryRun,
		Locales:     cfg.Locales,
		Logger:      logger,
		Target:      target,
	})
}

// newHTTPClient builds the shared rate-limited HTTP client both API clients
// route through, so pacing and backoff state are global.
func newHTTPClient(cfg *config.Settings, logger *slog.Logger) *http.Client {
	policy := transport.DefaultPolicy()
	policy.RequestsPerSecond = cfg.Sync.RateLimit

	limiter := transport.New(nil, policy, logger)
	return limiter.Client(3 * time.Minute)
}

// newClients builds the Sanity and Webflow API clients, resolving tokens
// from Secrets Manager when ARNs are configured.
func newClients(
	ctx context.Context,
	cfg *config.Settings,
	httpClient *http.Client,
) (*sanity.Client, *webflow.Client, error) {
	sanityToken, webflowToken, err := resolveTokens(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	sanityOpts := []sanity.Option{sanity.WithHTTPClient(httpClient)}
	if cfg.Sanity.BaseURL != "" {
		sanityOpts = append(sanityOpts, sanity.WithBaseURL(cfg.Sanity.BaseURL))
	}
	source, err := sanity.NewClient(cfg.Sanity.ProjectID, cfg.Sanity.Dataset, sanityToken, sanityOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("creating sanity client: %w", err)
	}

	webflowOpts := []webflow.Option{webflow.WithHTTPClient(httpClient)}
	if cfg.Webflow.BaseURL != "" {
		webflowOpts = append(webflowOpts, webflow.WithBaseURL(cfg.Webflow.BaseURL))
	}
	target, err := webflow.NewClient(webflowToken, cfg.Webflow.SiteID, webflowOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("creating webflow client: %w", err)
	}

	return source, target, nil
}

// resolveTokens returns the API tokens, fetching from Secrets Manager any
// that are configured as secret ARNs.
func resolveTokens(ctx context.Context, cfg *config.Settings) (string, string, error) {
	sanityToken := cfg.Sanity.Token
	webflowToken := cfg.Webflow.Token

	if cfg.Sanity.TokenSecretARN == "" && cfg.Webflow.TokenSecretARN == "" {
		return sanityToken, webflowToken, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", "", fmt.Errorf("loading AWS config: %w", err)
	}
	resolver, err := storage.NewSecretResolver(secretsmanager.NewFromConfig(awsCfg))
	if err != nil {
		return "", "", err
	}

	if arn := cfg.Sanity.TokenSecretARN; arn != "" {
		if sanityToken, err = resolver.Resolve(ctx, arn); err != nil {
			return "", "", fmt.Errorf("resolving sanity token: %w", err)
		}
	}
	if arn := cfg.Webflow.TokenSecretARN; arn != "" {
		if webflowToken, err = resolver.Resolve(ctx, arn); err != nil {
			return "", "", fmt.Errorf("resolving webflow token: %w", err)
		}
	}

	return sanityToken, webflowToken, nil
}

// newCacheStore picks the asset cache backend: DynamoDB when a table is
// configured (the Lambda deployment), otherwise the local JSON file.
func newCacheStore(ctx context.Context, cfg *config.Settings) (assetcache.Store, error) {
	if cfg.AWS.AssetCacheTableName != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		return assetcache.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.AWS.AssetCacheTableName)
	}

	if cfg.AssetCachePath == "" {
		return nil, errors.New("either ASSET_CACHE_PATH or ASSET_CACHE_TABLE_NAME must be configured")
	}
	return assetcache.NewFileStore(cfg.AssetCachePath)
}

// newStateStore picks the sync-state backend: SSM when a parameter is
// configured, otherwise a no-op store.
func newStateStore(ctx context.Context, cfg *config.Settings) (sync.StateStore, error) {
	if cfg.AWS.StateParameterName == "" {
		return storage.NewNoopStateStore(), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return storage.NewStateStore(ssm.NewFromConfig(awsCfg), cfg.AWS.StateParameterName)
}
