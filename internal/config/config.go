// Package config provides configuration loading from environment variables
// and from the local config file. Components receive their settings through
// explicit structs; nothing outside this package reads the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	// EnvAssetCachePath is the path of the local asset mapping cache file.
	EnvAssetCachePath = "ASSET_CACHE_PATH"

	// EnvAssetCacheTableName is the DynamoDB table holding asset mappings.
	EnvAssetCacheTableName = "ASSET_CACHE_TABLE_NAME"

	// EnvRunLockPath is the path of the advisory run lock file.
	EnvRunLockPath = "RUN_LOCK_PATH"

	// EnvSanityBaseURL overrides the Sanity API base URL.
	EnvSanityBaseURL = "SANITY_BASE_URL"

	// EnvSanityDataset is the Sanity dataset name.
	EnvSanityDataset = "SANITY_DATASET"

	// EnvSanityProjectID is the Sanity project identifier.
	EnvSanityProjectID = "SANITY_PROJECT_ID"

	// EnvSanityToken is the Sanity API token.
	EnvSanityToken = "SANITY_TOKEN"

	// EnvSanityTokenSecretARN is the Secrets Manager ARN for the Sanity token.
	EnvSanityTokenSecretARN = "SANITY_TOKEN_SECRET_ARN"

	// EnvStateParameterName is the SSM parameter storing the last sync time.
	EnvStateParameterName = "STATE_PARAMETER_NAME"

	// EnvSyncBatchSize is the number of items per batched write.
	EnvSyncBatchSize = "SYNC_BATCH_SIZE"

	// EnvSyncDryRun computes and logs mappings without issuing writes.
	EnvSyncDryRun = "SYNC_DRY_RUN"

	// EnvSyncRateLimit is the sustained request rate in requests/second.
	EnvSyncRateLimit = "SYNC_RATE_LIMIT"

	// EnvSyncTypes restricts a run to a comma-separated subset of entity types.
	EnvSyncTypes = "SYNC_TYPES"

	// EnvSyncWorkers is the number of concurrent batch workers.
	EnvSyncWorkers = "SYNC_WORKERS"

	// EnvWebflowBaseURL overrides the Webflow API base URL.
	EnvWebflowBaseURL = "WEBFLOW_BASE_URL"

	// EnvWebflowLocalePrimary is the cmsLocaleId of the primary (English) locale.
	EnvWebflowLocalePrimary = "WEBFLOW_LOCALE_PRIMARY"

	// EnvWebflowLocaleSecondary is the cmsLocaleId of the secondary (German) locale.
	EnvWebflowLocaleSecondary = "WEBFLOW_LOCALE_SECONDARY"

	// EnvWebflowSiteID is the Webflow site identifier.
	EnvWebflowSiteID = "WEBFLOW_SITE_ID"

	// EnvWebflowToken is the Webflow API token.
	EnvWebflowToken = "WEBFLOW_TOKEN"

	// EnvWebflowTokenSecretARN is the Secrets Manager ARN for the Webflow token.
	EnvWebflowTokenSecretARN = "WEBFLOW_TOKEN_SECRET_ARN"
)

// collectionEnvPrefix is the prefix of the per-collection ID variables, e.g.
// WEBFLOW_COLLECTION_ARTWORKS.
const collectionEnvPrefix = "WEBFLOW_COLLECTION_"

const (
	defaultBatchSize = 100
	defaultRateLimit = 4.0
	defaultWorkers   = 4
)

// AWS holds the optional AWS-backed persistence settings used by the Lambda
// deployment.
type AWS struct {
	// AssetCacheTableName is the DynamoDB table holding asset mappings.
	AssetCacheTableName string

	// StateParameterName is the SSM parameter storing the last sync time.
	StateParameterName string
}

// Collections maps entity types to Webflow collection IDs.
type Collections struct {
	// Artworks is the artworks collection ID.
	Artworks string

	// Categories is the categories collection ID.
	Categories string

	// Creators is the creators collection ID.
	Creators string

	// Finishes is the finishes collection ID.
	Finishes string

	// Locations is the locations collection ID.
	Locations string

	// Materials is the materials collection ID.
	Materials string

	// Mediums is the mediums collection ID.
	Mediums string
}

// Locales holds the two cmsLocaleIds of the bilingual site.
type Locales struct {
	// Primary is the English locale ID.
	Primary string

	// Secondary is the German locale ID.
	Secondary string
}

// Sanity holds Sanity Content Lake configuration.
type Sanity struct {
	// BaseURL optionally overrides the API base URL.
	BaseURL string

	// Dataset is the dataset name.
	Dataset string

	// ProjectID is the project identifier.
	ProjectID string

	// Token is the API token.
	Token string

	// TokenSecretARN is the Secrets Manager ARN storing the API token.
	// When set, it takes precedence over Token.
	TokenSecretARN string
}

// Sync holds tunables for a sync run.
type Sync struct {
	// BatchSize is the number of items per batched write, capped at the
	// target API's limit of 100.
	BatchSize int

	// DryRun computes and logs mappings without issuing writes.
	DryRun bool

	// RateLimit is the sustained request rate in requests/second.
	RateLimit float64

	// Types restricts a run to a subset of entity types; empty means all.
	Types []string

	// Workers is the number of concurrent batch workers.
	Workers int
}

// Webflow holds Webflow API configuration.
type Webflow struct {
	// BaseURL optionally overrides the API base URL.
	BaseURL string

	// SiteID is the site identifier.
	SiteID string

	// Token is the API token.
	Token string

	// TokenSecretARN is the Secrets Manager ARN storing the API token.
	// When set, it takes precedence over Token.
	TokenSecretARN string
}

// Settings holds all configuration for the application.
type Settings struct {
	// AssetCachePath is the path of the local asset mapping cache file.
	AssetCachePath string

	// AWS contains AWS-backed persistence settings.
	AWS AWS

	// Collections contains the Webflow collection IDs per entity type.
	Collections Collections

	// Locales contains the bilingual locale IDs.
	Locales Locales

	// RunLockPath is the path of the advisory run lock file.
	RunLockPath string

	// Sanity contains Sanity Content Lake settings.
	Sanity Sanity

	// Sync contains sync run tunables.
	Sync Sync

	// Webflow contains Webflow API settings.
	Webflow Webflow
}

func (s *Settings) validate() error {
	var errs []error

	if s.Sanity.ProjectID == "" {
		errs = append(errs, requiredError(EnvSanityProjectID))
	}
	if s.Sanity.Dataset == "" {
		errs = append(errs, requiredError(EnvSanityDataset))
	}
	if s.Sanity.Token == "" && s.Sanity.TokenSecretARN == "" {
		errs = append(errs, fmt.Errorf("%s or %s is required", EnvSanityToken, EnvSanityTokenSecretARN))
	}
	if s.Webflow.Token == "" && s.Webflow.TokenSecretARN == "" {
		errs = append(errs, fmt.Errorf("%s or %s is required", EnvWebflowToken, EnvWebflowTokenSecretARN))
	}
	if s.Webflow.SiteID == "" {
		errs = append(errs, requiredError(EnvWebflowSiteID))
	}
	if s.Locales.Primary == "" {
		errs = append(errs, requiredError(EnvWebflowLocalePrimary))
	}
	if s.Locales.Secondary == "" {
		errs = append(errs, requiredError(EnvWebflowLocaleSecondary))
	}

	for suffix, id := range map[string]string{
		"ARTWORKS":   s.Collections.Artworks,
		"CATEGORIES": s.Collections.Categories,
		"CREATORS":   s.Collections.Creators,
		"FINISHES":   s.Collections.Finishes,
		"LOCATIONS":  s.Collections.Locations,
		"MATERIALS":  s.Collections.Materials,
		"MEDIUMS":    s.Collections.Mediums,
	} {
		if id == "" {
			errs = append(errs, requiredError(collectionEnvPrefix+suffix))
		}
	}

	if s.Sync.BatchSize < 1 || s.Sync.BatchSize > 100 {
		errs = append(errs, fmt.Errorf("%s must be between 1 and 100", EnvSyncBatchSize))
	}
	if s.Sync.Workers < 1 {
		errs = append(errs, fmt.Errorf("%s must be positive", EnvSyncWorkers))
	}
	if s.Sync.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", EnvSyncRateLimit))
	}

	return errors.Join(errs...)
}

// Load reads configuration from environment variables.
func Load() (*Settings, error) {
	batchSize, err := envInt(EnvSyncBatchSize, defaultBatchSize)
	if err != nil {
		return nil, err
	}
	workers, err := envInt(EnvSyncWorkers, defaultWorkers)
	if err != nil {
		return nil, err
	}
	rateLimit, err := envFloat(EnvSyncRateLimit, defaultRateLimit)
	if err != nil {
		return nil, err
	}

	cfg := &Settings{
		AssetCachePath: strings.TrimSpace(os.Getenv(EnvAssetCachePath)),
		AWS: AWS{
			AssetCacheTableName: strings.TrimSpace(os.Getenv(EnvAssetCacheTableName)),
			StateParameterName:  strings.TrimSpace(os.Getenv(EnvStateParameterName)),
		},
		Collections: Collections{
			Artworks:   strings.TrimSpace(os.Getenv(collectionEnvPrefix + "ARTWORKS")),
			Categories: strings.TrimSpace(os.Getenv(collectionEnvPrefix + "CATEGORIES")),
			Creators:   strings.TrimSpace(os.Getenv(collectionEnvPrefix + "CREATORS")),
			Finishes:   strings.TrimSpace(os.Getenv(collectionEnvPrefix + "FINISHES")),
			Locations:  strings.TrimSpace(os.Getenv(collectionEnvPrefix + "LOCATIONS")),
			Materials:  strings.TrimSpace(os.Getenv(collectionEnvPrefix + "MATERIALS")),
			Mediums:    strings.TrimSpace(os.Getenv(collectionEnvPrefix + "MEDIUMS")),
		},
		Locales: Locales{
			Primary:   strings.TrimSpace(os.Getenv(EnvWebflowLocalePrimary)),
			Secondary: strings.TrimSpace(os.Getenv(EnvWebflowLocaleSecondary)),
		},
		RunLockPath: strings.TrimSpace(os.Getenv(EnvRunLockPath)),
		Sanity: Sanity{
			BaseURL:        strings.TrimSpace(os.Getenv(EnvSanityBaseURL)),
			Dataset:        strings.TrimSpace(os.Getenv(EnvSanityDataset)),
			ProjectID:      strings.TrimSpace(os.Getenv(EnvSanityProjectID)),
			Token:          strings.TrimSpace(os.Getenv(EnvSanityToken)),
			TokenSecretARN: strings.TrimSpace(os.Getenv(EnvSanityTokenSecretARN)),
		},
		Sync: Sync{
			BatchSize: batchSize,
			DryRun:    envBool(EnvSyncDryRun),
			RateLimit: rateLimit,
			Types:     envList(EnvSyncTypes),
			Workers:   workers,
		},
		Webflow: Webflow{
			BaseURL:        strings.TrimSpace(os.Getenv(EnvWebflowBaseURL)),
			SiteID:         strings.TrimSpace(os.Getenv(EnvWebflowSiteID)),
			Token:          strings.TrimSpace(os.Getenv(EnvWebflowToken)),
			TokenSecretARN: strings.TrimSpace(os.Getenv(EnvWebflowTokenSecretARN)),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envBool(key string) bool {
	value := strings.TrimSpace(os.Getenv(key))
	return value == "1" || strings.EqualFold(value, "true")
}

func envFloat(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return f, nil
}

func envInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

func envList(key string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	return list
}

func requiredError(envVar string) error {
	return fmt.Errorf("%s is required", envVar)
}
