package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/galeriehaus/artbridge/internal/config"
	"github.com/galeriehaus/artbridge/internal/webflow"
)

// MaintenanceConfig holds the required configuration for creating a
// Maintenance tool.
type MaintenanceConfig struct {
	// Collections maps entity types to target collection IDs.
	Collections config.Collections

	// DryRun indicates whether to skip writes to the target.
	DryRun bool

	// Locales holds the primary and secondary cmsLocaleIds.
	Locales config.Locales

	// Logger is the structured logger for the tool.
	Logger *slog.Logger

	// Target is the Webflow API client.
	Target TargetClient
}

// Maintenance runs the offline repair passes that are deliberately kept out
// of the sync engine: deleting duplicate items and restoring broken image
// references. Both are explicitly invoked, never part of a sync run.
type Maintenance struct {
	collections config.Collections
	dryRun      bool
	locales     config.Locales
	logger      *slog.Logger
	target      TargetClient
}

// DedupeResult contains the outcome of a dedupe pass.
type DedupeResult struct {
	// Deleted is the number of duplicate items removed.
	Deleted int

	// Errors contains per-item deletion failures.
	Errors []error

	// Groups is the number of natural keys that had duplicates.
	Groups int
}

// RepairResult contains the outcome of an image repair pass.
type RepairResult struct {
	// Errors contains per-item patch failures.
	Errors []error

	// Repaired is the number of artworks whose primary image was restored.
	Repaired int

	// Unmatched is the number of artworks that could not be repaired.
	Unmatched int
}

// NewMaintenance creates a new maintenance tool.
func NewMaintenance(cfg MaintenanceConfig) (*Maintenance, error) {
	if cfg.Target == nil {
		return nil, errors.New("target client is required")
	}
	if cfg.Locales.Primary == "" {
		return nil, errors.New("primary locale is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	target := cfg.Target
	if cfg.DryRun {
		target = newDryRunClient(cfg.Target, logger)
	}

	return &Maintenance{
		collections: cfg.Collections,
		dryRun:      cfg.DryRun,
		locales:     cfg.Locales,
		logger:      logger,
		target:      target,
	}, nil
}

// Dedupe finds target items sharing a natural key and deletes all but the
// earliest-created one per key. The survivor matches what the sync engine's
// index resolves to, so references built against it stay valid.
func (m *Maintenance) Dedupe(ctx context.Context, t EntityType) (*DedupeResult, error) {
	collection := m.collectionFor(t)
	if collection == "" {
		return nil, fmt.Errorf("unknown entity type %q", t)
	}

	items, err := m.target.ListItems(ctx, collection, webflow.Locale(m.locales.Primary))
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	index := BuildIndex(items, itemSlug)
	duplicates := index.Duplicates()

	result := &DedupeResult{}
	seen := make(map[string]bool)
	for _, d := range duplicates {
		if !seen[d.NaturalKey] {
			seen[d.NaturalKey] = true
			result.Groups++
		}

		m.logger.Info("deleting duplicate item",
			"type", string(t),
			"natural_key", d.NaturalKey,
			"kept_id", d.KeptID,
			"item_id", d.ExtraID)

		if err := m.target.DeleteItem(ctx, collection, d.ExtraID); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("deleting item %s: %w", d.ExtraID, err))
			m.logger.Error("failed to delete duplicate", "item_id", d.ExtraID, "error", err)
			continue
		}
		result.Deleted++
	}

	m.logger.Info("dedupe completed",
		"type", string(t),
		"groups", result.Groups,
		"deleted", result.Deleted,
		"errors", len(result.Errors))

	return result, nil
}

// RepairArtworkImages restores missing primary image references on artworks.
// The first fallback is the artwork's own gallery: its leading entry becomes
// the primary image. Artworks without a gallery are matched against the site
// asset inventory by filename tokens derived from the artwork name.
func (m *Maintenance) RepairArtworkImages(ctx context.Context) (*RepairResult, error) {
	primary := webflow.Locale(m.locales.Primary)

	artworks, err := m.target.ListItems(ctx, m.collections.Artworks, primary)
	if err != nil {
		return nil, fmt.Errorf("listing artworks: %w", err)
	}

	var inventory []webflow.Asset
	result := &RepairResult{}
	var patches []webflow.ItemUpdate

	for _, artwork := range artworks {
		if hasImage(artwork.FieldData["main-image"]) {
			continue
		}

		if img := firstGalleryImage(artwork.FieldData["gallery"]); img != nil {
			m.logger.Info("restoring primary image from gallery", "item_id", artwork.ID)
			patches = append(patches, webflow.ItemUpdate{
				FieldData: webflow.FieldData{"main-image": img},
				ID:        artwork.ID,
			})
			continue
		}

		// Inventory fetched lazily; most repair runs never need it.
		if inventory == nil {
			inventory, err = m.target.ListAssets(ctx)
			if err != nil {
				return nil, fmt.Errorf("listing assets: %w", err)
			}
		}

		name, _ := artwork.FieldData["name"].(string)
		asset := matchAssetByName(name, inventory)
		if asset == nil {
			result.Unmatched++
			m.logger.Warn("no asset matches artwork", "item_id", artwork.ID, "name", name)
			continue
		}

		m.logger.Info("restoring primary image from asset inventory",
			"item_id", artwork.ID,
			"asset_id", asset.ID,
			"file_name", asset.OriginalFileName)
		patches = append(patches, webflow.ItemUpdate{
			FieldData: webflow.FieldData{"main-image": webflow.ImageValue(asset.ID, asset.HostedURL)},
			ID:        artwork.ID,
		})
	}

	for _, batch := range chunk(patches, webflow.MaxBatchSize) {
		if err := m.target.UpdateItems(ctx, m.collections.Artworks, primary, batch); err != nil {
			for _, u := range batch {
				if err := m.target.UpdateItems(ctx, m.collections.Artworks, primary, []webflow.ItemUpdate{u}); err != nil {
					result.Errors = append(result.Errors, fmt.Errorf("patching item %s: %w", u.ID, err))
					m.logger.Error("failed to repair artwork", "item_id", u.ID, "error", err)
					continue
				}
				result.Repaired++
			}
			continue
		}
		result.Repaired += len(batch)
	}

	m.logger.Info("image repair completed",
		"repaired", result.Repaired,
		"unmatched", result.Unmatched,
		"errors", len(result.Errors))

	return result, nil
}

// collectionFor maps an entity type to its target collection ID.
func (m *Maintenance) collectionFor(t EntityType) string {
	switch t {
	case EntityArtwork:
		return m.collections.Artworks
	case EntityCategory:
		return m.collections.Categories
	case EntityCreator:
		return m.collections.Creators
	case EntityFinish:
		return m.collections.Finishes
	case EntityLocation:
		return m.collections.Locations
	case EntityMaterial:
		return m.collections.Materials
	case EntityMedium:
		return m.collections.Mediums
	}
	return ""
}

// hasImage reports whether an image field value carries an asset reference.
func hasImage(value any) bool {
	img, ok := value.(map[string]any)
	if !ok {
		return false
	}
	fileID, _ := img["fileId"].(string)
	url, _ := img["url"].(string)
	return fileID != "" || url != ""
}

// firstGalleryImage returns the leading gallery entry that carries an asset
// reference.
func firstGalleryImage(value any) map[string]any {
	entries, ok := value.([]any)
	if !ok {
		return nil
	}
	for _, entry := range entries {
		if img, ok := entry.(map[string]any); ok && hasImage(img) {
			return img
		}
	}
	return nil
}

// matchAssetByName finds the inventory asset whose filename shares the most
// tokens with the artwork name. Requires at least two shared tokens so a
// single common word cannot produce a spurious match.
func matchAssetByName(name string, inventory []webflow.Asset) *webflow.Asset {
	tokens := nameTokens(name)
	if len(tokens) == 0 {
		return nil
	}

	var best *webflow.Asset
	bestScore := 1
	for i := range inventory {
		fileTokens := nameTokens(stripExtension(inventory[i].OriginalFileName))
		score := 0
		for t := range tokens {
			if fileTokens[t] {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = &inventory[i]
		}
	}

	return best
}

// nameTokens splits a name into its lowercase slug tokens.
func nameTokens(name string) map[string]bool {
	tokens := make(map[string]bool)
	for _, t := range strings.Split(Slugify(name), "-") {
		if len(t) > 1 {
			tokens[t] = true
		}
	}
	return tokens
}

// stripExtension drops the file extension from a filename.
func stripExtension(fileName string) string {
	return strings.TrimSuffix(fileName, path.Ext(fileName))
}
