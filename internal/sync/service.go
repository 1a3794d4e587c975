package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/galeriehaus/artbridge/internal/assetcache"
	"github.com/galeriehaus/artbridge/internal/config"
	"github.com/galeriehaus/artbridge/internal/sanity"
	"github.com/galeriehaus/artbridge/internal/transport"
	"github.com/galeriehaus/artbridge/internal/webflow"
)

// Config holds the required configuration for creating an Engine.
type Config struct {
	// AssetCache is the persistent source-to-target asset mapping cache.
	AssetCache *assetcache.Cache

	// BatchSize is the number of items per batched write, capped at the
	// target API limit.
	BatchSize int

	// Collections maps entity types to target collection IDs.
	Collections config.Collections

	// DryRun indicates whether to skip writes to the target.
	DryRun bool

	// Locales holds the primary and secondary cmsLocaleIds.
	Locales config.Locales

	// Logger is the structured logger for the engine.
	Logger *slog.Logger

	// Source is the Sanity API client.
	Source SourceClient

	// StateStore manages sync state persistence.
	StateStore StateStore

	// Target is the Webflow API client.
	Target TargetClient

	// Types restricts the run to a subset of entity types; empty means all.
	Types []string

	// Workers is the number of concurrent workers for asset uploads and
	// batch dispatch.
	Workers int
}

// validate checks that all required Config fields are set.
func (c *Config) validate() error {
	var errs []error
	if c.AssetCache == nil {
		errs = append(errs, errors.New("asset cache is required"))
	}
	if c.Locales.Primary == "" || c.Locales.Secondary == "" {
		errs = append(errs, errors.New("primary and secondary locales are required"))
	}
	if c.Source == nil {
		errs = append(errs, errors.New("source client is required"))
	}
	if c.StateStore == nil {
		errs = append(errs, errors.New("state store is required"))
	}
	if c.Target == nil {
		errs = append(errs, errors.New("target client is required"))
	}
	if c.BatchSize < 1 || c.BatchSize > webflow.MaxBatchSize {
		errs = append(errs, fmt.Errorf("batch size must be between 1 and %d", webflow.MaxBatchSize))
	}
	for _, t := range c.Types {
		if _, ok := specs[EntityType(t)]; !ok {
			errs = append(errs, fmt.Errorf("unknown entity type %q", t))
		}
	}
	return errors.Join(errs...)
}

// Engine orchestrates the sync between Sanity and Webflow. An Engine runs
// one sync at a time; per-run state is reset at the start of Run.
type Engine struct {
	assets      *assetSyncer
	batchSize   int
	cache       *assetcache.Cache
	collections config.Collections
	dryRun      bool
	locales     config.Locales
	logger      *slog.Logger
	names       map[string]string
	refIndex    map[string]string
	source      SourceClient
	stateStore  StateStore
	target      TargetClient
	types       map[EntityType]bool
	workers     int
}

// New creates a new sync engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	target := cfg.Target
	if cfg.DryRun {
		target = newDryRunClient(cfg.Target, logger)
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var types map[EntityType]bool
	if len(cfg.Types) > 0 {
		types = make(map[EntityType]bool, len(cfg.Types))
		for _, t := range cfg.Types {
			types[EntityType(t)] = true
		}
	}

	return &Engine{
		assets: &assetSyncer{
			cache:  cfg.AssetCache,
			logger: logger,
			source: cfg.Source,
			target: target,
		},
		batchSize:   cfg.BatchSize,
		cache:       cfg.AssetCache,
		collections: cfg.Collections,
		dryRun:      cfg.DryRun,
		locales:     cfg.Locales,
		logger:      logger,
		source:      cfg.Source,
		stateStore:  cfg.StateStore,
		target:      target,
		types:       types,
		workers:     workers,
	}, nil
}

// Run executes a full sync cycle: each selected entity type in dependency
// order, then the reference resolution pass. A fatal client error aborts the
// remaining types; the returned Result still covers everything completed
// before the abort, and already-uploaded asset mappings are flushed.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	logger := e.logger.With("run_id", runID)

	result := &Result{
		DryRun: e.dryRun,
		RunID:  runID,
		Types:  make(map[EntityType]*TypeResult),
	}

	e.names = make(map[string]string)
	e.refIndex = make(map[string]string)

	lastSync, err := e.stateStore.LastSyncTime(ctx)
	if err != nil {
		logger.Warn("could not read last sync time", "error", err)
	} else if !lastSync.IsZero() {
		logger.Info("starting sync", "last_sync", lastSync, "dry_run", e.dryRun)
	} else {
		logger.Info("starting initial sync", "dry_run", e.dryRun)
	}

	var fatal error
	if err := e.preloadReferences(ctx, logger); err != nil {
		fatal = fmt.Errorf("preloading references: %w", err)
		logger.Error("aborting run", "error", err)
	}

	for _, t := range SyncOrder() {
		if fatal != nil {
			break
		}
		if !e.selected(t) {
			continue
		}
		if err := e.syncType(ctx, t, result, logger); err != nil {
			fatal = fmt.Errorf("syncing %s: %w", t, err)
			logger.Error("aborting run", "type", string(t), "error", err)
			break
		}
	}

	if fatal == nil && (e.selected(EntityCreator) || e.selected(EntityArtwork)) {
		if err := e.resolveReferences(ctx, result, logger); err != nil {
			fatal = fmt.Errorf("resolving references: %w", err)
			logger.Error("reference resolution aborted", "error", err)
		}
	}

	// Flush even after an abort: mappings for assets uploaded so far must
	// survive, or a retry would upload them again.
	if !e.dryRun {
		if err := e.cache.Flush(ctx); err != nil {
			logger.Error("failed to flush asset cache", "error", err)
			if fatal == nil {
				fatal = err
			}
		}
	}

	if fatal == nil && !e.dryRun {
		if err := e.stateStore.SetLastSyncTime(ctx, time.Now()); err != nil {
			logger.Error("failed to update last sync time", "error", err)
		}
	}

	e.logSummary(result, logger)
	return result, fatal
}

// selected reports whether the entity type is part of this run.
func (e *Engine) selected(t EntityType) bool {
	return e.types == nil || e.types[t]
}

// preloadReferences fills the run-scoped name and reference indexes for the
// types excluded from a filtered run. Artworks derive their natural key from
// the creator's name and resolve references across every other type, so the
// excluded types' documents are still matched against the target, read-only,
// before artworks sync. Without this a filtered run would degrade slug-less
// artwork keys and create duplicates.
func (e *Engine) preloadReferences(ctx context.Context, logger *slog.Logger) error {
	if e.types == nil || !e.selected(EntityArtwork) {
		return nil
	}

	for _, t := range SyncOrder() {
		if t == EntityArtwork || e.selected(t) {
			continue
		}
		spec := specs[t]

		docs, err := e.source.Documents(ctx, spec.sourceType)
		if err != nil {
			return fmt.Errorf("fetching %s documents: %w", t, err)
		}
		for _, doc := range docs {
			if name := spec.displayName(doc); name != "" {
				e.names[doc.ID] = name
			}
		}

		items, err := e.target.ListItems(ctx, e.collectionFor(t), webflow.Locale(e.locales.Primary))
		if err != nil {
			return fmt.Errorf("listing %s items: %w", t, err)
		}
		index := BuildIndex(items, itemSlug)

		mc := e.mapContext()
		resolved := 0
		for _, doc := range docs {
			key := spec.naturalKey(doc, mc)
			if key == "" {
				continue
			}
			if id, ok := index.Resolve(key); ok {
				e.refIndex[doc.ID] = id
				resolved++
			}
		}

		logger.Info("preloaded excluded type",
			"type", string(t),
			"documents", len(docs),
			"resolved", resolved)
	}

	return nil
}

// mapContext returns the lookups the mapping closures read, backed by the
// run-scoped state.
func (e *Engine) mapContext() mapContext {
	return mapContext{
		asset: e.cache.Lookup,
		name: func(sourceID string) (string, bool) {
			name, ok := e.names[sourceID]
			return name, ok
		},
		ref: func(sourceID string) (string, bool) {
			id, ok := e.refIndex[sourceID]
			return id, ok
		},
	}
}

// mapped pairs a source document with its mapped locale field sets.
type mapped struct {
	key       string
	primary   webflow.FieldData
	secondary webflow.FieldData
	sourceID  string
	targetID  string
}

// syncType runs the upsert pass for one entity type. It returns an error
// only for fatal conditions that must abort the run; everything else is
// recorded in the type result and the run continues.
func (e *Engine) syncType(ctx context.Context, t EntityType, result *Result, logger *slog.Logger) error {
	spec := specs[t]
	collection := e.collectionFor(t)
	logger = logger.With("type", string(t))

	tr := &TypeResult{}
	result.Types[t] = tr

	primaryItems, err := e.target.ListItems(ctx, collection, webflow.Locale(e.locales.Primary))
	if err != nil {
		return e.typeFailure(tr, logger, fmt.Errorf("listing target items: %w", err))
	}
	secondaryItems, err := e.target.ListItems(ctx, collection, webflow.Locale(e.locales.Secondary))
	if err != nil {
		return e.typeFailure(tr, logger, fmt.Errorf("listing secondary target items: %w", err))
	}

	index := BuildIndex(primaryItems, itemSlug)
	for _, d := range index.Duplicates() {
		logger.Warn("duplicate natural key in target",
			"natural_key", d.NaturalKey,
			"kept_id", d.KeptID,
			"extra_id", d.ExtraID)
	}
	result.Duplicates = append(result.Duplicates, index.Duplicates()...)

	docs, err := e.source.Documents(ctx, spec.sourceType)
	if err != nil {
		return e.typeFailure(tr, logger, fmt.Errorf("fetching source documents: %w", err))
	}
	logger.Info("fetched source documents",
		"count", len(docs),
		"target_items", len(primaryItems))

	for _, doc := range docs {
		if name := spec.displayName(doc); name != "" {
			e.names[doc.ID] = name
		}
	}

	var mu gosync.Mutex
	if err := e.ensureAssets(ctx, spec, docs, tr, &mu, logger); err != nil {
		return err
	}

	mc := e.mapContext()

	primaryByID := itemsByID(primaryItems)
	secondaryByID := itemsByID(secondaryItems)

	var toCreate, toUpdate []mapped
	for _, doc := range docs {
		key := spec.naturalKey(doc, mc)
		if key == "" {
			tr.Failed++
			tr.Errors = append(tr.Errors, fmt.Errorf("document %s has no usable natural key", doc.ID))
			logger.Error("skipping document without natural key", "source_id", doc.ID)
			continue
		}

		primary, secondary, unresolved := spec.mapFields(doc, key, mc)
		tr.Unresolved += len(unresolved)
		for _, u := range unresolved {
			logger.Warn("unresolved reference",
				"source_id", u.SourceID,
				"field", u.Field,
				"ref_id", u.RefID)
		}

		m := mapped{
			key:       key,
			primary:   primary,
			secondary: secondary,
			sourceID:  doc.ID,
		}

		if targetID, ok := index.Resolve(key); ok {
			m.targetID = targetID
			e.refIndex[doc.ID] = targetID
			toUpdate = append(toUpdate, m)
		} else {
			toCreate = append(toCreate, m)
		}
	}

	if err := e.createBatches(ctx, collection, index, toCreate, tr, &mu, logger); err != nil {
		return err
	}
	if err := e.updateChanged(ctx, collection, toUpdate, primaryByID, secondaryByID, tr, &mu, logger); err != nil {
		return err
	}

	logger.Info("entity type synced",
		"created", tr.Created,
		"updated", tr.Updated,
		"skipped", tr.Skipped,
		"failed", tr.Failed,
		"unresolved", tr.Unresolved)

	return nil
}

// ensureAssets migrates every asset the documents reference, with bounded
// parallelism. A failed asset is logged and recorded; the referencing field
// is simply omitted when the document is mapped, so one bad binary never
// sinks the document, let alone the type.
func (e *Engine) ensureAssets(
	ctx context.Context,
	spec typeSpec,
	docs []sanity.Document,
	tr *TypeResult,
	mu *gosync.Mutex,
	logger *slog.Logger,
) error {
	seen := make(map[string]bool)
	var ids []string
	for _, doc := range docs {
		for _, id := range spec.assetRefs(doc) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := e.assets.ensure(gctx, id); err != nil {
				if transport.IsFatal(err) {
					return err
				}
				mu.Lock()
				tr.AssetsFailed++
				tr.Errors = append(tr.Errors, err)
				mu.Unlock()
				logger.Error("asset migration failed", "source_asset_id", id, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// createBatches creates new items in bounded batches. Creation materialises
// both locale variants in one request, carrying primary fields only; the
// secondary locale content follows as a locale-scoped patch, never through
// an unscoped write. A failing batch falls back to per-item creation so one
// bad record cannot take down its batchmates.
func (e *Engine) createBatches(
	ctx context.Context,
	collection string,
	index *Index,
	toCreate []mapped,
	tr *TypeResult,
	mu *gosync.Mutex,
	logger *slog.Logger,
) error {
	locales := []webflow.Locale{
		webflow.Locale(e.locales.Primary),
		webflow.Locale(e.locales.Secondary),
	}

	for _, batch := range chunk(toCreate, e.batchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}

		fields := make([]webflow.FieldData, len(batch))
		for i, m := range batch {
			fields[i] = m.primary
		}

		var created []mapped
		items, err := e.target.CreateItems(ctx, collection, locales, fields)
		if err != nil {
			if isAuthError(err) {
				return err
			}
			logger.Warn("batch create failed, retrying per item", "size", len(batch), "error", err)
			created = e.createOneByOne(ctx, collection, locales, batch, tr, logger)
			if err := ctx.Err(); err != nil {
				return err
			}
		} else {
			created = batch
			for i, item := range items {
				created[i].targetID = item.ID
			}
		}

		var secondaryPatches []webflow.ItemUpdate
		for _, m := range created {
			index.Register(m.key, m.targetID)
			e.refIndex[m.sourceID] = m.targetID
			tr.Created++
			if len(m.secondary) > 0 {
				secondaryPatches = append(secondaryPatches, webflow.ItemUpdate{
					FieldData: m.secondary,
					ID:        m.targetID,
				})
			}
		}

		if err := e.patchBatches(ctx, collection, webflow.Locale(e.locales.Secondary), secondaryPatches, tr, nil, mu, logger); err != nil {
			return err
		}
	}

	return nil
}

// createOneByOne retries a failed create batch item by item and returns the
// records that were created.
func (e *Engine) createOneByOne(
	ctx context.Context,
	collection string,
	locales []webflow.Locale,
	batch []mapped,
	tr *TypeResult,
	logger *slog.Logger,
) []mapped {
	var created []mapped
	for _, m := range batch {
		if ctx.Err() != nil {
			return created
		}
		items, err := e.target.CreateItems(ctx, collection, locales, []webflow.FieldData{m.primary})
		if err != nil {
			tr.Failed++
			tr.Errors = append(tr.Errors, fmt.Errorf("creating %s: %w", m.key, err))
			logger.Error("failed to create item",
				"natural_key", m.key,
				"source_id", m.sourceID,
				"error", err)
			continue
		}
		m.targetID = items[0].ID
		created = append(created, m)
	}
	return created
}

// updateChanged patches existing items whose mapped fields differ from the
// target. Unchanged records are counted as skipped, which is what makes a
// re-run over unchanged source content produce zero writes.
func (e *Engine) updateChanged(
	ctx context.Context,
	collection string,
	toUpdate []mapped,
	primaryByID map[string]webflow.Item,
	secondaryByID map[string]webflow.Item,
	tr *TypeResult,
	mu *gosync.Mutex,
	logger *slog.Logger,
) error {
	var primaryPatches, secondaryPatches []webflow.ItemUpdate
	failed := make(map[string]bool)

	for _, m := range toUpdate {
		primaryEqual := fieldsMatch(primaryByID[m.targetID].FieldData, m.primary)
		secondaryEqual := len(m.secondary) == 0 ||
			fieldsMatch(secondaryByID[m.targetID].FieldData, m.secondary)

		if primaryEqual && secondaryEqual {
			tr.Skipped++
			continue
		}

		tr.Updated++
		if !primaryEqual {
			primaryPatches = append(primaryPatches, webflow.ItemUpdate{FieldData: m.primary, ID: m.targetID})
		}
		if !secondaryEqual {
			secondaryPatches = append(secondaryPatches, webflow.ItemUpdate{FieldData: m.secondary, ID: m.targetID})
		}
	}

	if err := e.patchBatches(ctx, collection, webflow.Locale(e.locales.Primary), primaryPatches, tr, failed, mu, logger); err != nil {
		return err
	}
	return e.patchBatches(ctx, collection, webflow.Locale(e.locales.Secondary), secondaryPatches, tr, failed, mu, logger)
}

// patchBatches dispatches locale-scoped update batches with bounded
// parallelism. A failing batch falls back to per-item patches; per-item
// failures are recorded and, when the failed set is tracked, converted from
// updated to failed exactly once per item.
func (e *Engine) patchBatches(
	ctx context.Context,
	collection string,
	locale webflow.Locale,
	patches []webflow.ItemUpdate,
	tr *TypeResult,
	failed map[string]bool,
	mu *gosync.Mutex,
	logger *slog.Logger,
) error {
	if len(patches) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, batch := range chunk(patches, e.batchSize) {
		g.Go(func() error {
			err := e.target.UpdateItems(gctx, collection, locale, batch)
			if err == nil {
				return nil
			}
			if isAuthError(err) {
				return err
			}

			logger.Warn("batch update failed, retrying per item",
				"locale", locale,
				"size", len(batch),
				"error", err)

			for _, u := range batch {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if err := e.target.UpdateItems(gctx, collection, locale, []webflow.ItemUpdate{u}); err != nil {
					if isAuthError(err) {
						return err
					}
					mu.Lock()
					tr.Errors = append(tr.Errors, fmt.Errorf("updating item %s: %w", u.ID, err))
					if failed != nil && !failed[u.ID] {
						failed[u.ID] = true
						tr.Failed++
						tr.Updated--
					}
					mu.Unlock()
					logger.Error("failed to update item",
						"item_id", u.ID,
						"locale", locale,
						"error", err)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// typeFailure records a type-level error. Fatal client errors propagate to
// abort the run; anything else lets the run move on to the next type.
func (e *Engine) typeFailure(tr *TypeResult, logger *slog.Logger, err error) error {
	if transport.IsFatal(err) {
		return err
	}
	tr.Errors = append(tr.Errors, err)
	logger.Error("entity type failed", "error", err)
	return nil
}

// logSummary logs the final run summary, covering whatever completed.
func (e *Engine) logSummary(result *Result, logger *slog.Logger) {
	for _, t := range SyncOrder() {
		tr, ok := result.Types[t]
		if !ok {
			continue
		}
		logger.Info("sync summary",
			"type", string(t),
			"created", tr.Created,
			"updated", tr.Updated,
			"skipped", tr.Skipped,
			"failed", tr.Failed,
			"assets_failed", tr.AssetsFailed,
			"unresolved", tr.Unresolved,
			"errors", len(tr.Errors))
	}
	logger.Info("sync completed",
		"failed", result.Failed(),
		"unresolved", result.Unresolved(),
		"duplicates", len(result.Duplicates),
		"references_updated", result.ReferencesUpdated,
		"dry_run", result.DryRun)
}

// collectionFor maps an entity type to its target collection ID.
func (e *Engine) collectionFor(t EntityType) string {
	switch t {
	case EntityArtwork:
		return e.collections.Artworks
	case EntityCategory:
		return e.collections.Categories
	case EntityCreator:
		return e.collections.Creators
	case EntityFinish:
		return e.collections.Finishes
	case EntityLocation:
		return e.collections.Locations
	case EntityMaterial:
		return e.collections.Materials
	case EntityMedium:
		return e.collections.Mediums
	}
	return ""
}

// isAuthError reports whether the error is a fatal credential or permission
// failure, which must abort the run instead of triggering per-item retries.
func isAuthError(err error) bool {
	var apiErr *transport.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 401 || apiErr.StatusCode == 403
}

// itemSlug returns the natural key of a target item.
func itemSlug(item webflow.Item) string {
	slug, _ := item.FieldData["slug"].(string)
	return slug
}

// itemsByID indexes items by their shared item ID.
func itemsByID(items []webflow.Item) map[string]webflow.Item {
	byID := make(map[string]webflow.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	return byID
}

// fieldsMatch reports whether every field in want is present in existing
// with an equal value. Values are compared through their JSON encoding, the
// form they take on the wire in both systems.
func fieldsMatch(existing webflow.FieldData, want webflow.FieldData) bool {
	for key, value := range want {
		current, ok := existing[key]
		if !ok {
			return false
		}
		if !jsonEqual(current, value) {
			return false
		}
	}
	return true
}

// jsonEqual compares two values through their canonical JSON encoding.
func jsonEqual(a any, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

// chunk splits a slice into batches of at most size elements.
func chunk[T any](s []T, size int) [][]T {
	var batches [][]T
	for len(s) > size {
		batches = append(batches, s[:size])
		s = s[size:]
	}
	if len(s) > 0 {
		batches = append(batches, s)
	}
	return batches
}
