// Package assetcache tracks which source assets have already been uploaded
// to the target CMS. The cache is the single source of truth for "has this
// binary been migrated": an asset whose source ID is present is never
// uploaded again, across any number of runs.
package assetcache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mapping records a completed migration of one source asset.
type Mapping struct {
	// TargetAssetID is the asset ID in the target CMS.
	TargetAssetID string `json:"targetAssetId"`

	// UploadedAt is when the upload completed.
	UploadedAt time.Time `json:"uploadedAt"`

	// URL is the target CDN URL of the asset.
	URL string `json:"url"`
}

// Store persists asset mappings between runs.
type Store interface {
	// Load reads all persisted mappings. A store that cannot parse its
	// persisted state must return a CorruptError rather than partial data.
	Load(ctx context.Context) (map[string]Mapping, error)

	// Save persists the cache. all is the complete mapping set, dirty the
	// entries added or corrected since the last save; stores replacing a
	// whole document use all, incremental stores may write only dirty.
	Save(ctx context.Context, all map[string]Mapping, dirty map[string]Mapping) error
}

// CorruptError indicates persisted cache state that cannot be parsed.
// Proceeding without the cache would re-upload every asset, so this is fatal
// for a run.
type CorruptError struct {
	// Err is the underlying parse error.
	Err error

	// Source describes the persisted location.
	Source string
}

// Error returns the error message.
func (e *CorruptError) Error() string {
	return fmt.Sprintf("asset cache at %s is corrupt: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *CorruptError) Unwrap() error {
	return e.Err
}

// Cache is the in-memory view of the asset mapping store. It is safe for
// concurrent use by upload workers.
type Cache struct {
	dirty   map[string]Mapping
	entries map[string]Mapping
	mu      sync.Mutex
	store   Store
}

// Open loads the full persisted state into memory. A corrupt store surfaces
// immediately; no partial cache is ever used.
func Open(ctx context.Context, store Store) (*Cache, error) {
	entries, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading asset cache: %w", err)
	}
	if entries == nil {
		entries = make(map[string]Mapping)
	}

	return &Cache{
		dirty:   make(map[string]Mapping),
		entries: entries,
		store:   store,
	}, nil
}

// Lookup returns the mapping for a source asset ID, if present.
func (c *Cache) Lookup(sourceAssetID string) (Mapping, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.entries[sourceAssetID]
	return m, ok
}

// Record stores a mapping in memory and marks it dirty. Callers record
// immediately after a successful upload, before any further work, so a later
// failure cannot cause the asset to be uploaded twice.
func (c *Cache) Record(sourceAssetID string, m Mapping) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[sourceAssetID] = m
	c.dirty[sourceAssetID] = m
}

// Len returns the number of cached mappings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Dirty returns the number of unsaved mappings.
func (c *Cache) Dirty() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.dirty)
}

// Flush persists the cache. A no-op when nothing changed.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.dirty) == 0 {
		return nil
	}

	all := make(map[string]Mapping, len(c.entries))
	for k, v := range c.entries {
		all[k] = v
	}
	dirty := make(map[string]Mapping, len(c.dirty))
	for k, v := range c.dirty {
		dirty[k] = v
	}

	if err := c.store.Save(ctx, all, dirty); err != nil {
		return fmt.Errorf("saving asset cache: %w", err)
	}

	c.dirty = make(map[string]Mapping)
	return nil
}
