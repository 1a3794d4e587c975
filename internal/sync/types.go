// Package sync provides orchestration for syncing catalog content from the
// Sanity Content Lake to the Webflow CMS.
package sync

import (
	"context"
	"time"

	"github.com/galeriehaus/artbridge/internal/sanity"
	"github.com/galeriehaus/artbridge/internal/webflow"
)

// EntityType identifies one synced entity type.
type EntityType string

const (
	// EntityArtwork is an artwork.
	EntityArtwork EntityType = "artwork"

	// EntityCategory is a taxonomy category.
	EntityCategory EntityType = "category"

	// EntityCreator is a creator (artist or designer).
	EntityCreator EntityType = "creator"

	// EntityFinish is a taxonomy finish.
	EntityFinish EntityType = "finish"

	// EntityLocation is a gallery or exhibition location.
	EntityLocation EntityType = "location"

	// EntityMaterial is a taxonomy material.
	EntityMaterial EntityType = "material"

	// EntityMedium is a taxonomy medium.
	EntityMedium EntityType = "medium"
)

// SyncOrder returns the entity types in dependency order. Artworks reference
// creators, locations and taxonomy entities, so those sync first.
func SyncOrder() []EntityType {
	return []EntityType{
		EntityMaterial,
		EntityFinish,
		EntityMedium,
		EntityCategory,
		EntityLocation,
		EntityCreator,
		EntityArtwork,
	}
}

// SourceClient defines the Sanity operations required by the sync engine.
type SourceClient interface {
	// AssetDocument fetches the asset document for the given asset ID.
	AssetDocument(ctx context.Context, assetID string) (*sanity.AssetDocument, error)

	// Documents fetches all documents of the given type.
	Documents(ctx context.Context, docType string) ([]sanity.Document, error)

	// Download fetches the binary content of an asset from its CDN URL.
	Download(ctx context.Context, assetURL string) ([]byte, error)
}

// TargetClient defines the Webflow operations required by the sync engine.
type TargetClient interface {
	// CreateItems creates items across the given locale variants in one
	// request and returns them in input order.
	CreateItems(
		ctx context.Context,
		collectionID string,
		locales []webflow.Locale,
		fields []webflow.FieldData,
	) ([]webflow.Item, error)

	// DeleteItem deletes an item across all locale variants.
	DeleteItem(ctx context.Context, collectionID string, itemID string) error

	// ListAssets fetches all assets of the site.
	ListAssets(ctx context.Context) ([]webflow.Asset, error)

	// ListItems fetches all items of a collection in the given locale.
	ListItems(ctx context.Context, collectionID string, locale webflow.Locale) ([]webflow.Item, error)

	// UpdateItems patches items in a collection, scoped to exactly one locale.
	UpdateItems(
		ctx context.Context,
		collectionID string,
		locale webflow.Locale,
		updates []webflow.ItemUpdate,
	) error

	// UploadAsset uploads a binary to the site's asset library.
	UploadAsset(ctx context.Context, fileName string, data []byte) (*webflow.Asset, error)
}

// StateStore manages persistent state for the sync process.
type StateStore interface {
	// LastSyncTime returns the timestamp of the last successful sync.
	LastSyncTime(ctx context.Context) (time.Time, error)

	// SetLastSyncTime updates the last sync timestamp.
	SetLastSyncTime(ctx context.Context, t time.Time) error
}

// UnresolvedReference records a reference that could not be mapped to a
// target item ID. The field is omitted from the write rather than nulled, so
// a previously valid reference is never erased by a resolution gap.
type UnresolvedReference struct {
	// Field is the field the reference appears in.
	Field string

	// RefID is the referenced source document ID.
	RefID string

	// SourceID is the owning source document ID.
	SourceID string

	// Type is the owning entity type.
	Type EntityType
}

// Duplicate flags two target items sharing one natural key. The sync keeps
// the earliest-created item; the extra is left for the dedupe maintenance
// pass rather than merged inline.
type Duplicate struct {
	// ExtraID is the item flagged for the dedupe pass.
	ExtraID string

	// KeptID is the item the index resolves to.
	KeptID string

	// NaturalKey is the shared key.
	NaturalKey string
}

// TypeResult contains the outcome of syncing one entity type.
type TypeResult struct {
	// AssetsFailed is the number of asset migrations that failed; the
	// referencing image fields were omitted from otherwise synced records.
	AssetsFailed int

	// Created is the number of new items created.
	Created int

	// Errors contains the per-item failures for this type.
	Errors []error

	// Failed is the number of records that could not be written.
	Failed int

	// Skipped is the number of records left untouched because the mapped
	// fields matched the target.
	Skipped int

	// Unresolved is the number of references that could not be resolved.
	Unresolved int

	// Updated is the number of existing items patched.
	Updated int
}

// Result contains the outcome of a sync run.
type Result struct {
	// DryRun indicates this was a dry-run (no writes to the target).
	DryRun bool

	// Duplicates lists target items flagged for the dedupe pass.
	Duplicates []Duplicate

	// ReferencesUpdated is the number of owners patched by the reference
	// resolution pass.
	ReferencesUpdated int

	// RunID identifies this run in log output.
	RunID string

	// Types holds the per-type outcomes, keyed by entity type.
	Types map[EntityType]*TypeResult
}

// Failed reports the total number of failed records and failed asset
// migrations across all types.
func (r *Result) Failed() int {
	var n int
	for _, tr := range r.Types {
		n += tr.Failed + tr.AssetsFailed
	}
	return n
}

// Unresolved reports the total number of unresolved references across all
// types.
func (r *Result) Unresolved() int {
	var n int
	for _, tr := range r.Types {
		n += tr.Unresolved
	}
	return n
}
