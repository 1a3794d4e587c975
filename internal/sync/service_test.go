package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/galeriehaus/artbridge/internal/assetcache"
	"github.com/galeriehaus/artbridge/internal/config"
	"github.com/galeriehaus/artbridge/internal/sanity"
	"github.com/galeriehaus/artbridge/internal/transport"
	"github.com/galeriehaus/artbridge/internal/webflow"
)

const (
	testPrimary   = webflow.Locale("loc-en")
	testSecondary = webflow.Locale("loc-de")
)

// fakeSource implements SourceClient backed by in-memory documents.
type fakeSource struct {
	assets map[string]*sanity.AssetDocument
	blobs  map[string][]byte
	docs   map[string][]sanity.Document
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		assets: make(map[string]*sanity.AssetDocument),
		blobs:  make(map[string][]byte),
		docs:   make(map[string][]sanity.Document),
	}
}

// addDoc parses a raw document and stores it under its type.
func (f *fakeSource) addDoc(t *testing.T, raw string) {
	t.Helper()
	doc := parseDoc(t, raw)
	f.docs[doc.Type] = append(f.docs[doc.Type], doc)
}

// addAsset registers an asset document with binary content.
func (f *fakeSource) addAsset(id string, fileName string, data []byte) {
	url := "https://cdn.sanity.test/" + fileName
	f.assets[id] = &sanity.AssetDocument{
		ID:               id,
		MimeType:         "image/jpeg",
		OriginalFilename: fileName,
		URL:              url,
	}
	f.blobs[url] = data
}

func (f *fakeSource) AssetDocument(_ context.Context, assetID string) (*sanity.AssetDocument, error) {
	doc, ok := f.assets[assetID]
	if !ok {
		return nil, fmt.Errorf("asset %s not found", assetID)
	}
	return doc, nil
}

func (f *fakeSource) Documents(_ context.Context, docType string) ([]sanity.Document, error) {
	return f.docs[docType], nil
}

func (f *fakeSource) Download(_ context.Context, assetURL string) ([]byte, error) {
	data, ok := f.blobs[assetURL]
	if !ok {
		return nil, fmt.Errorf("no blob at %s", assetURL)
	}
	return data, nil
}

// fakeTarget implements TargetClient with per-locale in-memory item storage.
type fakeTarget struct {
	assets          []webflow.Asset
	deletes         []string
	failCreateSlugs map[string]bool
	failUpdateIDs   map[string]bool
	items           map[string]map[webflow.Locale]map[string]webflow.FieldData
	itemsCreated    int
	itemsUpdated    int
	listErr         error
	locales         []webflow.Locale
	meta            map[string]webflow.Item
	mu              gosync.Mutex
	nextID          int
	uploads         int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		failCreateSlugs: make(map[string]bool),
		failUpdateIDs:   make(map[string]bool),
		items:           make(map[string]map[webflow.Locale]map[string]webflow.FieldData),
		locales:         []webflow.Locale{testPrimary, testSecondary},
		meta:            make(map[string]webflow.Item),
	}
}

// seed inserts an item directly into the store.
func (f *fakeTarget) seed(collection string, id string, createdOn time.Time, perLocale map[webflow.Locale]webflow.FieldData) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.meta[id] = webflow.Item{CreatedOn: createdOn, ID: id}
	for locale, fields := range perLocale {
		f.localeItems(collection, locale)[id] = cloneFields(fields)
	}
}

// fields returns a copy of an item's field data in one locale.
func (f *fakeTarget) fields(collection string, locale webflow.Locale, id string) webflow.FieldData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneFields(f.localeItems(collection, locale)[id])
}

// findBySlug returns the ID of the item with the given slug, if any.
func (f *fakeTarget) findBySlug(collection string, slug string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, fields := range f.localeItems(collection, testPrimary) {
		if fields["slug"] == slug {
			return id, true
		}
	}
	return "", false
}

func (f *fakeTarget) localeItems(collection string, locale webflow.Locale) map[string]webflow.FieldData {
	byLocale, ok := f.items[collection]
	if !ok {
		byLocale = make(map[webflow.Locale]map[string]webflow.FieldData)
		f.items[collection] = byLocale
	}
	byID, ok := byLocale[locale]
	if !ok {
		byID = make(map[string]webflow.FieldData)
		byLocale[locale] = byID
	}
	return byID
}

func (f *fakeTarget) CreateItems(
	_ context.Context,
	collection string,
	locales []webflow.Locale,
	fields []webflow.FieldData,
) ([]webflow.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, fd := range fields {
		if slug, _ := fd["slug"].(string); f.failCreateSlugs[slug] {
			return nil, &transport.APIError{Body: "validation failed: " + slug, StatusCode: 400}
		}
	}

	items := make([]webflow.Item, 0, len(fields))
	for _, fd := range fields {
		f.nextID++
		id := fmt.Sprintf("wf-%d", f.nextID)
		f.meta[id] = webflow.Item{
			CreatedOn: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(f.nextID) * time.Minute),
			ID:        id,
		}
		for _, locale := range locales {
			f.localeItems(collection, locale)[id] = cloneFields(fd)
		}
		f.itemsCreated++
		items = append(items, webflow.Item{FieldData: cloneFields(fd), ID: id})
	}
	return items, nil
}

func (f *fakeTarget) DeleteItem(_ context.Context, collection string, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deletes = append(f.deletes, itemID)
	for _, locale := range f.locales {
		delete(f.localeItems(collection, locale), itemID)
	}
	delete(f.meta, itemID)
	return nil
}

func (f *fakeTarget) ListAssets(_ context.Context) ([]webflow.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]webflow.Asset(nil), f.assets...), nil
}

func (f *fakeTarget) ListItems(_ context.Context, collection string, locale webflow.Locale) ([]webflow.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}

	var items []webflow.Item
	for id, fields := range f.localeItems(collection, locale) {
		meta := f.meta[id]
		items = append(items, webflow.Item{
			CMSLocaleID: locale,
			CreatedOn:   meta.CreatedOn,
			FieldData:   cloneFields(fields),
			ID:          id,
		})
	}
	return items, nil
}

func (f *fakeTarget) UpdateItems(
	_ context.Context,
	collection string,
	locale webflow.Locale,
	updates []webflow.ItemUpdate,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range updates {
		if f.failUpdateIDs[u.ID] {
			return &transport.APIError{Body: "validation failed: " + u.ID, StatusCode: 400}
		}
		if _, ok := f.localeItems(collection, locale)[u.ID]; !ok {
			return fmt.Errorf("item %s not found", u.ID)
		}
	}

	for _, u := range updates {
		fields := f.localeItems(collection, locale)[u.ID]
		for k, v := range u.FieldData {
			fields[k] = v
		}
		f.itemsUpdated++
	}
	return nil
}

func (f *fakeTarget) UploadAsset(_ context.Context, fileName string, _ []byte) (*webflow.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploads++
	asset := webflow.Asset{
		HostedURL:        "https://cdn.webflow.test/" + fileName,
		ID:               fmt.Sprintf("wf-asset-%d", f.uploads),
		OriginalFileName: fileName,
	}
	f.assets = append(f.assets, asset)
	return &asset, nil
}

func cloneFields(fields webflow.FieldData) webflow.FieldData {
	if fields == nil {
		return nil
	}
	out := make(webflow.FieldData, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// memStore is an in-memory assetcache.Store.
type memStore struct {
	saved map[string]assetcache.Mapping
	saves int
}

func (s *memStore) Load(_ context.Context) (map[string]assetcache.Mapping, error) {
	out := make(map[string]assetcache.Mapping, len(s.saved))
	for k, v := range s.saved {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, all map[string]assetcache.Mapping, _ map[string]assetcache.Mapping) error {
	s.saved = all
	s.saves++
	return nil
}

// fakeState implements StateStore in memory.
type fakeState struct {
	last time.Time
	sets int
}

func (s *fakeState) LastSyncTime(_ context.Context) (time.Time, error) { return s.last, nil }

func (s *fakeState) SetLastSyncTime(_ context.Context, t time.Time) error {
	s.last = t
	s.sets++
	return nil
}

func testCollections() config.Collections {
	return config.Collections{
		Artworks:   "col-artworks",
		Categories: "col-categories",
		Creators:   "col-creators",
		Finishes:   "col-finishes",
		Locations:  "col-locations",
		Materials:  "col-materials",
		Mediums:    "col-mediums",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine wires an engine over the fakes with a fresh in-memory cache.
func newTestEngine(t *testing.T, source SourceClient, target TargetClient, mods ...func(*Config)) (*Engine, *memStore) {
	t.Helper()

	store := &memStore{}
	cache, err := assetcache.Open(context.Background(), store)
	require.NoError(t, err)

	cfg := Config{
		AssetCache:  cache,
		BatchSize:   100,
		Collections: testCollections(),
		Locales:     config.Locales{Primary: string(testPrimary), Secondary: string(testSecondary)},
		Logger:      testLogger(),
		Source:      source,
		StateStore:  &fakeState{},
		Target:      target,
		Workers:     2,
	}
	for _, mod := range mods {
		mod(&cfg)
	}

	engine, err := New(cfg)
	require.NoError(t, err)
	return engine, store
}

// seedCatalog loads a small bilingual catalog: one material, one creator with
// a portrait, one artwork referencing both with a main image.
func seedCatalog(t *testing.T, source *fakeSource) {
	t.Helper()

	source.addDoc(t, `{
		"_id": "mat-1",
		"_type": "material",
		"name": {"en": "Walnut", "de": "Nussbaum"},
		"slug": {"current": "walnut"}
	}`)
	source.addDoc(t, `{
		"_id": "creator-1",
		"_type": "creator",
		"name": "Anna Müller",
		"biography": {
			"en": [{"_type": "block", "children": [{"_type": "span", "text": "Berlin-based designer."}]}],
			"de": [{"_type": "block", "children": [{"_type": "span", "text": "Designerin aus Berlin."}]}]
		}
	}`)
	source.addDoc(t, `{
		"_id": "art-1",
		"_type": "artwork",
		"title": {"en": "Side Table", "de": "Beistelltisch"},
		"year": 2023,
		"creator": {"_ref": "creator-1"},
		"materials": [{"_ref": "mat-1"}],
		"mainImage": {"asset": {"_ref": "image-main"}}
	}`)
	source.addAsset("image-main", "side-table.jpg", []byte("jpeg-bytes"))
}

func TestRunCreatesNewCatalog(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	seedCatalog(t, source)
	target := newFakeTarget()
	engine, _ := newTestEngine(t, source, target)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, result.Types[EntityMaterial].Created)
	require.Equal(t, 1, result.Types[EntityCreator].Created)
	require.Equal(t, 1, result.Types[EntityArtwork].Created)
	require.Zero(t, result.Failed())
	require.Zero(t, result.Unresolved())

	creatorID, ok := target.findBySlug("col-creators", "anna-mueller")
	require.True(t, ok)
	artworkID, ok := target.findBySlug("col-artworks", "anna-mueller_side-table")
	require.True(t, ok)

	artwork := target.fields("col-artworks", testPrimary, artworkID)
	require.Equal(t, creatorID, artwork["creator"])
	matID, ok := target.findBySlug("col-materials", "walnut")
	require.True(t, ok)
	require.Equal(t, []string{matID}, artwork["materials"])
	require.Equal(t, map[string]any{
		"fileId": "wf-asset-1",
		"url":    "https://cdn.webflow.test/side-table.jpg",
	}, artwork["main-image"])

	// Secondary locale carries the German content.
	artworkDE := target.fields("col-artworks", testSecondary, artworkID)
	require.Equal(t, "Beistelltisch", artworkDE["name"])
	materialDE := target.fields("col-materials", testSecondary, matID)
	require.Equal(t, "Nussbaum", materialDE["name"])

	// The back-reference pass linked the creator to its work and materials.
	creator := target.fields("col-creators", testPrimary, creatorID)
	require.Equal(t, []string{artworkID}, creator["works"])
	require.Equal(t, []string{matID}, creator["materials"])

	require.Equal(t, 1, target.uploads)
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	seedCatalog(t, source)
	target := newFakeTarget()
	engine, store := newTestEngine(t, source, target)

	_, err := engine.Run(context.Background())
	require.NoError(t, err)

	createdAfterFirst := target.itemsCreated
	updatedAfterFirst := target.itemsUpdated

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	for entityType, tr := range result.Types {
		require.Zero(t, tr.Created, "type %s created on second run", entityType)
		require.Zero(t, tr.Updated, "type %s updated on second run", entityType)
	}
	require.Equal(t, 1, result.Types[EntityMaterial].Skipped)
	require.Equal(t, 1, result.Types[EntityArtwork].Skipped)

	// No additional writes or uploads happened.
	require.Equal(t, createdAfterFirst, target.itemsCreated)
	require.Equal(t, updatedAfterFirst, target.itemsUpdated)
	require.Equal(t, 1, target.uploads)
	require.Len(t, store.saved, 1)
}

func TestRunAssetUploadedOnceAcrossRuns(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	seedCatalog(t, source)
	target := newFakeTarget()
	engine, store := newTestEngine(t, source, target)

	for range 3 {
		_, err := engine.Run(context.Background())
		require.NoError(t, err)
	}

	require.Equal(t, 1, target.uploads)
	require.Len(t, store.saved, 1)
	require.Contains(t, store.saved, "image-main")
}

func TestRunSecondaryRenameTouchesOnlySecondaryLocale(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	seedCatalog(t, source)
	target := newFakeTarget()
	engine, _ := newTestEngine(t, source, target)

	_, err := engine.Run(context.Background())
	require.NoError(t, err)

	matID, ok := target.findBySlug("col-materials", "walnut")
	require.True(t, ok)
	primaryBefore := target.fields("col-materials", testPrimary, matID)

	// The German name changes between runs.
	source.docs["material"] = nil
	source.addDoc(t, `{
		"_id": "mat-1",
		"_type": "material",
		"name": {"en": "Walnut", "de": "Nussbaumholz"},
		"slug": {"current": "walnut"}
	}`)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Zero(t, result.Types[EntityMaterial].Created)
	require.Equal(t, 1, result.Types[EntityMaterial].Updated)

	require.Equal(t, "Nussbaumholz", target.fields("col-materials", testSecondary, matID)["name"])
	require.Equal(t, primaryBefore, target.fields("col-materials", testPrimary, matID))
}

func TestRunPartialFailureIsolation(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	for i := 1; i <= 3; i++ {
		source.addDoc(t, fmt.Sprintf(`{
			"_id": "mat-%d",
			"_type": "material",
			"name": {"en": "Material %d"},
			"slug": {"current": "material-%d"}
		}`, i, i, i))
	}
	target := newFakeTarget()
	target.failCreateSlugs["material-2"] = true
	engine, _ := newTestEngine(t, source, target)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	tr := result.Types[EntityMaterial]
	require.Equal(t, 2, tr.Created)
	require.Equal(t, 1, tr.Failed)
	require.Len(t, tr.Errors, 1)

	_, ok := target.findBySlug("col-materials", "material-1")
	require.True(t, ok)
	_, ok = target.findBySlug("col-materials", "material-2")
	require.False(t, ok)
	_, ok = target.findBySlug("col-materials", "material-3")
	require.True(t, ok)
}

func TestRunUnresolvedReferenceOmitted(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.addDoc(t, `{
		"_id": "art-1",
		"_type": "artwork",
		"title": {"en": "Orphan"},
		"slug": {"current": "orphan"},
		"creator": {"_ref": "creator-gone"}
	}`)
	target := newFakeTarget()
	engine, _ := newTestEngine(t, source, target)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, result.Types[EntityArtwork].Created)
	require.Equal(t, 1, result.Types[EntityArtwork].Unresolved)

	artworkID, ok := target.findBySlug("col-artworks", "orphan")
	require.True(t, ok)
	_, hasCreator := target.fields("col-artworks", testPrimary, artworkID)["creator"]
	require.False(t, hasCreator)
}

func TestRunCountsFailedAssetMigrations(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.addDoc(t, `{
		"_id": "art-1",
		"_type": "artwork",
		"title": {"en": "Side Table"},
		"slug": {"current": "side-table"},
		"mainImage": {"asset": {"_ref": "image-gone"}}
	}`)
	target := newFakeTarget()
	engine, _ := newTestEngine(t, source, target)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	// The record synced without its image; the failed migration is counted
	// so the run still exits non-zero.
	tr := result.Types[EntityArtwork]
	require.Equal(t, 1, tr.Created)
	require.Zero(t, tr.Failed)
	require.Equal(t, 1, tr.AssetsFailed)
	require.Len(t, tr.Errors, 1)
	require.Equal(t, 1, result.Failed())

	artworkID, ok := target.findBySlug("col-artworks", "side-table")
	require.True(t, ok)
	_, hasImage := target.fields("col-artworks", testPrimary, artworkID)["main-image"]
	require.False(t, hasImage)
}

func TestRunFatalErrorAbortsRemainingTypes(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	seedCatalog(t, source)
	target := newFakeTarget()
	target.listErr = &transport.APIError{Body: "bad token", StatusCode: 401}
	engine, _ := newTestEngine(t, source, target)

	result, err := engine.Run(context.Background())
	require.Error(t, err)

	var apiErr *transport.APIError
	require.ErrorAs(t, err, &apiErr)
	require.True(t, apiErr.Fatal())

	// The summary still covers whatever ran before the abort.
	require.NotNil(t, result)
	require.Len(t, result.Types, 1)
	require.Contains(t, result.Types, EntityMaterial)
}

func TestRunDryRunIssuesNoWrites(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	seedCatalog(t, source)
	target := newFakeTarget()
	state := &fakeState{}
	engine, store := newTestEngine(t, source, target, func(cfg *Config) {
		cfg.DryRun = true
		cfg.StateStore = state
	})

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.True(t, result.DryRun)
	require.Equal(t, 1, result.Types[EntityArtwork].Created)

	require.Zero(t, target.itemsCreated)
	require.Zero(t, target.itemsUpdated)
	require.Zero(t, target.uploads)
	require.Zero(t, store.saves)
	require.Zero(t, state.sets)
}

func TestRunTypeFilter(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	seedCatalog(t, source)
	target := newFakeTarget()
	engine, _ := newTestEngine(t, source, target, func(cfg *Config) {
		cfg.Types = []string{"material"}
	})

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Types, 1)
	require.Equal(t, 1, result.Types[EntityMaterial].Created)

	_, ok := target.findBySlug("col-artworks", "anna-mueller_side-table")
	require.False(t, ok)
}

func TestRunTypeFilterKeepsArtworkKeysStable(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	seedCatalog(t, source)
	target := newFakeTarget()

	full, _ := newTestEngine(t, source, target)
	_, err := full.Run(context.Background())
	require.NoError(t, err)

	// A filtered artwork run shares the asset cache but syncs nothing else.
	filtered, _ := newTestEngine(t, source, target, func(cfg *Config) {
		cfg.AssetCache = full.cache
		cfg.Types = []string{"artwork"}
	})

	result, err := filtered.Run(context.Background())
	require.NoError(t, err)

	tr := result.Types[EntityArtwork]
	require.Zero(t, tr.Created)
	require.Zero(t, tr.Updated)
	require.Equal(t, 1, tr.Skipped)
	require.Zero(t, result.Unresolved())

	// The composite key resolved against the existing item; no slug-only
	// duplicate with a dropped creator reference appeared.
	artworkID, ok := target.findBySlug("col-artworks", "anna-mueller_side-table")
	require.True(t, ok)
	_, ok = target.findBySlug("col-artworks", "side-table")
	require.False(t, ok)

	creatorID, ok := target.findBySlug("col-creators", "anna-mueller")
	require.True(t, ok)
	require.Equal(t, creatorID, target.fields("col-artworks", testPrimary, artworkID)["creator"])

	// The back-reference pass still ran and found nothing to change.
	require.Equal(t, []string{artworkID}, target.fields("col-creators", testPrimary, creatorID)["works"])
	require.Equal(t, 1, target.uploads)
}

func TestRunWritesEmptyBackReferences(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.addDoc(t, `{
		"_id": "creator-1",
		"_type": "creator",
		"name": "Anna Müller"
	}`)
	target := newFakeTarget()
	target.seed("col-creators", "wf-creator-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		map[webflow.Locale]webflow.FieldData{
			testPrimary: {
				"name":  "Anna Müller",
				"slug":  "anna-mueller",
				"works": []string{"wf-stale-artwork"},
			},
			testSecondary: {},
		})
	engine, _ := newTestEngine(t, source, target)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, result.ReferencesUpdated)
	works, ok := target.fields("col-creators", testPrimary, "wf-creator-1")["works"].([]string)
	require.True(t, ok)
	require.Empty(t, works)
}

func TestRunStateStoreUpdatedOnSuccess(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	seedCatalog(t, source)
	target := newFakeTarget()
	state := &fakeState{}
	engine, _ := newTestEngine(t, source, target, func(cfg *Config) {
		cfg.StateStore = state
	})

	_, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, state.sets)
	require.False(t, state.last.IsZero())
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	cache, err := assetcache.Open(context.Background(), &memStore{})
	require.NoError(t, err)

	tests := map[string]struct {
		errMsg string
		mod    func(*Config)
	}{
		"missing source": {
			errMsg: "source client is required",
			mod:    func(c *Config) { c.Source = nil },
		},
		"missing target": {
			errMsg: "target client is required",
			mod:    func(c *Config) { c.Target = nil },
		},
		"missing cache": {
			errMsg: "asset cache is required",
			mod:    func(c *Config) { c.AssetCache = nil },
		},
		"missing locales": {
			errMsg: "locales are required",
			mod:    func(c *Config) { c.Locales = config.Locales{} },
		},
		"oversized batch": {
			errMsg: "batch size",
			mod:    func(c *Config) { c.BatchSize = 500 },
		},
		"unknown type": {
			errMsg: `unknown entity type "paintings"`,
			mod:    func(c *Config) { c.Types = []string{"paintings"} },
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := Config{
				AssetCache:  cache,
				BatchSize:   100,
				Collections: testCollections(),
				Locales:     config.Locales{Primary: string(testPrimary), Secondary: string(testSecondary)},
				Logger:      testLogger(),
				Source:      newFakeSource(),
				StateStore:  &fakeState{},
				Target:      newFakeTarget(),
				Workers:     2,
			}
			tc.mod(&cfg)

			_, err := New(cfg)
			require.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func TestFieldsMatch(t *testing.T) {
	t.Parallel()

	existing := webflow.FieldData{
		"name":      "Walnut",
		"slug":      "walnut",
		"year":      float64(2023),
		"materials": []any{"a", "b"},
		"extra":     "server-side field",
	}

	require.True(t, fieldsMatch(existing, webflow.FieldData{"name": "Walnut", "year": 2023}))
	require.True(t, fieldsMatch(existing, webflow.FieldData{"materials": []string{"a", "b"}}))
	require.False(t, fieldsMatch(existing, webflow.FieldData{"name": "Oak"}))
	require.False(t, fieldsMatch(existing, webflow.FieldData{"missing": "x"}))
}

func TestChunk(t *testing.T) {
	t.Parallel()

	require.Nil(t, chunk([]int{}, 2))
	require.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunk([]int{1, 2, 3, 4, 5}, 2))
	require.Equal(t, [][]int{{1, 2, 3}}, chunk([]int{1, 2, 3}, 3))
}

func TestAssetSyncerRecordsBeforeReturning(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.addAsset("image-1", "photo.jpg", []byte("bytes"))
	target := newFakeTarget()

	cache, err := assetcache.Open(context.Background(), &memStore{})
	require.NoError(t, err)

	syncer := &assetSyncer{cache: cache, logger: testLogger(), source: source, target: target}

	m, err := syncer.ensure(context.Background(), "image-1")
	require.NoError(t, err)
	require.Equal(t, "wf-asset-1", m.TargetAssetID)
	require.Equal(t, 1, cache.Dirty())

	// Second call is a cache hit, no second upload.
	again, err := syncer.ensure(context.Background(), "image-1")
	require.NoError(t, err)
	require.Equal(t, m.TargetAssetID, again.TargetAssetID)
	require.Equal(t, 1, target.uploads)
}

func TestAssetSyncerMissingAsset(t *testing.T) {
	t.Parallel()

	cache, err := assetcache.Open(context.Background(), &memStore{})
	require.NoError(t, err)

	syncer := &assetSyncer{
		cache:  cache,
		logger: testLogger(),
		source: newFakeSource(),
		target: newFakeTarget(),
	}

	_, err = syncer.ensure(context.Background(), "image-gone")
	require.ErrorContains(t, err, "resolving asset image-gone")
	require.Zero(t, cache.Len())
}
