package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/galeriehaus/artbridge/internal/config"
	"github.com/galeriehaus/artbridge/internal/webflow"
)

func newTestMaintenance(t *testing.T, target TargetClient, mods ...func(*MaintenanceConfig)) *Maintenance {
	t.Helper()

	cfg := MaintenanceConfig{
		Collections: testCollections(),
		Locales:     config.Locales{Primary: string(testPrimary), Secondary: string(testSecondary)},
		Logger:      testLogger(),
		Target:      target,
	}
	for _, mod := range mods {
		mod(&cfg)
	}

	m, err := NewMaintenance(cfg)
	require.NoError(t, err)
	return m
}

func TestDedupeDeletesLaterDuplicates(t *testing.T) {
	t.Parallel()

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	target := newFakeTarget()
	target.seed("col-materials", "wf-old", older, map[webflow.Locale]webflow.FieldData{
		testPrimary: {"name": "Walnut", "slug": "walnut"},
	})
	target.seed("col-materials", "wf-new", older.Add(time.Hour), map[webflow.Locale]webflow.FieldData{
		testPrimary: {"name": "Walnut", "slug": "walnut"},
	})
	target.seed("col-materials", "wf-oak", older, map[webflow.Locale]webflow.FieldData{
		testPrimary: {"name": "Oak", "slug": "oak"},
	})

	m := newTestMaintenance(t, target)
	result, err := m.Dedupe(context.Background(), EntityMaterial)
	require.NoError(t, err)

	require.Equal(t, 1, result.Groups)
	require.Equal(t, 1, result.Deleted)
	require.Empty(t, result.Errors)
	require.Equal(t, []string{"wf-new"}, target.deletes)

	// The survivor and the unrelated item are untouched.
	id, ok := target.findBySlug("col-materials", "walnut")
	require.True(t, ok)
	require.Equal(t, "wf-old", id)
	_, ok = target.findBySlug("col-materials", "oak")
	require.True(t, ok)
}

func TestDedupeDryRunDeletesNothing(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	target := newFakeTarget()
	target.seed("col-materials", "wf-1", created, map[webflow.Locale]webflow.FieldData{
		testPrimary: {"slug": "walnut"},
	})
	target.seed("col-materials", "wf-2", created.Add(time.Hour), map[webflow.Locale]webflow.FieldData{
		testPrimary: {"slug": "walnut"},
	})

	m := newTestMaintenance(t, target, func(cfg *MaintenanceConfig) { cfg.DryRun = true })
	result, err := m.Dedupe(context.Background(), EntityMaterial)
	require.NoError(t, err)

	require.Equal(t, 1, result.Deleted)
	require.Empty(t, target.deletes)
}

func TestDedupeUnknownType(t *testing.T) {
	t.Parallel()

	m := newTestMaintenance(t, newFakeTarget())
	_, err := m.Dedupe(context.Background(), EntityType("poster"))
	require.ErrorContains(t, err, `unknown entity type "poster"`)
}

func TestRepairArtworkImagesFromGallery(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	gallery := []any{
		map[string]any{"fileId": "wf-a-1", "url": "https://cdn.webflow.test/g1.jpg"},
		map[string]any{"fileId": "wf-a-2", "url": "https://cdn.webflow.test/g2.jpg"},
	}

	target := newFakeTarget()
	target.seed("col-artworks", "wf-broken", created, map[webflow.Locale]webflow.FieldData{
		testPrimary: {"name": "Side Table", "slug": "side-table", "gallery": gallery},
	})
	target.seed("col-artworks", "wf-intact", created, map[webflow.Locale]webflow.FieldData{
		testPrimary: {
			"name":       "Lounge Chair",
			"slug":       "lounge-chair",
			"main-image": map[string]any{"fileId": "wf-a-9", "url": "https://cdn.webflow.test/lc.jpg"},
		},
	})

	m := newTestMaintenance(t, target)
	result, err := m.RepairArtworkImages(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, result.Repaired)
	require.Zero(t, result.Unmatched)

	fields := target.fields("col-artworks", testPrimary, "wf-broken")
	require.Equal(t, gallery[0], fields["main-image"])

	intact := target.fields("col-artworks", testPrimary, "wf-intact")
	require.Equal(t, "wf-a-9", intact["main-image"].(map[string]any)["fileId"])
}

func TestRepairArtworkImagesFuzzyMatch(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	target := newFakeTarget()
	target.seed("col-artworks", "wf-broken", created, map[webflow.Locale]webflow.FieldData{
		testPrimary: {"name": "Walnut Side Table", "slug": "walnut-side-table"},
	})
	target.assets = []webflow.Asset{
		{HostedURL: "https://cdn.webflow.test/portrait.jpg", ID: "wf-a-1", OriginalFileName: "mueller-portrait.jpg"},
		{HostedURL: "https://cdn.webflow.test/wst.jpg", ID: "wf-a-2", OriginalFileName: "walnut-side-table-2023.jpg"},
	}

	m := newTestMaintenance(t, target)
	result, err := m.RepairArtworkImages(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, result.Repaired)
	fields := target.fields("col-artworks", testPrimary, "wf-broken")
	require.Equal(t, map[string]any{
		"fileId": "wf-a-2",
		"url":    "https://cdn.webflow.test/wst.jpg",
	}, fields["main-image"])
}

func TestRepairArtworkImagesUnmatched(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	target := newFakeTarget()
	target.seed("col-artworks", "wf-broken", created, map[webflow.Locale]webflow.FieldData{
		testPrimary: {"name": "Untitled", "slug": "untitled"},
	})
	target.assets = []webflow.Asset{
		{HostedURL: "https://cdn.webflow.test/x.jpg", ID: "wf-a-1", OriginalFileName: "something-else.jpg"},
	}

	m := newTestMaintenance(t, target)
	result, err := m.RepairArtworkImages(context.Background())
	require.NoError(t, err)

	require.Zero(t, result.Repaired)
	require.Equal(t, 1, result.Unmatched)
}

func TestMatchAssetByNameRequiresTwoTokens(t *testing.T) {
	t.Parallel()

	inventory := []webflow.Asset{
		{ID: "wf-a-1", OriginalFileName: "table-photo.jpg"},
	}

	// A single shared token is not enough evidence.
	require.Nil(t, matchAssetByName("Table", inventory))
	require.Nil(t, matchAssetByName("", inventory))

	inventory = append(inventory, webflow.Asset{ID: "wf-a-2", OriginalFileName: "oak-dining-table.jpg"})
	match := matchAssetByName("Oak Dining Table", inventory)
	require.NotNil(t, match)
	require.Equal(t, "wf-a-2", match.ID)
}
