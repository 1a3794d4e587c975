package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/galeriehaus/artbridge/internal/webflow"
)

// dryRunClient wraps a TargetClient and logs write operations instead of
// executing them. Reads pass through so the run exercises the real
// create-vs-update decisions.
type dryRunClient struct {
	client  TargetClient
	counter uint64
	logger  *slog.Logger
}

// newDryRunClient creates a dryRunClient wrapping the given TargetClient.
func newDryRunClient(client TargetClient, logger *slog.Logger) *dryRunClient {
	return &dryRunClient{
		client: client,
		logger: logger,
	}
}

// CreateItems logs what would be created and returns items with fake IDs
// aligned to the input order.
func (d *dryRunClient) CreateItems(
	ctx context.Context,
	collectionID string,
	locales []webflow.Locale,
	fields []webflow.FieldData,
) ([]webflow.Item, error) {
	items := make([]webflow.Item, 0, len(fields))
	for _, f := range fields {
		fakeID := d.nextFakeID("item")
		d.logger.Info("[DRY-RUN] would create item",
			"fake_id", fakeID,
			"collection_id", collectionID,
			"locales", len(locales),
			"slug", f["slug"])
		items = append(items, webflow.Item{FieldData: f, ID: fakeID})
	}
	return items, nil
}

// DeleteItem logs what would be deleted.
func (d *dryRunClient) DeleteItem(ctx context.Context, collectionID string, itemID string) error {
	d.logger.Info("[DRY-RUN] would delete item",
		"collection_id", collectionID,
		"item_id", itemID)
	return nil
}

// ListAssets delegates to the real client.
func (d *dryRunClient) ListAssets(ctx context.Context) ([]webflow.Asset, error) {
	return d.client.ListAssets(ctx)
}

// ListItems delegates to the real client.
func (d *dryRunClient) ListItems(
	ctx context.Context,
	collectionID string,
	locale webflow.Locale,
) ([]webflow.Item, error) {
	return d.client.ListItems(ctx, collectionID, locale)
}

// UpdateItems logs what would be patched.
func (d *dryRunClient) UpdateItems(
	ctx context.Context,
	collectionID string,
	locale webflow.Locale,
	updates []webflow.ItemUpdate,
) error {
	for _, u := range updates {
		d.logger.Info("[DRY-RUN] would update item",
			"collection_id", collectionID,
			"item_id", u.ID,
			"locale", locale,
			"fields", len(u.FieldData))
	}
	return nil
}

// UploadAsset logs what would be uploaded and returns a fake asset.
func (d *dryRunClient) UploadAsset(ctx context.Context, fileName string, data []byte) (*webflow.Asset, error) {
	fakeID := d.nextFakeID("asset")
	d.logger.Info("[DRY-RUN] would upload asset",
		"fake_id", fakeID,
		"file_name", fileName,
		"bytes", len(data))
	return &webflow.Asset{
		HostedURL:        "https://dry-run.invalid/" + fileName,
		ID:               fakeID,
		OriginalFileName: fileName,
	}, nil
}

// nextFakeID generates a unique fake ID for dry-run operations.
func (d *dryRunClient) nextFakeID(prefix string) string {
	n := atomic.AddUint64(&d.counter, 1)
	return fmt.Sprintf("dry-run-%s-%d", prefix, n)
}
