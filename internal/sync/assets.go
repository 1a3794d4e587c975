package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/galeriehaus/artbridge/internal/assetcache"
)

// assetSyncer migrates source binaries to the target asset library, using
// the persistent cache to guarantee each source asset is uploaded at most
// once across any number of runs.
type assetSyncer struct {
	cache  *assetcache.Cache
	logger *slog.Logger
	source SourceClient
	target TargetClient
}

// ensure returns the target mapping for a source asset, uploading the binary
// only on a cache miss. The mapping is recorded in the cache immediately
// after the upload succeeds, before anything else touches the result, so a
// failure later in the run cannot cause a second upload on retry.
func (a *assetSyncer) ensure(ctx context.Context, sourceAssetID string) (assetcache.Mapping, error) {
	if m, ok := a.cache.Lookup(sourceAssetID); ok {
		return m, nil
	}

	doc, err := a.source.AssetDocument(ctx, sourceAssetID)
	if err != nil {
		return assetcache.Mapping{}, fmt.Errorf("resolving asset %s: %w", sourceAssetID, err)
	}

	data, err := a.source.Download(ctx, doc.URL)
	if err != nil {
		return assetcache.Mapping{}, fmt.Errorf("downloading asset %s: %w", sourceAssetID, err)
	}

	asset, err := a.target.UploadAsset(ctx, doc.OriginalFilename, data)
	if err != nil {
		return assetcache.Mapping{}, fmt.Errorf("uploading asset %s: %w", sourceAssetID, err)
	}

	m := assetcache.Mapping{
		TargetAssetID: asset.ID,
		UploadedAt:    time.Now().UTC(),
		URL:           asset.HostedURL,
	}
	a.cache.Record(sourceAssetID, m)

	a.logger.Info("uploaded asset",
		"source_asset_id", sourceAssetID,
		"target_asset_id", asset.ID,
		"file_name", doc.OriginalFilename,
		"bytes", len(data))

	return m, nil
}
