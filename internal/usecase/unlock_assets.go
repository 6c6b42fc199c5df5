package usecase

import (
	"context"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/logging"
)

// AssetUnlocker attaches the current download reference of each purchased product.
type AssetUnlocker struct {
	catalog CatalogRepo
	sealer  Sealer // optional
}

func NewAssetUnlocker(catalog CatalogRepo, sealer Sealer) *AssetUnlocker {
	return &AssetUnlocker{catalog: catalog, sealer: sealer}
}

// Unlock re-reads references from the catalog rather than trusting the snapshot.
// A failed read leaves that item without a reference; it never fails the order.
func (u *AssetUnlocker) Unlock(ctx context.Context, items []domain.LineItem) []domain.LineItem {
	log := logging.FromCtx(ctx)
	out := make([]domain.LineItem, len(items))
	for i, it := range items {
		it.DownloadRef = nil
		out[i] = it

		p, err := u.catalog.GetProduct(ctx, it.ProductID)
		if err != nil {
			log.Warn("download reference unavailable", "product_id", it.ProductID, "err", err)
			continue
		}
		if p.DownloadRef == "" {
			continue
		}
		ref := p.DownloadRef
		if u.sealer != nil {
			if ref, err = u.sealer.Seal(ref); err != nil {
				log.Warn("could not seal download reference", "product_id", it.ProductID, "err", err)
				continue
			}
		}
		out[i].DownloadRef = &ref
	}
	return out
}
