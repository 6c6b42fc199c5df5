package repo

import (
	"context"
	"encoding/json"

	"github.com/aq2208/pixelmart-api/internal/adapter/docstore"
	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/usecase"
)

type wishlistRecord struct {
	ID            string `json:"id"`
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	Title         string `json:"title"`
	Price         money  `json:"price"`
	OriginalPrice money  `json:"originalPrice"`
	Image         string `json:"image"`
	ImageURL      string `json:"imageUrl"`
	Category      string `json:"category"`
}

// normalizeWishlistItem keeps both identity fields; the path names the item id.
func normalizeWishlistItem(path string, r wishlistRecord) domain.WishlistItem {
	return domain.WishlistItem{
		ID:            firstNonEmpty(r.ID, docstore.Base(path)),
		ProductID:     r.ProductID,
		Name:          firstNonEmpty(r.Name, r.Title),
		UnitPrice:     r.Price.Value,
		OriginalPrice: r.OriginalPrice.ptr(),
		ImageURL:      firstNonEmpty(r.Image, r.ImageURL),
		Category:      r.Category,
	}
}

func wishlistPrefix(userID string) string { return docstore.Path("users", userID, "wishlist") + "/" }

type DocWishlistRepo struct {
	store docstore.Store
}

func NewDocWishlistRepo(store docstore.Store) *DocWishlistRepo { return &DocWishlistRepo{store: store} }

func (r *DocWishlistRepo) List(ctx context.Context, userID string) ([]domain.WishlistItem, error) {
	entries, err := r.store.List(ctx, wishlistPrefix(userID))
	if err != nil {
		return nil, err
	}
	out := make([]domain.WishlistItem, 0, len(entries))
	for _, e := range entries {
		var rec wishlistRecord
		if err := json.Unmarshal(e.Data, &rec); err != nil {
			continue
		}
		out = append(out, normalizeWishlistItem(e.Path, rec))
	}
	return out, nil
}

func (r *DocWishlistRepo) Put(ctx context.Context, userID string, item domain.WishlistItem) error {
	b, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, wishlistPrefix(userID)+item.ID, b)
}

func (r *DocWishlistRepo) Delete(ctx context.Context, userID, itemID string) error {
	return r.store.Delete(ctx, wishlistPrefix(userID)+itemID)
}

func (r *DocWishlistRepo) Clear(ctx context.Context, userID string) error {
	return r.store.DeletePrefix(ctx, wishlistPrefix(userID))
}

func (r *DocWishlistRepo) Watch(ctx context.Context, userID string) (<-chan struct{}, func(), error) {
	return watch(ctx, r.store, wishlistPrefix(userID))
}

var (
	_ usecase.WishlistRepo      = (*DocWishlistRepo)(nil)
	_ usecase.CollectionWatcher = (*DocWishlistRepo)(nil)
)
