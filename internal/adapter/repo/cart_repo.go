package repo

import (
	"context"
	"encoding/json"

	"github.com/aq2208/pixelmart-api/internal/adapter/docstore"
	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/usecase"
)

type cartRecord struct {
	ProductID     string `json:"productId"`
	ID            string `json:"id"`
	Name          string `json:"name"`
	Title         string `json:"title"`
	Price         money  `json:"price"`
	UnitPrice     money  `json:"unitPrice"`
	OriginalPrice money  `json:"originalPrice"`
	Image         string `json:"image"`
	ImageURL      string `json:"imageUrl"`
	Category      string `json:"category"`
	Quantity      count  `json:"quantity"`
}

// normalizeCartItem keys the item by its path. A missing quantity means 1.
func normalizeCartItem(path string, r cartRecord) domain.CartItem {
	it := domain.CartItem{
		ProductID:     firstNonEmpty(r.ProductID, r.ID, docstore.Base(path)),
		Name:          firstNonEmpty(r.Name, r.Title),
		UnitPrice:     pick(r.Price, r.UnitPrice),
		OriginalPrice: r.OriginalPrice.ptr(),
		ImageURL:      firstNonEmpty(r.Image, r.ImageURL),
		Category:      r.Category,
		Quantity:      int(r.Quantity),
	}
	if it.Quantity < 1 {
		it.Quantity = 1
	}
	return it
}

func cartPrefix(userID string) string { return docstore.Path("users", userID, "cart") + "/" }

// DocCartRepo stores one document per line at users/{uid}/cart/{productId}.
type DocCartRepo struct {
	store docstore.Store
}

func NewDocCartRepo(store docstore.Store) *DocCartRepo { return &DocCartRepo{store: store} }

func (r *DocCartRepo) List(ctx context.Context, userID string) ([]domain.CartItem, error) {
	entries, err := r.store.List(ctx, cartPrefix(userID))
	if err != nil {
		return nil, err
	}
	out := make([]domain.CartItem, 0, len(entries))
	for _, e := range entries {
		var rec cartRecord
		if err := json.Unmarshal(e.Data, &rec); err != nil {
			continue
		}
		out = append(out, normalizeCartItem(e.Path, rec))
	}
	return out, nil
}

func (r *DocCartRepo) Put(ctx context.Context, userID string, item domain.CartItem) error {
	b, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, cartPrefix(userID)+item.ProductID, b)
}

func (r *DocCartRepo) Delete(ctx context.Context, userID, productID string) error {
	return r.store.Delete(ctx, cartPrefix(userID)+productID)
}

func (r *DocCartRepo) Clear(ctx context.Context, userID string) error {
	return r.store.DeletePrefix(ctx, cartPrefix(userID))
}

func (r *DocCartRepo) Watch(ctx context.Context, userID string) (<-chan struct{}, func(), error) {
	return watch(ctx, r.store, cartPrefix(userID))
}

// watch falls back to a closed channel when the store has no change feed.
func watch(ctx context.Context, store docstore.Store, prefix string) (<-chan struct{}, func(), error) {
	if w, ok := store.(docstore.Watcher); ok {
		return w.Watch(ctx, prefix)
	}
	ch := make(chan struct{})
	close(ch)
	return ch, func() {}, nil
}

var (
	_ usecase.CartRepo          = (*DocCartRepo)(nil)
	_ usecase.CollectionWatcher = (*DocCartRepo)(nil)
)
