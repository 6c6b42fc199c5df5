package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aq2208/pixelmart-api/internal/adapter/docstore"
	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/usecase"
)

const productsRoot = "products"

type productRecord struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Title         string `json:"title"`
	Price         money  `json:"price"`
	OriginalPrice money  `json:"originalPrice"`
	Image         string `json:"image"`
	ImageURL      string `json:"imageUrl"`
	Category      string `json:"category"`
	DownloadURL   string `json:"downloadUrl"`
	DownloadRef   string `json:"downloadRef"`
	FileURL       string `json:"fileUrl"`
}

func normalizeProduct(path string, r productRecord) domain.Product {
	return domain.Product{
		ID:            firstNonEmpty(r.ID, docstore.Base(path)),
		Name:          firstNonEmpty(r.Name, r.Title),
		Price:         r.Price.Value,
		OriginalPrice: r.OriginalPrice.ptr(),
		ImageURL:      firstNonEmpty(r.Image, r.ImageURL),
		Category:      r.Category,
		DownloadRef:   strings.TrimSpace(firstNonEmpty(r.DownloadURL, r.DownloadRef, r.FileURL)),
	}
}

// DocCatalogRepo reads products/{id}. The catalog is maintained elsewhere.
type DocCatalogRepo struct {
	store docstore.Store
}

func NewDocCatalogRepo(store docstore.Store) *DocCatalogRepo { return &DocCatalogRepo{store: store} }

func (r *DocCatalogRepo) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	if productID == "" || strings.Contains(productID, "/") {
		return nil, domain.ErrProductNotFound
	}
	path := docstore.Path(productsRoot, productID)
	b, err := r.store.Get(ctx, path)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec productRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	p := normalizeProduct(path, rec)
	return &p, nil
}

var _ usecase.CatalogRepo = (*DocCatalogRepo)(nil)
