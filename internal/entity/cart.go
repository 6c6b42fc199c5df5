package domain

import "github.com/shopspring/decimal"

type CartItem struct {
	ProductID     string           `json:"productId"`
	Name          string           `json:"name"`
	UnitPrice     decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	ImageURL      string           `json:"image,omitempty"`
	Category      string           `json:"category,omitempty"`
	Quantity      int              `json:"quantity"`
}

// WishlistItem keeps both identity fields; older records carry only one of them.
type WishlistItem struct {
	ID            string           `json:"id"`
	ProductID     string           `json:"productId,omitempty"`
	Name          string           `json:"name"`
	UnitPrice     decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	ImageURL      string           `json:"image,omitempty"`
	Category      string           `json:"category,omitempty"`
}

// Matches reports whether id refers to this item by either identity field.
func (w WishlistItem) Matches(id string) bool {
	return id != "" && (w.ID == id || w.ProductID == id)
}

// Product is the catalog view needed by checkout; the catalog itself is read-only here.
type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	ImageURL      string           `json:"image,omitempty"`
	Category      string           `json:"category,omitempty"`
	DownloadRef   string           `json:"downloadUrl,omitempty"`
}
