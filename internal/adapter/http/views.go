package http

import (
	"time"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/pricing"
)

type itemView struct {
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	UnitPrice    string `json:"unitPrice"`
	Quantity     int    `json:"quantity"`
	ImageURL     string `json:"imageUrl,omitempty"`
	Downloadable bool   `json:"downloadable"`
}

// orderView never carries download references; those go through signed links.
type orderView struct {
	ID               string                `json:"id"`
	Status           domain.Status         `json:"paymentStatus"`
	Amount           string                `json:"amount"`
	Items            []itemView            `json:"items"`
	Customer         domain.Customer       `json:"customer"`
	Coupon           *domain.AppliedCoupon `json:"coupon,omitempty"`
	PaymentSessionID string                `json:"paymentSessionId,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	VerifiedAt       *time.Time            `json:"verifiedAt,omitempty"`
	FailedAt         *time.Time            `json:"failedAt,omitempty"`
	FailureReason    string                `json:"failureReason,omitempty"`
}

func toOrderView(o *domain.Order) orderView {
	items := make([]itemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemView{
			ProductID:    it.ProductID,
			Name:         it.Name,
			UnitPrice:    it.UnitPrice.StringFixed(2),
			Quantity:     it.Quantity,
			ImageURL:     it.ImageURL,
			Downloadable: o.Status == domain.StatusSuccess && it.DownloadRef != nil && *it.DownloadRef != "",
		})
	}
	return orderView{
		ID:               o.ID,
		Status:           o.Status,
		Amount:           o.Amount.StringFixed(2),
		Items:            items,
		Customer:         o.Customer,
		Coupon:           o.Coupon,
		PaymentSessionID: o.PaymentSessionID,
		CreatedAt:        o.CreatedAt,
		VerifiedAt:       o.VerifiedAt,
		FailedAt:         o.FailedAt,
		FailureReason:    o.FailureReason,
	}
}

// pricingView shows two decimals; the snapshot itself stays unrounded.
type pricingView struct {
	Subtotal       string `json:"subtotal"`
	ProductSavings string `json:"productSavings"`
	Discount       string `json:"discount"`
	Total          string `json:"total"`
}

func toPricingView(s pricing.Snapshot) pricingView {
	return pricingView{
		Subtotal:       s.Subtotal.StringFixed(2),
		ProductSavings: s.ProductSavings.StringFixed(2),
		Discount:       s.Discount.StringFixed(2),
		Total:          s.Total.StringFixed(2),
	}
}
