package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

func (s Status) String() string { return string(s) }

// MinOrderAmount is the smallest total the payment gateway accepts.
var MinOrderAmount = decimal.NewFromInt(1)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// LineItem is a snapshot of a product taken when the order is created.
type LineItem struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	DownloadRef *string         `json:"downloadRef,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
}

type AppliedCoupon struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

type Order struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	Items            []LineItem      `json:"items"`
	Amount           decimal.Decimal `json:"amount"`
	Status           Status          `json:"paymentStatus"`
	Customer         Customer        `json:"customer"`
	Coupon           *AppliedCoupon  `json:"coupon,omitempty"`
	PaymentSessionID string          `json:"paymentSessionId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	VerifiedAt       *time.Time      `json:"verifiedAt,omitempty"`
	FailedAt         *time.Time      `json:"failedAt,omitempty"`
	FailureReason    string          `json:"failureReason,omitempty"`
}

// ProductIDs returns the product ids of the line items in order.
func (o *Order) ProductIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	return ids
}

// MarkSuccess resolves a pending order as paid and replaces its line items.
func (o *Order) MarkSuccess(items []LineItem, at time.Time) error {
	if o.Status.IsTerminal() {
		return ErrTerminal
	}
	o.Status = StatusSuccess
	o.Items = items
	o.VerifiedAt = &at
	o.FailureReason = ""
	return nil
}

// MarkFailed resolves a pending order as failed.
func (o *Order) MarkFailed(reason string, at time.Time) error {
	if o.Status.IsTerminal() {
		return ErrTerminal
	}
	o.Status = StatusFailed
	o.FailedAt = &at
	o.FailureReason = reason
	return nil
}
