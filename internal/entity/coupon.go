package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"`
	Type        DiscountType    `json:"discountType"`
	Value       decimal.Decimal `json:"discountValue"`
	Active      bool            `json:"isActive"`
	Description string          `json:"description,omitempty"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
}
