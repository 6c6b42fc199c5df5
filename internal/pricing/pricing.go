// Package pricing computes checkout totals from a cart snapshot and an optional coupon.
// Nothing here rounds; callers round once with Round2 when an amount is persisted.
package pricing

import (
	"fmt"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is the pricing view of a cart or order line.
type Line struct {
	UnitPrice     decimal.Decimal
	OriginalPrice *decimal.Decimal
	Quantity      int
}

type Snapshot struct {
	Subtotal       decimal.Decimal
	ProductSavings decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
}

// Compute returns subtotal, product savings, coupon discount and total.
// Product savings are informational; they are already reflected in the unit prices.
func Compute(lines []Line, coupon *domain.Coupon) Snapshot {
	var s Snapshot
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		s.Subtotal = s.Subtotal.Add(l.UnitPrice.Mul(qty))
		if l.OriginalPrice != nil {
			s.ProductSavings = s.ProductSavings.Add(l.OriginalPrice.Sub(l.UnitPrice).Mul(qty))
		}
	}
	s.Discount = Discount(s.Subtotal, coupon)
	s.Total = s.Subtotal.Sub(s.Discount)
	return s
}

// Discount is subtotal*value/100 for percentage coupons and value for fixed ones.
// It is not capped at the subtotal.
func Discount(subtotal decimal.Decimal, coupon *domain.Coupon) decimal.Decimal {
	if coupon == nil {
		return decimal.Zero
	}
	switch coupon.Type {
	case domain.DiscountPercentage:
		return subtotal.Mul(coupon.Value).Div(hundred)
	case domain.DiscountFixed:
		return coupon.Value
	default:
		return decimal.Zero
	}
}

// Round2 rounds half away from zero to 2 fractional digits.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// ClampPolicy decides what happens when a coupon discount exceeds the subtotal.
type ClampPolicy string

const (
	ClampNone   ClampPolicy = "none"   // keep the raw discount, total may go negative
	ClampZero   ClampPolicy = "zero"   // cap the discount at the subtotal
	ClampReject ClampPolicy = "reject" // refuse the coupon
)

func ParseClampPolicy(s string) (ClampPolicy, error) {
	switch ClampPolicy(s) {
	case "", ClampNone:
		return ClampNone, nil
	case ClampZero, ClampReject:
		return ClampPolicy(s), nil
	}
	return "", fmt.Errorf("unknown discount clamp policy %q", s)
}

// ApplyClamp enforces p on s.
func ApplyClamp(s Snapshot, p ClampPolicy) (Snapshot, error) {
	if s.Discount.LessThanOrEqual(s.Subtotal) {
		return s, nil
	}
	switch p {
	case ClampZero:
		s.Discount = s.Subtotal
		s.Total = decimal.Zero
	case ClampReject:
		return s, domain.Validation("coupon", "discount exceeds order subtotal")
	}
	return s, nil
}

// CartLines converts cart items to pricing lines.
func CartLines(items []domain.CartItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{UnitPrice: it.UnitPrice, OriginalPrice: it.OriginalPrice, Quantity: it.Quantity})
	}
	return lines
}

// OrderLines converts order line items to pricing lines.
func OrderLines(items []domain.LineItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, Line{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	return lines
}
