package repo

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aq2208/pixelmart-api/internal/adapter/docstore"
	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/usecase"
)

const couponsRoot = "coupons"

type couponRecord struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	DiscountType  string `json:"discountType"`
	Type          string `json:"type"`
	DiscountValue money  `json:"discountValue"`
	Value         money  `json:"value"`
	IsActive      *bool  `json:"isActive"`
	Active        *bool  `json:"active"`
	Description   string `json:"description"`
	CreatedAt     stamp  `json:"createdAt"`
}

// normalizeCoupon reads both naming generations. Only an explicit true active
// flag makes a coupon eligible; one with an unknown type is dropped.
func normalizeCoupon(path string, r couponRecord) (domain.Coupon, bool) {
	c := domain.Coupon{
		ID:          firstNonEmpty(r.ID, docstore.Base(path)),
		Code:        strings.TrimSpace(r.Code),
		Value:       pick(r.DiscountValue, r.Value),
		Description: r.Description,
		CreatedAt:   r.CreatedAt.ptr(),
	}
	switch {
	case r.IsActive != nil:
		c.Active = *r.IsActive
	case r.Active != nil:
		c.Active = *r.Active
	}
	switch strings.ToLower(firstNonEmpty(r.DiscountType, r.Type)) {
	case "percentage", "percent":
		c.Type = domain.DiscountPercentage
	case "fixed", "flat", "amount":
		c.Type = domain.DiscountFixed
	default:
		return c, false
	}
	if c.Code == "" {
		c.Code = c.ID
	}
	return c, true
}

type DocCouponRepo struct {
	store docstore.Store
}

func NewDocCouponRepo(store docstore.Store) *DocCouponRepo { return &DocCouponRepo{store: store} }

func (r *DocCouponRepo) List(ctx context.Context) ([]domain.Coupon, error) {
	entries, err := r.store.List(ctx, couponsRoot+"/")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Coupon, 0, len(entries))
	for _, e := range entries {
		var rec couponRecord
		if err := json.Unmarshal(e.Data, &rec); err != nil {
			continue
		}
		if c, ok := normalizeCoupon(e.Path, rec); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// Put stores a coupon under its code; used for seeding.
func (r *DocCouponRepo) Put(ctx context.Context, c domain.Coupon) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, docstore.Path(couponsRoot, firstNonEmpty(c.ID, c.Code)), b)
}

var _ usecase.CouponRepo = (*DocCouponRepo)(nil)
