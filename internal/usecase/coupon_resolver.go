package usecase

import (
	"context"
	"sort"
	"strings"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
)

type CouponResolver struct {
	repo CouponRepo
}

func NewCouponResolver(repo CouponRepo) *CouponResolver {
	return &CouponResolver{repo: repo}
}

// ResolveByCode finds the coupon whose code matches case-insensitively.
// It tells a missing code apart from an inactive one.
func (r *CouponResolver) ResolveByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrCouponNotFound
	}
	all, err := r.repo.List(ctx)
	if err != nil {
		return nil, asTransport("load coupons", err)
	}
	for i := range all {
		if !strings.EqualFold(all[i].Code, code) {
			continue
		}
		if !all[i].Active {
			return nil, domain.ErrCouponInactive
		}
		c := all[i]
		return &c, nil
	}
	return nil, domain.ErrCouponNotFound
}

// ListActive returns active coupons, newest first, then by code.
func (r *CouponResolver) ListActive(ctx context.Context) ([]domain.Coupon, error) {
	all, err := r.repo.List(ctx)
	if err != nil {
		return nil, asTransport("load coupons", err)
	}
	out := make([]domain.Coupon, 0, len(all))
	for _, c := range all {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CreatedAt, out[j].CreatedAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return strings.ToLower(out[i].Code) < strings.ToLower(out[j].Code)
	})
	return out, nil
}

// asTransport keeps typed errors and classifies the rest as store/network failures.
func asTransport(op string, err error) error {
	if domain.KindOf(err) != 0 {
		return err
	}
	return domain.Transport(op, err)
}
