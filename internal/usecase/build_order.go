package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/aq2208/pixelmart-api/internal/pricing"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^[0-9]{10}$`)
)

const maxIDAttempts = 3

var errOrderIDExhausted = errors.New("no free order id after retries")

type BuildOrderInput struct {
	UserID   string
	Items    []domain.LineItem
	Customer domain.Customer
	Coupon   *domain.Coupon
}

type OrderBuilderConfig struct {
	IDPrefix          string
	PhoneCountryCode  string
	Clamp             pricing.ClampPolicy
	RejectIDCollision bool
}

// OrderBuilder validates checkout input and persists the PENDING order snapshot.
type OrderBuilder struct {
	repo OrderRepo
	cfg  OrderBuilderConfig
	now  func() time.Time
}

func NewOrderBuilder(repo OrderRepo, cfg OrderBuilderConfig) *OrderBuilder {
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = "PM"
	}
	if cfg.Clamp == "" {
		cfg.Clamp = pricing.ClampNone
	}
	return &OrderBuilder{repo: repo, cfg: cfg, now: time.Now}
}

// Build validates in, then writes the order at PENDING before returning it.
// Validation failures never reach the store.
func (b *OrderBuilder) Build(ctx context.Context, in BuildOrderInput) (*domain.Order, error) {
	if err := b.validateCustomer(in.Customer); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, domain.Validation("items", "cart is empty")
	}
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return nil, domain.Validation("items", "quantity must be at least 1")
		}
	}

	snap, err := pricing.ApplyClamp(pricing.Compute(pricing.OrderLines(in.Items), in.Coupon), b.cfg.Clamp)
	if err != nil {
		return nil, err
	}
	if !snap.Subtotal.IsPositive() {
		return nil, domain.Validation("items", "subtotal must be greater than zero")
	}
	total := pricing.Round2(snap.Total)
	if total.LessThan(domain.MinOrderAmount) {
		return nil, domain.ErrBelowMinimumAmount
	}

	now := b.now().UTC()
	order := &domain.Order{
		UserID:    in.UserID,
		Items:     snapshotItems(in.Items),
		Amount:    total,
		Status:    domain.StatusPending,
		Customer:  normalizeCustomer(in.Customer, b.cfg.PhoneCountryCode),
		CreatedAt: now,
	}
	if in.Coupon != nil {
		order.Coupon = &domain.AppliedCoupon{Code: in.Coupon.Code, Discount: pricing.Round2(snap.Discount)}
	}

	if err := b.persist(ctx, order, now); err != nil {
		return nil, err
	}
	logging.FromCtx(ctx).Info("order created",
		"order_id", order.ID, "user_id", order.UserID, "amount", order.Amount.StringFixed(2), "status", order.Status)
	return order, nil
}

func (b *OrderBuilder) persist(ctx context.Context, order *domain.Order, now time.Time) error {
	if !b.cfg.RejectIDCollision {
		order.ID = NewOrderID(b.cfg.IDPrefix, now)
		if err := b.repo.Create(ctx, order); err != nil {
			return asTransport("create order", err)
		}
		return nil
	}
	for i := 0; i < maxIDAttempts; i++ {
		order.ID = NewOrderID(b.cfg.IDPrefix, now)
		ok, err := b.repo.CreateIfAbsent(ctx, order)
		if err != nil {
			return asTransport("create order", err)
		}
		if ok {
			return nil
		}
		logging.FromCtx(ctx).Warn("order id collision, regenerating", "order_id", order.ID)
	}
	return domain.Transport("create order", errOrderIDExhausted)
}

func (b *OrderBuilder) validateCustomer(c domain.Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return domain.Validation("name", "name is required")
	}
	if !emailRegex.MatchString(strings.TrimSpace(c.Email)) {
		return domain.Validation("email", "enter a valid email address")
	}
	if !phoneRegex.MatchString(subscriberNumber(c.Phone, b.cfg.PhoneCountryCode)) {
		return domain.Validation("phone", "enter a valid 10-digit phone number")
	}
	return nil
}

func subscriberNumber(phone, countryCode string) string {
	phone = strings.TrimSpace(phone)
	if countryCode != "" {
		phone = strings.TrimPrefix(phone, countryCode)
	}
	return strings.TrimSpace(phone)
}

func normalizeCustomer(c domain.Customer, countryCode string) domain.Customer {
	return domain.Customer{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
		Phone: subscriberNumber(c.Phone, countryCode),
	}
}

func snapshotItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	copy(out, items)
	return out
}
