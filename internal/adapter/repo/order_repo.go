package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aq2208/pixelmart-api/internal/adapter/docstore"
	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/usecase"
)

const ordersRoot = "orders"

// orderRecord is an order as found in the store. Older records used other
// field names for the same data.
type orderRecord struct {
	ID               string         `json:"id"`
	OrderID          string         `json:"orderId"`
	UserID           string         `json:"userId"`
	UID              string         `json:"uid"`
	Items            []lineRecord   `json:"items"`
	Amount           money          `json:"amount"`
	TotalAmount      money          `json:"totalAmount"`
	PaymentStatus    string         `json:"paymentStatus"`
	Status           string         `json:"status"`
	Customer         customerRecord `json:"customer"`
	CustomerName     string         `json:"customerName"`
	CustomerEmail    string         `json:"customerEmail"`
	CustomerPhone    string         `json:"customerPhone"`
	Coupon           *couponApplied `json:"coupon"`
	CouponCode       string         `json:"couponCode"`
	Discount         money          `json:"discount"`
	PaymentSessionID string         `json:"paymentSessionId"`
	CreatedAt        stamp          `json:"createdAt"`
	VerifiedAt       stamp          `json:"verifiedAt"`
	FailedAt         stamp          `json:"failedAt"`
	FailureReason    string         `json:"failureReason"`
}

type lineRecord struct {
	ProductID   string  `json:"productId"`
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	UnitPrice   money   `json:"unitPrice"`
	Price       money   `json:"price"`
	Quantity    count   `json:"quantity"`
	DownloadRef *string `json:"downloadRef"`
	DownloadURL *string `json:"downloadUrl"`
	ImageURL    string  `json:"imageUrl"`
	Image       string  `json:"image"`
}

type customerRecord struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type couponApplied struct {
	Code     string `json:"code"`
	Discount money  `json:"discount"`
}

// normalizeOrder is the only place store order records become domain orders.
func normalizeOrder(path string, r orderRecord) domain.Order {
	o := domain.Order{
		ID:     firstNonEmpty(r.ID, r.OrderID, docstore.Base(path)),
		UserID: firstNonEmpty(r.UserID, r.UID),
		Amount: pick(r.Amount, r.TotalAmount),
		Status: normalizeStatus(firstNonEmpty(r.PaymentStatus, r.Status)),
		Customer: domain.Customer{
			Name:  firstNonEmpty(r.Customer.Name, r.CustomerName),
			Email: firstNonEmpty(r.Customer.Email, r.CustomerEmail),
			Phone: firstNonEmpty(r.Customer.Phone, r.CustomerPhone),
		},
		PaymentSessionID: r.PaymentSessionID,
		CreatedAt:        r.CreatedAt.Time,
		VerifiedAt:       r.VerifiedAt.ptr(),
		FailedAt:         r.FailedAt.ptr(),
		FailureReason:    r.FailureReason,
	}
	for _, l := range r.Items {
		o.Items = append(o.Items, domain.LineItem{
			ProductID:   firstNonEmpty(l.ProductID, l.ID),
			Name:        firstNonEmpty(l.Name, l.Title),
			UnitPrice:   pick(l.UnitPrice, l.Price),
			Quantity:    int(l.Quantity),
			DownloadRef: firstRef(l.DownloadRef, l.DownloadURL),
			ImageURL:    firstNonEmpty(l.ImageURL, l.Image),
		})
	}
	switch {
	case r.Coupon != nil && r.Coupon.Code != "":
		o.Coupon = &domain.AppliedCoupon{Code: r.Coupon.Code, Discount: r.Coupon.Discount.Value}
	case r.CouponCode != "":
		o.Coupon = &domain.AppliedCoupon{Code: r.CouponCode, Discount: r.Discount.Value}
	}
	return o
}

// normalizeStatus maps anything unknown to PENDING so it can still be verified.
func normalizeStatus(s string) domain.Status {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS", "PAID", "COMPLETED":
		return domain.StatusSuccess
	case "FAILED", "FAILURE", "CANCELLED":
		return domain.StatusFailed
	default:
		return domain.StatusPending
	}
}

func decodeOrder(path string, data []byte) (*domain.Order, error) {
	var r orderRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	o := normalizeOrder(path, r)
	return &o, nil
}

// DocOrderRepo stores orders at orders/{id}.
type DocOrderRepo struct {
	store docstore.Store
}

func NewDocOrderRepo(store docstore.Store) *DocOrderRepo { return &DocOrderRepo{store: store} }

func orderPath(id string) string { return docstore.Path(ordersRoot, id) }

func (r *DocOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	b, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, orderPath(o.ID), b)
}

func (r *DocOrderRepo) CreateIfAbsent(ctx context.Context, o *domain.Order) (bool, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return false, err
	}
	return r.store.Create(ctx, orderPath(o.ID), b)
}

func (r *DocOrderRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if id == "" || strings.Contains(id, "/") {
		return nil, domain.ErrOrderNotFound
	}
	b, err := r.store.Get(ctx, orderPath(id))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeOrder(orderPath(id), b)
}

// ListByUser returns the user's orders, newest first.
func (r *DocOrderRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, o := range all {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListAll skips records that cannot be decoded rather than failing the scan.
func (r *DocOrderRepo) ListAll(ctx context.Context) ([]domain.Order, error) {
	entries, err := r.store.List(ctx, ordersRoot+"/")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(entries))
	for _, e := range entries {
		o, err := decodeOrder(e.Path, e.Data)
		if err != nil {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (r *DocOrderRepo) UpdateIf(ctx context.Context, id string, from domain.Status, fn func(o *domain.Order) error) (*domain.Order, bool, error) {
	path := orderPath(id)
	var (
		result  *domain.Order
		applied bool
	)
	_, err := r.store.Update(ctx, path, func(cur []byte) ([]byte, error) {
		o, err := decodeOrder(path, cur)
		if err != nil {
			return nil, err
		}
		result, applied = o, false
		if o.Status != from {
			return nil, nil
		}
		if err := fn(o); err != nil {
			return nil, err
		}
		applied = true
		return json.Marshal(o)
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, false, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, false, err
	}
	return result, applied, nil
}

var _ usecase.OrderRepo = (*DocOrderRepo)(nil)
