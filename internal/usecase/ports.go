package usecase

import (
	"context"
	"time"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/shopspring/decimal"
)

type OrderRepo interface {
	// Create writes the order snapshot, overwriting any record with the same id.
	Create(ctx context.Context, o *domain.Order) error
	// CreateIfAbsent writes the order only when no record exists under its id.
	CreateIfAbsent(ctx context.Context, o *domain.Order) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	// UpdateIf applies fn atomically when the stored status equals from.
	// It returns the stored record and whether fn was applied.
	UpdateIf(ctx context.Context, id string, from domain.Status, fn func(o *domain.Order) error) (*domain.Order, bool, error)
}

type CouponRepo interface {
	List(ctx context.Context) ([]domain.Coupon, error)
}

type CatalogRepo interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

type CartRepo interface {
	List(ctx context.Context, userID string) ([]domain.CartItem, error)
	Put(ctx context.Context, userID string, item domain.CartItem) error
	Delete(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

type WishlistRepo interface {
	List(ctx context.Context, userID string) ([]domain.WishlistItem, error)
	Put(ctx context.Context, userID string, item domain.WishlistItem) error
	Delete(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, userID string) error
}

// CollectionWatcher is implemented by repos whose store pushes change notifications.
type CollectionWatcher interface {
	Watch(ctx context.Context, userID string) (<-chan struct{}, func(), error)
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
	Release(ctx context.Context, scope, key string) error
}

// CachedStatus is the last known status of an order together with its owner,
// so readers can check ownership without loading the order.
type CachedStatus struct {
	UserID string
	Status domain.Status
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderID string, st CachedStatus) error
	GetStatus(ctx context.Context, orderID string) (CachedStatus, bool, error)
}

type SessionRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Currency    string
	CustomerID  string
	Customer    domain.Customer
	Description string
	ReturnURL   string
	NotifyURL   string
}

type SessionResponse struct {
	SessionID string
	Message   string
}

// GatewayStatus is what the gateway reports for an order.
type GatewayStatus struct {
	OrderStatus   string
	PaymentStatus string
	Reason        string
}

// Paid treats either field being affirmative as success; the gateway does not
// always populate both.
func (s GatewayStatus) Paid() bool {
	return s.OrderStatus == "PAID" || s.PaymentStatus == "SUCCESS" || s.PaymentStatus == "PAID"
}

type PaymentGateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (SessionResponse, error)
	GetOrderStatus(ctx context.Context, orderID string) (GatewayStatus, error)
}

type CartClearer interface {
	ClearCart(ctx context.Context, userID, orderID string) error
}

type OrderEvents interface {
	PublishStatusChanged(ctx context.Context, msg OrderStatusChangedMsg) error
}

// Sealer protects download references stored on orders.
type Sealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

type DownloadClaims struct {
	UserID    string
	OrderID   string
	ProductID string
}

type URLSigner interface {
	Sign(c DownloadClaims, ttl time.Duration) (token string, expiresAt time.Time, err error)
	Parse(token string) (DownloadClaims, error)
}

// Recorder receives domain metrics.
type Recorder interface {
	SessionCreated(result string)
	VerificationResolved(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) SessionCreated(string)       {}
func (nopRecorder) VerificationResolved(string) {}
