package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
)

var errStoreDown = errors.New("store unavailable")

type memOrders struct {
	mu      sync.Mutex
	byID    map[string]domain.Order
	writes  int
	failAll bool
}

func newMemOrders() *memOrders { return &memOrders{byID: map[string]domain.Order{}} }

func (m *memOrders) Create(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errStoreDown
	}
	m.writes++
	m.byID[o.ID] = cloneOrder(*o)
	return nil
}

func (m *memOrders) CreateIfAbsent(ctx context.Context, o *domain.Order) (bool, error) {
	m.mu.Lock()
	_, exists := m.byID[o.ID]
	m.mu.Unlock()
	if exists {
		return false, nil
	}
	return true, m.Create(ctx, o)
}

func (m *memOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errStoreDown
	}
	o, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	c := cloneOrder(o)
	return &c, nil
}

func (m *memOrders) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memOrders) ListAll(_ context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Order, 0, len(m.byID))
	for _, o := range m.byID {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memOrders) UpdateIf(_ context.Context, id string, from domain.Status, fn func(*domain.Order) error) (*domain.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, false, domain.ErrOrderNotFound
	}
	cur := cloneOrder(o)
	if cur.Status != from {
		return &cur, false, nil
	}
	if err := fn(&cur); err != nil {
		return nil, false, err
	}
	m.writes++
	m.byID[id] = cloneOrder(cur)
	return &cur, true, nil
}

func (m *memOrders) put(o domain.Order) { m.byID[o.ID] = cloneOrder(o) }

func (m *memOrders) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func cloneOrder(o domain.Order) domain.Order {
	items := make([]domain.LineItem, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

type memCoupons struct {
	list []domain.Coupon
	err  error
}

func (m *memCoupons) List(context.Context) ([]domain.Coupon, error) { return m.list, m.err }

type memCatalog struct {
	products map[string]domain.Product
	fail     map[string]bool
}

func (m *memCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if m.fail[id] {
		return nil, errStoreDown
	}
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

type memCart struct {
	mu      sync.Mutex
	items   map[string]map[string]domain.CartItem
	failPut bool
	clears  int
}

func newMemCart() *memCart { return &memCart{items: map[string]map[string]domain.CartItem{}} }

func (m *memCart) List(_ context.Context, uid string) ([]domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CartItem
	for _, it := range m.items[uid] {
		out = append(out, it)
	}
	return out, nil
}

func (m *memCart) Put(_ context.Context, uid string, it domain.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return errStoreDown
	}
	if m.items[uid] == nil {
		m.items[uid] = map[string]domain.CartItem{}
	}
	m.items[uid][it.ProductID] = it
	return nil
}

func (m *memCart) Delete(_ context.Context, uid, pid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items[uid], pid)
	return nil
}

func (m *memCart) Clear(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	delete(m.items, uid)
	return nil
}

type memWishlist struct {
	mu    sync.Mutex
	items map[string]map[string]domain.WishlistItem
}

func newMemWishlist() *memWishlist {
	return &memWishlist{items: map[string]map[string]domain.WishlistItem{}}
}

func (m *memWishlist) List(_ context.Context, uid string) ([]domain.WishlistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WishlistItem
	for _, it := range m.items[uid] {
		out = append(out, it)
	}
	return out, nil
}

func (m *memWishlist) Put(_ context.Context, uid string, it domain.WishlistItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items[uid] == nil {
		m.items[uid] = map[string]domain.WishlistItem{}
	}
	m.items[uid][it.ID] = it
	return nil
}

func (m *memWishlist) Delete(_ context.Context, uid, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items[uid], id)
	return nil
}

func (m *memWishlist) Clear(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, uid)
	return nil
}

type fakeGateway struct {
	mu          sync.Mutex
	sessionResp SessionResponse
	sessionErr  error
	sessionReqs []SessionRequest

	status    GatewayStatus
	statusErr error
	queries   atomic.Int32
	block     chan struct{} // when set, GetOrderStatus waits on it
}

func (g *fakeGateway) CreateSession(_ context.Context, req SessionRequest) (SessionResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionReqs = append(g.sessionReqs, req)
	return g.sessionResp, g.sessionErr
}

func (g *fakeGateway) GetOrderStatus(ctx context.Context, _ string) (GatewayStatus, error) {
	g.queries.Add(1)
	if g.block != nil {
		select {
		case <-g.block:
		case <-ctx.Done():
			return GatewayStatus{}, ctx.Err()
		}
	}
	return g.status, g.statusErr
}

func (g *fakeGateway) sessionCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessionReqs)
}

type recordingClearer struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingClearer) ClearCart(_ context.Context, uid, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, uid+"/"+orderID)
	return nil
}

type recordingEvents struct {
	mu   sync.Mutex
	msgs []OrderStatusChangedMsg
}

func (r *recordingEvents) PublishStatusChanged(_ context.Context, m OrderStatusChangedMsg) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

type countingRecorder struct {
	mu       sync.Mutex
	sessions map[string]int
	verifies map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{sessions: map[string]int{}, verifies: map[string]int{}}
}

func (c *countingRecorder) SessionCreated(r string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[r]++
}

func (c *countingRecorder) VerificationResolved(o string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verifies[o]++
}

// prefixSealer is a reversible stand-in for the AES sealer.
type prefixSealer struct{}

func (prefixSealer) Seal(p string) (string, error) { return "sealed:" + p, nil }
func (prefixSealer) Open(s string) (string, error) {
	p, ok := strings.CutPrefix(s, "sealed:")
	if !ok {
		return "", errors.New("not sealed")
	}
	return p, nil
}

type fakeSigner struct{}

func (fakeSigner) Sign(c DownloadClaims, ttl time.Duration) (string, time.Time, error) {
	return c.UserID + "|" + c.OrderID + "|" + c.ProductID, time.Unix(0, 0).Add(ttl), nil
}

func (fakeSigner) Parse(tok string) (DownloadClaims, error) {
	parts := strings.Split(tok, "|")
	if len(parts) != 3 {
		return DownloadClaims{}, errors.New("bad token")
	}
	return DownloadClaims{UserID: parts[0], OrderID: parts[1], ProductID: parts[2]}, nil
}

func strp(s string) *string { return &s }
