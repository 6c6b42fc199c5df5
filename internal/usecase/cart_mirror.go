package usecase

import (
	"context"
	"sort"
	"sync"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/aq2208/pixelmart-api/internal/pricing"
)

// CartMirror keeps a local copy of one user's cart. Every mutation goes to the
// store first; local state changes only after the write succeeds.
type CartMirror struct {
	userID string
	repo   CartRepo

	mu    sync.RWMutex
	items map[string]domain.CartItem
	stop  func()
}

func NewCartMirror(userID string, repo CartRepo) *CartMirror {
	return &CartMirror{userID: userID, repo: repo, items: map[string]domain.CartItem{}}
}

// Load replaces local state with the stored collection.
func (m *CartMirror) Load(ctx context.Context) error {
	items, err := m.repo.List(ctx, m.userID)
	if err != nil {
		return asTransport("load cart", err)
	}
	next := make(map[string]domain.CartItem, len(items))
	for _, it := range items {
		next[it.ProductID] = it
	}
	m.mu.Lock()
	m.items = next
	m.mu.Unlock()
	return nil
}

// Watch reloads the mirror whenever the store reports a change, if it can.
func (m *CartMirror) Watch(ctx context.Context) error {
	w, ok := any(m.repo).(CollectionWatcher)
	if !ok {
		return nil
	}
	ch, stop, err := w.Watch(ctx, m.userID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.stop = stop
	m.mu.Unlock()
	go func() {
		for range ch {
			if err := m.Load(ctx); err != nil {
				logging.FromCtx(ctx).Warn("cart reload failed", "user_id", m.userID, "err", err)
			}
		}
	}()
	return nil
}

// Close stops watching and drops local state (sign-out).
func (m *CartMirror) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	m.items = map[string]domain.CartItem{}
}

// Add puts item in the cart, adding to the quantity of an existing line.
func (m *CartMirror) Add(ctx context.Context, item domain.CartItem) error {
	if item.ProductID == "" {
		return domain.Validation("productId", "product id is required")
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	m.mu.RLock()
	if cur, ok := m.items[item.ProductID]; ok {
		item.Quantity += cur.Quantity
	}
	m.mu.RUnlock()

	if err := m.repo.Put(ctx, m.userID, item); err != nil {
		return asTransport("save cart item", err)
	}
	m.mu.Lock()
	m.items[item.ProductID] = item
	m.mu.Unlock()
	return nil
}

// UpdateQuantity sets the quantity of a line; anything below 1 removes it.
func (m *CartMirror) UpdateQuantity(ctx context.Context, productID string, qty int) error {
	if qty < 1 {
		return m.Remove(ctx, productID)
	}
	m.mu.RLock()
	cur, ok := m.items[productID]
	m.mu.RUnlock()
	if !ok {
		return domain.ErrProductNotFound
	}
	cur.Quantity = qty
	if err := m.repo.Put(ctx, m.userID, cur); err != nil {
		return asTransport("save cart item", err)
	}
	m.mu.Lock()
	m.items[productID] = cur
	m.mu.Unlock()
	return nil
}

func (m *CartMirror) Remove(ctx context.Context, productID string) error {
	if err := m.repo.Delete(ctx, m.userID, productID); err != nil {
		return asTransport("remove cart item", err)
	}
	m.mu.Lock()
	delete(m.items, productID)
	m.mu.Unlock()
	return nil
}

func (m *CartMirror) Clear(ctx context.Context) error {
	if err := m.repo.Clear(ctx, m.userID); err != nil {
		return asTransport("clear cart", err)
	}
	m.mu.Lock()
	m.items = map[string]domain.CartItem{}
	m.mu.Unlock()
	return nil
}

// Items returns the mirrored cart ordered by product id.
func (m *CartMirror) Items() []domain.CartItem {
	m.mu.RLock()
	out := make([]domain.CartItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// Count is the total number of units in the cart.
func (m *CartMirror) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, it := range m.items {
		n += it.Quantity
	}
	return n
}

func (m *CartMirror) Pricing(coupon *domain.Coupon) pricing.Snapshot {
	return pricing.Compute(pricing.CartLines(m.Items()), coupon)
}

// LineItems snapshots the cart for an order.
func (m *CartMirror) LineItems() []domain.LineItem {
	items := m.Items()
	out := make([]domain.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			ImageURL:  it.ImageURL,
		})
	}
	return out
}
