package usecase

import (
	"context"
	"sort"
	"sync"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/logging"
)

type WishlistMirror struct {
	userID string
	repo   WishlistRepo

	mu    sync.RWMutex
	items map[string]domain.WishlistItem // keyed by item id
	stop  func()
}

func NewWishlistMirror(userID string, repo WishlistRepo) *WishlistMirror {
	return &WishlistMirror{userID: userID, repo: repo, items: map[string]domain.WishlistItem{}}
}

func (m *WishlistMirror) Load(ctx context.Context) error {
	items, err := m.repo.List(ctx, m.userID)
	if err != nil {
		return asTransport("load wishlist", err)
	}
	next := make(map[string]domain.WishlistItem, len(items))
	for _, it := range items {
		next[it.ID] = it
	}
	m.mu.Lock()
	m.items = next
	m.mu.Unlock()
	return nil
}

func (m *WishlistMirror) Watch(ctx context.Context) error {
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
				logging.FromCtx(ctx).Warn("wishlist reload failed", "user_id", m.userID, "err", err)
			}
		}
	}()
	return nil
}

func (m *WishlistMirror) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
	m.items = map[string]domain.WishlistItem{}
}

func (m *WishlistMirror) Add(ctx context.Context, item domain.WishlistItem) error {
	if item.ID == "" {
		item.ID = item.ProductID
	}
	if item.ID == "" {
		return domain.Validation("productId", "product id is required")
	}
	if m.Contains(item.ID) || m.Contains(item.ProductID) {
		return nil
	}
	if err := m.repo.Put(ctx, m.userID, item); err != nil {
		return asTransport("save wishlist item", err)
	}
	m.mu.Lock()
	m.items[item.ID] = item
	m.mu.Unlock()
	return nil
}

// Remove deletes the item matching id by either identity field.
func (m *WishlistMirror) Remove(ctx context.Context, id string) error {
	it, ok := m.find(id)
	if !ok {
		return nil
	}
	if err := m.repo.Delete(ctx, m.userID, it.ID); err != nil {
		return asTransport("remove wishlist item", err)
	}
	m.mu.Lock()
	delete(m.items, it.ID)
	m.mu.Unlock()
	return nil
}

func (m *WishlistMirror) Clear(ctx context.Context) error {
	if err := m.repo.Clear(ctx, m.userID); err != nil {
		return asTransport("clear wishlist", err)
	}
	m.mu.Lock()
	m.items = map[string]domain.WishlistItem{}
	m.mu.Unlock()
	return nil
}

// Contains matches on the item id or the embedded product id.
func (m *WishlistMirror) Contains(id string) bool {
	_, ok := m.find(id)
	return ok
}

func (m *WishlistMirror) find(id string) (domain.WishlistItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if it, ok := m.items[id]; ok {
		return it, true
	}
	for _, it := range m.items {
		if it.Matches(id) {
			return it, true
		}
	}
	return domain.WishlistItem{}, false
}

func (m *WishlistMirror) Items() []domain.WishlistItem {
	m.mu.RLock()
	out := make([]domain.WishlistItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
