package usecase

import (
	"context"
	"sync"

	"github.com/aq2208/pixelmart-api/internal/logging"
)

// Session is the signed-in state of one user: the cart and wishlist mirrors and
// the verification latch. It lives from sign-in to sign-out.
type Session struct {
	UserID   string
	Cart     *CartMirror
	Wishlist *WishlistMirror
	Latch    *MemoryLatch

	cancel context.CancelFunc
}

func (s *Session) close() {
	s.cancel()
	s.Cart.Close()
	s.Wishlist.Close()
}

// Sessions is the registry of open sessions, keyed by user id.
type Sessions struct {
	carts     CartRepo
	wishlists WishlistRepo

	mu   sync.Mutex
	open map[string]*Session
}

func NewSessions(carts CartRepo, wishlists WishlistRepo) *Sessions {
	return &Sessions{carts: carts, wishlists: wishlists, open: map[string]*Session{}}
}

// Get returns the user's session, opening it (sign-in) on first use. The store
// is read outside the registry lock; when two requests open the same user at
// once the first insert wins and the other session is closed.
func (r *Sessions) Get(ctx context.Context, userID string) (*Session, error) {
	if s, ok := r.lookup(userID); ok {
		return s, nil
	}

	s, err := r.openSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if winner, ok := r.open[userID]; ok {
		r.mu.Unlock()
		s.close()
		return winner, nil
	}
	r.open[userID] = s
	r.mu.Unlock()
	logging.FromCtx(ctx).Info("session opened", "user_id", userID)
	return s, nil
}

func (r *Sessions) lookup(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.open[userID]
	return s, ok
}

func (r *Sessions) openSession(ctx context.Context, userID string) (*Session, error) {
	// Watches outlive the request that opened the session.
	wctx, cancel := context.WithCancel(logging.WithCtx(context.WithoutCancel(ctx), logging.FromCtx(ctx).With("user_id", userID)))
	s := &Session{
		UserID:   userID,
		Cart:     NewCartMirror(userID, r.carts),
		Wishlist: NewWishlistMirror(userID, r.wishlists),
		Latch:    NewMemoryLatch(),
		cancel:   cancel,
	}
	if err := s.Cart.Load(ctx); err != nil {
		cancel()
		return nil, err
	}
	if err := s.Wishlist.Load(ctx); err != nil {
		cancel()
		return nil, err
	}
	if err := s.Cart.Watch(wctx); err != nil {
		logging.FromCtx(ctx).Warn("cart watch unavailable", "user_id", userID, "err", err)
	}
	if err := s.Wishlist.Watch(wctx); err != nil {
		logging.FromCtx(ctx).Warn("wishlist watch unavailable", "user_id", userID, "err", err)
	}
	return s, nil
}

// SignOut closes the session and forgets its local state. Stored data is kept.
func (r *Sessions) SignOut(ctx context.Context, userID string) {
	r.mu.Lock()
	s, ok := r.open[userID]
	delete(r.open, userID)
	r.mu.Unlock()
	if !ok {
		return
	}
	s.close()
	logging.FromCtx(ctx).Info("session closed", "user_id", userID)
}

// CloseAll signs everyone out; used on shutdown.
func (r *Sessions) CloseAll() {
	r.mu.Lock()
	open := r.open
	r.open = map[string]*Session{}
	r.mu.Unlock()
	for _, s := range open {
		s.close()
	}
}

// ClearCart empties the user's cart after a successful payment. An open session
// clears through its mirror so local state follows; otherwise the store is cleared directly.
func (r *Sessions) ClearCart(ctx context.Context, userID, orderID string) error {
	r.mu.Lock()
	s, ok := r.open[userID]
	r.mu.Unlock()

	var err error
	if ok {
		err = s.Cart.Clear(ctx)
	} else {
		err = r.carts.Clear(ctx, userID)
	}
	if err != nil {
		return err
	}
	logging.FromCtx(ctx).Info("cart cleared", "user_id", userID, "order_id", orderID)
	return nil
}

var _ CartClearer = (*Sessions)(nil)
