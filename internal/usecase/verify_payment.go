package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/google/uuid"
)

// VerifyState is the per-session verification state of one order id.
type VerifyState int

const (
	VerifyNotStarted VerifyState = iota
	VerifyInFlight
	VerifyResolved
)

func (s VerifyState) String() string {
	switch s {
	case VerifyInFlight:
		return "in_flight"
	case VerifyResolved:
		return "resolved"
	default:
		return "not_started"
	}
}

type VerifierConfig struct {
	// MinDisplay paces the verification call for the UI; it is not a timeout.
	MinDisplay time.Duration
}

type Verifier struct {
	orders  OrderRepo
	gw      PaymentGateway
	unlock  *AssetUnlocker
	cart    CartClearer // optional
	events  OrderEvents // optional
	metrics Recorder
	cfg     VerifierConfig
	now     func() time.Time
}

func NewVerifier(orders OrderRepo, gw PaymentGateway, unlock *AssetUnlocker, cart CartClearer, events OrderEvents, metrics Recorder, cfg VerifierConfig) *Verifier {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Verifier{
		orders:  orders,
		gw:      gw,
		unlock:  unlock,
		cart:    cart,
		events:  events,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
	}
}

func verifyScope(userID string) string { return "verify:" + userID }

// Verify drives the order to a terminal status from the gateway's report.
// The latch admits one call per session and order id: a concurrent call gets
// ErrVerificationInFlight, a later one gets the stored order without a gateway query.
func (v *Verifier) Verify(ctx context.Context, latch IdempotencyStore, userID, orderID string) (*domain.Order, error) {
	if orderID == "" {
		return nil, domain.ErrOrderNotFound
	}
	scope := verifyScope(userID)
	if _, ok, err := latch.Recall(ctx, scope, orderID); err != nil {
		return nil, asTransport("read verification latch", err)
	} else if ok {
		return v.lookup(ctx, userID, orderID)
	}

	locked, err := latch.TryLock(ctx, scope, orderID)
	if err != nil {
		return nil, asTransport("acquire verification latch", err)
	}
	if !locked {
		return nil, domain.ErrVerificationInFlight
	}

	start := v.now()
	order, err := v.verify(ctx, userID, orderID)
	v.pace(ctx, start)
	if err != nil {
		_ = latch.Release(ctx, scope, orderID)
		return nil, err
	}
	if err := latch.Remember(ctx, scope, orderID, string(order.Status)); err != nil {
		logging.FromCtx(ctx).Warn("could not remember verification", "order_id", orderID, "err", err)
	}
	return order, nil
}

func (v *Verifier) verify(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := v.lookup(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return order, nil
	}
	return v.Resolve(ctx, order)
}

// lookup hides orders owned by someone else behind the same not-found error.
func (v *Verifier) lookup(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := v.orders.GetByID(ctx, orderID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, asTransport("load order", err)
	}
	if order.UserID != userID {
		logging.FromCtx(ctx).Warn("order owner mismatch", "order_id", orderID, "user_id", userID)
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

// Resolve queries the gateway once and writes the terminal status. Any query
// failure resolves to FAILED. When another writer got there first the stored
// record is returned untouched.
func (v *Verifier) Resolve(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	log := logging.FromCtx(ctx).With("order_id", order.ID, "user_id", order.UserID)

	st, qerr := v.gw.GetOrderStatus(ctx, order.ID)
	now := v.now().UTC()

	var apply func(o *domain.Order) error
	if qerr == nil && st.Paid() {
		items := v.unlock.Unlock(ctx, order.Items)
		apply = func(o *domain.Order) error { return o.MarkSuccess(items, now) }
	} else {
		reason := failureReason(st, qerr)
		log.Warn("payment not confirmed", "reason", reason)
		apply = func(o *domain.Order) error { return o.MarkFailed(reason, now) }
	}

	stored, applied, err := v.orders.UpdateIf(ctx, order.ID, domain.StatusPending, apply)
	if err != nil {
		return nil, asTransport("resolve order", err)
	}
	if !applied {
		log.Info("order already resolved", "status", stored.Status)
		return stored, nil
	}
	log.Info("order resolved", "status", stored.Status)
	v.afterResolve(ctx, stored)
	return stored, nil
}

func (v *Verifier) afterResolve(ctx context.Context, o *domain.Order) {
	log := logging.FromCtx(ctx)
	v.metrics.VerificationResolved(string(o.Status))

	if o.Status == domain.StatusSuccess && v.cart != nil {
		if err := v.cart.ClearCart(ctx, o.UserID, o.ID); err != nil {
			log.Warn("cart clear signal failed", "order_id", o.ID, "err", err)
		}
	}
	if v.events != nil {
		msg := OrderStatusChangedMsg{
			EventID:    uuid.NewString(),
			OrderID:    o.ID,
			UserID:     o.UserID,
			Amount:     o.Amount.StringFixed(2),
			Status:     string(o.Status),
			Reason:     o.FailureReason,
			OccurredAt: v.now().UTC(),
		}
		if err := v.events.PublishStatusChanged(ctx, msg); err != nil {
			log.Warn("status event not published", "order_id", o.ID, "err", err)
		}
	}
}

func (v *Verifier) pace(ctx context.Context, start time.Time) {
	remain := v.cfg.MinDisplay - v.now().Sub(start)
	if remain <= 0 {
		return
	}
	t := time.NewTimer(remain)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func failureReason(st GatewayStatus, qerr error) string {
	if qerr != nil {
		var de *domain.Error
		if errors.As(qerr, &de) && de.Kind == domain.KindBusiness && de.Msg != "" {
			return de.Msg
		}
		return qerr.Error()
	}
	if st.Reason != "" {
		return st.Reason
	}
	return fmt.Sprintf("payment not completed (order_status=%s, payment_status=%s)", st.OrderStatus, st.PaymentStatus)
}
