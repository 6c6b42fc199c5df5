package kafka

import (
	"context"
	"time"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/aq2208/pixelmart-api/internal/usecase"
)

// OrderStatusChangedHandler applies status events from any instance: it
// refreshes the status cache and, if this store still has the order PENDING,
// applies the same guarded transition the verifier uses.
type OrderStatusChangedHandler struct {
	Repo  usecase.OrderRepo
	Cache usecase.OrderCache // optional
}

func NewOrderStatusChangedHandler(repo usecase.OrderRepo, cache usecase.OrderCache) *OrderStatusChangedHandler {
	return &OrderStatusChangedHandler{Repo: repo, Cache: cache}
}

func (h *OrderStatusChangedHandler) Handle(ctx context.Context, ev usecase.OrderStatusChangedMsg) error {
	log := logging.FromCtx(ctx).With("order_id", ev.OrderID, "event_id", ev.EventID)

	// Map external status -> internal
	var newStatus domain.Status
	switch ev.Status {
	case string(domain.StatusSuccess):
		newStatus = domain.StatusSuccess
	case string(domain.StatusFailed):
		newStatus = domain.StatusFailed
	default:
		log.Warn("ignoring non-terminal status event", "status", ev.Status)
		return nil
	}

	at := ev.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	stored, applied, err := h.Repo.UpdateIf(ctx, ev.OrderID, domain.StatusPending, func(o *domain.Order) error {
		if newStatus == domain.StatusSuccess {
			// the publisher already wrote the unlocked items; keep what is stored
			return o.MarkSuccess(o.Items, at)
		}
		return o.MarkFailed(ev.Reason, at)
	})
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			log.Warn("status event for unknown order")
			return nil
		}
		return err
	}
	if applied {
		log.Info("order resolved from status event", "status", newStatus)
	} else if stored != nil && stored.Status != newStatus {
		log.Warn("status event disagrees with stored order", "stored", stored.Status, "event", newStatus)
	}

	// Cache best-effort
	if h.Cache != nil {
		st := usecase.CachedStatus{UserID: ev.UserID, Status: newStatus}
		if stored != nil {
			st = usecase.CachedStatus{UserID: stored.UserID, Status: stored.Status}
		}
		if err := h.Cache.SetStatus(ctx, ev.OrderID, st); err != nil {
			log.Warn("status cache write failed", "err", err)
		}
	}
	return nil
}
