package usecase

import (
	"context"
	"fmt"
	"time"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/logging"
)

type SweepMode string

const (
	SweepOff    SweepMode = "off"
	SweepFail   SweepMode = "fail"
	SweepVerify SweepMode = "verify"
)

func ParseSweepMode(s string) (SweepMode, error) {
	switch SweepMode(s) {
	case "", SweepOff:
		return SweepOff, nil
	case SweepFail, SweepVerify:
		return SweepMode(s), nil
	}
	return "", fmt.Errorf("unknown reconcile mode %q", s)
}

const staleReason = "payment not completed"

type SweepResult struct {
	Scanned  int
	Stale    int
	Resolved int
}

// Sweeper settles orders left PENDING after the buyer never came back.
type Sweeper struct {
	orders   OrderRepo
	verifier *Verifier // needed for SweepVerify
	mode     SweepMode
	timeout  time.Duration
}

func NewSweeper(orders OrderRepo, verifier *Verifier, mode SweepMode, timeout time.Duration) *Sweeper {
	return &Sweeper{orders: orders, verifier: verifier, mode: mode, timeout: timeout}
}

func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult
	if s.mode == SweepOff || s.mode == "" {
		return res, nil
	}
	all, err := s.orders.ListAll(ctx)
	if err != nil {
		return res, asTransport("list orders", err)
	}
	log := logging.FromCtx(ctx)
	cutoff := now.Add(-s.timeout)
	for i := range all {
		o := &all[i]
		res.Scanned++
		if o.Status != domain.StatusPending || o.CreatedAt.After(cutoff) {
			continue
		}
		res.Stale++
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var stored *domain.Order
		switch s.mode {
		case SweepVerify:
			stored, err = s.verifier.Resolve(ctx, o)
		default:
			stored, err = s.fail(ctx, o.ID, now)
		}
		if err != nil {
			log.Warn("stale order not settled", "order_id", o.ID, "err", err)
			continue
		}
		if stored.Status.IsTerminal() {
			res.Resolved++
		}
	}
	if res.Stale > 0 {
		log.Info("pending orders swept", "mode", s.mode, "scanned", res.Scanned, "stale", res.Stale, "resolved", res.Resolved)
	}
	return res, nil
}

func (s *Sweeper) fail(ctx context.Context, id string, now time.Time) (*domain.Order, error) {
	stored, applied, err := s.orders.UpdateIf(ctx, id, domain.StatusPending, func(o *domain.Order) error {
		return o.MarkFailed(staleReason, now.UTC())
	})
	if err != nil {
		return nil, asTransport("fail stale order", err)
	}
	if applied && s.verifier != nil {
		s.verifier.afterResolve(ctx, stored)
	}
	return stored, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, every time.Duration) {
	if s.mode == SweepOff || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if _, err := s.Sweep(ctx, now); err != nil {
				logging.FromCtx(ctx).Warn("sweep failed", "err", err)
			}
		}
	}
}
