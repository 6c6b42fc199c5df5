package usecase

import (
	"context"
	"testing"
	"time"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSweepMode(t *testing.T) {
	for in, want := range map[string]SweepMode{"": SweepOff, "off": SweepOff, "fail": SweepFail, "verify": SweepVerify} {
		got, err := ParseSweepMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseSweepMode("delete")
	assert.Error(t, err)
}

func sweepOrders(now time.Time) *memOrders {
	orders := newMemOrders()
	orders.put(domain.Order{ID: "old", UserID: "u1", Status: domain.StatusPending, CreatedAt: now.Add(-2 * time.Hour)})
	orders.put(domain.Order{ID: "fresh", UserID: "u1", Status: domain.StatusPending, CreatedAt: now.Add(-time.Minute)})
	orders.put(domain.Order{ID: "done", UserID: "u1", Status: domain.StatusSuccess, CreatedAt: now.Add(-3 * time.Hour)})
	return orders
}

func TestSweep_FailModeMarksStaleOrders(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	orders := sweepOrders(now)
	events := &recordingEvents{}
	v := NewVerifier(orders, &fakeGateway{}, NewAssetUnlocker(&memCatalog{}, nil), nil, events, nil, VerifierConfig{})

	res, err := NewSweeper(orders, v, SweepFail, time.Hour).Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 3, Stale: 1, Resolved: 1}, res)

	old, _ := orders.GetByID(context.Background(), "old")
	assert.Equal(t, domain.StatusFailed, old.Status)
	assert.Equal(t, staleReason, old.FailureReason)
	fresh, _ := orders.GetByID(context.Background(), "fresh")
	assert.Equal(t, domain.StatusPending, fresh.Status)
	assert.Len(t, events.msgs, 1)
}

func TestSweep_VerifyModeAsksGateway(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	orders := sweepOrders(now)
	gw := &fakeGateway{status: GatewayStatus{OrderStatus: "PAID"}}
	v := NewVerifier(orders, gw, NewAssetUnlocker(&memCatalog{}, nil), nil, nil, nil, VerifierConfig{})

	res, err := NewSweeper(orders, v, SweepVerify, time.Hour).Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resolved)
	assert.EqualValues(t, 1, gw.queries.Load())

	old, _ := orders.GetByID(context.Background(), "old")
	assert.Equal(t, domain.StatusSuccess, old.Status)
}

func TestSweep_OffDoesNothing(t *testing.T) {
	now := time.Now()
	orders := sweepOrders(now)
	res, err := NewSweeper(orders, nil, SweepOff, time.Hour).Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, res)
	assert.Zero(t, orders.writeCount())
}
