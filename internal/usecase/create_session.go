package usecase

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/logging"
	"github.com/aq2208/pixelmart-api/internal/pricing"
	"github.com/shopspring/decimal"
)

type SessionConfig struct {
	FrontendOrigin string
	NotifyURL      string
	Currency       string
}

type CreateSessionInput struct {
	OrderID     string
	UserID      string
	Amount      decimal.Decimal
	Customer    domain.Customer
	Description string
}

// SessionHandle is what the buyer's browser needs to start the hosted checkout.
type SessionHandle struct {
	OrderID   string `json:"orderId"`
	SessionID string `json:"paymentSessionId"`
	ReturnURL string `json:"returnUrl"`
}

type SessionInitiator struct {
	gw      PaymentGateway
	orders  OrderRepo
	cfg     SessionConfig
	metrics Recorder
}

func NewSessionInitiator(gw PaymentGateway, orders OrderRepo, cfg SessionConfig, metrics Recorder) *SessionInitiator {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &SessionInitiator{gw: gw, orders: orders, cfg: cfg, metrics: metrics}
}

// ReturnURL is where the gateway sends the buyer back; it carries the order id.
func (s *SessionInitiator) ReturnURL(orderID string) string {
	return strings.TrimRight(s.cfg.FrontendOrigin, "/") + "/payment-success?order_id=" + url.QueryEscape(orderID)
}

// CreateSession asks the gateway for a payment session. The amount is checked
// again here because the order may have come from anywhere.
func (s *SessionInitiator) CreateSession(ctx context.Context, in CreateSessionInput) (SessionHandle, error) {
	amount := pricing.Round2(in.Amount)
	if amount.LessThan(domain.MinOrderAmount) {
		s.metrics.SessionCreated("rejected_amount")
		return SessionHandle{}, domain.ErrBelowMinimumAmount
	}

	ret := s.ReturnURL(in.OrderID)
	resp, err := s.gw.CreateSession(ctx, SessionRequest{
		OrderID:     in.OrderID,
		Amount:      amount,
		Currency:    s.cfg.Currency,
		CustomerID:  in.UserID,
		Customer:    in.Customer,
		Description: in.Description,
		ReturnURL:   ret,
		NotifyURL:   s.cfg.NotifyURL,
	})
	if err != nil {
		kind := domain.KindOf(err)
		s.metrics.SessionCreated(kind.String())
		logging.FromCtx(ctx).Error("payment session failed", "order_id", in.OrderID, "kind", kind.String(), "err", err)
		if kind == 0 {
			return SessionHandle{}, domain.Transport("create payment session", err)
		}
		return SessionHandle{}, err
	}
	if resp.SessionID == "" {
		s.metrics.SessionCreated(domain.KindBusiness.String())
		msg := resp.Message
		if msg == "" {
			msg = "payment session was not created"
		}
		return SessionHandle{}, domain.Business(msg, nil)
	}
	s.metrics.SessionCreated("ok")

	s.recordSession(ctx, in.OrderID, resp.SessionID)
	return SessionHandle{OrderID: in.OrderID, SessionID: resp.SessionID, ReturnURL: ret}, nil
}

// recordSession is best effort: the session stays usable even if the note is lost.
func (s *SessionInitiator) recordSession(ctx context.Context, orderID, sessionID string) {
	if s.orders == nil {
		return
	}
	_, _, err := s.orders.UpdateIf(ctx, orderID, domain.StatusPending, func(o *domain.Order) error {
		o.PaymentSessionID = sessionID
		return nil
	})
	if err != nil {
		logging.FromCtx(ctx).Warn("could not record payment session", "order_id", orderID, "err", err)
	}
}

// Description summarises the purchased products for the gateway.
func Description(items []domain.LineItem) string {
	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.Name)
	}
	d := strings.Join(names, ", ")
	if len(d) > 200 {
		cut := 197
		for cut > 0 && !utf8.RuneStart(d[cut]) {
			cut--
		}
		d = d[:cut] + "..."
	}
	return d
}
