package usecase

import (
	"context"
	"net/url"
	"strings"
	"time"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/logging"
)

type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type DownloadConfig struct {
	PublicBaseURL string
	TTL           time.Duration
}

// DownloadAuthorizer hands out short-lived links to assets the buyer has paid for.
type DownloadAuthorizer struct {
	orders OrderRepo
	signer URLSigner
	sealer Sealer // optional
	cfg    DownloadConfig
}

func NewDownloadAuthorizer(orders OrderRepo, signer URLSigner, sealer Sealer, cfg DownloadConfig) *DownloadAuthorizer {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	return &DownloadAuthorizer{orders: orders, signer: signer, sealer: sealer, cfg: cfg}
}

// Authorize finds a SUCCESS order of userID that unlocked productID and signs a link for it.
func (d *DownloadAuthorizer) Authorize(ctx context.Context, userID, productID string) (DownloadLink, error) {
	orders, err := d.orders.ListByUser(ctx, userID)
	if err != nil {
		return DownloadLink{}, asTransport("list orders", err)
	}
	for _, o := range orders {
		if _, ok := unlockedItem(&o, productID); !ok {
			continue
		}
		token, exp, err := d.signer.Sign(DownloadClaims{UserID: userID, OrderID: o.ID, ProductID: productID}, d.cfg.TTL)
		if err != nil {
			return DownloadLink{}, err
		}
		u := strings.TrimRight(d.cfg.PublicBaseURL, "/") + "/v1/downloads/fetch?token=" + url.QueryEscape(token)
		return DownloadLink{URL: u, ExpiresAt: exp}, nil
	}
	return DownloadLink{}, domain.ErrDownloadUnavailable
}

// Resolve checks a signed token against the current order and returns the asset reference.
func (d *DownloadAuthorizer) Resolve(ctx context.Context, token string) (string, error) {
	claims, err := d.signer.Parse(token)
	if err != nil {
		logging.FromCtx(ctx).Warn("download token rejected", "err", err)
		return "", domain.ErrDownloadLinkInvalid
	}
	o, err := d.orders.GetByID(ctx, claims.OrderID)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return "", domain.ErrDownloadUnavailable
		}
		return "", asTransport("load order", err)
	}
	if o.UserID != claims.UserID {
		return "", domain.ErrDownloadUnavailable
	}
	it, ok := unlockedItem(o, claims.ProductID)
	if !ok {
		return "", domain.ErrDownloadUnavailable
	}
	ref := *it.DownloadRef
	if d.sealer != nil {
		if ref, err = d.sealer.Open(ref); err != nil {
			return "", domain.Transport("open download reference", err)
		}
	}
	return ref, nil
}

func unlockedItem(o *domain.Order, productID string) (domain.LineItem, bool) {
	if o.Status != domain.StatusSuccess {
		return domain.LineItem{}, false
	}
	for _, it := range o.Items {
		if it.ProductID == productID && it.DownloadRef != nil && *it.DownloadRef != "" {
			return it, true
		}
	}
	return domain.LineItem{}, false
}
