package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/pricing"
	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
)

type checkoutTestContext struct {
	subtotal decimal.Decimal
	coupon   *domain.Coupon
	priced   pricing.Snapshot

	orders   *memOrders
	gw       *fakeGateway
	catalog  *memCatalog
	verifier *Verifier
	seen     []*domain.Order
	err      error
}

func (c *checkoutTestContext) reset() {
	c.subtotal = decimal.Zero
	c.coupon = nil
	c.priced = pricing.Snapshot{}
	c.orders = newMemOrders()
	c.gw = &fakeGateway{sessionResp: SessionResponse{SessionID: "sess_1"}}
	c.catalog = &memCatalog{products: map[string]domain.Product{}, fail: map[string]bool{}}
	c.verifier = NewVerifier(c.orders, c.gw, NewAssetUnlocker(c.catalog, nil), nil, nil, nil, VerifierConfig{})
	c.seen = nil
	c.err = nil
}

func (c *checkoutTestContext) aCartWithSubtotal(amount string) error {
	d, err := decimal.NewFromString(amount)
	c.subtotal = d
	return err
}

func (c *checkoutTestContext) aCouponWorth(kind, value string) error {
	v, err := decimal.NewFromString(value)
	if err != nil {
		return err
	}
	c.coupon = &domain.Coupon{Code: "FEATURE", Type: domain.DiscountType(kind), Value: v, Active: true}
	return nil
}

func (c *checkoutTestContext) theCartIsPriced() error {
	c.priced = pricing.Compute([]pricing.Line{{UnitPrice: c.subtotal, Quantity: 1}}, c.coupon)
	return nil
}

func (c *checkoutTestContext) theDiscountIs(want string) error {
	return equalMoney("discount", want, c.priced.Discount)
}

func (c *checkoutTestContext) theTotalIs(want string) error {
	return equalMoney("total", want, c.priced.Total)
}

func equalMoney(what, want string, got decimal.Decimal) error {
	if got.StringFixed(2) != want {
		return fmt.Errorf("%s: want %s, got %s", what, want, got.StringFixed(2))
	}
	return nil
}

func (c *checkoutTestContext) aPaymentSessionIsRequestedFor(amount string) error {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return err
	}
	s := NewSessionInitiator(c.gw, nil, SessionConfig{FrontendOrigin: "https://shop.example"}, nil)
	_, c.err = s.CreateSession(context.Background(), CreateSessionInput{
		OrderID:  "PM1",
		UserID:   "u1",
		Amount:   d,
		Customer: domain.Customer{Name: "Asha", Email: "asha@example.com", Phone: "+919876543210"},
	})
	return nil
}

func (c *checkoutTestContext) theRequestIsRejectedAsInvalid() error {
	if !domain.IsKind(c.err, domain.KindValidation) {
		return fmt.Errorf("want a validation error, got %v", c.err)
	}
	return nil
}

func (c *checkoutTestContext) theGatewayWasNotCalled() error {
	if n := c.gw.sessionCalls(); n != 0 {
		return fmt.Errorf("gateway called %d times", n)
	}
	return nil
}

func (c *checkoutTestContext) aPendingOrder(orderID, userID, products string) error {
	var items []domain.LineItem
	total := decimal.Zero
	for _, pid := range strings.Split(products, ",") {
		price := decimal.NewFromInt(100)
		c.catalog.products[pid] = domain.Product{ID: pid, Name: pid, Price: price, DownloadRef: "https://cdn.example/" + pid + ".zip"}
		items = append(items, domain.LineItem{ProductID: pid, Name: pid, UnitPrice: price, Quantity: 1})
		total = total.Add(price)
	}
	c.orders.put(domain.Order{
		ID:        orderID,
		UserID:    userID,
		Status:    domain.StatusPending,
		Amount:    total,
		Items:     items,
		CreatedAt: time.Now().Add(-time.Minute),
	})
	return nil
}

func (c *checkoutTestContext) theCatalogCannotReadProduct(pid string) error {
	c.catalog.fail[pid] = true
	return nil
}

func (c *checkoutTestContext) theGatewayReports(orderStatus, paymentStatus string) error {
	c.gw.status = GatewayStatus{OrderStatus: orderStatus, PaymentStatus: paymentStatus}
	return nil
}

func (c *checkoutTestContext) verifies(userID, orderID string) error {
	o, err := c.verifier.Verify(context.Background(), NewMemoryLatch(), userID, orderID)
	if err != nil {
		return err
	}
	c.seen = append(c.seen, o)
	return nil
}

func (c *checkoutTestContext) verifiesFromTabsAtOnce(userID, orderID string, tabs int) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < tabs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := c.verifier.Verify(context.Background(), NewMemoryLatch(), userID, orderID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			c.seen = append(c.seen, o)
		}()
	}
	wg.Wait()
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (c *checkoutTestContext) stored(orderID string) (*domain.Order, error) {
	return c.orders.GetByID(context.Background(), orderID)
}

func (c *checkoutTestContext) orderIs(orderID, status string) error {
	o, err := c.stored(orderID)
	if err != nil {
		return err
	}
	if string(o.Status) != status {
		return fmt.Errorf("order %s: want %s, got %s", orderID, status, o.Status)
	}
	return nil
}

func (c *checkoutTestContext) everyProductHasADownloadReference(orderID string) error {
	o, err := c.stored(orderID)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		if it.DownloadRef == nil {
			return fmt.Errorf("product %s has no download reference", it.ProductID)
		}
	}
	return nil
}

func (c *checkoutTestContext) productDownloadReference(pid, orderID string, want bool) error {
	o, err := c.stored(orderID)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		if it.ProductID == pid {
			if (it.DownloadRef != nil) != want {
				return fmt.Errorf("product %s: download reference present=%v", pid, it.DownloadRef != nil)
			}
			return nil
		}
	}
	return fmt.Errorf("product %s not on order %s", pid, orderID)
}

func (c *checkoutTestContext) orderWasWrittenOnce(string) error {
	if n := c.orders.writeCount(); n != 1 {
		return fmt.Errorf("want 1 write, got %d", n)
	}
	return nil
}

func (c *checkoutTestContext) everyTabSawTheSameVerifiedOrder() error {
	if len(c.seen) < 2 {
		return fmt.Errorf("want results from every tab, got %d", len(c.seen))
	}
	first := c.seen[0]
	for _, o := range c.seen[1:] {
		if o.Status != first.Status || !o.Amount.Equal(first.Amount) {
			return fmt.Errorf("tabs disagree: %s/%s vs %s/%s", first.Status, first.Amount, o.Status, o.Amount)
		}
		if o.VerifiedAt == nil || first.VerifiedAt == nil || !o.VerifiedAt.Equal(*first.VerifiedAt) {
			return fmt.Errorf("tabs disagree on verification time")
		}
	}
	return nil
}

func InitializeCheckoutScenario(ctx *godog.ScenarioContext) {
	tc := &checkoutTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a cart with subtotal "([^"]*)"$`, tc.aCartWithSubtotal)
	ctx.Step(`^a "([^"]*)" coupon worth "([^"]*)"$`, tc.aCouponWorth)
	ctx.Step(`^a pending order "([^"]*)" for "([^"]*)" with products "([^"]*)"$`, tc.aPendingOrder)
	ctx.Step(`^the catalog cannot read product "([^"]*)"$`, tc.theCatalogCannotReadProduct)
	ctx.Step(`^the gateway reports order status "([^"]*)" and payment status "([^"]*)"$`, tc.theGatewayReports)

	// When steps
	ctx.Step(`^the cart is priced$`, tc.theCartIsPriced)
	ctx.Step(`^a payment session is requested for "([^"]*)"$`, tc.aPaymentSessionIsRequestedFor)
	ctx.Step(`^"([^"]*)" verifies order "([^"]*)"$`, tc.verifies)
	ctx.Step(`^"([^"]*)" verifies order "([^"]*)" from another tab$`, tc.verifies)
	ctx.Step(`^"([^"]*)" verifies order "([^"]*)" from (\d+) tabs at once$`, tc.verifiesFromTabsAtOnce)

	// Then steps
	ctx.Step(`^the discount is "([^"]*)"$`, tc.theDiscountIs)
	ctx.Step(`^the total is "([^"]*)"$`, tc.theTotalIs)
	ctx.Step(`^the request is rejected as invalid$`, tc.theRequestIsRejectedAsInvalid)
	ctx.Step(`^the gateway was not called$`, tc.theGatewayWasNotCalled)
	ctx.Step(`^order "([^"]*)" is "([^"]*)"$`, tc.orderIs)
	ctx.Step(`^every product of order "([^"]*)" has a download reference$`, tc.everyProductHasADownloadReference)
	ctx.Step(`^product "([^"]*)" of order "([^"]*)" has a download reference$`, func(pid, oid string) error {
		return tc.productDownloadReference(pid, oid, true)
	})
	ctx.Step(`^product "([^"]*)" of order "([^"]*)" has no download reference$`, func(pid, oid string) error {
		return tc.productDownloadReference(pid, oid, false)
	})
	ctx.Step(`^order "([^"]*)" was written once$`, tc.orderWasWrittenOnce)
	ctx.Step(`^every tab saw the same verified order$`, tc.everyTabSawTheSameVerifiedOrder)
}

func TestCheckoutFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeCheckoutScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features/checkout.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
