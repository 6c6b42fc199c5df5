package gateway

import (
	"context"
	"strings"
	"time"

	domain "github.com/aq2208/pixelmart-api/internal/entity"
	"github.com/aq2208/pixelmart-api/internal/usecase"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	ServiceName         = "pixelmart.payment.v1.PaymentGateway"
	createOrderMethod   = "/" + ServiceName + "/CreateOrder"
	getOrderMethod      = "/" + ServiceName + "/GetOrder"
	defaultCallDeadline = 10 * time.Second
)

type Credentials struct {
	ClientID     string
	ClientSecret string
	APIVersion   string
}

// Client implements usecase.PaymentGateway against the gateway bridge.
type Client struct {
	conn    grpc.ClientConnInterface
	creds   Credentials
	timeout time.Duration
	ua      string
}

func NewClientFromConn(conn grpc.ClientConnInterface, creds Credentials, timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = defaultCallDeadline
	}
	return &Client{conn: conn, creds: creds, timeout: timeout, ua: userAgent}
}

func (c *Client) CreateSession(ctx context.Context, req usecase.SessionRequest) (usecase.SessionResponse, error) {
	if c.creds.ClientID == "" || c.creds.ClientSecret == "" {
		return usecase.SessionResponse{}, domain.Auth("payment gateway credentials are not configured", nil)
	}
	in := CreateOrderRequest{
		OrderID:       req.OrderID,
		OrderAmount:   req.Amount.InexactFloat64(),
		OrderCurrency: req.Currency,
		CustomerDetails: CustomerDetails{
			CustomerID:    req.CustomerID,
			CustomerName:  req.Customer.Name,
			CustomerEmail: req.Customer.Email,
			CustomerPhone: req.Customer.Phone,
		},
		OrderMeta: OrderMeta{ReturnURL: req.ReturnURL, NotifyURL: req.NotifyURL},
		OrderNote: req.Description,
	}
	var out CreateOrderResponse
	if err := c.invoke(ctx, createOrderMethod, &in, &out); err != nil {
		return usecase.SessionResponse{}, classify("create payment session", err)
	}
	return usecase.SessionResponse{SessionID: out.PaymentSessionID, Message: out.Message}, nil
}

func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (usecase.GatewayStatus, error) {
	if c.creds.ClientID == "" || c.creds.ClientSecret == "" {
		return usecase.GatewayStatus{}, domain.Auth("payment gateway credentials are not configured", nil)
	}
	var out GetOrderResponse
	if err := c.invoke(ctx, getOrderMethod, &GetOrderRequest{OrderID: orderID}, &out); err != nil {
		return usecase.GatewayStatus{}, classify("query order status", err)
	}
	return usecase.GatewayStatus{
		OrderStatus:   strings.ToUpper(out.OrderStatus),
		PaymentStatus: strings.ToUpper(out.PaymentStatus),
		Reason:        out.PaymentMessage,
	}, nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	// ensure per-call timeout if caller didn't set one
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	md := []string{"x-client-id", c.creds.ClientID, "x-client-secret", c.creds.ClientSecret}
	if c.creds.APIVersion != "" {
		md = append(md, "x-api-version", c.creds.APIVersion)
	}
	if c.ua != "" {
		md = append(md, "user-agent", c.ua)
	}
	ctx = metadata.AppendToOutgoingContext(ctx, md...)

	return c.conn.Invoke(ctx, method, in, out, grpc.CallContentSubtype(codecName))
}

// classify maps gRPC status codes onto the domain error kinds.
func classify(op string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return domain.Transport(op, err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return domain.Auth("payment gateway rejected the credentials", err)
	case codes.InvalidArgument, codes.FailedPrecondition, codes.AlreadyExists, codes.OutOfRange:
		return domain.Business(st.Message(), err)
	case codes.NotFound:
		return domain.Business("order not found at payment gateway", err)
	default:
		// Unavailable, DeadlineExceeded, Canceled, Internal, Unknown, ...
		return domain.Transport(op, err)
	}
}

var _ usecase.PaymentGateway = (*Client)(nil)
