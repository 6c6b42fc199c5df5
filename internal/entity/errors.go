package domain

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindTransport
	KindAuth
	KindBusiness
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindBusiness:
		return "business_rejection"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the typed error carried across use cases and adapters.
type Error struct {
	Kind  Kind
	Field string // set for validation errors
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	var s string
	switch {
	case e.Field != "":
		s = fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Msg)
	default:
		s = fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the buyer may simply try again.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport || e.Kind == KindBusiness
}

func Validation(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

func Transport(msg string, err error) *Error {
	return &Error{Kind: KindTransport, Msg: msg, Err: err}
}

func Auth(msg string, err error) *Error {
	return &Error{Kind: KindAuth, Msg: msg, Err: err}
}

func Business(msg string, err error) *Error {
	return &Error{Kind: KindBusiness, Msg: msg, Err: err}
}

func NotFound(msg string, err error) *Error {
	return &Error{Kind: KindNotFound, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsKind(err error, k Kind) bool { return KindOf(err) == k }

var (
	ErrTerminal             = errors.New("order already in a terminal status")
	ErrCouponNotFound       = NotFound("Invalid coupon code", nil)
	ErrCouponInactive       = NotFound("This coupon is no longer active", nil)
	ErrOrderNotFound        = NotFound("Order not found", nil)
	ErrProductNotFound      = NotFound("Product not found", nil)
	ErrBelowMinimumAmount   = Validation("amount", "order amount must be at least 1.00")
	ErrVerificationInFlight = errors.New("verification already in progress")
	ErrCheckoutInProgress   = errors.New("checkout already in progress")
	ErrDownloadUnavailable  = NotFound("Download not available", nil)
	ErrDownloadLinkInvalid  = Validation("token", "download link is invalid or expired")
)
