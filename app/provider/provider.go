package provider

import (
	"context"
	"errors"
)

const (
	GatewayDaraja  int32 = 1
	GatewaySandbox int32 = 2
)

var (
	ErrGatewayNotSupported  = errors.New("gateway is not supported")
	ErrAuthenticationFailed = errors.New("gateway authentication failed")
	ErrNetwork              = errors.New("gateway unreachable")
	ErrPaymentRejected      = errors.New("payment rejected by gateway")
	ErrRequestNotFound      = errors.New("checkout request not found")
)

// STKPushInput carries a payment already validated by the caller: the phone
// number is canonical 254-prefixed and the amount is >= 1.
type STKPushInput struct {
	PhoneNumber      string
	Amount           int64
	AccountReference string
	Description      string
}

// STKPushOutput is the synchronous acknowledgement. It means the gateway
// accepted the request for asynchronous processing, not that payment
// succeeded.
type STKPushOutput struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseDescription string
	CustomerMessage     string
}

// StatusOutput is the gateway's current view of a previously initiated
// request. Pending means the caller may retry after a delay; a terminal
// result carries the gateway's code and description.
type StatusOutput struct {
	Pending    bool
	ResultCode string
	ResultDesc string
}

type Gateway interface {
	Code() int32
	InitiateSTKPush(ctx context.Context, input *STKPushInput) (*STKPushOutput, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*StatusOutput, error)
}
