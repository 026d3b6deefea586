package entity

import "time"

const (
	MpesaCallbackProcessed int32 = 10
	MpesaCallbackRejected  int32 = 20
)

// MpesaCallback is the raw audit row for every delivery the gateway makes,
// accepted or not. Kept even when no payment request matches the ids.
type MpesaCallback struct {
	ID uint64

	PaymentRequestID *uint64

	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int32
	ResultDesc        string
	PayloadJSON       string

	Status int32
	Error  *string

	CreatedAt time.Time
}
