package entity

import "time"

const (
	PaymentRequestPending   int32 = 1
	PaymentRequestCompleted int32 = 10
	PaymentRequestFailed    int32 = 20
	PaymentRequestCanceled  int32 = 21
	PaymentRequestExpired   int32 = 30
)

// PaymentRequest is the durable record of one STK push attempt. The
// checkout request id is the only correlation key the gateway gives us,
// so the row must exist before initiation returns to the caller.
type PaymentRequest struct {
	ID uint64

	RequestID string
	MemberRef *string

	PhoneNumber      string
	Amount           int64
	Currency         string
	AccountReference string
	Description      string

	Gateway int32

	MerchantRequestID string
	CheckoutRequestID string

	Status     int32
	ResultCode *int32
	ResultDesc *string

	ReceiptNumber   *string
	TransactionDate *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
