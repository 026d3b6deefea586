package entity

import "time"

const TransactionStatusCompleted = "completed"

// Transaction is the ledger entry derived from a successful callback.
// checkout_request_id carries a unique key so that at-least-once delivery
// from the gateway cannot double-post.
type Transaction struct {
	ID uint64

	CheckoutRequestID string
	MemberRef         *string

	Amount      int64
	Currency    string
	Description string

	ReceiptNumber   string
	PhoneNumber     string
	TransactionDate time.Time

	Status string

	CreatedAt time.Time
}
