package entity

import "time"

type PaymentEvent struct {
	ID uint64

	PaymentRequestID uint64

	EventType string

	OldStatus *int32
	NewStatus int32

	PayloadJSON *string

	CreatedAt time.Time
}
