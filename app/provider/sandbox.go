package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SandboxGateway is the demo variant: it accepts pushes without touching the
// network and answers status queries for the ids it issued. Selected by
// configuration so environments without gateway credentials still exercise
// the full flow. It never produces callbacks; the reconcile job is what
// completes its payments.
type SandboxGateway struct {
	mu    sync.Mutex
	known map[string]time.Time
}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{known: map[string]time.Time{}}
}

func (g *SandboxGateway) Code() int32 {
	return GatewaySandbox
}

func (g *SandboxGateway) InitiateSTKPush(_ context.Context, input *STKPushInput) (*STKPushOutput, error) {
	if input.Amount < 1 {
		return nil, fmt.Errorf("%w: amount must be at least 1", ErrPaymentRejected)
	}

	checkoutID := "ws_CO_" + time.Now().Format("02012006150405") + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

	g.mu.Lock()
	g.known[checkoutID] = time.Now()
	g.mu.Unlock()

	return &STKPushOutput{
		MerchantRequestID:   uuid.NewString(),
		CheckoutRequestID:   checkoutID,
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}, nil
}

func (g *SandboxGateway) QueryStatus(_ context.Context, checkoutRequestID string) (*StatusOutput, error) {
	g.mu.Lock()
	_, ok := g.known[checkoutRequestID]
	g.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, checkoutRequestID)
	}

	return &StatusOutput{
		ResultCode: "0",
		ResultDesc: "The service request is processed successfully.",
	}, nil
}
