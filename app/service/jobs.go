package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chamavault/ms-go-mpesa/app/entity"
	"github.com/chamavault/ms-go-mpesa/app/provider"
)

// RunReconcileBatch polls the gateway for pending requests that have not
// been touched for a while, applying terminal results whose callbacks never
// arrived. Still-processing answers leave the request pending for the next
// pass.
func (s *PaymentService) RunReconcileBatch(ctx context.Context) error {
	now := time.Now().UTC()
	before := now.Add(-s.paymentsCfg.ReconcileStaleAfter)
	items, err := s.requestRepo.ListStalePending(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, request := range items {
		if request == nil || strings.TrimSpace(request.CheckoutRequestID) == "" {
			continue
		}

		gateway, err := s.gateways.Get(request.Gateway)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		output, err := gateway.QueryStatus(ctx, request.CheckoutRequestID)
		if err != nil {
			if errors.Is(err, provider.ErrRequestNotFound) {
				// the gateway no longer knows the id; the expire job will
				// eventually close the request out
				continue
			}
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if output.Pending {
			continue
		}

		if err := s.applyStatusResult(ctx, request, output, now); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

// RunExpirePendingBatch closes out pushes old enough that the gateway will
// never deliver a callback for them (an unanswered PIN prompt dies within
// a couple of minutes).
func (s *PaymentService) RunExpirePendingBatch(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.paymentsCfg.PendingTimeout)
	items, err := s.requestRepo.ListExpiredPending(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, request := range items {
		if request == nil || request.Status != entity.PaymentRequestPending {
			continue
		}

		oldStatus := request.Status
		request.Status = entity.PaymentRequestExpired
		request.UpdatedAt = now

		if err := s.requestRepo.Update(ctx, request); err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
			PaymentRequestID: request.ID,
			EventType:        "payment_request_expired",
			OldStatus:        &oldStatus,
			NewStatus:        request.Status,
			CreatedAt:        now,
		})
	}

	return firstErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
