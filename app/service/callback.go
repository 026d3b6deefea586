package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chamavault/ms-go-mpesa/app/entity"
	"github.com/chamavault/ms-go-mpesa/app/repository"
	"github.com/chamavault/ms-go-mpesa/app/types"
)

// HandleMpesaCallback processes one gateway delivery. The contract with the
// gateway is at-least-once: every delivery is audited, the ledger write is
// keyed on checkout_request_id so replays are no-ops, and the caller must ack
// the gateway regardless of what this returns.
func (s *PaymentService) HandleMpesaCallback(ctx context.Context, req *types.MpesaCallbackRequest) error {
	now := time.Now().UTC()

	if !req.Parsed {
		s.persistRejectedCallback(ctx, req, "callback payload did not match the stkCallback envelope", now)
		return ErrCallbackRejected
	}

	cb := req.Callback
	if strings.TrimSpace(cb.CheckoutRequestID) == "" {
		s.persistRejectedCallback(ctx, req, "callback is missing CheckoutRequestID", now)
		return ErrCallbackRejected
	}

	request, err := s.requestRepo.FindByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if err != nil {
		return fmt.Errorf("%w: looking up payment request: %v", ErrPersistence, err)
	}

	// Audit first so a later storage failure cannot lose the delivery.
	audit := &entity.MpesaCallback{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		PayloadJSON:       req.PayloadJSON,
		Status:            entity.MpesaCallbackProcessed,
		CreatedAt:         now,
	}
	if request != nil {
		requestID := request.ID
		audit.PaymentRequestID = &requestID
	}
	if err := s.callbackRepo.Create(ctx, audit); err != nil {
		return fmt.Errorf("%w: storing callback audit row: %v", ErrPersistence, err)
	}

	if cb.ResultCode == 0 {
		if err := s.recordTransaction(ctx, request, &cb, req.PayloadJSON, now); err != nil {
			return err
		}
	}

	if request != nil {
		if err := s.applyCallbackResult(ctx, request, &cb, now); err != nil {
			return err
		}
	}

	return nil
}

func (s *PaymentService) recordTransaction(ctx context.Context, request *entity.PaymentRequest, cb *types.StkCallback, payloadJSON string, now time.Time) error {
	meta := cb.Metadata()

	amount := meta.Amount
	description := "M-Pesa deposit"
	var memberRef *string
	if request != nil {
		if amount == 0 {
			amount = request.Amount
		}
		if strings.TrimSpace(request.Description) != "" {
			description = request.Description
		}
		memberRef = request.MemberRef
	}
	if meta.ReceiptNumber != "" {
		description = description + " - " + meta.ReceiptNumber
	}

	transactionDate := meta.TransactionDate
	if transactionDate.IsZero() {
		transactionDate = now
	}

	transaction := &entity.Transaction{
		CheckoutRequestID: cb.CheckoutRequestID,
		MemberRef:         memberRef,
		Amount:            amount,
		Currency:          currencyKES,
		Description:       description,
		ReceiptNumber:     meta.ReceiptNumber,
		PhoneNumber:       meta.PhoneNumber,
		TransactionDate:   transactionDate,
		Status:            entity.TransactionStatusCompleted,
		CreatedAt:         now,
	}

	if err := s.txRepo.Create(ctx, transaction); err != nil {
		if errors.Is(err, repository.ErrTransactionAlreadyExists) {
			// replayed delivery; the ledger already has this payment
			return nil
		}
		return fmt.Errorf("%w: storing transaction: %v", ErrPersistence, err)
	}

	return nil
}

func (s *PaymentService) applyCallbackResult(ctx context.Context, request *entity.PaymentRequest, cb *types.StkCallback, now time.Time) error {
	newStatus := statusForResultCode(cb.ResultCode)
	if request.Status == newStatus {
		return nil
	}

	meta := cb.Metadata()

	oldStatus := request.Status
	resultCode := cb.ResultCode
	request.Status = newStatus
	request.ResultCode = &resultCode
	request.ResultDesc = normalizeOptionalString(cb.ResultDesc)
	request.ReceiptNumber = normalizeOptionalString(meta.ReceiptNumber)
	if !meta.TransactionDate.IsZero() {
		transactionDate := meta.TransactionDate
		request.TransactionDate = &transactionDate
	}
	request.UpdatedAt = now

	if err := s.requestRepo.Update(ctx, request); err != nil {
		return fmt.Errorf("%w: updating payment request: %v", ErrPersistence, err)
	}

	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentRequestID: request.ID,
		EventType:        "callback_received",
		OldStatus:        &oldStatus,
		NewStatus:        request.Status,
		CreatedAt:        now,
	})

	return nil
}

func (s *PaymentService) persistRejectedCallback(ctx context.Context, req *types.MpesaCallbackRequest, reason string, now time.Time) {
	trimmedErr := truncate(reason, 1024)
	if err := s.callbackRepo.Create(ctx, &entity.MpesaCallback{
		MerchantRequestID: req.Callback.MerchantRequestID,
		CheckoutRequestID: req.Callback.CheckoutRequestID,
		ResultCode:        req.Callback.ResultCode,
		ResultDesc:        req.Callback.ResultDesc,
		PayloadJSON:       req.PayloadJSON,
		Status:            entity.MpesaCallbackRejected,
		Error:             &trimmedErr,
		CreatedAt:         now,
	}); err != nil {
		s.logger.WithError(err).WithField("failure_class", "persistence").
			Error("Failed to store rejected callback")
	}
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
