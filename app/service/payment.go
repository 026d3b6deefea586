package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/chamavault/ms-go-mpesa/app/entity"
	"github.com/chamavault/ms-go-mpesa/app/factory"
	"github.com/chamavault/ms-go-mpesa/app/provider"
	"github.com/chamavault/ms-go-mpesa/app/repository"
	"github.com/chamavault/ms-go-mpesa/app/types"
	"github.com/chamavault/ms-go-mpesa/config"
)

const (
	currencyKES = "KES"

	defaultBatchSize = int32(100)
)

// gateway result code for a push the payer dismissed or let time out.
const resultCodeCanceledByUser = 1032

type paymentRequestRepository interface {
	Create(ctx context.Context, request *entity.PaymentRequest) error
	Update(ctx context.Context, request *entity.PaymentRequest) error
	FindByID(ctx context.Context, id uint64) (*entity.PaymentRequest, error)
	FindByRequestID(ctx context.Context, requestID string) (*entity.PaymentRequest, error)
	FindByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*entity.PaymentRequest, error)
	List(ctx context.Context, filter repository.PaymentRequestFilter) ([]*entity.PaymentRequest, error)
	ListStalePending(ctx context.Context, before time.Time, limit int32) ([]*entity.PaymentRequest, error)
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.PaymentRequest, error)
}

type transactionRepository interface {
	Create(ctx context.Context, transaction *entity.Transaction) error
}

type mpesaCallbackRepository interface {
	Create(ctx context.Context, callback *entity.MpesaCallback) error
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

type PaymentService struct {
	requestRepo  paymentRequestRepository
	txRepo       transactionRepository
	callbackRepo mpesaCallbackRepository
	eventRepo    paymentEventRepository
	gateways     *provider.Registry
	gatewayCode  int32
	paymentsCfg  config.PaymentsConfig
	logger       logrus.FieldLogger
}

func NewPaymentService(
	requestRepo paymentRequestRepository,
	txRepo transactionRepository,
	callbackRepo mpesaCallbackRepository,
	eventRepo paymentEventRepository,
	gateways *provider.Registry,
	gatewayCode int32,
	paymentsCfg config.PaymentsConfig,
) *PaymentService {
	return &PaymentService{
		requestRepo:  requestRepo,
		txRepo:       txRepo,
		callbackRepo: callbackRepo,
		eventRepo:    eventRepo,
		gateways:     gateways,
		gatewayCode:  gatewayCode,
		paymentsCfg:  paymentsCfg,
		logger:       factory.NewModuleLogger("payments-service"),
	}
}

// InitiateSTKPush validates input, submits the push, and durably stores the
// checkout-id-to-member mapping before returning. Validation failures are
// guaranteed to happen before any gateway call.
func (s *PaymentService) InitiateSTKPush(ctx context.Context, req *types.StkPushRequest) (*entity.PaymentRequest, error) {
	phone, err := types.NormalizeMSISDN(req.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.Amount < 1 {
		return nil, fmt.Errorf("%w: amount must be at least 1", ErrValidation)
	}

	requestID := strings.TrimSpace(req.RequestId)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	existing, err := s.requestRepo.FindByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	gateway, err := s.gateways.Get(s.gatewayCode)
	if err != nil {
		if errors.Is(err, provider.ErrGatewayNotSupported) {
			return nil, ErrGatewayUnsupported
		}
		return nil, err
	}

	output, err := gateway.InitiateSTKPush(ctx, &provider.STKPushInput{
		PhoneNumber:      phone,
		Amount:           req.Amount,
		AccountReference: strings.TrimSpace(req.AccountReference),
		Description:      strings.TrimSpace(req.Description),
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	request := &entity.PaymentRequest{
		RequestID:         requestID,
		MemberRef:         normalizeOptionalString(req.MemberRef),
		PhoneNumber:       phone,
		Amount:            req.Amount,
		Currency:          currencyKES,
		AccountReference:  strings.TrimSpace(req.AccountReference),
		Description:       strings.TrimSpace(req.Description),
		Gateway:           s.gatewayCode,
		MerchantRequestID: output.MerchantRequestID,
		CheckoutRequestID: output.CheckoutRequestID,
		Status:            entity.PaymentRequestPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.requestRepo.Create(ctx, request); err != nil {
		if errors.Is(err, repository.ErrPaymentRequestAlreadyExists) {
			return nil, ErrPaymentRequestAlreadyExists
		}
		return nil, err
	}

	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentRequestID: request.ID,
		EventType:        "stk_push_initiated",
		NewStatus:        request.Status,
		CreatedAt:        now,
	})

	return request, nil
}

func (s *PaymentService) GetPaymentRequest(ctx context.Context, id uint64) (*entity.PaymentRequest, error) {
	request, err := s.requestRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, ErrPaymentRequestNotFound
	}
	return request, nil
}

func (s *PaymentService) ListPaymentRequests(ctx context.Context, req *types.ListPaymentsRequest) ([]*entity.PaymentRequest, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultBatchSize
	}

	return s.requestRepo.List(ctx, repository.PaymentRequestFilter{
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		MemberRef:   strings.TrimSpace(req.MemberRef),
		HasStatus:   req.HasStatus,
		Status:      req.Status,
		Limit:       limit,
		Offset:      req.Offset,
	})
}

// QueryStatus asks the gateway for the current view of a push. Used as a
// fallback when no callback has arrived; a terminal answer is applied to the
// stored request so the caller and the ledgerless UI agree afterwards.
func (s *PaymentService) QueryStatus(ctx context.Context, checkoutRequestID string) (*provider.StatusOutput, error) {
	checkoutRequestID = strings.TrimSpace(checkoutRequestID)
	if checkoutRequestID == "" {
		return nil, fmt.Errorf("%w: checkout request id is required", ErrValidation)
	}

	request, err := s.requestRepo.FindByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}

	gatewayCode := s.gatewayCode
	if request != nil {
		gatewayCode = request.Gateway
	}
	gateway, err := s.gateways.Get(gatewayCode)
	if err != nil {
		if errors.Is(err, provider.ErrGatewayNotSupported) {
			return nil, ErrGatewayUnsupported
		}
		return nil, err
	}

	output, err := gateway.QueryStatus(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}

	if request != nil && !output.Pending {
		now := time.Now().UTC()
		if err := s.applyStatusResult(ctx, request, output, now); err != nil {
			s.logger.WithError(err).WithField("checkout_request_id", checkoutRequestID).
				Warn("Failed to apply status query result")
		}
	}

	return output, nil
}

// applyStatusResult moves a pending request to the terminal state a status
// query reported. Requests already terminal are left alone; the callback is
// the authoritative writer.
func (s *PaymentService) applyStatusResult(ctx context.Context, request *entity.PaymentRequest, output *provider.StatusOutput, now time.Time) error {
	if request.Status != entity.PaymentRequestPending {
		return nil
	}

	resultCode, err := strconv.ParseInt(strings.TrimSpace(output.ResultCode), 10, 32)
	if err != nil {
		return nil
	}

	oldStatus := request.Status
	code := int32(resultCode)
	request.Status = statusForResultCode(code)
	request.ResultCode = &code
	request.ResultDesc = normalizeOptionalString(output.ResultDesc)
	request.UpdatedAt = now

	if err := s.requestRepo.Update(ctx, request); err != nil {
		return err
	}

	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentRequestID: request.ID,
		EventType:        "status_query_applied",
		OldStatus:        &oldStatus,
		NewStatus:        request.Status,
		CreatedAt:        now,
	})

	return nil
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func statusForResultCode(resultCode int32) int32 {
	switch resultCode {
	case 0:
		return entity.PaymentRequestCompleted
	case resultCodeCanceledByUser:
		return entity.PaymentRequestCanceled
	default:
		return entity.PaymentRequestFailed
	}
}

func normalizeOptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
