package types

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chamavault/ms-go-mpesa/app/entity"
)

const (
	DefaultAccountReference = "Chama Contribution"
	DefaultDescription      = "Chama transaction"
)

type StkPushRequest struct {
	RequestId        string `json:"request_id"`
	MemberRef        string `json:"member_ref"`
	PhoneNumber      string `json:"phone_number"`
	Amount           int64  `json:"amount"`
	AccountReference string `json:"account_reference"`
	Description      string `json:"description"`
}

func NewStkPushRequestFromContext(ctx echo.Context) (*StkPushRequest, error) {
	var body StkPushRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.RequestId = strings.TrimSpace(body.RequestId)
	if body.RequestId == "" {
		body.RequestId = strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
	}
	body.MemberRef = strings.TrimSpace(body.MemberRef)
	body.PhoneNumber = strings.TrimSpace(body.PhoneNumber)
	body.AccountReference = strings.TrimSpace(body.AccountReference)
	if body.AccountReference == "" {
		body.AccountReference = DefaultAccountReference
	}
	body.Description = strings.TrimSpace(body.Description)
	if body.Description == "" {
		body.Description = DefaultDescription
	}

	return &body, nil
}

func (r *StkPushRequest) Validate() error {
	if strings.TrimSpace(r.RequestId) == "" {
		return errors.New("request_id is required")
	}
	if _, err := NormalizeMSISDN(r.PhoneNumber); err != nil {
		return err
	}
	if r.Amount < 1 {
		return errors.New("amount must be at least 1")
	}
	return nil
}

type GetPaymentRequest struct {
	Id uint64
}

func NewGetPaymentRequestFromContext(ctx echo.Context) (*GetPaymentRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &GetPaymentRequest{Id: id}, nil
}

func (r *GetPaymentRequest) Validate() error {
	if r.Id == 0 {
		return errors.New("invalid payment request id")
	}
	return nil
}

type ListPaymentsRequest struct {
	PhoneNumber string
	MemberRef   string
	HasStatus   bool
	Status      int32
	Limit       int32
	Offset      int32
}

func NewListPaymentsRequestFromContext(ctx echo.Context) (*ListPaymentsRequest, error) {
	req := &ListPaymentsRequest{
		PhoneNumber: strings.TrimSpace(ctx.QueryParam("phone_number")),
		MemberRef:   strings.TrimSpace(ctx.QueryParam("member_ref")),
		Limit:       100,
		Offset:      0,
	}

	if req.PhoneNumber != "" {
		normalized, err := NormalizeMSISDN(req.PhoneNumber)
		if err != nil {
			return nil, err
		}
		req.PhoneNumber = normalized
	}

	statusRaw := strings.TrimSpace(strings.ToLower(ctx.QueryParam("status")))
	if statusRaw != "" {
		status, ok := ParsePaymentRequestStatus(statusRaw)
		if !ok {
			return nil, errors.New("invalid status")
		}
		req.HasStatus = true
		req.Status = status
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListPaymentsRequest) Validate() error {
	if r.Limit <= 0 || r.Limit > 500 {
		return errors.New("limit must be between 1 and 500")
	}
	if r.Offset < 0 {
		return errors.New("offset must be >= 0")
	}
	return nil
}

type StatusQueryRequest struct {
	CheckoutRequestId string
}

func NewStatusQueryRequestFromContext(ctx echo.Context) (*StatusQueryRequest, error) {
	return &StatusQueryRequest{
		CheckoutRequestId: strings.TrimSpace(ctx.Param("checkoutRequestId")),
	}, nil
}

func (r *StatusQueryRequest) Validate() error {
	if r.CheckoutRequestId == "" {
		return errors.New("checkout request id is required")
	}
	return nil
}

// MpesaCallbackRequest wraps one gateway delivery. Parsed is false when the
// body did not match the stkCallback envelope; the raw payload is kept either
// way so the delivery can be audited.
type MpesaCallbackRequest struct {
	Parsed      bool
	PayloadJSON string
	Callback    StkCallback
}

type stkCallbackEnvelope struct {
	Body struct {
		StkCallback *StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int32             `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

type CallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

func NewMpesaCallbackRequestFromContext(ctx echo.Context) (*MpesaCallbackRequest, error) {
	rawBody, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return nil, err
	}

	req := &MpesaCallbackRequest{PayloadJSON: string(rawBody)}

	var envelope stkCallbackEnvelope
	if json.Unmarshal(rawBody, &envelope) == nil && envelope.Body.StkCallback != nil {
		req.Parsed = true
		req.Callback = *envelope.Body.StkCallback
	}

	return req, nil
}

// CallbackValues is the named metadata of a successful callback. Item order
// inside the gateway payload is not guaranteed; extraction is by name.
type CallbackValues struct {
	Amount          int64
	ReceiptNumber   string
	TransactionDate time.Time
	PhoneNumber     string
}

func (c *StkCallback) Metadata() CallbackValues {
	values := CallbackValues{}
	if c.CallbackMetadata == nil {
		return values
	}

	for _, item := range c.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			values.Amount = itemInt64(item.Value)
		case "MpesaReceiptNumber":
			values.ReceiptNumber = itemString(item.Value)
		case "TransactionDate":
			if ts, err := time.Parse("20060102150405", itemString(item.Value)); err == nil {
				values.TransactionDate = ts
			}
		case "PhoneNumber":
			values.PhoneNumber = itemString(item.Value)
		}
	}

	return values
}

// The gateway sends numbers for amount, date, and phone; some variants quote
// them. Tolerate both.
func itemString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return ""
	}
}

func itemInt64(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

type PaymentRequest struct {
	Id                uint64 `json:"id"`
	RequestId         string `json:"request_id"`
	MemberRef         string `json:"member_ref,omitempty"`
	PhoneNumber       string `json:"phone_number"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	AccountReference  string `json:"account_reference"`
	Description       string `json:"description"`
	Gateway           string `json:"gateway"`
	MerchantRequestId string `json:"merchant_request_id"`
	CheckoutRequestId string `json:"checkout_request_id"`
	Status            string `json:"status"`
	ResultCode        *int32 `json:"result_code,omitempty"`
	ResultDesc        string `json:"result_desc,omitempty"`
	ReceiptNumber     string `json:"receipt_number,omitempty"`
	TransactionDate   string `json:"transaction_date,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
}

type PaymentRequestEnvelopeResponse struct {
	PaymentRequest *PaymentRequest `json:"payment_request"`
}

type ListPaymentRequestsResponse struct {
	PaymentRequests []*PaymentRequest `json:"payment_requests"`
}

type StatusQueryResponse struct {
	CheckoutRequestId string `json:"checkout_request_id"`
	Pending           bool   `json:"pending"`
	ResultCode        string `json:"result_code,omitempty"`
	ResultDesc        string `json:"result_desc,omitempty"`
}

// CallbackAckResponse is the acknowledgement body the gateway expects; the
// field casing is part of the wire contract.
type CallbackAckResponse struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func PaymentRequestStatusLabel(status int32) string {
	switch status {
	case entity.PaymentRequestPending:
		return "pending"
	case entity.PaymentRequestCompleted:
		return "completed"
	case entity.PaymentRequestFailed:
		return "failed"
	case entity.PaymentRequestCanceled:
		return "canceled"
	case entity.PaymentRequestExpired:
		return "expired"
	default:
		return "unknown"
	}
}

func ParsePaymentRequestStatus(raw string) (int32, bool) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "pending", "1":
		return entity.PaymentRequestPending, true
	case "completed", "10":
		return entity.PaymentRequestCompleted, true
	case "failed", "20":
		return entity.PaymentRequestFailed, true
	case "canceled", "21":
		return entity.PaymentRequestCanceled, true
	case "expired", "30":
		return entity.PaymentRequestExpired, true
	default:
		return 0, false
	}
}
