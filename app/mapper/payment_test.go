package mapper

import (
	"testing"
	"time"

	"github.com/chamavault/ms-go-mpesa/app/entity"
	"github.com/chamavault/ms-go-mpesa/app/provider"
)

func TestPaymentRequestToResponse(t *testing.T) {
	memberRef := "member-42"
	resultCode := int32(0)
	resultDesc := "The service request is processed successfully."
	receipt := "NXY123ABC"
	txDate := time.Date(2025, 9, 1, 14, 30, 0, 0, time.UTC)

	item := &entity.PaymentRequest{
		ID:                7,
		RequestID:         "req-1",
		MemberRef:         &memberRef,
		PhoneNumber:       "254712345678",
		Amount:            500,
		Currency:          "KES",
		Gateway:           provider.GatewayDaraja,
		MerchantRequestID: "merchant-1",
		CheckoutRequestID: "ws_CO_1",
		Status:            entity.PaymentRequestCompleted,
		ResultCode:        &resultCode,
		ResultDesc:        &resultDesc,
		ReceiptNumber:     &receipt,
		TransactionDate:   &txDate,
		CreatedAt:         time.Date(2025, 9, 1, 14, 29, 0, 0, time.UTC),
		UpdatedAt:         txDate,
	}

	resp := PaymentRequestToResponse(item)
	if resp.Id != 7 || resp.RequestId != "req-1" {
		t.Fatalf("unexpected identifiers: %+v", resp)
	}
	if resp.MemberRef != "member-42" {
		t.Fatalf("unexpected member ref: %q", resp.MemberRef)
	}
	if resp.Gateway != "daraja" {
		t.Fatalf("unexpected gateway label: %q", resp.Gateway)
	}
	if resp.Status != "completed" {
		t.Fatalf("unexpected status label: %q", resp.Status)
	}
	if resp.ReceiptNumber != "NXY123ABC" {
		t.Fatalf("unexpected receipt: %q", resp.ReceiptNumber)
	}
	if resp.TransactionDate != "2025-09-01T14:30:00Z" {
		t.Fatalf("unexpected transaction date: %q", resp.TransactionDate)
	}
}

func TestPaymentRequestToResponseOptionalFields(t *testing.T) {
	item := &entity.PaymentRequest{
		ID:          1,
		RequestID:   "req-1",
		PhoneNumber: "254712345678",
		Amount:      500,
		Gateway:     provider.GatewaySandbox,
		Status:      entity.PaymentRequestPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	resp := PaymentRequestToResponse(item)
	if resp.MemberRef != "" || resp.ReceiptNumber != "" || resp.TransactionDate != "" {
		t.Fatalf("expected empty optional fields, got %+v", resp)
	}
	if resp.ResultCode != nil {
		t.Fatal("expected nil result code")
	}
	if resp.Status != "pending" || resp.Gateway != "sandbox" {
		t.Fatalf("unexpected labels: status=%q gateway=%q", resp.Status, resp.Gateway)
	}
}

func TestPaymentRequestToResponseNil(t *testing.T) {
	if resp := PaymentRequestToResponse(nil); resp != nil {
		t.Fatal("expected nil response for nil input")
	}
}
