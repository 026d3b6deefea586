package provider

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSandboxGatewayIssuesUniqueIdentifiers(t *testing.T) {
	gateway := NewSandboxGateway()

	first, err := gateway.InitiateSTKPush(context.Background(), &STKPushInput{PhoneNumber: "254712345678", Amount: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := gateway.InitiateSTKPush(context.Background(), &STKPushInput{PhoneNumber: "254712345678", Amount: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.CheckoutRequestID == second.CheckoutRequestID {
		t.Fatal("checkout request ids must be unique per push")
	}
	if !strings.HasPrefix(first.CheckoutRequestID, "ws_CO_") {
		t.Fatalf("unexpected checkout id shape: %q", first.CheckoutRequestID)
	}
	if first.MerchantRequestID == "" {
		t.Fatal("expected a merchant request id")
	}
}

func TestSandboxGatewayRejectsZeroAmount(t *testing.T) {
	gateway := NewSandboxGateway()

	if _, err := gateway.InitiateSTKPush(context.Background(), &STKPushInput{PhoneNumber: "254712345678", Amount: 0}); !errors.Is(err, ErrPaymentRejected) {
		t.Fatalf("expected ErrPaymentRejected, got %v", err)
	}
}

func TestSandboxGatewayQueryStatus(t *testing.T) {
	gateway := NewSandboxGateway()

	push, err := gateway.InitiateSTKPush(context.Background(), &STKPushInput{PhoneNumber: "254712345678", Amount: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output, err := gateway.QueryStatus(context.Background(), push.CheckoutRequestID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Pending || output.ResultCode != "0" {
		t.Fatalf("expected a completed result for a known id, got %+v", output)
	}

	if _, err := gateway.QueryStatus(context.Background(), "ws_CO_unknown"); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound for an unknown id, got %v", err)
	}
}

func TestParseGatewayCode(t *testing.T) {
	cases := []struct {
		raw  string
		want int32
	}{
		{"daraja", GatewayDaraja},
		{"mpesa", GatewayDaraja},
		{"Daraja", GatewayDaraja},
		{"sandbox", GatewaySandbox},
		{"demo", GatewaySandbox},
	}

	for _, tc := range cases {
		got, err := ParseGatewayCode(tc.raw)
		if err != nil {
			t.Fatalf("ParseGatewayCode(%q) returned error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseGatewayCode(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}

	if _, err := ParseGatewayCode("paypal"); !errors.Is(err, ErrGatewayNotSupported) {
		t.Fatalf("expected ErrGatewayNotSupported, got %v", err)
	}
}
