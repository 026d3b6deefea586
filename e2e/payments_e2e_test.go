//go:build e2e
// +build e2e

// Exercises a running service over HTTP. Start it with MPESA_GATEWAY=sandbox
// so no gateway credentials are needed, then run: go test -tags e2e ./e2e/...
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/chamavault/ms-go-mpesa/app/types"
)

const defaultHTTPBase = "http://localhost:48080"

func httpBase() string {
	if value := strings.TrimSpace(os.Getenv("MPESA_E2E_HTTP_BASE")); value != "" {
		return value
	}
	return defaultHTTPBase
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpClient) doJSON(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal failed: %v", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", fmt.Sprintf("e2e-http-%d", time.Now().UnixNano()))

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}

	return resp, bodyBytes
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		req, _ := http.NewRequest(http.MethodGet, baseURL+"/health", nil)
		req.Header.Set("X-Request-ID", fmt.Sprintf("wait-http-%d", time.Now().UnixNano()))
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(250 * time.Millisecond)
	}
	return fmt.Errorf("service at %s did not become healthy within %s", baseURL, timeout)
}

func TestMain(m *testing.M) {
	if err := waitForHTTP(httpBase(), 30*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func TestHealthEndpoint(t *testing.T) {
	client := newHTTPClient(httpBase())

	resp, body := client.doJSON(t, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, string(body))
	}
}

func TestInitiateAndQueryStatus(t *testing.T) {
	client := newHTTPClient(httpBase())

	requestID := fmt.Sprintf("e2e-init-%d", time.Now().UnixNano())
	resp, body := client.doJSON(t, http.MethodPost, "/payments/stkpush", map[string]any{
		"request_id":   requestID,
		"phone_number": "0712345678",
		"amount":       500,
		"member_ref":   "e2e-member",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, string(body))
	}

	var created types.PaymentRequestEnvelopeResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if created.PaymentRequest == nil || created.PaymentRequest.CheckoutRequestId == "" {
		t.Fatalf("expected a checkout request id, got %s", string(body))
	}
	if created.PaymentRequest.PhoneNumber != "254712345678" {
		t.Fatalf("expected normalized phone, got %q", created.PaymentRequest.PhoneNumber)
	}
	if created.PaymentRequest.Status != "pending" {
		t.Fatalf("expected pending, got %q", created.PaymentRequest.Status)
	}

	// replaying the same request_id must not start a second push
	resp, body = client.doJSON(t, http.MethodPost, "/payments/stkpush", map[string]any{
		"request_id":   requestID,
		"phone_number": "0712345678",
		"amount":       500,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 on replay, got %d: %s", resp.StatusCode, string(body))
	}
	var replayed types.PaymentRequestEnvelopeResponse
	if err := json.Unmarshal(body, &replayed); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if replayed.PaymentRequest.CheckoutRequestId != created.PaymentRequest.CheckoutRequestId {
		t.Fatal("replayed initiation returned a different checkout request id")
	}

	resp, body = client.doJSON(t, http.MethodGet, "/payments/status/"+created.PaymentRequest.CheckoutRequestId, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, string(body))
	}
}

func TestInitiateValidationFailure(t *testing.T) {
	client := newHTTPClient(httpBase())

	resp, body := client.doJSON(t, http.MethodPost, "/payments/stkpush", map[string]any{
		"request_id":   fmt.Sprintf("e2e-bad-%d", time.Now().UnixNano()),
		"phone_number": "12345",
		"amount":       500,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.StatusCode, string(body))
	}
}

func TestCallbackCompletesPayment(t *testing.T) {
	client := newHTTPClient(httpBase())

	requestID := fmt.Sprintf("e2e-cb-%d", time.Now().UnixNano())
	resp, body := client.doJSON(t, http.MethodPost, "/payments/stkpush", map[string]any{
		"request_id":   requestID,
		"phone_number": "0712345678",
		"amount":       750,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, string(body))
	}
	var created types.PaymentRequestEnvelopeResponse
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	receipt := fmt.Sprintf("E2E%d", time.Now().Unix())
	callback := map[string]any{
		"Body": map[string]any{
			"stkCallback": map[string]any{
				"MerchantRequestID": created.PaymentRequest.MerchantRequestId,
				"CheckoutRequestID": created.PaymentRequest.CheckoutRequestId,
				"ResultCode":        0,
				"ResultDesc":        "The service request is processed successfully.",
				"CallbackMetadata": map[string]any{
					"Item": []map[string]any{
						{"Name": "Amount", "Value": 750},
						{"Name": "MpesaReceiptNumber", "Value": receipt},
						{"Name": "TransactionDate", "Value": 20250901143000},
						{"Name": "PhoneNumber", "Value": 254712345678},
					},
				},
			},
		},
	}

	for i := 0; i < 2; i++ {
		resp, body = client.doJSON(t, http.MethodPost, "/callbacks/mpesa", callback)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("callback delivery %d: expected 200, got %d: %s", i+1, resp.StatusCode, string(body))
		}
		var ack types.CallbackAckResponse
		if err := json.Unmarshal(body, &ack); err != nil {
			t.Fatalf("decode ack failed: %v", err)
		}
		if ack.ResultCode != 0 || ack.ResultDesc != "Success" {
			t.Fatalf("unexpected ack: %+v", ack)
		}
	}

	resp, body = client.doJSON(t, http.MethodGet, fmt.Sprintf("/payments/%d", created.PaymentRequest.Id), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, string(body))
	}
	var fetched types.PaymentRequestEnvelopeResponse
	if err := json.Unmarshal(body, &fetched); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if fetched.PaymentRequest.Status != "completed" {
		t.Fatalf("expected completed after callback, got %q", fetched.PaymentRequest.Status)
	}
	if fetched.PaymentRequest.ReceiptNumber != receipt {
		t.Fatalf("expected receipt %q, got %q", receipt, fetched.PaymentRequest.ReceiptNumber)
	}
}

func TestMalformedCallbackStillAcked(t *testing.T) {
	client := newHTTPClient(httpBase())

	resp, body := client.doJSON(t, http.MethodPost, "/callbacks/mpesa", map[string]any{"unexpected": "shape"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, string(body))
	}
}
