package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const darajaTimestampLayout = "20060102150405"

// errorCode the gateway returns while a push is still awaiting the payer's
// PIN; a status query hitting it is retryable, not failed.
const darajaProcessingErrorCode = "500.001.1001"

type DarajaConfig struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	Passkey         string
	CallbackBaseURL string
	HTTPTimeout     time.Duration
}

type DarajaGateway struct {
	cfg    DarajaConfig
	client *http.Client
	now    func() time.Time
}

func NewDarajaGateway(cfg DarajaConfig) *DarajaGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	return &DarajaGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

func (g *DarajaGateway) Code() int32 {
	return GatewayDaraja
}

type darajaSTKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type darajaSTKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type darajaStatusRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type darajaStatusResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

type darajaErrorResponse struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (g *DarajaGateway) InitiateSTKPush(ctx context.Context, input *STKPushInput) (*STKPushOutput, error) {
	callbackURL := g.callbackURL()
	if callbackURL == "" {
		return nil, errors.New("mpesa callback base url is not configured")
	}

	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	// Password and timestamp are computed at submission time; the gateway
	// rejects stale timestamps.
	timestamp := g.now().Format(darajaTimestampLayout)
	body := &darajaSTKPushRequest{
		BusinessShortCode: g.cfg.ShortCode,
		Password:          g.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            input.Amount,
		PartyA:            input.PhoneNumber,
		PartyB:            g.cfg.ShortCode,
		PhoneNumber:       input.PhoneNumber,
		CallBackURL:       callbackURL,
		AccountReference:  input.AccountReference,
		TransactionDesc:   input.Description,
	}

	statusCode, respBody, err := g.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, body)
	if err != nil {
		return nil, err
	}
	if statusCode >= 400 {
		return nil, g.rejectionError(statusCode, respBody)
	}

	var payload darajaSTKPushResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("daraja stk push response malformed: %w", err)
	}
	if payload.ResponseCode != "0" {
		return nil, fmt.Errorf("%w: %s", ErrPaymentRejected, rejectionDescription(payload.ResponseDescription, payload.CustomerMessage))
	}
	if strings.TrimSpace(payload.MerchantRequestID) == "" || strings.TrimSpace(payload.CheckoutRequestID) == "" {
		return nil, errors.New("daraja stk push response missing request identifiers")
	}

	return &STKPushOutput{
		MerchantRequestID:   strings.TrimSpace(payload.MerchantRequestID),
		CheckoutRequestID:   strings.TrimSpace(payload.CheckoutRequestID),
		ResponseDescription: payload.ResponseDescription,
		CustomerMessage:     payload.CustomerMessage,
	}, nil
}

func (g *DarajaGateway) QueryStatus(ctx context.Context, checkoutRequestID string) (*StatusOutput, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := g.now().Format(darajaTimestampLayout)
	body := &darajaStatusRequest{
		BusinessShortCode: g.cfg.ShortCode,
		Password:          g.password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	statusCode, respBody, err := g.postJSON(ctx, "/mpesa/stkpushquery/v1/query", token, body)
	if err != nil {
		return nil, err
	}
	if statusCode >= 400 {
		var errPayload darajaErrorResponse
		_ = json.Unmarshal(respBody, &errPayload)
		switch {
		case errPayload.ErrorCode == darajaProcessingErrorCode:
			return &StatusOutput{Pending: true, ResultDesc: errPayload.ErrorMessage}, nil
		case statusCode == http.StatusNotFound || strings.HasPrefix(errPayload.ErrorCode, "404"):
			return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, checkoutRequestID)
		case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: status=%d", ErrAuthenticationFailed, statusCode)
		default:
			return nil, fmt.Errorf("daraja status query failed: status=%d body=%s", statusCode, string(respBody))
		}
	}

	var payload darajaStatusResponse
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("daraja status query response malformed: %w", err)
	}

	return &StatusOutput{
		ResultCode: strings.TrimSpace(payload.ResultCode),
		ResultDesc: payload.ResultDesc,
	}, nil
}

func (g *DarajaGateway) accessToken(ctx context.Context) (string, error) {
	if strings.TrimSpace(g.cfg.ConsumerKey) == "" || strings.TrimSpace(g.cfg.ConsumerSecret) == "" {
		return "", errors.New("mpesa consumer credentials are not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.cfg.ConsumerKey, g.cfg.ConsumerSecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status=%d body=%s", ErrAuthenticationFailed, resp.StatusCode, string(respBody))
	}

	// expires_in arrives as a JSON string.
	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil || strings.TrimSpace(payload.AccessToken) == "" {
		return "", fmt.Errorf("%w: token response malformed", ErrAuthenticationFailed)
	}

	return payload.AccessToken, nil
}

func (g *DarajaGateway) postJSON(ctx context.Context, path, token string, body interface{}) (int, []byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	return resp.StatusCode, respBody, nil
}

func (g *DarajaGateway) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(g.cfg.ShortCode + g.cfg.Passkey + timestamp))
}

func (g *DarajaGateway) callbackURL() string {
	base := strings.TrimRight(strings.TrimSpace(g.cfg.CallbackBaseURL), "/")
	if base == "" {
		return ""
	}
	return base + "/callbacks/mpesa"
}

func (g *DarajaGateway) rejectionError(statusCode int, respBody []byte) error {
	var payload darajaErrorResponse
	_ = json.Unmarshal(respBody, &payload)

	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return fmt.Errorf("%w: status=%d", ErrAuthenticationFailed, statusCode)
	}
	if strings.TrimSpace(payload.ErrorMessage) != "" {
		return fmt.Errorf("%w: %s", ErrPaymentRejected, payload.ErrorMessage)
	}
	return fmt.Errorf("%w: status=%d body=%s", ErrPaymentRejected, statusCode, string(respBody))
}

func rejectionDescription(description, customerMessage string) string {
	if strings.TrimSpace(description) != "" {
		return description
	}
	if strings.TrimSpace(customerMessage) != "" {
		return customerMessage
	}
	return "request rejected"
}
