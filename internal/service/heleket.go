package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/ajibnet/ajibot/internal/config"
	"github.com/ajibnet/ajibot/internal/domain"
)

var (
	ErrGatewayAuth        = errors.New("payment gateway rejected credentials")
	ErrGatewayRequest     = errors.New("payment gateway rejected request")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusExpired InvoiceStatus = "expired"
	InvoiceStatusUnknown InvoiceStatus = "unknown"
)

// InvoiceInfo is the gateway's view of one invoice.
type InvoiceInfo struct {
	Ref      string
	Status   InvoiceStatus
	Amount   decimal.Decimal
	Currency string
}

// WebhookEvent is a verified, decoded gateway callback.
type WebhookEvent struct {
	InvoiceRef string
	OrderID    string
	Status     InvoiceStatus
	Amount     decimal.Decimal
	Currency   string
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HeleketClient talks to the Heleket crypto payment gateway: invoice
// creation, status polling and webhook signature verification.
type HeleketClient struct {
	baseURL       string
	apiKey        string
	network       string
	webhookSecret string
	callbackURL   string
	httpClient    HTTPDoer
}

func NewHeleketClient(cfg *config.Config, client HTTPDoer) *HeleketClient {
	if client == nil {
		client = &http.Client{Timeout: config.GatewayRequestTimeout}
	}
	return &HeleketClient{
		baseURL:       strings.TrimRight(cfg.HeleketAPIBase, "/"),
		apiKey:        cfg.HeleketAPIKey,
		network:       cfg.HeleketNetwork,
		webhookSecret: cfg.HeleketWebhookSecret,
		callbackURL:   cfg.HeleketCallbackURL,
		httpClient:    client,
	}
}

// CreateInvoice creates a gateway invoice for the given amount. externalRef
// is the order ID and is echoed back in webhook metadata.
func (c *HeleketClient) CreateInvoice(ctx context.Context, amount decimal.Decimal, currency, externalRef string) (invoiceRef, payURL string, err error) {
	payload := map[string]any{
		"amount":   amount.StringFixed(2),
		"currency": currency,
		"network":  c.network,
		"metadata": map[string]any{"order_id": externalRef},
	}
	if c.callbackURL != "" {
		payload["callback_url"] = c.callbackURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("marshal invoice payload: %w", err)
	}

	var result struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		PaymentURL string `json:"payment_url"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/invoices", body, &result); err != nil {
		return "", "", err
	}
	if result.ID == "" {
		return "", "", fmt.Errorf("%w: invoice response missing id", ErrGatewayRequest)
	}
	return result.ID, result.PaymentURL, nil
}

// GetStatus fetches the current invoice status. A 404 or an unrecognized
// status string maps to InvoiceStatusUnknown: the gateway may not know a
// freshly created invoice yet and the poller must not treat that as fatal.
func (c *HeleketClient) GetStatus(ctx context.Context, invoiceRef string) (*InvoiceInfo, error) {
	var result struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/invoices/"+invoiceRef, nil, &result)
	if err != nil {
		if errors.Is(err, errGatewayNotFound) {
			return &InvoiceInfo{Ref: invoiceRef, Status: InvoiceStatusUnknown}, nil
		}
		return nil, err
	}

	info := &InvoiceInfo{
		Ref:      invoiceRef,
		Status:   mapInvoiceStatus(result.Status),
		Currency: result.Currency,
	}
	if result.Amount != "" {
		info.Amount, err = decimal.NewFromString(result.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: bad amount %q", ErrGatewayRequest, result.Amount)
		}
	}
	return info, nil
}

// VerifyWebhook authenticates and decodes a raw gateway callback. Any
// missing header, signature mismatch or malformed payload fails closed with
// domain.ErrSignatureInvalid.
func (c *HeleketClient) VerifyWebhook(rawBody []byte, signatureHeader string) (*WebhookEvent, error) {
	if c.webhookSecret == "" || signatureHeader == "" {
		return nil, domain.ErrSignatureInvalid
	}

	sig := strings.TrimSpace(signatureHeader)
	if strings.HasPrefix(strings.ToLower(sig), "sha256=") {
		sig = sig[len("sha256="):]
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return nil, domain.ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(rawBody)
	if !hmac.Equal(mac.Sum(nil), want) {
		return nil, domain.ErrSignatureInvalid
	}

	var payload struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
		Metadata struct {
			OrderID string `json:"order_id"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, domain.ErrSignatureInvalid
	}
	if payload.ID == "" {
		return nil, domain.ErrSignatureInvalid
	}

	event := &WebhookEvent{
		InvoiceRef: payload.ID,
		OrderID:    payload.Metadata.OrderID,
		Status:     mapInvoiceStatus(payload.Status),
		Currency:   payload.Currency,
	}
	if payload.Amount != "" {
		event.Amount, err = decimal.NewFromString(payload.Amount)
		if err != nil {
			return nil, domain.ErrSignatureInvalid
		}
	}
	return event, nil
}

func mapInvoiceStatus(status string) InvoiceStatus {
	switch status {
	case "paid", "paid_over":
		return InvoiceStatusPaid
	case "pending", "check", "process", "confirm_check":
		return InvoiceStatusPending
	case "expired", "cancelled", "canceled", "fail":
		return InvoiceStatusExpired
	default:
		return InvoiceStatusUnknown
	}
}

var errGatewayNotFound = errors.New("gateway resource not found")

// doJSON performs one gateway call with bounded retries on transient
// failures only. Auth and request rejections are never retried.
func (c *HeleketClient) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	backoff := retry.WithMaxRetries(config.RetryMaxAttempts, retry.NewExponential(config.RetryBaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrGatewayUnavailable, err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return ErrGatewayAuth
		case resp.StatusCode == http.StatusNotFound:
			return errGatewayNotFound
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return retry.RetryableError(fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode))
		case resp.StatusCode >= 400:
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("%w: status %d: %s", ErrGatewayRequest, resp.StatusCode, detail)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrGatewayRequest, err)
		}
		return nil
	})
}
