package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"

	"github.com/ajibnet/ajibot/internal/config"
	"github.com/ajibnet/ajibot/internal/domain"
)

var (
	ErrBackendAuth        = errors.New("provisioning backend rejected credentials")
	ErrBackendRejected    = errors.New("provisioning backend rejected request")
	ErrBackendUnavailable = errors.New("provisioning backend unavailable")
)

// BlitzClient talks to the Blitz VPN backend: plan catalog, per-user
// configs, trial grants and paid config creation.
type BlitzClient struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
}

func NewBlitzClient(cfg *config.Config, client HTTPDoer) *BlitzClient {
	if client == nil {
		client = &http.Client{Timeout: config.BackendRequestTimeout}
	}
	return &BlitzClient{
		baseURL:    strings.TrimRight(cfg.BlitzAPIBase, "/"),
		apiKey:     cfg.BlitzAPIKey,
		httpClient: client,
	}
}

type planPayload struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         string `json:"price"`
	Currency      string `json:"currency"`
	DurationDays  int    `json:"duration_days"`
	DataGB        int    `json:"data_gb"`
	BackendPlanID string `json:"backend_plan_id"`
	Retired       bool   `json:"retired"`
}

type configPayload struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Payload    string     `json:"payload"`
	BytesTotal int64      `json:"bytes_total"`
	BytesUsed  int64      `json:"bytes_used"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

func (c *BlitzClient) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	var result struct {
		Plans []planPayload `json:"plans"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/plans", nil, "", &result); err != nil {
		return nil, err
	}

	plans := make([]domain.Plan, 0, len(result.Plans))
	for _, p := range result.Plans {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: bad plan price %q", ErrBackendRejected, p.Price)
		}
		plans = append(plans, domain.Plan{
			ID:            p.ID,
			Name:          p.Name,
			Price:         price,
			Currency:      p.Currency,
			DurationDays:  p.DurationDays,
			DataGB:        p.DataGB,
			BackendPlanID: p.BackendPlanID,
			Retired:       p.Retired,
		})
	}
	return plans, nil
}

func (c *BlitzClient) GetUserConfigs(ctx context.Context, telegramID int64) ([]domain.VPNConfig, error) {
	var result struct {
		Configs []configPayload `json:"configs"`
	}
	path := fmt.Sprintf("/api/users/by-telegram/%d/configs", telegramID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, "", &result); err != nil {
		return nil, err
	}

	configs := make([]domain.VPNConfig, 0, len(result.Configs))
	for _, p := range result.Configs {
		configs = append(configs, toVPNConfig(p))
	}
	return configs, nil
}

// RequestTrial asks for the one-off 1GB trial config. The backend enforces
// one trial per user and answers 409 for a repeat request, which surfaces
// as domain.ErrTrialAlreadyGranted rather than a generic failure.
func (c *BlitzClient) RequestTrial(ctx context.Context, telegramID int64) (*domain.VPNConfig, error) {
	var result configPayload
	path := fmt.Sprintf("/api/users/by-telegram/%d/test-config", telegramID)
	err := c.doJSON(ctx, http.MethodPost, path, []byte("{}"), "", &result)
	if err != nil {
		if errors.Is(err, errBackendConflict) {
			return nil, domain.ErrTrialAlreadyGranted
		}
		return nil, err
	}
	cfg := toVPNConfig(result)
	return &cfg, nil
}

// CreateConfig provisions a paid config. idempotencyKey is derived from the
// order ID so a retried call after a transient failure cannot create a
// second config on the backend.
func (c *BlitzClient) CreateConfig(ctx context.Context, telegramID int64, backendPlanID, idempotencyKey string) (*domain.VPNConfig, error) {
	body, err := json.Marshal(map[string]any{
		"telegram_id": telegramID,
		"plan_id":     backendPlanID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal config request: %w", err)
	}

	var result configPayload
	if err := c.doJSON(ctx, http.MethodPost, "/api/configs", body, idempotencyKey, &result); err != nil {
		return nil, err
	}
	if result.ID == "" {
		return nil, fmt.Errorf("%w: config response missing id", ErrBackendRejected)
	}
	cfg := toVPNConfig(result)
	return &cfg, nil
}

func toVPNConfig(p configPayload) domain.VPNConfig {
	return domain.VPNConfig{
		ID:         p.ID,
		Label:      p.Label,
		Payload:    p.Payload,
		BytesTotal: p.BytesTotal,
		BytesUsed:  p.BytesUsed,
		CreatedAt:  p.CreatedAt,
		ExpiresAt:  p.ExpiresAt,
	}
}

var errBackendConflict = errors.New("backend resource conflict")

func (c *BlitzClient) doJSON(ctx context.Context, method, path string, body []byte, idempotencyKey string, out any) error {
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
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %v", ErrBackendUnavailable, err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return ErrBackendAuth
		case resp.StatusCode == http.StatusConflict:
			return errBackendConflict
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return retry.RetryableError(fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode))
		case resp.StatusCode >= 400:
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("%w: status %d: %s", ErrBackendRejected, resp.StatusCode, detail)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrBackendRejected, err)
		}
		return nil
	})
}
