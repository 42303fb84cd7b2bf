package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajibnet/ajibot/internal/config"
	"github.com/ajibnet/ajibot/internal/domain"
	"github.com/ajibnet/ajibot/internal/repository"
	"github.com/ajibnet/ajibot/internal/service"
)

const testSecret = "hush"

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

// planOnlyCatalog serves a single plan.
type planOnlyCatalog struct {
	plan domain.Plan
}

func (c *planOnlyCatalog) Plans(context.Context) ([]domain.Plan, error) {
	return []domain.Plan{c.plan}, nil
}

func (c *planOnlyCatalog) Plan(_ context.Context, planID string) (*domain.Plan, error) {
	if planID != c.plan.ID {
		return nil, domain.ErrPlanNotFound
	}
	p := c.plan
	return &p, nil
}

// countingBackend provisions instantly and counts calls.
type countingBackend struct {
	calls atomic.Int64
}

func (b *countingBackend) ListPlans(context.Context) ([]domain.Plan, error) { return nil, nil }

func (b *countingBackend) GetUserConfigs(context.Context, int64) ([]domain.VPNConfig, error) {
	return nil, nil
}

func (b *countingBackend) RequestTrial(context.Context, int64) (*domain.VPNConfig, error) {
	return nil, nil
}

func (b *countingBackend) CreateConfig(_ context.Context, _ int64, _, key string) (*domain.VPNConfig, error) {
	b.calls.Add(1)
	return &domain.VPNConfig{ID: "cfg-" + key, Payload: "vless://" + key}, nil
}

// stubInvoicer hands out one fixed invoice.
type stubInvoicer struct{}

func (stubInvoicer) CreateInvoice(context.Context, decimal.Decimal, string, string) (string, string, error) {
	return "inv-1", "https://pay.example/inv-1", nil
}

func (stubInvoicer) GetStatus(context.Context, string) (*service.InvoiceInfo, error) {
	return &service.InvoiceInfo{Status: service.InvoiceStatusUnknown}, nil
}

func (stubInvoicer) VerifyWebhook([]byte, string) (*service.WebhookEvent, error) {
	return nil, domain.ErrSignatureInvalid
}

type webhookFixture struct {
	store   *repository.MemoryOrderStore
	backend *countingBackend
	orders  *service.OrderService
	handler http.Handler
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	catalog := &planOnlyCatalog{plan: domain.Plan{
		ID:            "p1",
		Name:          "Basic",
		Price:         decimal.RequireFromString("10.00"),
		Currency:      "USDT",
		BackendPlanID: "bp1",
	}}

	cfg := &config.Config{
		HeleketAPIBase:       "https://gw.example",
		HeleketWebhookSecret: testSecret,
		WebhookListenAddr:    ":0",
	}
	heleket := service.NewHeleketClient(cfg, nil)

	f := &webhookFixture{
		store:   repository.NewMemoryOrderStore(),
		backend: &countingBackend{},
	}
	// Orders are invoiced through a stub; the webhook path verifies against
	// the real gateway client.
	f.orders = service.NewOrderService(f.store, catalog, stubInvoicer{}, f.backend, 30*time.Minute)

	srv := New(cfg, f.orders, heleket)
	f.handler = srv.http.Handler
	return f
}

func (f *webhookFixture) invoicedOrder(t *testing.T) *domain.Order {
	t.Helper()
	ctx := context.Background()
	order, err := f.orders.CreateOrder(ctx, 42, "p1")
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := f.orders.RequestInvoice(ctx, order.ID); err != nil {
		t.Fatalf("request invoice: %v", err)
	}
	order, _ = f.orders.GetOrder(ctx, order.ID)
	return order
}

func (f *webhookFixture) post(body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/heleket/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *webhookFixture) waitForState(t *testing.T, orderID string, want domain.OrderState) *domain.Order {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		order, err := f.orders.GetOrder(context.Background(), orderID)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if order.State == want {
			return order
		}
		time.Sleep(5 * time.Millisecond)
	}
	order, _ := f.orders.GetOrder(context.Background(), orderID)
	t.Fatalf("order %s never reached %s, stuck in %s", orderID, want, order.State)
	return nil
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func paidBody(order *domain.Order) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"status":"paid","amount":%q,"currency":%q,"metadata":{"order_id":%q}}`,
		order.InvoiceRef, order.Amount.StringFixed(2), order.Currency, order.ID,
	))
}

func TestWebhookConfirmsOrder(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.invoicedOrder(t)

	rec := f.post(paidBody(order), sign(paidBody(order)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}

	final := f.waitForState(t, order.ID, domain.OrderStateProvisioned)
	if final.ConfirmationSource != domain.SourceWebhook {
		t.Fatalf("confirmation source %s", final.ConfirmationSource)
	}
	if f.backend.calls.Load() != 1 {
		t.Fatalf("backend saw %d config creations, want 1", f.backend.calls.Load())
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.invoicedOrder(t)
	body := paidBody(order)

	cases := map[string]string{
		"missing":  "",
		"garbage":  "sha256=zzzz",
		"mismatch": "sha256=" + hex.EncodeToString(make([]byte, 32)),
	}
	for name, sig := range cases {
		rec := f.post(body, sig)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s signature: status %d, want 400", name, rec.Code)
		}
	}

	got, _ := f.orders.GetOrder(context.Background(), order.ID)
	if got.State != domain.OrderStateInvoiced {
		t.Fatalf("unverified webhook moved the order to %s", got.State)
	}
	if f.backend.calls.Load() != 0 {
		t.Fatal("unverified webhook must never provision")
	}
}

func TestWebhookDuplicateDeliveryIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.invoicedOrder(t)
	body := paidBody(order)

	if rec := f.post(body, sign(body)); rec.Code != http.StatusOK {
		t.Fatalf("first delivery: status %d", rec.Code)
	}
	f.waitForState(t, order.ID, domain.OrderStateProvisioned)

	if rec := f.post(body, sign(body)); rec.Code != http.StatusOK {
		t.Fatalf("redelivery: status %d", rec.Code)
	}
	if f.backend.calls.Load() != 1 {
		t.Fatalf("backend saw %d config creations, want 1", f.backend.calls.Load())
	}
}

func TestWebhookNonPaidStatusIgnored(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.invoicedOrder(t)

	body := []byte(fmt.Sprintf(`{"id":%q,"status":"pending","metadata":{"order_id":%q}}`, order.InvoiceRef, order.ID))
	if rec := f.post(body, sign(body)); rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}

	got, _ := f.orders.GetOrder(context.Background(), order.ID)
	if got.State != domain.OrderStateInvoiced {
		t.Fatalf("pending webhook moved the order to %s", got.State)
	}
}

func TestWebhookResolvesOrderByInvoiceRef(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.invoicedOrder(t)

	// No order_id in metadata; only the invoice ref links back.
	body := []byte(fmt.Sprintf(
		`{"id":%q,"status":"paid","amount":%q,"currency":%q}`,
		order.InvoiceRef, order.Amount.StringFixed(2), order.Currency,
	))
	if rec := f.post(body, sign(body)); rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
	f.waitForState(t, order.ID, domain.OrderStateProvisioned)
}

func TestWebhookUnknownInvoiceAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)

	body := []byte(`{"id":"inv-ghost","status":"paid","amount":"10.00","currency":"USDT"}`)
	if rec := f.post(body, sign(body)); rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
}

func TestWebhookAmountMismatchAcknowledgedAndFrozen(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.invoicedOrder(t)

	body := []byte(fmt.Sprintf(
		`{"id":%q,"status":"paid","amount":"9.00","currency":%q,"metadata":{"order_id":%q}}`,
		order.InvoiceRef, order.Currency, order.ID,
	))
	if rec := f.post(body, sign(body)); rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}

	time.Sleep(50 * time.Millisecond)
	got, _ := f.orders.GetOrder(context.Background(), order.ID)
	if got.State != domain.OrderStateInvoiced {
		t.Fatalf("mismatched webhook moved the order to %s", got.State)
	}
	if f.backend.calls.Load() != 0 {
		t.Fatal("mismatched webhook must never provision")
	}
}

func TestHealthz(t *testing.T) {
	f := newWebhookFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200", rec.Code)
	}
}
