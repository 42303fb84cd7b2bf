package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajibnet/ajibot/internal/domain"
)

// pollGateway reports a scripted status for every invoice.
type pollGateway struct {
	fakeGateway
	mu       sync.Mutex
	status   InvoiceStatus
	amount   decimal.Decimal
	currency string
}

func (g *pollGateway) GetStatus(_ context.Context, invoiceRef string) (*InvoiceInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &InvoiceInfo{
		Ref:      invoiceRef,
		Status:   g.status,
		Amount:   g.amount,
		Currency: g.currency,
	}, nil
}

func (g *pollGateway) setStatus(status InvoiceStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
}

func TestPollerConfirmsPaidInvoice(t *testing.T) {
	f := newOrderFixture(t)
	gateway := &pollGateway{
		status:   InvoiceStatusPending,
		amount:   mustDecimal(t, "10.00"),
		currency: "USDT",
	}
	f.svc.invoices = gateway

	order := f.invoicedOrder(t)

	poller := NewPoller(f.svc, 10*time.Millisecond)
	poller.Start(context.Background())
	defer poller.Stop()

	// A few pending ticks first; the order must not move.
	time.Sleep(50 * time.Millisecond)
	got, _ := f.svc.GetOrder(context.Background(), order.ID)
	if got.State != domain.OrderStateInvoiced {
		t.Fatalf("pending invoice moved the order to %s", got.State)
	}

	gateway.setStatus(InvoiceStatusPaid)

	final := f.waitForState(t, order.ID, domain.OrderStateProvisioned)
	if final.ConfirmationSource != domain.SourcePoll {
		t.Fatalf("confirmation source %s, want poll", final.ConfirmationSource)
	}
	if f.backend.createCalls.Load() != 1 {
		t.Fatalf("backend saw %d config creations, want 1", f.backend.createCalls.Load())
	}
}

func TestPollerSweepsExpiredOrders(t *testing.T) {
	f := newOrderFixture(t)
	gateway := &pollGateway{status: InvoiceStatusPending, currency: "USDT"}
	f.svc.invoices = gateway

	order := f.invoicedOrder(t)

	// Force the order past its TTL.
	stored, _ := f.store.Get(context.Background(), order.ID)
	stored.ExpiresAt = time.Now().Add(-time.Minute)
	f.store.Update(context.Background(), stored)

	poller := NewPoller(f.svc, 10*time.Millisecond)
	poller.Start(context.Background())
	defer poller.Stop()

	f.waitForState(t, order.ID, domain.OrderStateExpired)
	if f.backend.createCalls.Load() != 0 {
		t.Fatal("expired order must not provision")
	}
}

func TestPollerIgnoresGatewayExpiry(t *testing.T) {
	f := newOrderFixture(t)
	gateway := &pollGateway{status: InvoiceStatusExpired, currency: "USDT"}
	f.svc.invoices = gateway

	order := f.invoicedOrder(t)

	poller := NewPoller(f.svc, 10*time.Millisecond)
	poller.Start(context.Background())
	defer poller.Stop()

	// The gateway says expired but the TTL has not lapsed; the sweep alone
	// decides, so the order stays invoiced.
	time.Sleep(50 * time.Millisecond)
	got, _ := f.svc.GetOrder(context.Background(), order.ID)
	if got.State != domain.OrderStateInvoiced {
		t.Fatalf("gateway expiry view moved the order to %s", got.State)
	}
}

func TestPollerRedrivesStrandedPaidOrder(t *testing.T) {
	f := newOrderFixture(t)
	gateway := &pollGateway{status: InvoiceStatusPending, currency: "USDT"}
	f.svc.invoices = gateway

	order := f.invoicedOrder(t)

	// Catalog down while the payment lands: the spawned provisioning
	// attempt fails on the plan lookup and the order stays paid.
	f.catalog.setErr(ErrBackendUnavailable)
	if _, err := f.svc.Confirm(context.Background(), order.ID, paidEvidence(domain.SourceWebhook, order)); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	f.waitForState(t, order.ID, domain.OrderStatePaid)
	time.Sleep(50 * time.Millisecond)
	if f.backend.createCalls.Load() != 0 {
		t.Fatal("no config may be created while the catalog is down")
	}

	// Catalog recovers; the poll loop alone must finish the order.
	f.catalog.setErr(nil)
	poller := NewPoller(f.svc, 10*time.Millisecond)
	poller.Start(context.Background())
	defer poller.Stop()

	final := f.waitForState(t, order.ID, domain.OrderStateProvisioned)
	if final.ProvisionRef == "" {
		t.Fatal("provision ref not recorded")
	}
	if got := f.backend.createCalls.Load(); got != 1 {
		t.Fatalf("backend saw %d config creations, want 1", got)
	}
}

func TestPollerStops(t *testing.T) {
	f := newOrderFixture(t)
	poller := NewPoller(f.svc, 10*time.Millisecond)
	poller.Start(context.Background())

	done := make(chan struct{})
	go func() {
		poller.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
