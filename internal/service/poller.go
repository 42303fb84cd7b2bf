package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ajibnet/ajibot/internal/config"
	"github.com/ajibnet/ajibot/internal/domain"
)

// Poller is the active confirmation channel: on a fixed interval it asks
// the gateway for the status of every invoiced order and feeds paid ones
// into Confirm. It never expires orders itself; Sweep is the single expiry
// authority and runs on the same tick. The tick also re-drives orders
// sitting in paid — ones whose provisioning attempt hit a transient
// failure, or that were confirmed right before a restart — through
// Provision, which is a no-op for anything no longer paid.
type Poller struct {
	orders   *OrderService
	interval time.Duration
	breaker  *gobreaker.CircuitBreaker

	wg   sync.WaitGroup
	quit chan struct{}
}

func newGatewayBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "heleket-gateway",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

func NewPoller(orders *OrderService, interval time.Duration) *Poller {
	return &Poller{
		orders:   orders,
		interval: interval,
		breaker:  newGatewayBreaker(),
		quit:     make(chan struct{}),
	}
}

// Start launches the poll loop in the background.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop shuts the loop down and waits for the current tick to finish.
func (p *Poller) Stop() {
	close(p.quit)
	p.wg.Wait()
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if _, err := p.orders.Sweep(ctx, time.Now()); err != nil {
		slog.Error("sweep failed", "error", err)
	}

	p.redrivePaid(ctx)

	if p.breaker.State() == gobreaker.StateOpen {
		slog.Warn("gateway breaker open, skipping poll tick")
		return
	}

	invoiced, err := p.orders.store.ListByState(ctx, domain.OrderStateInvoiced, config.PollBatchSize)
	if err != nil {
		slog.Error("list invoiced orders", "error", err)
		return
	}

	for i := range invoiced {
		order := &invoiced[i]
		if order.InvoiceRef == "" {
			continue
		}
		if err := p.checkOrder(ctx, order); err != nil {
			// Transient gateway trouble is swallowed here and retried on
			// the next interval.
			slog.Warn("poll invoice status", "order_id", order.ID, "invoice_ref", order.InvoiceRef, "error", err)
		}
	}
}

// redrivePaid retries provisioning for orders stuck in paid. A confirmed
// order only stays paid when its provisioning attempt failed transiently
// (or the process died before it ran), so each tick is a retry slot.
func (p *Poller) redrivePaid(ctx context.Context) {
	paid, err := p.orders.store.ListByState(ctx, domain.OrderStatePaid, config.PollBatchSize)
	if err != nil {
		slog.Error("list paid orders", "error", err)
		return
	}
	for i := range paid {
		if err := p.orders.Provision(ctx, paid[i].ID); err != nil {
			slog.Warn("re-drive provisioning", "order_id", paid[i].ID, "error", err)
		}
	}
}

func (p *Poller) checkOrder(ctx context.Context, order *domain.Order) error {
	res, err := p.breaker.Execute(func() (interface{}, error) {
		return p.orders.invoices.GetStatus(ctx, order.InvoiceRef)
	})
	if err != nil {
		return err
	}
	info := res.(*InvoiceInfo)

	switch info.Status {
	case InvoiceStatusPaid:
		_, err := p.orders.Confirm(ctx, order.ID, domain.Evidence{
			Source:     domain.SourcePoll,
			InvoiceRef: order.InvoiceRef,
			Amount:     info.Amount,
			Currency:   info.Currency,
		})
		if err != nil && !errors.Is(err, domain.ErrAmountMismatch) {
			return err
		}
	case InvoiceStatusExpired:
		// Sweep owns expiry; the gateway view is noted and left alone.
		slog.Debug("gateway reports invoice expired, deferring to sweep", "order_id", order.ID)
	case InvoiceStatusPending, InvoiceStatusUnknown:
		// Nothing to do yet. Unknown is normal for a fresh invoice.
	}
	return nil
}
