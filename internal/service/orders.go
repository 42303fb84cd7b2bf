package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ajibnet/ajibot/internal/config"
	"github.com/ajibnet/ajibot/internal/domain"
	"github.com/ajibnet/ajibot/internal/repository"
)

// OrderStore is the durable order record the orchestrator owns.
type OrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	GetByInvoiceRef(ctx context.Context, invoiceRef string) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
	ListByState(ctx context.Context, state domain.OrderState, limit int) ([]domain.Order, error)
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]domain.Order, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]domain.Order, error)
}

// InvoiceProvider is the payment gateway capability the orchestrator
// depends on. HeleketClient is the one concrete implementation.
type InvoiceProvider interface {
	CreateInvoice(ctx context.Context, amount decimal.Decimal, currency, externalRef string) (invoiceRef, payURL string, err error)
	GetStatus(ctx context.Context, invoiceRef string) (*InvoiceInfo, error)
	VerifyWebhook(rawBody []byte, signatureHeader string) (*WebhookEvent, error)
}

// ProvisioningProvider is the backend capability. BlitzClient is the one
// concrete implementation.
type ProvisioningProvider interface {
	ListPlans(ctx context.Context) ([]domain.Plan, error)
	GetUserConfigs(ctx context.Context, telegramID int64) ([]domain.VPNConfig, error)
	RequestTrial(ctx context.Context, telegramID int64) (*domain.VPNConfig, error)
	CreateConfig(ctx context.Context, telegramID int64, backendPlanID, idempotencyKey string) (*domain.VPNConfig, error)
}

// PlanSource is read-only plan lookup.
type PlanSource interface {
	Plans(ctx context.Context) ([]domain.Plan, error)
	Plan(ctx context.Context, planID string) (*domain.Plan, error)
}

// OrderService drives an order from creation through payment confirmation
// to provisioning. All state transitions for one order happen inside that
// order's exclusive section; different orders proceed independently.
// External calls are made outside the lock and transitions are committed
// only once the call's outcome is known.
type OrderService struct {
	store       OrderStore
	catalog     PlanSource
	invoices    InvoiceProvider
	provisioner ProvisioningProvider
	locks       *repository.KeyMutex
	invoiceTTL  time.Duration
	events      chan domain.OrderEvent
	now         func() time.Time
}

func NewOrderService(store OrderStore, catalog PlanSource, invoices InvoiceProvider, provisioner ProvisioningProvider, invoiceTTL time.Duration) *OrderService {
	return &OrderService{
		store:       store,
		catalog:     catalog,
		invoices:    invoices,
		provisioner: provisioner,
		locks:       repository.NewKeyMutex(),
		invoiceTTL:  invoiceTTL,
		events:      make(chan domain.OrderEvent, config.EventBufferSize),
		now:         time.Now,
	}
}

// Events is the lifecycle event stream the chat layer renders from.
func (s *OrderService) Events() <-chan domain.OrderEvent {
	return s.events
}

// CreateOrder opens a purchase attempt for a purchasable plan. Amount and
// currency are fixed from the plan at this point and never change.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, planID string) (*domain.Order, error) {
	plan, err := s.catalog.Plan(ctx, planID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlanID:    plan.ID,
		Amount:    plan.Price,
		Currency:  plan.Currency,
		State:     domain.OrderStateCreated,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.invoiceTTL),
	}
	if err := s.store.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	slog.Info("order created", "order_id", order.ID, "user_id", userID, "plan_id", plan.ID, "amount", order.Amount.String(), "currency", order.Currency)
	return order, nil
}

// RequestInvoice asks the gateway for an invoice and moves the order to
// invoiced. The gateway call runs outside the order's exclusive section;
// the transition is committed only after the call succeeded.
func (s *OrderService) RequestInvoice(ctx context.Context, orderID string) (string, error) {
	unlock := s.locks.Lock(orderID)
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		unlock()
		return "", err
	}
	if order.State != domain.OrderStateCreated {
		// A concurrent call already got the invoice.
		if order.State == domain.OrderStateInvoiced {
			unlock()
			return order.InvoiceRef, nil
		}
		unlock()
		return "", domain.ErrInvalidState
	}
	unlock()

	invoiceRef, payURL, err := s.invoices.CreateInvoice(ctx, order.Amount, order.Currency, order.ID)
	if err != nil {
		return "", fmt.Errorf("create invoice for order %s: %w", orderID, err)
	}

	unlock = s.locks.Lock(orderID)
	defer unlock()

	order, err = s.store.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.State != domain.OrderStateCreated {
		if order.State == domain.OrderStateInvoiced {
			return order.InvoiceRef, nil
		}
		slog.Warn("order left created state during invoice creation", "order_id", orderID, "state", order.State)
		return "", domain.ErrInvalidState
	}

	order.InvoiceRef = invoiceRef
	order.PayURL = payURL
	if err := s.transition(ctx, order, domain.OrderStateInvoiced); err != nil {
		return "", err
	}
	s.emit(order, "")
	return invoiceRef, nil
}

// Confirm is the reconciliation entry point for both confirmation channels.
// It is idempotent and exclusive: concurrent calls for the same order
// produce exactly one transition to paid and exactly one provisioning
// attempt; the loser observes the already-confirmed state and does nothing.
func (s *OrderService) Confirm(ctx context.Context, orderID string, ev domain.Evidence) (domain.OrderState, error) {
	unlock := s.locks.Lock(orderID)

	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		unlock()
		return "", err
	}

	// Duplicate gateway notifications are expected: anything not waiting
	// for payment is a no-op that reports the current state.
	if order.State != domain.OrderStateInvoiced {
		state := order.State
		unlock()
		return state, nil
	}

	// A confirmation that arrives after the TTL loses to expiry, always.
	if s.now().After(order.ExpiresAt) {
		if err := s.transition(ctx, order, domain.OrderStateExpired); err != nil {
			unlock()
			return order.State, err
		}
		s.emit(order, "")
		unlock()
		slog.Warn("late payment confirmation lost to expiry, manual review required",
			"order_id", orderID, "invoice_ref", order.InvoiceRef, "source", ev.Source)
		return domain.OrderStateExpired, nil
	}

	// Zero tolerance on amount and currency. A mismatch freezes the order
	// in invoiced for manual reconciliation; it must never provision.
	if !ev.Amount.Equal(order.Amount) || ev.Currency != order.Currency {
		unlock()
		slog.Error("gateway-reported amount does not match order",
			"order_id", orderID,
			"order_amount", order.Amount.String(), "order_currency", order.Currency,
			"reported_amount", ev.Amount.String(), "reported_currency", ev.Currency,
			"source", ev.Source)
		return domain.OrderStateInvoiced, domain.ErrAmountMismatch
	}

	order.ConfirmationSource = ev.Source
	if err := s.transition(ctx, order, domain.OrderStatePaid); err != nil {
		unlock()
		return order.State, err
	}
	s.emit(order, "")
	unlock()

	slog.Info("payment confirmed", "order_id", orderID, "source", ev.Source)

	// Provisioning runs outside the caller's deadline so a webhook response
	// is never held up by backend I/O.
	go func() {
		if err := s.Provision(context.WithoutCancel(ctx), orderID); err != nil {
			slog.Error("provisioning failed", "order_id", orderID, "error", err)
		}
	}()

	return domain.OrderStatePaid, nil
}

// Provision moves a paid order through provisioning. The paid→provisioning
// transition under the order's exclusive section is the at-most-once gate;
// the backend call itself carries the order ID as idempotency key so even a
// retried call cannot double-create a config.
func (s *OrderService) Provision(ctx context.Context, orderID string) error {
	unlock := s.locks.Lock(orderID)

	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		unlock()
		return err
	}
	if order.State != domain.OrderStatePaid {
		unlock()
		return nil
	}

	plan, err := s.catalog.Plan(ctx, order.PlanID)
	if err != nil && !errors.Is(err, domain.ErrPlanNotFound) {
		// Transient catalog failure: leave the order paid and retryable.
		unlock()
		return fmt.Errorf("plan lookup for order %s: %w", orderID, err)
	}

	if err := s.transition(ctx, order, domain.OrderStateProvisioning); err != nil {
		unlock()
		return err
	}
	unlock()

	var cfg *domain.VPNConfig
	var provErr error
	if plan == nil {
		provErr = fmt.Errorf("order %s: %w", orderID, domain.ErrPlanNotFound)
	} else {
		cfg, provErr = s.provisioner.CreateConfig(ctx, order.UserID, plan.BackendPlanID, order.ID)
	}

	unlock = s.locks.Lock(orderID)
	defer unlock()

	order, err = s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}

	if provErr != nil {
		order.FailReason = provErr.Error()
		if err := s.transition(ctx, order, domain.OrderStateFailed); err != nil {
			return err
		}
		s.emit(order, "")
		return provErr
	}

	order.ProvisionRef = cfg.ID
	if err := s.transition(ctx, order, domain.OrderStateProvisioned); err != nil {
		return err
	}
	s.emit(order, cfg.Payload)
	slog.Info("order provisioned", "order_id", orderID, "provision_ref", cfg.ID)
	return nil
}

// Sweep expires created and invoiced orders whose TTL has lapsed. It is the
// single expiry authority and is safe to run concurrently with Confirm:
// each candidate is re-checked inside its exclusive section.
func (s *OrderService) Sweep(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.store.ListExpirable(ctx, now, config.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expirable orders: %w", err)
	}

	expired := 0
	for i := range candidates {
		id := candidates[i].ID
		unlock := s.locks.Lock(id)

		order, err := s.store.Get(ctx, id)
		if err != nil {
			unlock()
			slog.Error("sweep: reload order", "order_id", id, "error", err)
			continue
		}
		if (order.State != domain.OrderStateCreated && order.State != domain.OrderStateInvoiced) || !order.ExpiresAt.Before(now) {
			unlock()
			continue
		}

		if err := s.transition(ctx, order, domain.OrderStateExpired); err != nil {
			unlock()
			slog.Error("sweep: expire order", "order_id", id, "error", err)
			continue
		}
		s.emit(order, "")
		unlock()
		expired++
	}

	if expired > 0 {
		slog.Info("expired unpaid orders", "count", expired)
	}
	return expired, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.store.Get(ctx, orderID)
}

func (s *OrderService) GetOrderByInvoiceRef(ctx context.Context, invoiceRef string) (*domain.Order, error) {
	return s.store.GetByInvoiceRef(ctx, invoiceRef)
}

func (s *OrderService) UserOrders(ctx context.Context, userID int64, limit int) ([]domain.Order, error) {
	return s.store.ListByUser(ctx, userID, limit)
}

// transition commits a single edge of the lifecycle graph. Callers hold the
// order's exclusive section.
func (s *OrderService) transition(ctx context.Context, order *domain.Order, next domain.OrderState) error {
	if !order.State.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidState, order.State, next)
	}
	order.State = next
	order.UpdatedAt = s.now()
	if err := s.store.Update(ctx, order); err != nil {
		return fmt.Errorf("commit transition to %s: %w", next, err)
	}
	return nil
}

func (s *OrderService) emit(order *domain.Order, configPayload string) {
	event := domain.OrderEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		PlanID:        order.PlanID,
		State:         order.State,
		PayURL:        order.PayURL,
		ProvisionRef:  order.ProvisionRef,
		ConfigPayload: configPayload,
		Reason:        order.FailReason,
	}
	select {
	case s.events <- event:
	default:
		slog.Warn("lifecycle event buffer full, dropping event", "order_id", order.ID, "state", order.State)
	}
}
