package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajibnet/ajibot/internal/domain"
)

func makeOrder(id string, state domain.OrderState, createdAt, expiresAt time.Time) *domain.Order {
	return &domain.Order{
		ID:        id,
		UserID:    42,
		PlanID:    "plan-basic",
		Amount:    decimal.RequireFromString("10.00"),
		Currency:  "USDT",
		State:     state,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
}

func TestMemoryOrderStoreCreateGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	now := time.Now()

	order := makeOrder("o1", domain.OrderStateCreated, now, now.Add(time.Hour))
	if err := store.Create(ctx, order); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, order); !errors.Is(err, domain.ErrDuplicateOrder) {
		t.Fatalf("duplicate create: got %v, want ErrDuplicateOrder", err)
	}

	got, err := store.Get(ctx, "o1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != domain.OrderStateCreated || !got.Amount.Equal(order.Amount) {
		t.Fatalf("got %+v", got)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("get missing: got %v, want ErrOrderNotFound", err)
	}
}

func TestMemoryOrderStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	now := time.Now()

	if err := store.Create(ctx, makeOrder("o1", domain.OrderStateCreated, now, now.Add(time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, _ := store.Get(ctx, "o1")
	got.State = domain.OrderStatePaid

	fresh, _ := store.Get(ctx, "o1")
	if fresh.State != domain.OrderStateCreated {
		t.Fatal("mutating a returned order leaked into the store")
	}
}

func TestMemoryOrderStoreGetByInvoiceRef(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	now := time.Now()

	order := makeOrder("o1", domain.OrderStateInvoiced, now, now.Add(time.Hour))
	order.InvoiceRef = "inv-1"
	if err := store.Create(ctx, order); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.GetByInvoiceRef(ctx, "inv-1")
	if err != nil {
		t.Fatalf("get by invoice ref: %v", err)
	}
	if got.ID != "o1" {
		t.Fatalf("got order %s, want o1", got.ID)
	}

	if _, err := store.GetByInvoiceRef(ctx, ""); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("empty ref must not match, got %v", err)
	}
	if _, err := store.GetByInvoiceRef(ctx, "inv-2"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("unknown ref: got %v, want ErrOrderNotFound", err)
	}
}

func TestMemoryOrderStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	now := time.Now()

	order := makeOrder("o1", domain.OrderStateCreated, now, now.Add(time.Hour))
	if err := store.Create(ctx, order); err != nil {
		t.Fatalf("create: %v", err)
	}

	order.State = domain.OrderStateInvoiced
	order.InvoiceRef = "inv-1"
	if err := store.Update(ctx, order); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := store.Get(ctx, "o1")
	if got.State != domain.OrderStateInvoiced || got.InvoiceRef != "inv-1" {
		t.Fatalf("update not applied: %+v", got)
	}

	missing := makeOrder("nope", domain.OrderStateCreated, now, now.Add(time.Hour))
	if err := store.Update(ctx, missing); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("update missing: got %v, want ErrOrderNotFound", err)
	}
}

func TestMemoryOrderStoreListExpirable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	now := time.Now()

	// Past-due in expirable states.
	store.Create(ctx, makeOrder("o1", domain.OrderStateCreated, now.Add(-2*time.Hour), now.Add(-time.Hour)))
	store.Create(ctx, makeOrder("o2", domain.OrderStateInvoiced, now.Add(-time.Hour), now.Add(-time.Minute)))
	// Past-due but already settled.
	store.Create(ctx, makeOrder("o3", domain.OrderStatePaid, now.Add(-time.Hour), now.Add(-time.Minute)))
	// Not yet due.
	store.Create(ctx, makeOrder("o4", domain.OrderStateInvoiced, now, now.Add(time.Hour)))

	got, err := store.ListExpirable(ctx, now, 10)
	if err != nil {
		t.Fatalf("list expirable: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d expirable orders, want 2", len(got))
	}
	// Oldest first.
	if got[0].ID != "o1" || got[1].ID != "o2" {
		t.Fatalf("wrong order: %s, %s", got[0].ID, got[1].ID)
	}

	limited, _ := store.ListExpirable(ctx, now, 1)
	if len(limited) != 1 || limited[0].ID != "o1" {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestMemoryOrderStoreListByState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	now := time.Now()

	store.Create(ctx, makeOrder("o1", domain.OrderStateInvoiced, now.Add(-time.Minute), now.Add(time.Hour)))
	store.Create(ctx, makeOrder("o2", domain.OrderStateCreated, now, now.Add(time.Hour)))
	store.Create(ctx, makeOrder("o3", domain.OrderStateInvoiced, now, now.Add(time.Hour)))

	got, err := store.ListByState(ctx, domain.OrderStateInvoiced, 10)
	if err != nil {
		t.Fatalf("list by state: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d invoiced orders, want 2", len(got))
	}
}

func TestMemoryOrderStoreListByUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryOrderStore()
	now := time.Now()

	first := makeOrder("o1", domain.OrderStateCreated, now, now.Add(time.Hour))
	second := makeOrder("o2", domain.OrderStateCreated, now, now.Add(time.Hour))
	second.UserID = 7
	store.Create(ctx, first)
	store.Create(ctx, second)

	got, err := store.ListByUser(ctx, 42, 10)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(got) != 1 || got[0].ID != "o1" {
		t.Fatalf("got %+v", got)
	}
}
