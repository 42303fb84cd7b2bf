package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajibnet/ajibot/internal/domain"
)

type countingLister struct {
	calls int
	plans []domain.Plan
	err   error
}

func (l *countingLister) ListPlans(context.Context) ([]domain.Plan, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.plans, nil
}

func TestPlanCatalogCaches(t *testing.T) {
	lister := &countingLister{plans: []domain.Plan{basicPlan()}}
	catalog := NewPlanCatalog(lister, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		plans, err := catalog.Plans(ctx)
		if err != nil {
			t.Fatalf("plans: %v", err)
		}
		if len(plans) != 1 {
			t.Fatalf("got %d plans", len(plans))
		}
	}
	if lister.calls != 1 {
		t.Fatalf("backend hit %d times, want 1", lister.calls)
	}
}

func TestPlanCatalogRefreshesAfterTTL(t *testing.T) {
	lister := &countingLister{plans: []domain.Plan{basicPlan()}}
	catalog := NewPlanCatalog(lister, time.Millisecond)
	ctx := context.Background()

	if _, err := catalog.Plans(ctx); err != nil {
		t.Fatalf("plans: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := catalog.Plans(ctx); err != nil {
		t.Fatalf("plans after ttl: %v", err)
	}
	if lister.calls != 2 {
		t.Fatalf("backend hit %d times, want 2", lister.calls)
	}
}

func TestPlanCatalogSkipsRetiredPlans(t *testing.T) {
	retired := basicPlan()
	retired.ID = "p-old"
	retired.Retired = true
	lister := &countingLister{plans: []domain.Plan{basicPlan(), retired}}
	catalog := NewPlanCatalog(lister, time.Hour)
	ctx := context.Background()

	if _, err := catalog.Plan(ctx, "p1"); err != nil {
		t.Fatalf("active plan: %v", err)
	}
	if _, err := catalog.Plan(ctx, "p-old"); !errors.Is(err, domain.ErrPlanNotFound) {
		t.Fatalf("retired plan: got %v, want ErrPlanNotFound", err)
	}
	if _, err := catalog.Plan(ctx, "nope"); !errors.Is(err, domain.ErrPlanNotFound) {
		t.Fatalf("unknown plan: got %v, want ErrPlanNotFound", err)
	}
}

func TestPlanCatalogPropagatesBackendError(t *testing.T) {
	lister := &countingLister{err: ErrBackendUnavailable}
	catalog := NewPlanCatalog(lister, time.Hour)

	if _, err := catalog.Plans(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("got %v, want ErrBackendUnavailable", err)
	}

	// Backend recovers; the catalog fills on the next read.
	lister.err = nil
	lister.plans = []domain.Plan{{ID: "p1", Price: decimal.RequireFromString("10.00")}}
	plans, err := catalog.Plans(context.Background())
	if err != nil {
		t.Fatalf("plans after recovery: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("got %d plans", len(plans))
	}
}
