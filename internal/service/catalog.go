package service

import (
	"context"
	"sync"
	"time"

	"github.com/ajibnet/ajibot/internal/domain"
)

// PlanLister is the slice of the provisioning backend the catalog needs.
type PlanLister interface {
	ListPlans(ctx context.Context) ([]domain.Plan, error)
}

// PlanCatalog is a read-through cache over the backend's plan list. Plans
// are owned by the backend; the bot only reads them.
type PlanCatalog struct {
	backend PlanLister
	ttl     time.Duration

	mu       sync.RWMutex
	plans    []domain.Plan
	cachedAt time.Time
}

func NewPlanCatalog(backend PlanLister, ttl time.Duration) *PlanCatalog {
	return &PlanCatalog{backend: backend, ttl: ttl}
}

func (c *PlanCatalog) Plans(ctx context.Context) ([]domain.Plan, error) {
	c.mu.RLock()
	if c.plans != nil && time.Since(c.cachedAt) <= c.ttl {
		plans := c.plans
		c.mu.RUnlock()
		return plans, nil
	}
	c.mu.RUnlock()

	plans, err := c.backend.ListPlans(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.plans = plans
	c.cachedAt = time.Now()
	c.mu.Unlock()
	return plans, nil
}

// Plan looks up a purchasable plan by ID. Unknown and retired plans both
// return domain.ErrPlanNotFound.
func (c *PlanCatalog) Plan(ctx context.Context, planID string) (*domain.Plan, error) {
	plans, err := c.Plans(ctx)
	if err != nil {
		return nil, err
	}
	for i := range plans {
		if plans[i].ID == planID && !plans[i].Retired {
			return &plans[i], nil
		}
	}
	return nil, domain.ErrPlanNotFound
}
