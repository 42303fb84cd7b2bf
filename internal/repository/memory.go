package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ajibnet/ajibot/internal/domain"
)

// MemoryOrderStore is an in-process order store with the same contract as
// the Postgres one. Used in tests and single-node deployments without a
// database.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[string]domain.Order)}
}

func (s *MemoryOrderStore) Create(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return domain.ErrDuplicateOrder
	}
	s.orders[o.ID] = *o
	return nil
}

func (s *MemoryOrderStore) Get(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return &o, nil
}

func (s *MemoryOrderStore) GetByInvoiceRef(_ context.Context, invoiceRef string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.InvoiceRef != "" && o.InvoiceRef == invoiceRef {
			return &o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (s *MemoryOrderStore) Update(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	s.orders[o.ID] = *o
	return nil
}

func (s *MemoryOrderStore) ListByState(_ context.Context, state domain.OrderState, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var orders []domain.Order
	for _, o := range s.orders {
		if o.State == state {
			orders = append(orders, o)
		}
	}
	sortByCreated(orders)
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *MemoryOrderStore) ListExpirable(_ context.Context, now time.Time, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var orders []domain.Order
	for _, o := range s.orders {
		if (o.State == domain.OrderStateCreated || o.State == domain.OrderStateInvoiced) && o.ExpiresAt.Before(now) {
			orders = append(orders, o)
		}
	}
	sortByCreated(orders)
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (s *MemoryOrderStore) ListByUser(_ context.Context, userID int64, limit int) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var orders []domain.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sortByCreated(orders)
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func sortByCreated(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID < orders[j].ID
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}
