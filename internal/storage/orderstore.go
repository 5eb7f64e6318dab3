package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/taxiapi"
)

var ErrNotFound = errors.New("order not found")

// OrderStore defines persistence operations for the matching simulator.
type OrderStore interface {
	SaveOrder(ctx context.Context, o models.Order) (models.StoredOrder, error)
	// DeleteOrder removes id only if it belongs to identity.
	DeleteOrder(ctx context.Context, identity models.Identity, id models.OrderID) error
	OrdersFor(ctx context.Context, identity models.Identity) ([]models.StoredOrder, error)
	OrdersByRole(ctx context.Context, role models.Role) ([]models.StoredOrder, error)
	Count(ctx context.Context) (int, error)
}

type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	orders map[models.OrderID]models.StoredOrder
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[models.OrderID]models.StoredOrder)}
}

func (m *MemoryStore) SaveOrder(_ context.Context, o models.Order) (models.StoredOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	so := models.StoredOrder{ID: models.OrderID(taxiapi.FormatID(m.nextID)), Order: o, CreatedAt: time.Now().UTC()}
	m.orders[so.ID] = so
	return so, nil
}

func (m *MemoryStore) DeleteOrder(_ context.Context, identity models.Identity, id models.OrderID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	so, ok := m.orders[id]
	if !ok || so.Order.Identity != identity {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *MemoryStore) OrdersFor(_ context.Context, identity models.Identity) ([]models.StoredOrder, error) {
	return m.filter(func(so models.StoredOrder) bool { return so.Order.Identity == identity }), nil
}

func (m *MemoryStore) OrdersByRole(_ context.Context, role models.Role) ([]models.StoredOrder, error) {
	return m.filter(func(so models.StoredOrder) bool { return so.Order.Role == role }), nil
}

func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.orders), nil
}

// filter returns matching orders oldest first.
func (m *MemoryStore) filter(keep func(models.StoredOrder) bool) []models.StoredOrder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.StoredOrder, 0)
	for _, so := range m.orders {
		if keep(so) {
			out = append(out, so)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
