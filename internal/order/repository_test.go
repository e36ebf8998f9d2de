package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/KretovDmitry/order-store-service/internal/models/errs"
	"github.com/KretovDmitry/order-store-service/internal/models/order"
	"github.com/avito-tech/go-transaction-manager/trm/v2"
)

// Lock in case of t.Parallel call.
type mockRepository struct {
	items  []storedOrder
	events []Event
	mu     sync.RWMutex
	seq    int
}

type storedOrder struct {
	order order.Order
	seq   int
}

func (m *mockRepository) Create(_ context.Context, o *order.Order) (*order.Order, error) {
	if o.OrderID == "boom" {
		return nil, errors.New("connection reset")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.order.OrderID == o.OrderID {
			return nil, errs.ErrConflict
		}
	}
	m.seq++
	stored := *o
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.items = append(m.items, storedOrder{order: stored, seq: m.seq})
	return &stored, nil
}

func (m *mockRepository) UpdateStatus(_ context.Context, orderID string, status order.Status) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items {
		if item.order.OrderID == orderID {
			m.items[i].order.Status = status
			m.items[i].order.UpdatedAt = time.Now()
			updated := m.items[i].order
			return &updated, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockRepository) GetByOrderID(_ context.Context, orderID string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.items {
		if item.order.OrderID == orderID {
			found := item.order
			return &found, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockRepository) GetByCustomerID(_ context.Context, customerID string) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]storedOrder, 0)
	for _, item := range m.items {
		if item.order.CustomerID == customerID {
			matched = append(matched, item)
		}
	}
	return newestFirst(matched), nil
}

func (m *mockRepository) List(_ context.Context, limit, offset int) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := newestFirst(append([]storedOrder(nil), m.items...))
	if offset >= len(all) {
		return []*order.Order{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *mockRepository) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

func (m *mockRepository) Delete(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items {
		if item.order.OrderID == orderID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

func (m *mockRepository) CountByStatus(_ context.Context) ([]StatusCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byStatus := make(map[order.Status]int)
	for _, item := range m.items {
		byStatus[item.order.Status]++
	}
	counts := make([]StatusCount, 0, len(byStatus))
	for status, count := range byStatus {
		counts = append(counts, StatusCount{Status: status, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Status < counts[j].Status })
	return counts, nil
}

func (m *mockRepository) SaveEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

// Newest first by created_at; ties break on insertion order, stable
// within a single call like the repository contract requires.
func newestFirst(items []storedOrder) []*order.Order {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].order.CreatedAt.Equal(items[j].order.CreatedAt) {
			return items[i].order.CreatedAt.After(items[j].order.CreatedAt)
		}
		return items[i].seq > items[j].seq
	})
	orders := make([]*order.Order, 0, len(items))
	for i := range items {
		o := items[i].order
		orders = append(orders, &o)
	}
	return orders
}

var _ Repository = (*mockRepository)(nil)

// Passthrough transaction manager for tests.
type mockTrManager struct{}

func (mockTrManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (mockTrManager) DoWithSettings(ctx context.Context, _ trm.Settings, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockNotifier struct {
	mu     sync.Mutex
	events []string
}

func (m *mockNotifier) Notify(eventType, orderID string, _ interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, eventType+":"+orderID)
}
