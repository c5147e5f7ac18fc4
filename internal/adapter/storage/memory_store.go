package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/oms-cart/internal/core/domain"
)

// MemoryStore keeps the catalog and orders in process. It backs the
// "memory" storage driver and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	orders   map[string]domain.Order
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
		now:      time.Now,
	}
}

func (s *MemoryStore) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) UpsertProduct(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.products[p.ID]; ok {
		p.Version = existing.Version + 1
		p.CreatedAt = existing.CreatedAt
	} else {
		p.Version = 0
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.products[p.ID] = p
	return nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return ErrDuplicateOrder
	}
	for _, l := range order.Lines {
		if p, ok := s.products[l.ProductID]; !ok || p.Stock < l.Quantity {
			return ErrOptimisticLock
		}
	}
	for _, l := range order.Lines {
		s.adjustStock(l.ProductID, -l.Quantity)
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *MemoryStore) ImportOrder(_ context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return ErrDuplicateOrder
	}
	s.orders[order.ID] = cloneOrder(order)
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, orderID string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, nil
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s *MemoryStore) ListOrders(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Order
	for _, o := range s.orders {
		if filter.Matches(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, orderID string, from, to domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.Status != from {
		return ErrOptimisticLock
	}
	o.Status = to
	o.UpdatedAt = s.now()
	s.orders[orderID] = o

	if to == domain.OrderStatusCancelled {
		for _, l := range o.Lines {
			s.adjustStock(l.ProductID, l.Quantity)
		}
	}
	return nil
}

func (s *MemoryStore) adjustStock(productID string, delta int) {
	p, ok := s.products[productID]
	if !ok {
		return
	}
	p.Stock += delta
	p.Version++
	p.UpdatedAt = s.now()
	s.products[productID] = p
}

func cloneOrder(o domain.Order) domain.Order {
	o.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return o
}

// MemoryCache is the in-process counterpart of RedisAdapter.
type MemoryCache struct {
	mu        sync.Mutex
	stock     map[string]int
	keys      map[string]time.Time
	now       func() time.Time
	lastPrune time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		stock: make(map[string]int),
		keys:  make(map[string]time.Time),
		now:   time.Now,
	}
}

func (c *MemoryCache) ReserveStock(_ context.Context, items []domain.StockRequest) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	need := make(map[string]int, len(items))
	for _, it := range items {
		need[it.ProductID] += it.Quantity
	}
	for id, qty := range need {
		current, ok := c.stock[id]
		if !ok || current < qty {
			return false, nil
		}
	}
	for id, qty := range need {
		c.stock[id] -= qty
	}
	return true, nil
}

func (c *MemoryCache) ReleaseStock(_ context.Context, items []domain.StockRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, it := range items {
		c.stock[it.ProductID] += it.Quantity
	}
	return nil
}

func (c *MemoryCache) SetIdempotency(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneKeys(now)
	if expires, ok := c.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	c.keys[key] = now.Add(idempotencyKeyTTL)
	return true, nil
}

func (c *MemoryCache) ClearIdempotency(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	return nil
}

// pruneKeys drops expired idempotency keys at most once per minute.
// Callers hold c.mu.
func (c *MemoryCache) pruneKeys(now time.Time) {
	if now.Sub(c.lastPrune) < time.Minute {
		return
	}
	c.lastPrune = now
	for key, expires := range c.keys {
		if !now.Before(expires) {
			delete(c.keys, key)
		}
	}
}

// idempotencyKeys reports how many keys are held.
func (c *MemoryCache) idempotencyKeys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

func (c *MemoryCache) SetStock(_ context.Context, productID string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stock[productID] = quantity
	return nil
}

func (c *MemoryCache) Stock(_ context.Context, productID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stock[productID], nil
}
