package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/oms-cart/internal/core/domain"
)

// Mock CacheRepository
type mockCacheRepo struct {
	stock          map[string]int
	idempotencySet map[string]bool
	reserveErr     error
	releases       int
	mu             sync.Mutex
}

func newMockCacheRepo(stock map[string]int) *mockCacheRepo {
	if stock == nil {
		stock = make(map[string]int)
	}
	return &mockCacheRepo{
		stock:          stock,
		idempotencySet: make(map[string]bool),
	}
}

func (m *mockCacheRepo) ReserveStock(ctx context.Context, items []domain.StockRequest) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reserveErr != nil {
		return false, m.reserveErr
	}
	for _, it := range items {
		if m.stock[it.ProductID] < it.Quantity {
			return false, nil
		}
	}
	for _, it := range items {
		m.stock[it.ProductID] -= it.Quantity
	}
	return true, nil
}

func (m *mockCacheRepo) ReleaseStock(ctx context.Context, items []domain.StockRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
	for _, it := range items {
		m.stock[it.ProductID] += it.Quantity
	}
	return nil
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ClearIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

func (m *mockCacheRepo) stockOf(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[productID]
}

var errStaleStatus = errors.New("stale status")

// Mock OrderRepository
type mockOrderRepo struct {
	orders      map[string]domain.Order
	createErr   error
	createHangs bool // CreateOrder blocks until ctx expires
	mu          sync.Mutex
}

func newMockOrderRepo(orders ...domain.Order) *mockOrderRepo {
	m := &mockOrderRepo{orders: make(map[string]domain.Order)}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order domain.Order) error {
	if m.createHangs {
		<-ctx.Done()
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockOrderRepo) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *mockOrderRepo) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if filter.Matches(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockOrderRepo) UpdateOrderStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status != from {
		return errStaleStatus
	}
	o.Status = to
	m.orders[orderID] = o
	return nil
}

func (m *mockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// Mock CatalogRepository
type mockCatalogRepo struct {
	products map[string]domain.Product
	calls    int
	gate     chan struct{} // when set, lookups wait for it to close
	mu       sync.Mutex
}

func newMockCatalogRepo(products ...domain.Product) *mockCatalogRepo {
	m := &mockCatalogRepo{products: make(map[string]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockCatalogRepo) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	m.calls++
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		<-gate
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockCatalogRepo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockCatalogRepo) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *mockCatalogRepo) setStock(productID string, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[productID]
	p.Stock = stock
	m.products[productID] = p
}

// Mock EventPublisher
type publishedEvent struct {
	topic   string
	key     string
	payload any
}

type mockPublisher struct {
	events []publishedEvent
	err    error
	mu     sync.Mutex
}

func (m *mockPublisher) Publish(ctx context.Context, topic, key string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, publishedEvent{topic: topic, key: key, payload: payload})
	return nil
}

func (m *mockPublisher) published() []publishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]publishedEvent(nil), m.events...)
}

func testProduct(id, price string, stock int) domain.Product {
	return domain.Product{
		ID:       id,
		SKU:      "SKU-" + id,
		Name:     "Product " + id,
		Category: "Electronics",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		MinStock: 10,
	}
}
