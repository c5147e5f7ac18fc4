package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/oms-cart/internal/core/domain"
)

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	require.NoError(t, Seed(context.Background(), s))
	return s
}

func TestMemoryStore_SeedIsRepeatable(t *testing.T) {
	s := seededStore(t)
	require.NoError(t, Seed(context.Background(), s))

	products, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 6)
	assert.Equal(t, "1", products[0].ID)
	assert.Equal(t, 1, products[0].Version)

	orders, err := s.ListOrders(context.Background(), domain.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, orders, 5)
	assert.Equal(t, "ORD-12345", orders[0].ID)
}

func TestMemoryStore_ListOrdersNewestFirstWithTieBreak(t *testing.T) {
	s := seededStore(t)

	orders, err := s.ListOrders(context.Background(), domain.OrderFilter{TenantID: DemoTenant})
	require.NoError(t, err)
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	assert.Equal(t, []string{"ORD-12345", "ORD-12346", "ORD-12347", "ORD-12348", "ORD-12349"}, ids)
}

func TestMemoryStore_CreateOrderTakesStock(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	order := domain.Order{
		ID:     "o-1",
		Status: domain.OrderStatusPending,
		Lines:  []domain.OrderLine{{ProductID: "4", Quantity: 3}},
	}
	require.NoError(t, s.CreateOrder(ctx, order))

	p, err := s.GetProduct(ctx, "4")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	require.ErrorIs(t, s.CreateOrder(ctx, order), ErrDuplicateOrder)

	short := domain.Order{ID: "o-2", Lines: []domain.OrderLine{{ProductID: "4", Quantity: 6}}}
	require.ErrorIs(t, s.CreateOrder(ctx, short), ErrOptimisticLock)
	p, _ = s.GetProduct(ctx, "4")
	assert.Equal(t, 5, p.Stock)
}

func TestMemoryStore_UpdateOrderStatus(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateOrder(ctx, domain.Order{
		ID:     "o-1",
		Status: domain.OrderStatusPending,
		Lines:  []domain.OrderLine{{ProductID: "1", Quantity: 5}},
	}))

	require.ErrorIs(t, s.UpdateOrderStatus(ctx, "o-1", domain.OrderStatusShipped, domain.OrderStatusDelivered), ErrOptimisticLock)
	require.NoError(t, s.UpdateOrderStatus(ctx, "o-1", domain.OrderStatusPending, domain.OrderStatusCancelled))

	o, err := s.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, o.Status)

	p, _ := s.GetProduct(ctx, "1")
	assert.Equal(t, 45, p.Stock)
}

func TestMemoryStore_GetOrderReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.ImportOrder(ctx, domain.Order{
		ID:    "o-1",
		Lines: []domain.OrderLine{{ProductID: "1", Quantity: 1, UnitPrice: decimal.NewFromInt(1)}},
	}))

	o, err := s.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	o.Lines[0].Quantity = 99

	again, _ := s.GetOrder(ctx, "o-1")
	assert.Equal(t, 1, again.Lines[0].Quantity)

	missing, err := s.GetOrder(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryCache_ReserveAllOrNothing(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, c.SetStock(ctx, "a", 10))
	require.NoError(t, c.SetStock(ctx, "b", 1))

	ok, err := c.ReserveStock(ctx, []domain.StockRequest{{ProductID: "a", Quantity: 3}, {ProductID: "b", Quantity: 2}})
	require.NoError(t, err)
	assert.False(t, ok)
	a, _ := c.Stock(ctx, "a")
	assert.Equal(t, 10, a)

	ok, err = c.ReserveStock(ctx, []domain.StockRequest{{ProductID: "missing", Quantity: 1}})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.ReserveStock(ctx, []domain.StockRequest{{ProductID: "a", Quantity: 3}, {ProductID: "b", Quantity: 1}})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.ReleaseStock(ctx, []domain.StockRequest{{ProductID: "b", Quantity: 1}}))
	b, _ := c.Stock(ctx, "b")
	assert.Equal(t, 1, b)
}

func TestMemoryCache_ReserveConcurrent(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, c.SetStock(ctx, "item", 20))

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := c.ReserveStock(ctx, []domain.StockRequest{{ProductID: "item", Quantity: 1}}); ok {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), successCount.Load())
}

func TestMemoryCache_IdempotencyExpires(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := c.SetIdempotency(ctx, "k")
	assert.True(t, ok)
	ok, _ = c.SetIdempotency(ctx, "k")
	assert.False(t, ok)

	now = now.Add(idempotencyKeyTTL + time.Second)
	ok, _ = c.SetIdempotency(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryCache_ClearIdempotency(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	ok, _ := c.SetIdempotency(ctx, "k")
	require.True(t, ok)
	require.NoError(t, c.ClearIdempotency(ctx, "k"))

	ok, _ = c.SetIdempotency(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryCache_ExpiredKeysArePruned(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		ok, _ := c.SetIdempotency(ctx, key)
		require.True(t, ok)
	}
	assert.Equal(t, 3, c.idempotencyKeys())

	now = now.Add(idempotencyKeyTTL + time.Minute)
	ok, _ := c.SetIdempotency(ctx, "d")
	require.True(t, ok)
	assert.Equal(t, 1, c.idempotencyKeys())
}
