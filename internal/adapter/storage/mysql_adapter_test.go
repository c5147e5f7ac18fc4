package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/oms-cart/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/omscart?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("MySQL not available: %v", err)
	}

	require.NoError(t, Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func putProduct(t *testing.T, adapter *MySQLAdapter, id string, stock int) {
	t.Helper()
	require.NoError(t, adapter.UpsertProduct(context.Background(), domain.Product{
		ID:       id,
		SKU:      "SKU-" + id,
		Name:     "Test " + id,
		Category: "Test",
		Price:    decimal.RequireFromString("12.50"),
		Stock:    stock,
		MinStock: 5,
	}))
}

func testOrder(id, productID string, qty int) domain.Order {
	now := time.Now().UTC().Truncate(time.Second)
	unit := decimal.RequireFromString("12.50")
	return domain.Order{
		ID:       id,
		Customer: domain.Customer{TenantID: "test-tenant", UserID: "test-user", Name: "Test User", Email: "test@example.com"},
		Lines: []domain.OrderLine{{
			ProductID: productID, Name: "Test " + productID, SKU: "SKU-" + productID,
			Quantity: qty, UnitPrice: unit, LineTotal: unit.Mul(decimal.NewFromInt(int64(qty))),
		}},
		ItemCount: qty,
		Total:     unit.Mul(decimal.NewFromInt(int64(qty))),
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMySQLCreateOrder_Success(t *testing.T) {
	db := getMySQLDB(t)
	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	putProduct(t, adapter, "test-item", 100)

	order := testOrder("test-order-"+time.Now().Format("20060102150405.000000"), "test-item", 1)
	t.Cleanup(func() { db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID) })

	require.NoError(t, adapter.CreateOrder(ctx, order))

	stored, err := adapter.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, order.Customer, stored.Customer)
	require.Len(t, stored.Lines, 1)
	assert.True(t, stored.Total.Equal(order.Total))

	p, err := adapter.GetProduct(ctx, "test-item")
	require.NoError(t, err)
	assert.Equal(t, 99, p.Stock)

	require.ErrorIs(t, adapter.CreateOrder(ctx, order), ErrDuplicateOrder)
}

func TestMySQLCreateOrder_InsufficientStock(t *testing.T) {
	db := getMySQLDB(t)
	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	putProduct(t, adapter, "empty-item", 0)

	order := testOrder("test-order-fail-"+time.Now().Format("20060102150405.000000"), "empty-item", 1)
	err := adapter.CreateOrder(ctx, order)
	require.ErrorIs(t, err, ErrOptimisticLock)

	stored, err := adapter.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestMySQLGetProduct_NotFound(t *testing.T) {
	db := getMySQLDB(t)
	adapter := NewMySQLAdapter(db)

	p, err := adapter.GetProduct(context.Background(), "nonexistent-item")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMySQLUpdateOrderStatus_CancelRestocks(t *testing.T) {
	db := getMySQLDB(t)
	ctx := context.Background()
	adapter := NewMySQLAdapter(db)
	putProduct(t, adapter, "lock-test-item", 10)

	order := testOrder("test-order-cancel-"+time.Now().Format("20060102150405.000000"), "lock-test-item", 4)
	t.Cleanup(func() { db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID) })
	require.NoError(t, adapter.CreateOrder(ctx, order))

	// stale previous status
	err := adapter.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusShipped, domain.OrderStatusDelivered)
	require.ErrorIs(t, err, ErrOptimisticLock)

	require.NoError(t, adapter.UpdateOrderStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusCancelled))

	p, err := adapter.GetProduct(ctx, "lock-test-item")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)

	orders, err := adapter.ListOrders(ctx, domain.OrderFilter{TenantID: "test-tenant", Status: domain.OrderStatusCancelled, Search: order.ID})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}
