package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/oms-cart/internal/core/domain"
)

func TestDashboard_Summary(t *testing.T) {
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	statuses := []domain.OrderStatus{
		domain.OrderStatusDelivered,
		domain.OrderStatusShipped,
		domain.OrderStatusProcessing,
		domain.OrderStatusPending,
		domain.OrderStatusPackaged,
		domain.OrderStatusCancelled,
	}
	var stored []domain.Order
	for i, status := range statuses {
		stored = append(stored, storedOrder(fmt.Sprintf("ORD-%d", i), status, "100.00", base.Add(time.Duration(i)*time.Hour)))
	}
	other := storedOrder("ORD-X", domain.OrderStatusPending, "999.00", base)
	other.Customer.TenantID = "tenant-2"
	stored = append(stored, other)

	orderSvc := newTestOrderService(newMockCacheRepo(nil), newMockOrderRepo(stored...), &mockPublisher{})
	defer orderSvc.Close()
	catalog := NewCatalogService(newMockCatalogRepo(testProduct("p1", "1.00", 8), testProduct("p2", "1.00", 50)))
	svc := NewDashboardService(catalog, orderSvc)

	summary, err := svc.Summary(context.Background(), "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, 6, summary.TotalOrders)
	assert.True(t, summary.Revenue.Equal(decimal.RequireFromString("500.00")), summary.Revenue.String())
	assert.Equal(t, 1, summary.StatusCounts[domain.OrderStatusCancelled])
	assert.Equal(t, 1, summary.StatusCounts[domain.OrderStatusPending])
	require.Len(t, summary.RecentOrders, 5)
	assert.Equal(t, "ORD-5", summary.RecentOrders[0].ID)
	require.Len(t, summary.LowStock, 1)
	assert.Equal(t, "p1", summary.LowStock[0].ID)
	assert.Equal(t, 2, summary.ProductCount)
	assert.Equal(t, 6, summary.CustomerCount)
}

func TestDashboard_EmptyTenant(t *testing.T) {
	orderSvc := newTestOrderService(newMockCacheRepo(nil), newMockOrderRepo(), &mockPublisher{})
	defer orderSvc.Close()
	svc := NewDashboardService(NewCatalogService(newMockCatalogRepo()), orderSvc)

	summary, err := svc.Summary(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, summary.TotalOrders)
	assert.True(t, summary.Revenue.IsZero())
	assert.Empty(t, summary.RecentOrders)
	assert.Len(t, summary.StatusCounts, len(domain.OrderStatuses))
}
