package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/oms-cart/internal/core/domain"
)

const recentOrdersLimit = 5

type DashboardSummary struct {
	TotalOrders   int
	Revenue       decimal.Decimal
	StatusCounts  map[domain.OrderStatus]int
	RecentOrders  []domain.Order
	LowStock      []domain.Product
	ProductCount  int
	CustomerCount int
}

type DashboardService struct {
	catalog *CatalogService
	orders  *OrderService
}

func NewDashboardService(catalog *CatalogService, orders *OrderService) *DashboardService {
	return &DashboardService{catalog: catalog, orders: orders}
}

// Summary aggregates the tenant's orders and the catalog. Cancelled orders
// count towards totals but not revenue. An empty tenantID covers every tenant.
func (s *DashboardService) Summary(ctx context.Context, tenantID string) (DashboardSummary, error) {
	orders, err := s.orders.ListOrders(ctx, domain.OrderFilter{TenantID: tenantID})
	if err != nil {
		return DashboardSummary{}, err
	}
	lowStock, err := s.catalog.LowStock(ctx)
	if err != nil {
		return DashboardSummary{}, err
	}
	products, err := s.catalog.Search(ctx, domain.ProductFilter{})
	if err != nil {
		return DashboardSummary{}, err
	}

	summary := DashboardSummary{
		TotalOrders:  len(orders),
		Revenue:      decimal.Zero,
		StatusCounts: make(map[domain.OrderStatus]int, len(domain.OrderStatuses)),
		LowStock:     lowStock,
		ProductCount: len(products),
	}
	for _, status := range domain.OrderStatuses {
		summary.StatusCounts[status] = 0
	}

	customers := make(map[string]struct{})
	for _, o := range orders {
		summary.StatusCounts[o.Status]++
		if o.Status != domain.OrderStatusCancelled {
			summary.Revenue = summary.Revenue.Add(o.Total)
		}
		customers[customerKey(o.Customer)] = struct{}{}
	}
	summary.CustomerCount = len(customers)

	// orders arrive newest first
	n := min(len(orders), recentOrdersLimit)
	summary.RecentOrders = append([]domain.Order(nil), orders[:n]...)
	return summary, nil
}

func customerKey(c domain.Customer) string {
	if c.UserID != "" {
		return c.TenantID + "/" + c.UserID
	}
	return c.TenantID + "/" + c.Email
}
