package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/oms-cart/internal/core/domain"
)

const DemoTenant = "demo"

// Seeder is implemented by every catalog/order store that can be populated
// with demo data.
type Seeder interface {
	UpsertProduct(ctx context.Context, p domain.Product) error
	ImportOrder(ctx context.Context, order domain.Order) error
}

// Seed loads the demo catalog and order history. Orders that already exist
// are left alone so a restart does not fail.
func Seed(ctx context.Context, s Seeder) error {
	for _, p := range SeedProducts() {
		if err := s.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}
	for _, o := range SeedOrders() {
		if err := s.ImportOrder(ctx, o); err != nil && !errors.Is(err, ErrDuplicateOrder) {
			return fmt.Errorf("seed order %s: %w", o.ID, err)
		}
	}
	return nil
}

func SeedProducts() []domain.Product {
	return []domain.Product{
		seedProduct("1", "WBH-001", "Wireless Bluetooth Headphones", "High-quality wireless headphones with noise cancellation", "Electronics", "299.99", 45, 20),
		seedProduct("2", "SW-005", "Smart Watch Series 5", "Advanced smartwatch with health monitoring features", "Electronics", "399.99", 23, 25),
		seedProduct("3", "OCT-001", "Organic Cotton T-Shirt", "Comfortable 100% organic cotton t-shirt", "Clothing", "29.99", 120, 50),
		seedProduct("4", "PCL-050", "Professional Camera Lens", "50mm f/1.8 professional camera lens", "Photography", "599.99", 8, 15),
		seedProduct("5", "EOC-001", "Ergonomic Office Chair", "Comfortable ergonomic chair for long work sessions", "Furniture", "249.99", 0, 10),
		seedProduct("6", "SSWB-500", "Stainless Steel Water Bottle", "Insulated stainless steel water bottle 500ml", "Accessories", "24.99", 200, 40),
	}
}

func SeedOrders() []domain.Order {
	return []domain.Order{
		seedOrder("ORD-12345", "John Smith", "john@acme.com", "1250.00", domain.OrderStatusDelivered, "2024-01-15", 3),
		seedOrder("ORD-12346", "Sarah Johnson", "sarah@techflow.com", "890.50", domain.OrderStatusShipped, "2024-01-14", 2),
		seedOrder("ORD-12347", "Mike Davis", "mike@global.com", "2100.75", domain.OrderStatusProcessing, "2024-01-14", 5),
		seedOrder("ORD-12348", "Emily Wilson", "emily@startup.com", "445.25", domain.OrderStatusPending, "2024-01-13", 1),
		seedOrder("ORD-12349", "David Brown", "david@company.com", "675.80", domain.OrderStatusPackaged, "2024-01-12", 2),
	}
}

func seedProduct(id, sku, name, description, category, price string, stock, minStock int) domain.Product {
	return domain.Product{
		ID:          id,
		SKU:         sku,
		Name:        name,
		Description: description,
		Category:    category,
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		MinStock:    minStock,
	}
}

// seedOrder has no lines; the history only records totals.
func seedOrder(id, name, email, total string, status domain.OrderStatus, date string, items int) domain.Order {
	created, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic(err)
	}
	return domain.Order{
		ID: id,
		Customer: domain.Customer{
			TenantID: DemoTenant,
			UserID:   email,
			Name:     name,
			Email:    email,
		},
		ItemCount: items,
		Total:     decimal.RequireFromString(total),
		Status:    status,
		CreatedAt: created,
		UpdatedAt: created,
	}
}
