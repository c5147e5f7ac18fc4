package port

import (
	"context"

	"github.com/rl1809/oms-cart/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder persists an order with its lines and decrements product stock
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrder retrieves an order by ID, nil if it does not exist
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ListOrders returns orders matching the filter, newest first
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)

	// UpdateOrderStatus moves an order from one status to another, failing if
	// the stored status is no longer from. Moving to cancelled restocks the
	// order lines in the same transaction.
	UpdateOrderStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) error
}
