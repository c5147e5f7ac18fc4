package port

import (
	"context"

	"github.com/rl1809/oms-cart/internal/core/domain"
)

type CatalogRepository interface {
	// GetProduct retrieves a product by ID, nil if it does not exist
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// ListProducts returns the whole catalog ordered by ID
	ListProducts(ctx context.Context) ([]domain.Product, error)
}
