package port

import (
	"context"

	"github.com/rl1809/oms-cart/internal/core/domain"
)

type CacheRepository interface {
	// ReserveStock atomically decreases stock for every request, returns false
	// and changes nothing if any product is short
	ReserveStock(ctx context.Context, items []domain.StockRequest) (bool, error)

	// ReleaseStock restores reserved stock (for rollback on failure)
	ReleaseStock(ctx context.Context, items []domain.StockRequest) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ClearIdempotency frees a key so a request that failed can be retried
	ClearIdempotency(ctx context.Context, key string) error
}
