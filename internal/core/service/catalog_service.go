package service

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/singleflight"

	"github.com/rl1809/oms-cart/internal/core/domain"
	"github.com/rl1809/oms-cart/internal/port"
)

type CatalogService struct {
	repo port.CatalogRepository
	sfg  singleflight.Group // collapses concurrent lookups of the same product
}

func NewCatalogService(repo port.CatalogRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

// GetProduct shares one repository lookup between concurrent callers. The
// lookup is detached from the caller that started it; each caller still
// stops waiting when its own ctx is done.
func (s *CatalogService) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := s.sfg.DoChan(productID, func() (interface{}, error) {
		p, err := s.repo.GetProduct(flightCtx, productID)
		if err != nil {
			return nil, fmt.Errorf("get product %s: %w", productID, err)
		}
		if p == nil {
			return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, productID)
		}
		return *p, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Product{}, res.Err
		}
		return res.Val.(domain.Product), nil
	case <-ctx.Done():
		return domain.Product{}, ctx.Err()
	}
}

func (s *CatalogService) Search(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if filter.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	seen := make(map[string]struct{})
	var categories []string
	for _, p := range products {
		if _, ok := seen[p.Category]; ok || p.Category == "" {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

func (s *CatalogService) LowStock(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	var out []domain.Product
	for _, p := range products {
		if p.LowStock() {
			out = append(out, p)
		}
	}
	return out, nil
}
