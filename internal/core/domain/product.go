package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	StockStatusInStock    StockStatus = "in_stock"
	StockStatusLowStock   StockStatus = "low_stock"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

// Product is owned by the catalog. The cart only reads Price and Stock at the
// moment of a command.
type Product struct {
	ID          string
	SKU         string
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
	MinStock    int
	Version     int // optimistic locking
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p Product) Purchasable() bool {
	return p.Stock > 0
}

func (p Product) LowStock() bool {
	return p.Stock < p.MinStock
}

func (p Product) StockStatus() StockStatus {
	switch {
	case p.Stock <= 0:
		return StockStatusOutOfStock
	case p.LowStock():
		return StockStatusLowStock
	default:
		return StockStatusInStock
	}
}

const AllCategories = "All"

// ProductFilter mirrors the catalog page: free-text term, category and price
// range. A nil bound is open.
type ProductFilter struct {
	Search      string
	Category    string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	InStockOnly bool
}

func (f ProductFilter) Matches(p Product) bool {
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		if !strings.Contains(strings.ToLower(p.Name), term) &&
			!strings.Contains(strings.ToLower(p.Description), term) &&
			!strings.Contains(strings.ToLower(p.SKU), term) {
			return false
		}
	}
	if f.Category != "" && f.Category != AllCategories && p.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.InStockOnly && !p.Purchasable() {
		return false
	}
	return true
}
