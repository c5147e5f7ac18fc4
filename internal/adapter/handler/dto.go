package handler

import (
	"time"

	"github.com/rl1809/oms-cart/internal/core/domain"
	"github.com/rl1809/oms-cart/internal/core/service"
)

// Money values are rendered as fixed two-decimal strings so no precision is
// lost in JSON numbers.

type ProductDTO struct {
	ID          string `json:"id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	MinStock    int    `json:"min_stock"`
	StockStatus string `json:"stock_status"`
}

func toProductDTO(p domain.Product) ProductDTO {
	return ProductDTO{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		MinStock:    p.MinStock,
		StockStatus: string(p.StockStatus()),
	}
}

func toProductDTOs(products []domain.Product) []ProductDTO {
	out := make([]ProductDTO, len(products))
	for i, p := range products {
		out[i] = toProductDTO(p)
	}
	return out
}

type LineDTO struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type CartDTO struct {
	Lines      []LineDTO `json:"lines"`
	ItemCount  int       `json:"item_count"`
	GrandTotal string    `json:"grand_total"`
}

func toCartDTO(s domain.Snapshot) CartDTO {
	lines := make([]LineDTO, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = LineDTO{
			ProductID: l.ProductID,
			Name:      l.Name,
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			LineTotal: l.LineTotal.StringFixed(2),
		}
	}
	return CartDTO{Lines: lines, ItemCount: s.ItemCount, GrandTotal: s.GrandTotal.StringFixed(2)}
}

type CustomerDTO struct {
	TenantID        string `json:"tenant_id"`
	UserID          string `json:"user_id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	ShippingAddress string `json:"shipping_address,omitempty"`
}

func (c CustomerDTO) toDomain() domain.Customer {
	return domain.Customer(c)
}

type OrderDTO struct {
	ID        string      `json:"id"`
	Customer  CustomerDTO `json:"customer"`
	Lines     []LineDTO   `json:"lines"`
	ItemCount int         `json:"item_count"`
	Total     string      `json:"total"`
	Status    string      `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func toOrderDTO(o domain.Order) OrderDTO {
	lines := make([]LineDTO, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = LineDTO{
			ProductID: l.ProductID,
			Name:      l.Name,
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			LineTotal: l.LineTotal.StringFixed(2),
		}
	}
	return OrderDTO{
		ID:        o.ID,
		Customer:  CustomerDTO(o.Customer),
		Lines:     lines,
		ItemCount: o.ItemCount,
		Total:     o.Total.StringFixed(2),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func toOrderDTOs(orders []domain.Order) []OrderDTO {
	out := make([]OrderDTO, len(orders))
	for i, o := range orders {
		out[i] = toOrderDTO(o)
	}
	return out
}

type DashboardDTO struct {
	TotalOrders   int            `json:"total_orders"`
	Revenue       string         `json:"revenue"`
	StatusCounts  map[string]int `json:"status_counts"`
	RecentOrders  []OrderDTO     `json:"recent_orders"`
	LowStock      []ProductDTO   `json:"low_stock"`
	ProductCount  int            `json:"product_count"`
	CustomerCount int            `json:"customer_count"`
}

func toDashboardDTO(s service.DashboardSummary) DashboardDTO {
	counts := make(map[string]int, len(s.StatusCounts))
	for status, n := range s.StatusCounts {
		counts[string(status)] = n
	}
	return DashboardDTO{
		TotalOrders:   s.TotalOrders,
		Revenue:       s.Revenue.StringFixed(2),
		StatusCounts:  counts,
		RecentOrders:  toOrderDTOs(s.RecentOrders),
		LowStock:      toProductDTOs(s.LowStock),
		ProductCount:  s.ProductCount,
		CustomerCount: s.CustomerCount,
	}
}

type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity,omitempty"`
}

type SetQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type CheckoutRequest struct {
	Customer CustomerDTO `json:"customer"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
