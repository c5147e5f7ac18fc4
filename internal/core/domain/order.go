package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusPackaged   OrderStatus = "packaged"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusPackaged,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusPackaged, OrderStatusCancelled},
	OrderStatusPackaged:   {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range OrderStatuses {
		if status == known {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// Customer describes who is ordering. The cart forwards it untouched.
type Customer struct {
	TenantID        string
	UserID          string
	Name            string
	Email           string
	ShippingAddress string
}

// OrderDraft is the immutable result of a cart checkout.
type OrderDraft struct {
	ID         string
	Customer   Customer
	Lines      []SnapshotLine
	ItemCount  int
	GrandTotal decimal.Decimal
	CreatedAt  time.Time
}

type OrderLine struct {
	ProductID string
	Name      string
	SKU       string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type Order struct {
	ID        string
	Customer  Customer
	Lines     []OrderLine
	ItemCount int
	Total     decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewOrderFromDraft(draft OrderDraft, now time.Time) Order {
	lines := make([]OrderLine, len(draft.Lines))
	for i, l := range draft.Lines {
		lines[i] = OrderLine(l)
	}
	return Order{
		ID:        draft.ID,
		Customer:  draft.Customer,
		Lines:     lines,
		ItemCount: draft.ItemCount,
		Total:     draft.GrandTotal,
		Status:    OrderStatusPending,
		CreatedAt: draft.CreatedAt,
		UpdatedAt: now,
	}
}

// StockRequests flattens the order lines into per-product quantities.
func (o Order) StockRequests() []StockRequest {
	reqs := make([]StockRequest, len(o.Lines))
	for i, l := range o.Lines {
		reqs[i] = StockRequest{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return reqs
}

type StockRequest struct {
	ProductID string
	Quantity  int
}

// OrderFilter mirrors the orders page: a status tab plus a search term over
// id, customer name and email. Empty fields match everything.
type OrderFilter struct {
	TenantID string
	Status   OrderStatus
	Search   string
}

func (f OrderFilter) Matches(o Order) bool {
	if f.TenantID != "" && o.Customer.TenantID != f.TenantID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		return strings.Contains(strings.ToLower(o.ID), term) ||
			strings.Contains(strings.ToLower(o.Customer.Name), term) ||
			strings.Contains(strings.ToLower(o.Customer.Email), term)
	}
	return true
}
