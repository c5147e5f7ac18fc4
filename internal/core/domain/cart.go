package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the selection of products for one session. It is not safe for
// concurrent use; the owner serializes access.
type Cart struct {
	lines []cartLine
	now   func() time.Time
	newID func() string
}

type cartLine struct {
	productID string
	quantity  int
	product   Product
}

type CartOption func(*Cart)

func WithClock(now func() time.Time) CartOption {
	return func(c *Cart) { c.now = now }
}

func WithIDGenerator(newID func() string) CartOption {
	return func(c *Cart) { c.newID = newID }
}

func NewCart(opts ...CartOption) *Cart {
	c := &Cart{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddItem adds quantity units of the product, clamping the resulting line
// quantity to the product's available stock.
func (c *Cart) AddItem(productID string, product Product, quantity int) error {
	if err := checkProduct(productID, product); err != nil {
		return err
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	if !product.Purchasable() {
		return fmt.Errorf("%w: product %s", ErrOutOfStock, productID)
	}

	// bounded before adding so huge requests cannot overflow
	quantity = min(quantity, product.Stock)

	if i := c.index(productID); i >= 0 {
		c.lines[i].quantity = min(c.lines[i].quantity+quantity, product.Stock)
		c.lines[i].product = product
		return nil
	}

	c.lines = append(c.lines, cartLine{
		productID: productID,
		quantity:  quantity,
		product:   product,
	})
	return nil
}

// SetQuantity sets the line quantity directly. A quantity of zero or less
// removes the line. Quantities above the available stock are rejected.
func (c *Cart) SetQuantity(productID string, product Product, quantity int) error {
	if quantity <= 0 {
		c.RemoveItem(productID)
		return nil
	}
	if err := checkProduct(productID, product); err != nil {
		return err
	}
	if quantity > product.Stock {
		return fmt.Errorf("%w: product %s requested %d, available %d",
			ErrInsufficientStock, productID, quantity, product.Stock)
	}

	if i := c.index(productID); i >= 0 {
		c.lines[i].quantity = quantity
		c.lines[i].product = product
		return nil
	}

	c.lines = append(c.lines, cartLine{productID: productID, quantity: quantity, product: product})
	return nil
}

func (c *Cart) RemoveItem(productID string) {
	if i := c.index(productID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Refresh replaces the recorded price and stock of an existing line. The
// quantity is clamped to the new stock and the line is dropped when the
// product sold out. Reports whether the line changed.
func (c *Cart) Refresh(product Product) bool {
	i := c.index(product.ID)
	if i < 0 {
		return false
	}

	line := &c.lines[i]
	if !product.Purchasable() {
		c.RemoveItem(product.ID)
		return true
	}

	changed := !line.product.Price.Equal(product.Price) || line.product.Stock != product.Stock
	if line.quantity > product.Stock {
		line.quantity = product.Stock
		changed = true
	}
	line.product = product
	return changed
}

func (c *Cart) Quantity(productID string) int {
	if i := c.index(productID); i >= 0 {
		return c.lines[i].quantity
	}
	return 0
}

func (c *Cart) ProductIDs() []string {
	ids := make([]string, len(c.lines))
	for i, line := range c.lines {
		ids[i] = line.productID
	}
	return ids
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Clone returns an independent copy sharing the clock and id generator.
func (c *Cart) Clone() *Cart {
	clone := &Cart{now: c.now, newID: c.newID}
	if len(c.lines) > 0 {
		clone.lines = make([]cartLine, len(c.lines))
		copy(clone.lines, c.lines)
	}
	return clone
}

func (c *Cart) Snapshot() Snapshot {
	snap := Snapshot{
		Lines:      make([]SnapshotLine, 0, len(c.lines)),
		GrandTotal: decimal.Zero,
	}
	for _, line := range c.lines {
		lineTotal := line.product.Price.Mul(decimal.NewFromInt(int64(line.quantity)))
		snap.Lines = append(snap.Lines, SnapshotLine{
			ProductID: line.productID,
			Name:      line.product.Name,
			SKU:       line.product.SKU,
			Quantity:  line.quantity,
			UnitPrice: line.product.Price,
			LineTotal: lineTotal,
		})
		snap.ItemCount += line.quantity
		snap.GrandTotal = snap.GrandTotal.Add(lineTotal)
	}
	return snap
}

// Checkout emits an OrderDraft of the current lines and empties the cart.
func (c *Cart) Checkout(customer Customer) (OrderDraft, error) {
	if c.IsEmpty() {
		return OrderDraft{}, ErrEmptyCart
	}

	snap := c.Snapshot()
	draft := OrderDraft{
		ID:         c.newID(),
		Customer:   customer,
		Lines:      snap.Lines,
		ItemCount:  snap.ItemCount,
		GrandTotal: snap.GrandTotal,
		CreatedAt:  c.now(),
	}
	c.Clear()
	return draft, nil
}

func (c *Cart) index(productID string) int {
	for i := range c.lines {
		if c.lines[i].productID == productID {
			return i
		}
	}
	return -1
}

func checkProduct(productID string, product Product) error {
	if product.ID != "" && product.ID != productID {
		return fmt.Errorf("%w: %s != %s", ErrProductMismatch, productID, product.ID)
	}
	return nil
}

type SnapshotLine struct {
	ProductID string
	Name      string
	SKU       string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type Snapshot struct {
	Lines      []SnapshotLine
	ItemCount  int
	GrandTotal decimal.Decimal
}

func (s Snapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}
