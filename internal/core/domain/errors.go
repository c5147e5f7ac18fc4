package domain

import "errors"

var (
	ErrOutOfStock        = errors.New("out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNotFound          = errors.New("not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrProductMismatch   = errors.New("product does not match product id")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid order status transition")
)
