package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/oms-cart/internal/core/domain"
	"github.com/rl1809/oms-cart/internal/port"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrQueueClosed      = errors.New("order queue closed")
)

const idempotencyPrefix = "checkout:"

const (
	EventOrderSubmitted     = "order.submitted"
	EventOrderStatusChanged = "order.status_changed"
)

type OrderService struct {
	cache      port.CacheRepository
	orders     port.OrderRepository
	publisher  port.EventPublisher
	orderQueue chan domain.Order
	log        *zap.Logger
	now        func() time.Time

	mu     sync.RWMutex
	closed bool
}

func NewOrderService(cache port.CacheRepository, orders port.OrderRepository, publisher port.EventPublisher, queueSize int, log *zap.Logger) *OrderService {
	return &OrderService{
		cache:      cache,
		orders:     orders,
		publisher:  publisher,
		orderQueue: make(chan domain.Order, queueSize),
		log:        log,
		now:        time.Now,
	}
}

// Submit takes ownership of a checked-out draft: it deduplicates on
// requestID, reserves stock for every line and queues the order for the
// worker pool. An empty requestID disables deduplication. When a later step
// fails the requestID is freed again so the caller may retry with it.
func (s *OrderService) Submit(ctx context.Context, requestID string, draft domain.OrderDraft) (domain.Order, error) {
	if requestID == "" {
		return s.submit(ctx, draft)
	}

	key := idempotencyPrefix + requestID
	ok, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		return domain.Order{}, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return domain.Order{}, ErrDuplicateRequest
	}

	order, err := s.submit(ctx, draft)
	if err != nil {
		if clearErr := s.cache.ClearIdempotency(context.Background(), key); clearErr != nil {
			s.log.Error("free idempotency key", zap.String("key", key), zap.Error(clearErr))
		}
		return domain.Order{}, err
	}
	return order, nil
}

func (s *OrderService) submit(ctx context.Context, draft domain.OrderDraft) (domain.Order, error) {
	order := domain.NewOrderFromDraft(draft, s.now())
	stock := order.StockRequests()

	ok, err := s.cache.ReserveStock(ctx, stock)
	if err != nil {
		return domain.Order{}, fmt.Errorf("stock reservation failed: %w", err)
	}
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: order %s", domain.ErrInsufficientStock, order.ID)
	}

	return s.enqueue(ctx, order, stock)
}

func (s *OrderService) enqueue(ctx context.Context, order domain.Order, stock []domain.StockRequest) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.release(order.ID, stock)
		return domain.Order{}, ErrQueueClosed
	}

	select {
	case s.orderQueue <- order:
		return order, nil
	case <-ctx.Done():
		s.release(order.ID, stock)
		return domain.Order{}, ctx.Err()
	}
}

func (s *OrderService) release(orderID string, stock []domain.StockRequest) {
	if err := s.cache.ReleaseStock(context.Background(), stock); err != nil {
		s.log.Error("release stock of unqueued order", zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *OrderService) GetOrderQueue() <-chan domain.Order {
	return s.orderQueue
}

// Close stops accepting orders and closes the queue so workers drain and
// exit. Safe to call more than once.
func (s *OrderService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.orderQueue)
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", orderID, err)
	}
	if order == nil {
		return domain.Order{}, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	return *order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

type StatusChangedEvent struct {
	OrderID   string    `json:"order_id"`
	TenantID  string    `json:"tenant_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

// UpdateStatus moves an order along its workflow. Cancelling releases the
// stock the order held.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus) (domain.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.Status.CanTransitionTo(next) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, order.Status, next)
	}

	if err := s.orders.UpdateOrderStatus(ctx, orderID, order.Status, next); err != nil {
		return domain.Order{}, fmt.Errorf("update order %s: %w", orderID, err)
	}

	if next == domain.OrderStatusCancelled {
		if err := s.cache.ReleaseStock(ctx, order.StockRequests()); err != nil {
			s.log.Error("release stock for cancelled order", zap.String("order_id", orderID), zap.Error(err))
		}
	}

	event := StatusChangedEvent{
		OrderID:   orderID,
		TenantID:  order.Customer.TenantID,
		From:      string(order.Status),
		To:        string(next),
		ChangedAt: s.now(),
	}
	if err := s.publisher.Publish(ctx, EventOrderStatusChanged, orderID, event); err != nil {
		s.log.Warn("publish status change", zap.String("order_id", orderID), zap.Error(err))
	}

	order.Status = next
	order.UpdatedAt = event.ChangedAt
	return order, nil
}
