package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/oms-cart/internal/core/domain"
	"github.com/rl1809/oms-cart/internal/metrics"
	"github.com/rl1809/oms-cart/internal/port"
)

const (
	persistTimeout  = 5 * time.Second
	rollbackTimeout = 2 * time.Second
)

type SubmittedEvent struct {
	OrderID   string          `json:"order_id"`
	TenantID  string          `json:"tenant_id"`
	UserID    string          `json:"user_id"`
	ItemCount int             `json:"item_count"`
	Total     string          `json:"total"`
	Lines     []SubmittedLine `json:"lines"`
	CreatedAt time.Time       `json:"created_at"`
}

type SubmittedLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

func newSubmittedEvent(order domain.Order) SubmittedEvent {
	lines := make([]SubmittedLine, len(order.Lines))
	for i, l := range order.Lines {
		lines[i] = SubmittedLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice.StringFixed(2)}
	}
	return SubmittedEvent{
		OrderID:   order.ID,
		TenantID:  order.Customer.TenantID,
		UserID:    order.Customer.UserID,
		ItemCount: order.ItemCount,
		Total:     order.Total.StringFixed(2),
		Lines:     lines,
		CreatedAt: order.CreatedAt,
	}
}

type OrderWorker struct {
	orders    port.OrderRepository
	cache     port.CacheRepository
	publisher port.EventPublisher
	metrics   *metrics.Metrics
	log       *zap.Logger
	timeout   time.Duration
}

func NewOrderWorker(orders port.OrderRepository, cache port.CacheRepository, publisher port.EventPublisher, m *metrics.Metrics, log *zap.Logger) *OrderWorker {
	return &OrderWorker{orders: orders, cache: cache, publisher: publisher, metrics: m, log: log, timeout: persistTimeout}
}

// Run drains queue until it is closed. Orders that fail to persist give
// their reserved stock back.
func (w *OrderWorker) Run(id int, queue <-chan domain.Order) {
	log := w.log.With(zap.Int("worker", id))

	for order := range queue {
		w.metrics.QueueDepth.Set(float64(len(queue)))
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)

		if err := w.orders.CreateOrder(ctx, order); err != nil {
			w.metrics.OrdersPersisted.WithLabelValues("error").Inc()
			log.Error("failed to save order", zap.String("order_id", order.ID), zap.Error(err))

			if rollbackErr := w.release(order); rollbackErr != nil {
				log.Error("CRITICAL rollback failed", zap.String("order_id", order.ID), zap.Error(rollbackErr))
			} else {
				log.Info("rolled back stock", zap.String("order_id", order.ID))
			}
		} else {
			w.metrics.OrdersPersisted.WithLabelValues("ok").Inc()
			log.Info("saved order", zap.String("order_id", order.ID))

			if err := w.publisher.Publish(ctx, EventOrderSubmitted, order.ID, newSubmittedEvent(order)); err != nil {
				log.Warn("publish order submitted", zap.String("order_id", order.ID), zap.Error(err))
			}
		}

		cancel()
	}
}

// release runs on its own deadline since the persist ctx may be spent.
func (w *OrderWorker) release(order domain.Order) error {
	ctx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
	defer cancel()
	return w.cache.ReleaseStock(ctx, order.StockRequests())
}
