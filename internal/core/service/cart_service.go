package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/oms-cart/internal/core/domain"
	"github.com/rl1809/oms-cart/internal/metrics"
)

var ErrMissingSession = errors.New("missing session id")

// CartService owns one cart per session and serializes every command on
// that cart. Carts live only in memory and are dropped when the session ends
// or stays idle longer than idleTTL.
type CartService struct {
	catalog *CatalogService
	orders  *OrderService
	metrics *metrics.Metrics
	log     *zap.Logger
	idleTTL time.Duration
	sweep   time.Duration
	now     func() time.Time
	newCart func() *domain.Cart

	mu       sync.Mutex
	sessions map[string]*sessionCart
}

type sessionCart struct {
	mu       sync.Mutex
	cart     *domain.Cart
	lastUsed time.Time // guarded by CartService.mu
}

type CartServiceOption func(*CartService)

func WithCartFactory(newCart func() *domain.Cart) CartServiceOption {
	return func(s *CartService) { s.newCart = newCart }
}

func WithServiceClock(now func() time.Time) CartServiceOption {
	return func(s *CartService) { s.now = now }
}

func NewCartService(catalog *CatalogService, orders *OrderService, m *metrics.Metrics, log *zap.Logger, idleTTL, sweep time.Duration, opts ...CartServiceOption) *CartService {
	s := &CartService{
		catalog:  catalog,
		orders:   orders,
		metrics:  m,
		log:      log,
		idleTTL:  idleTTL,
		sweep:    sweep,
		now:      time.Now,
		newCart:  func() *domain.Cart { return domain.NewCart() },
		sessions: make(map[string]*sessionCart),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CartService) AddItem(ctx context.Context, sessionID, productID string, quantity int) (domain.Snapshot, error) {
	return s.command(sessionID, "add_item", func(c *domain.Cart) error {
		product, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		return c.AddItem(productID, product, quantity)
	})
}

func (s *CartService) SetQuantity(ctx context.Context, sessionID, productID string, quantity int) (domain.Snapshot, error) {
	return s.command(sessionID, "set_quantity", func(c *domain.Cart) error {
		if quantity <= 0 {
			return c.SetQuantity(productID, domain.Product{}, quantity)
		}
		product, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		return c.SetQuantity(productID, product, quantity)
	})
}

func (s *CartService) RemoveItem(_ context.Context, sessionID, productID string) (domain.Snapshot, error) {
	return s.command(sessionID, "remove_item", func(c *domain.Cart) error {
		c.RemoveItem(productID)
		return nil
	})
}

func (s *CartService) Clear(_ context.Context, sessionID string) (domain.Snapshot, error) {
	return s.command(sessionID, "clear", func(c *domain.Cart) error {
		c.Clear()
		return nil
	})
}

func (s *CartService) Snapshot(_ context.Context, sessionID string) (domain.Snapshot, error) {
	if sessionID == "" {
		return domain.Snapshot{}, ErrMissingSession
	}
	sc := s.session(sessionID)
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.cart.Snapshot(), nil
}

// Checkout refreshes prices and stock from the catalog, emits the draft and
// hands it to the order service. When submission fails the cart is put back
// exactly as it was.
func (s *CartService) Checkout(ctx context.Context, sessionID, requestID string, customer domain.Customer) (domain.Order, error) {
	if sessionID == "" {
		return domain.Order{}, ErrMissingSession
	}
	sc := s.session(sessionID)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	order, err := s.checkout(ctx, sc, requestID, customer)
	s.metrics.Checkouts.WithLabelValues(checkoutResult(err)).Inc()
	if err != nil {
		s.log.Debug("checkout failed", zap.String("session", sessionID), zap.Error(err))
		return domain.Order{}, err
	}
	s.log.Info("cart checked out",
		zap.String("session", sessionID),
		zap.String("order_id", order.ID),
		zap.Int("items", order.ItemCount),
		zap.String("total", order.Total.StringFixed(2)))
	return order, nil
}

func (s *CartService) checkout(ctx context.Context, sc *sessionCart, requestID string, customer domain.Customer) (domain.Order, error) {
	backup := sc.cart.Clone()

	for _, productID := range sc.cart.ProductIDs() {
		product, err := s.catalog.GetProduct(ctx, productID)
		if errors.Is(err, domain.ErrNotFound) {
			sc.cart.RemoveItem(productID)
			continue
		}
		if err != nil {
			sc.cart = backup
			return domain.Order{}, err
		}
		sc.cart.Refresh(product)
	}

	draft, err := sc.cart.Checkout(customer)
	if err != nil {
		sc.cart = backup
		return domain.Order{}, err
	}

	order, err := s.orders.Submit(ctx, requestID, draft)
	if err != nil {
		sc.cart = backup
		return domain.Order{}, fmt.Errorf("submit order: %w", err)
	}
	return order, nil
}

// EndSession destroys the session's cart.
func (s *CartService) EndSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; ok {
		delete(s.sessions, sessionID)
		s.metrics.ActiveSessions.Dec()
	}
}

func (s *CartService) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run evicts idle sessions on every sweep until ctx is cancelled.
func (s *CartService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				s.log.Debug("evicted idle carts", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *CartService) EvictIdle() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sc := range s.sessions {
		// skip carts with a command in flight
		if !sc.mu.TryLock() {
			continue
		}
		idle := sc.lastUsed.Before(cutoff)
		sc.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			evicted++
		}
	}
	s.metrics.ActiveSessions.Sub(float64(evicted))
	return evicted
}

func (s *CartService) command(sessionID, op string, fn func(*domain.Cart) error) (domain.Snapshot, error) {
	if sessionID == "" {
		return domain.Snapshot{}, ErrMissingSession
	}
	sc := s.session(sessionID)
	sc.mu.Lock()
	defer sc.mu.Unlock()

	err := fn(sc.cart)
	s.metrics.CartCommands.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		s.log.Debug("cart command rejected", zap.String("op", op), zap.String("session", sessionID), zap.Error(err))
		return domain.Snapshot{}, err
	}
	return sc.cart.Snapshot(), nil
}

func (s *CartService) session(sessionID string) *sessionCart {
	s.mu.Lock()
	defer s.mu.Unlock()

	// touched here so a sweep cannot evict a session between lookup and lock
	sc, ok := s.sessions[sessionID]
	if !ok {
		sc = &sessionCart{cart: s.newCart()}
		s.sessions[sessionID] = sc
		s.metrics.ActiveSessions.Inc()
	}
	sc.lastUsed = s.now()
	return sc
}

func checkoutResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate"
	default:
		return "error"
	}
}
