package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/oms-cart/internal/core/domain"
	"github.com/rl1809/oms-cart/internal/core/service"
	"github.com/rl1809/oms-cart/internal/metrics"
)

const (
	sessionHeader     = "X-Session-ID"
	idempotencyHeader = "Idempotency-Key"
	maxBodyBytes      = 1 << 20
)

type HTTPHandler struct {
	catalog   *service.CatalogService
	carts     *service.CartService
	orders    *service.OrderService
	dashboard *service.DashboardService
	metrics   *metrics.Metrics
	log       *zap.Logger
	timeout   time.Duration
}

func NewHTTPHandler(catalog *service.CatalogService, carts *service.CartService, orders *service.OrderService,
	dashboard *service.DashboardService, m *metrics.Metrics, log *zap.Logger, timeout time.Duration) *HTTPHandler {
	return &HTTPHandler{
		catalog:   catalog,
		carts:     carts,
		orders:    orders,
		dashboard: dashboard,
		metrics:   m,
		log:       log,
		timeout:   timeout,
	}
}

// Routes builds the chi router for the whole HTTP surface.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(h.timeout))
	r.Use(h.observe)

	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", h.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", h.SearchProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/categories", h.Categories)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{product_id}", h.SetQuantity)
			r.Delete("/items/{product_id}", h.RemoveItem)
			r.Post("/checkout", h.Checkout)
		})
		r.Delete("/session", h.EndSession)

		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)
		r.Patch("/orders/{id}/status", h.UpdateStatus)

		r.Get("/dashboard", h.Dashboard)
	})

	return r
}

func (h *HTTPHandler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		h.metrics.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		h.metrics.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Microseconds()) / 1000)
		h.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Search:   q.Get("q"),
		Category: q.Get("category"),
	}
	var err error
	if filter.MinPrice, err = parsePrice(q.Get("min_price")); err != nil {
		h.fail(w, r, err)
		return
	}
	if filter.MaxPrice, err = parsePrice(q.Get("max_price")); err != nil {
		h.fail(w, r, err)
		return
	}
	if v := q.Get("in_stock"); v != "" {
		if filter.InStockOnly, err = strconv.ParseBool(v); err != nil {
			h.fail(w, r, fmt.Errorf("%w: in_stock %q", errBadRequest, v))
			return
		}
	}

	products, err := h.catalog.Search(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTOs(products))
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *HTTPHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, append([]string{domain.AllCategories}, categories...))
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r)(h.carts.Snapshot(r.Context(), session(r)))
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r)(h.carts.Clear(r.Context(), session(r)))
}

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		h.fail(w, r, fmt.Errorf("%w: product_id is required", errBadRequest))
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	h.respondCart(w, r)(h.carts.AddItem(r.Context(), session(r), req.ProductID, quantity))
}

func (h *HTTPHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req SetQuantityRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		h.fail(w, r, fmt.Errorf("%w: quantity is required", errBadRequest))
		return
	}
	h.respondCart(w, r)(h.carts.SetQuantity(r.Context(), session(r), chi.URLParam(r, "product_id"), *req.Quantity))
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r)(h.carts.RemoveItem(r.Context(), session(r), chi.URLParam(r, "product_id")))
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.carts.Checkout(r.Context(), session(r), r.Header.Get(idempotencyHeader), req.Customer.toDomain())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toOrderDTO(order))
}

func (h *HTTPHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	id := session(r)
	if id == "" {
		h.fail(w, r, service.ErrMissingSession)
		return
	}
	h.carts.EndSession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.OrderFilter{TenantID: q.Get("tenant_id"), Search: q.Get("q")}
	if v := q.Get("status"); v != "" && v != "all" {
		status, err := domain.ParseOrderStatus(v)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		filter.Status = status
	}

	orders, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTOs(orders))
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

func (h *HTTPHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

func (h *HTTPHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dashboard.Summary(r.Context(), r.URL.Query().Get("tenant_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(summary))
}

func (h *HTTPHandler) respondCart(w http.ResponseWriter, r *http.Request) func(domain.Snapshot, error) {
	return func(snap domain.Snapshot, err error) {
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toCartDTO(snap))
	}
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.fail(w, r, fmt.Errorf("%w: invalid JSON body", errBadRequest))
		return false
	}
	return true
}

func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if m, ok := lookupError(err); ok {
		respondError(w, m.status, m.name, err.Error())
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
		return
	}

	h.log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal", "internal error")
}

func session(r *http.Request) string {
	return r.Header.Get(sessionHeader)
}

func parsePrice(v string) (*decimal.Decimal, error) {
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q", errBadRequest, v)
	}
	return &d, nil
}
