package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "omscart"

type Metrics struct {
	CartCommands    *prometheus.CounterVec
	Checkouts       *prometheus.CounterVec
	OrdersPersisted *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	QueueDepth      prometheus.Gauge
	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Tests pass a fresh
// prometheus.NewRegistry to avoid duplicate registration panics.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		CartCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "commands_total",
			Help:      "Cart commands by operation and result.",
		}, []string{"op", "result"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "checkouts_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		OrdersPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "persisted_total",
			Help:      "Orders handled by the worker pool by result.",
		}, []string{"result"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "active_sessions",
			Help:      "Session carts currently held in memory.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "queue_depth",
			Help:      "Orders waiting for a worker.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"route"}),
		gatherer: reg,
	}

	reg.MustRegister(m.CartCommands, m.Checkouts, m.OrdersPersisted, m.ActiveSessions, m.QueueDepth, m.Requests, m.LatencyMS)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
