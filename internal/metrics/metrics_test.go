package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAndHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CartCommands.WithLabelValues("add_item", Result(nil)).Inc()
	m.CartCommands.WithLabelValues("add_item", Result(errors.New("boom"))).Inc()
	m.CartCommands.WithLabelValues("add_item", "ok").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CartCommands.WithLabelValues("add_item", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CartCommands.WithLabelValues("add_item", "error")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "omscart_cart_commands_total"))
}
