package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New("order")
	require.NoError(t, m.Register(prometheus.NewRegistry()))

	m.RecordOrderPlaced(10 * time.Millisecond)
	m.RecordOrderRejected("insufficient_stock", time.Millisecond)
	m.RecordOrderRejected("insufficient_stock", time.Millisecond)
	m.RecordPriceCalculation("matched")
	m.RecordOutbox("sent", 3)
	m.RecordOutbox("sent", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersPlaced))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrderRejections.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PriceCalculations.WithLabelValues("matched")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutboxPublished.WithLabelValues("sent")))
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordOrderPlaced(time.Second)
		m.RecordOrderRejected("x", time.Second)
		m.RecordOrderCancelled()
		m.RecordPriceCalculation("matched")
		m.RecordOutbox("sent", 1)
	})
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New("order")
	require.NoError(t, m.Register(prometheus.NewRegistry()))

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/42", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/orders/:id", "200")))
}
