// Package metrics 提供 Prometheus 指标定义与暴露
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wyfcoding/ecommerce/pkg/logger"
)

const namespace = "ecommerce"

// Metrics 指标集合，所有方法对 nil 接收者安全
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 成功下单数
	OrdersPlaced prometheus.Counter
	// 下单拒绝数，按原因
	OrderRejections *prometheus.CounterVec
	// 下单耗时
	PlacementDuration prometheus.Histogram
	// 取消订单数
	OrdersCancelled prometheus.Counter
	// 价格计算次数，按结果（matched/default/unknown_modifier）
	PriceCalculations *prometheus.CounterVec
	// outbox 投递消息数，按结果
	OutboxPublished *prometheus.CounterVec
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "orders_placed_total",
			Help:      "Total orders committed",
		}),
		OrderRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "order_rejections_total",
			Help:      "Order placements rejected, by reason",
		}, []string{"reason"}),
		PlacementDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "order_placement_duration_seconds",
			Help:      "Order placement duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "orders_cancelled_total",
			Help:      "Total orders cancelled",
		}),
		PriceCalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "price_calculations_total",
			Help:      "Price calculations, by outcome",
		}, []string{"outcome"}),
		OutboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: serviceName,
			Name:      "outbox_messages_total",
			Help:      "Outbox messages relayed, by result",
		}, []string{"result"}),
	}
}

// Register 将所有指标注册到 reg，reg 为 nil 时使用默认注册器
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.OrdersPlaced,
		m.OrderRejections,
		m.PlacementDuration,
		m.OrdersCancelled,
		m.PriceCalculations,
		m.OutboxPublished,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}
	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// RecordOrderPlaced 记录一次成功下单
func (m *Metrics) RecordOrderPlaced(d time.Duration) {
	if m == nil {
		return
	}
	m.OrdersPlaced.Inc()
	m.PlacementDuration.Observe(d.Seconds())
}

// RecordOrderRejected 记录一次下单拒绝
func (m *Metrics) RecordOrderRejected(reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.OrderRejections.WithLabelValues(reason).Inc()
	m.PlacementDuration.Observe(d.Seconds())
}

// RecordOrderCancelled 记录一次取消
func (m *Metrics) RecordOrderCancelled() {
	if m == nil {
		return
	}
	m.OrdersCancelled.Inc()
}

// RecordPriceCalculation 记录一次价格计算
func (m *Metrics) RecordPriceCalculation(outcome string) {
	if m == nil {
		return
	}
	m.PriceCalculations.WithLabelValues(outcome).Inc()
}

// RecordOutbox 记录 outbox 投递结果
func (m *Metrics) RecordOutbox(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OutboxPublished.WithLabelValues(result).Add(float64(n))
}

// GinMiddleware 记录 HTTP 请求指标，path 使用路由模板避免高基数
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// NewHTTPServer 创建 Prometheus 指标 HTTP 服务器，由调用方负责启动与关闭
func NewHTTPServer(port int, path string) *http.Server {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve 在后台启动指标服务器
func Serve(srv *http.Server) {
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "Prometheus HTTP server stopped", "error", err)
		}
	}()
}
