// Package gateway 支付网关客户端：本地签名校验 + 远端支付状态查询
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"github.com/wyfcoding/ecommerce/internal/payment/domain"
	"github.com/wyfcoding/ecommerce/pkg/config"
	"github.com/wyfcoding/ecommerce/pkg/logger"
)

// Payment 网关返回的支付记录
type Payment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
}

// Client 网关校验客户端
type Client struct {
	keySecret []byte
	http      *resty.Client
	breaker   *gobreaker.CircuitBreaker
	timeout   time.Duration
}

// NewClient 创建网关客户端；BaseURL 为空时只做签名校验
func NewClient(cfg config.PaymentConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	c := &Client{
		keySecret: []byte(cfg.KeySecret),
		timeout:   timeout,
	}
	if cfg.BaseURL == "" {
		return c
	}

	c.http = resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetHeader("Accept", "application/json")

	failures := uint32(cfg.BreakerFailures)
	if failures == 0 {
		failures = 5
	}
	openFor := time.Duration(cfg.BreakerOpenSeconds) * time.Second
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// 业务拒绝不计入熔断
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrPaymentNotCaptured)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Sign 计算 HMAC-SHA256(gatewayOrderID|paymentID) 的十六进制签名
func Sign(secret []byte, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 校验签名，配置了网关地址时再确认远端支付状态
func (c *Client) Verify(ctx context.Context, ref domain.Reference) error {
	expected := Sign(c.keySecret, ref.GatewayOrderID, ref.PaymentID)
	if !hmac.Equal([]byte(expected), []byte(ref.Signature)) {
		return domain.ErrSignatureMismatch
	}
	if c.http == nil {
		return nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.fetchAndCheck(ctx, ref)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	return err
}

func (c *Client) fetchAndCheck(ctx context.Context, ref domain.Reference) error {
	var p Payment
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", ref.PaymentID).
		SetResult(&p).
		Get("/v1/payments/{id}")
	if err != nil {
		logger.Error(ctx, "payment gateway request failed", "payment_id", ref.PaymentID, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode() != http.StatusOK {
		logger.Warn(ctx, "payment gateway returned non-200", "payment_id", ref.PaymentID, "status", resp.StatusCode())
		if resp.StatusCode() >= http.StatusInternalServerError {
			return fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode())
		}
		return fmt.Errorf("%w: gateway status %d", domain.ErrPaymentNotCaptured, resp.StatusCode())
	}
	if p.OrderID != ref.GatewayOrderID {
		return fmt.Errorf("%w: payment %s belongs to order %s", domain.ErrPaymentNotCaptured, p.ID, p.OrderID)
	}
	if p.Status != "captured" && p.Status != "authorized" {
		return fmt.Errorf("%w: status %s", domain.ErrPaymentNotCaptured, p.Status)
	}
	return nil
}
