// Package domain 支付校验领域端口
package domain

import (
	"context"
	"errors"
)

var (
	// ErrSignatureMismatch 签名不匹配
	ErrSignatureMismatch = errors.New("payment signature mismatch")
	// ErrPaymentNotCaptured 支付状态不是已授权/已扣款
	ErrPaymentNotCaptured = errors.New("payment not captured")
	// ErrGatewayUnavailable 网关不可用或熔断
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// Reference 网关支付引用
type Reference struct {
	GatewayOrderID string `json:"gateway_order_id"`
	PaymentID      string `json:"payment_id"`
	Signature      string `json:"signature"`
}

// Complete 三个字段是否齐全
func (r Reference) Complete() bool {
	return r.GatewayOrderID != "" && r.PaymentID != "" && r.Signature != ""
}

// Verifier 支付校验端口
type Verifier interface {
	Verify(ctx context.Context, ref Reference) error
}
