package domain

import (
	"errors"
	"fmt"
)

// Error 带错误码的领域错误，errors.Is 按错误码匹配
type Error struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return e.Message
}

// Is 按 Code 匹配，使带不同详情的同类错误可与哨兵比较
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithMessage 复制错误并替换消息
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Code: e.Code, Message: fmt.Sprintf(format, args...), Details: e.Details}
}

// WithDetails 复制错误并附加详情
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details}
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

var (
	ErrInvalidCommand            = newError("invalid_command", "invalid order command")
	ErrAddressNotFound           = newError("address_not_found", "address not found")
	ErrEmptyCart                 = newError("empty_cart", "cart is empty")
	ErrPaymentFieldsMissing      = newError("payment_fields_missing", "payment reference fields are required for online payment")
	ErrPaymentVerificationFailed = newError("payment_verification_failed", "payment verification failed")
	ErrProductNotFound           = newError("product_not_found", "product not found")
	ErrInsufficientStock         = newError("insufficient_stock", "insufficient stock")
	ErrUnpricedProduct           = newError("unpriced_product", "product has no price")
	ErrOrderNotFound             = newError("order_not_found", "order not found")
	ErrIllegalTransition         = newError("illegal_transition", "illegal order status transition")
	ErrReturnWindowExpired       = newError("return_window_expired", "return window expired")
	ErrOrderNumberExhausted      = newError("order_number_exhausted", "could not allocate a unique order number")
)

// InsufficientStock 构造库存不足错误，消息包含商品名、可用量与请求量
func InsufficientStock(productName string, available, requested int) *Error {
	return ErrInsufficientStock.
		WithMessage("insufficient stock for %s: available %d, requested %d", productName, available, requested).
		WithDetails(map[string]any{"product": productName, "available": available, "requested": requested})
}
