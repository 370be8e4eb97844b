// Package domain 订单领域模型
package domain

import (
	"time"

	"github.com/wyfcoding/ecommerce/pkg/money"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusConfirmed       OrderStatus = "confirmed"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusShipped         OrderStatus = "shipped"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusReturnRequested OrderStatus = "return_requested"
	OrderStatusReturned        OrderStatus = "returned"
)

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
)

// Valid 是否为已知支付方式
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodOnline
}

// RequiresGateway 是否需要网关预校验
func (m PaymentMethod) RequiresGateway() bool {
	return m == PaymentMethodOnline
}

// 履约状态机；取消与退货申请有各自入口
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:       {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:      {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:         {OrderStatusDelivered},
	OrderStatusDelivered:       {OrderStatusReturnRequested},
	OrderStatusReturnRequested: {OrderStatusReturned},
}

// CanTransition 状态迁移是否合法
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Order 订单聚合根
type Order struct {
	ID            uint          `json:"id"`
	OrderNumber   string        `json:"order_number"`
	UserID        uint          `json:"user_id"`
	AddressID     uint          `json:"address_id"`
	Subtotal      money.Amount  `json:"subtotal"`
	Discount      money.Amount  `json:"discount_amount"`
	Tax           money.Amount  `json:"tax_amount"`
	Shipping      money.Amount  `json:"shipping_amount"`
	Total         money.Amount  `json:"total_amount"`
	Status        OrderStatus   `json:"order_status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	// 网关引用
	GatewayOrderID   string `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string `json:"gateway_payment_id,omitempty"`
	GatewaySignature string `json:"-"`

	Items []OrderItem `json:"items"`

	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	ReturnRequestedAt *time.Time `json:"return_requested_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// OrderItem 订单明细，提交后不可变
type OrderItem struct {
	ID         uint         `json:"id"`
	OrderID    uint         `json:"order_id"`
	ProductID  uint         `json:"product_id"`
	Quantity   int          `json:"quantity"`
	UnitPrice  money.Amount `json:"unit_price"`
	TotalPrice money.Amount `json:"total_price"`
	// 下单时冻结的商品快照
	ProductName        string `json:"product_name"`
	ProductDescription string `json:"product_description"`
}

// ApplyTotals 写入金额汇总
func (o *Order) ApplyTotals(t Totals) {
	o.Subtotal = t.Subtotal
	o.Discount = t.Discount
	o.Tax = t.Tax
	o.Shipping = t.Shipping
	o.Total = t.Total
}

// Cancel 取消订单，返回取消前的状态供 CAS 更新
func (o *Order) Cancel(now time.Time) (OrderStatus, error) {
	from := o.Status
	if !from.CanTransition(OrderStatusCancelled) {
		return from, ErrIllegalTransition.WithMessage("order %s cannot be cancelled in status %s", o.OrderNumber, from)
	}
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	return from, nil
}

// RequestReturn 申请退货：仅已送达且送达后经过的整天数不超过 windowDays
func (o *Order) RequestReturn(now time.Time, windowDays int) (OrderStatus, error) {
	from := o.Status
	if from != OrderStatusDelivered {
		return from, ErrIllegalTransition.WithMessage("order %s cannot be returned in status %s", o.OrderNumber, from)
	}
	if o.DeliveredAt == nil {
		return from, ErrIllegalTransition.WithMessage("order %s has no delivery time", o.OrderNumber)
	}
	days := int(now.Sub(*o.DeliveredAt) / (24 * time.Hour))
	if days > windowDays {
		return from, ErrReturnWindowExpired.WithMessage("return window of %d days expired for order %s (%d days since delivery)", windowDays, o.OrderNumber, days)
	}
	o.Status = OrderStatusReturnRequested
	o.ReturnRequestedAt = &now
	return from, nil
}

// TransitionTo 履约状态推进；送达时记录送达时间，货到付款订单送达即视为已支付
func (o *Order) TransitionTo(to OrderStatus, now time.Time) (OrderStatus, error) {
	from := o.Status
	if !from.CanTransition(to) {
		return from, ErrIllegalTransition.WithMessage("order %s cannot move from %s to %s", o.OrderNumber, from, to)
	}
	o.Status = to
	switch to {
	case OrderStatusDelivered:
		o.DeliveredAt = &now
		if o.PaymentMethod == PaymentMethodCOD {
			o.PaymentStatus = PaymentStatusPaid
		}
	case OrderStatusReturned:
		if o.PaymentStatus == PaymentStatusPaid {
			o.PaymentStatus = PaymentStatusRefunded
		}
	}
	return from, nil
}
