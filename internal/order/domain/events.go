package domain

import (
	"time"

	"github.com/wyfcoding/ecommerce/pkg/money"
)

// 事件类型
const (
	EventOrderPlaced        = "order.placed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderPlacedEvent 下单成功事件
type OrderPlacedEvent struct {
	OrderID       uint             `json:"order_id"`
	OrderNumber   string           `json:"order_number"`
	UserID        uint             `json:"user_id"`
	Total         money.Amount     `json:"total_amount"`
	PaymentMethod PaymentMethod    `json:"payment_method"`
	PaymentStatus PaymentStatus    `json:"payment_status"`
	Items         []OrderItemEvent `json:"items"`
	OccurredOn    time.Time        `json:"occurred_on"`
}

// OrderItemEvent 事件中的明细
type OrderItemEvent struct {
	ProductID uint         `json:"product_id"`
	Quantity  int          `json:"quantity"`
	UnitPrice money.Amount `json:"unit_price"`
}

// OrderCancelledEvent 订单取消事件
type OrderCancelledEvent struct {
	OrderID     uint        `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	UserID      uint        `json:"user_id"`
	From        OrderStatus `json:"from_status"`
	Reason      string      `json:"reason,omitempty"`
	OccurredOn  time.Time   `json:"occurred_on"`
}

// OrderStatusChangedEvent 状态变更事件
type OrderStatusChangedEvent struct {
	OrderID     uint        `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	From        OrderStatus `json:"from_status"`
	To          OrderStatus `json:"to_status"`
	OccurredOn  time.Time   `json:"occurred_on"`
}

// NewOrderPlacedEvent 由订单构造下单事件
func NewOrderPlacedEvent(o *Order, now time.Time) OrderPlacedEvent {
	items := make([]OrderItemEvent, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemEvent{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return OrderPlacedEvent{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Total:         o.Total,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Items:         items,
		OccurredOn:    now,
	}
}
