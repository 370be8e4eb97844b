// Package mysql 提供订单仓储的 GORM 实现
package mysql

import (
	"time"

	"github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/pkg/money"
	"gorm.io/gorm"
)

// OrderModel orders 表映射，金额单位为分
type OrderModel struct {
	ID                uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
	OrderNumber       string    `gorm:"column:order_number;type:varchar(32);uniqueIndex;not null;comment:订单号"`
	UserID            uint      `gorm:"column:user_id;index;not null"`
	AddressID         uint      `gorm:"column:address_id;not null"`
	Subtotal          int64     `gorm:"column:subtotal;not null"`
	DiscountAmount    int64     `gorm:"column:discount_amount;not null"`
	TaxAmount         int64     `gorm:"column:tax_amount;not null"`
	ShippingAmount    int64     `gorm:"column:shipping_amount;not null"`
	TotalAmount       int64     `gorm:"column:total_amount;not null"`
	OrderStatus       string    `gorm:"column:order_status;type:varchar(20);index;not null"`
	PaymentStatus     string    `gorm:"column:payment_status;type:varchar(20);not null"`
	PaymentMethod     string    `gorm:"column:payment_method;type:varchar(20);not null"`
	GatewayOrderID    string    `gorm:"column:gateway_order_id;type:varchar(64)"`
	GatewayPaymentID  string    `gorm:"column:gateway_payment_id;type:varchar(64)"`
	GatewaySignature  string    `gorm:"column:gateway_signature;type:varchar(128)"`
	DeliveredAt       *time.Time
	CancelledAt       *time.Time
	ReturnRequestedAt *time.Time

	Items []OrderItemModel `gorm:"foreignKey:OrderID"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderItemModel order_items 表映射
type OrderItemModel struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	OrderID            uint      `gorm:"column:order_id;index;not null"`
	ProductID          uint      `gorm:"column:product_id;index;not null"`
	Quantity           int       `gorm:"column:quantity;not null"`
	UnitPrice          int64     `gorm:"column:unit_price;not null"`
	TotalPrice         int64     `gorm:"column:total_price;not null"`
	ProductName        string    `gorm:"column:product_name;type:varchar(255);not null"`
	ProductDescription string    `gorm:"column:product_description;type:text"`
}

func (OrderItemModel) TableName() string { return "order_items" }

// AutoMigrate 迁移订单相关表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&OrderModel{}, &OrderItemModel{})
}

func toOrderModel(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:                o.ID,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		OrderNumber:       o.OrderNumber,
		UserID:            o.UserID,
		AddressID:         o.AddressID,
		Subtotal:          o.Subtotal.Int64(),
		DiscountAmount:    o.Discount.Int64(),
		TaxAmount:         o.Tax.Int64(),
		ShippingAmount:    o.Shipping.Int64(),
		TotalAmount:       o.Total.Int64(),
		OrderStatus:       string(o.Status),
		PaymentStatus:     string(o.PaymentStatus),
		PaymentMethod:     string(o.PaymentMethod),
		GatewayOrderID:    o.GatewayOrderID,
		GatewayPaymentID:  o.GatewayPaymentID,
		GatewaySignature:  o.GatewaySignature,
		DeliveredAt:       o.DeliveredAt,
		CancelledAt:       o.CancelledAt,
		ReturnRequestedAt: o.ReturnRequestedAt,
		Items:             make([]OrderItemModel, len(o.Items)),
	}
	for i, it := range o.Items {
		m.Items[i] = OrderItemModel{
			ID:                 it.ID,
			OrderID:            o.ID,
			ProductID:          it.ProductID,
			Quantity:           it.Quantity,
			UnitPrice:          it.UnitPrice.Int64(),
			TotalPrice:         it.TotalPrice.Int64(),
			ProductName:        it.ProductName,
			ProductDescription: it.ProductDescription,
		}
	}
	return m
}

func toOrder(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:                m.ID,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		OrderNumber:       m.OrderNumber,
		UserID:            m.UserID,
		AddressID:         m.AddressID,
		Subtotal:          money.Amount(m.Subtotal),
		Discount:          money.Amount(m.DiscountAmount),
		Tax:               money.Amount(m.TaxAmount),
		Shipping:          money.Amount(m.ShippingAmount),
		Total:             money.Amount(m.TotalAmount),
		Status:            domain.OrderStatus(m.OrderStatus),
		PaymentStatus:     domain.PaymentStatus(m.PaymentStatus),
		PaymentMethod:     domain.PaymentMethod(m.PaymentMethod),
		GatewayOrderID:    m.GatewayOrderID,
		GatewayPaymentID:  m.GatewayPaymentID,
		GatewaySignature:  m.GatewaySignature,
		DeliveredAt:       m.DeliveredAt,
		CancelledAt:       m.CancelledAt,
		ReturnRequestedAt: m.ReturnRequestedAt,
		Items:             make([]domain.OrderItem, len(m.Items)),
	}
	for i, it := range m.Items {
		o.Items[i] = domain.OrderItem{
			ID:                 it.ID,
			OrderID:            it.OrderID,
			ProductID:          it.ProductID,
			Quantity:           it.Quantity,
			UnitPrice:          money.Amount(it.UnitPrice),
			TotalPrice:         money.Amount(it.TotalPrice),
			ProductName:        it.ProductName,
			ProductDescription: it.ProductDescription,
		}
	}
	return o
}
