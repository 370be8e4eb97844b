package domain

import "context"

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// Create 创建订单及其明细
	Create(ctx context.Context, order *Order) error
	// Get 获取订单及明细，不存在返回 nil
	Get(ctx context.Context, id uint) (*Order, error)
	ExistsNumber(ctx context.Context, orderNumber string) (bool, error)
	ListByUser(ctx context.Context, userID uint, status OrderStatus, offset, limit int) ([]*Order, int64, error)
	// UpdateStatus 以 from 为前置条件写入订单当前状态相关字段，返回是否命中
	UpdateStatus(ctx context.Context, order *Order, from OrderStatus) (bool, error)
}

// EventPublisher 领域事件发布接口，需在业务事务内调用
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}
