package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"gorm.io/gorm"
)

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(gdb *gorm.DB) domain.OrderRepository {
	return &orderRepository{db: gdb}
}

func (r *orderRepository) getDB(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := toOrderModel(order)
	if err := r.getDB(ctx).Create(model).Error; err != nil {
		logger.Error(ctx, "order_repository.create failed", "order_number", order.OrderNumber, "error", err)
		return fmt.Errorf("failed to create order: %w", err)
	}
	order.ID = model.ID
	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt
	for i := range order.Items {
		order.Items[i].ID = model.Items[i].ID
		order.Items[i].OrderID = model.ID
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id uint) (*domain.Order, error) {
	var model OrderModel
	err := r.getDB(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("id asc") }).
		First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error(ctx, "order_repository.get failed", "order_id", id, "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return toOrder(&model), nil
}

func (r *orderRepository) ExistsNumber(ctx context.Context, orderNumber string) (bool, error) {
	var count int64
	if err := r.getDB(ctx).Model(&OrderModel{}).Where("order_number = ?", orderNumber).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check order number: %w", err)
	}
	return count > 0, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID uint, status domain.OrderStatus, offset, limit int) ([]*domain.Order, int64, error) {
	var models []OrderModel
	var total int64
	q := r.getDB(ctx).Model(&OrderModel{}).Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("order_status = ?", string(status))
	}
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	err := q.Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("id asc") }).
		Order("id desc").Offset(offset).Limit(limit).Find(&models).Error
	if err != nil {
		logger.Error(ctx, "order_repository.list_by_user failed", "user_id", userID, "error", err)
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = toOrder(&models[i])
	}
	return orders, total, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, order *domain.Order, from domain.OrderStatus) (bool, error) {
	res := r.getDB(ctx).Model(&OrderModel{}).
		Where("id = ? AND order_status = ?", order.ID, string(from)).
		Updates(map[string]any{
			"order_status":        string(order.Status),
			"payment_status":      string(order.PaymentStatus),
			"delivered_at":        order.DeliveredAt,
			"cancelled_at":        order.CancelledAt,
			"return_requested_at": order.ReturnRequestedAt,
		})
	if res.Error != nil {
		logger.Error(ctx, "order_repository.update_status failed", "order_id", order.ID, "error", res.Error)
		return false, fmt.Errorf("failed to update order status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
