package application

import (
	"context"

	"github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/pkg/utils"
)

// OrderList 分页订单列表
type OrderList struct {
	Items      []*domain.Order   `json:"items"`
	Pagination *utils.Pagination `json:"pagination"`
}

// OrderQueryService 订单查询服务
type OrderQueryService struct {
	repo domain.OrderRepository
}

// NewOrderQueryService 创建订单查询服务
func NewOrderQueryService(repo domain.OrderRepository) *OrderQueryService {
	return &OrderQueryService{repo: repo}
}

// GetOrder 获取订单，userID 非 0 时校验归属
func (q *OrderQueryService) GetOrder(ctx context.Context, id, userID uint) (*domain.Order, error) {
	order, err := q.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil || (userID != 0 && order.UserID != userID) {
		return nil, domain.ErrOrderNotFound.WithMessage("order %d not found", id)
	}
	return order, nil
}

// ListOrders 分页查询用户订单
func (q *OrderQueryService) ListOrders(ctx context.Context, userID uint, status domain.OrderStatus, page, pageSize int) (*OrderList, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidCommand.WithMessage("user_id is required")
	}
	pg := utils.NewPagination(page, pageSize, 0)
	items, total, err := q.repo.ListByUser(ctx, userID, status, pg.Offset(), pg.Limit())
	if err != nil {
		return nil, err
	}
	return &OrderList{Items: items, Pagination: utils.NewPagination(pg.Page, pg.PageSize, total)}, nil
}
