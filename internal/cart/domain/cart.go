// Package domain 购物车领域模型
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/ecommerce/pkg/money"
)

// ErrInvalidQuantity 数量必须为正
var ErrInvalidQuantity = errors.New("quantity must be positive")

// Cart 用户购物车
type Cart struct {
	ID        uint       `json:"id"`
	UserID    uint       `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem 购物车行
type CartItem struct {
	ID        uint `json:"id"`
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
	// 加入购物车时冻结的单价（分），之后不再重算
	PriceAtTime *money.Amount `json:"price_at_time,omitempty"`
}

// AddItem 加入商品；同一商品累加数量并保留首次加入时的价格
func (c *Cart) AddItem(productID uint, qty int, price *money.Amount) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += qty
			return nil
		}
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: qty, PriceAtTime: price})
	return nil
}

// RemoveItem 移除商品，返回是否存在
func (c *Cart) RemoveItem(productID uint) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

// IsEmpty 购物车是否为空
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// CartRepository 购物车仓储接口
type CartRepository interface {
	// GetByUserID 获取用户购物车及其明细，不存在返回 nil
	GetByUserID(ctx context.Context, userID uint) (*Cart, error)
	// Save 保存购物车并整体替换明细
	Save(ctx context.Context, cart *Cart) error
	// ClearItems 清空用户购物车明细
	ClearItems(ctx context.Context, userID uint) error
	// RemoveConsumed 按明细 ID 扣除已下单的数量，其余明细不受影响
	RemoveConsumed(ctx context.Context, userID uint, consumed []CartItem) error
}
