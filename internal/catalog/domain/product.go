// Package domain 商品目录领域模型：定价字段与库存视图
package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	pricing "github.com/wyfcoding/ecommerce/internal/pricing/domain"
	"github.com/wyfcoding/ecommerce/pkg/money"
)

// Product 商品实体
type Product struct {
	ID            uint                   `json:"id"`
	SubcategoryID uint                   `json:"subcategory_id"`
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Specs         pricing.Specifications `json:"specifications"`
	// 基础价（分）
	BasePrice *money.Amount `json:"base_price,omitempty"`
	// 规则计算价（分），优先于基础价
	CalculatedPrice *money.Amount `json:"calculated_price,omitempty"`
	// 历史遗留价格，主货币单位 decimal(10,2)
	LegacyPrice   decimal.NullDecimal `json:"legacy_price"`
	StockQuantity int                 `json:"stock_quantity"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// EffectivePrice 按 计算价 → 基础价 → 历史价 的顺序取第一个为正的价格；
// 非正价格视为未定价，继续回退
func (p *Product) EffectivePrice() (money.Amount, bool) {
	if p.CalculatedPrice != nil && p.CalculatedPrice.IsPositive() {
		return *p.CalculatedPrice, true
	}
	if p.BasePrice != nil && p.BasePrice.IsPositive() {
		return *p.BasePrice, true
	}
	if p.LegacyPrice.Valid {
		if legacy := money.FromMajor(p.LegacyPrice.Decimal); legacy.IsPositive() {
			return legacy, true
		}
	}
	return money.Zero, false
}

// HasStock 库存是否满足数量
func (p *Product) HasStock(qty int) bool {
	return qty > 0 && p.StockQuantity >= qty
}

// ProductRepository 商品仓储接口
type ProductRepository interface {
	Save(ctx context.Context, p *Product) error
	// GetByID 获取商品，不存在返回 nil
	GetByID(ctx context.Context, id uint) (*Product, error)
	List(ctx context.Context, subcategoryID uint, offset, limit int) ([]*Product, int64, error)
	// DecrementStock 条件扣减：仅当库存 >= qty 时扣减，返回是否扣减成功
	DecrementStock(ctx context.Context, id uint, qty int) (bool, error)
	// RestoreStock 无条件回补库存
	RestoreStock(ctx context.Context, id uint, qty int) error
	UpdateCalculatedPrice(ctx context.Context, id uint, price money.Amount) error
}
