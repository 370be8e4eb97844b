// Package mysql 提供商品仓储的 GORM 实现
package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/ecommerce/internal/catalog/domain"
	pricing "github.com/wyfcoding/ecommerce/internal/pricing/domain"
	"github.com/wyfcoding/ecommerce/pkg/money"
	"gorm.io/gorm"
)

// ProductModel products 表映射
type ProductModel struct {
	ID              uint                   `gorm:"primaryKey;autoIncrement"`
	CreatedAt       time.Time              `gorm:"column:created_at"`
	UpdatedAt       time.Time              `gorm:"column:updated_at"`
	SubcategoryID   uint                   `gorm:"column:subcategory_id;index;not null;comment:所属子类目"`
	Name            string                 `gorm:"column:name;type:varchar(255);not null"`
	Description     string                 `gorm:"column:description;type:text"`
	Specifications  pricing.Specifications `gorm:"column:specifications;type:text;comment:规格(JSON)"`
	BasePrice       *int64                 `gorm:"column:base_price;comment:基础价(分)"`
	CalculatedPrice *int64                 `gorm:"column:calculated_price;comment:规则计算价(分)"`
	Price           decimal.NullDecimal    `gorm:"column:price;type:decimal(10,2);comment:历史价格(元)"`
	StockQuantity   int                    `gorm:"column:stock_quantity;not null;default:0;check:chk_products_stock,stock_quantity >= 0"`
}

func (ProductModel) TableName() string { return "products" }

// AutoMigrate 迁移商品表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ProductModel{})
}

func amountPtr(v *int64) *money.Amount {
	if v == nil {
		return nil
	}
	a := money.Amount(*v)
	return &a
}

func int64Ptr(a *money.Amount) *int64 {
	if a == nil {
		return nil
	}
	v := a.Int64()
	return &v
}

func toModel(p *domain.Product) *ProductModel {
	return &ProductModel{
		ID:              p.ID,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		SubcategoryID:   p.SubcategoryID,
		Name:            p.Name,
		Description:     p.Description,
		Specifications:  p.Specs,
		BasePrice:       int64Ptr(p.BasePrice),
		CalculatedPrice: int64Ptr(p.CalculatedPrice),
		Price:           p.LegacyPrice,
		StockQuantity:   p.StockQuantity,
	}
}

func toDomain(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:              m.ID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
		SubcategoryID:   m.SubcategoryID,
		Name:            m.Name,
		Description:     m.Description,
		Specs:           m.Specifications,
		BasePrice:       amountPtr(m.BasePrice),
		CalculatedPrice: amountPtr(m.CalculatedPrice),
		LegacyPrice:     m.Price,
		StockQuantity:   m.StockQuantity,
	}
}
