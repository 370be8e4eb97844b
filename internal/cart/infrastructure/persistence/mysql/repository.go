// Package mysql 提供购物车仓储的 GORM 实现
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/ecommerce/internal/cart/domain"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/money"
	"gorm.io/gorm"
)

// CartModel carts 表映射
type CartModel struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
	UserID    uint            `gorm:"column:user_id;uniqueIndex;not null"`
	Items     []CartItemModel `gorm:"foreignKey:CartID"`
}

func (CartModel) TableName() string { return "carts" }

// CartItemModel cart_items 表映射
type CartItemModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	CartID      uint      `gorm:"column:cart_id;index;not null"`
	ProductID   uint      `gorm:"column:product_id;not null"`
	Quantity    int       `gorm:"column:quantity;not null;check:chk_cart_items_qty,quantity > 0"`
	PriceAtTime *int64    `gorm:"column:price_at_time;comment:加入时单价(分)"`
}

func (CartItemModel) TableName() string { return "cart_items" }

// AutoMigrate 迁移购物车表
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&CartModel{}, &CartItemModel{})
}

type cartRepository struct {
	db *gorm.DB
	tm *db.TransactionManager
}

// NewCartRepository 创建购物车仓储
func NewCartRepository(gdb *gorm.DB) domain.CartRepository {
	return &cartRepository{db: gdb, tm: db.NewTransactionManager(gdb)}
}

func (r *cartRepository) GetByUserID(ctx context.Context, userID uint) (*domain.Cart, error) {
	var model CartModel
	err := db.Conn(ctx, r.db).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("id asc") }).
		Where("user_id = ?", userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error(ctx, "cart_repository.get failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return toDomain(&model), nil
}

func (r *cartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	err := r.tm.Transaction(ctx, func(ctx context.Context) error {
		tx := db.Conn(ctx, r.db)
		model := CartModel{ID: cart.ID, CreatedAt: cart.CreatedAt, UserID: cart.UserID}
		if err := tx.Omit("Items").Save(&model).Error; err != nil {
			return err
		}

		// 按明细 ID 原地更新，保证已下单明细的 ID 在后续修改中保持不变
		keep := make([]uint, 0, len(cart.Items))
		for _, it := range cart.Items {
			if it.ID != 0 {
				keep = append(keep, it.ID)
			}
		}
		stale := tx.Where("cart_id = ?", model.ID)
		if len(keep) > 0 {
			stale = stale.Where("id NOT IN ?", keep)
		}
		if err := stale.Delete(&CartItemModel{}).Error; err != nil {
			return err
		}
		for i, it := range cart.Items {
			item := toItemModel(model.ID, it)
			if it.ID != 0 {
				err := tx.Model(&CartItemModel{}).
					Where("id = ? AND cart_id = ?", it.ID, model.ID).
					Updates(map[string]any{"quantity": item.Quantity, "price_at_time": item.PriceAtTime}).Error
				if err != nil {
					return err
				}
				continue
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			cart.Items[i].ID = item.ID
		}
		cart.ID = model.ID
		cart.CreatedAt = model.CreatedAt
		cart.UpdatedAt = model.UpdatedAt
		return nil
	})
	if err != nil {
		logger.Error(ctx, "cart_repository.save failed", "user_id", cart.UserID, "error", err)
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (r *cartRepository) ClearItems(ctx context.Context, userID uint) error {
	sub := db.Conn(ctx, r.db).Model(&CartModel{}).Select("id").Where("user_id = ?", userID)
	if err := db.Conn(ctx, r.db).Where("cart_id IN (?)", sub).Delete(&CartItemModel{}).Error; err != nil {
		logger.Error(ctx, "cart_repository.clear_items failed", "user_id", userID, "error", err)
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// RemoveConsumed 扣除下单消耗的明细：数量未增加的行整行删除，下单后又加购的行只扣减下单数量
func (r *cartRepository) RemoveConsumed(ctx context.Context, userID uint, consumed []domain.CartItem) error {
	if len(consumed) == 0 {
		return nil
	}
	err := r.tm.Transaction(ctx, func(ctx context.Context) error {
		tx := db.Conn(ctx, r.db)
		var cartIDs []uint
		if err := tx.Model(&CartModel{}).Where("user_id = ?", userID).Pluck("id", &cartIDs).Error; err != nil {
			return err
		}
		if len(cartIDs) == 0 {
			return nil
		}
		for _, it := range consumed {
			if err := tx.Where("id = ? AND cart_id = ? AND quantity <= ?", it.ID, cartIDs[0], it.Quantity).
				Delete(&CartItemModel{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&CartItemModel{}).
				Where("id = ? AND cart_id = ? AND quantity > ?", it.ID, cartIDs[0], it.Quantity).
				Update("quantity", gorm.Expr("quantity - ?", it.Quantity)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, "cart_repository.remove_consumed failed", "user_id", userID, "error", err)
		return fmt.Errorf("failed to remove consumed cart items: %w", err)
	}
	return nil
}

func toItemModel(cartID uint, it domain.CartItem) CartItemModel {
	m := CartItemModel{CartID: cartID, ProductID: it.ProductID, Quantity: it.Quantity}
	if it.PriceAtTime != nil {
		v := it.PriceAtTime.Int64()
		m.PriceAtTime = &v
	}
	return m
}

func toDomain(m *CartModel) *domain.Cart {
	c := &domain.Cart{
		ID:        m.ID,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Items:     make([]domain.CartItem, len(m.Items)),
	}
	for i, it := range m.Items {
		c.Items[i] = domain.CartItem{ID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity}
		if it.PriceAtTime != nil {
			a := money.Amount(*it.PriceAtTime)
			c.Items[i].PriceAtTime = &a
		}
	}
	return c
}
