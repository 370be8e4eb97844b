package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/ecommerce/internal/catalog/domain"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/money"
	"gorm.io/gorm"
)

type productRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建商品仓储
func NewProductRepository(gdb *gorm.DB) domain.ProductRepository {
	return &productRepository{db: gdb}
}

func (r *productRepository) getDB(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *productRepository) Save(ctx context.Context, p *domain.Product) error {
	model := toModel(p)
	if err := r.getDB(ctx).Save(model).Error; err != nil {
		logger.Error(ctx, "product_repository.save failed", "name", p.Name, "error", err)
		return fmt.Errorf("failed to save product: %w", err)
	}
	p.ID = model.ID
	p.CreatedAt = model.CreatedAt
	p.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *productRepository) GetByID(ctx context.Context, id uint) (*domain.Product, error) {
	var model ProductModel
	if err := r.getDB(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error(ctx, "product_repository.get failed", "product_id", id, "error", err)
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return toDomain(&model), nil
}

func (r *productRepository) List(ctx context.Context, subcategoryID uint, offset, limit int) ([]*domain.Product, int64, error) {
	var models []ProductModel
	var total int64
	q := r.getDB(ctx).Model(&ProductModel{})
	if subcategoryID != 0 {
		q = q.Where("subcategory_id = ?", subcategoryID)
	}
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}
	if err := q.Order("id asc").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		logger.Error(ctx, "product_repository.list failed", "subcategory_id", subcategoryID, "error", err)
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	products := make([]*domain.Product, len(models))
	for i := range models {
		products[i] = toDomain(&models[i])
	}
	return products, total, nil
}

func (r *productRepository) DecrementStock(ctx context.Context, id uint, qty int) (bool, error) {
	res := r.getDB(ctx).Model(&ProductModel{}).
		Where("id = ? AND stock_quantity >= ?", id, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		logger.Error(ctx, "product_repository.decrement_stock failed", "product_id", id, "qty", qty, "error", res.Error)
		return false, fmt.Errorf("failed to decrement stock: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *productRepository) RestoreStock(ctx context.Context, id uint, qty int) error {
	err := r.getDB(ctx).Model(&ProductModel{}).
		Where("id = ?", id).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty)).Error
	if err != nil {
		logger.Error(ctx, "product_repository.restore_stock failed", "product_id", id, "qty", qty, "error", err)
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	return nil
}

func (r *productRepository) UpdateCalculatedPrice(ctx context.Context, id uint, price money.Amount) error {
	err := r.getDB(ctx).Model(&ProductModel{}).
		Where("id = ?", id).
		Update("calculated_price", price.Int64()).Error
	if err != nil {
		logger.Error(ctx, "product_repository.update_calculated_price failed", "product_id", id, "error", err)
		return fmt.Errorf("failed to update calculated price: %w", err)
	}
	return nil
}
