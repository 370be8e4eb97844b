// Package mysql 提供地址仓储的 GORM 实现
package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/ecommerce/internal/address/domain"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"gorm.io/gorm"
)

// AddressModel addresses 表映射
type AddressModel struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
	UserID     uint      `gorm:"column:user_id;index;not null"`
	Recipient  string    `gorm:"column:recipient;type:varchar(100);not null"`
	Phone      string    `gorm:"column:phone;type:varchar(32)"`
	Line1      string    `gorm:"column:line1;type:varchar(255);not null"`
	Line2      string    `gorm:"column:line2;type:varchar(255)"`
	City       string    `gorm:"column:city;type:varchar(100)"`
	State      string    `gorm:"column:state;type:varchar(100)"`
	PostalCode string    `gorm:"column:postal_code;type:varchar(20)"`
	Country    string    `gorm:"column:country;type:varchar(64)"`
	Active     bool      `gorm:"column:active;not null"`
}

func (AddressModel) TableName() string { return "addresses" }

// AutoMigrate 迁移地址表
func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&AddressModel{})
}

type addressRepository struct {
	db *gorm.DB
}

// NewAddressRepository 创建地址仓储
func NewAddressRepository(gdb *gorm.DB) domain.AddressRepository {
	return &addressRepository{db: gdb}
}

func (r *addressRepository) Save(ctx context.Context, a *domain.Address) error {
	m := AddressModel{
		ID: a.ID, CreatedAt: a.CreatedAt, UserID: a.UserID,
		Recipient: a.Recipient, Phone: a.Phone, Line1: a.Line1, Line2: a.Line2,
		City: a.City, State: a.State, PostalCode: a.PostalCode, Country: a.Country,
		Active: a.Active,
	}
	if err := db.Conn(ctx, r.db).Save(&m).Error; err != nil {
		logger.Error(ctx, "address_repository.save failed", "user_id", a.UserID, "error", err)
		return fmt.Errorf("failed to save address: %w", err)
	}
	a.ID, a.CreatedAt, a.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *addressRepository) GetActiveForUser(ctx context.Context, id, userID uint) (*domain.Address, error) {
	var m AddressModel
	err := db.Conn(ctx, r.db).
		Where("id = ? AND user_id = ? AND active = ?", id, userID, true).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.Error(ctx, "address_repository.get failed", "address_id", id, "error", err)
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return toDomain(&m), nil
}

func (r *addressRepository) ListByUser(ctx context.Context, userID uint) ([]*domain.Address, error) {
	var models []AddressModel
	if err := db.Conn(ctx, r.db).Where("user_id = ? AND active = ?", userID, true).Order("id asc").Find(&models).Error; err != nil {
		logger.Error(ctx, "address_repository.list failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	out := make([]*domain.Address, len(models))
	for i := range models {
		out[i] = toDomain(&models[i])
	}
	return out, nil
}

func (r *addressRepository) Deactivate(ctx context.Context, id, userID uint) (bool, error) {
	res := db.Conn(ctx, r.db).Model(&AddressModel{}).
		Where("id = ? AND user_id = ? AND active = ?", id, userID, true).
		Update("active", false)
	if res.Error != nil {
		logger.Error(ctx, "address_repository.deactivate failed", "address_id", id, "error", res.Error)
		return false, fmt.Errorf("failed to deactivate address: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func toDomain(m *AddressModel) *domain.Address {
	return &domain.Address{
		ID: m.ID, UserID: m.UserID,
		Recipient: m.Recipient, Phone: m.Phone, Line1: m.Line1, Line2: m.Line2,
		City: m.City, State: m.State, PostalCode: m.PostalCode, Country: m.Country,
		Active: m.Active, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}
