// Package domain 收货地址领域模型
package domain

import (
	"context"
	"time"
)

// Address 用户收货地址
type Address struct {
	ID         uint      `json:"id"`
	UserID     uint      `json:"user_id"`
	Recipient  string    `json:"recipient"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AddressRepository 地址仓储接口
type AddressRepository interface {
	Save(ctx context.Context, a *Address) error
	// GetActiveForUser 获取属于该用户且启用的地址，否则返回 nil
	GetActiveForUser(ctx context.Context, id, userID uint) (*Address, error)
	ListByUser(ctx context.Context, userID uint) ([]*Address, error)
	Deactivate(ctx context.Context, id, userID uint) (bool, error)
}
