// Package application 收货地址应用服务
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/ecommerce/internal/address/domain"
)

var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrAddressNotFound = errors.New("address not found")
)

// CreateAddressCommand 创建地址命令
type CreateAddressCommand struct {
	UserID     uint
	Recipient  string
	Phone      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// AddressService 地址应用服务
type AddressService struct {
	repo domain.AddressRepository
}

// NewAddressService 创建地址应用服务
func NewAddressService(repo domain.AddressRepository) *AddressService {
	return &AddressService{repo: repo}
}

// CreateAddress 创建地址
func (s *AddressService) CreateAddress(ctx context.Context, cmd CreateAddressCommand) (*domain.Address, error) {
	if cmd.UserID == 0 || cmd.Recipient == "" || cmd.Line1 == "" {
		return nil, fmt.Errorf("%w: user_id, recipient and line1 are required", ErrInvalidAddress)
	}
	a := &domain.Address{
		UserID:     cmd.UserID,
		Recipient:  cmd.Recipient,
		Phone:      cmd.Phone,
		Line1:      cmd.Line1,
		Line2:      cmd.Line2,
		City:       cmd.City,
		State:      cmd.State,
		PostalCode: cmd.PostalCode,
		Country:    cmd.Country,
		Active:     true,
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAddresses 列出用户启用的地址
func (s *AddressService) ListAddresses(ctx context.Context, userID uint) ([]*domain.Address, error) {
	return s.repo.ListByUser(ctx, userID)
}

// DeactivateAddress 停用地址
func (s *AddressService) DeactivateAddress(ctx context.Context, id, userID uint) error {
	ok, err := s.repo.Deactivate(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAddressNotFound
	}
	return nil
}
