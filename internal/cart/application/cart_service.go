// Package application 购物车应用服务
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/ecommerce/internal/cart/domain"
	catalog "github.com/wyfcoding/ecommerce/internal/catalog/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
)

// ErrProductNotFound 商品不存在
var ErrProductNotFound = errors.New("product not found")

// AddItemCommand 加入购物车命令
type AddItemCommand struct {
	UserID    uint
	ProductID uint
	Quantity  int
}

// CartService 购物车应用服务
type CartService struct {
	repo     domain.CartRepository
	products catalog.ProductRepository
}

// NewCartService 创建购物车应用服务
func NewCartService(repo domain.CartRepository, products catalog.ProductRepository) *CartService {
	return &CartService{repo: repo, products: products}
}

// GetCart 获取购物车，不存在时返回空购物车
func (s *CartService) GetCart(ctx context.Context, userID uint) (*domain.Cart, error) {
	cart, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
	}
	return cart, nil
}

// AddItem 加入商品，冻结当前有效价格
func (s *CartService) AddItem(ctx context.Context, cmd AddItemCommand) (*domain.Cart, error) {
	product, err := s.products.GetByID(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("%w: %d", ErrProductNotFound, cmd.ProductID)
	}

	cart, err := s.GetCart(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	if price, ok := product.EffectivePrice(); ok {
		err = cart.AddItem(product.ID, cmd.Quantity, &price)
	} else {
		err = cart.AddItem(product.ID, cmd.Quantity, nil)
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, err
	}
	logger.Info(ctx, "cart item added", "user_id", cmd.UserID, "product_id", cmd.ProductID, "quantity", cmd.Quantity)
	return cart, nil
}

// RemoveItem 移除商品
func (s *CartService) RemoveItem(ctx context.Context, userID, productID uint) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !cart.RemoveItem(productID) {
		return cart, nil
	}
	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// ClearCart 清空购物车
func (s *CartService) ClearCart(ctx context.Context, userID uint) error {
	return s.repo.ClearItems(ctx, userID)
}
