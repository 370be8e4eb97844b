// Package application 商品目录应用服务
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/ecommerce/internal/catalog/domain"
	pricingapp "github.com/wyfcoding/ecommerce/internal/pricing/application"
	pricing "github.com/wyfcoding/ecommerce/internal/pricing/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/money"
	"github.com/wyfcoding/ecommerce/pkg/utils"
)

var (
	ErrInvalidProduct  = errors.New("invalid product")
	ErrProductNotFound = errors.New("product not found")
	// ErrNonPositivePrice 规则计算结果不为正，通常是规则数据有误
	ErrNonPositivePrice = errors.New("price rule produced non-positive price")
)

// PriceCalculator 价格计算端口，由定价应用服务实现
type PriceCalculator interface {
	CalculatePrice(ctx context.Context, cmd pricingapp.CalculatePriceCommand) (*pricing.Quote, error)
}

// CreateProductCommand 创建商品命令
type CreateProductCommand struct {
	SubcategoryID uint
	Name          string
	Description   string
	Specs         pricing.Specifications
	BasePrice     *money.Amount
	LegacyPrice   *decimal.Decimal
	StockQuantity int
}

// RepriceResult 重新定价结果
type RepriceResult struct {
	Product *domain.Product `json:"product"`
	Quote   *pricing.Quote  `json:"quote"`
	Updated bool            `json:"updated"`
}

// ProductList 分页商品列表
type ProductList struct {
	Items      []*domain.Product `json:"items"`
	Pagination *utils.Pagination `json:"pagination"`
}

// CatalogService 商品目录应用服务
type CatalogService struct {
	repo   domain.ProductRepository
	pricer PriceCalculator
}

// NewCatalogService 创建商品目录应用服务
func NewCatalogService(repo domain.ProductRepository, pricer PriceCalculator) *CatalogService {
	return &CatalogService{repo: repo, pricer: pricer}
}

// CreateProduct 创建商品
func (s *CatalogService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (*domain.Product, error) {
	if cmd.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if cmd.StockQuantity < 0 {
		return nil, fmt.Errorf("%w: stock quantity must not be negative", ErrInvalidProduct)
	}
	if cmd.BasePrice != nil && *cmd.BasePrice < 0 {
		return nil, fmt.Errorf("%w: base price must not be negative", ErrInvalidProduct)
	}

	p := &domain.Product{
		SubcategoryID: cmd.SubcategoryID,
		Name:          cmd.Name,
		Description:   cmd.Description,
		Specs:         cmd.Specs,
		BasePrice:     cmd.BasePrice,
		StockQuantity: cmd.StockQuantity,
	}
	if cmd.LegacyPrice != nil {
		p.LegacyPrice = decimal.NewNullDecimal(*cmd.LegacyPrice)
	}
	if p.Specs == nil {
		p.Specs = pricing.Specifications{}
	}

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	logger.Info(ctx, "product created", "product_id", p.ID, "subcategory_id", p.SubcategoryID)
	return p, nil
}

// GetProduct 获取商品
func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// ListProducts 分页查询商品
func (s *CatalogService) ListProducts(ctx context.Context, subcategoryID uint, page, pageSize int) (*ProductList, error) {
	pg := utils.NewPagination(page, pageSize, 0)
	items, total, err := s.repo.List(ctx, subcategoryID, pg.Offset(), pg.Limit())
	if err != nil {
		return nil, err
	}
	return &ProductList{
		Items:      items,
		Pagination: utils.NewPagination(pg.Page, pg.PageSize, total),
	}, nil
}

// RepriceProduct 以商品规格运行定价引擎并持久化计算价
// 没有规则命中时保留原计算价
func (s *CatalogService) RepriceProduct(ctx context.Context, id uint) (*RepriceResult, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricer.CalculatePrice(ctx, pricingapp.CalculatePriceCommand{
		SubcategoryID:  p.SubcategoryID,
		Specifications: p.Specs,
		BasePrice:      p.BasePrice,
	})
	if err != nil {
		return nil, err
	}

	res := &RepriceResult{Product: p, Quote: quote}
	if !quote.Matched() {
		logger.Info(ctx, "no price rule matched, calculated price unchanged", "product_id", p.ID)
		return res, nil
	}

	if !quote.FinalPrice.IsPositive() || quote.Breakdown.Clamped {
		logger.Error(ctx, "refusing to persist non-positive calculated price",
			"product_id", p.ID,
			"final_price", quote.FinalPrice.Int64(),
			"rule_id", quote.AppliedRules[0].RuleID,
		)
		return nil, fmt.Errorf("%w: product %d, rule %d", ErrNonPositivePrice, p.ID, quote.AppliedRules[0].RuleID)
	}

	if err := s.repo.UpdateCalculatedPrice(ctx, p.ID, quote.FinalPrice); err != nil {
		return nil, err
	}
	price := quote.FinalPrice
	p.CalculatedPrice = &price
	res.Updated = true

	logger.Info(ctx, "product repriced",
		"product_id", p.ID,
		"calculated_price", price.Int64(),
		"rule_id", quote.AppliedRules[0].RuleID,
	)
	return res, nil
}
