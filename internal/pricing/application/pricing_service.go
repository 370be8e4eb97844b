// Package application 定价应用服务：价格计算、规格校验与价格规则管理
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/ecommerce/internal/pricing/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
	"github.com/wyfcoding/ecommerce/pkg/money"
)

// ErrInvalidArgument 请求参数不合法
var ErrInvalidArgument = errors.New("invalid argument")

// CalculatePriceCommand 价格计算命令
type CalculatePriceCommand struct {
	SubcategoryID  uint
	Specifications domain.Specifications
	// 调用方提供的起始价，为 nil 时使用胜出规则的基础价
	BasePrice *money.Amount
}

// CreatePriceRuleCommand 创建价格规则命令
type CreatePriceRuleCommand struct {
	SubcategoryID uint
	TemplateID    *uint
	BasePrice     money.Amount
	Conditions    domain.SpecConditions
	PriceModifier int64
	ModifierType  domain.ModifierType
}

// PricingService 定价应用服务
type PricingService struct {
	rules     domain.RuleRepository
	templates domain.TemplateRepository
	metrics   *metrics.Metrics
}

// NewPricingService 创建定价应用服务
func NewPricingService(rules domain.RuleRepository, templates domain.TemplateRepository, m *metrics.Metrics) *PricingService {
	return &PricingService{
		rules:     rules,
		templates: templates,
		metrics:   m,
	}
}

// CalculatePrice 按子类目的启用规则计算价格
func (s *PricingService) CalculatePrice(ctx context.Context, cmd CalculatePriceCommand) (*domain.Quote, error) {
	if cmd.SubcategoryID == 0 {
		return nil, fmt.Errorf("%w: subcategory_id is required", ErrInvalidArgument)
	}
	if cmd.BasePrice != nil && *cmd.BasePrice < 0 {
		return nil, fmt.Errorf("%w: base_price must not be negative", ErrInvalidArgument)
	}

	rules, err := s.rules.ListActiveBySubcategory(ctx, cmd.SubcategoryID)
	if err != nil {
		return nil, err
	}

	quote := domain.Calculate(rules, cmd.Specifications, cmd.BasePrice)

	outcome := "default"
	switch {
	case quote.Breakdown.UnknownModifier:
		outcome = "unknown_modifier"
		applied := quote.AppliedRules[0]
		logger.Warn(ctx, "price rule has unknown modifier type, start price passed through",
			"rule_id", applied.RuleID,
			"modifier_type", string(applied.ModifierType),
			"subcategory_id", cmd.SubcategoryID,
		)
	case quote.Matched():
		outcome = "matched"
	}
	if quote.Breakdown.Clamped {
		logger.Warn(ctx, "price rule produced negative price, clamped to zero",
			"rule_id", quote.AppliedRules[0].RuleID,
			"subcategory_id", cmd.SubcategoryID,
		)
	}
	s.metrics.RecordPriceCalculation(outcome)

	logger.Debug(ctx, "price calculated",
		"subcategory_id", cmd.SubcategoryID,
		"final_price", quote.FinalPrice.Int64(),
		"outcome", outcome,
	)
	return &quote, nil
}

// ValidateSpecifications 按子类目的规格模板校验规格
func (s *PricingService) ValidateSpecifications(ctx context.Context, subcategoryID uint, specs domain.Specifications) (*domain.ValidationResult, error) {
	if subcategoryID == 0 {
		return nil, fmt.Errorf("%w: subcategory_id is required", ErrInvalidArgument)
	}
	templates, err := s.templates.ListActiveBySubcategory(ctx, subcategoryID)
	if err != nil {
		return nil, err
	}
	res := domain.ValidateSpecifications(templates, specs)
	return &res, nil
}

// CreatePriceRule 创建价格规则
func (s *PricingService) CreatePriceRule(ctx context.Context, cmd CreatePriceRuleCommand) (*domain.PriceRule, error) {
	rule := &domain.PriceRule{
		SubcategoryID: cmd.SubcategoryID,
		TemplateID:    cmd.TemplateID,
		BasePrice:     cmd.BasePrice,
		Conditions:    cmd.Conditions,
		PriceModifier: cmd.PriceModifier,
		ModifierType:  cmd.ModifierType,
		Active:        true,
	}
	if rule.Conditions == nil {
		rule.Conditions = domain.SpecConditions{}
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if cmd.TemplateID != nil {
		tpl, err := s.templates.Get(ctx, *cmd.TemplateID)
		if err != nil {
			return nil, err
		}
		if tpl == nil || tpl.SubcategoryID != cmd.SubcategoryID {
			return nil, fmt.Errorf("%w: template %d does not belong to subcategory %d", domain.ErrInvalidRule, *cmd.TemplateID, cmd.SubcategoryID)
		}
	}

	if err := s.rules.Save(ctx, rule); err != nil {
		return nil, err
	}
	logger.Info(ctx, "price rule created",
		"rule_id", rule.ID,
		"subcategory_id", rule.SubcategoryID,
		"modifier_type", string(rule.ModifierType),
	)
	return rule, nil
}

// ListPriceRules 列出子类目下的价格规则
func (s *PricingService) ListPriceRules(ctx context.Context, subcategoryID uint, includeInactive bool) ([]*domain.PriceRule, error) {
	if subcategoryID == 0 {
		return nil, fmt.Errorf("%w: subcategory_id is required", ErrInvalidArgument)
	}
	if includeInactive {
		return s.rules.ListBySubcategory(ctx, subcategoryID)
	}
	return s.rules.ListActiveBySubcategory(ctx, subcategoryID)
}

// CreateTemplateCommand 创建规格模板命令
type CreateTemplateCommand struct {
	SubcategoryID uint
	Name          string
	Type          domain.FieldType
	Options       []string
	Required      bool
	AffectsPrice  bool
	DisplayOrder  int
}

// CreateTemplate 创建规格模板；select 类型必须带选项，其余类型不得带选项，同子类目内名称唯一
func (s *PricingService) CreateTemplate(ctx context.Context, cmd CreateTemplateCommand) (*domain.SpecificationTemplate, error) {
	if cmd.SubcategoryID == 0 || cmd.Name == "" {
		return nil, fmt.Errorf("%w: subcategory_id and name are required", ErrInvalidArgument)
	}
	if !cmd.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown field type %q", ErrInvalidArgument, cmd.Type)
	}
	if (cmd.Type == domain.FieldTypeSelect) != (len(cmd.Options) > 0) {
		return nil, fmt.Errorf("%w: options must be present exactly for select fields", ErrInvalidArgument)
	}

	existing, err := s.templates.ListActiveBySubcategory(ctx, cmd.SubcategoryID)
	if err != nil {
		return nil, err
	}
	for _, t := range existing {
		if t.Name == cmd.Name {
			return nil, fmt.Errorf("%w: template %s already exists in subcategory %d", ErrInvalidArgument, cmd.Name, cmd.SubcategoryID)
		}
	}

	tpl := &domain.SpecificationTemplate{
		SubcategoryID: cmd.SubcategoryID,
		Name:          cmd.Name,
		Type:          cmd.Type,
		Options:       cmd.Options,
		Required:      cmd.Required,
		AffectsPrice:  cmd.AffectsPrice,
		DisplayOrder:  cmd.DisplayOrder,
		Active:        true,
	}
	if err := s.templates.Save(ctx, tpl); err != nil {
		return nil, err
	}
	logger.Info(ctx, "specification template created", "template_id", tpl.ID, "subcategory_id", tpl.SubcategoryID, "name", tpl.Name)
	return tpl, nil
}

// ListTemplates 列出子类目下启用的规格模板
func (s *PricingService) ListTemplates(ctx context.Context, subcategoryID uint) ([]*domain.SpecificationTemplate, error) {
	if subcategoryID == 0 {
		return nil, fmt.Errorf("%w: subcategory_id is required", ErrInvalidArgument)
	}
	return s.templates.ListActiveBySubcategory(ctx, subcategoryID)
}
