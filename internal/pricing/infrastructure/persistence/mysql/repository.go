package mysql

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/ecommerce/internal/pricing/domain"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"gorm.io/gorm"
)

type ruleRepository struct {
	db *gorm.DB
}

// NewRuleRepository 创建价格规则仓储
func NewRuleRepository(gdb *gorm.DB) domain.RuleRepository {
	return &ruleRepository{db: gdb}
}

func (r *ruleRepository) getDB(ctx context.Context) *gorm.DB {
	return db.Conn(ctx, r.db)
}

func (r *ruleRepository) Save(ctx context.Context, rule *domain.PriceRule) error {
	model := toRuleModel(rule)
	if err := r.getDB(ctx).Save(model).Error; err != nil {
		logger.Error(ctx, "rule_repository.save failed", "subcategory_id", rule.SubcategoryID, "error", err)
		return fmt.Errorf("failed to save price rule: %w", err)
	}
	rule.ID = model.ID
	rule.CreatedAt = model.CreatedAt
	rule.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *ruleRepository) ListActiveBySubcategory(ctx context.Context, subcategoryID uint) ([]*domain.PriceRule, error) {
	return r.list(ctx, r.getDB(ctx).Where("subcategory_id = ? AND active = ?", subcategoryID, true))
}

func (r *ruleRepository) ListBySubcategory(ctx context.Context, subcategoryID uint) ([]*domain.PriceRule, error) {
	return r.list(ctx, r.getDB(ctx).Where("subcategory_id = ?", subcategoryID))
}

func (r *ruleRepository) list(ctx context.Context, q *gorm.DB) ([]*domain.PriceRule, error) {
	var models []PriceRuleModel
	if err := q.Order("id asc").Find(&models).Error; err != nil {
		logger.Error(ctx, "rule_repository.list failed", "error", err)
		return nil, fmt.Errorf("failed to list price rules: %w", err)
	}
	rules := make([]*domain.PriceRule, len(models))
	for i := range models {
		rules[i] = toRule(&models[i])
	}
	return rules, nil
}

type templateRepository struct {
	db *gorm.DB
}

// NewTemplateRepository 创建规格模板仓储
func NewTemplateRepository(gdb *gorm.DB) domain.TemplateRepository {
	return &templateRepository{db: gdb}
}

func (r *templateRepository) Save(ctx context.Context, t *domain.SpecificationTemplate) error {
	model := toTemplateModel(t)
	if err := db.Conn(ctx, r.db).Save(model).Error; err != nil {
		logger.Error(ctx, "template_repository.save failed", "name", t.Name, "error", err)
		return fmt.Errorf("failed to save specification template: %w", err)
	}
	t.ID = model.ID
	t.CreatedAt = model.CreatedAt
	t.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *templateRepository) Get(ctx context.Context, id uint) (*domain.SpecificationTemplate, error) {
	var model SpecificationTemplateModel
	if err := db.Conn(ctx, r.db).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get specification template: %w", err)
	}
	return toTemplate(&model), nil
}

func (r *templateRepository) ListActiveBySubcategory(ctx context.Context, subcategoryID uint) ([]*domain.SpecificationTemplate, error) {
	var models []SpecificationTemplateModel
	err := db.Conn(ctx, r.db).
		Where("subcategory_id = ? AND active = ?", subcategoryID, true).
		Order("display_order asc, id asc").
		Find(&models).Error
	if err != nil {
		logger.Error(ctx, "template_repository.list failed", "subcategory_id", subcategoryID, "error", err)
		return nil, fmt.Errorf("failed to list specification templates: %w", err)
	}
	out := make([]*domain.SpecificationTemplate, len(models))
	for i := range models {
		out[i] = toTemplate(&models[i])
	}
	return out, nil
}
