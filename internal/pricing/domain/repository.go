package domain

import "context"

// RuleRepository 价格规则仓储接口
type RuleRepository interface {
	// Save 保存规则，新规则保存后回填 ID
	Save(ctx context.Context, rule *PriceRule) error
	// ListActiveBySubcategory 获取子类目下所有启用规则，按 ID 升序
	ListActiveBySubcategory(ctx context.Context, subcategoryID uint) ([]*PriceRule, error)
	// ListBySubcategory 获取子类目下所有规则（含停用）
	ListBySubcategory(ctx context.Context, subcategoryID uint) ([]*PriceRule, error)
}

// TemplateRepository 规格模板仓储接口
type TemplateRepository interface {
	// Save 保存模板
	Save(ctx context.Context, t *SpecificationTemplate) error
	// Get 获取模板，不存在返回 nil
	Get(ctx context.Context, id uint) (*SpecificationTemplate, error)
	// ListActiveBySubcategory 获取子类目下启用的模板，按 display_order 排序
	ListActiveBySubcategory(ctx context.Context, subcategoryID uint) ([]*SpecificationTemplate, error)
}
