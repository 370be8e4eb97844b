// Package mysql 提供价格规则与规格模板仓储的 GORM 实现
package mysql

import (
	"time"

	"github.com/wyfcoding/ecommerce/internal/pricing/domain"
	"github.com/wyfcoding/ecommerce/pkg/money"
	"gorm.io/gorm"
)

// PriceRuleModel price_rules 表映射
type PriceRuleModel struct {
	ID             uint                  `gorm:"primaryKey;autoIncrement"`
	CreatedAt      time.Time             `gorm:"column:created_at"`
	UpdatedAt      time.Time             `gorm:"column:updated_at"`
	SubcategoryID  uint                  `gorm:"column:subcategory_id;index:idx_rule_subcategory_active;not null;comment:所属子类目"`
	TemplateID     *uint                 `gorm:"column:template_id;index;comment:关联规格模板"`
	BasePrice      int64                 `gorm:"column:base_price;not null;comment:基础价(分)"`
	SpecConditions domain.SpecConditions `gorm:"column:spec_conditions;type:text;comment:规格条件(JSON)"`
	PriceModifier  int64                 `gorm:"column:price_modifier;not null;default:0"`
	ModifierType   string                `gorm:"column:modifier_type;type:varchar(16);not null"`
	Active         bool                  `gorm:"column:active;index:idx_rule_subcategory_active;not null"`
}

func (PriceRuleModel) TableName() string { return "price_rules" }

// SpecificationTemplateModel specification_templates 表映射
type SpecificationTemplateModel struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
	SubcategoryID uint      `gorm:"column:subcategory_id;uniqueIndex:uk_template_subcategory_name;not null"`
	Name          string    `gorm:"column:name;type:varchar(100);uniqueIndex:uk_template_subcategory_name;not null"`
	Type          string    `gorm:"column:type;type:varchar(16);not null"`
	Options       []string  `gorm:"column:options;type:text;serializer:json"`
	Required      bool      `gorm:"column:required;not null;default:false"`
	AffectsPrice  bool      `gorm:"column:affects_price;not null;default:false"`
	DisplayOrder  int       `gorm:"column:display_order;not null;default:0"`
	Active        bool      `gorm:"column:active;not null"`
}

func (SpecificationTemplateModel) TableName() string { return "specification_templates" }

// AutoMigrate 迁移定价相关表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&PriceRuleModel{}, &SpecificationTemplateModel{})
}

func toRuleModel(r *domain.PriceRule) *PriceRuleModel {
	return &PriceRuleModel{
		ID:             r.ID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		SubcategoryID:  r.SubcategoryID,
		TemplateID:     r.TemplateID,
		BasePrice:      r.BasePrice.Int64(),
		SpecConditions: r.Conditions,
		PriceModifier:  r.PriceModifier,
		ModifierType:   string(r.ModifierType),
		Active:         r.Active,
	}
}

func toRule(m *PriceRuleModel) *domain.PriceRule {
	return &domain.PriceRule{
		ID:            m.ID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		SubcategoryID: m.SubcategoryID,
		TemplateID:    m.TemplateID,
		BasePrice:     money.Amount(m.BasePrice),
		Conditions:    m.SpecConditions,
		PriceModifier: m.PriceModifier,
		ModifierType:  domain.ModifierType(m.ModifierType),
		Active:        m.Active,
	}
}

func toTemplateModel(t *domain.SpecificationTemplate) *SpecificationTemplateModel {
	return &SpecificationTemplateModel{
		ID:            t.ID,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		SubcategoryID: t.SubcategoryID,
		Name:          t.Name,
		Type:          string(t.Type),
		Options:       t.Options,
		Required:      t.Required,
		AffectsPrice:  t.AffectsPrice,
		DisplayOrder:  t.DisplayOrder,
		Active:        t.Active,
	}
}

func toTemplate(m *SpecificationTemplateModel) *domain.SpecificationTemplate {
	return &domain.SpecificationTemplate{
		ID:            m.ID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		SubcategoryID: m.SubcategoryID,
		Name:          m.Name,
		Type:          domain.FieldType(m.Type),
		Options:       m.Options,
		Required:      m.Required,
		AffectsPrice:  m.AffectsPrice,
		DisplayOrder:  m.DisplayOrder,
		Active:        m.Active,
	}
}
