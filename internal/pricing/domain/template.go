package domain

import "time"

// FieldType 规格字段类型
type FieldType string

const (
	FieldTypeSelect  FieldType = "select"
	FieldTypeText    FieldType = "text"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
)

// Valid 是否为已知字段类型
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeSelect, FieldTypeText, FieldTypeNumber, FieldTypeBoolean:
		return true
	}
	return false
}

// SpecificationTemplate 规格模板
// 描述某个子类目下允许出现的规格字段，由目录管理维护，只停用不删除
type SpecificationTemplate struct {
	ID            uint      `json:"id"`
	SubcategoryID uint      `json:"subcategory_id"`
	Name          string    `json:"name"`
	Type          FieldType `json:"type"`
	// 仅 select 类型存在
	Options      []string  `json:"options,omitempty"`
	Required     bool      `json:"required"`
	AffectsPrice bool      `json:"affects_price"`
	DisplayOrder int       `json:"display_order"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasOption select 选项中是否包含 v
func (t *SpecificationTemplate) HasOption(v string) bool {
	for _, o := range t.Options {
		if o == v {
			return true
		}
	}
	return false
}
