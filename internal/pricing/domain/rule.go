package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/ecommerce/pkg/money"
)

// ErrInvalidRule 价格规则数据不合法
var ErrInvalidRule = errors.New("invalid price rule")

// ModifierType 价格调整方式
type ModifierType string

const (
	// ModifierAdd start + modifier
	ModifierAdd ModifierType = "add"
	// ModifierMultiply modifier 为整数百分比：round(start * (1 + modifier/100))
	ModifierMultiply ModifierType = "multiply"
	// ModifierSet 直接取 modifier，忽略起始价
	ModifierSet ModifierType = "set"
)

// Known 是否为已知调整方式
func (m ModifierType) Known() bool {
	switch m {
	case ModifierAdd, ModifierMultiply, ModifierSet:
		return true
	}
	return false
}

// Apply 对起始价应用调整，未知调整方式返回 ok=false 且价格不变
func (m ModifierType) Apply(start money.Amount, modifier int64) (money.Amount, bool) {
	switch m {
	case ModifierAdd:
		return start + money.Amount(modifier), true
	case ModifierMultiply:
		return start.ScalePercent(modifier), true
	case ModifierSet:
		return money.Amount(modifier), true
	default:
		return start, false
	}
}

// Condition 单个规格条件：精确值或闭区间 [Min, Max]，区间端点为 nil 表示无界
type Condition struct {
	Exact *SpecValue
	Min   *decimal.Decimal
	Max   *decimal.Decimal
}

// ExactCondition 构造精确匹配条件
func ExactCondition(v SpecValue) Condition {
	return Condition{Exact: &v}
}

// RangeCondition 构造区间条件
func RangeCondition(min, max *decimal.Decimal) Condition {
	return Condition{Min: min, Max: max}
}

// IsRange 是否为区间条件
func (c Condition) IsRange() bool {
	return c.Exact == nil
}

// Matches 判断规格值是否满足条件
func (c Condition) Matches(v SpecValue) bool {
	if !c.IsRange() {
		return c.Exact.Equal(v)
	}
	n, ok := v.AsNumber()
	if !ok {
		return false
	}
	if c.Min != nil && n.LessThan(*c.Min) {
		return false
	}
	if c.Max != nil && n.GreaterThan(*c.Max) {
		return false
	}
	return true
}

func (c Condition) validate(key string) error {
	if !c.IsRange() {
		if c.Exact.Kind() == KindInvalid {
			return fmt.Errorf("%w: condition %q has no value", ErrInvalidRule, key)
		}
		return nil
	}
	if c.Min == nil && c.Max == nil {
		return fmt.Errorf("%w: range condition %q needs min or max", ErrInvalidRule, key)
	}
	if c.Min != nil && c.Max != nil && c.Min.GreaterThan(*c.Max) {
		return fmt.Errorf("%w: range condition %q has min %s > max %s", ErrInvalidRule, key, c.Min, c.Max)
	}
	return nil
}

type rangeJSON struct {
	Min *decimal.Decimal `json:"min,omitempty"`
	Max *decimal.Decimal `json:"max,omitempty"`
}

func (c Condition) MarshalJSON() ([]byte, error) {
	if !c.IsRange() {
		return json.Marshal(*c.Exact)
	}
	return json.Marshal(rangeJSON{Min: c.Min, Max: c.Max})
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var r rangeJSON
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return fmt.Errorf("invalid range condition: %w", err)
		}
		*c = Condition{Min: r.Min, Max: r.Max}
		return nil
	}
	var v SpecValue
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*c = ExactCondition(v)
	return nil
}

// SpecConditions 规格条件表
type SpecConditions map[string]Condition

// Keys 返回排序后的条件键
func (s SpecConditions) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value 实现 driver.Valuer
func (s SpecConditions) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]Condition(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (s *SpecConditions) Scan(src any) error {
	var data []byte
	switch t := src.(type) {
	case nil:
		*s = SpecConditions{}
		return nil
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		return fmt.Errorf("cannot scan %T into SpecConditions", src)
	}
	out := map[string]Condition{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*s = out
	return nil
}

// PriceRule 价格规则
// 同一子类目下的规则可以条件重叠，每次计算只有一条规则胜出；ID 越小越早创建，平分时胜出
type PriceRule struct {
	ID            uint           `json:"id"`
	SubcategoryID uint           `json:"subcategory_id"`
	TemplateID    *uint          `json:"template_id,omitempty"`
	BasePrice     money.Amount   `json:"base_price"`
	Conditions    SpecConditions `json:"spec_conditions"`
	PriceModifier int64          `json:"price_modifier"`
	ModifierType  ModifierType   `json:"modifier_type"`
	Active        bool           `json:"active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Validate 校验规则不变量
func (r *PriceRule) Validate() error {
	if r.SubcategoryID == 0 {
		return fmt.Errorf("%w: subcategory is required", ErrInvalidRule)
	}
	if !r.BasePrice.IsPositive() {
		return fmt.Errorf("%w: base price must be positive, got %d", ErrInvalidRule, r.BasePrice)
	}
	if !r.ModifierType.Known() {
		return fmt.Errorf("%w: unknown modifier type %q", ErrInvalidRule, r.ModifierType)
	}
	if r.ModifierType == ModifierSet && r.PriceModifier <= 0 {
		return fmt.Errorf("%w: set modifier must be positive, got %d", ErrInvalidRule, r.PriceModifier)
	}
	for _, k := range r.Conditions.Keys() {
		if err := r.Conditions[k].validate(k); err != nil {
			return err
		}
	}
	return nil
}

// Score 规则与规格的匹配分：round(matches / total * 100)，无条件规则为 0
// 返回命中的条件键（已排序）
func (r *PriceRule) Score(specs Specifications) (int, []string) {
	total := len(r.Conditions)
	if total == 0 {
		return 0, nil
	}
	var matched []string
	for _, k := range r.Conditions.Keys() {
		v, ok := specs.Get(k)
		if !ok {
			continue
		}
		if r.Conditions[k].Matches(v) {
			matched = append(matched, k)
		}
	}
	// 整数四舍五入
	score := (len(matched)*200 + total) / (2 * total)
	return score, matched
}
