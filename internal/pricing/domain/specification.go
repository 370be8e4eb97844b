package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ValueKind 规格值类型
type ValueKind uint8

const (
	KindInvalid ValueKind = iota
	KindString
	KindNumber
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	default:
		return "invalid"
	}
}

// SpecValue 规格值，string | number | boolean 三选一
type SpecValue struct {
	kind ValueKind
	str  string
	num  decimal.Decimal
	b    bool
}

// StringValue 构造字符串规格值
func StringValue(s string) SpecValue { return SpecValue{kind: KindString, str: s} }

// NumberValue 构造数值规格值
func NumberValue(d decimal.Decimal) SpecValue { return SpecValue{kind: KindNumber, num: d} }

// IntValue 构造整数规格值
func IntValue(i int64) SpecValue { return NumberValue(decimal.NewFromInt(i)) }

// BoolValue 构造布尔规格值
func BoolValue(b bool) SpecValue { return SpecValue{kind: KindBool, b: b} }

// Kind 返回值类型
func (v SpecValue) Kind() ValueKind { return v.kind }

// Text 返回值的文本形式，select 选项比较使用该形式
func (v SpecValue) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num.String()
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// AsNumber 将值转换为数值，数值或可解析为数值的字符串返回 ok=true
func (v SpecValue) AsNumber() (decimal.Decimal, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		d, err := decimal.NewFromString(strings.TrimSpace(v.str))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// AsBool 返回布尔值，仅 boolean 类型 ok=true
func (v SpecValue) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// Equal 精确匹配：类型与值都相同才相等，"128" 与 128 不相等；数值按十进制值比较
func (v SpecValue) Equal(o SpecValue) bool {
	if v.kind == KindInvalid || v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num.Equal(o.num)
	default:
		return v.b == o.b
	}
}

func (v SpecValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return []byte(v.num.String()), nil
	case KindBool:
		return json.Marshal(v.b)
	default:
		return []byte("null"), nil
	}
}

func (v *SpecValue) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	parsed, err := valueFromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func valueFromAny(raw any) (SpecValue, error) {
	switch t := raw.(type) {
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return SpecValue{}, fmt.Errorf("invalid number %q: %w", t.String(), err)
		}
		return NumberValue(d), nil
	case nil:
		return SpecValue{}, fmt.Errorf("specification value must not be null")
	default:
		return SpecValue{}, fmt.Errorf("specification value must be a string, number or boolean, got %T", raw)
	}
}

// Specifications 规格键值表，Keys 按字典序返回保证遍历顺序确定
type Specifications map[string]SpecValue

// Keys 返回排序后的键
func (s Specifications) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get 获取规格值
func (s Specifications) Get(key string) (SpecValue, bool) {
	v, ok := s[key]
	return v, ok
}

// Value 实现 driver.Valuer，以 JSON 存储
func (s Specifications) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]SpecValue(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (s *Specifications) Scan(src any) error {
	var data []byte
	switch t := src.(type) {
	case nil:
		*s = Specifications{}
		return nil
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		return fmt.Errorf("cannot scan %T into Specifications", src)
	}
	out := map[string]SpecValue{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*s = out
	return nil
}
