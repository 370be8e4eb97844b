// Package money 提供以最小货币单位（分）表示的金额类型
// 内部金额运算一律使用整数，百分比运算经由 decimal 计算后四舍五入回整数分
package money

import (
	"github.com/shopspring/decimal"
)

// MinorPerMajor 每个主货币单位包含的最小单位数
const MinorPerMajor = 100

var hundred = decimal.NewFromInt(100)

// Amount 以最小货币单位计的金额
type Amount int64

// Zero 零金额
const Zero Amount = 0

// FromMajor 将主货币单位的 decimal（如历史遗留的 decimal(10,2) 字段）规范化为最小单位
func FromMajor(d decimal.Decimal) Amount {
	return Amount(d.Shift(2).Round(0).IntPart())
}

// Major 由整数主货币单位构造金额，例如 Major(499) == 49900
func Major(units int64) Amount {
	return Amount(units * MinorPerMajor)
}

// Int64 返回底层整数值
func (a Amount) Int64() int64 {
	return int64(a)
}

// Decimal 返回以主货币单位表示的 decimal
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// String 以两位小数输出主货币单位
func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

// Times 单价乘以数量
func (a Amount) Times(qty int) Amount {
	return a * Amount(qty)
}

// ApplyRate 按比例计算金额（rate 为 0.15 这类小数），结果四舍五入到整数分
func (a Amount) ApplyRate(rate decimal.Decimal) Amount {
	return Amount(decimal.NewFromInt(int64(a)).Mul(rate).Round(0).IntPart())
}

// ScalePercent 按整数百分比调整金额：round(a * (1 + pct/100))
func (a Amount) ScalePercent(pct int64) Amount {
	factor := hundred.Add(decimal.NewFromInt(pct)).Div(hundred)
	return a.ApplyRate(factor)
}

// IsPositive 是否为正数
func (a Amount) IsPositive() bool {
	return a > 0
}
