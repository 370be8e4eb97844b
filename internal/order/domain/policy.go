package domain

import (
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/ecommerce/pkg/money"
)

// OrderPolicy 订单金额策略
type OrderPolicy struct {
	DiscountRate decimal.Decimal
	TaxRate      decimal.Decimal
	// 应税金额严格大于该值时免运费
	FreeShippingThreshold money.Amount
	ShippingFee           money.Amount
}

// DefaultPolicy 默认策略：15% 折扣，18% 税，满 499.00 免运费，否则 40.00
func DefaultPolicy() OrderPolicy {
	return OrderPolicy{
		DiscountRate:          decimal.RequireFromString("0.15"),
		TaxRate:               decimal.RequireFromString("0.18"),
		FreeShippingThreshold: money.Major(499),
		ShippingFee:           money.Major(40),
	}
}

// Line 计价行
type Line struct {
	UnitPrice money.Amount
	Quantity  int
}

// Totals 订单金额汇总
type Totals struct {
	Subtotal money.Amount `json:"subtotal"`
	Discount money.Amount `json:"discount_amount"`
	Taxable  money.Amount `json:"taxable_amount"`
	Tax      money.Amount `json:"tax_amount"`
	Shipping money.Amount `json:"shipping_amount"`
	Total    money.Amount `json:"total_amount"`
}

// ComputeTotals 逐步计算金额，每一步都取整到分
func (p OrderPolicy) ComputeTotals(lines []Line) Totals {
	var t Totals
	for _, l := range lines {
		t.Subtotal += l.UnitPrice.Times(l.Quantity)
	}
	t.Discount = t.Subtotal.ApplyRate(p.DiscountRate)
	t.Taxable = t.Subtotal - t.Discount
	t.Tax = t.Taxable.ApplyRate(p.TaxRate)
	if t.Taxable > p.FreeShippingThreshold {
		t.Shipping = money.Zero
	} else {
		t.Shipping = p.ShippingFee
	}
	t.Total = t.Taxable + t.Tax + t.Shipping
	return t
}
