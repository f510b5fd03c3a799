package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultRatios 派生金属相对黄金的固定比例。这是近似定价策略，不是实时报价。
func DefaultRatios() map[Metal]decimal.Decimal {
	return map[Metal]decimal.Decimal{
		Platinum:  decimal.RequireFromString("0.7"),
		Palladium: decimal.RequireFromString("1.0"),
	}
}

// ValidateRatios 派生比例只能配置给无直接源的金属，且每个无直接源的金属都必须有正比例
func ValidateRatios(ratios map[Metal]decimal.Decimal) error {
	for m, r := range ratios {
		if m.IsDirect() {
			return fmt.Errorf("%s has a direct source and cannot be derived", m)
		}
		if !r.IsPositive() {
			return fmt.Errorf("ratio for %s must be positive, got %s", m, r)
		}
	}
	for _, m := range AllMetals {
		if m.IsDirect() {
			continue
		}
		if _, ok := ratios[m]; !ok {
			return fmt.Errorf("missing derivation ratio for %s", m)
		}
	}
	return nil
}

// DerivedPriceEstimator 用参考金属价格乘以固定比例估算无直接源金属的价格
type DerivedPriceEstimator struct {
	ratios map[Metal]decimal.Decimal
}

// NewDerivedPriceEstimator 创建估算器，ratios 为空时使用默认比例
func NewDerivedPriceEstimator(ratios map[Metal]decimal.Decimal) *DerivedPriceEstimator {
	if len(ratios) == 0 {
		ratios = DefaultRatios()
	}
	copied := make(map[Metal]decimal.Decimal, len(ratios))
	for m, r := range ratios {
		copied[m] = r
	}
	return &DerivedPriceEstimator{ratios: copied}
}

// Derive 计算派生价格
func (e *DerivedPriceEstimator) Derive(metal Metal, referencePrice decimal.Decimal) (decimal.Decimal, error) {
	ratio, ok := e.ratios[metal]
	if !ok {
		return decimal.Zero, fmt.Errorf("no derivation ratio for %s", metal)
	}
	return referencePrice.Mul(ratio), nil
}

// DerivedMetals 按快照顺序返回可派生的金属，有直接源的金属始终使用抓取价格
func (e *DerivedPriceEstimator) DerivedMetals() []Metal {
	out := make([]Metal, 0, len(e.ratios))
	for _, m := range AllMetals {
		if m.IsDirect() {
			continue
		}
		if _, ok := e.ratios[m]; ok {
			out = append(out, m)
		}
	}
	return out
}
