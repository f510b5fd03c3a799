package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PriceRecord 单个金属的行情记录
type PriceRecord struct {
	Metal Metal
	// Price 当前价格（基础币种）
	Price decimal.Decimal
	// Change 相对上一次价格的变化，无历史时为 0
	Change decimal.Decimal
	// ChangePercent 变化百分比，无历史或上一次价格为 0 时为 0
	ChangePercent decimal.Decimal
	LastUpdated   time.Time
}

// ComputeChange 计算涨跌额与涨跌幅
func ComputeChange(current, previous decimal.Decimal, hasPrevious bool) (change, changePercent decimal.Decimal) {
	if !hasPrevious {
		return decimal.Zero, decimal.Zero
	}
	change = current.Sub(previous)
	if previous.IsZero() {
		return change, decimal.Zero
	}
	return change, change.Div(previous).Mul(hundred)
}

// NewPriceRecord 根据上一次价格构建行情记录
func NewPriceRecord(metal Metal, price decimal.Decimal, previous map[Metal]decimal.Decimal, now time.Time) PriceRecord {
	prev, ok := previous[metal]
	change, pct := ComputeChange(price, prev, ok)
	return PriceRecord{
		Metal:         metal,
		Price:         price,
		Change:        change,
		ChangePercent: pct,
		LastUpdated:   now,
	}
}

// Snapshot 一次刷新得到的完整行情集合，每种金属一条
type Snapshot struct {
	Records     []PriceRecord
	AssembledAt time.Time
}

// NewSnapshot 按 AllMetals 顺序组装快照；缺失、重复或非正价格都视为不完整
func NewSnapshot(records []PriceRecord, assembledAt time.Time) (Snapshot, error) {
	byMetal := make(map[Metal]PriceRecord, len(records))
	for _, r := range records {
		if _, dup := byMetal[r.Metal]; dup {
			return Snapshot{}, fmt.Errorf("%w: duplicate %s", ErrIncompleteSnapshot, r.Metal)
		}
		if !r.Price.IsPositive() {
			return Snapshot{}, fmt.Errorf("%w: non-positive %s price %s", ErrIncompleteSnapshot, r.Metal, r.Price)
		}
		byMetal[r.Metal] = r
	}

	ordered := make([]PriceRecord, 0, len(AllMetals))
	for _, m := range AllMetals {
		r, ok := byMetal[m]
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: missing %s", ErrIncompleteSnapshot, m)
		}
		ordered = append(ordered, r)
	}
	if len(byMetal) != len(AllMetals) {
		return Snapshot{}, fmt.Errorf("%w: unexpected metals", ErrIncompleteSnapshot)
	}

	return Snapshot{Records: ordered, AssembledAt: assembledAt}, nil
}

// IsEmpty 是否为空快照
func (s Snapshot) IsEmpty() bool {
	return len(s.Records) == 0
}

// Find 按金属查找记录
func (s Snapshot) Find(metal Metal) (PriceRecord, bool) {
	for _, r := range s.Records {
		if r.Metal == metal {
			return r, true
		}
	}
	return PriceRecord{}, false
}

// Prices 返回金属到价格的映射，用于写入上一次价格存储
func (s Snapshot) Prices() map[Metal]decimal.Decimal {
	out := make(map[Metal]decimal.Decimal, len(s.Records))
	for _, r := range s.Records {
		out[r.Metal] = r.Price
	}
	return out
}

// Clone 复制快照，调用方修改记录不影响缓存
func (s Snapshot) Clone() Snapshot {
	if s.Records == nil {
		return Snapshot{AssembledAt: s.AssembledAt}
	}
	records := make([]PriceRecord, len(s.Records))
	copy(records, s.Records)
	return Snapshot{Records: records, AssembledAt: s.AssembledAt}
}
