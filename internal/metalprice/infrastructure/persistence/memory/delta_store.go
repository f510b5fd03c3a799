// Package memory 提供进程内的上一次价格存储，用于本地开发与测试
package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
)

// DeltaStore 进程内上一次价格存储，进程重启后丢失
type DeltaStore struct {
	mu     sync.Mutex
	prices map[domain.Metal]decimal.Decimal
}

func NewDeltaStore() *DeltaStore {
	return &DeltaStore{prices: make(map[domain.Metal]decimal.Decimal)}
}

func (s *DeltaStore) Load(_ context.Context) (map[domain.Metal]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyPrices(s.prices), nil
}

func (s *DeltaStore) Save(_ context.Context, prices map[domain.Metal]decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = copyPrices(prices)
	return nil
}

func (s *DeltaStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = make(map[domain.Metal]decimal.Decimal)
	return nil
}

func copyPrices(in map[domain.Metal]decimal.Decimal) map[domain.Metal]decimal.Decimal {
	out := make(map[domain.Metal]decimal.Decimal, len(in))
	for m, p := range in {
		out[m] = p
	}
	return out
}
