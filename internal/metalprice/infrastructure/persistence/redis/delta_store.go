// Package redis 提供基于 Redis 的上一次价格存储
package redis

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
	"github.com/wyfcoding/metalprice/pkg/cache"
	"github.com/wyfcoding/metalprice/pkg/logger"
)

// DefaultDeltaKey 上一次价格的默认存储键
const DefaultDeltaKey = "metalprice:previous_prices"

// DeltaStore 基于 Redis 的上一次价格存储，值为 metal -> 价格字符串 的 JSON，不设过期
type DeltaStore struct {
	cache *cache.RedisCache
	key   string
}

// NewDeltaStore 创建 Redis 上一次价格存储
func NewDeltaStore(c *cache.RedisCache, key string) *DeltaStore {
	if key == "" {
		key = DefaultDeltaKey
	}
	return &DeltaStore{cache: c, key: key}
}

func (s *DeltaStore) Load(ctx context.Context) (map[domain.Metal]decimal.Decimal, error) {
	var raw map[string]string
	found, err := s.cache.GetJSON(ctx, s.key, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", domain.ErrPersistence, s.key, err)
	}

	prices := make(map[domain.Metal]decimal.Decimal, len(raw))
	if !found {
		return prices, nil
	}
	for k, v := range raw {
		metal, err := domain.ParseMetal(k)
		if err != nil {
			logger.Warn(ctx, "Skipping unknown metal in previous prices", "metal", k)
			continue
		}
		price, err := decimal.NewFromString(v)
		if err != nil {
			logger.Warn(ctx, "Skipping malformed previous price", "metal", k, "value", v)
			continue
		}
		prices[metal] = price
	}
	return prices, nil
}

func (s *DeltaStore) Save(ctx context.Context, prices map[domain.Metal]decimal.Decimal) error {
	raw := make(map[string]string, len(prices))
	for m, p := range prices {
		raw[m.String()] = p.String()
	}
	if err := s.cache.SetJSON(ctx, s.key, raw, 0); err != nil {
		return fmt.Errorf("%w: save %s: %v", domain.ErrPersistence, s.key, err)
	}
	return nil
}

func (s *DeltaStore) Reset(ctx context.Context) error {
	if err := s.cache.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("%w: reset %s: %v", domain.ErrPersistence, s.key, err)
	}
	return nil
}
