package domain

import (
	"sync"
	"time"
)

// PriceCache 内存中的最近一次快照及其组装时间
type PriceCache struct {
	mu          sync.RWMutex
	ttl         time.Duration
	snapshot    *Snapshot
	assembledAt time.Time
	invalidated bool
}

// NewPriceCache 创建空缓存
func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{ttl: ttl}
}

// IsStale 从未组装、被显式失效或超过 TTL 时返回 true
func (c *PriceCache) IsStale(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil || c.invalidated {
		return true
	}
	return now.Sub(c.assembledAt) > c.ttl
}

// Get 返回缓存的快照（即使已过期），从未组装时 ok 为 false
func (c *PriceCache) Get() (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil {
		return Snapshot{}, false
	}
	return c.snapshot.Clone(), true
}

// Set 替换快照与组装时间
func (c *PriceCache) Set(snapshot Snapshot, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := snapshot.Clone()
	c.snapshot = &s
	c.assembledAt = now
	c.invalidated = false
}

// Invalidate 强制下一次 IsStale 返回 true；保留快照用于刷新失败时的降级
func (c *PriceCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = true
}

// AssembledAt 最近一次组装时间
func (c *PriceCache) AssembledAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.assembledAt
}
