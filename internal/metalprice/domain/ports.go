package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource 直接行情源
type PriceSource interface {
	// FetchDirectPrice 获取金属的基础币种价格；所有失败都归一为 ErrSourceUnavailable
	FetchDirectPrice(ctx context.Context, metal Metal) (decimal.Decimal, error)
}

// PriceParser 从外部原始响应中提取价格
type PriceParser interface {
	Parse(body []byte) (decimal.Decimal, error)
}

// DeltaStore 上一次价格的持久化存储，跨进程重启保留
type DeltaStore interface {
	// Load 读取上一次价格；不存在时返回空映射
	Load(ctx context.Context) (map[Metal]decimal.Decimal, error)
	// Save 整体替换上一次价格
	Save(ctx context.Context, prices map[Metal]decimal.Decimal) error
	// Reset 清除全部历史
	Reset(ctx context.Context) error
}

// SnapshotMirror 将快照镜像到后备数据表，供其他客户端读取
type SnapshotMirror interface {
	Mirror(ctx context.Context, snapshot Snapshot) error
}

// EventPublisher 快照事件发布者
type EventPublisher interface {
	PublishSnapshot(ctx context.Context, event SnapshotRefreshedEvent) error
}
