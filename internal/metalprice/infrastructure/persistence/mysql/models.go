// Package mysql 将最新快照镜像到关系型数据表，供只读数据库的客户端查询
package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
)

// MetalPriceModel 最新行情镜像表映射，每种金属一行
type MetalPriceModel struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at"`
	Metal         string          `gorm:"column:metal;type:varchar(16);uniqueIndex;not null;comment:金属"`
	Price         decimal.Decimal `gorm:"column:price;type:decimal(32,18);not null"`
	Change        decimal.Decimal `gorm:"column:change;type:decimal(32,18);not null"`
	ChangePercent decimal.Decimal `gorm:"column:change_percent;type:decimal(32,18);not null"`
	Currency      string          `gorm:"column:currency;type:varchar(8);not null"`
	LastUpdated   time.Time       `gorm:"column:last_updated;not null"`
	AssembledAt   time.Time       `gorm:"column:assembled_at;index;not null"`
}

func (MetalPriceModel) TableName() string { return "metal_prices" }

func toModels(s domain.Snapshot, currency string) []*MetalPriceModel {
	models := make([]*MetalPriceModel, 0, len(s.Records))
	for _, r := range s.Records {
		models = append(models, &MetalPriceModel{
			Metal:         r.Metal.String(),
			Price:         r.Price,
			Change:        r.Change,
			ChangePercent: r.ChangePercent,
			Currency:      currency,
			LastUpdated:   r.LastUpdated,
			AssembledAt:   s.AssembledAt,
		})
	}
	return models
}
