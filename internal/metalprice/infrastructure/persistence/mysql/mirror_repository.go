package mysql

import (
	"context"
	"fmt"

	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
	"github.com/wyfcoding/metalprice/pkg/db"
	"gorm.io/gorm"
)

var mirrorUpdateColumns = []string{
	"price", "change", "change_percent", "currency", "last_updated", "assembled_at", "updated_at",
}

// MirrorRepository 快照镜像仓储
type MirrorRepository struct {
	db       *gorm.DB
	currency string
}

// NewMirrorRepository 创建镜像仓储
func NewMirrorRepository(gdb *gorm.DB, currency string) *MirrorRepository {
	return &MirrorRepository{db: gdb, currency: currency}
}

// AutoMigrate 创建或更新镜像表结构
func (r *MirrorRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&MetalPriceModel{})
}

// Mirror 按金属 upsert 整个快照
func (r *MirrorRepository) Mirror(ctx context.Context, snapshot domain.Snapshot) error {
	if snapshot.IsEmpty() {
		return nil
	}
	models := toModels(snapshot, r.currency)
	if err := db.UpsertWithConflict(ctx, r.db, &models, []string{"metal"}, mirrorUpdateColumns); err != nil {
		return fmt.Errorf("%w: mirror snapshot: %v", domain.ErrPersistence, err)
	}
	return nil
}
