package application

import (
	"time"

	"github.com/wyfcoding/metalprice/internal/metalprice/domain"
)

// PriceRecordDTO 单个金属的对外表示，金额保留两位小数
type PriceRecordDTO struct {
	Metal         string    `json:"metal"`
	Price         string    `json:"price"`
	Change        string    `json:"change"`
	ChangePercent string    `json:"change_percent"`
	LastUpdated   time.Time `json:"last_updated"`
}

// SnapshotDTO 快照的对外表示
type SnapshotDTO struct {
	Records     []PriceRecordDTO `json:"records"`
	Currency    string           `json:"currency"`
	AssembledAt *time.Time       `json:"assembled_at,omitempty"`
	// Stale 快照已超过有效期（外部源不可用时返回的旧数据）
	Stale bool `json:"stale"`
}

func ToPriceRecordDTO(r domain.PriceRecord) PriceRecordDTO {
	return PriceRecordDTO{
		Metal:         r.Metal.String(),
		Price:         r.Price.StringFixed(2),
		Change:        r.Change.StringFixed(2),
		ChangePercent: r.ChangePercent.StringFixed(2),
		LastUpdated:   r.LastUpdated,
	}
}

// ToSnapshotDTO 转换快照，空快照的 Records 为空数组
func (s *PriceService) ToSnapshotDTO(snapshot domain.Snapshot) *SnapshotDTO {
	dto := &SnapshotDTO{
		Records:  make([]PriceRecordDTO, 0, len(snapshot.Records)),
		Currency: s.currency,
	}
	for _, r := range snapshot.Records {
		dto.Records = append(dto.Records, ToPriceRecordDTO(r))
	}
	if !snapshot.IsEmpty() {
		at := snapshot.AssembledAt
		dto.AssembledAt = &at
		dto.Stale = s.now().Sub(at) > s.ttl
	}
	return dto
}
