package domain

import "time"

const SnapshotRefreshedEventType = "metalprice.snapshot.refreshed"

// SnapshotRefreshedEvent 快照刷新事件
type SnapshotRefreshedEvent struct {
	EventID     string             `json:"event_id"`
	EventType   string             `json:"event_type"`
	Currency    string             `json:"currency"`
	Prices      []PriceChangedItem `json:"prices"`
	AssembledAt time.Time          `json:"assembled_at"`
}

// PriceChangedItem 事件中的单个金属价格
type PriceChangedItem struct {
	Metal         string `json:"metal"`
	Price         string `json:"price"`
	Change        string `json:"change"`
	ChangePercent string `json:"change_percent"`
}

// NewSnapshotRefreshedEvent 由快照构建事件
func NewSnapshotRefreshedEvent(eventID, currency string, s Snapshot) SnapshotRefreshedEvent {
	items := make([]PriceChangedItem, 0, len(s.Records))
	for _, r := range s.Records {
		items = append(items, PriceChangedItem{
			Metal:         r.Metal.String(),
			Price:         r.Price.StringFixed(2),
			Change:        r.Change.StringFixed(2),
			ChangePercent: r.ChangePercent.StringFixed(2),
		})
	}
	return SnapshotRefreshedEvent{
		EventID:     eventID,
		EventType:   SnapshotRefreshedEventType,
		Currency:    currency,
		Prices:      items,
		AssembledAt: s.AssembledAt,
	}
}
