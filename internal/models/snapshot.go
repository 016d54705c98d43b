package models

import (
	"encoding/json"
)

// Snapshot is a full serialized schema state for a plugin at generation idx.
// (plugin_name, idx) is unique; idx is a zero-based, per-plugin monotonic
// sequence with no gaps.
type Snapshot struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	PluginName string          `gorm:"uniqueIndex:uq_snapshots_plugin_idx;not null" json:"plugin_name"`
	Idx        int             `gorm:"column:idx;uniqueIndex:uq_snapshots_plugin_idx;not null" json:"idx"`
	Snapshot   json.RawMessage `gorm:"type:jsonb;not null" json:"snapshot"`
	CreatedAt  int64           `gorm:"not null" json:"created_at"` // unix milliseconds
}

// TableName places snapshots in the shared migrations schema
func (Snapshot) TableName() string {
	return "migrations._snapshots"
}
