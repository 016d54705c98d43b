package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pluginstack/migrate/internal/models"
)

// SnapshotStore persists one full schema snapshot per (plugin, generation)
type SnapshotStore struct {
	db *gorm.DB
}

// NewSnapshotStore creates a new SnapshotStore
func NewSnapshotStore(db *gorm.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

// WithTx returns a store bound to the given transaction handle
func (s *SnapshotStore) WithTx(tx *gorm.DB) *SnapshotStore {
	return &SnapshotStore{db: tx}
}

// Save upserts a snapshot keyed by (plugin, idx). A retried call reusing a
// reserved idx overwrites the snapshot body and timestamp.
func (s *SnapshotStore) Save(ctx context.Context, plugin string, idx int, snapshot json.RawMessage, createdAt int64) error {
	row := models.Snapshot{
		PluginName: plugin,
		Idx:        idx,
		Snapshot:   snapshot,
		CreatedAt:  createdAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "plugin_name"}, {Name: "idx"}},
		DoUpdates: clause.AssignmentColumns([]string{"snapshot", "created_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save snapshot %d for plugin %s: %w", idx, plugin, err)
	}
	return nil
}

// Latest returns the snapshot with the highest idx for a plugin, or nil when
// the plugin has none.
func (s *SnapshotStore) Latest(ctx context.Context, plugin string) (json.RawMessage, error) {
	var row models.Snapshot
	err := s.db.WithContext(ctx).
		Where("plugin_name = ?", plugin).
		Order("idx DESC").
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest snapshot for plugin %s: %w", plugin, err)
	}
	return row.Snapshot, nil
}

// All returns every snapshot body for a plugin, ascending by idx
func (s *SnapshotStore) All(ctx context.Context, plugin string) ([]json.RawMessage, error) {
	var rows []models.Snapshot
	err := s.db.WithContext(ctx).
		Where("plugin_name = ?", plugin).
		Order("idx ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshots for plugin %s: %w", plugin, err)
	}
	snapshots := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, row.Snapshot)
	}
	return snapshots, nil
}

// Count returns the number of snapshots recorded for a plugin
func (s *SnapshotStore) Count(ctx context.Context, plugin string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Where("plugin_name = ?", plugin).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots for plugin %s: %w", plugin, err)
	}
	return count, nil
}

// NextIdx returns the next free generation index for a plugin: one past the
// current maximum, or 0 when no snapshots exist.
func (s *SnapshotStore) NextIdx(ctx context.Context, plugin string) (int, error) {
	var idx int
	err := s.db.WithContext(ctx).
		Model(&models.Snapshot{}).
		Select("COALESCE(MAX(idx), -1) + 1").
		Where("plugin_name = ?", plugin).
		Scan(&idx).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute next snapshot idx for plugin %s: %w", plugin, err)
	}
	return idx, nil
}
