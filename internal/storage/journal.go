package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pluginstack/migrate/internal/models"
	"github.com/pluginstack/migrate/internal/utils"
)

// JournalStore persists the ordered ledger of applied migration tags per
// plugin. The journal row is keyed by plugin name; its entries column holds a
// JSON array mirroring the plugin's snapshot sequence.
type JournalStore struct {
	db *gorm.DB
}

// NewJournalStore creates a new JournalStore
func NewJournalStore(db *gorm.DB) *JournalStore {
	return &JournalStore{db: db}
}

// WithTx returns a store bound to the given transaction handle
func (s *JournalStore) WithTx(tx *gorm.DB) *JournalStore {
	return &JournalStore{db: tx}
}

// JournalState is a decoded journal row
type JournalState struct {
	PluginName string
	Version    string
	Dialect    string
	Entries    []models.JournalEntry
}

// Load returns the decoded journal for a plugin, or nil when none exists
func (s *JournalStore) Load(ctx context.Context, plugin string) (*JournalState, error) {
	var row models.Journal
	err := s.db.WithContext(ctx).
		Where("plugin_name = ?", plugin).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load journal for plugin %s: %w", plugin, err)
	}

	entries, err := row.DecodeEntries()
	if err != nil {
		return nil, utils.WrapSerializationError("entries", err)
	}

	return &JournalState{
		PluginName: row.PluginName,
		Version:    row.Version,
		Dialect:    row.Dialect,
		Entries:    entries,
	}, nil
}

// Save upserts the journal row for a plugin
func (s *JournalStore) Save(ctx context.Context, plugin, version, dialect string, entries []models.JournalEntry) error {
	row := models.Journal{
		PluginName: plugin,
		Version:    version,
		Dialect:    dialect,
	}
	if err := row.EncodeEntries(entries); err != nil {
		return utils.WrapSerializationError("entries", err)
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "plugin_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "dialect", "entries"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save journal for plugin %s: %w", plugin, err)
	}
	return nil
}

// Append loads the plugin's journal, creating it with default metadata when
// absent, appends one entry and re-saves the row.
func (s *JournalStore) Append(ctx context.Context, plugin string, idx int, tag string, breakpoints bool) error {
	state, err := s.Load(ctx, plugin)
	if err != nil {
		return err
	}
	if state == nil {
		state = &JournalState{
			PluginName: plugin,
			Version:    models.DefaultJournalVersion,
			Dialect:    models.DefaultJournalDialect,
		}
	}

	state.Entries = append(state.Entries, models.JournalEntry{
		Idx:         idx,
		Version:     tag,
		Breakpoints: breakpoints,
	})

	return s.Save(ctx, plugin, state.Version, state.Dialect, state.Entries)
}
