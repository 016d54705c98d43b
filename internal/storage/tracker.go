package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/pluginstack/migrate/internal/models"
	"github.com/pluginstack/migrate/internal/utils"
)

// Tracker is the contract the migration service needs from the table that
// records applied migrations. Kept minimal so a test double can stand in.
type Tracker interface {
	// EnsureTables creates the tracker's backing tables if absent.
	// Idempotent; called on every startup.
	EnsureTables(ctx context.Context) error

	// LastMigration returns the most recently applied migration for a
	// plugin, or a NotFoundError when the plugin has none.
	LastMigration(ctx context.Context, plugin string) (*models.MigrationRecord, error)
}

// trackerDDL creates the migrations metadata schema and its three tables.
// Every statement is IF NOT EXISTS so startup is idempotent.
var trackerDDL = []string{
	`CREATE SCHEMA IF NOT EXISTS migrations`,
	`CREATE TABLE IF NOT EXISTS migrations._migrations (
		id BIGSERIAL PRIMARY KEY,
		plugin_name TEXT NOT NULL,
		hash TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_migrations_plugin_name
		ON migrations._migrations (plugin_name)`,
	`CREATE TABLE IF NOT EXISTS migrations._snapshots (
		id BIGSERIAL PRIMARY KEY,
		plugin_name TEXT NOT NULL,
		idx INTEGER NOT NULL,
		snapshot JSONB NOT NULL,
		created_at BIGINT NOT NULL,
		CONSTRAINT uq_snapshots_plugin_idx UNIQUE (plugin_name, idx)
	)`,
	`CREATE TABLE IF NOT EXISTS migrations._journal (
		plugin_name TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		dialect TEXT NOT NULL,
		entries JSONB NOT NULL
	)`,
}

// GormTracker is the PostgreSQL-backed Tracker
type GormTracker struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewGormTracker creates a new GormTracker
func NewGormTracker(db *gorm.DB, logger zerolog.Logger) *GormTracker {
	return &GormTracker{
		db:     db,
		logger: logger,
	}
}

// EnsureTables creates the migrations schema and tracking tables if absent
func (t *GormTracker) EnsureTables(ctx context.Context) error {
	for _, stmt := range trackerDDL {
		if err := t.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to ensure migration tables: %w", err)
		}
	}
	t.logger.Debug().Msg("Migration tracking tables ensured")
	return nil
}

// LastMigration returns the most recent migration row for a plugin
func (t *GormTracker) LastMigration(ctx context.Context, plugin string) (*models.MigrationRecord, error) {
	var record models.MigrationRecord
	err := t.db.WithContext(ctx).
		Where("plugin_name = ?", plugin).
		Order("created_at DESC, id DESC").
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.WrapNotFoundError("migration", plugin)
		}
		return nil, fmt.Errorf("failed to get last migration for plugin %s: %w", plugin, err)
	}
	return &record, nil
}
