package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/pluginstack/migrate/internal/models"
	"github.com/pluginstack/migrate/internal/storage"
	"github.com/pluginstack/migrate/internal/utils"
)

// MigrationService records forward migrations for plugins: one ledger row,
// one schema snapshot and one journal entry per call, all inside a single
// database transaction.
type MigrationService struct {
	db        *gorm.DB
	tracker   storage.Tracker
	snapshots *storage.SnapshotStore
	journal   *storage.JournalStore
	logger    zerolog.Logger

	// one mutex per plugin; record calls for the same plugin must be
	// serialized so two callers never reserve the same idx
	locks sync.Map
}

// NewMigrationService creates a new MigrationService
func NewMigrationService(db *gorm.DB, tracker storage.Tracker, logger zerolog.Logger) *MigrationService {
	return &MigrationService{
		db:        db,
		tracker:   tracker,
		snapshots: storage.NewSnapshotStore(db),
		journal:   storage.NewJournalStore(db),
		logger:    logger,
	}
}

// LastMigration describes the most recently applied migration in a status
// response
type LastMigration struct {
	ID        uint   `json:"id"`
	Hash      string `json:"hash"`
	CreatedAt int64  `json:"createdAt"`
}

// Status is the migration state of one plugin
type Status struct {
	HasRun         bool            `json:"hasRun"`
	LastMigration  *LastMigration  `json:"lastMigration,omitempty"`
	LatestSnapshot json.RawMessage `json:"latestSnapshot,omitempty"`
	Snapshots      int64           `json:"snapshots"`
}

// Initialize creates the migration tracking tables. Idempotent; a failure
// here is fatal to startup.
func (s *MigrationService) Initialize(ctx context.Context) error {
	return s.tracker.EnsureTables(ctx)
}

// GetStatus returns the migration state of a plugin. Read-only; a plugin
// with no recorded migrations reports hasRun=false.
func (s *MigrationService) GetStatus(ctx context.Context, plugin string) (*Status, error) {
	status := &Status{}

	record, err := s.tracker.LastMigration(ctx, plugin)
	if err != nil && !utils.IsNotFoundError(err) {
		return nil, err
	}
	if record != nil {
		status.HasRun = true
		status.LastMigration = &LastMigration{
			ID:        record.ID,
			Hash:      record.Hash,
			CreatedAt: record.CreatedAt,
		}
	}

	latest, err := s.snapshots.Latest(ctx, plugin)
	if err != nil {
		return nil, err
	}
	status.LatestSnapshot = latest

	count, err := s.snapshots.Count(ctx, plugin)
	if err != nil {
		return nil, err
	}
	status.Snapshots = count

	return status, nil
}

// RecordMigration durably records one forward migration for a plugin. The
// ledger row, the snapshot and the journal entry are written in one
// transaction around a single authoritative generation index; any failure
// rolls back all three writes. The whole call must be retried on failure,
// never resumed.
func (s *MigrationService) RecordMigration(ctx context.Context, plugin, hash string, snapshot json.RawMessage) error {
	if plugin == "" {
		return utils.RequiredFieldError("plugin")
	}
	if hash == "" {
		return utils.RequiredFieldError("hash")
	}

	mu := s.pluginLock(plugin)
	mu.Lock()
	defer mu.Unlock()

	createdAt := time.Now().UTC().UnixMilli()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		idx, err := s.snapshots.WithTx(tx).NextIdx(ctx, plugin)
		if err != nil {
			return utils.WrapTransactionError(plugin, "allocate-index", err)
		}

		record := models.MigrationRecord{
			PluginName: plugin,
			Hash:       hash,
			CreatedAt:  createdAt,
		}
		if err := tx.Create(&record).Error; err != nil {
			return utils.WrapTransactionError(plugin, "insert-migration", err)
		}

		if err := s.snapshots.WithTx(tx).Save(ctx, plugin, idx, snapshot, createdAt); err != nil {
			return utils.WrapTransactionError(plugin, "save-snapshot", err)
		}

		tag := versionTag(idx, hash)
		if err := s.journal.WithTx(tx).Append(ctx, plugin, idx, tag, true); err != nil {
			return utils.WrapTransactionError(plugin, "update-journal", err)
		}

		s.logger.Info().
			Str("plugin", plugin).
			Int("idx", idx).
			Str("tag", tag).
			Msg("Recorded migration")
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("plugin", plugin).Msg("Failed to record migration")
		return err
	}
	return nil
}

// GetLatestSnapshot returns the plugin's most recent schema snapshot, or nil
// when none has been recorded
func (s *MigrationService) GetLatestSnapshot(ctx context.Context, plugin string) (json.RawMessage, error) {
	return s.snapshots.Latest(ctx, plugin)
}

// pluginLock returns the mutex serializing writes for one plugin
func (s *MigrationService) pluginLock(plugin string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(plugin, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// versionTag builds a journal tag: the zero-padded generation index joined to
// the first 8 hex characters of the hash. Hashes shorter than 8 characters
// are used whole.
func versionTag(idx int, hash string) string {
	prefix := hash
	if len(hash) > 8 {
		prefix = hash[:8]
	}
	return fmt.Sprintf("%04d_%s", idx, prefix)
}
