package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pluginstack/migrate/internal/models"
	"github.com/pluginstack/migrate/internal/utils"
)

// setupTestDB creates an in-memory SQLite database for testing. The tracking
// tables live in the migrations schema, which SQLite provides via an attached
// database; the tables are created manually with SQLite-compatible DDL.
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps the in-memory database and its attached
	// migrations schema visible to every operation
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.Exec("ATTACH DATABASE ':memory:' AS migrations").Error
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE migrations._migrations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plugin_name TEXT NOT NULL,
			hash TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE migrations._snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			plugin_name TEXT NOT NULL,
			idx INTEGER NOT NULL,
			snapshot TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			UNIQUE (plugin_name, idx)
		)`,
		`CREATE TABLE migrations._journal (
			plugin_name TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			dialect TEXT NOT NULL,
			entries TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}

	return db
}

func TestSnapshotStore(t *testing.T) {
	ctx := context.Background()

	t.Run("NextIdx starts at zero", func(t *testing.T) {
		store := NewSnapshotStore(setupTestDB(t))

		idx, err := store.NextIdx(ctx, "demo")
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
	})

	t.Run("NextIdx is max plus one", func(t *testing.T) {
		store := NewSnapshotStore(setupTestDB(t))

		require.NoError(t, store.Save(ctx, "demo", 0, json.RawMessage(`{"v":0}`), 100))
		require.NoError(t, store.Save(ctx, "demo", 1, json.RawMessage(`{"v":1}`), 200))

		idx, err := store.NextIdx(ctx, "demo")
		require.NoError(t, err)
		assert.Equal(t, 2, idx)

		// Other plugins are independent
		idx, err = store.NextIdx(ctx, "other")
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
	})

	t.Run("Latest returns highest idx", func(t *testing.T) {
		store := NewSnapshotStore(setupTestDB(t))

		require.NoError(t, store.Save(ctx, "demo", 0, json.RawMessage(`{"v":0}`), 100))
		require.NoError(t, store.Save(ctx, "demo", 1, json.RawMessage(`{"v":1}`), 200))

		latest, err := store.Latest(ctx, "demo")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":1}`, string(latest))
	})

	t.Run("Latest returns nil when plugin has no snapshots", func(t *testing.T) {
		store := NewSnapshotStore(setupTestDB(t))

		latest, err := store.Latest(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, latest)
	})

	t.Run("Save upserts on conflicting idx", func(t *testing.T) {
		store := NewSnapshotStore(setupTestDB(t))

		require.NoError(t, store.Save(ctx, "demo", 0, json.RawMessage(`{"v":"first"}`), 100))
		require.NoError(t, store.Save(ctx, "demo", 0, json.RawMessage(`{"v":"second"}`), 200))

		latest, err := store.Latest(ctx, "demo")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":"second"}`, string(latest))

		count, err := store.Count(ctx, "demo")
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})

	t.Run("All returns snapshots ascending by idx", func(t *testing.T) {
		store := NewSnapshotStore(setupTestDB(t))

		require.NoError(t, store.Save(ctx, "demo", 1, json.RawMessage(`{"v":1}`), 200))
		require.NoError(t, store.Save(ctx, "demo", 0, json.RawMessage(`{"v":0}`), 100))
		require.NoError(t, store.Save(ctx, "demo", 2, json.RawMessage(`{"v":2}`), 300))

		all, err := store.All(ctx, "demo")
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i, snapshot := range all {
			var decoded map[string]int
			require.NoError(t, json.Unmarshal(snapshot, &decoded))
			assert.Equal(t, i, decoded["v"])
		}
	})
}

func TestJournalStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Load returns nil for unknown plugin", func(t *testing.T) {
		store := NewJournalStore(setupTestDB(t))

		state, err := store.Load(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("Append creates journal with defaults", func(t *testing.T) {
		store := NewJournalStore(setupTestDB(t))

		require.NoError(t, store.Append(ctx, "demo", 0, "0000_abcd1234", true))

		state, err := store.Load(ctx, "demo")
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, models.DefaultJournalVersion, state.Version)
		assert.Equal(t, models.DefaultJournalDialect, state.Dialect)
		require.Len(t, state.Entries, 1)
		assert.Equal(t, 0, state.Entries[0].Idx)
		assert.Equal(t, "0000_abcd1234", state.Entries[0].Version)
		assert.True(t, state.Entries[0].Breakpoints)
	})

	t.Run("Append preserves existing entries and order", func(t *testing.T) {
		store := NewJournalStore(setupTestDB(t))

		require.NoError(t, store.Append(ctx, "demo", 0, "0000_aaaaaaaa", true))
		require.NoError(t, store.Append(ctx, "demo", 1, "0001_bbbbbbbb", true))
		require.NoError(t, store.Append(ctx, "demo", 2, "0002_cccccccc", true))

		state, err := store.Load(ctx, "demo")
		require.NoError(t, err)
		require.NotNil(t, state)
		require.Len(t, state.Entries, 3)
		for i, entry := range state.Entries {
			assert.Equal(t, i, entry.Idx)
		}
	})

	t.Run("Save upserts journal metadata", func(t *testing.T) {
		store := NewJournalStore(setupTestDB(t))

		entries := []models.JournalEntry{{Idx: 0, Version: "0000_aaaaaaaa", Breakpoints: true}}
		require.NoError(t, store.Save(ctx, "demo", "0.0.1", "postgresql", entries))
		require.NoError(t, store.Save(ctx, "demo", "0.0.2", "postgresql", entries))

		state, err := store.Load(ctx, "demo")
		require.NoError(t, err)
		require.NotNil(t, state)
		assert.Equal(t, "0.0.2", state.Version)
		require.Len(t, state.Entries, 1)
	})

	t.Run("Load surfaces malformed entries as serialization error", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewJournalStore(db)

		err := db.Exec(
			`INSERT INTO migrations._journal (plugin_name, version, dialect, entries) VALUES (?, ?, ?, ?)`,
			"demo", "0.0.1", "postgresql", "{not json",
		).Error
		require.NoError(t, err)

		_, err = store.Load(ctx, "demo")
		assert.Error(t, err)
		assert.True(t, utils.IsSerializationError(err))
	})

	t.Run("Journals are partitioned by plugin", func(t *testing.T) {
		store := NewJournalStore(setupTestDB(t))

		require.NoError(t, store.Append(ctx, "alpha", 0, "0000_aaaaaaaa", true))
		require.NoError(t, store.Append(ctx, "beta", 0, "0000_bbbbbbbb", true))

		alpha, err := store.Load(ctx, "alpha")
		require.NoError(t, err)
		require.Len(t, alpha.Entries, 1)
		assert.Equal(t, "0000_aaaaaaaa", alpha.Entries[0].Version)

		beta, err := store.Load(ctx, "beta")
		require.NoError(t, err)
		require.Len(t, beta.Entries, 1)
		assert.Equal(t, "0000_bbbbbbbb", beta.Entries[0].Version)
	})
}

func TestGormTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("LastMigration returns not found for unknown plugin", func(t *testing.T) {
		tracker := NewGormTracker(setupTestDB(t), zerolog.Nop())

		_, err := tracker.LastMigration(ctx, "missing")
		assert.Error(t, err)
		assert.True(t, utils.IsNotFoundError(err))
	})

	t.Run("LastMigration returns most recent row", func(t *testing.T) {
		db := setupTestDB(t)
		tracker := NewGormTracker(db, zerolog.Nop())

		rows := []models.MigrationRecord{
			{PluginName: "demo", Hash: "hash-one", CreatedAt: 100},
			{PluginName: "demo", Hash: "hash-two", CreatedAt: 200},
			{PluginName: "other", Hash: "hash-other", CreatedAt: 300},
		}
		for i := range rows {
			require.NoError(t, db.Create(&rows[i]).Error)
		}

		record, err := tracker.LastMigration(ctx, "demo")
		require.NoError(t, err)
		assert.Equal(t, "hash-two", record.Hash)
		assert.EqualValues(t, 200, record.CreatedAt)
	})

	t.Run("Ties on created_at break on id", func(t *testing.T) {
		db := setupTestDB(t)
		tracker := NewGormTracker(db, zerolog.Nop())

		first := models.MigrationRecord{PluginName: "demo", Hash: "hash-one", CreatedAt: 100}
		second := models.MigrationRecord{PluginName: "demo", Hash: "hash-two", CreatedAt: 100}
		require.NoError(t, db.Create(&first).Error)
		require.NoError(t, db.Create(&second).Error)

		record, err := tracker.LastMigration(ctx, "demo")
		require.NoError(t, err)
		assert.Equal(t, "hash-two", record.Hash)
	})
}
