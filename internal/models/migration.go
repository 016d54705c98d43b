package models

// MigrationRecord is one applied migration for a plugin. Rows are append-only:
// they are written once by the migration service and never updated or deleted.
// The most recent row (max created_at, then max id) is the plugin's current
// migration.
type MigrationRecord struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	PluginName string `gorm:"index;not null" json:"plugin_name"`
	Hash       string `gorm:"not null" json:"hash"`
	CreatedAt  int64  `gorm:"not null" json:"created_at"` // unix milliseconds
}

// TableName places the ledger in the shared migrations schema
func (MigrationRecord) TableName() string {
	return "migrations._migrations"
}
