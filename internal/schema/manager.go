package schema

import (
	"context"
	"fmt"
	"regexp"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/pluginstack/migrate/internal/utils"
)

// identifierPattern is the shape a schema name must have before it is
// interpolated into DDL. CREATE SCHEMA cannot take a bind parameter, so the
// name is validated here and then quoted.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// systemSchemas are namespaces excluded from plugin schema listings
var systemSchemas = []string{"public", "pg_catalog", "information_schema", "migrations", "pg_toast"}

// NamespaceManager provisions and introspects per-plugin database schemas
type NamespaceManager struct {
	db       *gorm.DB
	resolver *Resolver
	logger   zerolog.Logger
}

// NewNamespaceManager creates a new NamespaceManager
func NewNamespaceManager(db *gorm.DB, resolver *Resolver, logger zerolog.Logger) *NamespaceManager {
	if resolver == nil {
		resolver = NewResolver("")
	}
	return &NamespaceManager{
		db:       db,
		resolver: resolver,
		logger:   logger,
	}
}

// Resolver returns the manager's schema name resolver
func (m *NamespaceManager) Resolver() *Resolver {
	return m.resolver
}

// EnsureSchemaExists creates the schema if it is absent. The public schema
// always exists, so it is a no-op. Names failing the identifier pattern are
// rejected before any SQL is issued.
func (m *NamespaceManager) EnsureSchemaExists(ctx context.Context, name string) error {
	if name == "public" {
		return nil
	}
	if !identifierPattern.MatchString(name) {
		return utils.WrapValidationError("schema", fmt.Sprintf("invalid schema name %q", name))
	}

	// IF NOT EXISTS makes this idempotent and safe under concurrent callers.
	ddl := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pq.QuoteIdentifier(name))
	if err := m.db.WithContext(ctx).Exec(ddl).Error; err != nil {
		return fmt.Errorf("failed to create schema %s: %w", name, err)
	}

	m.logger.Debug().Str("schema", name).Msg("Ensured schema exists")
	return nil
}

// EnsurePluginSchema resolves a plugin identifier to its schema name and
// guarantees the schema exists, returning the name.
func (m *NamespaceManager) EnsurePluginSchema(ctx context.Context, pluginIdentifier string) (string, error) {
	name := m.resolver.DeriveSchemaName(pluginIdentifier)
	if err := m.EnsureSchemaExists(ctx, name); err != nil {
		return "", err
	}
	return name, nil
}

// SchemaExists reports whether a schema with the given name exists
func (m *NamespaceManager) SchemaExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := m.db.WithContext(ctx).
		Raw("SELECT EXISTS(SELECT 1 FROM information_schema.schemata WHERE schema_name = ?)", name).
		Scan(&exists).Error
	if err != nil {
		return false, fmt.Errorf("failed to check schema %s: %w", name, err)
	}
	return exists, nil
}

// ListPluginSchemas returns all plugin-owned schemas, name-ordered. System
// and reserved namespaces are excluded.
func (m *NamespaceManager) ListPluginSchemas(ctx context.Context) ([]string, error) {
	var names []string
	err := m.db.WithContext(ctx).
		Raw(`SELECT schema_name FROM information_schema.schemata
			WHERE schema_name NOT IN (?) AND schema_name NOT LIKE 'pg\_%'
			ORDER BY schema_name`, systemSchemas).
		Scan(&names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list plugin schemas: %w", err)
	}
	return names, nil
}
