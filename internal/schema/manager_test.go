package schema

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/pluginstack/migrate/internal/utils"
)

// The manager must reject bad names and short-circuit on public before any
// SQL is issued, so these paths are exercised without a database.
func TestEnsureSchemaExistsValidation(t *testing.T) {
	manager := NewNamespaceManager(nil, nil, zerolog.Nop())
	ctx := context.Background()

	t.Run("Public schema is a no-op", func(t *testing.T) {
		assert.NoError(t, manager.EnsureSchemaExists(ctx, "public"))
	})

	t.Run("Names with quotes are rejected", func(t *testing.T) {
		err := manager.EnsureSchemaExists(ctx, `bad"name`)
		assert.Error(t, err)
		assert.True(t, utils.IsValidationError(err))
	})

	t.Run("Names with semicolons are rejected", func(t *testing.T) {
		err := manager.EnsureSchemaExists(ctx, "x; DROP SCHEMA public")
		assert.Error(t, err)
		assert.True(t, utils.IsValidationError(err))
	})

	t.Run("Empty name is rejected", func(t *testing.T) {
		err := manager.EnsureSchemaExists(ctx, "")
		assert.Error(t, err)
		assert.True(t, utils.IsValidationError(err))
	})

	t.Run("Names with dots are rejected", func(t *testing.T) {
		err := manager.EnsureSchemaExists(ctx, "a.b")
		assert.Error(t, err)
		assert.True(t, utils.IsValidationError(err))
	})
}

func TestManagerUsesDefaultResolver(t *testing.T) {
	manager := NewNamespaceManager(nil, nil, zerolog.Nop())
	assert.Equal(t, "public", manager.Resolver().DeriveSchemaName(DefaultCorePlugin))
}
