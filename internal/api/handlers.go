package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pluginstack/migrate/internal/utils"
)

// recordMigrationRequest is the body of POST /api/v1/migrations. The plugin
// identifier travels in the body because plugin names contain @ and /.
type recordMigrationRequest struct {
	Plugin   string          `json:"plugin" binding:"required"`
	Hash     string          `json:"hash" binding:"required"`
	Snapshot json.RawMessage `json:"snapshot" binding:"required"`
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.db.Health(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) statusHandler(c *gin.Context) {
	plugin := c.Query("plugin")
	if plugin == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plugin query parameter is required"})
		return
	}

	status, err := s.migrations.GetStatus(c.Request.Context(), plugin)
	if err != nil {
		s.logger.Error().Err(err).Str("plugin", plugin).Msg("Failed to get migration status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get migration status"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) latestSnapshotHandler(c *gin.Context) {
	plugin := c.Query("plugin")
	if plugin == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plugin query parameter is required"})
		return
	}

	snapshot, err := s.migrations.GetLatestSnapshot(c.Request.Context(), plugin)
	if err != nil {
		s.logger.Error().Err(err).Str("plugin", plugin).Msg("Failed to get latest snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get latest snapshot"})
		return
	}
	if snapshot == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No snapshot recorded for plugin"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plugin":   plugin,
		"snapshot": snapshot,
	})
}

func (s *Server) recordMigrationHandler(c *gin.Context) {
	var req recordMigrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	ctx := c.Request.Context()

	// The plugin's namespace must exist before any of its DDL runs
	schemaName, err := s.namespaces.EnsurePluginSchema(ctx, req.Plugin)
	if err != nil {
		if utils.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error().Err(err).Str("plugin", req.Plugin).Msg("Failed to ensure plugin schema")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to ensure plugin schema"})
		return
	}

	if err := s.migrations.RecordMigration(ctx, req.Plugin, req.Hash, req.Snapshot); err != nil {
		if utils.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error().Err(err).Str("plugin", req.Plugin).Msg("Failed to record migration")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record migration"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"plugin": req.Plugin,
		"schema": schemaName,
		"hash":   req.Hash,
	})
}

func (s *Server) listSchemasHandler(c *gin.Context) {
	schemas, err := s.namespaces.ListPluginSchemas(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list plugin schemas")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list plugin schemas"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"schemas": schemas,
		"count":   len(schemas),
	})
}
