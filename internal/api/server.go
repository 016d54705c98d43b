package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pluginstack/migrate/internal/config"
	"github.com/pluginstack/migrate/internal/database"
	"github.com/pluginstack/migrate/internal/schema"
	"github.com/pluginstack/migrate/internal/services"
)

// Server exposes the migration subsystem over HTTP: status and snapshot
// reads, migration recording, and schema listing.
type Server struct {
	router     *gin.Engine
	config     *config.Config
	db         *database.Database
	migrations *services.MigrationService
	namespaces *schema.NamespaceManager
	logger     zerolog.Logger
	httpServer *http.Server
}

// NewServer creates a new Server
func NewServer(cfg *config.Config, db *database.Database, migrations *services.MigrationService, namespaces *schema.NamespaceManager, logger zerolog.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	if len(cfg.HTTP.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.AllowOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"}
	corsConfig.ExposeHeaders = []string{"Content-Length", "Content-Type"}
	corsConfig.MaxAge = 12 * time.Hour

	router.Use(cors.New(corsConfig))

	server := &Server{
		router:     router,
		config:     cfg,
		db:         db,
		migrations: migrations,
		namespaces: namespaces,
		logger:     logger,
	}

	server.setupRoutes()

	return server, nil
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.healthHandler)

	// API v1
	v1 := s.router.Group("/api/v1")
	v1.Use(s.authMiddleware())
	{
		migrations := v1.Group("/migrations")
		{
			migrations.GET("/status", s.statusHandler)
			migrations.GET("/snapshot", s.latestSnapshotHandler)
			migrations.POST("", s.recordMigrationHandler)
		}

		v1.GET("/schemas", s.listSchemasHandler)
	}
}

// Start begins serving HTTP requests
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	s.logger.Info().Str("address", addr).Msg("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router returns the gin engine (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// LoggerMiddleware logs each request with structured fields
func LoggerMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		clientIP := c.ClientIP()
		method := c.Request.Method
		statusCode := c.Writer.Status()
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		if raw != "" {
			path = path + "?" + raw
		}

		logger.Info().
			Str("client_ip", clientIP).
			Str("method", method).
			Str("path", path).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("error", errorMessage).
			Msg("HTTP request")
	}
}
