/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the activity engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment configuration
  2. Parse command-line flags (override PORT and DB_PATH)
  3. Initialize logging
  4. Initialize SQLite store (migrations run here)
  5. Create API handler and router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: $PORT or 8080)
  -db      SQLite database path (default: $DB_PATH or activities.db)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/activities.db"

  # Run with in-memory database and debug logs
  LOG_LEVEL=debug LOG_FORMAT=console ./server -db=":memory:"

ENVIRONMENT:
  See config/config.go for the full list.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/activity-engine/api"
	"github.com/warp/activity-engine/config"
	"github.com/warp/activity-engine/logging"
	"github.com/warp/activity-engine/store/sqlite"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "activity-engine"})
	log := logging.Get()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to initialize database")
	}
	defer store.Close()

	handler := api.NewHandler(store, api.Settings{
		RecordCacheTTL: cfg.RecordCacheTTL,
		HolidayWindow:  cfg.HolidayWindow,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		Auth:        api.AuthConfig{Secret: cfg.AuthSecret, Issuer: cfg.AuthIssuer},
		CORSOrigins: cfg.CORSOrigins,
	})
	if !cfg.AuthEnabled() {
		log.Warn().Msg("AUTH_SECRET not set, every request acts as an anonymous admin")
	}

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Int("port", cfg.Port).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
