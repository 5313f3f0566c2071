/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the ledger engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment (envconfig)
  2. Initialize SQLite store
  3. Create API handler with dependencies
  4. Start the background consistency checker
  5. Start server with graceful shutdown

CONFIGURATION (environment, prefix LEDGER_):
  LEDGER_PORT            HTTP server port (default: 8080)
  LEDGER_DB_PATH         SQLite database path (default: ledger.db)
                         Use ":memory:" for in-memory database
  LEDGER_LOG_LEVEL       debug | info | warn | error (default: info)
  LEDGER_CHECK_INTERVAL  Consistency check interval (default: 1h)

  The -port and -db flags override LEDGER_PORT and LEDGER_DB_PATH.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the consistency checker
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  LEDGER_DB_PATH=./data/ledger.db ./server

  # Run with in-memory database
  LEDGER_DB_PATH=":memory:" ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/warp/ledger-engine/api"
	"github.com/warp/ledger-engine/store/sqlite"
)

// Config is the environment-driven server configuration.
type Config struct {
	Port          int           `default:"8080"`
	DBPath        string        `default:"ledger.db" split_words:"true"`
	LogLevel      string        `default:"info" split_words:"true"`
	CheckInterval time.Duration `default:"1h" split_words:"true"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("ledger", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment.
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path (\":memory:\" for in-memory)")
	flag.Parse()
	cfg.Port = *port
	cfg.DBPath = *dbPath

	logger := newLogger(cfg.LogLevel)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize database", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	handler := api.NewHandler(store)
	handler.Resetter = store

	checker := api.NewConsistencyChecker(store, logger)
	checker.CheckInterval = cfg.CheckInterval
	checker.Start()
	defer checker.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", fmt.Sprintf("http://localhost:%d", cfg.Port), "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
