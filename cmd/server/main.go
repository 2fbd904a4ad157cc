/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the recurring collection engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the logger
  3. Open the SQL store (SQLite or PostgreSQL)
  4. Wire service, rewards program, notifier and catalog
  5. Configure HTTP router and reminder scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML configuration file (optional)
  -port    HTTP server port, overrides the configuration
  -db      Database DSN, overrides the configuration
           Use ":memory:" for an in-memory SQLite database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reminder scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

ENVIRONMENT:
  See config/config.go for the variables that override the file
  (DATABASE_URL, SERVER_PORT, LOG_LEVEL, ENGINE_TIMEZONE, ...).

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlstore/sqlstore.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/collection-engine/api"
	"github.com/warp/collection-engine/catalog"
	"github.com/warp/collection-engine/collection"
	"github.com/warp/collection-engine/config"
	"github.com/warp/collection-engine/generic"
	"github.com/warp/collection-engine/logger"
	"github.com/warp/collection-engine/notify"
	"github.com/warp/collection-engine/rewards"
	"github.com/warp/collection-engine/store/sqlstore"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides configuration)")
	dsn := flag.String("db", "", "Database DSN (overrides configuration)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	loc, err := cfg.Engine.Location()
	if err != nil {
		return err
	}

	// Initialize store
	dialect := sqlstore.Dialect(cfg.Database.Driver)
	if dialect == sqlstore.DialectSQLite && cfg.Database.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := sqlstore.Open(dialect, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		if cat, err = catalog.Load(cfg.Catalog.Path); err != nil {
			return err
		}
	}

	// Notices go to the log and to the in-memory feed served by the API.
	recorder := notify.NewRecorder(200)
	notifier := notify.Fanout{notify.NewLogNotifier(log.WithField("component", "notify")), recorder}

	svc := collection.NewService(store, log)
	svc.Clock = generic.SystemClock(loc)
	svc.Notifier = notifier

	handler := api.NewHandler(svc, cat, log)
	handler.Notices = recorder

	if cfg.Rewards.Enabled {
		rules := rewards.RulesFromPoints(
			cfg.Rewards.CollectorCompletion,
			cfg.Rewards.RequesterCompletion,
			cfg.Rewards.Rating,
			cfg.Rewards.LateCancellation,
		)
		program := rewards.NewProgram(generic.NewLedger(store.Ledger()), rules, log.WithField("component", "rewards"))
		svc.Events = program
		handler.Rewards = program
	}

	if cfg.Scheduler.Enabled {
		scheduler := api.NewReminderScheduler(svc, notifier, cfg.Scheduler.Spec, log)
		scheduler.Location = loc
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
		handler.Reminders = scheduler
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, cfg.CORS.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":     server.Addr,
			"driver":   cfg.Database.Driver,
			"timezone": loc.String(),
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
