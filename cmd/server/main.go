/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the life planner server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (flags over PLANNER_* environment)
  2. Build the logger
  3. Initialize SQLite store
  4. Create API handler and router
  5. Start the reconciliation scheduler (unless disabled)
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler, waiting for an in-flight run
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database and a service key
  PLANNER_SERVICE_KEY=secret ./server -db="./data/planner.db"

  # Run with in-memory database, JSON logs, no scheduler
  ./server -db=":memory:" -log-format=json -scheduler=false

SEE ALSO:
  - config/config.go: All flags and environment variables
  - api/server.go: Router configuration
  - api/scheduler.go: Daily reconciliation
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

	"github.com/warp/life-planner/api"
	"github.com/warp/life-planner/config"
	"github.com/warp/life-planner/logger"
	"github.com/warp/life-planner/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("failed to initialize database")
	}
	defer store.Close()

	handler := api.NewHandler(store, api.Options{
		Location: cfg.Location,
		Calendar: cfg.Calendar,
		Log:      log,
	})

	if cfg.ServiceKey == "" {
		log.Warn().Msg("no service key configured; reconcile and scenario routes are disabled")
	}
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		ServiceKey:  cfg.ServiceKey,
		Log:         log,
	})

	scheduler := api.NewReconciliationScheduler(handler, log)
	scheduler.CheckInterval = cfg.ReconcileInterval
	scheduler.Enabled = cfg.SchedulerEnabled
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("timezone", cfg.Timezone).
			Str("calendar", string(cfg.Calendar)).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
