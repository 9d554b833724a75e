package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/raceday/internal/config"
	"github.com/aristath/raceday/internal/database"
	"github.com/aristath/raceday/internal/modules/conservation"
	"github.com/aristath/raceday/internal/modules/history"
	"github.com/aristath/raceday/internal/modules/optimization"
	"github.com/aristath/raceday/internal/modules/scenarios"
	"github.com/aristath/raceday/internal/scheduler"
	"github.com/aristath/raceday/internal/server"
	"github.com/aristath/raceday/pkg/logger"
)

func main() {
	log := logger.New(logger.Config{
		Level:  getEnv("LOG_LEVEL", "info"),
		Pretty: true,
	})

	log.Info().Msg("Starting Raceday")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// history.db - persisted generation runs
	historyDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/history.db",
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize history database")
	}
	defer historyDB.Close()

	historyRepo := history.NewRepository(historyDB.Conn(), log)
	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := historyRepo.InitSchema(initCtx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("Failed to initialize history schema")
	}
	cancel()

	validator := conservation.New(log, conservation.WithWorkers(cfg.ValidationWorkers))
	cache := scenarios.NewCache(log)
	generator := optimization.NewGenerator(optimization.NewLineupOptimizer(log), log)
	service := optimization.NewService(cache, generator, historyRepo, log)

	sched := scheduler.New(log)
	if cfg.SchedulerEnabled {
		telemetry := scheduler.NewTelemetryJob(validator, log)
		if err := sched.AddJob("0 */15 * * * *", telemetry); err != nil {
			log.Fatal().Err(err).Msg("Failed to register telemetry job")
		}
		maintenance := scheduler.NewMaintenanceJob(
			cache, historyRepo, historyDB, cfg.HistoryRetentionDays, log)
		if err := sched.AddJob("0 0 4 * * *", maintenance); err != nil {
			log.Fatal().Err(err).Msg("Failed to register maintenance job")
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		HistoryDB: historyDB,
		Validator: validator,
		Cache:     cache,
		Service:   service,
		History:   historyRepo,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}

	log.Info().Msg("Raceday stopped")
}

// getEnv gets environment variable with fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
