package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/raceday/internal/database"
	"github.com/aristath/raceday/internal/modules/history"
	"github.com/aristath/raceday/internal/modules/scenarios"
)

// MaintenanceJob runs the nightly cleanup: drop cached scenario matrices
// (the simulations are regenerated before each slate anyway), prune old
// runs past retention, and keep the history database healthy.
type MaintenanceJob struct {
	cache     *scenarios.Cache
	repo      *history.Repository
	db        *database.DB
	retention time.Duration
	log       zerolog.Logger
}

// NewMaintenanceJob creates the maintenance job.
func NewMaintenanceJob(
	cache *scenarios.Cache,
	repo *history.Repository,
	db *database.DB,
	retentionDays int,
	log zerolog.Logger,
) *MaintenanceJob {
	return &MaintenanceJob{
		cache:     cache,
		repo:      repo,
		db:        db,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run performs the cleanup pass.
func (j *MaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cached := j.cache.Len()
	j.cache.Clear()
	j.log.Info().Int("dropped_matrices", cached).Msg("Scenario cache cleared")

	if j.repo != nil {
		cutoff := time.Now().Add(-j.retention)
		removed, err := j.repo.DeleteRunsBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("history retention sweep failed: %w", err)
		}
		if removed > 0 {
			j.log.Info().Int64("removed_runs", removed).Msg("Pruned old generation runs")
		}
	}

	if j.db != nil {
		if err := j.db.HealthCheck(ctx); err != nil {
			return err
		}
		if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
			return err
		}
	}
	return nil
}
