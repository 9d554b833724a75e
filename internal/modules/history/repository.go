// Package history persists portfolio generation runs so past lineups can
// be inspected and re-exported after the process restarts.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Run is one persisted generation run.
type Run struct {
	ID             string    `json:"id"`
	Identifier     string    `json:"identifier"`
	Requested      int       `json:"requested"`
	Produced       int       `json:"produced"`
	Status         string    `json:"status"`
	MeanSimilarity float64   `json:"mean_similarity"`
	CreatedAt      time.Time `json:"created_at"`
	Lineups        []Lineup  `json:"lineups,omitempty"`
}

// Lineup is one persisted lineup. EntityNames are display names resolved at
// save time, so export does not depend on the candidate pool still existing.
type Lineup struct {
	Round       int      `json:"round"`
	EntityIDs   []string `json:"entity_ids"`
	EntityNames []string `json:"entity_names"`
	TotalCost   float64  `json:"total_cost"`
	Ceiling     float64  `json:"ceiling"`
}

// Repository stores runs in SQLite.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a run-history repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "history_repository").Logger(),
	}
}

// InitSchema creates the tables if they do not exist.
func (r *Repository) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id              TEXT PRIMARY KEY,
		identifier      TEXT NOT NULL,
		requested       INTEGER NOT NULL,
		produced        INTEGER NOT NULL,
		status          TEXT NOT NULL,
		mean_similarity REAL NOT NULL DEFAULT 0,
		created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS run_lineups (
		run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		round        INTEGER NOT NULL,
		entity_ids   TEXT NOT NULL,
		entity_names TEXT NOT NULL,
		total_cost   REAL NOT NULL,
		ceiling      REAL NOT NULL,
		PRIMARY KEY (run_id, round)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_identifier ON runs(identifier, created_at);`

	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// SaveRun persists a run and its lineups in one transaction.
func (r *Repository) SaveRun(ctx context.Context, run Run) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, identifier, requested, produced, status, mean_similarity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Identifier, run.Requested, run.Produced, run.Status, run.MeanSimilarity,
	); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	for _, l := range run.Lineups {
		ids, err := json.Marshal(l.EntityIDs)
		if err != nil {
			return fmt.Errorf("failed to encode entity ids: %w", err)
		}
		names, err := json.Marshal(l.EntityNames)
		if err != nil {
			return fmt.Errorf("failed to encode entity names: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_lineups (run_id, round, entity_ids, entity_names, total_cost, ceiling)
			VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, l.Round, string(ids), string(names), l.TotalCost, l.Ceiling,
		); err != nil {
			return fmt.Errorf("failed to insert lineup %d of run %s: %w", l.Round, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}

	r.log.Debug().
		Str("run_id", run.ID).
		Int("lineups", len(run.Lineups)).
		Msg("Saved generation run")
	return nil
}

// ListRuns returns recent runs, newest first, without lineups.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, identifier, requested, produced, status, mean_similarity, created_at
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Identifier, &run.Requested, &run.Produced,
			&run.Status, &run.MeanSimilarity, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run with its lineups, or sql.ErrNoRows.
func (r *Repository) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := r.db.QueryRowContext(ctx, `
		SELECT id, identifier, requested, produced, status, mean_similarity, created_at
		FROM runs WHERE id = ?`, runID).
		Scan(&run.ID, &run.Identifier, &run.Requested, &run.Produced,
			&run.Status, &run.MeanSimilarity, &run.CreatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT round, entity_ids, entity_names, total_cost, ceiling
		FROM run_lineups WHERE run_id = ? ORDER BY round`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lineups for run %s: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l Lineup
		var ids, names string
		if err := rows.Scan(&l.Round, &ids, &names, &l.TotalCost, &l.Ceiling); err != nil {
			return nil, fmt.Errorf("failed to scan lineup: %w", err)
		}
		if err := json.Unmarshal([]byte(ids), &l.EntityIDs); err != nil {
			return nil, fmt.Errorf("failed to decode entity ids for run %s: %w", runID, err)
		}
		if err := json.Unmarshal([]byte(names), &l.EntityNames); err != nil {
			return nil, fmt.Errorf("failed to decode entity names for run %s: %w", runID, err)
		}
		run.Lineups = append(run.Lineups, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteRunsBefore removes runs older than the cutoff. Returns rows removed.
func (r *Repository) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old runs: %w", err)
	}
	return res.RowsAffected()
}
