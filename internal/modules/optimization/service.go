package optimization

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/aristath/raceday/internal/modules/history"
	"github.com/aristath/raceday/internal/modules/scenarios"
)

// Service orchestrates a portfolio generation run: scenario matrix lookup
// through the cache, generation, and best-effort run persistence.
type Service struct {
	cache     *scenarios.Cache
	generator *Generator
	history   *history.Repository // optional, nil disables persistence
	log       zerolog.Logger
}

// NewService creates the optimization service.
func NewService(
	cache *scenarios.Cache,
	generator *Generator,
	hist *history.Repository,
	log zerolog.Logger,
) *Service {
	return &Service{
		cache:     cache,
		generator: generator,
		history:   hist,
		log:       log.With().Str("component", "optimization_service").Logger(),
	}
}

// GenerateRequest is one portfolio generation call.
type GenerateRequest struct {
	Identifier string
	Candidates []Candidate
	Producer   scenarios.Producer
	Config     Config
}

// GeneratePortfolio runs one generation end to end. Persistence failures
// are logged, not returned: the caller already holds the portfolio and a
// history gap is recoverable.
func (s *Service) GeneratePortfolio(ctx context.Context, req GenerateRequest) (*Portfolio, error) {
	if req.Identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}
	if len(req.Candidates) == 0 {
		return nil, fmt.Errorf("candidate pool is empty")
	}

	matrix, err := s.cache.Get(scenarios.Key{
		Identifier:    req.Identifier,
		ScenarioCount: req.Config.NumScenarios,
	}, req.Producer)
	if err != nil {
		return nil, err
	}

	portfolio, err := s.generator.Generate(ctx, req.Identifier, req.Candidates, matrix, req.Config)
	if err != nil {
		return nil, err
	}

	if s.history != nil {
		if err := s.history.SaveRun(ctx, toHistoryRun(portfolio, req.Candidates)); err != nil {
			s.log.Warn().Err(err).Str("run_id", portfolio.RunID).Msg("Failed to persist run")
		}
	}
	return portfolio, nil
}

// ExportRunCSV streams a stored run in the contest upload format.
func (s *Service) ExportRunCSV(ctx context.Context, runID string, w io.Writer) error {
	if s.history == nil {
		return fmt.Errorf("run history is not enabled")
	}
	run, err := s.history.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}

	lineups := make([]Lineup, len(run.Lineups))
	for i, l := range run.Lineups {
		lineups[i] = Lineup{EntityIDs: l.EntityNames}
	}
	return ExportCSV(w, lineups, nil)
}

func toHistoryRun(p *Portfolio, pool []Candidate) history.Run {
	names := make(map[string]string, len(pool))
	for _, c := range pool {
		names[c.ID] = c.DisplayName
	}

	run := history.Run{
		ID:             p.RunID,
		Identifier:     p.Identifier,
		Requested:      p.Requested,
		Produced:       p.Produced,
		Status:         string(p.Status),
		MeanSimilarity: p.Diversity.MeanSimilarity,
	}
	for _, l := range p.Lineups {
		entityNames := make([]string, len(l.EntityIDs))
		for i, id := range l.EntityIDs {
			if n := names[id]; n != "" {
				entityNames[i] = n
			} else {
				entityNames[i] = id
			}
		}
		run.Lineups = append(run.Lineups, history.Lineup{
			Round:       l.Round,
			EntityIDs:   l.EntityIDs,
			EntityNames: entityNames,
			TotalCost:   l.TotalCost,
			Ceiling:     l.TopPercentile,
		})
	}
	return run
}
