package optimization

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Generator produces lineup portfolios round by round. Rounds are strictly
// sequential: each solve must see the exposure counts and prior lineups of
// every earlier round, so there is nothing to parallelize inside one run.
type Generator struct {
	optimizer *LineupOptimizer
	log       zerolog.Logger
}

// NewGenerator creates a portfolio generator.
func NewGenerator(optimizer *LineupOptimizer, log zerolog.Logger) *Generator {
	return &Generator{
		optimizer: optimizer,
		log:       log.With().Str("component", "portfolio_generator").Logger(),
	}
}

// Generate runs up to cfg.NumLineups rounds and assembles the portfolio.
// A round with no feasible lineup ends the run as partially completed;
// that is the constraint state doing its job, not a failure.
func (g *Generator) Generate(
	ctx context.Context,
	identifier string,
	candidates []Candidate,
	scenarios *mat.Dense,
	cfg Config,
) (*Portfolio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scenarios == nil {
		return nil, fmt.Errorf("scenario matrix is required")
	}
	if _, cols := scenarios.Dims(); cols != len(candidates) {
		return nil, fmt.Errorf(
			"scenario matrix has %d entity columns but pool has %d candidates", cols, len(candidates))
	}

	// Seeded shuffle of the candidate order (with the matrix columns kept
	// aligned) so ties between equivalent lineups break differently run to
	// run, reproducibly per seed.
	candidates, scenarios = shufflePool(candidates, scenarios, cfg.Seed)

	groups := make(map[string]string, len(candidates))
	for _, c := range candidates {
		groups[c.ID] = c.Group
	}

	book := NewExposureBook()
	lineups := make([]Lineup, 0, cfg.NumLineups)
	status := StatusCompleted

	g.log.Info().
		Str("identifier", identifier).
		Int("num_lineups", cfg.NumLineups).
		Int("pool_size", len(candidates)).
		Str("objective", string(cfg.Objective)).
		Msg("Starting portfolio generation")

	for round := 0; round < cfg.NumLineups; round++ {
		lineup, err := g.optimizer.Solve(ctx, SolveInput{
			Scenarios:  scenarios,
			Candidates: candidates,
			Book:       book,
			Prior:      lineups,
			Config:     cfg,
			Round:      round,
		})
		if err != nil {
			return nil, err
		}
		if lineup == nil {
			status = StatusPartiallyCompleted
			g.log.Info().
				Str("identifier", identifier).
				Int("produced", len(lineups)).
				Int("requested", cfg.NumLineups).
				Msg("Portfolio generation stalled, no feasible lineup left")
			break
		}

		lineups = append(lineups, *lineup)
		book.Record(lineup.EntityIDs, groups)
	}

	portfolio := &Portfolio{
		RunID:      uuid.New().String(),
		Identifier: identifier,
		Lineups:    lineups,
		Requested:  cfg.NumLineups,
		Produced:   len(lineups),
		Status:     status,
		Diversity:  computeDiversity(lineups, cfg.Rules.RosterSize()),
	}

	g.log.Info().
		Str("run_id", portfolio.RunID).
		Int("produced", portfolio.Produced).
		Str("status", string(portfolio.Status)).
		Float64("mean_similarity", portfolio.Diversity.MeanSimilarity).
		Msg("Portfolio generation finished")
	return portfolio, nil
}

// shufflePool permutes the candidate order and the matrix columns together
// so column i still scores candidate i.
func shufflePool(candidates []Candidate, scenarios *mat.Dense, seed int64) ([]Candidate, *mat.Dense) {
	n := len(candidates)
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	shuffled := make([]Candidate, n)
	numScenarios, _ := scenarios.Dims()
	permuted := mat.NewDense(numScenarios, n, nil)
	col := make([]float64, numScenarios)
	for newIdx, oldIdx := range perm {
		shuffled[newIdx] = candidates[oldIdx]
		mat.Col(col, oldIdx, scenarios)
		permuted.SetCol(newIdx, col)
	}
	return shuffled, permuted
}
