package optimization

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/raceday/internal/milp"
	"github.com/aristath/raceday/pkg/formulas"
)

// defaultTailAlpha is used for realized tail metrics when the objective
// carries no quantile levels of its own (mean objective).
const defaultTailAlpha = 0.9

// LineupOptimizer solves one roster selection as a MILP.
type LineupOptimizer struct {
	objective *ObjectiveBuilder
	log       zerolog.Logger
}

// NewLineupOptimizer creates a lineup optimizer.
func NewLineupOptimizer(log zerolog.Logger) *LineupOptimizer {
	return &LineupOptimizer{
		objective: NewObjectiveBuilder(log),
		log:       log.With().Str("component", "lineup_optimizer").Logger(),
	}
}

// SolveInput carries everything one round needs.
type SolveInput struct {
	Scenarios  *mat.Dense
	Candidates []Candidate
	Book       *ExposureBook
	Prior      []Lineup
	Config     Config
	Round      int
}

// Solve builds and solves the round's model. A nil lineup with nil error
// means no feasible lineup exists under the current constraint state (or
// the solver ran out of time), which the caller treats as a stall. A
// non-nil error means the inputs or the model are broken.
func (o *LineupOptimizer) Solve(ctx context.Context, in SolveInput) (*Lineup, error) {
	if in.Scenarios == nil {
		return nil, fmt.Errorf("scenario matrix is required")
	}
	numScenarios, numEntities := in.Scenarios.Dims()
	if numScenarios == 0 || numEntities == 0 {
		return nil, fmt.Errorf("scenario matrix is empty (%dx%d)", numScenarios, numEntities)
	}
	if numEntities != len(in.Candidates) {
		return nil, fmt.Errorf(
			"scenario matrix has %d entities but pool has %d candidates", numEntities, len(in.Candidates))
	}

	m := milp.New(fmt.Sprintf("lineup_round_%d", in.Round))
	m.SetLogger(o.log)
	sel := make([]milp.Var, len(in.Candidates))
	for i, c := range in.Candidates {
		sel[i] = m.Binary("sel_" + c.ID)
	}

	var objective milp.Expr
	var err error
	switch in.Config.Objective {
	case ObjectiveMean:
		objective = meanObjective(in.Scenarios, sel)
	default:
		objective, err = o.objective.BuildMulti(
			m, in.Scenarios, sel, in.Config.Alphas, in.Config.Weights, in.Config.Rules.RosterSize())
		if err != nil {
			return nil, err
		}
	}
	objective = objective.Minus(
		BuildOverlapPenalty(in.Prior, in.Candidates, sel, in.Config.DiversityWeight))

	ApplyRosterConstraints(m, in.Candidates, sel, in.Config.Rules)
	ApplyExposureConstraints(m, in.Candidates, sel, in.Book,
		in.Config.MaxEntityExposure, in.Config.MaxGroupExposure)
	m.Maximize(objective)

	sol, err := m.Solve(ctx, in.Config.SolverTimeLimit)
	if err != nil {
		return nil, fmt.Errorf("round %d solve failed: %w", in.Round, err)
	}
	if sol.Status != milp.StatusOptimal {
		o.log.Debug().
			Int("round", in.Round).
			Str("status", sol.Status.String()).
			Int("nodes", sol.Nodes).
			Msg("No lineup produced this round")
		return nil, nil
	}

	var selected []Candidate
	var selectedIdx []int
	for i := range in.Candidates {
		if sol.IsSet(sel[i]) {
			selected = append(selected, in.Candidates[i])
			selectedIdx = append(selectedIdx, i)
		}
	}
	if err := ValidateRoster(selected, in.Candidates, in.Config.Rules); err != nil {
		return nil, fmt.Errorf("round %d produced an invalid roster: %w", in.Round, err)
	}

	return o.buildLineup(in, selected, selectedIdx), nil
}

// buildLineup computes the realized metrics for the selected roster from
// the scenario matrix. The metrics are empirical, independent of the
// linearized objective the solver saw.
func (o *LineupOptimizer) buildLineup(in SolveInput, selected []Candidate, idx []int) *Lineup {
	numScenarios, _ := in.Scenarios.Dims()
	totals := make([]float64, numScenarios)
	for k := 0; k < numScenarios; k++ {
		for _, i := range idx {
			totals[k] += in.Scenarios.At(k, i)
		}
	}

	alphas := in.Config.Alphas
	if len(alphas) == 0 {
		alphas = []float64{defaultTailAlpha}
	}
	cvar := make(map[string]float64, len(alphas))
	for _, a := range alphas {
		cvar[strconv.FormatFloat(a, 'g', -1, 64)] = formulas.UpperTailCVaR(totals, a)
	}

	ids := make([]string, len(selected))
	exposure := make(map[string]float64, len(selected))
	cost := 0.0
	nextRounds := float64(in.Book.Rounds() + 1)
	for i, c := range selected {
		ids[i] = c.ID
		cost += c.Cost
		exposure[c.ID] = float64(in.Book.EntityCount(c.ID)+1) / nextRounds
	}

	return &Lineup{
		EntityIDs:         ids,
		TotalCost:         cost,
		CVaR:              cvar,
		TopPercentile:     formulas.TopPercentile(totals, alphas[0]),
		ConditionalUpside: formulas.ConditionalUpside(totals, alphas[0]),
		Exposure:          exposure,
		Round:             in.Round,
	}
}

// meanObjective maximizes the expected lineup score: each entity
// contributes its mean over scenarios.
func meanObjective(scenarios *mat.Dense, sel []milp.Var) milp.Expr {
	numScenarios, numEntities := scenarios.Dims()
	terms := make([]milp.Term, numEntities)
	col := make([]float64, numScenarios)
	for i := 0; i < numEntities; i++ {
		mat.Col(col, i, scenarios)
		terms[i] = milp.Term{Var: sel[i], Coef: stat.Mean(col, nil)}
	}
	return milp.Expr{Terms: terms}
}
