package optimization

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/raceday/internal/milp"
)

// ObjectiveBuilder translates the upper-tail CVaR objective into MILP form
// using the standard threshold-plus-slack linearization: an auxiliary
// threshold variable per quantile, one slack per scenario capturing the
// excess of the lineup score above the threshold, and the objective
// threshold + sum(slacks) / ((1-alpha) * numScenarios).
type ObjectiveBuilder struct {
	log zerolog.Logger
}

// NewObjectiveBuilder creates an objective builder.
func NewObjectiveBuilder(log zerolog.Logger) *ObjectiveBuilder {
	return &ObjectiveBuilder{
		log: log.With().Str("component", "cvar_objective").Logger(),
	}
}

// Build adds the tail variables and linking constraints for one quantile
// level and returns the objective expression. The threshold variable is
// bounded by the extreme achievable lineup totals and every slack by the
// total score range, which keeps the relaxations bounded without big-M
// constants. prefix namespaces the auxiliary variables so multiple
// quantiles coexist in one model.
func (b *ObjectiveBuilder) Build(
	m *milp.Model,
	scenarios *mat.Dense,
	sel []milp.Var,
	alpha float64,
	rosterSize int,
	prefix string,
) (milp.Expr, error) {
	if scenarios == nil {
		return milp.Expr{}, fmt.Errorf("scenario matrix is required")
	}
	numScenarios, numEntities := scenarios.Dims()
	if numScenarios == 0 || numEntities == 0 {
		return milp.Expr{}, fmt.Errorf("scenario matrix is empty (%dx%d)", numScenarios, numEntities)
	}
	if numEntities != len(sel) {
		return milp.Expr{}, fmt.Errorf(
			"scenario matrix has %d entities but %d selection variables", numEntities, len(sel))
	}
	if alpha <= 0 || alpha >= 1 {
		return milp.Expr{}, fmt.Errorf("alpha must be in (0, 1), got %v", alpha)
	}

	lo := mat.Min(scenarios)
	hi := mat.Max(scenarios)
	minTotal := float64(rosterSize) * lo
	maxTotal := float64(rosterSize) * hi
	slackCap := maxTotal - minTotal

	threshold, err := m.Continuous(prefix+"_threshold", minTotal, maxTotal)
	if err != nil {
		return milp.Expr{}, err
	}

	tailCoef := 1.0 / ((1.0 - alpha) * float64(numScenarios))
	objTerms := make([]milp.Term, 0, numScenarios+1)
	objTerms = append(objTerms, milp.Term{Var: threshold, Coef: 1})

	for k := 0; k < numScenarios; k++ {
		slack, err := m.Continuous(fmt.Sprintf("%s_excess_%d", prefix, k), 0, slackCap)
		if err != nil {
			return milp.Expr{}, err
		}

		// slack_k >= lineupScore_k - threshold
		terms := make([]milp.Term, 0, numEntities+2)
		terms = append(terms,
			milp.Term{Var: slack, Coef: 1},
			milp.Term{Var: threshold, Coef: 1},
		)
		for i := 0; i < numEntities; i++ {
			if v := scenarios.At(k, i); v != 0 {
				terms = append(terms, milp.Term{Var: sel[i], Coef: -v})
			}
		}
		m.AddConstraint(milp.Expr{Terms: terms}, milp.GreaterEq, 0)

		objTerms = append(objTerms, milp.Term{Var: slack, Coef: tailCoef})
	}

	return milp.Expr{Terms: objTerms}, nil
}

// BuildMulti combines several quantile levels into one weighted objective.
// The weights must sum to 1 within weightSumTol.
func (b *ObjectiveBuilder) BuildMulti(
	m *milp.Model,
	scenarios *mat.Dense,
	sel []milp.Var,
	alphas, weights []float64,
	rosterSize int,
) (milp.Expr, error) {
	if len(alphas) == 0 {
		return milp.Expr{}, fmt.Errorf("at least one alpha is required")
	}
	if len(alphas) != len(weights) {
		return milp.Expr{}, fmt.Errorf("%d alphas but %d weights", len(alphas), len(weights))
	}
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return milp.Expr{}, fmt.Errorf("quantile weights must be non-negative, got %v", w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > weightSumTol {
		return milp.Expr{}, fmt.Errorf("quantile weights sum to %.4f, expected 1", sum)
	}

	var objective milp.Expr
	for j := range alphas {
		part, err := b.Build(m, scenarios, sel, alphas[j], rosterSize, fmt.Sprintf("tail%d", j))
		if err != nil {
			return milp.Expr{}, fmt.Errorf("quantile %v: %w", alphas[j], err)
		}
		objective = objective.Plus(part.Scale(weights[j]))
	}
	return objective, nil
}
