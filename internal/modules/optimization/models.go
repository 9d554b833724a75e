// Package optimization builds tournament lineup portfolios: it selects
// rosters of entities from a candidate pool by maximizing the upper tail of
// the simulated score distribution, subject to roster construction rules,
// exposure caps across the portfolio, and a diversity penalty against
// already-generated lineups. Each lineup is one MILP solve; the portfolio
// is generated sequentially so every round sees the exposure state left by
// the previous rounds.
package optimization

import (
	"fmt"
	"hash/fnv"
	"time"
)

// Candidate is one selectable entity in the pool. Its position in the
// candidate slice matches its column in the scenario matrix.
type Candidate struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Cost        float64 `json:"cost"`
	Group       string  `json:"group"`
}

// ObjectiveType selects what the per-lineup solve maximizes.
type ObjectiveType string

const (
	// ObjectiveCVaR maximizes the weighted upper-tail CVaR combination.
	ObjectiveCVaR ObjectiveType = "cvar"
	// ObjectiveMean maximizes the expected lineup score.
	ObjectiveMean ObjectiveType = "mean"
)

// RosterRules is an immutable roster construction policy. All fields are
// validated eagerly at construction and the identity hash is precomputed,
// so a rules value in circulation is always internally consistent.
type RosterRules struct {
	rosterSize int
	budgetCap  float64
	minStack   int
	maxStack   int
	hash       uint64
}

// NewRosterRules validates and freezes a roster policy.
func NewRosterRules(rosterSize int, budgetCap float64, minStack, maxStack int) (RosterRules, error) {
	if rosterSize <= 0 {
		return RosterRules{}, fmt.Errorf("roster size must be positive, got %d", rosterSize)
	}
	if budgetCap <= 0 {
		return RosterRules{}, fmt.Errorf("budget cap must be positive, got %v", budgetCap)
	}
	if minStack < 0 {
		return RosterRules{}, fmt.Errorf("min stack must be non-negative, got %d", minStack)
	}
	if maxStack < minStack {
		return RosterRules{}, fmt.Errorf("max stack %d below min stack %d", maxStack, minStack)
	}
	if maxStack > rosterSize {
		return RosterRules{}, fmt.Errorf("max stack %d exceeds roster size %d", maxStack, rosterSize)
	}

	r := RosterRules{
		rosterSize: rosterSize,
		budgetCap:  budgetCap,
		minStack:   minStack,
		maxStack:   maxStack,
	}
	r.hash = r.computeHash()
	return r, nil
}

// RosterSize returns the exact number of entities per lineup.
func (r RosterRules) RosterSize() int { return r.rosterSize }

// BudgetCap returns the maximum total lineup cost.
func (r RosterRules) BudgetCap() float64 { return r.budgetCap }

// MinStack returns the minimum entities per eligible group.
func (r RosterRules) MinStack() int { return r.minStack }

// MaxStack returns the maximum entities per eligible group.
func (r RosterRules) MaxStack() int { return r.maxStack }

// Hash returns the precomputed identity hash, stable for equal rule values.
func (r RosterRules) Hash() uint64 { return r.hash }

func (r RosterRules) computeHash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%.6f|%d|%d", r.rosterSize, r.budgetCap, r.minStack, r.maxStack)
	return h.Sum64()
}

// Config drives one portfolio generation run.
type Config struct {
	NumLineups   int           `json:"num_lineups"`
	NumScenarios int           `json:"num_scenarios"`
	Objective    ObjectiveType `json:"objective"`

	// Alphas and Weights define the multi-quantile tail objective. Weights
	// must sum to 1 within a small tolerance.
	Alphas  []float64 `json:"alphas"`
	Weights []float64 `json:"weights"`

	// DiversityWeight scales the overlap penalty against prior lineups.
	DiversityWeight float64 `json:"diversity_weight"`

	// Exposure caps as fractions of the portfolio, in (0, 1].
	MaxEntityExposure float64 `json:"max_entity_exposure"`
	MaxGroupExposure  float64 `json:"max_group_exposure"`

	Rules RosterRules `json:"-"`

	// SolverTimeLimit bounds each per-lineup solve. Zero disables the bound.
	SolverTimeLimit time.Duration `json:"-"`

	// Seed drives the candidate-order shuffle so reruns are reproducible.
	Seed int64 `json:"seed"`
}

// weightSumTol is the allowed deviation of the quantile weight sum from 1.
const weightSumTol = 1e-2

// Validate rejects configurations the generator cannot honor. These are
// hard input errors: nothing is generated and no partial result exists.
func (c Config) Validate() error {
	if c.NumLineups <= 0 {
		return fmt.Errorf("num_lineups must be positive, got %d", c.NumLineups)
	}
	if c.NumScenarios <= 0 {
		return fmt.Errorf("num_scenarios must be positive, got %d", c.NumScenarios)
	}
	switch c.Objective {
	case ObjectiveCVaR, ObjectiveMean:
	case "":
		return fmt.Errorf("objective type is required")
	default:
		return fmt.Errorf("unknown objective type %q", c.Objective)
	}
	if c.Objective == ObjectiveCVaR {
		if len(c.Alphas) == 0 {
			return fmt.Errorf("cvar objective requires at least one alpha")
		}
		if len(c.Alphas) != len(c.Weights) {
			return fmt.Errorf("%d alphas but %d weights", len(c.Alphas), len(c.Weights))
		}
	}
	if c.DiversityWeight < 0 {
		return fmt.Errorf("diversity_weight must be non-negative, got %v", c.DiversityWeight)
	}
	if c.MaxEntityExposure <= 0 || c.MaxEntityExposure > 1 {
		return fmt.Errorf("max_entity_exposure must be in (0, 1], got %v", c.MaxEntityExposure)
	}
	if c.MaxGroupExposure <= 0 || c.MaxGroupExposure > 1 {
		return fmt.Errorf("max_group_exposure must be in (0, 1], got %v", c.MaxGroupExposure)
	}
	if c.Rules.RosterSize() == 0 {
		return fmt.Errorf("roster rules are required")
	}
	return nil
}

// Lineup is one optimized roster with its realized tail metrics, computed
// empirically from the scenario matrix after the solve.
type Lineup struct {
	EntityIDs         []string           `json:"entity_ids"`
	TotalCost         float64            `json:"total_cost"`
	CVaR              map[string]float64 `json:"cvar"`
	TopPercentile     float64            `json:"top_percentile"`
	ConditionalUpside float64            `json:"conditional_upside"`
	Exposure          map[string]float64 `json:"exposure"`
	Round             int                `json:"round"`
}

// PortfolioStatus reports how a generation run ended.
type PortfolioStatus string

const (
	// StatusCompleted means every requested lineup was produced.
	StatusCompleted PortfolioStatus = "completed"
	// StatusPartiallyCompleted means generation stalled before the target:
	// some round had no feasible lineup left under the accumulated
	// constraints. This is a normal termination, not an error.
	StatusPartiallyCompleted PortfolioStatus = "partially_completed"
)

// DiversityStats summarizes pairwise lineup similarity (shared entities
// divided by roster size). Zero-valued when fewer than two lineups exist.
type DiversityStats struct {
	MeanSimilarity float64 `json:"mean_similarity"`
	MinSimilarity  float64 `json:"min_similarity"`
	MaxSimilarity  float64 `json:"max_similarity"`
}

// Portfolio is the result of one generation run.
type Portfolio struct {
	RunID      string          `json:"run_id"`
	Identifier string          `json:"identifier"`
	Lineups    []Lineup        `json:"lineups"`
	Requested  int             `json:"requested"`
	Produced   int             `json:"produced"`
	Status     PortfolioStatus `json:"status"`
	Diversity  DiversityStats  `json:"diversity"`
}
