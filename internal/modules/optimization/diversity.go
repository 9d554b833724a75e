package optimization

import (
	"github.com/aristath/raceday/internal/milp"
)

// BuildOverlapPenalty returns the linear penalty weight * sum over prior
// lineups of the candidate lineup's overlap with them. Subtracting it from
// the objective makes each round pay for reusing entities the portfolio
// already holds, which is what actually differentiates lineups when the
// tail objective alone is indifferent between near-identical rosters.
func BuildOverlapPenalty(prior []Lineup, candidates []Candidate, sel []milp.Var, weight float64) milp.Expr {
	if weight == 0 || len(prior) == 0 {
		return milp.Expr{}
	}

	appearances := make(map[string]int)
	for _, l := range prior {
		for _, id := range l.EntityIDs {
			appearances[id]++
		}
	}

	terms := make([]milp.Term, 0, len(appearances))
	for i, c := range candidates {
		if n := appearances[c.ID]; n > 0 {
			terms = append(terms, milp.Term{Var: sel[i], Coef: weight * float64(n)})
		}
	}
	return milp.Expr{Terms: terms}
}

// computeDiversity summarizes pairwise similarity (shared entities divided
// by roster size) across all lineup pairs.
func computeDiversity(lineups []Lineup, rosterSize int) DiversityStats {
	if len(lineups) < 2 || rosterSize == 0 {
		return DiversityStats{}
	}

	sets := make([]map[string]bool, len(lineups))
	for i, l := range lineups {
		sets[i] = make(map[string]bool, len(l.EntityIDs))
		for _, id := range l.EntityIDs {
			sets[i][id] = true
		}
	}

	var sum float64
	min, max := 1.0, 0.0
	pairs := 0
	for i := 0; i < len(lineups); i++ {
		for j := i + 1; j < len(lineups); j++ {
			shared := 0
			for id := range sets[i] {
				if sets[j][id] {
					shared++
				}
			}
			sim := float64(shared) / float64(rosterSize)
			sum += sim
			if sim < min {
				min = sim
			}
			if sim > max {
				max = sim
			}
			pairs++
		}
	}

	return DiversityStats{
		MeanSimilarity: sum / float64(pairs),
		MinSimilarity:  min,
		MaxSimilarity:  max,
	}
}
