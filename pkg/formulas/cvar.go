package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// UpperTailCVaR calculates Conditional Value at Risk on the upper tail of the
// outcome distribution: the mean of the best (1-alpha) fraction of outcomes.
// This targets upside (ceiling) rather than downside risk.
//
// Args:
//   - outcomes: Simulated outcomes (e.g. lineup point totals, one per scenario)
//   - alpha: Quantile level in (0,1); 0.90 means "average of the top 10%"
//
// Returns:
//   - Upper-tail CVaR value (max of outcomes as alpha -> 1, full mean as alpha -> 0)
func UpperTailCVaR(outcomes []float64, alpha float64) float64 {
	if len(outcomes) == 0 {
		return 0.0
	}

	if len(outcomes) == 1 {
		return outcomes[0]
	}

	// Sort outcomes in descending order (best first)
	sorted := make([]float64, len(outcomes))
	copy(sorted, outcomes)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	// Tail size: the best (1-alpha) fraction, at least one outcome
	tailProbability := 1.0 - alpha
	tailCount := int(math.Ceil(float64(len(sorted)) * tailProbability))

	if tailCount == 0 {
		tailCount = 1
	}
	if tailCount > len(sorted) {
		tailCount = len(sorted)
	}

	tail := sorted[:tailCount]
	sum := 0.0
	for _, v := range tail {
		sum += v
	}

	return sum / float64(len(tail))
}

// TopPercentile returns the empirical percentile of the outcome distribution
// (e.g. pct=0.90 for the 90th-percentile outcome).
func TopPercentile(outcomes []float64, pct float64) float64 {
	if len(outcomes) == 0 {
		return 0.0
	}

	sorted := make([]float64, len(outcomes))
	copy(sorted, outcomes)
	sort.Float64s(sorted)

	return stat.Quantile(pct, stat.Empirical, sorted, nil)
}

// ConditionalUpside measures how far the upper tail sits above the mean:
// UpperTailCVaR(alpha) - mean. Positive by construction for non-degenerate
// distributions; zero when all outcomes are equal.
func ConditionalUpside(outcomes []float64, alpha float64) float64 {
	if len(outcomes) == 0 {
		return 0.0
	}
	return UpperTailCVaR(outcomes, alpha) - stat.Mean(outcomes, nil)
}
