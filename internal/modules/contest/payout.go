// Package contest models tournament payout structures. Payout tables are
// published as discrete rank/prize pairs; fitting a parametric curve lets
// the dashboard interpolate prizes for unlisted ranks and compare contest
// shapes (how top-heavy one structure is against another).
package contest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// CurveKind names a payout curve family.
type CurveKind string

const (
	// PowerLaw is payout = scale * rank^(-exponent). Fits the typical
	// top-heavy large-field tournament.
	PowerLaw CurveKind = "power_law"
	// Exponential is payout = scale * exp(-decay * (rank-1)). Fits flatter
	// structures such as double-ups and small leagues.
	Exponential CurveKind = "exponential"
)

// PayoutCurve evaluates a fitted payout structure. Implementations are
// immutable; the family is fixed at construction.
type PayoutCurve interface {
	Kind() CurveKind
	Payout(rank int) float64
	Params() (scale, shape float64)
}

type powerLawCurve struct {
	scale    float64
	exponent float64
}

func (c powerLawCurve) Kind() CurveKind { return PowerLaw }

func (c powerLawCurve) Payout(rank int) float64 {
	if rank < 1 {
		return 0
	}
	return c.scale * math.Pow(float64(rank), -c.exponent)
}

func (c powerLawCurve) Params() (float64, float64) { return c.scale, c.exponent }

type exponentialCurve struct {
	scale float64
	decay float64
}

func (c exponentialCurve) Kind() CurveKind { return Exponential }

func (c exponentialCurve) Payout(rank int) float64 {
	if rank < 1 {
		return 0
	}
	return c.scale * math.Exp(-c.decay*float64(rank-1))
}

func (c exponentialCurve) Params() (float64, float64) { return c.scale, c.decay }

// FitCurve fits the chosen family to published rank/payout pairs by linear
// regression in log space. Both families are log-linear: power law against
// log(rank), exponential against rank-1.
func FitCurve(kind CurveKind, ranks []int, payouts []float64) (PayoutCurve, error) {
	if len(ranks) != len(payouts) {
		return nil, fmt.Errorf("%d ranks but %d payouts", len(ranks), len(payouts))
	}
	if len(ranks) < 2 {
		return nil, fmt.Errorf("curve fit requires at least 2 points, got %d", len(ranks))
	}

	x := make([]float64, len(ranks))
	y := make([]float64, len(payouts))
	for i := range ranks {
		if ranks[i] < 1 {
			return nil, fmt.Errorf("rank %d at index %d: ranks start at 1", ranks[i], i)
		}
		if payouts[i] <= 0 {
			return nil, fmt.Errorf("payout %v at index %d: payouts must be positive", payouts[i], i)
		}
		y[i] = math.Log(payouts[i])
		switch kind {
		case PowerLaw:
			x[i] = math.Log(float64(ranks[i]))
		case Exponential:
			x[i] = float64(ranks[i] - 1)
		default:
			return nil, fmt.Errorf("unknown curve kind %q", kind)
		}
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)
	scale := math.Exp(intercept)

	switch kind {
	case PowerLaw:
		return powerLawCurve{scale: scale, exponent: -slope}, nil
	default:
		return exponentialCurve{scale: scale, decay: -slope}, nil
	}
}

// ExpectedPayout sums curve payouts over ranks 1..n, the prize pool a
// portfolio would sweep by taking the top n places.
func ExpectedPayout(curve PayoutCurve, n int) float64 {
	total := 0.0
	for rank := 1; rank <= n; rank++ {
		total += curve.Payout(rank)
	}
	return total
}
