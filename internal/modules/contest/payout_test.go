package contest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitCurve_PowerLawRecoversParams(t *testing.T) {
	// Exact power-law data: payout = 1000 * rank^-0.5.
	ranks := []int{1, 2, 5, 10, 50, 100}
	payouts := make([]float64, len(ranks))
	for i, r := range ranks {
		payouts[i] = 1000 * math.Pow(float64(r), -0.5)
	}

	curve, err := FitCurve(PowerLaw, ranks, payouts)
	require.NoError(t, err)

	assert.Equal(t, PowerLaw, curve.Kind())
	scale, shape := curve.Params()
	assert.InDelta(t, 1000.0, scale, 1e-6)
	assert.InDelta(t, 0.5, shape, 1e-9)
	assert.InDelta(t, 1000.0, curve.Payout(1), 1e-6)
	assert.InDelta(t, 100.0, curve.Payout(100), 1e-6)
}

func TestFitCurve_ExponentialRecoversParams(t *testing.T) {
	// Exact exponential data: payout = 100 * exp(-0.3 * (rank-1)).
	ranks := []int{1, 2, 3, 5, 8}
	payouts := make([]float64, len(ranks))
	for i, r := range ranks {
		payouts[i] = 100 * math.Exp(-0.3*float64(r-1))
	}

	curve, err := FitCurve(Exponential, ranks, payouts)
	require.NoError(t, err)

	assert.Equal(t, Exponential, curve.Kind())
	scale, shape := curve.Params()
	assert.InDelta(t, 100.0, scale, 1e-6)
	assert.InDelta(t, 0.3, shape, 1e-9)
	assert.InDelta(t, 100.0, curve.Payout(1), 1e-6)
}

func TestFitCurve_Errors(t *testing.T) {
	tests := []struct {
		name    string
		kind    CurveKind
		ranks   []int
		payouts []float64
	}{
		{"length mismatch", PowerLaw, []int{1, 2}, []float64{10}},
		{"too few points", PowerLaw, []int{1}, []float64{10}},
		{"rank below one", PowerLaw, []int{0, 2}, []float64{10, 5}},
		{"non-positive payout", Exponential, []int{1, 2}, []float64{10, 0}},
		{"unknown kind", CurveKind("parabolic"), []int{1, 2}, []float64{10, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitCurve(tt.kind, tt.ranks, tt.payouts)
			assert.Error(t, err)
		})
	}
}

func TestPayout_InvalidRank(t *testing.T) {
	curve, err := FitCurve(PowerLaw, []int{1, 2}, []float64{100, 50})
	require.NoError(t, err)
	assert.Equal(t, 0.0, curve.Payout(0))
	assert.Equal(t, 0.0, curve.Payout(-3))
}

func TestExpectedPayout(t *testing.T) {
	curve := powerLawCurve{scale: 100, exponent: 1}

	// 100/1 + 100/2 + 100/3.
	assert.InDelta(t, 100.0+50.0+100.0/3.0, ExpectedPayout(curve, 3), 1e-9)
	assert.Equal(t, 0.0, ExpectedPayout(curve, 0))
}
