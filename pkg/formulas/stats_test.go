package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-12)
	assert.Equal(t, 0.0, Mean(nil))
}

func TestStdDevAndVariance(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	v := Variance(data)
	s := StdDev(data)
	assert.InDelta(t, v, s*s, 1e-9)
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, Variance(nil))
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	assert.InDelta(t, 1.0, Correlation(x, y), 1e-9)

	inv := []float64{10, 8, 6, 4, 2}
	assert.InDelta(t, -1.0, Correlation(x, inv), 1e-9)

	assert.Equal(t, 0.0, Correlation(x, []float64{1, 2}))
	assert.Equal(t, 0.0, Correlation(nil, nil))
}
