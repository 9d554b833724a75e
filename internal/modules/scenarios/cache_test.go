package scenarios

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCache_HitReturnsSameInstance(t *testing.T) {
	c := NewCache(zerolog.Nop())
	calls := 0
	produce := func(n int) (*mat.Dense, error) {
		calls++
		return mat.NewDense(n, 3, nil), nil
	}
	key := Key{Identifier: "daytona-500", ScenarioCount: 4}

	first, err := c.Get(key, produce)
	require.NoError(t, err)
	second, err := c.Get(key, produce)
	require.NoError(t, err)

	// Same instance, not an equal copy.
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestCache_DistinctKeysDistinctMatrices(t *testing.T) {
	c := NewCache(zerolog.Nop())
	produce := func(n int) (*mat.Dense, error) {
		return mat.NewDense(n, 3, nil), nil
	}

	a, err := c.Get(Key{Identifier: "daytona-500", ScenarioCount: 4}, produce)
	require.NoError(t, err)
	b, err := c.Get(Key{Identifier: "daytona-500", ScenarioCount: 8}, produce)
	require.NoError(t, err)
	d, err := c.Get(Key{Identifier: "bristol", ScenarioCount: 4}, produce)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.NotSame(t, a, d)
	assert.Equal(t, 3, c.Len())
}

func TestCache_ProducerError(t *testing.T) {
	c := NewCache(zerolog.Nop())
	boom := errors.New("simulator offline")

	_, err := c.Get(Key{Identifier: "x", ScenarioCount: 2}, func(int) (*mat.Dense, error) {
		return nil, boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestCache_RejectsWrongRowCount(t *testing.T) {
	c := NewCache(zerolog.Nop())

	_, err := c.Get(Key{Identifier: "x", ScenarioCount: 10}, func(int) (*mat.Dense, error) {
		return mat.NewDense(5, 3, nil), nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "requested 10")
}

func TestCache_RejectsNilMatrix(t *testing.T) {
	c := NewCache(zerolog.Nop())

	_, err := c.Get(Key{Identifier: "x", ScenarioCount: 2}, func(int) (*mat.Dense, error) {
		return nil, nil
	})
	assert.Error(t, err)
}

func TestCache_Clear(t *testing.T) {
	c := NewCache(zerolog.Nop())
	_, err := c.Get(Key{Identifier: "x", ScenarioCount: 2}, func(n int) (*mat.Dense, error) {
		return mat.NewDense(n, 1, nil), nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
