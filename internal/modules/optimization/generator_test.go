package optimization

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGenerator() *Generator {
	return NewGenerator(NewLineupOptimizer(zerolog.Nop()), zerolog.Nop())
}

func TestGenerate_CompletesWithDistinctLineups(t *testing.T) {
	g := newTestGenerator()
	candidates := []Candidate{
		{ID: "a", Cost: 10}, {ID: "b", Cost: 10},
		{ID: "c", Cost: 10}, {ID: "d", Cost: 10},
	}
	cfg := meanConfig(t, 2, 100)
	cfg.NumLineups = 2
	cfg.MaxEntityExposure = 0.5

	p, err := g.Generate(context.Background(), "test-slate", candidates,
		meanMatrix(2, []float64{40, 30, 20, 10}), cfg)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, 2, p.Produced)
	assert.Equal(t, 2, p.Requested)
	assert.NotEmpty(t, p.RunID)
	assert.Equal(t, "test-slate", p.Identifier)

	// With a 50% cap over two lineups no entity can repeat.
	require.Len(t, p.Lineups, 2)
	assert.ElementsMatch(t, []string{"a", "b"}, p.Lineups[0].EntityIDs)
	assert.ElementsMatch(t, []string{"c", "d"}, p.Lineups[1].EntityIDs)
	assert.InDelta(t, 0.0, p.Diversity.MeanSimilarity, 1e-12)
}

func TestGenerate_StallsWhenPoolExhausted(t *testing.T) {
	g := newTestGenerator()
	candidates := []Candidate{{ID: "a", Cost: 10}, {ID: "b", Cost: 10}}
	cfg := meanConfig(t, 2, 100)
	cfg.NumLineups = 3
	cfg.MaxEntityExposure = 0.5

	p, err := g.Generate(context.Background(), "tiny-pool", candidates,
		meanMatrix(2, []float64{20, 10}), cfg)
	require.NoError(t, err)

	// Round two has every entity over the cap: normal termination.
	assert.Equal(t, StatusPartiallyCompleted, p.Status)
	assert.Equal(t, 1, p.Produced)
	assert.Equal(t, 3, p.Requested)
	assert.Len(t, p.Lineups, 1)
}

func TestGenerate_GroupExposureCap(t *testing.T) {
	g := newTestGenerator()
	candidates := []Candidate{
		{ID: "a", Cost: 10, Group: "g1"}, {ID: "b", Cost: 10, Group: "g1"},
		{ID: "c", Cost: 10, Group: "g2"}, {ID: "d", Cost: 10, Group: "g2"},
	}
	cfg := meanConfig(t, 2, 100)
	cfg.NumLineups = 2
	cfg.MaxGroupExposure = 0.5

	p, err := g.Generate(context.Background(), "group-cap", candidates,
		meanMatrix(2, []float64{40, 30, 20, 10}), cfg)
	require.NoError(t, err)

	require.Equal(t, 2, p.Produced)
	assert.ElementsMatch(t, []string{"a", "b"}, p.Lineups[0].EntityIDs)
	// g1 is used up after round one, so round two must come from g2.
	assert.ElementsMatch(t, []string{"c", "d"}, p.Lineups[1].EntityIDs)
}

func TestGenerate_SeedReproducible(t *testing.T) {
	candidates := []Candidate{
		{ID: "a", Cost: 10}, {ID: "b", Cost: 10},
		{ID: "c", Cost: 10}, {ID: "d", Cost: 10},
	}
	cfg := meanConfig(t, 2, 100)
	cfg.NumLineups = 2
	cfg.MaxEntityExposure = 0.5
	cfg.Seed = 42

	run := func() *Portfolio {
		p, err := newTestGenerator().Generate(context.Background(), "seeded",
			candidates, meanMatrix(2, []float64{40, 30, 20, 10}), cfg)
		require.NoError(t, err)
		return p
	}

	first := run()
	second := run()
	require.Equal(t, first.Produced, second.Produced)
	for i := range first.Lineups {
		assert.Equal(t, first.Lineups[i].EntityIDs, second.Lineups[i].EntityIDs)
	}
}

func TestGenerate_RejectsBadInputs(t *testing.T) {
	g := newTestGenerator()
	cfg := meanConfig(t, 2, 100)

	t.Run("invalid config", func(t *testing.T) {
		bad := cfg
		bad.NumLineups = 0
		_, err := g.Generate(context.Background(), "x",
			[]Candidate{{ID: "a"}, {ID: "b"}}, meanMatrix(2, []float64{1, 2}), bad)
		assert.Error(t, err)
	})
	t.Run("nil matrix", func(t *testing.T) {
		_, err := g.Generate(context.Background(), "x",
			[]Candidate{{ID: "a"}, {ID: "b"}}, nil, cfg)
		assert.Error(t, err)
	})
	t.Run("column mismatch", func(t *testing.T) {
		_, err := g.Generate(context.Background(), "x",
			[]Candidate{{ID: "a"}}, meanMatrix(2, []float64{1, 2}), cfg)
		assert.Error(t, err)
	})
}

func TestGenerate_LineupMetricsPopulated(t *testing.T) {
	g := newTestGenerator()
	candidates := []Candidate{{ID: "a", Cost: 30}, {ID: "b", Cost: 20}}
	cfg := meanConfig(t, 2, 100)

	p, err := g.Generate(context.Background(), "metrics", candidates,
		meanMatrix(4, []float64{15, 10}), cfg)
	require.NoError(t, err)
	require.Equal(t, 1, p.Produced)

	l := p.Lineups[0]
	assert.InDelta(t, 50.0, l.TotalCost, 1e-9)
	assert.NotEmpty(t, l.CVaR)
	assert.NotEmpty(t, l.Exposure)
	for _, frac := range l.Exposure {
		assert.InDelta(t, 1.0, frac, 1e-12)
	}
}
