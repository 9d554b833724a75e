package conservation

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

// validScenario is a physically consistent 40-car field.
func validScenario() Scenario {
	starts := make([]float64, 40)
	finishes := make([]float64, 40)
	lapsLed := make([]float64, 40)
	fastest := make([]float64, 40)
	for i := 0; i < 40; i++ {
		starts[i] = float64(i + 1)
		finishes[i] = float64(i + 1)
	}
	lapsLed[0] = 120
	lapsLed[1] = 80
	fastest[0] = 100
	fastest[2] = 60
	return Scenario{
		LapsLed:         lapsLed,
		FastestLaps:     fastest,
		StartPositions:  starts,
		FinishPositions: finishes,
		RaceLength:      200,
		GreenFlagLaps:   180,
	}
}

func TestValidate_PassesConsistentScenario(t *testing.T) {
	v := New(testLogger())

	rec := v.Validate(validScenario())

	assert.True(t, rec.Passed)
	assert.Empty(t, rec.Reasons)

	stats := v.Stats()
	assert.Equal(t, int64(1), stats.TotalValidated)
	assert.Equal(t, int64(0), stats.TotalRejected)
}

func TestValidate_RejectsExcessLapsLed(t *testing.T) {
	v := New(testLogger())

	s := validScenario()
	s.LapsLed = make([]float64, 40)
	s.LapsLed[0] = 150
	s.LapsLed[1] = 70
	s.LapsLed[2] = 40
	s.LapsLed[3] = 30 // 290 laps led in a 200-lap race

	rec := v.Validate(s)

	require.False(t, rec.Passed)
	require.Len(t, rec.Reasons, 1)
	assert.Contains(t, rec.Reasons[0], "lap")

	stats := v.Stats()
	assert.Equal(t, int64(1), stats.TotalRejected)
	assert.Equal(t, int64(1), stats.ByReason[ReasonLapsLed])
}

func TestValidate_RejectsExcessFastestLaps(t *testing.T) {
	v := New(testLogger())

	s := validScenario()
	s.FastestLaps = make([]float64, 40)
	s.FastestLaps[0] = 150
	s.FastestLaps[1] = 60 // 210 fastest laps across 180 green-flag laps

	rec := v.Validate(s)

	require.False(t, rec.Passed)
	assert.Contains(t, rec.Reasons[0], "fastest")
	assert.Equal(t, int64(1), v.Stats().ByReason[ReasonFastestLaps])
}

func TestValidate_RejectsImplausibleChurn(t *testing.T) {
	v := New(testLogger())

	s := validScenario()
	// Everyone swaps ends of the field: total movement 800 against a
	// bound of max(40, min(80, 18)) = 40.
	for i := range s.StartPositions {
		s.FinishPositions[i] = float64(len(s.StartPositions) - i)
	}

	rec := v.Validate(s)

	require.False(t, rec.Passed)
	assert.Contains(t, rec.Reasons[0], "churn")
	assert.Equal(t, int64(1), v.Stats().ByReason[ReasonPositionChurn])
}

func TestValidate_AccumulatesAllReasons(t *testing.T) {
	v := New(testLogger())

	s := validScenario()
	s.LapsLed[0] = 500
	s.FastestLaps[0] = 500
	for i := range s.StartPositions {
		s.FinishPositions[i] = float64(len(s.StartPositions) - i)
	}

	rec := v.Validate(s)

	require.False(t, rec.Passed)
	assert.Len(t, rec.Reasons, 3)

	stats := v.Stats()
	// One scenario, one rejection, three per-reason counts.
	assert.Equal(t, int64(1), stats.TotalRejected)
	assert.Equal(t, int64(1), stats.ByReason[ReasonLapsLed])
	assert.Equal(t, int64(1), stats.ByReason[ReasonFastestLaps])
	assert.Equal(t, int64(1), stats.ByReason[ReasonPositionChurn])
}

func TestValidate_ExactBoundaryPasses(t *testing.T) {
	v := New(testLogger())

	s := validScenario()
	s.LapsLed = make([]float64, 40)
	s.LapsLed[0] = 200 // exactly the race length

	rec := v.Validate(s)
	assert.True(t, rec.Passed)
}

func TestValidate_MismatchedPositionsIsChurnFailure(t *testing.T) {
	v := New(testLogger())

	s := validScenario()
	s.FinishPositions = s.FinishPositions[:39]

	rec := v.Validate(s)
	require.False(t, rec.Passed)
	assert.Contains(t, rec.Reasons[0], "churn")
}

func TestWithChurnBound_SwapsPolicy(t *testing.T) {
	// A bound of zero rejects any movement at all.
	v := New(testLogger(), WithChurnBound(func(int, float64) float64 { return 0 }))

	s := validScenario()
	s.FinishPositions[0] = 2
	s.FinishPositions[1] = 1

	rec := v.Validate(s)
	assert.False(t, rec.Passed)
}

func TestWithChecks_ReplacesInvariants(t *testing.T) {
	rejectAll := Check{
		Key: "always",
		Fn:  func(Scenario) (bool, string) { return false, "always rejected" },
	}
	v := New(testLogger(), WithChecks(rejectAll))

	rec := v.Validate(validScenario())
	require.False(t, rec.Passed)
	assert.Equal(t, []string{"always rejected"}, rec.Reasons)
	assert.Equal(t, int64(1), v.Stats().ByReason["always"])
}

func TestValidatePayload_Malformed(t *testing.T) {
	v := New(testLogger())

	rec := v.ValidatePayload(map[string]any{
		"laps_led": "not an array",
	})

	require.False(t, rec.Passed)
	require.Len(t, rec.Reasons, 1)
	assert.Contains(t, rec.Reasons[0], "malformed")

	stats := v.Stats()
	assert.Equal(t, int64(1), stats.TotalValidated)
	assert.Equal(t, int64(1), stats.TotalRejected)
	assert.Equal(t, int64(1), stats.ByReason[ReasonMalformed])
}

func TestValidatePayload_WellFormed(t *testing.T) {
	v := New(testLogger())

	rec := v.ValidatePayload(map[string]any{
		"laps_led":         []any{100.0, 50.0},
		"fastest_laps":     []any{90, 30},
		"start_positions":  []any{1, 2},
		"finish_positions": []any{2, 1},
		"race_length":      200.0,
		"green_flag_laps":  180,
	})

	assert.True(t, rec.Passed)
}

func TestResetStats(t *testing.T) {
	v := New(testLogger())
	v.Validate(validScenario())
	v.ResetStats()

	stats := v.Stats()
	assert.Equal(t, int64(0), stats.TotalValidated)
	assert.Equal(t, int64(0), stats.TotalRejected)
	assert.Empty(t, stats.ByReason)
	assert.Equal(t, 0.0, stats.RejectionRate())
}

func TestStats_ConcurrentValidation(t *testing.T) {
	v := New(testLogger())

	bad := validScenario()
	bad.LapsLed[0] = 10000

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				v.Validate(validScenario())
				v.Validate(bad)
			}
		}()
	}
	wg.Wait()

	stats := v.Stats()
	assert.Equal(t, int64(800), stats.TotalValidated)
	assert.Equal(t, int64(400), stats.TotalRejected)
	assert.InDelta(t, 0.5, stats.RejectionRate(), 1e-12)
}

func TestDefaultChurnBound(t *testing.T) {
	// Long race: min(fieldSize*2, green/10) governs.
	assert.Equal(t, 50.0, DefaultChurnBound(40, 500))
	// Short race: floored at fieldSize.
	assert.Equal(t, 40.0, DefaultChurnBound(40, 100))
	// Very long race: capped at fieldSize*2.
	assert.Equal(t, 80.0, DefaultChurnBound(40, 5000))
}
