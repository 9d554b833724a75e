// Package conservation validates simulated race scenarios against physical
// consistency rules before they are allowed anywhere near the optimizer.
// A scenario that claims more laps led than the race has laps is not a bad
// prediction, it is an impossible one, and it gets vetoed here.
package conservation

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// Scenario is one simulated race outcome, per-entity arrays aligned by index.
type Scenario struct {
	LapsLed         []float64
	FastestLaps     []float64
	StartPositions  []float64
	FinishPositions []float64
	RaceLength      float64
	GreenFlagLaps   float64
}

// FieldSize returns the number of entities in the scenario.
func (s Scenario) FieldSize() int {
	return len(s.StartPositions)
}

// Record is the verdict for one scenario. A failed record always carries at
// least one reason; checks are evaluated independently and all reasons are
// accumulated, never short-circuited.
type Record struct {
	Passed  bool
	Reasons []string
}

// Reason keys used for per-reason rejection counters.
const (
	ReasonLapsLed       = "laps_led"
	ReasonFastestLaps   = "fastest_laps"
	ReasonPositionChurn = "position_churn"
	ReasonMalformed     = "malformed_payload"
)

// Check is one invariant: a stable counter key plus the predicate.
// The predicate returns pass=false with a human-readable reason on violation.
type Check struct {
	Key string
	Fn  func(Scenario) (bool, string)
}

// ChurnBoundFunc computes the maximum physically plausible total position
// movement for a field. It is a tunable policy, not a law of physics.
type ChurnBoundFunc func(fieldSize int, greenFlagLaps float64) float64

// DefaultChurnBound caps total rank churn at min(fieldSize*2, greenFlagLaps/10),
// floored at fieldSize so short races do not reject ordinary shuffling.
func DefaultChurnBound(fieldSize int, greenFlagLaps float64) float64 {
	bound := math.Min(float64(fieldSize)*2, greenFlagLaps/10)
	return math.Max(bound, float64(fieldSize))
}

// conservationTol absorbs float accumulation noise in the sum checks.
const conservationTol = 1e-9

// CheckLapsLed enforces that at most one entity leads any given lap.
func CheckLapsLed(s Scenario) (bool, string) {
	total := 0.0
	for _, v := range s.LapsLed {
		total += v
	}
	if total > s.RaceLength+conservationTol {
		return false, fmt.Sprintf(
			"lap conservation violated: %.1f total laps led exceeds race length %.1f",
			total, s.RaceLength)
	}
	return true, ""
}

// CheckFastestLaps enforces at most one fastest-lap winner per green-flag lap.
func CheckFastestLaps(s Scenario) (bool, string) {
	total := 0.0
	for _, v := range s.FastestLaps {
		total += v
	}
	if total > s.GreenFlagLaps+conservationTol {
		return false, fmt.Sprintf(
			"fastest-lap conservation violated: %.1f fastest laps exceeds %.1f green-flag laps",
			total, s.GreenFlagLaps)
	}
	return true, ""
}

// NewChurnCheck builds the rank-churn invariant around a bound policy.
func NewChurnCheck(bound ChurnBoundFunc) Check {
	return Check{
		Key: ReasonPositionChurn,
		Fn: func(s Scenario) (bool, string) {
			if len(s.StartPositions) != len(s.FinishPositions) {
				return false, fmt.Sprintf(
					"position churn unverifiable: %d start positions vs %d finish positions",
					len(s.StartPositions), len(s.FinishPositions))
			}
			churn := 0.0
			for i := range s.StartPositions {
				churn += math.Abs(s.FinishPositions[i] - s.StartPositions[i])
			}
			limit := bound(s.FieldSize(), s.GreenFlagLaps)
			if churn > limit+conservationTol {
				return false, fmt.Sprintf(
					"position churn violated: total movement %.1f exceeds bound %.1f",
					churn, limit)
			}
			return true, ""
		},
	}
}

// DefaultChecks returns the three standard invariants wired to a churn policy.
func DefaultChecks(bound ChurnBoundFunc) []Check {
	return []Check{
		{Key: ReasonLapsLed, Fn: CheckLapsLed},
		{Key: ReasonFastestLaps, Fn: CheckFastestLaps},
		NewChurnCheck(bound),
	}
}

// Stats is a snapshot of the process-wide rejection telemetry.
type Stats struct {
	TotalValidated int64
	TotalRejected  int64
	ByReason       map[string]int64
}

// RejectionRate returns rejected/validated, 0 for an empty window.
func (s Stats) RejectionRate() float64 {
	if s.TotalValidated == 0 {
		return 0
	}
	return float64(s.TotalRejected) / float64(s.TotalValidated)
}

// Validator checks scenarios against its configured invariants and owns the
// rejection statistics. Counter updates happen under a single mutex so
// concurrent batch validation never loses increments.
type Validator struct {
	checks  []Check
	workers int
	log     zerolog.Logger

	mu       sync.Mutex
	total    int64
	rejected int64
	byReason map[string]int64
}

// Option customizes a Validator.
type Option func(*Validator)

// WithChecks replaces the default invariant set (explicit dependency
// injection; there is no runtime discovery of check implementations).
func WithChecks(checks ...Check) Option {
	return func(v *Validator) { v.checks = checks }
}

// WithChurnBound keeps the default checks but swaps the churn bound policy.
func WithChurnBound(bound ChurnBoundFunc) Option {
	return func(v *Validator) { v.checks = DefaultChecks(bound) }
}

// WithWorkers sets the pool size used by BatchValidateParallel.
func WithWorkers(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.workers = n
		}
	}
}

// New creates a validator with the default invariants and churn policy.
func New(log zerolog.Logger, opts ...Option) *Validator {
	v := &Validator{
		checks:   DefaultChecks(DefaultChurnBound),
		workers:  8,
		byReason: make(map[string]int64),
		log:      log.With().Str("component", "conservation_validator").Logger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs every configured invariant over one scenario, accumulates
// all violation reasons, and updates the rejection statistics.
func (v *Validator) Validate(s Scenario) Record {
	var reasons []string
	var keys []string
	for _, c := range v.checks {
		if ok, reason := c.Fn(s); !ok {
			reasons = append(reasons, reason)
			keys = append(keys, c.Key)
		}
	}
	v.record(keys)
	return Record{Passed: len(reasons) == 0, Reasons: reasons}
}

// record updates counters under one critical section and emits the periodic
// rejection-rate telemetry every 100th validation.
func (v *Validator) record(failedKeys []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.total++
	if len(failedKeys) > 0 {
		v.rejected++
		for _, k := range failedKeys {
			v.byReason[k]++
		}
	}

	if v.total%100 == 0 {
		v.log.Warn().
			Int64("validated", v.total).
			Int64("rejected", v.rejected).
			Float64("rejection_rate", float64(v.rejected)/float64(v.total)).
			Msg("Scenario rejection telemetry")
	}
}

// Stats returns a copy of the current counters.
func (v *Validator) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.statsLocked()
}

func (v *Validator) statsLocked() Stats {
	byReason := make(map[string]int64, len(v.byReason))
	for k, n := range v.byReason {
		byReason[k] = n
	}
	return Stats{
		TotalValidated: v.total,
		TotalRejected:  v.rejected,
		ByReason:       byReason,
	}
}

// ResetStats zeroes all counters.
func (v *Validator) ResetStats() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.total = 0
	v.rejected = 0
	v.byReason = make(map[string]int64)
}
