package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExposureBook_RecordAndFractions(t *testing.T) {
	b := NewExposureBook()
	groups := map[string]string{"a": "g1", "b": "g1", "c": "g2"}

	b.Record([]string{"a", "b"}, groups)
	b.Record([]string{"a", "c"}, groups)

	assert.Equal(t, 2, b.Rounds())
	assert.Equal(t, 2, b.EntityCount("a"))
	assert.Equal(t, 1, b.EntityCount("b"))
	assert.Equal(t, 0, b.EntityCount("z"))
	assert.InDelta(t, 1.0, b.Fraction("a"), 1e-12)
	assert.InDelta(t, 0.5, b.Fraction("b"), 1e-12)

	// g1 appeared in both lineups but counts once per lineup.
	assert.Equal(t, 2, b.GroupCount("g1"))
	assert.Equal(t, 1, b.GroupCount("g2"))
}

func TestExposureBook_GroupCountedOncePerLineup(t *testing.T) {
	b := NewExposureBook()
	groups := map[string]string{"a": "g1", "b": "g1"}

	// Both entities share a group: still one group appearance.
	b.Record([]string{"a", "b"}, groups)
	assert.Equal(t, 1, b.GroupCount("g1"))
}

func TestApplyExposureConstraints_FirstRoundExempt(t *testing.T) {
	candidates := []Candidate{{ID: "a", Group: "g1"}, {ID: "b", Group: "g1"}}
	m, sel := newTestModel(2)

	ApplyExposureConstraints(m, candidates, sel, NewExposureBook(), 0.5, 0.5)
	assert.Equal(t, 0, m.NumConstraints())
}

func TestApplyExposureConstraints_BlocksOverCap(t *testing.T) {
	candidates := []Candidate{{ID: "a", Group: "g1"}, {ID: "b", Group: "g2"}}
	m, sel := newTestModel(2)

	b := NewExposureBook()
	b.Record([]string{"a"}, map[string]string{"a": "g1"})

	// a would hit 2/2 entity exposure and g1 would hit 2/2 group exposure;
	// b and g2 stay at 1/2.
	ApplyExposureConstraints(m, candidates, sel, b, 0.5, 0.5)
	assert.Equal(t, 2, m.NumConstraints())
}

func TestExposureBook_Reset(t *testing.T) {
	b := NewExposureBook()
	b.Record([]string{"a"}, map[string]string{"a": "g1"})
	b.Reset()

	assert.Equal(t, 0, b.Rounds())
	assert.Equal(t, 0, b.EntityCount("a"))
	assert.Equal(t, 0, b.GroupCount("g1"))
	assert.Equal(t, 0.0, b.Fraction("a"))
}
