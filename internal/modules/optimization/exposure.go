package optimization

import (
	"github.com/aristath/raceday/internal/milp"
)

// exposureTol guards the exposure ratio comparison against float noise.
const exposureTol = 1e-9

// ExposureBook tracks how often each entity and group has appeared across
// the rounds of one generation run. Not safe for concurrent use; the
// generator runs rounds sequentially by design.
type ExposureBook struct {
	entity map[string]int
	group  map[string]int
	rounds int
}

// NewExposureBook creates an empty book.
func NewExposureBook() *ExposureBook {
	return &ExposureBook{
		entity: make(map[string]int),
		group:  make(map[string]int),
	}
}

// Rounds returns the number of recorded lineups.
func (b *ExposureBook) Rounds() int { return b.rounds }

// EntityCount returns how many recorded lineups include the entity.
func (b *ExposureBook) EntityCount(id string) int { return b.entity[id] }

// GroupCount returns how many recorded lineups include the group at least
// once. A group is counted once per lineup regardless of stack size.
func (b *ExposureBook) GroupCount(group string) int { return b.group[group] }

// Fraction returns the entity's appearance fraction over recorded rounds.
func (b *ExposureBook) Fraction(id string) float64 {
	if b.rounds == 0 {
		return 0
	}
	return float64(b.entity[id]) / float64(b.rounds)
}

// Record adds one lineup to the book. groups maps entity ID to group.
func (b *ExposureBook) Record(entityIDs []string, groups map[string]string) {
	b.rounds++
	seenGroups := make(map[string]bool)
	for _, id := range entityIDs {
		b.entity[id]++
		if g := groups[id]; g != "" && !seenGroups[g] {
			seenGroups[g] = true
			b.group[g]++
		}
	}
}

// Reset clears the book for a fresh run.
func (b *ExposureBook) Reset() {
	b.entity = make(map[string]int)
	b.group = make(map[string]int)
	b.rounds = 0
}

// ApplyExposureConstraints blocks any entity or group whose selection this
// round would push its appearance fraction over the cap. The fraction is
// evaluated prospectively, (count+1)/(rounds+1), so the cap holds at every
// point during generation, not just at the end. The first round is exempt:
// with zero completed rounds every selection would read as 100% exposure
// and any cap below 1 would block the whole pool.
func ApplyExposureConstraints(
	m *milp.Model,
	candidates []Candidate,
	sel []milp.Var,
	book *ExposureBook,
	maxEntity, maxGroup float64,
) {
	if book.Rounds() == 0 {
		return
	}
	nextRounds := float64(book.Rounds() + 1)

	for i, c := range candidates {
		next := float64(book.EntityCount(c.ID)+1) / nextRounds
		if next > maxEntity+exposureTol {
			m.AddConstraint(milp.Expr{Terms: []milp.Term{{Var: sel[i], Coef: 1}}}, milp.LessEq, 0)
		}
	}

	for group, members := range groupMembers(candidates) {
		next := float64(book.GroupCount(group)+1) / nextRounds
		if next > maxGroup+exposureTol {
			terms := make([]milp.Term, len(members))
			for j, i := range members {
				terms[j] = milp.Term{Var: sel[i], Coef: 1}
			}
			m.AddConstraint(milp.Expr{Terms: terms}, milp.LessEq, 0)
		}
	}
}
