package optimization

import (
	"fmt"

	"github.com/aristath/raceday/internal/milp"
)

// budgetTol absorbs float accumulation noise when re-checking lineup cost.
const budgetTol = 1e-6

// ApplyRosterConstraints adds the roster construction rows: exact roster
// size, budget cap, and per-group stacking bounds. Stacking applies only to
// groups whose pool membership is at least the minimum stack, so a group
// too small to ever satisfy the minimum does not make the model infeasible.
func ApplyRosterConstraints(m *milp.Model, candidates []Candidate, sel []milp.Var, rules RosterRules) {
	sizeTerms := make([]milp.Term, len(sel))
	costTerms := make([]milp.Term, 0, len(sel))
	for i, v := range sel {
		sizeTerms[i] = milp.Term{Var: v, Coef: 1}
		if candidates[i].Cost != 0 {
			costTerms = append(costTerms, milp.Term{Var: v, Coef: candidates[i].Cost})
		}
	}
	m.AddConstraint(milp.Expr{Terms: sizeTerms}, milp.Equal, float64(rules.RosterSize()))
	m.AddConstraint(milp.Expr{Terms: costTerms}, milp.LessEq, rules.BudgetCap())

	if rules.MinStack() == 0 && rules.MaxStack() >= rules.RosterSize() {
		return
	}
	for group, members := range groupMembers(candidates) {
		if group == "" || len(members) < rules.MinStack() {
			continue
		}
		terms := make([]milp.Term, len(members))
		for j, i := range members {
			terms[j] = milp.Term{Var: sel[i], Coef: 1}
		}
		m.AddConstraint(milp.Expr{Terms: terms}, milp.GreaterEq, float64(rules.MinStack()))
		m.AddConstraint(milp.Expr{Terms: terms}, milp.LessEq, float64(rules.MaxStack()))
	}
}

// ValidateRoster re-checks a solved lineup against the rules, independently
// of the solver. A violation here means the model construction and the
// rules disagree, which is a bug worth surfacing loudly.
func ValidateRoster(selected []Candidate, pool []Candidate, rules RosterRules) error {
	if len(selected) != rules.RosterSize() {
		return fmt.Errorf("lineup has %d entities, rules require %d", len(selected), rules.RosterSize())
	}

	seen := make(map[string]bool, len(selected))
	cost := 0.0
	stacks := make(map[string]int)
	for _, c := range selected {
		if seen[c.ID] {
			return fmt.Errorf("entity %s selected twice", c.ID)
		}
		seen[c.ID] = true
		cost += c.Cost
		if c.Group != "" {
			stacks[c.Group]++
		}
	}
	if cost > rules.BudgetCap()+budgetTol {
		return fmt.Errorf("lineup cost %.2f exceeds budget cap %.2f", cost, rules.BudgetCap())
	}

	poolSizes := make(map[string]int)
	for _, c := range pool {
		if c.Group != "" {
			poolSizes[c.Group]++
		}
	}
	for group, size := range poolSizes {
		if size < rules.MinStack() {
			continue
		}
		n := stacks[group]
		if n < rules.MinStack() {
			return fmt.Errorf("group %s has %d entities, below min stack %d", group, n, rules.MinStack())
		}
		if n > rules.MaxStack() {
			return fmt.Errorf("group %s has %d entities, above max stack %d", group, n, rules.MaxStack())
		}
	}
	return nil
}

func groupMembers(candidates []Candidate) map[string][]int {
	members := make(map[string][]int)
	for i, c := range candidates {
		if c.Group != "" {
			members[c.Group] = append(members[c.Group], i)
		}
	}
	return members
}
