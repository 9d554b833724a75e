// Package milp provides a small mixed-integer linear programming layer:
// a model builder (binary and bounded continuous variables, linear
// constraints, maximize objective) and a depth-first branch-and-bound
// solver whose node relaxations are solved with gonum's simplex method.
//
// The search follows the usual scheme: solve the LP relaxation, prune by
// incumbent bound, branch on the most fractional binary (round-nearest
// child first), and honor a soft wall-clock budget with per-node deadline
// checks. Exceeding the budget reports StatusTimeLimit rather than hanging.
package milp

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// VarKind distinguishes continuous from binary decision variables.
type VarKind int

const (
	// Continuous is a real-valued variable with finite bounds.
	Continuous VarKind = iota
	// Binary is a 0/1 decision variable.
	Binary
)

// Var identifies a variable within its model.
type Var int

// Term is a single coefficient*variable product in a linear expression.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is a linear expression: sum of terms plus a constant.
// The zero value is an empty expression.
type Expr struct {
	Terms []Term
	Const float64
}

// Add appends a term to the expression and returns the result.
func (e Expr) Add(v Var, coef float64) Expr {
	e.Terms = append(append([]Term{}, e.Terms...), Term{Var: v, Coef: coef})
	return e
}

// Plus returns the sum of two expressions.
func (e Expr) Plus(o Expr) Expr {
	out := Expr{
		Terms: make([]Term, 0, len(e.Terms)+len(o.Terms)),
		Const: e.Const + o.Const,
	}
	out.Terms = append(out.Terms, e.Terms...)
	out.Terms = append(out.Terms, o.Terms...)
	return out
}

// Minus returns e - o.
func (e Expr) Minus(o Expr) Expr {
	return e.Plus(o.Scale(-1))
}

// Scale returns the expression multiplied by a scalar.
func (e Expr) Scale(f float64) Expr {
	out := Expr{
		Terms: make([]Term, len(e.Terms)),
		Const: e.Const * f,
	}
	for i, t := range e.Terms {
		out.Terms[i] = Term{Var: t.Var, Coef: t.Coef * f}
	}
	return out
}

// Sense is the comparison direction of a constraint.
type Sense int

const (
	// LessEq constrains expr <= rhs.
	LessEq Sense = iota
	// GreaterEq constrains expr >= rhs.
	GreaterEq
	// Equal constrains expr == rhs.
	Equal
)

type constraint struct {
	expr  Expr
	sense Sense
	rhs   float64
}

// Model is a MILP instance under construction. Not safe for concurrent use.
type Model struct {
	name        string
	log         zerolog.Logger
	names       []string
	kinds       []VarKind
	lower       []float64
	upper       []float64
	objective   Expr
	constraints []constraint
}

// New creates an empty model.
func New(name string) *Model {
	return &Model{name: name, log: zerolog.Nop()}
}

// SetLogger attaches a logger for solver diagnostics. The default discards.
func (m *Model) SetLogger(log zerolog.Logger) {
	m.log = log
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// NumVars returns the number of variables added so far.
func (m *Model) NumVars() int { return len(m.kinds) }

// NumConstraints returns the number of constraints added so far.
func (m *Model) NumConstraints() int { return len(m.constraints) }

// Binary adds a 0/1 decision variable.
func (m *Model) Binary(name string) Var {
	m.names = append(m.names, name)
	m.kinds = append(m.kinds, Binary)
	m.lower = append(m.lower, 0)
	m.upper = append(m.upper, 1)
	return Var(len(m.kinds) - 1)
}

// Continuous adds a real-valued variable with finite bounds lo <= x <= hi.
func (m *Model) Continuous(name string, lo, hi float64) (Var, error) {
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) || math.IsNaN(lo) || math.IsNaN(hi) {
		return -1, fmt.Errorf("variable %s: bounds must be finite, got [%v, %v]", name, lo, hi)
	}
	if lo > hi {
		return -1, fmt.Errorf("variable %s: lower bound %v exceeds upper bound %v", name, lo, hi)
	}
	m.names = append(m.names, name)
	m.kinds = append(m.kinds, Continuous)
	m.lower = append(m.lower, lo)
	m.upper = append(m.upper, hi)
	return Var(len(m.kinds) - 1), nil
}

// AddConstraint records a linear constraint expr (sense) rhs.
// The expression constant is folded into the right-hand side.
func (m *Model) AddConstraint(e Expr, s Sense, rhs float64) {
	m.constraints = append(m.constraints, constraint{expr: e, sense: s, rhs: rhs - e.Const})
}

// Maximize sets the objective to maximize.
func (m *Model) Maximize(e Expr) {
	m.objective = e
}
