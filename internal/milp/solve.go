package milp

import (
	"context"
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Status reports the outcome of a solve.
type Status int

const (
	// StatusOptimal means the search completed and the incumbent is optimal.
	StatusOptimal Status = iota
	// StatusInfeasible means the search completed without any integral solution.
	StatusInfeasible
	// StatusTimeLimit means the wall-clock budget expired before the search
	// completed. Callers must treat this the same as infeasibility.
	StatusTimeLimit
	// StatusCancelled means the context was cancelled mid-search.
	StatusCancelled
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusTimeLimit:
		return "time_limit"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Solution holds the best integral solution found, if any.
type Solution struct {
	Status    Status
	Objective float64
	Nodes     int // branch-and-bound nodes explored

	values []float64
}

// Value returns the solved value of a variable. Zero when no solution exists.
func (s *Solution) Value(v Var) float64 {
	if s.values == nil || int(v) >= len(s.values) {
		return 0
	}
	return s.values[int(v)]
}

// IsSet reports whether a binary variable is selected (value > 0.5).
func (s *Solution) IsSet(v Var) bool {
	return s.Value(v) > 0.5
}

const (
	// intTol is the integrality tolerance for relaxation values.
	intTol = 1e-6
	// pruneEps guards incumbent-bound pruning against float noise.
	pruneEps = 1e-9
	// feasTol is the feasibility tolerance for constant rows.
	feasTol = 1e-7
	// simplexTol is the pivot tolerance handed to gonum's simplex. It must
	// be a small positive value: gonum applies it literally in the Bland
	// pivot test, and a zero tolerance makes degenerate relaxations abort
	// with spurious unbounded or ill-conditioned errors.
	simplexTol = 1e-10
)

// ErrUnbounded indicates a modeling error: the relaxation had no finite
// optimum even though every variable carries finite bounds.
var ErrUnbounded = errors.New("milp: relaxation unbounded, model is malformed")

type searcher struct {
	m *Model

	ctx         context.Context
	hasDeadline bool
	deadline    time.Time

	fix []int // per variable: -1 unfixed, 0/1 fixed (binaries only)

	found     bool
	best      float64
	bestX     []float64
	timedOut  bool
	cancelled bool
	nodes     int
}

// Solve runs branch and bound with the given wall-clock budget.
// timeLimit <= 0 disables the budget. The returned error is reserved for
// malformed models; infeasibility and timeouts are reported via Status.
func (m *Model) Solve(ctx context.Context, timeLimit time.Duration) (*Solution, error) {
	s := &searcher{
		m:    m,
		ctx:  ctx,
		best: math.Inf(-1),
		fix:  make([]int, m.NumVars()),
	}
	for i := range s.fix {
		s.fix[i] = -1
	}
	if timeLimit > 0 {
		s.hasDeadline = true
		s.deadline = time.Now().Add(timeLimit)
	}

	if err := s.branch(); err != nil {
		return nil, err
	}

	sol := &Solution{Nodes: s.nodes}
	switch {
	case s.cancelled:
		sol.Status = StatusCancelled
	case s.timedOut:
		sol.Status = StatusTimeLimit
	case s.found:
		sol.Status = StatusOptimal
	default:
		sol.Status = StatusInfeasible
	}
	if s.found {
		sol.Objective = s.best
		sol.values = s.bestX
	}
	return sol, nil
}

// expired checks the soft deadline and context at node granularity.
// Each node costs one LP solve, so per-node checks are cheap in proportion.
func (s *searcher) expired() bool {
	select {
	case <-s.ctx.Done():
		s.cancelled = true
		return true
	default:
	}
	if s.hasDeadline && time.Now().After(s.deadline) {
		s.timedOut = true
		return true
	}
	return false
}

// branch processes one node: relax, prune, record or split.
func (s *searcher) branch() error {
	if s.expired() {
		return nil
	}
	s.nodes++

	x, relaxObj, feasible, err := s.relax()
	if err != nil {
		return err
	}
	if !feasible {
		return nil
	}

	// Incumbent-bound pruning: the relaxation upper-bounds every completion.
	if s.found && relaxObj <= s.best+pruneEps {
		return nil
	}

	// Most fractional unfixed binary.
	branchVar := -1
	worst := intTol
	for i, k := range s.m.kinds {
		if k != Binary || s.fix[i] >= 0 {
			continue
		}
		d := math.Abs(x[i] - math.Round(x[i]))
		if d > worst {
			worst = d
			branchVar = i
		}
	}

	if branchVar < 0 {
		// Integral: new incumbent.
		for i, k := range s.m.kinds {
			if k == Binary {
				x[i] = math.Round(x[i])
			}
		}
		if !s.found || relaxObj > s.best {
			s.found = true
			s.best = relaxObj
			s.bestX = x
		}
		return nil
	}

	// Round-nearest child first: tightens the incumbent early.
	first := int(math.Round(x[branchVar]))
	for _, v := range []int{first, 1 - first} {
		s.fix[branchVar] = v
		if err := s.branch(); err != nil {
			s.fix[branchVar] = -1
			return err
		}
	}
	s.fix[branchVar] = -1
	return nil
}

// relax solves the node's LP relaxation. Fixed binaries are substituted out
// so the equality system keeps full row rank. Returns the full-length
// variable vector, the relaxation objective, and a feasibility flag.
func (s *searcher) relax() ([]float64, float64, bool, error) {
	m := s.m
	n := m.NumVars()

	// Free-variable index map; fixed binaries contribute constants.
	freeIdx := make([]int, n)
	free := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if m.kinds[i] == Binary && s.fix[i] >= 0 {
			freeIdx[i] = -1
			continue
		}
		freeIdx[i] = len(free)
		free = append(free, i)
	}
	nFree := len(free)

	// Objective over free variables (minimization form: negate).
	// Fixed binaries drop out of the LP cost; their contribution is picked
	// up when the objective is re-evaluated on the recovered point.
	c := make([]float64, nFree)
	for _, t := range m.objective.Terms {
		if j := freeIdx[t.Var]; j >= 0 {
			c[j] -= t.Coef
		}
	}

	var (
		gRows []float64
		h     []float64
		aRows []float64
		b     []float64
	)
	appendIneq := func(row []float64, rhs float64) {
		gRows = append(gRows, row...)
		h = append(h, rhs)
	}

	for _, con := range m.constraints {
		row := make([]float64, nFree)
		rhs := con.rhs
		for _, t := range con.expr.Terms {
			if j := freeIdx[t.Var]; j >= 0 {
				row[j] += t.Coef
			} else {
				rhs -= t.Coef * float64(s.fix[t.Var])
			}
		}
		if allZero(row) {
			if !constantRowFeasible(con.sense, rhs) {
				return nil, 0, false, nil
			}
			continue
		}
		switch con.sense {
		case LessEq:
			appendIneq(row, rhs)
		case GreaterEq:
			appendIneq(negated(row), -rhs)
		case Equal:
			aRows = append(aRows, row...)
			b = append(b, rhs)
		}
	}

	// Fully fixed node: nothing left to relax, evaluate directly.
	if nFree == 0 {
		x := make([]float64, n)
		relaxObj := m.objective.Const
		for i := 0; i < n; i++ {
			x[i] = float64(s.fix[i])
		}
		for _, t := range m.objective.Terms {
			relaxObj += t.Coef * x[t.Var]
		}
		return x, relaxObj, true, nil
	}

	// Variable bounds as inequality rows (Convert treats variables as free).
	for j, i := range free {
		row := make([]float64, nFree)
		row[j] = 1
		appendIneq(row, m.upper[i])
		row = make([]float64, nFree)
		row[j] = -1
		appendIneq(row, -m.lower[i])
	}

	g := mat.NewDense(len(h), nFree, gRows)
	var a mat.Matrix
	if len(b) > 0 {
		a = mat.NewDense(len(b), nFree, aRows)
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, xStd, err := lp.Simplex(cStd, aStd, bStd, simplexTol, nil)
	if err != nil {
		switch {
		case errors.Is(err, lp.ErrInfeasible):
			return nil, 0, false, nil
		case errors.Is(err, lp.ErrUnbounded):
			return nil, 0, false, ErrUnbounded
		default:
			// Numerical trouble (singular basis etc.): treat the node as
			// infeasible rather than abort the whole search, but leave a
			// trace so a failure at the root stays attributable.
			m.log.Warn().
				Err(err).
				Str("model", m.name).
				Int("node", s.nodes).
				Msg("Simplex failed on node relaxation")
			return nil, 0, false, nil
		}
	}

	// Recover original variables: x = xp - xn with [xp; xn; slack] layout.
	x := make([]float64, n)
	relaxObj := m.objective.Const
	for j, i := range free {
		v := xStd[j] - xStd[nFree+j]
		// Clamp tiny bound violations from simplex arithmetic.
		v = math.Max(m.lower[i], math.Min(m.upper[i], v))
		x[i] = v
	}
	for i := 0; i < n; i++ {
		if freeIdx[i] < 0 {
			x[i] = float64(s.fix[i])
		}
	}
	for _, t := range m.objective.Terms {
		relaxObj += t.Coef * x[t.Var]
	}
	return x, relaxObj, true, nil
}

func allZero(row []float64) bool {
	for _, v := range row {
		if v != 0 {
			return false
		}
	}
	return true
}

func constantRowFeasible(sense Sense, rhs float64) bool {
	switch sense {
	case LessEq:
		return rhs >= -feasTol
	case GreaterEq:
		return rhs <= feasTol
	default:
		return math.Abs(rhs) <= feasTol
	}
}

func negated(row []float64) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = -v
	}
	return out
}
