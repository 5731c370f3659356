// Package qp implements a primal active-set method for convex quadratic
// programs with linear equality and inequality constraints,
//
//	minimize ½ xᵀGx + cᵀx  subject to  Ae x = be, Ai x ≥ bi,
//
// following Nocedal & Wright, Numerical Optimization, chapter 16. Starting
// from a feasible point the solver repeatedly solves the equality-constrained
// subproblem defined by the current working set, takes full or blocked steps
// along the resulting direction, and adds or drops inequality constraints
// until the KKT conditions are certified.
package qp

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/zhengang-zhong/ocp-solver/matext"
)

// DropRule selects which active constraint leaves the working set when the
// step is zero but some inequality multiplier is negative. Both rules are
// valid active-set strategies; they may visit different working sets on the
// way to the same optimum.
type DropRule int

const (
	// DropMostNegative drops the active row with the most negative
	// multiplier, the first such row by index on ties.
	DropMostNegative DropRule = iota
	// DropFirstNegative drops the first active row, in working-set order,
	// whose multiplier is negative.
	DropFirstNegative
)

// Settings controls the numeric behavior of a solve. The zero value selects
// the defaults.
type Settings struct {
	// ZeroTol is the near-zero snap applied to every subproblem solution:
	// entries with magnitude below it are set to exact zero so the zero-step
	// and multiplier-sign tests are stable. Defaults to 1e-10.
	ZeroTol float64
	// ActiveTol is the tolerance used to verify feasibility of the starting
	// point and to classify an inequality as initially active. Defaults to
	// 1e-9.
	ActiveTol float64
	// MaxIterations bounds the number of active-set iterations. Exceeding it
	// reports ErrIterationLimit together with the latest iterate.
	// Defaults to 50*(nx+ni) with a floor of 100.
	MaxIterations int
	// DropRule selects the constraint-dropping tie-break.
	DropRule DropRule
}

func (s Settings) withDefaults(nx, ni int) Settings {
	if s.ZeroTol <= 0 {
		s.ZeroTol = 1e-10
	}
	if s.ActiveTol <= 0 {
		s.ActiveTol = 1e-9
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = 50 * (nx + ni)
		if s.MaxIterations < 100 {
			s.MaxIterations = 100
		}
	}
	return s
}

// Result holds the outcome of a solve.
type Result struct {
	// X is the final primal point.
	X *mat.VecDense
	// Lambda holds the Lagrange multipliers of the final working set,
	// equality constraints first, then the active inequalities in the order
	// they entered the set. It is nil when the final working set is empty.
	Lambda *mat.VecDense
	// Active lists the Ai row indices active at X, in working-set order, so
	// Lambda entry ne+k belongs to inequality row Active[k].
	Active []int
	// Iterations is the number of subproblem solves performed.
	Iterations int
}

// Solve runs the active-set method on p. It returns ErrInfeasibleStart when
// the starting point violates a constraint, ErrSingularKKT when a working
// set produces a rank-deficient KKT system, and ErrIterationLimit, together
// with the latest iterate, when the iteration budget is exhausted.
func Solve(p *Problem, s Settings) (*Result, error) {
	nx, ne, ni := p.dims()
	s = s.withDefaults(nx, ni)

	if matext.NaNOrInf(p.G) || matext.NaNOrInf(p.C) {
		return nil, ErrInvalidInput
	}

	x := p.start(nx)
	if err := checkFeasible(p, x, ne, ni, s.ActiveTol); err != nil {
		return nil, err
	}

	ws := newWorkingSet(p, x, nx, ne, ni, s.ActiveTol)

	var lambda *mat.VecDense
	for iter := 1; iter <= s.MaxIterations; iter++ {
		pk, lam, err := solveSubproblem(p.G, p.C, ws.coeff(), x, s.ZeroTol)
		if err != nil {
			return nil, err
		}
		lambda = lam

		if isZero(pk) {
			// Stationary for the current working set. Optimal iff every
			// inequality multiplier is non-negative; otherwise drop one
			// negative-multiplier constraint and resolve without moving.
			k := dropCandidate(lam, ne, len(ws.active), s.DropRule)
			if k < 0 {
				return &Result{X: x, Lambda: lambda, Active: ws.activeRows(), Iterations: iter}, nil
			}
			ws.drop(k)
			continue
		}

		// Maximal feasible step along pk: a full Newton step unless an
		// inactive constraint blocks it first.
		alpha := 1.0
		blocking := -1
		for k, idx := range ws.inactive {
			a, b := ws.row(idx)
			ap := mat.Dot(a, pk)
			if ap >= -s.ZeroTol {
				continue // step does not move toward this boundary
			}
			ratio := (b - mat.Dot(a, x)) / ap
			if ratio < alpha {
				alpha = ratio
				blocking = k
			}
		}

		x.AddScaledVec(x, alpha, pk)
		if blocking >= 0 {
			ws.activate(blocking)
		}
	}

	return &Result{X: x, Lambda: lambda, Active: ws.activeRows(), Iterations: s.MaxIterations}, ErrIterationLimit
}

// checkFeasible verifies Ae x = be and Ai x ≥ bi at the starting point.
func checkFeasible(p *Problem, x mat.Vector, ne, ni int, tol float64) error {
	if ne > 0 {
		r := mat.NewVecDense(ne, nil)
		r.MulVec(p.Ae, x)
		for i := 0; i < ne; i++ {
			if math.Abs(r.AtVec(i)-p.Be.AtVec(i)) > tol {
				return ErrInfeasibleStart
			}
		}
	}
	if ni > 0 {
		r := mat.NewVecDense(ni, nil)
		r.MulVec(p.Ai, x)
		for i := 0; i < ni; i++ {
			if r.AtVec(i)-p.Bi.AtVec(i) < -tol {
				return ErrInfeasibleStart
			}
		}
	}
	return nil
}

// isZero reports whether every entry of the snapped step is exactly zero.
func isZero(v *mat.VecDense) bool {
	for i := 0; i < v.Len(); i++ {
		if v.AtVec(i) != 0 {
			return false
		}
	}
	return true
}

// dropCandidate returns the index (in working-set order) of the active
// inequality to drop, or -1 when every inequality multiplier is ≥ 0 and the
// iterate is optimal. lam is the full multiplier vector; the first ne entries
// belong to equality rows, whose sign is unconstrained.
func dropCandidate(lam *mat.VecDense, ne, nActive int, rule DropRule) int {
	k := -1
	most := 0.0
	for i := 0; i < nActive; i++ {
		l := lam.AtVec(ne + i)
		if l >= 0 {
			continue
		}
		if rule == DropFirstNegative {
			return i
		}
		if l < most {
			most = l
			k = i
		}
	}
	return k
}
