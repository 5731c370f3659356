// Package sqp solves smooth nonlinear programs
//
//	minimize f(x)  subject to  cе(x) = 0, cᵢ(x) ≥ 0
//
// by sequential quadratic programming: each iteration builds a quadratic
// model of the Lagrangian with finite-difference derivatives, solves the
// resulting QP subproblem with the active-set method from the qp package,
// refreshes the multiplier estimates, and advances along the QP step with a
// backtracking line search on an L1 merit function.
//
// The starting point must be feasible: the QP subproblem is started from the
// zero step, which satisfies the linearized inequality constraints only when
// the current iterate does.
package sqp

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/zhengang-zhong/ocp-solver/numdiff"
	"github.com/zhengang-zhong/ocp-solver/qp"
)

// ErrIterationLimit is returned when the outer loop exhausts its iteration
// budget. The latest iterate is still returned alongside it.
var ErrIterationLimit = errors.New("sqp: iteration limit reached before convergence")

// Func is a scalar valued function of the decision vector. It aliases
// numdiff.Func so objectives and constraints can be differentiated directly.
type Func = numdiff.Func

// Problem specifies the nonlinear program.
type Problem struct {
	// N is the problem dimension.
	N int
	// Objective is f(x).
	Objective Func
	// EqCons are the equality constraints c(x) = 0.
	EqCons []Func
	// IneqCons are the inequality constraints c(x) ≥ 0.
	IneqCons []Func
	// X0 is the feasible starting point. nil means the origin.
	X0 mat.Vector
}

// Termination specifies the stopping criteria.
type Termination struct {
	// Accuracy bounds both the step infinity norm and the constraint
	// violation at a solution. Default 1e-6.
	Accuracy float64
	// MaxIterations bounds the outer SQP iterations. Default 100.
	MaxIterations int
}

// Settings bundles the solver configuration. The zero value selects the
// defaults.
type Settings struct {
	Stop Termination
	// Diff configures the finite difference scheme; nil selects central
	// differences with automatic steps.
	Diff *numdiff.Spec
	// QP configures the active-set subproblem solver.
	QP qp.Settings
}

// Status reports how a solve ended.
type Status int

const (
	// Converged means step norm and constraint violation dropped below the
	// requested accuracy.
	Converged Status = iota
	// IterationLimit means the iteration budget ran out first.
	IterationLimit
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case IterationLimit:
		return "iteration limit"
	}
	return "unknown"
}

// Result holds the outcome of a solve.
type Result struct {
	X *mat.VecDense
	F float64
	// Lambda holds one multiplier per constraint, equalities first then
	// inequalities in declaration order; inequality constraints inactive at
	// the solution carry a zero multiplier.
	Lambda     *mat.VecDense
	Iterations int
	Status     Status
}

// Solve runs the SQP iteration on p.
func Solve(p *Problem, s Settings) (*Result, error) {
	n := p.N
	if n <= 0 || p.Objective == nil {
		panic(errors.New("sqp: problem requires a dimension and an objective"))
	}
	if s.Stop.Accuracy <= 0 {
		s.Stop.Accuracy = 1e-6
	}
	if s.Stop.MaxIterations <= 0 {
		s.Stop.MaxIterations = 100
	}
	if s.QP.ActiveTol <= 0 {
		// Outer iterates sit on the nonlinear constraints only up to
		// linearization error, so the subproblem feasibility check must be
		// looser than the QP default.
		s.QP.ActiveTol = 1e-7
	}

	me, mi := len(p.EqCons), len(p.IneqCons)
	x := mat.NewVecDense(n, nil)
	if p.X0 != nil {
		x.CloneFromVec(p.X0)
	}

	lambda := estimateMultipliers(p, x, s.Diff)

	for iter := 1; iter <= s.Stop.MaxIterations; iter++ {
		g := numdiff.Gradient(p.Objective, x, s.Diff)
		ce := evalAll(p.EqCons, x)
		ci := evalAll(p.IneqCons, x)

		B := lagrangianHessian(p, x, lambda, s.Diff)

		sub := &qp.Problem{G: B, C: g}
		if me > 0 {
			sub.Ae = constraintJacobian(p.EqCons, x, s.Diff)
			sub.Be = negated(ce)
		}
		if mi > 0 {
			sub.Ai = constraintJacobian(p.IneqCons, x, s.Diff)
			sub.Bi = negated(ci)
		}
		if me > 0 {
			// Minimum-norm step onto the linearized equalities keeps the QP
			// start feasible even when the iterate has drifted off them.
			d0 := mat.NewVecDense(n, nil)
			if err := d0.SolveVec(sub.Ae, sub.Be); err != nil {
				return nil, fmt.Errorf("sqp: linearized equalities are degenerate: %v", err)
			}
			sub.X0 = d0
		}

		res, err := qp.Solve(sub, s.QP)
		if err != nil {
			return nil, fmt.Errorf("sqp: qp subproblem: %w", err)
		}
		d := res.X

		// Refresh the multiplier estimate from the subproblem duals.
		lambda = mat.NewVecDense(maxInt(1, me+mi), nil)
		if res.Lambda != nil {
			for i := 0; i < me; i++ {
				lambda.SetVec(i, res.Lambda.AtVec(i))
			}
			for k, row := range res.Active {
				lambda.SetVec(me+row, res.Lambda.AtVec(me+k))
			}
		}

		viol := violation(ce, ci)
		if normInf(d) < s.Stop.Accuracy && viol < s.Stop.Accuracy {
			return &Result{
				X:          x,
				F:          p.Objective(x),
				Lambda:     lambda,
				Iterations: iter,
				Status:     Converged,
			}, nil
		}

		alpha := lineSearch(p, x, d, g, viol, lambda)
		x.AddScaledVec(x, alpha, d)
	}

	return &Result{
		X:          x,
		F:          p.Objective(x),
		Lambda:     lambda,
		Iterations: s.Stop.MaxIterations,
		Status:     IterationLimit,
	}, ErrIterationLimit
}

// estimateMultipliers seeds λ with the least-squares solution of
// ∇f = J(x)ᵀλ so the first Lagrangian Hessian carries curvature from the
// constraints. Inequality multipliers are clamped at zero.
func estimateMultipliers(p *Problem, x mat.Vector, spec *numdiff.Spec) *mat.VecDense {
	me, mi := len(p.EqCons), len(p.IneqCons)
	lambda := mat.NewVecDense(maxInt(1, me+mi), nil)
	m := me + mi
	if m == 0 {
		return lambda
	}

	jt := mat.NewDense(p.N, m, nil)
	for j, c := range append(append([]Func{}, p.EqCons...), p.IneqCons...) {
		grad := numdiff.Gradient(c, x, spec)
		for i := 0; i < p.N; i++ {
			jt.Set(i, j, grad.AtVec(i))
		}
	}
	g := numdiff.Gradient(p.Objective, x, spec)

	est := mat.NewVecDense(m, nil)
	if err := est.SolveVec(jt, g); err != nil {
		return lambda // singular estimate, fall back to zero
	}
	for j := 0; j < m; j++ {
		v := est.AtVec(j)
		if j >= me && v < 0 {
			v = 0
		}
		lambda.SetVec(j, v)
	}
	return lambda
}

// lagrangianHessian approximates ∇²L(x,λ) = ∇²f - Σλⱼ∇²cⱼ and shifts it by
// multiples of the identity until it is positive definite, so the QP
// subproblem stays convex.
func lagrangianHessian(p *Problem, x mat.Vector, lambda *mat.VecDense, spec *numdiff.Spec) *mat.SymDense {
	me := len(p.EqCons)
	lag := func(z mat.Vector) float64 {
		v := p.Objective(z)
		for j, c := range p.EqCons {
			v -= lambda.AtVec(j) * c(z)
		}
		for j, c := range p.IneqCons {
			v -= lambda.AtVec(me+j) * c(z)
		}
		return v
	}
	B := numdiff.Hessian(lag, x, spec)

	var chol mat.Cholesky
	tau := 1e-8
	for try := 0; try < 40; try++ {
		if chol.Factorize(B) {
			return B
		}
		for i := 0; i < p.N; i++ {
			B.SetSym(i, i, B.At(i, i)+tau)
		}
		tau *= 10
	}
	return B
}

// constraintJacobian stacks the constraint gradients row-wise.
func constraintJacobian(cons []Func, x mat.Vector, spec *numdiff.Spec) *mat.Dense {
	jac := mat.NewDense(len(cons), x.Len(), nil)
	for j, c := range cons {
		grad := numdiff.Gradient(c, x, spec)
		jac.SetRow(j, grad.RawVector().Data)
	}
	return jac
}

// lineSearch backtracks along d on the L1 merit function
// φ(x) = f(x) + ρ·viol(x) with an Armijo condition.
func lineSearch(p *Problem, x *mat.VecDense, d *mat.VecDense, g *mat.VecDense, viol float64, lambda *mat.VecDense) float64 {
	rho := 1.0
	for i := 0; i < lambda.Len(); i++ {
		if a := math.Abs(lambda.AtVec(i)); 2*a > rho {
			rho = 2 * a
		}
	}

	merit := func(z mat.Vector) float64 {
		return p.Objective(z) + rho*violation(evalAll(p.EqCons, z), evalAll(p.IneqCons, z))
	}

	phi0 := merit(x)
	// Directional derivative model of the merit function along d.
	descent := mat.Dot(g, d) - rho*viol

	trial := mat.NewVecDense(x.Len(), nil)
	alpha := 1.0
	for i := 0; i < 30; i++ {
		trial.AddScaledVec(x, alpha, d)
		if merit(trial) <= phi0+1e-4*alpha*descent {
			return alpha
		}
		alpha /= 2
	}
	return alpha
}

func evalAll(cons []Func, x mat.Vector) []float64 {
	vals := make([]float64, len(cons))
	for j, c := range cons {
		vals[j] = c(x)
	}
	return vals
}

// violation is the L1 constraint violation Σ|cе| + Σ max(0, -cᵢ).
func violation(ce, ci []float64) float64 {
	v := 0.
	for _, c := range ce {
		v += math.Abs(c)
	}
	for _, c := range ci {
		if c < 0 {
			v -= c
		}
	}
	return v
}

func negated(vals []float64) *mat.VecDense {
	v := mat.NewVecDense(len(vals), nil)
	for i, c := range vals {
		v.SetVec(i, -c)
	}
	return v
}

func normInf(v *mat.VecDense) float64 {
	max := 0.
	for i := 0; i < v.Len(); i++ {
		if a := math.Abs(v.AtVec(i)); a > max {
			max = a
		}
	}
	return max
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
