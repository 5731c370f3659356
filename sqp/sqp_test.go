package sqp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/zhengang-zhong/ocp-solver/numdiff"
	"github.com/zhengang-zhong/ocp-solver/qp"
)

func TestFuncDifferentiatesDirectly(t *testing.T) {
	// Objectives and constraints feed straight into numdiff without
	// conversion.
	var f Func = func(x mat.Vector) float64 {
		return x.AtVec(0) * x.AtVec(0)
	}
	g := numdiff.Gradient(f, mat.NewVecDense(1, []float64{3}), nil)
	assert.InDelta(t, 6, g.AtVec(0), 1e-6)
}

func TestSolveUnconstrained(t *testing.T) {
	p := &Problem{
		N: 2,
		Objective: func(x mat.Vector) float64 {
			a, b := x.AtVec(0)-1, x.AtVec(1)-2
			return a*a + b*b
		},
	}
	res, err := Solve(p, Settings{})
	require.NoError(t, err)
	assert.Equal(t, Converged, res.Status)
	assert.InDelta(t, 1, res.X.AtVec(0), 1e-5)
	assert.InDelta(t, 2, res.X.AtVec(1), 1e-5)
	assert.InDelta(t, 0, res.F, 1e-8)
}

func TestSolveLinearEquality(t *testing.T) {
	// min x1² + x2² s.t. x1 + x2 = 1, solution (0.5, 0.5) with λ = 1.
	p := &Problem{
		N: 2,
		Objective: func(x mat.Vector) float64 {
			return x.AtVec(0)*x.AtVec(0) + x.AtVec(1)*x.AtVec(1)
		},
		EqCons: []Func{
			func(x mat.Vector) float64 { return x.AtVec(0) + x.AtVec(1) - 1 },
		},
		X0: mat.NewVecDense(2, []float64{2, -1}),
	}
	res, err := Solve(p, Settings{})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.X.AtVec(0), 1e-5)
	assert.InDelta(t, 0.5, res.X.AtVec(1), 1e-5)
	assert.InDelta(t, 1, res.Lambda.AtVec(0), 1e-4)
}

func TestSolveNonlinearEquality(t *testing.T) {
	// min x1 + x2 on the circle x1² + x2² = 2, solution (-1, -1).
	p := &Problem{
		N: 2,
		Objective: func(x mat.Vector) float64 {
			return x.AtVec(0) + x.AtVec(1)
		},
		EqCons: []Func{
			func(x mat.Vector) float64 {
				return x.AtVec(0)*x.AtVec(0) + x.AtVec(1)*x.AtVec(1) - 2
			},
		},
		X0: mat.NewVecDense(2, []float64{-0.9, -1.0908712114635714}),
	}
	res, err := Solve(p, Settings{Stop: Termination{Accuracy: 1e-8, MaxIterations: 50}})
	require.NoError(t, err)
	assert.InDelta(t, -1, res.X.AtVec(0), 1e-5)
	assert.InDelta(t, -1, res.X.AtVec(1), 1e-5)
	// ∇f = λ∇c at the optimum gives λ = -0.5.
	assert.InDelta(t, -0.5, res.Lambda.AtVec(0), 1e-3)
}

func TestSolveLinearInequality(t *testing.T) {
	// min (x1-2)² + (x2-2)² s.t. x1 + x2 ≤ 2, solution (1, 1).
	p := &Problem{
		N: 2,
		Objective: func(x mat.Vector) float64 {
			a, b := x.AtVec(0)-2, x.AtVec(1)-2
			return a*a + b*b
		},
		IneqCons: []Func{
			func(x mat.Vector) float64 { return 2 - x.AtVec(0) - x.AtVec(1) },
		},
	}
	res, err := Solve(p, Settings{})
	require.NoError(t, err)
	assert.InDelta(t, 1, res.X.AtVec(0), 1e-5)
	assert.InDelta(t, 1, res.X.AtVec(1), 1e-5)
	// Active constraint multiplier.
	assert.InDelta(t, 2, res.Lambda.AtVec(0), 1e-3)
}

func TestSolveInactiveInequality(t *testing.T) {
	// The constraint x1 ≥ -5 never binds; the solve must ignore it.
	p := &Problem{
		N: 1,
		Objective: func(x mat.Vector) float64 {
			d := x.AtVec(0) - 3
			return d * d
		},
		IneqCons: []Func{
			func(x mat.Vector) float64 { return x.AtVec(0) + 5 },
		},
	}
	res, err := Solve(p, Settings{})
	require.NoError(t, err)
	assert.InDelta(t, 3, res.X.AtVec(0), 1e-5)
	assert.InDelta(t, 0, res.Lambda.AtVec(0), 1e-8)
}

func TestSolveInfeasibleStartReported(t *testing.T) {
	p := &Problem{
		N: 1,
		Objective: func(x mat.Vector) float64 {
			return x.AtVec(0) * x.AtVec(0)
		},
		IneqCons: []Func{
			// x ≥ 1 violated at the default origin start.
			func(x mat.Vector) float64 { return x.AtVec(0) - 1 },
		},
	}
	_, err := Solve(p, Settings{})
	require.ErrorIs(t, err, qp.ErrInfeasibleStart)
}

func TestSolveIterationLimit(t *testing.T) {
	p := &Problem{
		N: 2,
		Objective: func(x mat.Vector) float64 {
			// Rosenbrock needs more than one iteration from the origin.
			a, b := x.AtVec(0), x.AtVec(1)
			return 100*(b-a*a)*(b-a*a) + (1-a)*(1-a)
		},
	}
	res, err := Solve(p, Settings{Stop: Termination{MaxIterations: 1}})
	require.ErrorIs(t, err, ErrIterationLimit)
	require.NotNil(t, res)
	assert.Equal(t, IterationLimit, res.Status)
	assert.Equal(t, 1, res.Iterations)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "converged", Converged.String())
	assert.Equal(t, "iteration limit", IterationLimit.String())
}
