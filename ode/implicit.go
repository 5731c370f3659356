package ode

import (
	"gonum.org/v1/gonum/mat"
)

// ImplicitEuler implements the backward Euler method. Each step solves the
// nonlinear equation
//
//	x₁ - x₀ - h f(t₁, x₁) = 0
//
// for x₁ with Newton-Raphson, which keeps the method stable on stiff systems
// where the explicit integrators would need impractically small steps.
type ImplicitEuler struct {
	// Tol is the Newton residual tolerance. Default 1e-10.
	Tol float64
	// MaxIter bounds the Newton iterations per step. Default 25.
	MaxIter int
}

// NewImplicitEuler returns a backward Euler integrator with default Newton
// settings.
func NewImplicitEuler() *ImplicitEuler {
	return &ImplicitEuler{Tol: 1e-10, MaxIter: 25}
}

// Compute advances state in place from t = from to t = to in a single
// backward Euler step.
func (ie *ImplicitEuler) Compute(from, to float64, state *mat.VecDense, system DifferentiableSystem) error {
	m := state.Len()
	h := to - from

	x0 := mat.NewVecDense(m, nil)
	x0.CloneFromVec(state)

	residual := func(z mat.Vector) mat.Vector {
		r := mat.NewVecDense(m, nil)
		r.AddScaledVec(r, -h, system.Derivative(to, z))
		for i := 0; i < m; i++ {
			r.SetVec(i, r.AtVec(i)+z.AtVec(i)-x0.AtVec(i))
		}
		return r
	}

	// The previous state is the natural Newton starting guess.
	z, err := Newton(residual, x0, ie.Tol, ie.MaxIter)
	if err != nil {
		return err
	}
	state.CopyVec(z)
	return nil
}

// Integrate advances state in place from t = from to t = to using steps
// equal backward Euler steps.
func (ie *ImplicitEuler) Integrate(from, to float64, steps int, state *mat.VecDense, system DifferentiableSystem) error {
	if steps < 1 {
		steps = 1
	}
	h := (to - from) / float64(steps)
	for i := 0; i < steps; i++ {
		t := from + float64(i)*h
		if err := ie.Compute(t, t+h, state, system); err != nil {
			return err
		}
	}
	return nil
}
