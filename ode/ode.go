// Package ode integrates ordinary differential equations. The explicit
// integrators implement the Runge-Kutta family through Butcher tableaus, see
// https://en.wikipedia.org/wiki/Runge–Kutta_methods, and the implicit
// (backward) Euler method solves its per-step equation with Newton-Raphson.
package ode

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoConvergence is returned when an iterative routine exhausts its
	// iteration budget.
	ErrNoConvergence = errors.New("ode: iteration budget exhausted without convergence")
	// ErrSingularJacobian is returned when the Newton-Raphson linear solve
	// fails.
	ErrSingularJacobian = errors.New("ode: singular Jacobian in Newton-Raphson")
)

// DifferentiableSystem is anything that can report its state derivative
// x'(t) = f(t, x(t)).
type DifferentiableSystem interface {
	Derivative(t float64, state mat.Vector) mat.Vector
}

// SystemFunc adapts a plain function to the DifferentiableSystem interface.
type SystemFunc func(t float64, state mat.Vector) mat.Vector

// Derivative calls f.
func (f SystemFunc) Derivative(t float64, state mat.Vector) mat.Vector {
	return f(t, state)
}

// butcherTableau describes the approximate solution, see
// https://en.wikipedia.org/wiki/Runge–Kutta_methods. A second weight row
// enables an embedded error estimate.
type butcherTableau struct {
	stages           int
	weights          [][]float64
	nodes            []float64
	rungeKuttaMatrix [][]float64
}

// RungeKutta holds the butcherTableau which describes the Runge-Kutta method.
type RungeKutta struct {
	Description butcherTableau
}

// Stages returns the number of derivative evaluations per step.
func (rk RungeKutta) Stages() int {
	return rk.Description.stages
}

// Compute advances state in place from t = from to t = to in a single step
// and returns the embedded local error estimate. For tableaus without a
// second weight row the estimate is the zero vector.
func (rk RungeKutta) Compute(from, to float64, state *mat.VecDense, system DifferentiableSystem) *mat.VecDense {
	m := state.Len()
	h := to - from

	// The precomputed derivative points.
	K := make([]mat.Vector, rk.Description.stages)
	for index := range K {
		// Combine previously computed derivative points according to the
		// Butcher tableau.
		stage := mat.NewVecDense(m, nil)
		stage.CloneFromVec(state)
		for index2, a := range rk.Description.rungeKuttaMatrix[index] {
			stage.AddScaledVec(stage, h*a, K[index2])
		}
		K[index] = system.Derivative(from+h*rk.Description.nodes[index], stage)
	}

	errVec := mat.NewVecDense(m, nil)
	// Sum up the different contributions with relevant weights.
	for index, k := range K {
		state.AddScaledVec(state, h*rk.Description.weights[0][index], k)
		if len(rk.Description.weights) == 2 {
			errVec.AddScaledVec(errVec, h*(rk.Description.weights[1][index]-rk.Description.weights[0][index]), k)
		}
	}
	return errVec
}

// Integrate advances state in place from t = from to t = to using steps
// equal sub-steps.
func (rk RungeKutta) Integrate(from, to float64, steps int, state *mat.VecDense, system DifferentiableSystem) {
	if steps < 1 {
		steps = 1
	}
	h := (to - from) / float64(steps)
	for i := 0; i < steps; i++ {
		t := from + float64(i)*h
		rk.Compute(t, t+h, state, system)
	}
}

// AdaptiveCompute advances state from t = from to t = to while keeping the
// local error estimate below tol, halving the step whenever the estimate is
// too large. It requires a tableau with an embedded error estimate.
func (rk RungeKutta) AdaptiveCompute(from, to, tol float64, state *mat.VecDense, system DifferentiableSystem) error {
	const maxNumberOfIterations = 10000

	m := state.Len()
	current := mat.NewVecDense(m, nil)
	trial := mat.NewVecDense(m, nil)
	current.CloneFromVec(state)

	tnow := from
	count := 0
	for tnow < to {
		tnext := to
		for {
			trial.CopyVec(current)
			errVec := rk.Compute(tnow, tnext, trial, system)
			currentError := 0.
			for index := 0; index < m; index++ {
				currentError += math.Abs(errVec.AtVec(index))
			}
			if currentError < tol {
				break
			}
			// Halve the integration interval and try again.
			tnext = (tnext-tnow)/2. + tnow
			count++
			if count >= maxNumberOfIterations {
				return ErrNoConvergence
			}
		}
		current.CopyVec(trial)
		tnow = tnext
	}
	state.CopyVec(current)
	return nil
}

// NewEulerMethod returns a Runge-Kutta that does the forward Euler method.
func NewEulerMethod() *RungeKutta {
	var temp butcherTableau
	temp.stages = 1
	temp.nodes = []float64{0}
	temp.weights = [][]float64{{1}}
	temp.rungeKuttaMatrix = [][]float64{nil}
	return &RungeKutta{temp}
}

// NewRK4 returns the classical fourth order Runge-Kutta method.
func NewRK4() *RungeKutta {
	var temp butcherTableau
	temp.stages = 4
	temp.nodes = []float64{0, 1. / 2., 1. / 2., 1}
	temp.weights = [][]float64{{1. / 6., 1. / 3., 1. / 3., 1. / 6.}}
	temp.rungeKuttaMatrix = [][]float64{
		nil,
		{1. / 2.},
		{0, 1. / 2.},
		{0, 0, 1.},
	}
	return &RungeKutta{temp}
}

// NewFehlberg45 implements the embedded 4(5) pair from
// https://en.wikipedia.org/wiki/Runge%E2%80%93Kutta%E2%80%93Fehlberg_method
// suitable for AdaptiveCompute.
func NewFehlberg45() *RungeKutta {
	var temp butcherTableau
	temp.stages = 6
	temp.nodes = []float64{0, 1. / 4., 3. / 8., 12. / 13., 1., 1. / 2.}
	temp.weights = [][]float64{
		{16. / 135., 0, 6656. / 12825., 28561. / 56430., -9. / 50., 2. / 55.},
		{25. / 216., 0, 1408. / 2565., 2197. / 4104., -1. / 5., 0},
	}
	temp.rungeKuttaMatrix = [][]float64{
		nil,
		{1. / 4.},
		{3. / 32., 9. / 32.},
		{1932. / 2197., -7200. / 2197., 7296. / 2197.},
		{439. / 216., -8., 3680. / 513., -845. / 4104.},
		{-8. / 27., 2, -3544. / 2565., 1859. / 4104., -11. / 40.},
	}
	return &RungeKutta{temp}
}
