package ode

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// decay is x' = -rate * x with the analytic solution x0 * exp(-rate*t).
type decay struct {
	rate float64
}

func (d decay) Derivative(t float64, state mat.Vector) mat.Vector {
	r := mat.NewVecDense(state.Len(), nil)
	r.AddScaledVec(r, -d.rate, state)
	return r
}

func TestRk4(t *testing.T) {
	test := NewRK4()
	if test.Stages() != 4 {
		t.Errorf("Rk4 should have four stages. Instead has %v", test.Stages())
	}
}

func TestEuler(t *testing.T) {
	test := NewEulerMethod()
	if test.Stages() != 1 {
		t.Error("Wrong number of stages.")
	}
}

func TestRK4ExponentialDecay(t *testing.T) {
	rk := NewRK4()
	state := mat.NewVecDense(1, []float64{1})
	rk.Integrate(0, 1, 100, state, decay{rate: 1})
	want := math.Exp(-1)
	if math.Abs(state.AtVec(0)-want) > 1e-8 {
		t.Errorf("RK4 decay: got %v want %v", state.AtVec(0), want)
	}
}

func TestRK4HarmonicOscillator(t *testing.T) {
	// x'' = -x as a first order system; after a full period the state
	// returns to its start.
	osc := SystemFunc(func(t float64, state mat.Vector) mat.Vector {
		return mat.NewVecDense(2, []float64{state.AtVec(1), -state.AtVec(0)})
	})
	rk := NewRK4()
	state := mat.NewVecDense(2, []float64{1, 0})
	rk.Integrate(0, 2*math.Pi, 1000, state, osc)
	if math.Abs(state.AtVec(0)-1) > 1e-6 || math.Abs(state.AtVec(1)) > 1e-6 {
		t.Errorf("oscillator did not return to start: %v", mat.Formatted(state))
	}
}

func TestAdaptiveCompute(t *testing.T) {
	rk := NewFehlberg45()
	state := mat.NewVecDense(1, []float64{1})
	if err := rk.AdaptiveCompute(0, 1, 1e-9, state, decay{rate: 1}); err != nil {
		t.Fatal(err)
	}
	want := math.Exp(-1)
	if math.Abs(state.AtVec(0)-want) > 1e-5 {
		t.Errorf("adaptive decay: got %v want %v", state.AtVec(0), want)
	}
}

func TestImplicitEulerStiffDecay(t *testing.T) {
	// Stiff rate; explicit Euler with these steps would blow up
	// (|1 - h*rate| > 1), backward Euler stays contractive.
	ie := NewImplicitEuler()
	state := mat.NewVecDense(1, []float64{1})
	if err := ie.Integrate(0, 1, 100, state, decay{rate: 1000}); err != nil {
		t.Fatal(err)
	}
	got := state.AtVec(0)
	if got < 0 || got > 1e-3 {
		t.Errorf("backward Euler unstable on stiff system: %v", got)
	}
}

func TestImplicitEulerMatchesExplicitOnSmoothProblem(t *testing.T) {
	ie := NewImplicitEuler()
	state := mat.NewVecDense(1, []float64{1})
	if err := ie.Integrate(0, 1, 2000, state, decay{rate: 1}); err != nil {
		t.Fatal(err)
	}
	want := math.Exp(-1)
	// First order method, fine grid.
	if math.Abs(state.AtVec(0)-want) > 1e-3 {
		t.Errorf("backward Euler decay: got %v want %v", state.AtVec(0), want)
	}
}

func TestNewtonSolvesNonlinearSystem(t *testing.T) {
	// z1² - 4 = 0, z2 - z1 = 0 with root (2, 2) for a positive start.
	f := func(z mat.Vector) mat.Vector {
		return mat.NewVecDense(2, []float64{
			z.AtVec(0)*z.AtVec(0) - 4,
			z.AtVec(1) - z.AtVec(0),
		})
	}
	z, err := Newton(f, mat.NewVecDense(2, []float64{3, 0}), 1e-12, 50)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(z.AtVec(0)-2) > 1e-8 || math.Abs(z.AtVec(1)-2) > 1e-8 {
		t.Errorf("wrong root: %v", mat.Formatted(z))
	}
}

func TestNewtonNoConvergence(t *testing.T) {
	// No real root: x² + 1 = 0.
	f := func(z mat.Vector) mat.Vector {
		return mat.NewVecDense(1, []float64{z.AtVec(0)*z.AtVec(0) + 1})
	}
	if _, err := Newton(f, mat.NewVecDense(1, []float64{1}), 1e-12, 20); err == nil {
		t.Fatal("expected an error for a rootless residual")
	}
}
