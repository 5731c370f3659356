// Package dynamics describes controlled dynamic systems x'(t) = f(t, x, u)
// and control trajectories, and couples them into something the ode package
// can integrate.
package dynamics

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/zhengang-zhong/ocp-solver/ode"
)

// System is a controlled dynamic system.
type System interface {
	// Derivative returns x'(t) = f(t, x(t), u(t)).
	Derivative(t float64, state, input mat.Vector) mat.Vector
	// StateDim returns the state space order.
	StateDim() int
	// InputDim returns the input space order.
	InputDim() int
}

// LinearSystem represents the system
//
//	x'(t) = A x(t) + B u(t)
type LinearSystem struct {
	A mat.Matrix
	B mat.Matrix
}

// NewLinearSystem creates a new linear system and checks that the system
// parameters match.
func NewLinearSystem(A, B mat.Matrix) *LinearSystem {
	m, n := A.Dims()
	mB, _ := B.Dims()
	if m != n || mB != m {
		panic(errors.New("dynamics: system parameters don't match"))
	}
	return &LinearSystem{A: A, B: B}
}

// Derivative returns A x + B u.
func (sys *LinearSystem) Derivative(t float64, state, input mat.Vector) mat.Vector {
	n := sys.StateDim()
	res := mat.NewVecDense(n, nil)
	res.MulVec(sys.A, state)
	tmp := mat.NewVecDense(n, nil)
	tmp.MulVec(sys.B, input)
	res.AddVec(res, tmp)
	return res
}

// StateDim returns the state space order.
func (sys *LinearSystem) StateDim() int {
	m, _ := sys.A.Dims()
	return m
}

// InputDim returns the input space order.
func (sys *LinearSystem) InputDim() int {
	_, n := sys.B.Dims()
	return n
}

// Func adapts a plain derivative function to the System interface.
type Func struct {
	F  func(t float64, state, input mat.Vector) mat.Vector
	Nx int
	Nu int
}

// Derivative calls F.
func (f Func) Derivative(t float64, state, input mat.Vector) mat.Vector {
	return f.F(t, state, input)
}

// StateDim returns Nx.
func (f Func) StateDim() int { return f.Nx }

// InputDim returns Nu.
func (f Func) InputDim() int { return f.Nu }

// Closed couples a system with a control trajectory so that it satisfies
// ode.DifferentiableSystem.
type Closed struct {
	Sys System
	U   Control
}

// Derivative evaluates the controlled system along the control trajectory.
func (c Closed) Derivative(t float64, state mat.Vector) mat.Vector {
	return c.Sys.Derivative(t, state, c.U.Value(t))
}

var _ ode.DifferentiableSystem = Closed{}
