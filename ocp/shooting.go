// Package ocp transcribes continuous-time optimal control problems into
// nonlinear programs by direct multiple shooting and solves them with the
// sqp package. The decision vector stacks the shooting node states and the
// piecewise constant interval controls; matching the end of each interval
// rollout with the next node state becomes a set of equality constraints
// (the continuity defects).
package ocp

import (
	"errors"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/zhengang-zhong/ocp-solver/dynamics"
	"github.com/zhengang-zhong/ocp-solver/ode"
	"github.com/zhengang-zhong/ocp-solver/sqp"
)

// Problem describes the continuous-time optimal control problem
//
//	minimize ∫ (x-xref)ᵀQ(x-xref) + uᵀRu dt + (x(T)-xref)ᵀQN(x(T)-xref)
//
// subject to the system dynamics, a fixed initial state, and optional box
// bounds on the control.
type Problem struct {
	Sys dynamics.System

	T0, TF float64
	// N is the number of shooting intervals.
	N int
	// Substeps is the number of RK4 sub-steps per interval. Default 4.
	Substeps int

	// Q and R weigh the state deviation and control effort in the stage
	// cost. QN weighs the terminal deviation; nil means Q.
	Q, R mat.Matrix
	QN   mat.Matrix

	// XRef is the state target; nil means the origin.
	XRef mat.Vector
	// X0 is the fixed initial state.
	X0 mat.Vector

	// ULower and UUpper bound every interval control componentwise when
	// non-nil. The zero control must satisfy them, since it seeds the
	// solve.
	ULower, UUpper mat.Vector
}

// Solution holds the optimized trajectory.
type Solution struct {
	// Time holds the N+1 shooting node times.
	Time []float64
	// States holds one node state per row, (N+1) by nx.
	States *mat.Dense
	// Controls holds one interval control per row, N by nu.
	Controls *mat.Dense
	// Objective is the transcribed cost at the solution.
	Objective float64
	// MaxDefect is the largest continuity defect magnitude at the solution.
	MaxDefect float64
	// Iterations is the number of SQP iterations spent.
	Iterations int
}

func (p *Problem) check() (nx, nu int) {
	if p.Sys == nil || p.N < 1 || p.X0 == nil || p.Q == nil || p.R == nil {
		panic(errors.New("ocp: problem requires a system, intervals, weights and an initial state"))
	}
	nx, nu = p.Sys.StateDim(), p.Sys.InputDim()
	if p.X0.Len() != nx {
		panic(errors.New("ocp: initial state does not match the system"))
	}
	return nx, nu
}

func (p *Problem) substeps() int {
	if p.Substeps < 1 {
		return 4
	}
	return p.Substeps
}

func (p *Problem) interval() float64 {
	return (p.TF - p.T0) / float64(p.N)
}

// nodeState extracts shooting node k from the decision vector; node 0 is the
// fixed initial state.
func (p *Problem) nodeState(z mat.Vector, nx int, k int) *mat.VecDense {
	x := mat.NewVecDense(nx, nil)
	if k == 0 {
		for i := 0; i < nx; i++ {
			x.SetVec(i, p.X0.AtVec(i))
		}
		return x
	}
	off := (k - 1) * nx
	for i := 0; i < nx; i++ {
		x.SetVec(i, z.AtVec(off+i))
	}
	return x
}

// control extracts the interval-k control from the decision vector.
func (p *Problem) control(z mat.Vector, nx, nu, k int) *mat.VecDense {
	u := mat.NewVecDense(nu, nil)
	off := p.N*nx + k*nu
	for i := 0; i < nu; i++ {
		u.SetVec(i, z.AtVec(off+i))
	}
	return u
}

// flow integrates the system over interval k from xk under the constant
// control uk.
func (p *Problem) flow(k int, xk, uk mat.Vector) *mat.VecDense {
	h := p.interval()
	t := p.T0 + float64(k)*h
	state := mat.NewVecDense(xk.Len(), nil)
	state.CloneFromVec(xk)
	closed := dynamics.Closed{Sys: p.Sys, U: dynamics.Constant{U: uk}}
	ode.NewRK4().Integrate(t, t+h, p.substeps(), state, closed)
	return state
}

// Defects evaluates every continuity defect x_{k+1} - Φ(x_k, u_k) at the
// decision vector z, one interval per row. The rollouts are independent
// given z and run concurrently.
func (p *Problem) Defects(z mat.Vector) *mat.Dense {
	nx, nu := p.check()
	defects := mat.NewDense(p.N, nx, nil)

	var wg sync.WaitGroup
	wg.Add(p.N)
	for k := 0; k < p.N; k++ {
		go func(k int) {
			defer wg.Done()
			end := p.flow(k, p.nodeState(z, nx, k), p.control(z, nx, nu, k))
			next := p.nodeState(z, nx, k+1)
			for i := 0; i < nx; i++ {
				defects.Set(k, i, next.AtVec(i)-end.AtVec(i))
			}
		}(k)
	}
	wg.Wait()
	return defects
}

// objective is the transcribed cost over the decision vector.
func (p *Problem) objective(z mat.Vector, nx, nu int) float64 {
	h := p.interval()
	qn := p.QN
	if qn == nil {
		qn = p.Q
	}

	cost := 0.
	for k := 0; k < p.N; k++ {
		dx := p.deviation(p.nodeState(z, nx, k))
		u := p.control(z, nx, nu, k)
		cost += h * (quadForm(p.Q, dx) + quadForm(p.R, u))
	}
	cost += quadForm(qn, p.deviation(p.nodeState(z, nx, p.N)))
	return cost
}

func (p *Problem) deviation(x *mat.VecDense) *mat.VecDense {
	if p.XRef != nil {
		x.SubVec(x, p.XRef)
	}
	return x
}

func quadForm(w mat.Matrix, v mat.Vector) float64 {
	tmp := mat.NewVecDense(v.Len(), nil)
	tmp.MulVec(w, v)
	return mat.Dot(tmp, v)
}

// Solve transcribes the problem and runs the SQP solver. The initial guess
// holds every node at X0 with zero controls.
func Solve(p *Problem, s sqp.Settings) (*Solution, error) {
	nx, nu := p.check()

	nlp := &sqp.Problem{
		N: p.N*nx + p.N*nu,
		Objective: func(z mat.Vector) float64 {
			return p.objective(z, nx, nu)
		},
	}

	// Continuity defects, one scalar equality per state component and
	// interval.
	for k := 0; k < p.N; k++ {
		for i := 0; i < nx; i++ {
			k, i := k, i
			nlp.EqCons = append(nlp.EqCons, func(z mat.Vector) float64 {
				end := p.flow(k, p.nodeState(z, nx, k), p.control(z, nx, nu, k))
				return p.nodeState(z, nx, k+1).AtVec(i) - end.AtVec(i)
			})
		}
	}

	// Control box bounds.
	for k := 0; k < p.N; k++ {
		for j := 0; j < nu; j++ {
			k, j := k, j
			if p.ULower != nil {
				nlp.IneqCons = append(nlp.IneqCons, func(z mat.Vector) float64 {
					return p.control(z, nx, nu, k).AtVec(j) - p.ULower.AtVec(j)
				})
			}
			if p.UUpper != nil {
				nlp.IneqCons = append(nlp.IneqCons, func(z mat.Vector) float64 {
					return p.UUpper.AtVec(j) - p.control(z, nx, nu, k).AtVec(j)
				})
			}
		}
	}

	// Seed every node at the initial state with zero controls.
	guess := mat.NewVecDense(nlp.N, nil)
	for k := 1; k <= p.N; k++ {
		for i := 0; i < nx; i++ {
			guess.SetVec((k-1)*nx+i, p.X0.AtVec(i))
		}
	}
	nlp.X0 = guess

	res, err := sqp.Solve(nlp, s)
	if err != nil {
		return nil, err
	}
	return p.solution(res, nx, nu), nil
}

func (p *Problem) solution(res *sqp.Result, nx, nu int) *Solution {
	h := p.interval()
	sol := &Solution{
		Time:       make([]float64, p.N+1),
		States:     mat.NewDense(p.N+1, nx, nil),
		Controls:   mat.NewDense(p.N, nu, nil),
		Objective:  res.F,
		Iterations: res.Iterations,
	}
	for k := 0; k <= p.N; k++ {
		sol.Time[k] = p.T0 + float64(k)*h
		x := p.nodeState(res.X, nx, k)
		for i := 0; i < nx; i++ {
			sol.States.Set(k, i, x.AtVec(i))
		}
	}
	for k := 0; k < p.N; k++ {
		u := p.control(res.X, nx, nu, k)
		for j := 0; j < nu; j++ {
			sol.Controls.Set(k, j, u.AtVec(j))
		}
	}

	defects := p.Defects(res.X)
	for k := 0; k < p.N; k++ {
		for i := 0; i < nx; i++ {
			if d := math.Abs(defects.At(k, i)); d > sol.MaxDefect {
				sol.MaxDefect = d
			}
		}
	}
	return sol
}
