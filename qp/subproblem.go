package qp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/zhengang-zhong/ocp-solver/matext"
)

// solveSubproblem solves the equality-constrained QP obtained by treating
// every working-set row as an equality, via the Newton-KKT system
//
//	[ G  -Aᵀ ] [ p ]   [ -(G xₖ + c) ]
//	[ A   0  ] [ λ ] = [      0      ]
//
// where A is the m by nx coefficient block of the working set. The bottom
// right hand side block is zero because xₖ satisfies every working-set row
// with equality at the time of the solve.
//
// The system is solved with an LU factorization and the solution is snapped
// with zeroTol before being split into the step direction p (length nx) and
// the multipliers λ (length m, equalities first then active inequalities in
// working-set order).
func solveSubproblem(g mat.Matrix, c mat.Vector, a *mat.Dense, x mat.Vector, zeroTol float64) (p, lambda *mat.VecDense, err error) {
	nx := c.Len()
	m := 0
	if a != nil {
		m, _ = a.Dims()
	}
	n := nx + m

	kkt := mat.NewDense(n, n, nil)
	for i := 0; i < nx; i++ {
		for j := 0; j < nx; j++ {
			kkt.Set(i, j, g.At(i, j))
		}
	}
	for i := 0; i < m; i++ {
		for j := 0; j < nx; j++ {
			kkt.Set(j, nx+i, -a.At(i, j))
			kkt.Set(nx+i, j, a.At(i, j))
		}
	}

	// rhs top block: -(G xₖ + c)
	rhs := mat.NewVecDense(n, nil)
	top := mat.NewVecDense(nx, nil)
	top.MulVec(g, x)
	top.AddVec(top, c)
	for i := 0; i < nx; i++ {
		rhs.SetVec(i, -top.AtVec(i))
	}

	var lu mat.LU
	lu.Factorize(kkt)
	sol := mat.NewVecDense(n, nil)
	if err := lu.SolveVecTo(sol, false, rhs); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSingularKKT, err)
	}
	matext.SnapVec(sol, zeroTol)

	p = mat.NewVecDense(nx, nil)
	for i := 0; i < nx; i++ {
		p.SetVec(i, sol.AtVec(i))
	}
	if m > 0 {
		lambda = mat.NewVecDense(m, nil)
		for i := 0; i < m; i++ {
			lambda.SetVec(i, sol.AtVec(nx+i))
		}
	}
	return p, lambda, nil
}
