package ode

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/zhengang-zhong/ocp-solver/numdiff"
)

// Newton solves f(z) = 0 by the Newton-Raphson method starting from z0. The
// Jacobian is approximated with central finite differences and each update
// solves J dz = f(z) by LU factorization. Iteration stops when the residual
// infinity norm drops below tol.
func Newton(f numdiff.VectorFunc, z0 mat.Vector, tol float64, maxIter int) (*mat.VecDense, error) {
	n := z0.Len()
	z := mat.NewVecDense(n, nil)
	z.CloneFromVec(z0)

	dz := mat.NewVecDense(n, nil)
	var lu mat.LU
	for iter := 0; iter < maxIter; iter++ {
		r := f(z)
		if normInf(r) < tol {
			return z, nil
		}
		jac := numdiff.Jacobian(f, z, nil)
		lu.Factorize(jac)
		if err := lu.SolveVecTo(dz, false, r); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSingularJacobian, err)
		}
		z.SubVec(z, dz)
	}
	return nil, ErrNoConvergence
}

func normInf(v mat.Vector) float64 {
	max := 0.
	for i := 0; i < v.Len(); i++ {
		a := v.AtVec(i)
		if a < 0 {
			a = -a
		}
		if a > max {
			max = a
		}
	}
	return max
}
