// Package matext collects small gonum matrix helpers shared by the solver
// packages.
package matext

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Eye returns the n by n identity matrix.
func Eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// NaNOrInf checks if there are any NaN or Inf entries in matrix.
func NaNOrInf(matrix mat.Matrix) bool {
	m, n := matrix.Dims()
	for row := 0; row < m; row++ {
		for col := 0; col < n; col++ {
			if math.IsNaN(matrix.At(row, col)) || math.IsInf(matrix.At(row, col), 0) {
				return true
			}
		}
	}
	return false
}

// SnapVec sets every entry of v with magnitude below tol to exact zero.
// Comparisons against zero downstream then behave deterministically in the
// presence of floating point noise.
func SnapVec(v *mat.VecDense, tol float64) {
	for i := 0; i < v.Len(); i++ {
		if math.Abs(v.AtVec(i)) < tol {
			v.SetVec(i, 0)
		}
	}
}
