// Package numdiff estimates derivatives of vector-argument functions by
// finite differences, see https://en.wikipedia.org/wiki/Finite_difference.
// The absolute step for each coordinate is chosen as h = rel * max(1, |x|)
// with rel derived from machine epsilon, following the scheme used in scipy's
// _numdiff module.
package numdiff

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
	cbrtEps = math.Cbrt(math.Nextafter(1, 2) - 1)
)

// Method selects the finite difference scheme.
type Method int

const (
	// Forward uses the first order accuracy forward difference.
	Forward Method = iota
	// Central uses the second order accuracy central difference.
	Central
)

// Func is a scalar valued function of a vector argument.
type Func func(x mat.Vector) float64

// VectorFunc is a vector valued function of a vector argument.
type VectorFunc func(x mat.Vector) mat.Vector

// Spec configures the approximation. A nil *Spec selects the central
// difference with automatic steps.
type Spec struct {
	Method Method
	// RelStep overrides the automatic relative step when positive.
	RelStep float64
}

func (s *Spec) params() (Method, float64) {
	if s == nil {
		return Central, cbrtEps
	}
	rel := s.RelStep
	if rel <= 0 {
		if s.Method == Forward {
			rel = sqrtEps
		} else {
			rel = cbrtEps
		}
	}
	return s.Method, rel
}

func step(x float64, rel float64) float64 {
	return rel * math.Max(1, math.Abs(x))
}

// Gradient approximates the gradient of f at x.
func Gradient(f Func, x mat.Vector, spec *Spec) *mat.VecDense {
	n := x.Len()
	method, rel := spec.params()

	z := mat.NewVecDense(n, nil)
	z.CloneFromVec(x)
	grad := mat.NewVecDense(n, nil)

	var f0 float64
	if method == Forward {
		f0 = f(z)
	}
	for i := 0; i < n; i++ {
		xi := z.AtVec(i)
		h := step(xi, rel)
		z.SetVec(i, xi+h)
		fp := f(z)
		if method == Forward {
			grad.SetVec(i, (fp-f0)/h)
		} else {
			z.SetVec(i, xi-h)
			fm := f(z)
			grad.SetVec(i, (fp-fm)/(2*h))
		}
		z.SetVec(i, xi)
	}
	return grad
}

// Jacobian approximates the m by n Jacobian of f at x, where m is the length
// of f(x).
func Jacobian(f VectorFunc, x mat.Vector, spec *Spec) *mat.Dense {
	n := x.Len()
	method, rel := spec.params()

	z := mat.NewVecDense(n, nil)
	z.CloneFromVec(x)

	f0 := f(z)
	m := f0.Len()
	jac := mat.NewDense(m, n, nil)

	for j := 0; j < n; j++ {
		xj := z.AtVec(j)
		h := step(xj, rel)
		z.SetVec(j, xj+h)
		fp := f(z)
		if method == Forward {
			for i := 0; i < m; i++ {
				jac.Set(i, j, (fp.AtVec(i)-f0.AtVec(i))/h)
			}
		} else {
			z.SetVec(j, xj-h)
			fm := f(z)
			for i := 0; i < m; i++ {
				jac.Set(i, j, (fp.AtVec(i)-fm.AtVec(i))/(2*h))
			}
		}
		z.SetVec(j, xj)
	}
	return jac
}

// Hessian approximates the symmetric Hessian of f at x with second order
// central differences.
func Hessian(f Func, x mat.Vector, spec *Spec) *mat.SymDense {
	n := x.Len()
	_, rel := spec.params()
	// Second differences lose more precision than first ones; widen the
	// default step accordingly.
	if spec == nil || spec.RelStep <= 0 {
		rel = math.Sqrt(rel)
	}

	z := mat.NewVecDense(n, nil)
	z.CloneFromVec(x)
	hess := mat.NewSymDense(n, nil)

	f0 := f(z)
	for i := 0; i < n; i++ {
		xi := z.AtVec(i)
		hi := step(xi, rel)

		// Diagonal: (f(x+h) - 2f(x) + f(x-h)) / h².
		z.SetVec(i, xi+hi)
		fp := f(z)
		z.SetVec(i, xi-hi)
		fm := f(z)
		z.SetVec(i, xi)
		hess.SetSym(i, i, (fp-2*f0+fm)/(hi*hi))

		for j := i + 1; j < n; j++ {
			xj := z.AtVec(j)
			hj := step(xj, rel)

			z.SetVec(i, xi+hi)
			z.SetVec(j, xj+hj)
			fpp := f(z)
			z.SetVec(j, xj-hj)
			fpm := f(z)
			z.SetVec(i, xi-hi)
			fmm := f(z)
			z.SetVec(j, xj+hj)
			fmp := f(z)
			z.SetVec(i, xi)
			z.SetVec(j, xj)

			hess.SetSym(i, j, (fpp-fpm-fmp+fmm)/(4*hi*hj))
		}
	}
	return hess
}
