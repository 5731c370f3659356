package numdiff

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestGradientQuadratic(t *testing.T) {
	// f = x1² + 3 x1 x2, ∇f = (2x1 + 3x2, 3x1)
	f := func(x mat.Vector) float64 {
		return x.AtVec(0)*x.AtVec(0) + 3*x.AtVec(0)*x.AtVec(1)
	}
	x := mat.NewVecDense(2, []float64{1.5, -2})

	for _, spec := range []*Spec{nil, {Method: Forward}, {Method: Central}} {
		g := Gradient(f, x, spec)
		tol := 1e-6
		if spec != nil && spec.Method == Forward {
			tol = 1e-5
		}
		assert.InDelta(t, 2*1.5+3*(-2), g.AtVec(0), tol)
		assert.InDelta(t, 3*1.5, g.AtVec(1), tol)
	}
	// The argument must be left untouched.
	assert.Equal(t, 1.5, x.AtVec(0))
	assert.Equal(t, -2.0, x.AtVec(1))
}

func TestGradientTranscendental(t *testing.T) {
	f := func(x mat.Vector) float64 {
		return math.Sin(x.AtVec(0)) * math.Exp(x.AtVec(1))
	}
	x := mat.NewVecDense(2, []float64{0.7, 0.3})
	g := Gradient(f, x, nil)
	assert.InDelta(t, math.Cos(0.7)*math.Exp(0.3), g.AtVec(0), 1e-8)
	assert.InDelta(t, math.Sin(0.7)*math.Exp(0.3), g.AtVec(1), 1e-8)
}

func TestJacobianLinear(t *testing.T) {
	a := mat.NewDense(2, 3, []float64{1, -2, 0.5, 3, 4, -1})
	f := func(x mat.Vector) mat.Vector {
		y := mat.NewVecDense(2, nil)
		y.MulVec(a, x)
		return y
	}
	x := mat.NewVecDense(3, []float64{0.2, -0.4, 1.1})
	jac := Jacobian(f, x, nil)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, a.At(i, j), jac.At(i, j), 1e-7)
		}
	}
}

func TestHessianQuadratic(t *testing.T) {
	// f = ½ xᵀGx has Hessian G exactly.
	g := mat.NewSymDense(2, []float64{4, 1, 1, 2})
	f := func(x mat.Vector) float64 {
		tmp := mat.NewVecDense(2, nil)
		tmp.MulVec(g, x)
		return 0.5 * mat.Dot(tmp, x)
	}
	x := mat.NewVecDense(2, []float64{0.3, -0.9})
	hess := Hessian(f, x, nil)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, g.At(i, j), hess.At(i, j), 1e-4)
		}
	}
}

func TestHessianRosenbrock(t *testing.T) {
	f := func(x mat.Vector) float64 {
		a, b := x.AtVec(0), x.AtVec(1)
		return 100*(b-a*a)*(b-a*a) + (1-a)*(1-a)
	}
	x := mat.NewVecDense(2, []float64{1, 1})
	hess := Hessian(f, x, nil)
	// Analytic Hessian at (1,1): [[802, -400], [-400, 200]].
	assert.InEpsilon(t, 802, hess.At(0, 0), 1e-3)
	assert.InEpsilon(t, -400, hess.At(0, 1), 1e-3)
	assert.InEpsilon(t, 200, hess.At(1, 1), 1e-3)
}
