package qp

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// Problem describes one convex quadratic program
//
// minimize ½ xᵀGx + cᵀx
//
// subject to
//
//	Ae x  = be
//	Ai x ≥ bi
//
// G is expected to be symmetric positive semi-definite; this is not
// validated. Either constraint block may be absent, in which case both its
// matrix and right hand side must be nil. X0 is the starting point and must
// be feasible; when nil the origin is used, which then must itself be
// feasible.
type Problem struct {
	G mat.Matrix
	C mat.Vector

	Ae mat.Matrix
	Be mat.Vector

	Ai mat.Matrix
	Bi mat.Vector

	X0 mat.Vector
}

// dims returns (nx, ne, ni) and panics if the supplied blocks do not agree,
// since mismatched dimensions are a programming error rather than a solver
// outcome.
func (p *Problem) dims() (nx, ne, ni int) {
	m, n := p.G.Dims()
	if m != n {
		panic(errors.New("qp: G must be square"))
	}
	nx = n
	if p.C.Len() != nx {
		panic(errors.New("qp: c length does not match G"))
	}
	if (p.Ae == nil) != (p.Be == nil) {
		panic(errors.New("qp: Ae and be must be supplied together"))
	}
	if (p.Ai == nil) != (p.Bi == nil) {
		panic(errors.New("qp: Ai and bi must be supplied together"))
	}
	if p.Ae != nil {
		r, c := p.Ae.Dims()
		if c != nx || p.Be.Len() != r {
			panic(errors.New("qp: equality block dimensions do not match"))
		}
		ne = r
	}
	if p.Ai != nil {
		r, c := p.Ai.Dims()
		if c != nx || p.Bi.Len() != r {
			panic(errors.New("qp: inequality block dimensions do not match"))
		}
		ni = r
	}
	if p.X0 != nil && p.X0.Len() != nx {
		panic(errors.New("qp: x0 length does not match G"))
	}
	return nx, ne, ni
}

// start returns a mutable copy of the starting point, defaulting to the
// origin when X0 is nil.
func (p *Problem) start(nx int) *mat.VecDense {
	x := mat.NewVecDense(nx, nil)
	if p.X0 != nil {
		for i := 0; i < nx; i++ {
			x.SetVec(i, p.X0.AtVec(i))
		}
	}
	return x
}
