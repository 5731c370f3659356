package dynamics

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// Control is a control trajectory u(t).
type Control interface {
	Value(t float64) mat.Vector
}

// Constant holds a single control value for all time.
type Constant struct {
	U mat.Vector
}

// Value returns the constant control.
func (c Constant) Value(t float64) mat.Vector {
	return c.U
}

// ZeroOrderHold is a piecewise constant control trajectory: sample row k is
// held on [T0 + k·Ts, T0 + (k+1)·Ts). Times outside the sampled range clamp
// to the first respectively last sample.
type ZeroOrderHold struct {
	T0      float64
	Ts      float64
	Samples *mat.Dense
}

// NewZeroOrderHold creates a zero order hold over samples, one control vector
// per row.
func NewZeroOrderHold(t0, ts float64, samples *mat.Dense) *ZeroOrderHold {
	if ts <= 0 {
		panic(errors.New("dynamics: sample period must be positive"))
	}
	return &ZeroOrderHold{T0: t0, Ts: ts, Samples: samples}
}

// Value returns the held control at time t.
func (z *ZeroOrderHold) Value(t float64) mat.Vector {
	n, _ := z.Samples.Dims()
	k := int((t - z.T0) / z.Ts)
	if k < 0 {
		k = 0
	}
	if k >= n {
		k = n - 1
	}
	return z.Samples.RowView(k)
}
