package matext

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestEye(t *testing.T) {
	id := Eye(3)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.
			if i == j {
				want = 1
			}
			if id.At(i, j) != want {
				t.Errorf("Eye(3)[%d,%d] = %v", i, j, id.At(i, j))
			}
		}
	}
}

func TestNaNOrInf(t *testing.T) {
	clean := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	if NaNOrInf(clean) {
		t.Error("finite matrix flagged")
	}
	dirty := mat.NewDense(2, 2, []float64{1, math.NaN(), 3, 4})
	if !NaNOrInf(dirty) {
		t.Error("NaN not flagged")
	}
	inf := mat.NewDense(2, 2, []float64{1, 2, math.Inf(-1), 4})
	if !NaNOrInf(inf) {
		t.Error("Inf not flagged")
	}
}

func TestSnapVec(t *testing.T) {
	v := mat.NewVecDense(3, []float64{1e-14, -2, 3e-11})
	SnapVec(v, 1e-10)
	if v.AtVec(0) != 0 || v.AtVec(2) != 0 {
		t.Errorf("small entries not snapped: %v", v.RawVector().Data)
	}
	if v.AtVec(1) != -2 {
		t.Error("large entry modified")
	}
}
