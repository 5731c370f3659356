package qp

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestWorkingSetInitialPartition(t *testing.T) {
	p := cornerProblem()
	nx, ne, ni := p.dims()
	ws := newWorkingSet(p, p.X0, nx, ne, ni, 1e-9)

	// At x0 = (2,0) the third and fifth inequality rows bind.
	if got := ws.activeRows(); len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("wrong initial active rows: %v", got)
	}
	if len(ws.inactive) != 3 {
		t.Errorf("expected 3 inactive rows, got %d", len(ws.inactive))
	}
	if ws.size() != 2 {
		t.Errorf("working set size should be 2, got %d", ws.size())
	}
}

func TestWorkingSetDropAndActivate(t *testing.T) {
	p := cornerProblem()
	nx, ne, ni := p.dims()
	ws := newWorkingSet(p, p.X0, nx, ne, ni, 1e-9)

	ws.drop(0)
	if got := ws.activeRows(); len(got) != 1 || got[0] != 4 {
		t.Errorf("wrong active rows after drop: %v", got)
	}

	// Re-activate the dropped row: it must come back last.
	k := -1
	for i, idx := range ws.inactive {
		if idx-ws.ne == 2 {
			k = i
		}
	}
	if k < 0 {
		t.Fatal("dropped row not found in inactive set")
	}
	ws.activate(k)
	if got := ws.activeRows(); len(got) != 2 || got[0] != 4 || got[1] != 2 {
		t.Errorf("wrong active rows after activate: %v", got)
	}

	// Every inequality row appears in exactly one partition.
	seen := make(map[int]int)
	for _, idx := range ws.active {
		seen[idx]++
	}
	for _, idx := range ws.inactive {
		seen[idx]++
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 distinct rows, got %d", len(seen))
	}
	for idx, n := range seen {
		if n != 1 {
			t.Errorf("row %d appears %d times", idx, n)
		}
	}
}

func TestWorkingSetEmpty(t *testing.T) {
	p := &Problem{
		G:  mat.NewDense(2, 2, []float64{2, 0, 0, 2}),
		C:  mat.NewVecDense(2, []float64{0, 0}),
		X0: mat.NewVecDense(2, []float64{1, 1}),
	}
	nx, ne, ni := p.dims()
	ws := newWorkingSet(p, p.X0, nx, ne, ni, 1e-9)
	if ws.size() != 0 {
		t.Errorf("empty problem should yield empty working set, got size %d", ws.size())
	}
	if ws.coeff() != nil {
		t.Error("coeff of empty working set should be nil")
	}
}

func TestWorkingSetEqualitiesAlwaysIncluded(t *testing.T) {
	p := &Problem{
		G:  mat.NewDense(2, 2, []float64{2, 0, 0, 2}),
		C:  mat.NewVecDense(2, []float64{0, 0}),
		Ae: mat.NewDense(1, 2, []float64{1, -1}),
		Be: mat.NewVecDense(1, []float64{0}),
		Ai: mat.NewDense(1, 2, []float64{1, 0}),
		Bi: mat.NewVecDense(1, []float64{1}),
		X0: mat.NewVecDense(2, []float64{3, 3}),
	}
	nx, ne, ni := p.dims()
	ws := newWorkingSet(p, p.X0, nx, ne, ni, 1e-9)
	// The inequality has slack at (3,3); only the equality row remains.
	if ws.size() != 1 {
		t.Fatalf("working set size should be 1, got %d", ws.size())
	}
	a := ws.coeff()
	if r, c := a.Dims(); r != 1 || c != 2 {
		t.Fatalf("coeff dims = (%d,%d)", r, c)
	}
	if a.At(0, 0) != 1 || a.At(0, 1) != -1 {
		t.Errorf("equality row not first in working set: %v", mat.Formatted(a))
	}
}
