package qp

import (
	"gonum.org/v1/gonum/mat"
)

// workingSet owns the constraint rows of one solve. The equality rows are
// permanent members of the set; every inequality row is at all times either
// active, meaning it is treated as an equality by the subproblem, or
// inactive. Rows live in a fixed arena and membership is tracked with index
// slices, so adding or dropping a constraint never copies coefficient data.
type workingSet struct {
	nx, ne int

	// a holds all constraint coefficient rows, equalities first, then every
	// inequality row in the order supplied. b holds the matching right hand
	// sides.
	a *mat.Dense
	b *mat.VecDense

	// active and inactive partition the inequality arena indices
	// ne .. ne+ni-1. active preserves insertion order, which fixes the
	// ordering of the inequality multipliers.
	active   []int
	inactive []int
}

// newWorkingSet partitions the inequality rows at the feasible point x:
// a row is initially active when its residual aᵀx - b is within activeTol of
// zero. With no inequality block both partitions are empty.
func newWorkingSet(p *Problem, x mat.Vector, nx, ne, ni int, activeTol float64) *workingSet {
	ws := &workingSet{nx: nx, ne: ne}
	if ne+ni == 0 {
		return ws
	}

	ws.a = mat.NewDense(ne+ni, nx, nil)
	ws.b = mat.NewVecDense(ne+ni, nil)
	for i := 0; i < ne; i++ {
		for j := 0; j < nx; j++ {
			ws.a.Set(i, j, p.Ae.At(i, j))
		}
		ws.b.SetVec(i, p.Be.AtVec(i))
	}
	for i := 0; i < ni; i++ {
		for j := 0; j < nx; j++ {
			ws.a.Set(ne+i, j, p.Ai.At(i, j))
		}
		ws.b.SetVec(ne+i, p.Bi.AtVec(i))
	}

	for i := 0; i < ni; i++ {
		idx := ne + i
		r := mat.Dot(ws.a.RowView(idx), x) - ws.b.AtVec(idx)
		if r < activeTol && r > -activeTol {
			ws.active = append(ws.active, idx)
		} else {
			ws.inactive = append(ws.inactive, idx)
		}
	}
	return ws
}

// size is the number of rows in the effective constraint system, equalities
// plus currently active inequalities.
func (ws *workingSet) size() int {
	return ws.ne + len(ws.active)
}

// coeff assembles the coefficient matrix of the working set, equality rows
// first and active rows in insertion order. It returns nil when the set is
// empty.
func (ws *workingSet) coeff() *mat.Dense {
	m := ws.size()
	if m == 0 {
		return nil
	}
	dst := mat.NewDense(m, ws.nx, nil)
	for i := 0; i < ws.ne; i++ {
		dst.SetRow(i, mat.Row(nil, i, ws.a))
	}
	for k, idx := range ws.active {
		dst.SetRow(ws.ne+k, mat.Row(nil, idx, ws.a))
	}
	return dst
}

// row returns the coefficient vector and right hand side of an arena row.
func (ws *workingSet) row(idx int) (mat.Vector, float64) {
	return ws.a.RowView(idx), ws.b.AtVec(idx)
}

// drop moves the k-th active row (in insertion order) to the inactive set.
func (ws *workingSet) drop(k int) {
	idx := ws.active[k]
	ws.active = append(ws.active[:k], ws.active[k+1:]...)
	ws.inactive = append(ws.inactive, idx)
}

// activate moves the k-th inactive row into the active set, appending it so
// its multiplier comes last.
func (ws *workingSet) activate(k int) {
	idx := ws.inactive[k]
	ws.inactive = append(ws.inactive[:k], ws.inactive[k+1:]...)
	ws.active = append(ws.active, idx)
}

// activeRows reports the original inequality row indices of the active set in
// working-set order.
func (ws *workingSet) activeRows() []int {
	rows := make([]int, len(ws.active))
	for k, idx := range ws.active {
		rows[k] = idx - ws.ne
	}
	return rows
}
