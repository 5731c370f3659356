// Command qpdemo solves a small two-dimensional quadratic program with the
// active-set solver, prints the optimum and its multipliers, and renders the
// feasible region boundaries together with the start and solution points to
// qpdemo.png.
package main

import (
	"fmt"
	"log"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/zhengang-zhong/ocp-solver/qp"
)

func main() {
	// minimize (x1-1)² + (x2-2.5)² over a pentagon.
	ai := mat.NewDense(5, 2, []float64{
		1, -2,
		-1, -2,
		-1, 2,
		1, 0,
		0, 1,
	})
	problem := &qp.Problem{
		G:  mat.NewSymDense(2, []float64{2, 0, 0, 2}),
		C:  mat.NewVecDense(2, []float64{-2, -5}),
		Ai: ai,
		Bi: mat.NewVecDense(5, []float64{-2, -6, -2, 0, 0}),
		X0: mat.NewVecDense(2, []float64{2, 0}),
	}

	res, err := qp.Solve(problem, qp.Settings{})
	if err != nil {
		log.Fatalf("solve: %v", err)
	}

	fmt.Printf("optimum after %d iterations:\nx = %v\n",
		res.Iterations, mat.Formatted(res.X.T()))
	if res.Lambda != nil {
		fmt.Printf("lambda = %v\n", mat.Formatted(res.Lambda.T()))
	}
	fmt.Printf("active rows: %v\n", res.Active)

	if err := render(ai, problem, res, "qpdemo.png"); err != nil {
		log.Fatalf("render: %v", err)
	}
	fmt.Println("wrote qpdemo.png")
}

// render draws every constraint boundary aᵀx = b plus the start and the
// optimum.
func render(ai *mat.Dense, problem *qp.Problem, res *qp.Result, name string) error {
	p := plot.New()
	p.Title.Text = "Active-Set QP"
	p.X.Label.Text = "x1"
	p.Y.Label.Text = "x2"

	rows, _ := ai.Dims()
	args := make([]interface{}, 0, 2*rows)
	for i := 0; i < rows; i++ {
		args = append(args,
			fmt.Sprintf("row %d", i),
			boundary(ai.RawRowView(i), problem.Bi.AtVec(i)))
	}
	if err := plotutil.AddLines(p, args...); err != nil {
		return err
	}

	points, err := plotter.NewScatter(plotter.XYs{
		{X: problem.X0.AtVec(0), Y: problem.X0.AtVec(1)},
		{X: res.X.AtVec(0), Y: res.X.AtVec(1)},
	})
	if err != nil {
		return err
	}
	p.Add(points)
	p.Legend.Add("start / optimum", points)

	return p.Save(4*vg.Inch, 4*vg.Inch, name)
}

// boundary samples the line a·x = b over x1 ∈ [-1, 5].
func boundary(a []float64, b float64) plotter.XYs {
	const samples = 50
	pts := make(plotter.XYs, 0, samples)
	for i := 0; i < samples; i++ {
		x1 := -1 + 6*float64(i)/float64(samples-1)
		if a[1] == 0 {
			// Vertical line x1 = b/a[0].
			pts = append(pts, plotter.XY{X: b / a[0], Y: -1 + 6*float64(i)/float64(samples-1)})
			continue
		}
		pts = append(pts, plotter.XY{X: x1, Y: (b - a[0]*x1) / a[1]})
	}
	return pts
}
