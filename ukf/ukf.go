// Package ukf implements the unscented Kalman filter for discrete-time
// nonlinear state estimation with additive Gaussian noise
//
//	x[k+1] = f(x[k]) + w,  w ~ N(0, Q)
//	z[k]   = h(x[k]) + v,  v ~ N(0, R)
//
// The state distribution is carried through the nonlinearities by the
// scaled sigma point transform of van der Merwe instead of a linearization,
// so no Jacobians are required.
//
// https://en.wikipedia.org/wiki/Kalman_filter#Unscented_Kalman_filter
package ukf

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/zhengang-zhong/ocp-solver/matext"
)

// ErrNotPositiveDefinite is returned when a covariance loses positive
// definiteness and its Cholesky square root cannot be formed.
var ErrNotPositiveDefinite = errors.New("ukf: covariance is not positive definite")

// Model describes the discrete-time system being estimated.
type Model struct {
	// F is the state transition x[k+1] = F(x[k]).
	F func(x mat.Vector) *mat.VecDense
	// H maps a state to the expected measurement.
	H func(x mat.Vector) *mat.VecDense
	// Q is the additive process noise covariance.
	Q *mat.SymDense
	// R is the additive measurement noise covariance.
	R *mat.SymDense
}

// Scaling holds the sigma point spread parameters. The zero value selects
// Alpha = 1e-3, Beta = 2 and Kappa = 0, the usual choice for Gaussian
// priors.
type Scaling struct {
	Alpha, Beta, Kappa float64
}

func (s Scaling) withDefaults() Scaling {
	if s.Alpha == 0 {
		s.Alpha = 1e-3
	}
	if s.Beta == 0 {
		s.Beta = 2
	}
	return s
}

// Estimate is the filter state after an update.
type Estimate struct {
	State      *mat.VecDense
	Covariance *mat.SymDense
	// Innovation is the measurement residual z - h(x̂) of the update that
	// produced this estimate.
	Innovation *mat.VecDense
}

// Filter carries the state estimate and its covariance between steps.
type Filter struct {
	model Model
	nx    int

	// sigma point weights for the mean and the covariance
	wm, wc []float64
	spread float64

	x *mat.VecDense
	p *mat.SymDense
}

// New creates a filter at the initial estimate x0 with covariance p0.
func New(model Model, x0 mat.Vector, p0 *mat.SymDense, s Scaling) *Filter {
	if model.F == nil || model.H == nil || model.Q == nil || model.R == nil {
		panic(errors.New("ukf: model requires transition, measurement and both noise covariances"))
	}
	nx := x0.Len()
	if model.Q.SymmetricDim() != nx || p0.SymmetricDim() != nx {
		panic(errors.New("ukf: covariance dimensions do not match the state"))
	}

	s = s.withDefaults()
	lambda := s.Alpha*s.Alpha*(float64(nx)+s.Kappa) - float64(nx)

	f := &Filter{
		model:  model,
		nx:     nx,
		wm:     make([]float64, 2*nx+1),
		wc:     make([]float64, 2*nx+1),
		spread: math.Sqrt(float64(nx) + lambda),
		x:      mat.NewVecDense(nx, nil),
		p:      mat.NewSymDense(nx, nil),
	}
	f.wm[0] = lambda / (float64(nx) + lambda)
	f.wc[0] = f.wm[0] + 1 - s.Alpha*s.Alpha + s.Beta
	for i := 1; i <= 2*nx; i++ {
		f.wm[i] = 1 / (2 * (float64(nx) + lambda))
		f.wc[i] = f.wm[i]
	}

	f.x.CloneFromVec(x0)
	f.p.CopySym(p0)
	return f
}

// State returns the current estimate.
func (f *Filter) State() *mat.VecDense {
	out := mat.NewVecDense(f.nx, nil)
	out.CloneFromVec(f.x)
	return out
}

// Covariance returns the current estimate covariance.
func (f *Filter) Covariance() *mat.SymDense {
	out := mat.NewSymDense(f.nx, nil)
	out.CopySym(f.p)
	return out
}

// sigmaPoints draws the 2n+1 scaled sigma points of (x, p), one per column.
func (f *Filter) sigmaPoints() (*mat.Dense, error) {
	var chol mat.Cholesky
	if !chol.Factorize(f.p) {
		return nil, ErrNotPositiveDefinite
	}
	var root mat.TriDense
	chol.LTo(&root)

	points := mat.NewDense(f.nx, 2*f.nx+1, nil)
	for i := 0; i < f.nx; i++ {
		points.Set(i, 0, f.x.AtVec(i))
		for j := 0; j < f.nx; j++ {
			off := f.spread * root.At(i, j)
			points.Set(i, 1+j, f.x.AtVec(i)+off)
			points.Set(i, 1+f.nx+j, f.x.AtVec(i)-off)
		}
	}
	return points, nil
}

// transform pushes every sigma point column through fn and recombines the
// images into their weighted mean and covariance, plus noise.
func (f *Filter) transform(points *mat.Dense, fn func(x mat.Vector) *mat.VecDense, noise *mat.SymDense) (*mat.VecDense, *mat.SymDense, *mat.Dense) {
	_, cols := points.Dims()
	first := fn(points.ColView(0))
	dim := first.Len()

	images := mat.NewDense(dim, cols, nil)
	for j := 0; j < cols; j++ {
		img := first
		if j > 0 {
			img = fn(points.ColView(j))
		}
		for i := 0; i < dim; i++ {
			images.Set(i, j, img.AtVec(i))
		}
	}

	mean := mat.NewVecDense(dim, nil)
	for j := 0; j < cols; j++ {
		mean.AddScaledVec(mean, f.wm[j], images.ColView(j))
	}

	cov := mat.NewSymDense(dim, nil)
	cov.CopySym(noise)
	dev := mat.NewVecDense(dim, nil)
	for j := 0; j < cols; j++ {
		dev.SubVec(images.ColView(j), mean)
		cov.SymRankOne(cov, f.wc[j], dev)
	}
	return mean, cov, images
}

// Predict propagates the estimate one step through the state transition.
func (f *Filter) Predict() error {
	points, err := f.sigmaPoints()
	if err != nil {
		return err
	}
	mean, cov, _ := f.transform(points, f.model.F, f.model.Q)
	f.x = mean
	f.p = cov
	return nil
}

// Update folds the measurement z into the estimate and returns the
// posterior.
func (f *Filter) Update(z mat.Vector) (*Estimate, error) {
	nz := f.model.R.SymmetricDim()
	if z.Len() != nz {
		panic(errors.New("ukf: measurement does not match the noise covariance"))
	}

	points, err := f.sigmaPoints()
	if err != nil {
		return nil, err
	}
	zhat, s, images := f.transform(points, f.model.H, f.model.R)

	// Cross covariance between state and measurement sigma deviations.
	pxz := mat.NewDense(f.nx, nz, nil)
	dx := mat.NewVecDense(f.nx, nil)
	dz := mat.NewVecDense(nz, nil)
	for j := 0; j < 2*f.nx+1; j++ {
		dx.SubVec(points.ColView(j), f.x)
		dz.SubVec(images.ColView(j), zhat)
		for i := 0; i < f.nx; i++ {
			for k := 0; k < nz; k++ {
				pxz.Set(i, k, pxz.At(i, k)+f.wc[j]*dx.AtVec(i)*dz.AtVec(k))
			}
		}
	}

	var cholS mat.Cholesky
	if !cholS.Factorize(s) {
		return nil, ErrNotPositiveDefinite
	}
	// K = Pxz S⁻¹ via S Kᵀ = Pxzᵀ.
	var kt mat.Dense
	if err := cholS.SolveTo(&kt, pxz.T()); err != nil {
		return nil, ErrNotPositiveDefinite
	}
	var gain mat.Dense
	gain.CloneFrom(kt.T())

	innovation := mat.NewVecDense(nz, nil)
	innovation.SubVec(z, zhat)

	corr := mat.NewVecDense(f.nx, nil)
	corr.MulVec(&gain, innovation)
	f.x.AddVec(f.x, corr)

	// P = P - K S Kᵀ, symmetrized entry by entry.
	var ks, ksk mat.Dense
	ks.Mul(&gain, s)
	ksk.Mul(&ks, gain.T())
	for i := 0; i < f.nx; i++ {
		for j := i; j < f.nx; j++ {
			v := f.p.At(i, j) - (ksk.At(i, j)+ksk.At(j, i))/2
			f.p.SetSym(i, j, v)
		}
	}
	if matext.NaNOrInf(f.p) {
		return nil, ErrNotPositiveDefinite
	}

	return &Estimate{State: f.State(), Covariance: f.Covariance(), Innovation: innovation}, nil
}

// Step runs one predict-update cycle on the measurement z.
func (f *Filter) Step(z mat.Vector) (*Estimate, error) {
	if err := f.Predict(); err != nil {
		return nil, err
	}
	return f.Update(z)
}
