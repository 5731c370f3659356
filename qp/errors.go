package qp

import "errors"

var (
	// ErrInfeasibleStart indicates the starting point violates a supplied
	// equality or inequality constraint.
	ErrInfeasibleStart = errors.New("qp: starting point violates constraints")

	// ErrSingularKKT indicates the KKT matrix for the current working set is
	// not invertible: the constraint rows are rank deficient or G is not
	// invertible on their null space. The working set is not repaired
	// automatically since that could mask a modeling error.
	ErrSingularKKT = errors.New("qp: singular KKT system for current working set")

	// ErrIterationLimit indicates the active-set loop exhausted its iteration
	// budget before certifying optimality. The latest iterate is still
	// returned alongside this error; the objective never increases along
	// accepted steps, so it is also the best one visited.
	ErrIterationLimit = errors.New("qp: iteration limit reached before optimality")

	// ErrInvalidInput indicates a NaN or Inf entry in the problem data.
	ErrInvalidInput = errors.New("qp: NaN or Inf in problem data")
)
