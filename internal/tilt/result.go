package tilt

import (
	"errors"
	"time"

	"tilt-rectify/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// Sentinel errors returned by Refine.
var (
	// ErrInvalidConfig is returned before any iteration when the options or
	// inputs are malformed.
	ErrInvalidConfig = errors.New("tilt: invalid configuration")
	// ErrDegenerate is returned when the solver collapses to a trivial
	// decomposition; the run is terminal and the decomposition in the result
	// is shaped but not meaningful.
	ErrDegenerate = errors.New("tilt: degenerate solution")
)

// Status is the terminal state of a rectification run.
type Status int

const (
	// StatusConverged means the objective change fell below the outer tolerance.
	StatusConverged Status = iota
	// StatusMaxIter means the outer iteration budget was exhausted; the
	// result still holds the best available estimate.
	StatusMaxIter
	// StatusDegenerate means the inner solver detected a trivial solution
	// and the run was aborted.
	StatusDegenerate
)

// String returns a short status name.
func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusMaxIter:
		return "max-iterations"
	case StatusDegenerate:
		return "degenerate"
	}
	return "unknown"
}

// Result holds the output of a rectification run. Inspect Status (or the
// error returned alongside) before trusting the decomposition.
type Result struct {
	// Patch is the rectified, unit-Frobenius-norm patch at the final
	// linearization.
	Patch *mat.Dense
	// LowRank and Sparse decompose Patch: Patch ~ LowRank + Sparse.
	LowRank *mat.Dense
	Sparse  *mat.Dense

	// Objective is the final nuclear norm + weighted L1 value.
	Objective float64

	// Tau is the final parameter vector and Transform the corresponding 3x3
	// matrix mapping window coordinates to original image coordinates.
	Tau       []float64
	Transform *mat.Dense

	Status     Status
	OuterIters int
	InnerIters int

	// Window is the output grid of the rectified patch and ScaleFactor the
	// downscale applied to the source before solving.
	Window      geometry.Window
	ScaleFactor float64

	Elapsed time.Duration
}
