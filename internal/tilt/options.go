// Package tilt recovers a transform-invariant low-rank texture from an image
// patch: it jointly estimates a geometric transform and a low-rank + sparse
// decomposition of the rectified patch, using an outer re-linearization loop
// around a linearized ADM solver with adaptive penalty.
package tilt

import (
	"fmt"

	"tilt-rectify/internal/transform"
)

// OuterEvent describes one completed outer iteration. It is delivered to the
// optional Observer callback instead of retaining the full iteration history.
type OuterEvent struct {
	Iteration  int
	Objective  float64
	Tau        []float64
	DeltaTau   []float64
	InnerIters int
	Mu         float64
}

// Options configures a rectification run. Construct with DefaultOptions and
// override fields as needed; every field is resolved and validated once
// before the first iteration.
type Options struct {
	// Restriction optionally freezes degrees of freedom of the chosen family.
	Restriction transform.Restriction

	// OuterTol stops the outer loop when the objective changes by less, or
	// when the relative parameter update falls below it.
	OuterTol float64
	// OuterMaxIter caps the number of re-linearizations.
	OuterMaxIter int

	// InnerTol (tol1) bounds the relative primal feasibility residual.
	InnerTol float64
	// InnerChangeTol (tol2) bounds the relative change of the parameter
	// update between inner iterations, and gates the penalty growth.
	InnerChangeTol float64
	// InnerMaxIter caps one inner solve.
	InnerMaxIter int

	// SparsityWeight is the constant c in lambda = c / sqrt(rows).
	SparsityWeight float64
	// MuSeed is the initial penalty for cold starts; 0 selects
	// 1.25 / (largest singular value of the patch).
	MuSeed float64
	// MuMax caps the penalty parameter.
	MuMax float64
	// Rho is the multiplicative penalty growth factor.
	Rho float64

	// WarmStart reuses the previous decomposition and projected multiplier
	// to seed the next inner solve.
	WarmStart bool
	// WarmMuShrink de-escalates the warm-started penalty: the previous final
	// mu is divided by Rho^WarmMuShrink. Empirical; tune per input class.
	WarmMuShrink float64

	// DegenerateBurnIn is the number of inner iterations before degeneracy
	// checks are applied.
	DegenerateBurnIn int
	// MaxSparseFill is the nonzero fraction of the sparse term above which,
	// combined with the sparse term absorbing nearly all patch energy, the
	// solution is declared degenerate.
	MaxSparseFill float64

	// MaxPatchDim downscales the focus region so its larger side does not
	// exceed this many pixels; the applied factor is reported in the result.
	MaxPatchDim int

	// DisplayPeriod prints progress every that many iterations (0 = silent).
	DisplayPeriod int

	// Observer, if set, is invoked once per completed outer iteration.
	Observer func(OuterEvent)
}

// DefaultOptions returns the options used when the caller has no reason to
// deviate. Tolerances follow the usual adaptive-penalty ADM settings for
// unit-normalized patches.
func DefaultOptions() Options {
	return Options{
		Restriction:      transform.NoRestriction,
		OuterTol:         1e-4,
		OuterMaxIter:     50,
		InnerTol:         1e-6,
		InnerChangeTol:   1e-5,
		InnerMaxIter:     1000,
		SparsityWeight:   1,
		MuSeed:           0,
		MuMax:            1e10,
		Rho:              4,
		WarmStart:        true,
		WarmMuShrink:     8,
		DegenerateBurnIn: 5,
		MaxSparseFill:    0.9,
		MaxPatchDim:      200,
	}
}

// Validate reports the first malformed option, or nil.
func (o Options) Validate() error {
	switch {
	case o.OuterTol <= 0:
		return fmt.Errorf("%w: outer tolerance %g must be positive", ErrInvalidConfig, o.OuterTol)
	case o.OuterMaxIter <= 0:
		return fmt.Errorf("%w: outer iteration cap %d must be positive", ErrInvalidConfig, o.OuterMaxIter)
	case o.InnerTol <= 0:
		return fmt.Errorf("%w: inner tolerance %g must be positive", ErrInvalidConfig, o.InnerTol)
	case o.InnerChangeTol <= 0:
		return fmt.Errorf("%w: inner change tolerance %g must be positive", ErrInvalidConfig, o.InnerChangeTol)
	case o.InnerMaxIter <= 0:
		return fmt.Errorf("%w: inner iteration cap %d must be positive", ErrInvalidConfig, o.InnerMaxIter)
	case o.SparsityWeight <= 0:
		return fmt.Errorf("%w: sparsity weight %g must be positive", ErrInvalidConfig, o.SparsityWeight)
	case o.MuSeed < 0:
		return fmt.Errorf("%w: mu seed %g must not be negative", ErrInvalidConfig, o.MuSeed)
	case o.MuMax <= 0:
		return fmt.Errorf("%w: mu cap %g must be positive", ErrInvalidConfig, o.MuMax)
	case o.Rho <= 1:
		return fmt.Errorf("%w: penalty growth factor %g must exceed 1", ErrInvalidConfig, o.Rho)
	case o.WarmMuShrink < 0:
		return fmt.Errorf("%w: warm-start mu shrink %g must not be negative", ErrInvalidConfig, o.WarmMuShrink)
	case o.DegenerateBurnIn < 0:
		return fmt.Errorf("%w: degeneracy burn-in %d must not be negative", ErrInvalidConfig, o.DegenerateBurnIn)
	case o.MaxSparseFill <= 0 || o.MaxSparseFill > 1:
		return fmt.Errorf("%w: max sparse fill %g must be in (0, 1]", ErrInvalidConfig, o.MaxSparseFill)
	case o.MaxPatchDim < 2:
		return fmt.Errorf("%w: max patch dimension %d must be at least 2", ErrInvalidConfig, o.MaxPatchDim)
	}
	return nil
}
