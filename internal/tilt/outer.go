package tilt

import (
	"fmt"
	"math"
	"time"

	"tilt-rectify/internal/transform"
	"tilt-rectify/internal/warp"
	"tilt-rectify/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// Refine rectifies the patch of img centered at center with extent focus, by
// alternating re-linearization of the warp around the current transform with
// inner low-rank + sparse solves (a Gauss-Newton shell around a convex
// kernel). initial is an optional 3x3 transform in image coordinates seeding
// the estimate (nil means identity).
//
// A result is returned for every terminal state; callers must check the
// error (ErrDegenerate) and Result.Status before trusting the decomposition.
// Exhausting the outer iteration budget is not an error: the result carries
// the best available estimate with StatusMaxIter.
func Refine(img *mat.Dense, family transform.Family, center geometry.Point2D, focus geometry.Size, initial mat.Matrix, opts Options) (*Result, error) {
	start := time.Now()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := validateInputs(img, family, focus, initial); err != nil {
		return nil, err
	}
	if initial == nil {
		initial = eye3()
	}

	// Downscale the working image so the larger focus side fits the patch
	// budget; the dominant per-iteration cost is an SVD of the patch.
	scale := 1.0
	if maxSide := math.Max(focus.Width, focus.Height); maxSide > float64(opts.MaxPatchDim) {
		scale = float64(opts.MaxPatchDim) / maxSide
	}
	work := img
	init3 := mat.DenseCopyOf(initial)
	if scale != 1 {
		rows, cols := img.Dims()
		full := geometry.NewWindow(0, 0,
			int(math.Ceil(float64(cols)*scale)), int(math.Ceil(float64(rows)*scale)))
		work = warp.Warp(img, scaleMatrix(1/scale), full)
		center = center.Scale(scale)
		focus = geometry.NewSize(focus.Width*scale, focus.Height*scale)
		// Conjugate the seed transform into scaled coordinates.
		var conj mat.Dense
		conj.Product(scaleMatrix(scale), init3, scaleMatrix(1/scale))
		init3 = &conj
	}

	win := geometry.NewWindow(0, 0,
		max(2, int(math.Round(focus.Width))), max(2, int(math.Round(focus.Height))))
	topLeft := center.Sub(geometry.NewPoint2D(
		float64(win.Width-1)/2, float64(win.Height-1)/2))

	var m0 mat.Dense
	m0.Mul(init3, translateMatrix(topLeft.X, topLeft.Y))
	tau, err := transform.MatrixToParameters(&m0, family)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	lambda := opts.SparsityWeight / math.Sqrt(float64(win.Height))
	du, dv := warp.Gradients(work)

	run := &Result{
		Tau:         tau,
		Window:      win,
		ScaleFactor: scale,
	}

	fPrev := math.Inf(1)
	run.Status = StatusMaxIter
	var prev *innerResult

	for outer := 1; outer <= opts.OuterMaxIter; outer++ {
		run.OuterIters = outer

		m, err := transform.ParametersToMatrix(tau, family)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}

		patch := warp.Warp(work, m, win)
		norm := mat.Norm(patch, 2)
		if norm < 1e-12 {
			return degenerateResult(run, patch, m, scale, start),
				fmt.Errorf("%w: warped patch has zero energy", ErrDegenerate)
		}
		d := mat.NewDense(win.Height, win.Width, nil)
		d.Scale(1/norm, patch)

		duW := warp.Warp(du, m, win)
		duW.Scale(1/norm, duW)
		dvW := warp.Warp(dv, m, win)
		dvW.Scale(1/norm, dvW)

		jac, s, err := transform.BuildSensitivity(duW, dvW, win, tau, family, opts.Restriction)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		// The patch is renormalized after every warp, so each sensitivity
		// column loses its component along the patch itself.
		projectColumns(jac, d)

		ts, err := newTauSolver(jac, s)
		if err != nil {
			return degenerateResult(run, d, m, scale, start),
				fmt.Errorf("%w: %v", ErrDegenerate, err)
		}

		init, err := prepareInnerState(d, jac, ts, prev, opts)
		if err != nil {
			return degenerateResult(run, d, m, scale, start),
				fmt.Errorf("%w: %v", ErrDegenerate, err)
		}

		inner, err := admSolve(d, jac, ts, init, lambda, opts)
		run.InnerIters += inner.Iters
		if err != nil {
			return degenerateResult(run, d, m, scale, start),
				fmt.Errorf("%w: %v", ErrDegenerate, err)
		}
		if inner.Degenerate {
			run.Patch = d
			run.LowRank = inner.A
			run.Sparse = inner.E
			return degenerateResult(run, d, m, scale, start),
				fmt.Errorf("%w: trivial decomposition at outer iteration %d", ErrDegenerate, outer)
		}

		for i := range tau {
			tau[i] += inner.DeltaTau[i]
		}

		run.Patch = d
		run.LowRank = inner.A
		run.Sparse = inner.E
		run.Objective = inner.Objective

		if opts.DisplayPeriod > 0 {
			fmt.Printf("outer %3d: f=%.6g inner=%d mu=%.3g\n",
				outer, inner.Objective, inner.Iters, inner.Mu)
		}
		if opts.Observer != nil {
			opts.Observer(OuterEvent{
				Iteration:  outer,
				Objective:  inner.Objective,
				Tau:        append([]float64(nil), tau...),
				DeltaTau:   append([]float64(nil), inner.DeltaTau...),
				InnerIters: inner.Iters,
				Mu:         inner.Mu,
			})
		}

		// A negligible parameter update also counts as converged, so an
		// already-frontal input finishes after a single linearization.
		dtauRel := vecNorm(inner.DeltaTau) / math.Max(1, vecNorm(tau))
		if math.Abs(inner.Objective-fPrev) < opts.OuterTol || dtauRel < opts.OuterTol {
			run.Status = StatusConverged
			break
		}
		fPrev = inner.Objective
		prev = &inner
	}

	run.Tau = tau
	final, err := transform.ParametersToMatrix(tau, family)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	run.Transform = toOriginalCoords(final, scale)
	run.Elapsed = time.Since(start)
	return run, nil
}

// prepareInnerState builds the seed for the next inner solve. Warm starts
// reuse the previous decomposition and remove from the multiplier the
// components the new linearization can explain: Y - J*(J'J+S'S)^-1*(J'Y).
func prepareInnerState(d, jac *mat.Dense, ts *tauSolver, prev *innerResult, opts Options) (innerState, error) {
	rows, cols := d.Dims()

	if prev == nil || !opts.WarmStart {
		mu := opts.MuSeed
		if mu == 0 {
			top, err := spectralNorm(d)
			if err != nil || top == 0 {
				return innerState{}, fmt.Errorf("cannot seed penalty: %v", err)
			}
			mu = 1.25 / top
		}
		return innerState{
			A:  mat.DenseCopyOf(d),
			E:  mat.NewDense(rows, cols, nil),
			Y:  mat.NewDense(rows, cols, nil),
			Mu: mu,
		}, nil
	}

	y := mat.DenseCopyOf(prev.Y)
	if ts.p > 0 {
		var jy mat.VecDense
		jy.MulVec(jac.T(), mat.NewVecDense(rows*cols, flatten(y)))
		sol, err := ts.solve(jy.RawVector().Data)
		if err != nil {
			return innerState{}, fmt.Errorf("multiplier projection: %v", err)
		}
		var corr mat.VecDense
		corr.MulVec(jac, mat.NewVecDense(ts.p, sol))
		tmp := mat.NewDense(rows, cols, nil)
		unflattenInto(tmp, corr.RawVector().Data)
		y.Sub(y, tmp)
	}

	mu := math.Max(prev.Mu/math.Pow(opts.Rho, opts.WarmMuShrink), 1e-8)
	return innerState{
		A:  mat.DenseCopyOf(prev.A),
		E:  mat.DenseCopyOf(prev.E),
		Y:  y,
		Mu: mu,
	}, nil
}

// projectColumns removes from each column of jac its component along the
// flattened patch, accounting for the unit-norm renormalization of the warp.
func projectColumns(jac *mat.Dense, d *mat.Dense) {
	n, p := jac.Dims()
	vecD := flatten(d)
	for k := 0; k < p; k++ {
		var dot float64
		for i := 0; i < n; i++ {
			dot += vecD[i] * jac.At(i, k)
		}
		for i := 0; i < n; i++ {
			jac.Set(i, k, jac.At(i, k)-dot*vecD[i])
		}
	}
}

func validateInputs(img *mat.Dense, family transform.Family, focus geometry.Size, initial mat.Matrix) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidConfig)
	}
	rows, cols := img.Dims()
	if rows < 2 || cols < 2 {
		return fmt.Errorf("%w: image %dx%d is too small", ErrInvalidConfig, rows, cols)
	}
	if !family.Valid() {
		return fmt.Errorf("%w: unknown transform family %v", ErrInvalidConfig, family)
	}
	if focus.Width < 2 || focus.Height < 2 {
		return fmt.Errorf("%w: focus size %gx%g is too small", ErrInvalidConfig, focus.Width, focus.Height)
	}
	if initial != nil {
		r, c := initial.Dims()
		if r != 3 || c != 3 {
			return fmt.Errorf("%w: initial transform must be 3x3, got %dx%d", ErrInvalidConfig, r, c)
		}
	}
	return nil
}

// degenerateResult finalizes a run that hit a terminal failure, keeping the
// shaped (but meaningless) decomposition so the caller sees the full tuple.
func degenerateResult(run *Result, d *mat.Dense, m *mat.Dense, scale float64, start time.Time) *Result {
	rows, cols := d.Dims()
	if run.Patch == nil {
		run.Patch = d
	}
	if run.LowRank == nil {
		run.LowRank = mat.NewDense(rows, cols, nil)
	}
	if run.Sparse == nil {
		run.Sparse = mat.NewDense(rows, cols, nil)
	}
	run.Status = StatusDegenerate
	run.Transform = toOriginalCoords(m, scale)
	run.Elapsed = time.Since(start)
	return run
}

// toOriginalCoords lifts a transform estimated in downscaled coordinates back
// to the original image frame and renormalizes the homogeneous scale.
func toOriginalCoords(m *mat.Dense, scale float64) *mat.Dense {
	out := mat.NewDense(3, 3, nil)
	out.Mul(scaleMatrix(1/scale), m)
	if w := out.At(2, 2); w != 0 && w != 1 {
		out.Scale(1/w, out)
	}
	return out
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

func translateMatrix(tx, ty float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, tx, 0, 1, ty, 0, 0, 1})
}

func scaleMatrix(s float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{s, 0, 0, 0, s, 0, 0, 0, 1})
}
