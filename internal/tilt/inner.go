package tilt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// innerState seeds one inner solve. The outer loop prepares it: zeros for a
// cold start, or the previous decomposition with a projected multiplier and a
// de-escalated penalty for a warm start. The solver takes whatever is passed.
type innerState struct {
	A, E, Y *mat.Dense
	Mu      float64
}

// innerResult is the outcome of one inner solve at a fixed linearization.
type innerResult struct {
	A, E, Y    *mat.Dense
	DeltaTau   []float64
	Mu         float64
	Objective  float64
	Iters      int
	Degenerate bool
}

// admSolve minimizes ||A||_* + lambda*||E||_1 subject to d + J*dtau = A + E
// and S*dtau = 0, by alternating singular value thresholding for A,
// elementwise soft thresholding for E, and a normal-equation solve for dtau
// (the constraint rows enter through ts). The multiplier Y tracks the
// equality residual and the penalty mu grows by opts.Rho whenever the scaled
// change of E stalls below the change tolerance.
func admSolve(d, jac *mat.Dense, ts *tauSolver, init innerState, lambda float64, opts Options) (innerResult, error) {
	m, n := d.Dims()
	p := ts.p

	a := mat.DenseCopyOf(init.A)
	e := mat.DenseCopyOf(init.E)
	y := mat.DenseCopyOf(init.Y)
	mu := init.Mu

	dnorm := mat.Norm(d, 2)
	dtau := make([]float64, p)
	dtauPrev := make([]float64, p)

	jd := mat.NewDense(m, n, nil)      // current J*dtau, as an image
	tmp := mat.NewDense(m, n, nil)     // shared scratch
	yScaled := mat.NewDense(m, n, nil) // Y / mu
	ePrev := mat.NewDense(m, n, nil)
	resid := mat.NewDense(m, n, nil)

	res := innerResult{A: a, E: e, Y: y, Mu: mu, DeltaTau: dtau}
	var rank int
	var nuclear float64

	for it := 1; it <= opts.InnerMaxIter; it++ {
		res.Iters = it
		yScaled.Scale(1/mu, y)

		// Low-rank update: threshold singular values of D + J*dtau - E + Y/mu.
		tmp.Sub(d, e)
		tmp.Add(tmp, jd)
		tmp.Add(tmp, yScaled)
		var err error
		rank, nuclear, err = svt(a, tmp, 1/mu)
		if err != nil {
			return res, fmt.Errorf("low-rank update: %w", err)
		}

		// Sparse update: soft-threshold D + J*dtau - A + Y/mu at lambda/mu.
		tmp.Sub(d, a)
		tmp.Add(tmp, jd)
		tmp.Add(tmp, yScaled)
		ePrev.CloneFrom(e)
		softThreshold(e, tmp, lambda/mu)

		// Parameter update: least-squares against the linearized constraint.
		if p > 0 {
			tmp.Add(a, e)
			tmp.Sub(tmp, d)
			tmp.Sub(tmp, yScaled)
			var rhs mat.VecDense
			rhs.MulVec(jac.T(), mat.NewVecDense(m*n, flatten(tmp)))
			copy(dtauPrev, dtau)
			sol, err := ts.solve(rhs.RawVector().Data)
			if err != nil {
				res.Degenerate = true
				return res, nil
			}
			copy(dtau, sol)

			var jdVec mat.VecDense
			jdVec.MulVec(jac, mat.NewVecDense(p, dtau))
			unflattenInto(jd, jdVec.RawVector().Data)
		}

		// Multiplier and penalty.
		resid.Add(d, jd)
		resid.Sub(resid, a)
		resid.Sub(resid, e)
		tmp.Scale(mu, resid)
		y.Add(y, tmp)

		primal := mat.Norm(resid, 2) / dnorm

		tmp.Sub(e, ePrev)
		if mu*mat.Norm(tmp, 2)/dnorm < opts.InnerChangeTol {
			mu = math.Min(mu*opts.Rho, opts.MuMax)
		}

		change := 0.0
		if p > 0 {
			change = vecDiffNorm(dtau, dtauPrev) / math.Max(1, vecNorm(dtauPrev))
		}

		if opts.DisplayPeriod > 0 && it%opts.DisplayPeriod == 0 {
			fmt.Printf("    inner %4d: mu=%.3g rank=%d primal=%.3g change=%.3g\n",
				it, mu, rank, primal, change)
		}

		if it > opts.DegenerateBurnIn {
			// A trivial decomposition means the low-rank term vanished AND the
			// sparse term took over the patch energy. Rank-0 iterates on their
			// own are normal while a de-escalated warm-start penalty climbs
			// back above the SVT activation level.
			enorm := mat.Norm(e, 2)
			if rank == 0 && enorm >= 0.99*dnorm {
				res.Degenerate = true
				return res, nil
			}
			if nonzeroFraction(e) > opts.MaxSparseFill && enorm > 0.99*dnorm {
				res.Degenerate = true
				return res, nil
			}
		}

		if primal < opts.InnerTol && change < opts.InnerChangeTol {
			break
		}
	}

	res.Mu = mu
	res.Objective = nuclear + lambda*l1Norm(e)
	return res, nil
}

// unflattenInto writes a row-major vector into dst.
func unflattenInto(dst *mat.Dense, v []float64) {
	r, c := dst.Dims()
	for i := 0; i < r; i++ {
		dst.SetRow(i, v[i*c:(i+1)*c])
	}
}

func vecNorm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func vecDiffNorm(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
