package tilt

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// tauSolver solves the normal equations (J'J + S'S) x = rhs shared by the
// parameter-update step of the inner solver and the warm-start multiplier
// projection. The system is factorized once per linearization. When the
// constraint rows make it (near-)singular the solver falls back to a
// pseudo-inverse built from the SVD, dropping directions below a relative
// singular-value cutoff.
type tauSolver struct {
	p    int
	chol mat.Cholesky
	spd  bool
	pinv *mat.Dense
}

// pinvCutoff is the relative singular-value threshold below which normal
// directions are treated as null space.
const pinvCutoff = 1e-12

func newTauSolver(jac, s *mat.Dense) (*tauSolver, error) {
	_, p := jac.Dims()
	ts := &tauSolver{p: p}
	if p == 0 {
		return ts, nil
	}

	var g mat.Dense
	g.Mul(jac.T(), jac)
	if rows, _ := s.Dims(); rows > 0 {
		var gs mat.Dense
		gs.Mul(s.T(), s)
		g.Add(&g, &gs)
	}

	sym := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			sym.SetSym(i, j, (g.At(i, j)+g.At(j, i))/2)
		}
	}
	if ts.chol.Factorize(sym) {
		ts.spd = true
		return ts, nil
	}

	var svd mat.SVD
	if !svd.Factorize(&g, mat.SVDFull) {
		return nil, fmt.Errorf("normal equations SVD failed")
	}
	vals := svd.Values(nil)
	cutoff := pinvCutoff * vals[0]
	if vals[0] == 0 {
		return nil, fmt.Errorf("normal equations are identically zero")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	inv := make([]float64, len(vals))
	for i, sv := range vals {
		if sv > cutoff {
			inv[i] = 1 / sv
		}
	}
	ts.pinv = mat.NewDense(p, p, nil)
	ts.pinv.Product(&v, mat.NewDiagDense(p, inv), u.T())
	return ts, nil
}

// solve returns x with (J'J + S'S) x = rhs.
func (ts *tauSolver) solve(rhs []float64) ([]float64, error) {
	if ts.p == 0 {
		return nil, nil
	}
	if len(rhs) != ts.p {
		return nil, fmt.Errorf("rhs length %d, want %d", len(rhs), ts.p)
	}
	out := make([]float64, ts.p)
	if ts.spd {
		var x mat.VecDense
		if err := ts.chol.SolveVecTo(&x, mat.NewVecDense(ts.p, rhs)); err != nil {
			return nil, err
		}
		copy(out, x.RawVector().Data)
		return out, nil
	}
	var x mat.VecDense
	x.MulVec(ts.pinv, mat.NewVecDense(ts.p, rhs))
	copy(out, x.RawVector().Data)
	return out, nil
}
