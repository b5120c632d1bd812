package tilt

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestFlattenRowMajor(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	got := flatten(m)
	want := []float64{1, 2, 3, 4, 5, 6}
	if !floats.Equal(got, want) {
		t.Errorf("flatten = %v, want %v", got, want)
	}
}

func TestSoftThreshold(t *testing.T) {
	src := mat.NewDense(1, 4, []float64{-2, -0.5, 0.5, 2})
	dst := mat.NewDense(1, 4, nil)
	softThreshold(dst, src, 1)
	want := []float64{-1, 0, 0, 1}
	for i, w := range want {
		if got := dst.At(0, i); got != w {
			t.Errorf("entry %d: got %g, want %g", i, got, w)
		}
	}
}

func TestSVTShrinksSingularValues(t *testing.T) {
	// Diagonal matrix with known singular values 3 and 1.
	src := mat.NewDense(2, 2, []float64{3, 0, 0, 1})
	dst := mat.NewDense(2, 2, nil)

	rank, nuclear, err := svt(dst, src, 2)
	if err != nil {
		t.Fatalf("svt: %v", err)
	}
	if rank != 1 {
		t.Errorf("rank = %d, want 1", rank)
	}
	if math.Abs(nuclear-1) > 1e-12 {
		t.Errorf("nuclear = %g, want 1", nuclear)
	}
	if math.Abs(dst.At(0, 0)-1) > 1e-12 || math.Abs(dst.At(1, 1)) > 1e-12 {
		t.Errorf("reconstruction = %v", mat.Formatted(dst))
	}

	rank, _, err = svt(dst, src, 10)
	if err != nil {
		t.Fatalf("svt: %v", err)
	}
	if rank != 0 || mat.Norm(dst, 2) != 0 {
		t.Errorf("over-thresholded svt should zero the output, got rank %d", rank)
	}
}

func TestSpectralNorm(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{0, 5, 0, 0})
	top, err := spectralNorm(m)
	if err != nil {
		t.Fatalf("spectralNorm: %v", err)
	}
	if math.Abs(top-5) > 1e-12 {
		t.Errorf("spectral norm = %g, want 5", top)
	}
}

func TestNonzeroFraction(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{0, 1, 0, -3})
	if got := nonzeroFraction(m); got != 0.5 {
		t.Errorf("nonzeroFraction = %g, want 0.5", got)
	}
}

func TestTauSolverSPD(t *testing.T) {
	jac := mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
		2, -1,
	})
	s := mat.NewDense(1, 2, []float64{0.5, 0.5})
	ts, err := newTauSolver(jac, s)
	if err != nil {
		t.Fatalf("newTauSolver: %v", err)
	}
	if !ts.spd {
		t.Fatal("well-conditioned system should factorize as SPD")
	}

	// Verify (J'J + S'S) x = rhs by substituting back.
	rhs := []float64{1, 2}
	x, err := ts.solve(rhs)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	var g, gs mat.Dense
	g.Mul(jac.T(), jac)
	gs.Mul(s.T(), s)
	g.Add(&g, &gs)
	var back mat.VecDense
	back.MulVec(&g, mat.NewVecDense(2, x))
	if !floats.EqualApprox(back.RawVector().Data, rhs, 1e-10) {
		t.Errorf("G*x = %v, want %v", back.RawVector().Data, rhs)
	}
}

func TestTauSolverPseudoInverseFallback(t *testing.T) {
	// Duplicate columns make J'J exactly singular.
	jac := mat.NewDense(3, 2, []float64{
		1, 1,
		2, 2,
		-1, -1,
	})
	empty := mat.NewDense(1, 2, nil)
	ts, err := newTauSolver(jac, empty)
	if err != nil {
		t.Fatalf("newTauSolver: %v", err)
	}
	if ts.spd {
		t.Fatal("singular system must not report SPD")
	}

	// rhs in the range of G: G*[1,1]' = [12,12]'.
	x, err := ts.solve([]float64{12, 12})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !floats.EqualApprox(x, []float64{1, 1}, 1e-8) {
		t.Errorf("minimum-norm solution = %v, want [1 1]", x)
	}
}
