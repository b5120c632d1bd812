package transform

import (
	"math"
	"testing"

	"tilt-rectify/pkg/geometry"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func sampleTau(f Family) []float64 {
	switch f {
	case Euclidean:
		return []float64{0.3, 12.5, -4.25}
	case Similarity:
		return []float64{1.4, -0.2, 3.5, 8.0}
	case Affine:
		return []float64{1.1, 0.15, 20, -0.08, 0.9, 5}
	case Homography:
		return []float64{1.05, 0.1, 15, -0.06, 0.97, 7, 2e-4, -1e-4}
	}
	return nil
}

func TestParameterMatrixRoundTrip(t *testing.T) {
	for _, f := range []Family{Euclidean, Similarity, Affine, Homography} {
		tau := sampleTau(f)
		m, err := ParametersToMatrix(tau, f)
		if err != nil {
			t.Fatalf("%s: ParametersToMatrix: %v", f, err)
		}
		back, err := MatrixToParameters(m, f)
		if err != nil {
			t.Fatalf("%s: MatrixToParameters: %v", f, err)
		}
		if !floats.EqualApprox(tau, back, 1e-12) {
			t.Errorf("%s: round trip %v -> %v", f, tau, back)
		}
	}
}

func TestMatrixToParametersNormalizesScale(t *testing.T) {
	tau := sampleTau(Homography)
	m, _ := ParametersToMatrix(tau, Homography)
	var scaled mat.Dense
	scaled.Scale(3.7, m)
	back, err := MatrixToParameters(&scaled, Homography)
	if err != nil {
		t.Fatalf("MatrixToParameters: %v", err)
	}
	if !floats.EqualApprox(tau, back, 1e-12) {
		t.Errorf("homogeneous rescale changed parameters: %v vs %v", tau, back)
	}
}

func TestParameterCountMismatch(t *testing.T) {
	if _, err := ParametersToMatrix([]float64{1, 2}, Affine); err == nil {
		t.Error("expected error for wrong parameter count")
	}
}

// coordinate derivative images extracted through the Jacobian: with du=1 and
// dv=0, J's column k is dX/dtau_k at each pixel (and dY/dtau_k with du/dv
// swapped).
func coordJacobian(t *testing.T, tau []float64, f Family, win geometry.Window, horizontal bool) *mat.Dense {
	t.Helper()
	ones := mat.NewDense(win.Height, win.Width, nil)
	zeros := mat.NewDense(win.Height, win.Width, nil)
	for r := 0; r < win.Height; r++ {
		for c := 0; c < win.Width; c++ {
			ones.Set(r, c, 1)
		}
	}
	du, dv := ones, zeros
	if !horizontal {
		du, dv = zeros, ones
	}
	j, _, err := BuildSensitivity(du, dv, win, tau, f, NoRestriction)
	if err != nil {
		t.Fatalf("BuildSensitivity: %v", err)
	}
	return j
}

func TestJacobianMatchesFiniteDifferences(t *testing.T) {
	win := geometry.NewWindow(2, -1, 4, 3)
	const h = 1e-6
	for _, f := range []Family{Euclidean, Similarity, Affine, Homography} {
		tau := sampleTau(f)
		jx := coordJacobian(t, tau, f, win, true)
		jy := coordJacobian(t, tau, f, win, false)

		for k := 0; k < f.ParamCount(); k++ {
			plus := append([]float64(nil), tau...)
			minus := append([]float64(nil), tau...)
			plus[k] += h
			minus[k] -= h
			mp, _ := ParametersToMatrix(plus, f)
			mm, _ := ParametersToMatrix(minus, f)

			for r := 0; r < win.Height; r++ {
				for c := 0; c < win.Width; c++ {
					x := win.X0 + float64(c)
					y := win.Y0 + float64(r)
					xp, yp := Apply(mp, x, y)
					xm, ym := Apply(mm, x, y)
					wantX := (xp - xm) / (2 * h)
					wantY := (yp - ym) / (2 * h)
					row := r*win.Width + c
					if math.Abs(jx.At(row, k)-wantX) > 1e-4 {
						t.Errorf("%s dX/dtau[%d] at (%g,%g): got %g want %g",
							f, k, x, y, jx.At(row, k), wantX)
					}
					if math.Abs(jy.At(row, k)-wantY) > 1e-4 {
						t.Errorf("%s dY/dtau[%d] at (%g,%g): got %g want %g",
							f, k, x, y, jy.At(row, k), wantY)
					}
				}
			}
		}
	}
}

func TestConstraintRowCounts(t *testing.T) {
	win := geometry.NewWindow(0, 0, 10, 8)
	du := mat.NewDense(8, 10, nil)
	dv := mat.NewDense(8, 10, nil)

	cases := []struct {
		family      Family
		restriction Restriction
		rows        int
	}{
		{Euclidean, NoRestriction, 2},
		{Euclidean, NoTranslation, 4},
		{Similarity, NoRestriction, 4},
		{Affine, NoRestriction, 4},
		{Affine, NoTranslation, 6},
		{Homography, NoRestriction, 4},
		{Homography, NoTranslation, 6},
	}
	for _, tc := range cases {
		tau, err := MatrixToParameters(mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}), tc.family)
		if err != nil {
			t.Fatalf("%s: %v", tc.family, err)
		}
		_, s, err := BuildSensitivity(du, dv, win, tau, tc.family, tc.restriction)
		if err != nil {
			t.Fatalf("%s: BuildSensitivity: %v", tc.family, err)
		}
		r, c := s.Dims()
		if r != tc.rows || c != tc.family.ParamCount() {
			t.Errorf("%s/%v: constraint matrix %dx%d, want %dx%d",
				tc.family, tc.restriction, r, c, tc.rows, tc.family.ParamCount())
		}
	}
}

func TestNoTranslationRowsSelectTranslation(t *testing.T) {
	win := geometry.NewWindow(0, 0, 6, 6)
	zero := mat.NewDense(6, 6, nil)
	tau := sampleTau(Affine)
	_, s, err := BuildSensitivity(zero, zero, win, tau, Affine, NoTranslation)
	if err != nil {
		t.Fatalf("BuildSensitivity: %v", err)
	}
	rows, _ := s.Dims()
	// The last two rows freeze tau[2] and tau[5].
	for i, idx := range []int{2, 5} {
		row := s.RawRowView(rows - 2 + i)
		for k, v := range row {
			want := 0.0
			if k == idx {
				want = 1
			}
			if v != want {
				t.Errorf("restriction row %d: entry %d = %g, want %g", i, k, v, want)
			}
		}
	}
}

func TestParseFamily(t *testing.T) {
	cases := []struct {
		mode        string
		family      Family
		restriction Restriction
		ok          bool
	}{
		{"affine", Affine, NoRestriction, true},
		{"HOMOGRAPHY", Homography, NoRestriction, true},
		{"projective", Homography, NoRestriction, true},
		{"euclidean_notranslation", Euclidean, NoTranslation, true},
		{"similarity_notranslation", Similarity, NoTranslation, true},
		{"rigid", 0, 0, false},
	}
	for _, tc := range cases {
		f, r, err := ParseFamily(tc.mode)
		if tc.ok != (err == nil) {
			t.Errorf("ParseFamily(%q): err=%v", tc.mode, err)
			continue
		}
		if tc.ok && (f != tc.family || r != tc.restriction) {
			t.Errorf("ParseFamily(%q) = %v/%v, want %v/%v", tc.mode, f, r, tc.family, tc.restriction)
		}
	}
}
