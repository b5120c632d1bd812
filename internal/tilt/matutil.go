package tilt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// flatten copies m into a row-major vector. The Jacobian rows use the same
// pixel order, so flattened patches line up with J's row index.
func flatten(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, r*c)
	for i := 0; i < r; i++ {
		copy(out[i*c:(i+1)*c], m.RawRowView(i))
	}
	return out
}

// softThreshold applies sign(x) * max(|x|-t, 0) elementwise from src to dst.
func softThreshold(dst, src *mat.Dense, t float64) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := src.At(i, j)
			switch {
			case v > t:
				dst.Set(i, j, v-t)
			case v < -t:
				dst.Set(i, j, v+t)
			default:
				dst.Set(i, j, 0)
			}
		}
	}
}

// svt performs singular value thresholding: dst receives the reconstruction
// of src with every singular value soft-thresholded at t. Returns the rank of
// the reconstruction and its nuclear norm.
func svt(dst, src *mat.Dense, t float64) (rank int, nuclear float64, err error) {
	var svd mat.SVD
	if !svd.Factorize(src, mat.SVDThin) {
		return 0, 0, fmt.Errorf("svd failed to converge")
	}
	vals := svd.Values(nil)
	for i, v := range vals {
		v -= t
		if v > 0 {
			vals[i] = v
			rank++
			nuclear += v
		} else {
			vals[i] = 0
		}
	}
	if rank == 0 {
		dst.Zero()
		return 0, 0, nil
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	dst.Product(&u, mat.NewDiagDense(len(vals), vals), v.T())
	return rank, nuclear, nil
}

// spectralNorm returns the largest singular value of m.
func spectralNorm(m *mat.Dense) (float64, error) {
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDNone) {
		return 0, fmt.Errorf("svd failed to converge")
	}
	return svd.Values(nil)[0], nil
}

// l1Norm returns the sum of absolute entries.
func l1Norm(m *mat.Dense) float64 {
	r, c := m.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sum += math.Abs(m.At(i, j))
		}
	}
	return sum
}

// nonzeroFraction returns the fraction of entries with nonzero magnitude.
func nonzeroFraction(m *mat.Dense) float64 {
	r, c := m.Dims()
	if r*c == 0 {
		return 0
	}
	var nnz int
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) != 0 {
				nnz++
			}
		}
	}
	return float64(nnz) / float64(r*c)
}
