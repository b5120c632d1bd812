package transform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ParametersToMatrix converts a family parameter vector to the 3x3 transform
// matrix mapping output-window coordinates to source-image coordinates.
func ParametersToMatrix(tau []float64, family Family) (*mat.Dense, error) {
	if len(tau) != family.ParamCount() {
		return nil, fmt.Errorf("%s expects %d parameters, got %d",
			family, family.ParamCount(), len(tau))
	}

	m := mat.NewDense(3, 3, nil)
	m.Set(2, 2, 1)

	switch family {
	case Euclidean:
		cos, sin := math.Cos(tau[0]), math.Sin(tau[0])
		m.Set(0, 0, cos)
		m.Set(0, 1, -sin)
		m.Set(0, 2, tau[1])
		m.Set(1, 0, sin)
		m.Set(1, 1, cos)
		m.Set(1, 2, tau[2])
	case Similarity:
		s := tau[0]
		cos, sin := math.Cos(tau[1]), math.Sin(tau[1])
		m.Set(0, 0, s*cos)
		m.Set(0, 1, -s*sin)
		m.Set(0, 2, tau[2])
		m.Set(1, 0, s*sin)
		m.Set(1, 1, s*cos)
		m.Set(1, 2, tau[3])
	case Affine:
		m.Set(0, 0, tau[0])
		m.Set(0, 1, tau[1])
		m.Set(0, 2, tau[2])
		m.Set(1, 0, tau[3])
		m.Set(1, 1, tau[4])
		m.Set(1, 2, tau[5])
	case Homography:
		m.Set(0, 0, tau[0])
		m.Set(0, 1, tau[1])
		m.Set(0, 2, tau[2])
		m.Set(1, 0, tau[3])
		m.Set(1, 1, tau[4])
		m.Set(1, 2, tau[5])
		m.Set(2, 0, tau[6])
		m.Set(2, 1, tau[7])
	default:
		return nil, fmt.Errorf("unknown transform family %v", family)
	}
	return m, nil
}

// MatrixToParameters projects a 3x3 transform matrix onto the family's
// parameter vector. For families that cannot represent the matrix exactly
// (e.g. a scaled matrix given to Euclidean) the nearest in-family
// parameterization of the rotation/translation part is returned.
func MatrixToParameters(m mat.Matrix, family Family) ([]float64, error) {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return nil, fmt.Errorf("expected 3x3 transform matrix, got %dx%d", r, c)
	}
	w := m.At(2, 2)
	if w == 0 {
		return nil, fmt.Errorf("transform matrix has zero homogeneous scale")
	}

	// Normalize so the bottom-right entry is 1; transforms are homogeneous.
	n := mat.NewDense(3, 3, nil)
	n.Scale(1/w, m)

	switch family {
	case Euclidean:
		theta := math.Atan2(n.At(1, 0), n.At(0, 0))
		return []float64{theta, n.At(0, 2), n.At(1, 2)}, nil
	case Similarity:
		s := math.Hypot(n.At(0, 0), n.At(1, 0))
		theta := math.Atan2(n.At(1, 0), n.At(0, 0))
		return []float64{s, theta, n.At(0, 2), n.At(1, 2)}, nil
	case Affine:
		return []float64{
			n.At(0, 0), n.At(0, 1), n.At(0, 2),
			n.At(1, 0), n.At(1, 1), n.At(1, 2),
		}, nil
	case Homography:
		return []float64{
			n.At(0, 0), n.At(0, 1), n.At(0, 2),
			n.At(1, 0), n.At(1, 1), n.At(1, 2),
			n.At(2, 0), n.At(2, 1),
		}, nil
	}
	return nil, fmt.Errorf("unknown transform family %v", family)
}

// Apply maps the point (x, y) through the 3x3 transform h, performing the
// homogeneous divide.
func Apply(h mat.Matrix, x, y float64) (float64, float64) {
	w := h.At(2, 0)*x + h.At(2, 1)*y + h.At(2, 2)
	px := (h.At(0, 0)*x + h.At(0, 1)*y + h.At(0, 2)) / w
	py := (h.At(1, 0)*x + h.At(1, 1)*y + h.At(1, 2)) / w
	return px, py
}
