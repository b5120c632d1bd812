package transform

import (
	"fmt"
	"math"

	"tilt-rectify/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// coordDerivs evaluates the family's output->source coordinate map at (x, y)
// and its partial derivatives with respect to each parameter. dx and dy must
// have length ParamCount().
func coordDerivs(tau []float64, family Family, x, y float64, dx, dy []float64) (px, py float64) {
	switch family {
	case Euclidean:
		cos, sin := math.Cos(tau[0]), math.Sin(tau[0])
		px = cos*x - sin*y + tau[1]
		py = sin*x + cos*y + tau[2]
		dx[0], dx[1], dx[2] = -sin*x-cos*y, 1, 0
		dy[0], dy[1], dy[2] = cos*x-sin*y, 0, 1
	case Similarity:
		s := tau[0]
		cos, sin := math.Cos(tau[1]), math.Sin(tau[1])
		rx := cos*x - sin*y
		ry := sin*x + cos*y
		px = s*rx + tau[2]
		py = s*ry + tau[3]
		dx[0], dx[1], dx[2], dx[3] = rx, -s*ry, 1, 0
		dy[0], dy[1], dy[2], dy[3] = ry, s*rx, 0, 1
	case Affine:
		px = tau[0]*x + tau[1]*y + tau[2]
		py = tau[3]*x + tau[4]*y + tau[5]
		dx[0], dx[1], dx[2] = x, y, 1
		dx[3], dx[4], dx[5] = 0, 0, 0
		dy[0], dy[1], dy[2] = 0, 0, 0
		dy[3], dy[4], dy[5] = x, y, 1
	case Homography:
		w := tau[6]*x + tau[7]*y + 1
		px = (tau[0]*x + tau[1]*y + tau[2]) / w
		py = (tau[3]*x + tau[4]*y + tau[5]) / w
		dx[0], dx[1], dx[2] = x/w, y/w, 1/w
		dx[3], dx[4], dx[5] = 0, 0, 0
		dx[6], dx[7] = -px*x/w, -px*y/w
		dy[0], dy[1], dy[2] = 0, 0, 0
		dy[3], dy[4], dy[5] = x/w, y/w, 1/w
		dy[6], dy[7] = -py*x/w, -py*y/w
	}
	return px, py
}

// BuildSensitivity constructs the sensitivity model at the current parameters:
// the per-pixel intensity Jacobian J (one flattened sensitivity image per
// parameter, shape pixels x params) and the constraint matrix S whose rows
// must annihilate the incremental parameter update.
//
// du and dv are the warped directional derivative images of the source, on
// the same grid as the rectified patch. The constraint rows anchor the mapped
// window center for every family, preserve the mapped half-edge lengths for
// families with scale freedom (ruling out the trivial zoom-into-uniformity
// solution), and freeze the translation parameters under NoTranslation.
func BuildSensitivity(du, dv *mat.Dense, win geometry.Window, tau []float64, family Family, restriction Restriction) (*mat.Dense, *mat.Dense, error) {
	p := family.ParamCount()
	if len(tau) != p {
		return nil, nil, fmt.Errorf("%s expects %d parameters, got %d", family, p, len(tau))
	}
	if win.Empty() {
		return nil, nil, fmt.Errorf("empty output window")
	}
	dr, dc := du.Dims()
	vr, vc := dv.Dims()
	if dr != win.Height || dc != win.Width || vr != win.Height || vc != win.Width {
		return nil, nil, fmt.Errorf("derivative shape %dx%d/%dx%d does not match window %dx%d",
			dr, dc, vr, vc, win.Height, win.Width)
	}

	jac := mat.NewDense(win.Pixels(), p, nil)
	dx := make([]float64, p)
	dy := make([]float64, p)
	for r := 0; r < win.Height; r++ {
		y := win.Y0 + float64(r)
		for c := 0; c < win.Width; c++ {
			x := win.X0 + float64(c)
			coordDerivs(tau, family, x, y, dx, dy)
			gu := du.At(r, c)
			gv := dv.At(r, c)
			row := r*win.Width + c
			for k := 0; k < p; k++ {
				jac.Set(row, k, gu*dx[k]+gv*dy[k])
			}
		}
	}

	s := buildConstraints(win, tau, family, restriction)
	return jac, s, nil
}

// buildConstraints assembles the constraint rows. Each row is the gradient of
// a scalar constraint function of tau, so S*dtau = 0 keeps the constrained
// quantity fixed to first order.
func buildConstraints(win geometry.Window, tau []float64, family Family, restriction Restriction) *mat.Dense {
	p := family.ParamCount()
	var rows [][]float64

	center := win.Center()
	cdx := make([]float64, p)
	cdy := make([]float64, p)
	cx, cy := coordDerivs(tau, family, center.X, center.Y, cdx, cdy)

	// Anchor the mapped center: without it the update can translate the
	// window into a flatter region instead of rectifying it.
	rows = append(rows, append([]float64(nil), cdx...))
	rows = append(rows, append([]float64(nil), cdy...))

	if family.hasScaleFreedom() {
		// Preserve the squared length of the mapped half-edges from the
		// center to the right and bottom edge midpoints.
		edges := []geometry.Point2D{
			{X: win.X0 + float64(win.Width-1), Y: center.Y},
			{X: center.X, Y: win.Y0 + float64(win.Height-1)},
		}
		edx := make([]float64, p)
		edy := make([]float64, p)
		for _, e := range edges {
			ex, ey := coordDerivs(tau, family, e.X, e.Y, edx, edy)
			row := make([]float64, p)
			for k := 0; k < p; k++ {
				row[k] = 2*(ex-cx)*(edx[k]-cdx[k]) + 2*(ey-cy)*(edy[k]-cdy[k])
			}
			rows = append(rows, row)
		}
	}

	if restriction == NoTranslation {
		for _, idx := range family.translationIndices() {
			row := make([]float64, p)
			row[idx] = 1
			rows = append(rows, row)
		}
	}

	s := mat.NewDense(len(rows), p, nil)
	for i, row := range rows {
		s.SetRow(i, row)
	}
	return s
}
