// Package warp resamples real-valued image matrices under projective
// transforms, and computes the directional derivative images the solver
// linearizes against.
package warp

import (
	"math"

	"tilt-rectify/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// Warp resamples src onto the output grid defined by win, mapping each output
// coordinate through the 3x3 transform h into source coordinates and sampling
// bilinearly. Sample positions are clamped to the source bounds, so a window
// warped partially outside the image repeats the border values instead of
// injecting an artificial zero border. Derivative images are warped with the
// exact same sampling.
func Warp(src mat.Matrix, h mat.Matrix, win geometry.Window) *mat.Dense {
	rows, cols := src.Dims()
	out := mat.NewDense(win.Height, win.Width, nil)

	h00, h01, h02 := h.At(0, 0), h.At(0, 1), h.At(0, 2)
	h10, h11, h12 := h.At(1, 0), h.At(1, 1), h.At(1, 2)
	h20, h21, h22 := h.At(2, 0), h.At(2, 1), h.At(2, 2)

	for r := 0; r < win.Height; r++ {
		y := win.Y0 + float64(r)
		for c := 0; c < win.Width; c++ {
			x := win.X0 + float64(c)
			w := h20*x + h21*y + h22
			sx := (h00*x + h01*y + h02) / w
			sy := (h10*x + h11*y + h12) / w
			out.Set(r, c, sampleBilinear(src, rows, cols, sx, sy))
		}
	}
	return out
}

// sampleBilinear samples src at continuous position (x=col, y=row) with
// border clamping.
func sampleBilinear(src mat.Matrix, rows, cols int, x, y float64) float64 {
	x = clamp(x, 0, float64(cols-1))
	y = clamp(y, 0, float64(rows-1))

	c0 := int(math.Floor(x))
	r0 := int(math.Floor(y))
	c1 := min(c0+1, cols-1)
	r1 := min(r0+1, rows-1)
	fx := x - float64(c0)
	fy := y - float64(r0)

	top := (1-fx)*src.At(r0, c0) + fx*src.At(r0, c1)
	bot := (1-fx)*src.At(r1, c0) + fx*src.At(r1, c1)
	return (1-fy)*top + fy*bot
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Gradients computes the horizontal (du) and vertical (dv) central-difference
// derivative images of src, with one-sided differences at the borders.
func Gradients(src mat.Matrix) (du, dv *mat.Dense) {
	rows, cols := src.Dims()
	du = mat.NewDense(rows, cols, nil)
	dv = mat.NewDense(rows, cols, nil)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cl, cr := max(c-1, 0), min(c+1, cols-1)
			if cr > cl {
				du.Set(r, c, (src.At(r, cr)-src.At(r, cl))/float64(cr-cl))
			}

			rt, rb := max(r-1, 0), min(r+1, rows-1)
			if rb > rt {
				dv.Set(r, c, (src.At(rb, c)-src.At(rt, c))/float64(rb-rt))
			}
		}
	}
	return du, dv
}
