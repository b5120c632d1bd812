package imgproc

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// toMat copies a matrix into a single-channel 64-bit OpenCV Mat.
func toMat(d *mat.Dense) gocv.Mat {
	rows, cols := d.Dims()
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV64F)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.SetDoubleAt(r, c, d.At(r, c))
		}
	}
	return m
}

// fromMat copies a single-channel 64-bit OpenCV Mat back into a matrix.
func fromMat(m gocv.Mat) *mat.Dense {
	rows, cols := m.Rows(), m.Cols()
	d := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			d.Set(r, c, m.GetDoubleAt(r, c))
		}
	}
	return d
}

// Smooth applies a Gaussian blur with the given standard deviation. The
// kernel size is derived from sigma the usual way (3 sigma radius, odd).
func Smooth(d *mat.Dense, sigma float64) (*mat.Dense, error) {
	if sigma <= 0 {
		return nil, fmt.Errorf("sigma %g must be positive", sigma)
	}
	src := toMat(d)
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	k := 2*int(3*sigma+0.5) + 1
	gocv.GaussianBlur(src, &dst, image.Point{X: k, Y: k}, sigma, sigma, gocv.BorderReplicate)
	return fromMat(dst), nil
}

// Downsample halves the resolution after a light blur, for pyramid levels.
func Downsample(d *mat.Dense) (*mat.Dense, error) {
	blurred, err := Smooth(d, 0.8)
	if err != nil {
		return nil, err
	}
	rows, cols := blurred.Dims()
	src := toMat(blurred)
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	gocv.Resize(src, &dst, image.Point{X: (cols + 1) / 2, Y: (rows + 1) / 2}, 0, 0, gocv.InterpolationArea)
	return fromMat(dst), nil
}
