// Package imgproc bridges image files and the float64 matrices the solver
// operates on: grayscale conversion, loading with the common scan codecs
// registered, Gaussian smoothing and pyramid downsampling.
package imgproc

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"gonum.org/v1/gonum/mat"
)

// ToDense converts an image to a grayscale matrix with values in [0, 1].
func ToDense(img image.Image) *mat.Dense {
	b := img.Bounds()
	out := mat.NewDense(b.Dy(), b.Dx(), nil)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			out.Set(y-b.Min.Y, x-b.Min.X, float64(g.Y)/65535)
		}
	}
	return out
}

// ToImage converts a matrix to an 8-bit grayscale image, clipping values
// outside [0, 1]. Decomposition terms can be slightly negative or above one;
// clipping keeps the saved artifacts viewable.
func ToImage(d *mat.Dense) *image.Gray {
	rows, cols := d.Dims()
	img := image.NewGray(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := d.At(r, c)
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			img.SetGray(c, r, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}
	return img
}

// Stretch rescales a matrix linearly so its values span [0, 1]. Solver
// outputs are unit-Frobenius-norm, far too dark to view or OCR directly.
func Stretch(d *mat.Dense) *mat.Dense {
	lo, hi := mat.Min(d), mat.Max(d)
	out := mat.DenseCopyOf(d)
	if hi <= lo {
		return out
	}
	out.Apply(func(_, _ int, v float64) float64 {
		return (v - lo) / (hi - lo)
	}, out)
	return out
}

// LoadGray decodes an image file (png, jpeg, tiff, bmp) into a grayscale
// matrix.
func LoadGray(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return ToDense(img), nil
}

// SavePNG writes a matrix as an 8-bit grayscale PNG.
func SavePNG(path string, d *mat.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, ToImage(d)); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
