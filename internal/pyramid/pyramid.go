// Package pyramid runs the rectification solver coarse-to-fine over a
// Gaussian image pyramid, propagating the recovered transform between
// resolution levels. It is a driver-level layer on top of tilt.Refine.
package pyramid

import (
	"fmt"
	"math"

	"tilt-rectify/internal/imgproc"
	"tilt-rectify/internal/tilt"
	"tilt-rectify/internal/transform"
	"tilt-rectify/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// Config controls pyramid depth.
type Config struct {
	// MinDim stops adding levels once the focus region's smaller side would
	// drop below this many pixels.
	MinDim int
	// MaxLevels caps the pyramid depth including the full-resolution level.
	MaxLevels int
}

// DefaultConfig returns the usual coarse-to-fine settings.
func DefaultConfig() Config {
	return Config{MinDim: 32, MaxLevels: 3}
}

// PlanLevels returns the number of pyramid levels to use for a focus region,
// at least 1.
func PlanLevels(focus geometry.Size, cfg Config) int {
	levels := 1
	side := math.Min(focus.Width, focus.Height)
	for levels < cfg.MaxLevels && side/2 >= float64(cfg.MinDim) {
		side /= 2
		levels++
	}
	return levels
}

// RescaleTransform conjugates a window-to-image transform by a coordinate
// scale s (both window and image coordinates scale together between pyramid
// levels) and renormalizes the homogeneous entry.
func RescaleTransform(m mat.Matrix, s float64) *mat.Dense {
	out := mat.NewDense(3, 3, nil)
	out.Product(scale3(s), m, scale3(1/s))
	if w := out.At(2, 2); w != 0 && w != 1 {
		out.Scale(1/w, out)
	}
	return out
}

// Run refines the transform coarse-to-fine: it solves on the most downsampled
// level first and seeds each finer level with the lifted estimate. The
// returned result is the full-resolution one.
func Run(img *mat.Dense, family transform.Family, center geometry.Point2D, focus geometry.Size, initial mat.Matrix, opts tilt.Options, cfg Config) (*tilt.Result, error) {
	if cfg.MinDim < 2 || cfg.MaxLevels < 1 {
		return nil, fmt.Errorf("%w: pyramid config %+v", tilt.ErrInvalidConfig, cfg)
	}
	levels := PlanLevels(focus, cfg)

	images := make([]*mat.Dense, levels)
	images[0] = img
	for l := 1; l < levels; l++ {
		down, err := imgproc.Downsample(images[l-1])
		if err != nil {
			return nil, fmt.Errorf("pyramid level %d: %w", l, err)
		}
		images[l] = down
	}

	// seed is the pre-warp transform in full-resolution image coordinates.
	seed := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if initial != nil {
		seed.CloneFrom(mat.DenseCopyOf(initial))
	}

	var res *tilt.Result
	for l := levels - 1; l >= 0; l-- {
		s := math.Pow(0.5, float64(l))
		levelCenter := center.Scale(s)
		levelFocus := geometry.NewSize(focus.Width*s, focus.Height*s)
		levelSeed := RescaleTransform(seed, s)

		var err error
		res, err = tilt.Refine(images[l], family, levelCenter, levelFocus, levelSeed, opts)
		if err != nil {
			return res, fmt.Errorf("pyramid level %d: %w", l, err)
		}

		// Lift the recovered window transform back to full resolution and
		// strip the window translation so it can re-seed the next level.
		lifted := RescaleTransform(res.Transform, 1/s)
		win := windowAt(center, focus)
		var next mat.Dense
		next.Mul(lifted, translate3(-win.X, -win.Y))
		seed.CloneFrom(&next)
	}
	return res, nil
}

// windowAt mirrors the output-window placement used by tilt.Refine.
func windowAt(center geometry.Point2D, focus geometry.Size) geometry.Point2D {
	w := max(2, int(math.Round(focus.Width)))
	h := max(2, int(math.Round(focus.Height)))
	return center.Sub(geometry.NewPoint2D(float64(w-1)/2, float64(h-1)/2))
}

func scale3(s float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{s, 0, 0, 0, s, 0, 0, 0, 1})
}

func translate3(tx, ty float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, tx, 0, 1, ty, 0, 0, 1})
}
