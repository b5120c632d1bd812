package imgproc

import (
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestToDenseGrayscaleRange(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	img.SetGray(0, 0, color.Gray{Y: 0})
	img.SetGray(1, 0, color.Gray{Y: 128})
	img.SetGray(2, 0, color.Gray{Y: 255})

	d := ToDense(img)
	rows, cols := d.Dims()
	if rows != 2 || cols != 3 {
		t.Fatalf("dims = %dx%d, want 2x3", rows, cols)
	}
	if d.At(0, 0) != 0 {
		t.Errorf("black pixel = %g, want 0", d.At(0, 0))
	}
	if math.Abs(d.At(0, 2)-1) > 1e-9 {
		t.Errorf("white pixel = %g, want 1", d.At(0, 2))
	}
	if mid := d.At(0, 1); mid < 0.49 || mid > 0.52 {
		t.Errorf("mid pixel = %g, want ~0.5", mid)
	}
}

func TestToDenseNonZeroOrigin(t *testing.T) {
	img := image.NewGray(image.Rect(5, 7, 8, 9))
	img.SetGray(5, 7, color.Gray{Y: 255})
	d := ToDense(img)
	if d.At(0, 0) < 0.99 {
		t.Errorf("origin pixel = %g, want 1", d.At(0, 0))
	}
}

func TestToImageClips(t *testing.T) {
	d := mat.NewDense(1, 3, []float64{-0.5, 0.5, 1.5})
	img := ToImage(d)
	if got := img.GrayAt(0, 0).Y; got != 0 {
		t.Errorf("negative value -> %d, want 0", got)
	}
	if got := img.GrayAt(1, 0).Y; got != 128 {
		t.Errorf("midscale value -> %d, want 128", got)
	}
	if got := img.GrayAt(2, 0).Y; got != 255 {
		t.Errorf("overflow value -> %d, want 255", got)
	}
}

func TestStretchSpansUnitRange(t *testing.T) {
	d := mat.NewDense(2, 2, []float64{0.01, 0.02, 0.03, 0.05})
	s := Stretch(d)
	if mat.Min(s) != 0 || mat.Max(s) != 1 {
		t.Errorf("stretched range [%g, %g], want [0, 1]", mat.Min(s), mat.Max(s))
	}
	// Constant input is returned unchanged rather than divided by zero.
	flat := Stretch(mat.NewDense(2, 2, []float64{0.3, 0.3, 0.3, 0.3}))
	if flat.At(0, 0) != 0.3 {
		t.Errorf("constant input changed to %g", flat.At(0, 0))
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	d := mat.NewDense(4, 5, nil)
	for r := 0; r < 4; r++ {
		for c := 0; c < 5; c++ {
			d.Set(r, c, float64(r*5+c)/19)
		}
	}
	path := filepath.Join(t.TempDir(), "patch.png")
	if err := SavePNG(path, d); err != nil {
		t.Fatalf("SavePNG: %v", err)
	}
	back, err := LoadGray(path)
	if err != nil {
		t.Fatalf("LoadGray: %v", err)
	}
	rows, cols := back.Dims()
	if rows != 4 || cols != 5 {
		t.Fatalf("dims = %dx%d, want 4x5", rows, cols)
	}
	for r := 0; r < 4; r++ {
		for c := 0; c < 5; c++ {
			if math.Abs(back.At(r, c)-d.At(r, c)) > 1.0/255 {
				t.Errorf("pixel (%d,%d): %g vs %g", r, c, back.At(r, c), d.At(r, c))
			}
		}
	}
}

func TestLoadGrayMissingFile(t *testing.T) {
	if _, err := LoadGray(filepath.Join(os.TempDir(), "does-not-exist-xyzzy.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
