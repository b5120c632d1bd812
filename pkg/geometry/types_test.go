package geometry

import (
	"math"
	"testing"
)

func TestPointArithmetic(t *testing.T) {
	a := NewPoint2D(3, 4)
	if d := a.Distance(NewPoint2D(0, 0)); d != 5 {
		t.Errorf("distance = %g, want 5", d)
	}
	if s := a.Add(NewPoint2D(1, -1)); s != (Point2D{X: 4, Y: 3}) {
		t.Errorf("add = %+v", s)
	}
	if s := a.Sub(NewPoint2D(1, 1)); s != (Point2D{X: 2, Y: 3}) {
		t.Errorf("sub = %+v", s)
	}
	if s := a.Scale(0.5); s != (Point2D{X: 1.5, Y: 2}) {
		t.Errorf("scale = %+v", s)
	}
}

func TestRectContains(t *testing.T) {
	r := NewRect(1, 1, 4, 2)
	if !r.Contains(NewPoint2D(3, 2)) {
		t.Error("interior point not contained")
	}
	if r.Contains(NewPoint2D(0, 0)) {
		t.Error("exterior point contained")
	}
	if c := r.Center(); c != (Point2D{X: 3, Y: 2}) {
		t.Errorf("center = %+v", c)
	}
}

func TestWindow(t *testing.T) {
	w := NewWindow(10, 20, 5, 3)
	if w.Empty() {
		t.Error("non-empty window reported empty")
	}
	if w.Pixels() != 15 {
		t.Errorf("pixels = %d, want 15", w.Pixels())
	}
	c := w.Center()
	if math.Abs(c.X-12) > 1e-15 || math.Abs(c.Y-21) > 1e-15 {
		t.Errorf("center = %+v, want (12, 21)", c)
	}

	if !NewWindow(0, 0, 0, 4).Empty() {
		t.Error("zero-width window not empty")
	}
	if NewWindow(0, 0, 0, 4).Pixels() != 0 {
		t.Error("empty window has pixels")
	}
}
