package spectrum

import (
	"math"
	"testing"
)

func TestRadiiSilenceIsBaseRadius(t *testing.T) {
	bins := make([]byte, Bins)
	for i, r := range Radii(bins) {
		if r != BaseRadius {
			t.Fatalf("radius[%d] = %v, want exactly %v", i, r, BaseRadius)
		}
	}
}

func TestRadiiFullScale(t *testing.T) {
	bins := make([]byte, Bins)
	for i := range bins {
		bins[i] = 255
	}
	want := BaseRadius + 255*AmpScale
	for i, r := range Radii(bins) {
		if r != want {
			t.Fatalf("radius[%d] = %v, want %v", i, r, want)
		}
	}
}

func TestSilentOutlineIsPerfectCircle(t *testing.T) {
	bins := make([]byte, Bins)
	points := Outline(bins, 4)
	if len(points) != Bins*4 {
		t.Fatalf("got %d points, want %d", len(points), Bins*4)
	}
	for i, p := range points {
		r := math.Hypot(p.X, p.Y)
		if math.Abs(r-BaseRadius) > 1e-9 {
			t.Fatalf("point %d at radius %v, want %v", i, r, BaseRadius)
		}
	}
}

func TestSmoothClosedStaysInControlHull(t *testing.T) {
	control := make([]float64, Bins)
	for i := range control {
		control[i] = BaseRadius
	}
	control[40] = BaseRadius + 100 // single spike

	smooth := SmoothClosed(control, 8)
	for i, v := range smooth {
		if v < BaseRadius-1e-9 || v > BaseRadius+100+1e-9 {
			t.Fatalf("sample %d = %v outside control hull", i, v)
		}
	}

	// The spike must still show, attenuated but present.
	max := 0.0
	for _, v := range smooth {
		if v > max {
			max = v
		}
	}
	if max <= BaseRadius+10 {
		t.Errorf("spike vanished: max = %v", max)
	}
	if max >= BaseRadius+100 {
		t.Errorf("spline should attenuate an isolated spike, max = %v", max)
	}
}

func TestSmoothClosedConstantInputExact(t *testing.T) {
	control := []float64{7, 7, 7, 7, 7, 7}
	for i, v := range SmoothClosed(control, 5) {
		if math.Abs(v-7) > 1e-12 {
			t.Fatalf("sample %d = %v, want 7", i, v)
		}
	}
}

func TestSmoothClosedShortInput(t *testing.T) {
	got := SmoothClosed([]float64{1, 2, 3}, 2)
	want := []float64{1, 1, 2, 2, 3, 3}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}
