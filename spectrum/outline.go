package spectrum

import "math"

const (
	// BaseRadius is the island's resting radius; a silent frame renders a
	// circle of exactly this radius.
	BaseRadius = 100.0

	// AmpScale converts a byte amplitude (0..255) into radial swell.
	AmpScale = 0.6
)

type Point struct {
	X, Y float64
}

// Radii maps frequency bins to raw control radii, one per angular step:
// r = BaseRadius + amp*AmpScale.
func Radii(bins []byte) []float64 {
	radii := make([]float64, len(bins))
	for i, b := range bins {
		radii[i] = BaseRadius + float64(b)*AmpScale
	}
	return radii
}

// SmoothClosed runs a closed uniform cubic B-spline over the control
// values, emitting perSeg samples per control segment. The basis
// functions sum to one, so a constant control sequence stays constant:
// silence remains a perfect circle.
func SmoothClosed(control []float64, perSeg int) []float64 {
	n := len(control)
	if n == 0 || perSeg <= 0 {
		return nil
	}
	if n < 4 {
		// Too few controls for a cubic segment; hold the values.
		out := make([]float64, n*perSeg)
		for i := range out {
			out[i] = control[i/perSeg]
		}
		return out
	}

	out := make([]float64, 0, n*perSeg)
	for i := 0; i < n; i++ {
		p0 := control[(i-1+n)%n]
		p1 := control[i]
		p2 := control[(i+1)%n]
		p3 := control[(i+2)%n]
		for j := 0; j < perSeg; j++ {
			t := float64(j) / float64(perSeg)
			t2 := t * t
			t3 := t2 * t
			b0 := (1 - 3*t + 3*t2 - t3) / 6
			b1 := (4 - 6*t2 + 3*t3) / 6
			b2 := (1 + 3*t + 3*t2 - 3*t3) / 6
			b3 := t3 / 6
			out = append(out, b0*p0+b1*p1+b2*p2+b3*p3)
		}
	}
	return out
}

// Outline produces the smoothed closed curve for one frame of bins,
// sampled perSeg points per bin, centered on the origin.
func Outline(bins []byte, perSeg int) []Point {
	radii := SmoothClosed(Radii(bins), perSeg)
	points := make([]Point, len(radii))
	for i, r := range radii {
		theta := 2 * math.Pi * float64(i) / float64(len(radii))
		points[i] = Point{X: r * math.Cos(theta), Y: r * math.Sin(theta)}
	}
	return points
}
