// Package geometry provides the percent/pixel coordinate math shared by the
// hotspot store, the drag controller and the color sampler. Positions are
// stored as percentages of the image size so they survive container resizes.
package geometry

import "math"

// Point is a position in either pixel or percent space; which one is
// determined by context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is the pixel rectangle the image currently occupies on screen.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b Bounds) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// Round2 rounds to two decimal places. Positions are rounded so they stay
// byte-for-byte stable across repeated re-renders and store round trips.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ToPercent converts a pixel offset into a percentage of the container size,
// clamped to [0,100].
func ToPercent(pixel, containerSize float64) float64 {
	if containerSize <= 0 {
		return 0
	}
	return Round2(Clamp(pixel/containerSize*100, 0, 100))
}

// ToPixel converts a percentage back into a pixel offset.
func ToPixel(percent, containerSize float64) float64 {
	return Round2(percent / 100 * containerSize)
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Clamp limits v to the range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampPercent clamps a point to the [0,100] percent square and rounds both
// coordinates.
func ClampPercent(p Point) Point {
	return Point{
		X: Round2(Clamp(p.X, 0, 100)),
		Y: Round2(Clamp(p.Y, 0, 100)),
	}
}
