package geometry

import (
	"math"
	"testing"
)

func TestToPercent(t *testing.T) {
	tests := []struct {
		name      string
		pixel     float64
		container float64
		want      float64
	}{
		{"origin", 0, 800, 0},
		{"middle", 400, 800, 50},
		{"full width", 800, 800, 100},
		{"beyond right edge clamps", 900, 800, 100},
		{"negative clamps", -10, 800, 0},
		{"rounded to 2 decimals", 333, 1000, 33.3},
		{"zero container", 100, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToPercent(tt.pixel, tt.container); got != tt.want {
				t.Errorf("ToPercent(%v, %v) = %v, want %v", tt.pixel, tt.container, got, tt.want)
			}
		})
	}
}

func TestToPixel(t *testing.T) {
	if got := ToPixel(50, 800); got != 400 {
		t.Errorf("ToPixel(50, 800) = %v, want 400", got)
	}
	if got := ToPixel(33.33, 1000); got != 333.3 {
		t.Errorf("ToPixel(33.33, 1000) = %v, want 333.3", got)
	}
}

func TestPercentPixelRoundTrip(t *testing.T) {
	sizes := []float64{100, 640, 800, 1024, 1920, 3333}
	for _, size := range sizes {
		for p := 0.0; p <= 100.0; p += 0.25 {
			got := ToPercent(ToPixel(p, size), size)
			if math.Abs(got-p) > 0.01 {
				t.Fatalf("round trip: ToPercent(ToPixel(%v, %v)) = %v, drift > 0.01", p, size, got)
			}
		}
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
	}{
		{"same point", Point{X: 50, Y: 50}, Point{X: 50, Y: 50}, 0},
		{"horizontal", Point{X: 10, Y: 20}, Point{X: 14, Y: 20}, 4},
		{"diagonal 3-4-5", Point{X: 0, Y: 0}, Point{X: 3, Y: 4}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Distance(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(-5, 0, 100); got != 0 {
		t.Errorf("Clamp(-5, 0, 100) = %v, want 0", got)
	}
	if got := Clamp(105, 0, 100); got != 100 {
		t.Errorf("Clamp(105, 0, 100) = %v, want 100", got)
	}
	if got := Clamp(42, 0, 100); got != 42 {
		t.Errorf("Clamp(42, 0, 100) = %v, want 42", got)
	}
}

func TestClampPercent(t *testing.T) {
	p := ClampPercent(Point{X: -3.456, Y: 101.2})
	if p.X != 0 || p.Y != 100 {
		t.Errorf("ClampPercent() = %+v, want {0 100}", p)
	}

	p = ClampPercent(Point{X: 33.333, Y: 66.666})
	if p.X != 33.33 || p.Y != 66.67 {
		t.Errorf("ClampPercent() = %+v, want {33.33 66.67}", p)
	}
}

func TestBounds_Valid(t *testing.T) {
	if (Bounds{}).Valid() {
		t.Error("zero Bounds reported valid")
	}
	if !(Bounds{Width: 800, Height: 600}).Valid() {
		t.Error("800x600 Bounds reported invalid")
	}
}
