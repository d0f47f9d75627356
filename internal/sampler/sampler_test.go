package sampler

import (
	"fmt"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arjun/pinpoint/pkg/models"
)

func uniformImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestSampler_Sample_Classification(t *testing.T) {
	tests := []struct {
		name string
		fill color.RGBA
		want models.ColorProfile
	}{
		{"white background gets dark overlay", color.RGBA{R: 255, G: 255, B: 255, A: 255}, lightProfile},
		{"black background gets light overlay", color.RGBA{A: 255}, darkProfile},
		{"mid grey below threshold", color.RGBA{R: 128, G: 128, B: 128, A: 255}, darkProfile},
		{"bright grey above threshold", color.RGBA{R: 200, G: 200, B: 200, A: 255}, lightProfile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			img := uniformImage(64, 64, tt.fill)
			got := s.Sample(models.Hotspot{ID: 1, X: 50, Y: 50}, img, "img-a")
			if got != tt.want {
				t.Errorf("Sample() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSampler_Sample_MixedImage(t *testing.T) {
	// left half white, right half black
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			c := color.RGBA{A: 255}
			if x < 50 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}

	s := New()
	if got := s.Sample(models.Hotspot{X: 25, Y: 50}, img, "split"); got != lightProfile {
		t.Errorf("Sample() over white half = %+v, want light profile", got)
	}
	if got := s.Sample(models.Hotspot{X: 75, Y: 50}, img, "split"); got != darkProfile {
		t.Errorf("Sample() over black half = %+v, want dark profile", got)
	}
}

func TestSampler_Sample_NilImageFallsBack(t *testing.T) {
	s := New()
	if got := s.Sample(models.Hotspot{X: 50, Y: 50}, nil, ""); got != NeutralProfile {
		t.Errorf("Sample(nil) = %+v, want NeutralProfile", got)
	}
}

func TestSampler_Sample_EmptyImageFallsBack(t *testing.T) {
	s := New()
	img := image.NewRGBA(image.Rect(0, 0, 0, 0))
	if got := s.Sample(models.Hotspot{X: 50, Y: 50}, img, "empty"); got != NeutralProfile {
		t.Errorf("Sample(empty image) = %+v, want NeutralProfile", got)
	}
}

func TestSampler_CacheEviction(t *testing.T) {
	s := NewWithCap(4)
	img := uniformImage(32, 32, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	for i := 0; i < 10; i++ {
		s.Sample(models.Hotspot{X: float64(10 + i*5), Y: 50}, img, "img-a")
	}

	if got := s.CacheLen(); got > 4 {
		t.Errorf("CacheLen() = %d, want <= 4 (oldest-first eviction)", got)
	}
}

func TestSampler_Invalidate(t *testing.T) {
	s := New()
	img := uniformImage(32, 32, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	s.Sample(models.Hotspot{X: 50, Y: 50}, img, "img-a")
	if s.CacheLen() == 0 {
		t.Fatal("expected cached entry before Invalidate")
	}

	s.Invalidate()
	if got := s.CacheLen(); got != 0 {
		t.Errorf("CacheLen() after Invalidate = %d, want 0", got)
	}
}

func TestSampler_LargeImageDownscaled(t *testing.T) {
	// 2048 wide forces the 1024 long-edge cap; sampling must still classify
	// correctly after the downscale.
	s := New()
	img := uniformImage(2048, 512, color.RGBA{R: 250, G: 250, B: 250, A: 255})
	if got := s.Sample(models.Hotspot{X: 50, Y: 50}, img, "big"); got != lightProfile {
		t.Errorf("Sample() on downscaled image = %+v, want light profile", got)
	}
	if s.scaledImg == nil {
		t.Fatal("expected a cached scaled bitmap")
	}
	if w := s.scaledImg.Bounds().Dx(); w != 1024 {
		t.Errorf("scaled bitmap width = %d, want 1024", w)
	}
}

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32

	for i := 0; i < 5; i++ {
		d.Trigger(1, func() { calls.Add(1) })
	}

	time.Sleep(80 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("debounced callback ran %d times, want 1", got)
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d after fire, want 0", d.Pending())
	}
}

func TestDebouncer_CancelAll(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32

	for id := 1; id <= 3; id++ {
		d.Trigger(id, func() { calls.Add(1) })
	}
	d.CancelAll()

	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("cancelled callbacks still ran %d times", got)
	}
}

func TestDebouncer_IndependentIDs(t *testing.T) {
	d := NewDebouncer(15 * time.Millisecond)
	var calls atomic.Int32

	d.Trigger(1, func() { calls.Add(1) })
	d.Trigger(2, func() { calls.Add(1) })

	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 2 {
		t.Errorf("callbacks ran %d times, want 2 (one per id)", got)
	}
}

func TestCacheKey_PositionSensitivity(t *testing.T) {
	a := cacheKey(10.01, 20.02, "img")
	b := cacheKey(10.01, 20.03, "img")
	c := cacheKey(10.01, 20.02, "other")
	if a == b || a == c {
		t.Errorf("cache keys collide: %s %s %s", a, b, c)
	}
	if want := fmt.Sprintf("%.2f:%.2f:%s", 10.01, 20.02, "img"); a != want {
		t.Errorf("cacheKey() = %s, want %s", a, want)
	}
}
