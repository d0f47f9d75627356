// Package sampler derives contrast-safe overlay styling for hotspot markers
// by sampling the image pixels underneath them.
package sampler

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"

	"github.com/arjun/pinpoint/internal/geometry"
	"github.com/arjun/pinpoint/pkg/models"
)

const (
	// maxSampleDim caps the long edge of the sampling bitmap. Sampling a
	// full-resolution photo per hotspot move would be wasted work.
	maxSampleDim = 1024

	// neighborhood is the odd NxN pixel window averaged around the hotspot.
	neighborhood = 3

	// lumaLightThreshold splits light from dark backgrounds on the 0-255
	// Rec.601 luma scale.
	lumaLightThreshold = 140

	defaultCacheCap = 256
)

var (
	// lightProfile is used over light pixels: dark marker, no heavy shadow.
	lightProfile = models.ColorProfile{
		BackgroundColor: "rgba(24, 24, 24, 0.82)",
		BorderColor:     "rgba(0, 0, 0, 0.9)",
		TextColor:       "#ffffff",
		TextShadow:      "0 1px 2px rgba(0, 0, 0, 0.35)",
	}

	// darkProfile is used over dark pixels: light marker with a stronger
	// shadow so text stays readable on near-black regions.
	darkProfile = models.ColorProfile{
		BackgroundColor: "rgba(255, 255, 255, 0.92)",
		BorderColor:     "rgba(255, 255, 255, 0.95)",
		TextColor:       "#111111",
		TextShadow:      "0 1px 3px rgba(0, 0, 0, 0.85)",
	}

	// NeutralProfile is the fail-soft fallback when the image cannot be
	// sampled. Dark translucent background, white text.
	NeutralProfile = models.ColorProfile{
		BackgroundColor: "rgba(0, 0, 0, 0.65)",
		BorderColor:     "rgba(255, 255, 255, 0.8)",
		TextColor:       "#ffffff",
		TextShadow:      "0 1px 2px rgba(0, 0, 0, 0.6)",
	}
)

// Sampler computes color profiles, caching results per hotspot position and
// image identity. It keeps one downscaled bitmap per image identity so
// repeated samples against the same base image reuse it.
type Sampler struct {
	mu       sync.Mutex
	cacheCap int
	cache    map[string]models.ColorProfile
	order    []string

	scaledID  string
	scaledImg *image.RGBA
}

func New() *Sampler {
	return NewWithCap(defaultCacheCap)
}

func NewWithCap(cacheCap int) *Sampler {
	if cacheCap < 1 {
		cacheCap = defaultCacheCap
	}
	return &Sampler{
		cacheCap: cacheCap,
		cache:    make(map[string]models.ColorProfile),
	}
}

// Sample returns the color profile for a hotspot over the given image. It
// never fails: an unsampleable image yields NeutralProfile.
func (s *Sampler) Sample(h models.Hotspot, img image.Image, imageID string) models.ColorProfile {
	if img == nil {
		return NeutralProfile
	}

	key := cacheKey(h.X, h.Y, imageID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.cache[key]; ok {
		return p
	}

	bitmap := s.scaledFor(img, imageID)
	if bitmap == nil {
		return NeutralProfile
	}

	luma := averageLuma(bitmap, h.X, h.Y)
	profile := darkProfile
	if luma > lumaLightThreshold {
		profile = lightProfile
	}

	s.put(key, profile)
	return profile
}

// Invalidate drops cached profiles and the scaled bitmap, e.g. when the base
// image changes or the session resets.
func (s *Sampler) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]models.ColorProfile)
	s.order = nil
	s.scaledID = ""
	s.scaledImg = nil
}

// CacheLen reports the number of cached profiles.
func (s *Sampler) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

func cacheKey(x, y float64, imageID string) string {
	return fmt.Sprintf("%.2f:%.2f:%s", x, y, imageID)
}

// put inserts a cache entry, evicting the oldest one at capacity.
func (s *Sampler) put(key string, p models.ColorProfile) {
	if len(s.cache) >= s.cacheCap && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.cache, oldest)
	}
	s.cache[key] = p
	s.order = append(s.order, key)
}

// scaledFor returns the downscaled sampling bitmap for img, rebuilding it
// when the image identity changes.
func (s *Sampler) scaledFor(img image.Image, imageID string) *image.RGBA {
	if s.scaledImg != nil && s.scaledID == imageID {
		return s.scaledImg
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil
	}

	scale := 1.0
	if long := max(w, h); long > maxSampleDim {
		scale = float64(maxSampleDim) / float64(long)
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	s.scaledID = imageID
	s.scaledImg = dst
	return dst
}

// averageLuma averages a small neighborhood of pixels around the percent
// position and returns its Rec.601 luma in [0,255].
func averageLuma(img *image.RGBA, xPct, yPct float64) float64 {
	b := img.Bounds()
	cx := int(geometry.ToPixel(xPct, float64(b.Dx())))
	cy := int(geometry.ToPixel(yPct, float64(b.Dy())))

	half := neighborhood / 2
	var sum float64
	var n int
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			x := int(geometry.Clamp(float64(cx+dx), 0, float64(b.Dx()-1)))
			y := int(geometry.Clamp(float64(cy+dy), 0, float64(b.Dy()-1)))
			c := img.RGBAAt(b.Min.X+x, b.Min.Y+y)
			sum += 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
