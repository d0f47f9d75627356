package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoImageData     = errors.New("image data is required for processing")
	ErrNoEditPoints    = errors.New("at least one edit point is required")
	ErrEmptyPrompt     = errors.New("edit point prompt cannot be empty")
	ErrHotspotNotFound = errors.New("hotspot not found")
)

type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGemini ProviderType = "gemini"
)

func ValidProviders() []ProviderType {
	return []ProviderType{ProviderOpenAI, ProviderGemini}
}

func (p ProviderType) IsValid() bool {
	for _, v := range ValidProviders() {
		if p == v {
			return true
		}
	}
	return false
}

func (p ProviderType) String() string {
	return string(p)
}

// ReferenceImage is an uploaded example image attached to a hotspot.
type ReferenceImage struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	PreviewURL string `json:"previewUrl"`
}

// Hotspot is a user-placed edit point on the working image. X and Y are
// percentages of the image width/height in [0,100].
type Hotspot struct {
	ID              int              `json:"id"`
	X               float64          `json:"x"`
	Y               float64          `json:"y"`
	Prompt          string           `json:"prompt"`
	ReferenceImages []ReferenceImage `json:"referenceImages"`
}

// HasPrompt reports whether the hotspot carries a non-empty instruction.
// Whitespace-only prompts do not count.
func (h *Hotspot) HasPrompt() bool {
	return strings.TrimSpace(h.Prompt) != ""
}

// Reference returns the attached reference image, or nil if none is attached.
func (h *Hotspot) Reference() *ReferenceImage {
	if len(h.ReferenceImages) == 0 {
		return nil
	}
	return &h.ReferenceImages[0]
}

// ColorProfile holds the derived overlay styling that keeps a hotspot marker
// legible against the pixels underneath it.
type ColorProfile struct {
	BackgroundColor string `json:"backgroundColor"`
	BorderColor     string `json:"borderColor"`
	TextColor       string `json:"textColor"`
	TextShadow      string `json:"textShadow"`
}

// EditPoint is the wire form of a validated hotspot sent to a retouch
// provider.
type EditPoint struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Prompt       string  `json:"prompt"`
	ReferenceURL string  `json:"referenceImage,omitempty"`
}

// EditPointsFrom converts hotspots to their wire form. The caller is expected
// to pass only hotspots that passed the process gate.
func EditPointsFrom(hotspots []Hotspot) []EditPoint {
	points := make([]EditPoint, 0, len(hotspots))
	for i := range hotspots {
		p := EditPoint{
			X:      hotspots[i].X,
			Y:      hotspots[i].Y,
			Prompt: strings.TrimSpace(hotspots[i].Prompt),
		}
		if ref := hotspots[i].Reference(); ref != nil {
			p.ReferenceURL = ref.URL
		}
		points = append(points, p)
	}
	return points
}

type ProcessRequest struct {
	Image  []byte
	Model  string
	Points []EditPoint
}

func NewProcessRequest(image []byte, points []EditPoint) *ProcessRequest {
	return &ProcessRequest{
		Image:  image,
		Points: points,
	}
}

func (r *ProcessRequest) Validate() error {
	if len(r.Image) == 0 {
		return ErrNoImageData
	}
	if len(r.Points) == 0 {
		return ErrNoEditPoints
	}
	for i := range r.Points {
		if strings.TrimSpace(r.Points[i].Prompt) == "" {
			return fmt.Errorf("%w: point %d", ErrEmptyPrompt, i+1)
		}
	}
	return nil
}

// Instruction renders the edit points into a single retouch instruction,
// locating each edit by its percentage position on the image.
func (r *ProcessRequest) Instruction() string {
	var b strings.Builder
	b.WriteString("Apply the following localized edits to the photo, leaving all other regions untouched.\n")
	for i, p := range r.Points {
		fmt.Fprintf(&b, "%d. At %.1f%% from the left and %.1f%% from the top: %s", i+1, p.X, p.Y, p.Prompt)
		if p.ReferenceURL != "" {
			b.WriteString(" (match the attached reference image)")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ProcessResult is a retouch provider's answer: either a hosted URL or the
// raw image bytes, depending on the provider.
type ProcessResult struct {
	ImageURL string
	Data     []byte
}
