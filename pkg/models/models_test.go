package models

import (
	"errors"
	"strings"
	"testing"
)

func TestHotspot_HasPrompt(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   bool
	}{
		{"empty", "", false},
		{"whitespace only", "   \t\n", false},
		{"real prompt", "remove the shadow", true},
		{"padded prompt", "  brighten this  ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Hotspot{ID: 1, Prompt: tt.prompt}
			if got := h.HasPrompt(); got != tt.want {
				t.Errorf("HasPrompt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHotspot_Reference(t *testing.T) {
	h := &Hotspot{ID: 1}
	if h.Reference() != nil {
		t.Error("Reference() != nil for hotspot without references")
	}

	h.ReferenceImages = []ReferenceImage{{ID: "ref-1", URL: "https://cdn.example.com/ref.png"}}
	ref := h.Reference()
	if ref == nil {
		t.Fatal("Reference() = nil, want attached reference")
	}
	if ref.ID != "ref-1" {
		t.Errorf("Reference().ID = %q, want ref-1", ref.ID)
	}
}

func TestEditPointsFrom(t *testing.T) {
	hotspots := []Hotspot{
		{ID: 1, X: 45.5, Y: 30.25, Prompt: "  remove shadow  "},
		{ID: 2, X: 60, Y: 70, Prompt: "match this jacket", ReferenceImages: []ReferenceImage{
			{ID: "r1", URL: "https://cdn.example.com/jacket.png"},
		}},
	}

	points := EditPointsFrom(hotspots)
	if len(points) != 2 {
		t.Fatalf("EditPointsFrom() returned %d points, want 2", len(points))
	}
	if points[0].Prompt != "remove shadow" {
		t.Errorf("points[0].Prompt = %q, want trimmed prompt", points[0].Prompt)
	}
	if points[0].ReferenceURL != "" {
		t.Errorf("points[0].ReferenceURL = %q, want empty", points[0].ReferenceURL)
	}
	if points[1].ReferenceURL != "https://cdn.example.com/jacket.png" {
		t.Errorf("points[1].ReferenceURL = %q", points[1].ReferenceURL)
	}
}

func TestProcessRequest_Validate(t *testing.T) {
	valid := []EditPoint{{X: 50, Y: 50, Prompt: "remove shadow"}}

	tests := []struct {
		name    string
		req     *ProcessRequest
		wantErr error
	}{
		{"valid", NewProcessRequest([]byte("png"), valid), nil},
		{"no image", NewProcessRequest(nil, valid), ErrNoImageData},
		{"no points", NewProcessRequest([]byte("png"), nil), ErrNoEditPoints},
		{"blank prompt", NewProcessRequest([]byte("png"), []EditPoint{{Prompt: "  "}}), ErrEmptyPrompt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProcessRequest_Instruction(t *testing.T) {
	req := NewProcessRequest([]byte("png"), []EditPoint{
		{X: 45.5, Y: 30.2, Prompt: "remove the shadow"},
		{X: 60, Y: 70, Prompt: "recolor the jacket", ReferenceURL: "https://cdn.example.com/r.png"},
	})

	text := req.Instruction()
	if !strings.Contains(text, "45.5% from the left") {
		t.Errorf("Instruction() missing position, got:\n%s", text)
	}
	if !strings.Contains(text, "remove the shadow") {
		t.Errorf("Instruction() missing prompt, got:\n%s", text)
	}
	if !strings.Contains(text, "reference image") {
		t.Errorf("Instruction() missing reference note, got:\n%s", text)
	}
	if strings.Count(text, "\n") < 2 {
		t.Errorf("Instruction() should list each point on its own line:\n%s", text)
	}
}

func TestProviderType_IsValid(t *testing.T) {
	if !ProviderOpenAI.IsValid() {
		t.Error("ProviderOpenAI.IsValid() = false")
	}
	if !ProviderGemini.IsValid() {
		t.Error("ProviderGemini.IsValid() = false")
	}
	if ProviderType("midjourney").IsValid() {
		t.Error(`ProviderType("midjourney").IsValid() = true, want false`)
	}
}
