package imageio

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestValidateURL(t *testing.T) {
	f := NewFetcher()

	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"https public", "https://cdn.example.com/out.png", nil},
		{"http rejected", "http://cdn.example.com/out.png", ErrInvalidScheme},
		{"loopback rejected", "https://127.0.0.1/out.png", ErrPrivateHost},
		{"private rejected", "https://10.0.0.5/out.png", ErrPrivateHost},
		{"link local rejected", "https://169.254.1.1/out.png", ErrPrivateHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.ValidateURL(tt.url)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateURL(%q) = %v, want nil", tt.url, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateURL(%q) = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateURL_AllowInsecure(t *testing.T) {
	f := NewFetcher()
	f.AllowInsecure = true
	if err := f.ValidateURL("http://127.0.0.1/out.png"); err != nil {
		t.Errorf("ValidateURL with AllowInsecure = %v, want nil", err)
	}
}

func TestFetchImage(t *testing.T) {
	data := pngBytes(t, 8, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	f := NewFetcher()
	f.AllowInsecure = true

	img, err := f.FetchImage(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchImage failed: %v", err)
	}
	if got := img.Bounds().Dx(); got != 8 {
		t.Errorf("width = %d, want 8", got)
	}
}

func TestFetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher()
	f.AllowInsecure = true

	if _, err := f.Fetch(context.Background(), server.URL); !errors.Is(err, ErrFetchFailed) {
		t.Errorf("Fetch error = %v, want ErrFetchFailed", err)
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode([]byte("not an image")); !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("Decode error = %v, want ErrDecodeFailed", err)
	}
}
