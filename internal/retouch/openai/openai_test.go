package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/arjun/pinpoint/internal/retouch"
	"github.com/arjun/pinpoint/pkg/models"
)

func testRequest() *models.ProcessRequest {
	return models.NewProcessRequest([]byte("fake-png"), []models.EditPoint{
		{X: 45.5, Y: 30.2, Prompt: "remove the shadow"},
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *retouch.Config
		wantErr error
	}{
		{"valid config", &retouch.Config{APIKey: "test-key"}, nil},
		{"empty API key", &retouch.Config{}, retouch.ErrAPIKeyRequired},
		{"custom base URL", &retouch.Config{APIKey: "k", BaseURL: "https://custom.api.com"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v, want nil", err)
			}
			if p.Name() != models.ProviderOpenAI {
				t.Errorf("Name() = %v, want %v", p.Name(), models.ProviderOpenAI)
			}
		})
	}
}

func TestProvider_Process(t *testing.T) {
	var gotPrompt, gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/edits" {
			t.Errorf("path = %s, want /images/edits", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		gotPrompt = r.FormValue("prompt")
		gotModel = r.FormValue("model")
		json.NewEncoder(w).Encode(map[string]any{
			"created": 1700000000,
			"data":    []map[string]string{{"url": "https://img.example.com/out.png"}},
		})
	}))
	defer server.Close()

	p, err := New(&retouch.Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := p.Process(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.ImageURL != "https://img.example.com/out.png" {
		t.Errorf("ImageURL = %q", result.ImageURL)
	}
	if !strings.Contains(gotPrompt, "remove the shadow") || !strings.Contains(gotPrompt, "45.5%") {
		t.Errorf("prompt sent = %q, want edit point rendered into it", gotPrompt)
	}
	if gotModel != "gpt-image-1" {
		t.Errorf("model = %q, want gpt-image-1", gotModel)
	}
}

func TestProvider_Process_Base64Response(t *testing.T) {
	raw := []byte("binary-image-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(raw)}},
		})
	}))
	defer server.Close()

	p, _ := New(&retouch.Config{APIKey: "k", BaseURL: server.URL})
	result, err := p.Process(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if string(result.Data) != string(raw) {
		t.Errorf("Data = %q, want decoded image bytes", result.Data)
	}
}

func TestProvider_Process_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "billing hard limit reached", "type": "invalid_request_error"},
		})
	}))
	defer server.Close()

	p, _ := New(&retouch.Config{APIKey: "k", BaseURL: server.URL})
	_, err := p.Process(context.Background(), testRequest())
	if !errors.Is(err, retouch.ErrProcessFailed) {
		t.Fatalf("Process() error = %v, want ErrProcessFailed", err)
	}
	if !strings.Contains(err.Error(), "billing hard limit reached") {
		t.Errorf("error %q should carry the service message", err)
	}
}

func TestProvider_Process_EmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]string{}})
	}))
	defer server.Close()

	p, _ := New(&retouch.Config{APIKey: "k", BaseURL: server.URL})
	if _, err := p.Process(context.Background(), testRequest()); !errors.Is(err, retouch.ErrNoResult) {
		t.Errorf("Process() error = %v, want ErrNoResult", err)
	}
}

func TestProvider_Process_InvalidRequest(t *testing.T) {
	p, _ := New(&retouch.Config{APIKey: "k"})
	_, err := p.Process(context.Background(), models.NewProcessRequest(nil, nil))
	if !errors.Is(err, models.ErrNoImageData) {
		t.Errorf("Process() error = %v, want ErrNoImageData", err)
	}
}
