package upload

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Upload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/references" {
			t.Errorf("path = %s, want /references", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile() error = %v", err)
		}
		defer file.Close()
		if header.Filename != "jacket.png" {
			t.Errorf("filename = %q, want jacket.png", header.Filename)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"url":        "https://cdn.example.com/refs/jacket.png",
			"previewUrl": "https://cdn.example.com/refs/jacket-sm.png",
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	ref, err := c.Upload(context.Background(), "jacket.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if ref.ID == "" {
		t.Error("Upload() returned empty reference id")
	}
	if ref.URL != "https://cdn.example.com/refs/jacket.png" {
		t.Errorf("URL = %q", ref.URL)
	}
	if ref.PreviewURL != "https://cdn.example.com/refs/jacket-sm.png" {
		t.Errorf("PreviewURL = %q", ref.PreviewURL)
	}
}

func TestClient_Upload_CleansFilename(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		_, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile() error = %v", err)
		}
		if header.Filename != "tmp-jacket.png" {
			t.Errorf("filename = %q, want path separators stripped", header.Filename)
		}
		json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example.com/r.png"})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if _, err := c.Upload(context.Background(), "../tmp/jacket.png", []byte("x")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
}

func TestClient_Upload_PreviewFallsBackToURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"url": "https://cdn.example.com/r.png"})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	ref, err := c.Upload(context.Background(), "r.png", []byte("x"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if ref.PreviewURL != ref.URL {
		t.Errorf("PreviewURL = %q, want fallback to URL", ref.PreviewURL)
	}
}

func TestClient_Upload_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "file too large"})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	_, err := c.Upload(context.Background(), "big.png", []byte("x"))
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("Upload() error = %v, want ErrUploadFailed", err)
	}
}

func TestClient_Upload_EmptyFile(t *testing.T) {
	c := NewClient("http://unused.example.com")
	if _, err := c.Upload(context.Background(), "x.png", nil); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("Upload() error = %v, want ErrEmptyFile", err)
	}
}
