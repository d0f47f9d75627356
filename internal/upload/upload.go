// Package upload is the client for the external reference-image upload
// service. Each hotspot may carry one uploaded reference image.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/arjun/pinpoint/internal/security"
	"github.com/arjun/pinpoint/pkg/models"
)

var (
	ErrUploadFailed = errors.New("reference upload failed")
	ErrEmptyFile    = errors.New("reference file is empty")
)

const defaultTimeout = 60 * time.Second

type uploadResponse struct {
	URL        string `json:"url"`
	PreviewURL string `json:"previewUrl"`
	Error      string `json:"error,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Upload sends the file and returns the stored reference. The returned id is
// generated locally; the service only knows URLs.
func (c *Client) Upload(ctx context.Context, filename string, data []byte) (*models.ReferenceImage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filePart, err := writer.CreateFormFile("file", security.CleanFilename(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := filePart.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/references", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var uploadResp uploadResponse
	if err := json.Unmarshal(bodyBytes, &uploadResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if uploadResp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrUploadFailed, uploadResp.Error)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: status %d", ErrUploadFailed, resp.StatusCode)
	}
	if uploadResp.URL == "" {
		return nil, fmt.Errorf("%w: response carried no url", ErrUploadFailed)
	}

	ref := &models.ReferenceImage{
		ID:         uuid.New().String(),
		URL:        uploadResp.URL,
		PreviewURL: uploadResp.PreviewURL,
	}
	if ref.PreviewURL == "" {
		ref.PreviewURL = ref.URL
	}
	return ref, nil
}
