// Package imageio fetches and decodes processed images returned by the
// retouch service, with URL validation so the engine never follows a URL
// into a private network.
package imageio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

var (
	ErrInvalidScheme = errors.New("only HTTPS URLs are allowed")
	ErrPrivateHost   = errors.New("URL resolves to a private address")
	ErrFetchFailed   = errors.New("failed to fetch image")
	ErrDecodeFailed  = errors.New("failed to decode image")
)

const defaultTimeout = 60 * time.Second

type Fetcher struct {
	httpClient *http.Client

	// AllowInsecure skips scheme and address validation. Tests only.
	AllowInsecure bool
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// ValidateURL rejects non-HTTPS URLs and hosts that resolve to loopback,
// link-local or private addresses.
func (f *Fetcher) ValidateURL(rawURL string) error {
	if f.AllowInsecure {
		return nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "https" {
		return ErrInvalidScheme
	}
	return validateHostIP(parsed.Hostname())
}

// Fetch downloads the image bytes at the URL after validating it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := f.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return data, nil
}

// FetchImage downloads and decodes the image in one step.
func (f *Fetcher) FetchImage(ctx context.Context, rawURL string) (image.Image, error) {
	data, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode turns raw bytes into a bitmap. PNG, JPEG and GIF are registered.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	return img, nil
}

func validateHostIP(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateHost
		}
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		// unresolvable hosts fail at fetch time with a clearer error
		return nil
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return ErrPrivateHost
		}
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
