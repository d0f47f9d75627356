// Package export writes working and processed images to disk.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arjun/pinpoint/internal/imageio"
	"github.com/arjun/pinpoint/internal/security"
)

type Saver struct {
	fetcher *imageio.Fetcher
}

func NewSaver(fetcher *imageio.Fetcher) *Saver {
	if fetcher == nil {
		fetcher = imageio.NewFetcher()
	}
	return &Saver{fetcher: fetcher}
}

// Save writes the image to path. When data is empty the image is downloaded
// from url first. User-supplied paths must pass the save-path validation
// before the file is written.
func (s *Saver) Save(ctx context.Context, data []byte, url, path string) (string, error) {
	if err := security.ValidateSavePath(path); err != nil {
		return "", fmt.Errorf("invalid save path: %w", err)
	}

	if len(data) == 0 {
		if url == "" {
			return "", fmt.Errorf("no image data available")
		}
		var err error
		data, err = s.fetcher.Fetch(ctx, url)
		if err != nil {
			return "", fmt.Errorf("failed to download image: %w", err)
		}
	}

	if err := ensureDir(path); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// GenerateFilename builds a timestamped default filename for a saved result.
func GenerateFilename(t time.Time) string {
	return fmt.Sprintf("retouch-%s.png", t.Format("20060102-150405"))
}
