// Package display previews the working image inline in terminals that
// implement the kitty graphics protocol.
package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/arjun/pinpoint/internal/imageio"
)

type Displayer struct {
	out     io.Writer
	fetcher *imageio.Fetcher
}

func New(out io.Writer, fetcher *imageio.Fetcher) *Displayer {
	if fetcher == nil {
		fetcher = imageio.NewFetcher()
	}
	return &Displayer{out: out, fetcher: fetcher}
}

// Display renders the image inline. When data is empty the image is
// downloaded from url first.
func (d *Displayer) Display(ctx context.Context, data []byte, url string) error {
	if len(data) == 0 {
		if url == "" {
			return fmt.Errorf("image has no data or URL")
		}
		var err error
		data, err = d.fetcher.Fetch(ctx, url)
		if err != nil {
			return fmt.Errorf("failed to download: %w", err)
		}
	}

	if err := writeGraphics(d.out, data); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	fmt.Fprintln(d.out)
	return nil
}

func IsTerminalSupported() bool {
	termProgram := strings.ToLower(os.Getenv("TERM_PROGRAM"))
	supportedPrograms := []string{"kitty", "ghostty", "iterm.app", "wezterm"}

	for _, prog := range supportedPrograms {
		if termProgram == prog {
			return true
		}
	}

	if os.Getenv("KITTY_WINDOW_ID") != "" {
		return true
	}

	if os.Getenv("ITERM_SESSION_ID") != "" {
		return true
	}

	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghostty")
}
