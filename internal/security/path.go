// Package security vets the file paths pinpoint writes: save targets for
// exported images, and the user-supplied filenames forwarded to the
// reference-upload service.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath     = errors.New("path is empty")
	ErrAbsolutePath  = errors.New("absolute paths are not allowed")
	ErrPathTraversal = errors.New("path escapes the working directory")
	ErrReservedName  = errors.New("reserved filename not allowed")
	ErrNotImagePath  = errors.New("save path must use an image extension")
)

// imageExts are the formats retouch providers return.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// ValidateSavePath checks a user-supplied save target before an exported
// image is written to it. Targets stay relative to the working directory and
// must name an image file.
func ValidateSavePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if filepath.IsAbs(path) {
		return ErrAbsolutePath
	}
	if strings.Contains(path, "..") {
		return ErrPathTraversal
	}

	base := filepath.Base(filepath.Clean(path))
	if strings.HasPrefix(base, "-") {
		return fmt.Errorf("filename cannot start with a hyphen: %s", base)
	}
	if isReservedName(base) {
		return fmt.Errorf("%w: %s", ErrReservedName, base)
	}
	if ext := strings.ToLower(filepath.Ext(base)); !imageExts[ext] {
		return fmt.Errorf("%w: %s", ErrNotImagePath, base)
	}
	return nil
}

// isReservedName reports whether the name (ignoring extension) is a device
// name Windows refuses to create as a file.
func isReservedName(base string) bool {
	name := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
	switch name {
	case "con", "prn", "aux", "nul":
		return true
	}
	if len(name) == 4 && (strings.HasPrefix(name, "com") || strings.HasPrefix(name, "lpt")) {
		return name[3] >= '1' && name[3] <= '9'
	}
	return false
}

// CleanFilename strips path separators and shell-hostile characters from a
// user-supplied reference filename before it goes into a multipart form.
func CleanFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '-'
		case '*', '?', '"', '<', '>', '|', 0:
			return -1
		}
		return r
	}, name)

	cleaned = strings.TrimLeft(cleaned, ".-")
	cleaned = strings.TrimRight(cleaned, ". ")
	if isReservedName(cleaned) {
		cleaned += "_"
	}
	if cleaned == "" {
		return "reference"
	}
	return cleaned
}
