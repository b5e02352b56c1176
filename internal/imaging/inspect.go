// Package imaging answers the one question validation asks of an image:
// its pixel dimensions. Only headers are read; pixels are never decoded.
package imaging

import (
	"fmt"
	"image"
	"os"

	// Register the formats device screenshots come in.
	_ "image/jpeg"
	_ "image/png"
)

// Inspector reports image dimensions.
type Inspector interface {
	Dimensions(path string) (width, height int, err error)
}

// FileInspector inspects images on the local filesystem.
type FileInspector struct{}

// NewFileInspector returns the standard header-only inspector.
func NewFileInspector() *FileInspector {
	return &FileInspector{}
}

// Dimensions decodes just the image header.
func (FileInspector) Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("opening image %q: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("reading image header of %q: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}
