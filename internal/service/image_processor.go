// Package service wires the core together: it turns generation units into
// stored images, reports their outcomes to analytics, and runs batches as
// background jobs.
package service

import (
	"fmt"

	"github.com/h2non/bimg"
)

// DefaultThumbnailSize is the edge length of the square thumbnail.
const DefaultThumbnailSize = 256

// ImageProcessor normalises provider output with bimg (libvips bindings).
// Providers may answer with JPEG or WebP; everything is stored as PNG.
type ImageProcessor struct {
	thumbnailSize int
}

// NewImageProcessor creates a processor. A non-positive size means
// DefaultThumbnailSize.
func NewImageProcessor(thumbnailSize int) *ImageProcessor {
	if thumbnailSize <= 0 {
		thumbnailSize = DefaultThumbnailSize
	}
	return &ImageProcessor{thumbnailSize: thumbnailSize}
}

// ProcessedImage is a normalised image plus its thumbnail.
type ProcessedImage struct {
	PNG       []byte
	Thumbnail []byte
	Width     int
	Height    int
}

// Process converts imageData to an sRGB PNG and renders a square thumbnail.
func (p *ImageProcessor) Process(imageData []byte) (*ProcessedImage, error) {
	img := bimg.NewImage(imageData)
	size, err := img.Size()
	if err != nil {
		return nil, fmt.Errorf("reading image size: %w", err)
	}

	normalised, err := img.Process(bimg.Options{
		Type:           bimg.PNG,
		Interpretation: bimg.InterpretationSRGB,
	})
	if err != nil {
		return nil, fmt.Errorf("converting to png: %w", err)
	}

	thumb, err := resizeToSquarePNG(normalised, p.thumbnailSize)
	if err != nil {
		return nil, err
	}

	return &ProcessedImage{
		PNG:       normalised,
		Thumbnail: thumb,
		Width:     size.Width,
		Height:    size.Height,
	}, nil
}

// resizeToSquarePNG fits an image into a square PNG, padding the short side.
func resizeToSquarePNG(imageData []byte, pixels int) ([]byte, error) {
	resized, err := bimg.NewImage(imageData).Process(bimg.Options{
		Width:          pixels,
		Height:         pixels,
		Type:           bimg.PNG,
		Embed:          true,
		Enlarge:        true,
		Background:     bimg.Color{R: 0, G: 0, B: 0},
		Interpretation: bimg.InterpretationSRGB,
	})
	if err != nil {
		return nil, fmt.Errorf("resizing to %dpx: %w", pixels, err)
	}
	return resized, nil
}
