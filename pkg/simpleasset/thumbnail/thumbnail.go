// Package thumbnail derives bounded-width previews of uploaded images.
package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/semaphore"

	// registers the webp decoder with image.Decode
	_ "golang.org/x/image/webp"

	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/objectkey"
)

const (
	DefaultMaxWidth    = 400
	DefaultJPEGQuality = 85
)

// Config controls thumbnail output
type Config struct {
	// MaxWidth bounds the thumbnail width; narrower images are not upscaled
	MaxWidth int
	// Concurrency bounds how many images are decoded at once (default: NumCPU)
	Concurrency int
	JPEGQuality int
}

// Generator implements simpleasset.Deriver using imaging with Lanczos resampling
type Generator struct {
	maxWidth int
	quality  int
	sem      *semaphore.Weighted
}

// New creates a thumbnail generator, filling in defaults for zero fields
func New(cfg Config) *Generator {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = DefaultMaxWidth
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = DefaultJPEGQuality
	}
	return &Generator{
		maxWidth: cfg.MaxWidth,
		quality:  cfg.JPEGQuality,
		sem:      semaphore.NewWeighted(int64(cfg.Concurrency)),
	}
}

// MaxWidth returns the configured width bound
func (g *Generator) MaxWidth() int {
	return g.maxWidth
}

// Derive decodes the image, applies EXIF orientation, shrinks it to at most
// MaxWidth pixels wide preserving aspect ratio, and re-encodes it in the
// source format. WebP sources are encoded as PNG since no WebP encoder is
// available.
func (g *Generator) Derive(ctx context.Context, reader io.Reader, fileName string) (*simpleasset.Rendition, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	img, err := imaging.Decode(reader, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, errors.New("image has no pixels")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if bounds.Dx() > g.maxWidth {
		img = imaging.Resize(img, g.maxWidth, 0, imaging.Lanczos)
	}

	format, ext, mimeType := outputFormat(fileName)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(g.quality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	out := img.Bounds()
	return &simpleasset.Rendition{
		Data:     buf.Bytes(),
		Width:    out.Dx(),
		Height:   out.Dy(),
		MimeType: mimeType,
		Ext:      ext,
	}, nil
}

func outputFormat(fileName string) (imaging.Format, string, string) {
	switch ext := objectkey.Ext(fileName); strings.TrimPrefix(ext, ".") {
	case "png":
		return imaging.PNG, ext, "image/png"
	case "gif":
		return imaging.GIF, ext, "image/gif"
	case "jpg", "jpeg":
		return imaging.JPEG, ext, "image/jpeg"
	default:
		return imaging.PNG, ".png", "image/png"
	}
}
