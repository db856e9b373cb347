// Package imageio loads and saves images for the dataset tools.
package imageio

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/leaf-analyzer/internal/utils"
)

// Codec handles image decoding and encoding
type Codec struct {
	config Config
}

// Config holds the output encoding settings
type Config struct {
	Format   string
	Quality  int
	Lossless bool
}

// New creates a Codec writing JPG at quality 90
func New() *Codec {
	return &Codec{config: Config{Format: "JPG", Quality: 90}}
}

// NewWithConfig creates a Codec with custom configuration
func NewWithConfig(config Config) *Codec {
	if config.Format == "" {
		config.Format = "JPG"
	}
	if config.Quality <= 0 {
		config.Quality = 90
	}
	return &Codec{config: config}
}

// Format returns the extension used for generated files
func (c *Codec) Format() string {
	return c.config.Format
}

// Load decodes the image at path
func (c *Codec) Load(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".webp") {
		if img, err := webp.Decode(f); err == nil {
			return img, nil
		}
		if _, err := f.Seek(0, 0); err != nil {
			return nil, err
		}
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// Save encodes img to path, choosing the encoder from the extension
func (c *Codec) Save(img image.Image, path string) error {
	switch strings.ToLower(utils.GetFileExtension(path)) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		opts := &webp.Options{Lossless: c.config.Lossless, Quality: float32(c.config.Quality)}
		if err := webp.Encode(f, img, opts); err != nil {
			return errors.Join(fmt.Errorf("failed to encode %s: %w", path, err), f.Close())
		}
		return f.Close()
	case "png":
		if err := imaging.Save(img, path); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
	case "jpg", "jpeg":
		if err := imaging.Save(img, path, imaging.JPEGQuality(c.config.Quality)); err != nil {
			return fmt.Errorf("failed to save %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported output format: %s", path)
	}
	return nil
}

// SaveVariant writes img as {dir}/{stem}_{suffix}.{format} and returns the path
func (c *Codec) SaveVariant(img image.Image, dir, stem, suffix string) (string, error) {
	path := utils.GenerateOutputFilename(stem, dir, suffix, c.config.Format)
	return path, c.Save(img, path)
}

// EncodeBase64 prepares an image for a vision model, downscaling its long
// side to maxDim when maxDim is positive.
func (c *Codec) EncodeBase64(img image.Image, format string, maxDim int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.config.Quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	Area        int
}

// GetImageInfo returns basic information about an image
func GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{Width: width, Height: height, Area: width * height}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}
