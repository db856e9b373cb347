// Package augment implements the single-image augmentations used to grow
// minority classes.
package augment

import (
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Variant names one augmentation; it doubles as the filename suffix
type Variant string

const (
	Original Variant = "original"
	Flip     Variant = "flip"
	Rotate   Variant = "rotate"
	Shear    Variant = "shear"
	Crop     Variant = "crop"
	Blur     Variant = "blur"
	Contrast Variant = "contrast"
)

// Cycle returns the fixed order in which variants are applied when balancing
func Cycle() []Variant {
	return []Variant{Original, Flip, Rotate, Shear, Crop, Blur, Contrast}
}

// Variants returns the augmentations proper, without the identity copy
func Variants() []Variant {
	return []Variant{Flip, Rotate, Shear, Crop, Blur, Contrast}
}

// Config holds the augmentation parameters
type Config struct {
	RotateAngle    float64
	ShearFactor    float64
	CropFraction   float64
	BlurRadius     float64
	ContrastFactor float64
}

// DefaultConfig returns the standard augmentation parameters
func DefaultConfig() Config {
	return Config{
		RotateAngle:    10,
		ShearFactor:    0.2,
		CropFraction:   0.8,
		BlurRadius:     2,
		ContrastFactor: 2,
	}
}

// Augmenter applies named augmentations. Crop placement is random; every
// other variant is deterministic.
type Augmenter struct {
	config Config
	rng    *rand.Rand
}

// New creates an Augmenter with default parameters and an unseeded source
func New() *Augmenter {
	return NewWithConfig(DefaultConfig(), nil)
}

// NewWithConfig creates an Augmenter. A nil rng draws from a random seed.
func NewWithConfig(config Config, rng *rand.Rand) *Augmenter {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Augmenter{config: config, rng: rng}
}

// Apply returns a new image with the variant applied; img is never modified
func (a *Augmenter) Apply(variant Variant, img image.Image) (image.Image, error) {
	switch variant {
	case Original:
		return imaging.Clone(img), nil
	case Flip:
		return imaging.FlipH(img), nil
	case Rotate:
		return a.rotate(img), nil
	case Shear:
		return a.shear(img), nil
	case Crop:
		return a.crop(img), nil
	case Blur:
		return imaging.Blur(img, a.config.BlurRadius), nil
	case Contrast:
		return imaging.AdjustContrast(img, contrastPercentage(a.config.ContrastFactor)), nil
	default:
		return nil, fmt.Errorf("unknown augmentation: %s", variant)
	}
}

// rotate turns the image counter-clockwise around its center and keeps the
// original canvas size, filling uncovered corners with black.
func (a *Augmenter) rotate(img image.Image) image.Image {
	b := img.Bounds()
	rotated := imaging.Rotate(img, a.config.RotateAngle, color.Black)
	return imaging.CropCenter(rotated, b.Dx(), b.Dy())
}

// shear maps each output pixel (x, y) to input (x + k*y, y)
func (a *Augmenter) shear(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)

	k := a.config.ShearFactor
	s2d := f64.Aff3{
		1, -k, k*float64(b.Min.Y) - float64(b.Min.X),
		0, 1, -float64(b.Min.Y),
	}
	draw.CatmullRom.Transform(dst, s2d, img, b, draw.Over, nil)
	return dst
}

// crop keeps a fixed fraction of each dimension at a random position
func (a *Augmenter) crop(img image.Image) image.Image {
	b := img.Bounds()
	w, h := CropSize(b.Dx(), b.Dy(), a.config.CropFraction)
	left := b.Min.X + a.rng.IntN(b.Dx()-w+1)
	top := b.Min.Y + a.rng.IntN(b.Dy()-h+1)
	return imaging.Crop(img, image.Rect(left, top, left+w, top+h))
}

// CropSize returns the retained crop dimensions for a width and height
func CropSize(width, height int, fraction float64) (int, int) {
	w := int(float64(width) * fraction)
	h := int(float64(height) * fraction)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// contrastPercentage converts a multiplicative contrast factor into the
// percentage understood by imaging.AdjustContrast, whose slope is
// 1/(2-v) for v in (1, 2) and v for v in [0, 1], with v = 1 + p/100.
func contrastPercentage(factor float64) float64 {
	if factor >= 1 {
		return (1 - 1/factor) * 100
	}
	if factor < 0 {
		factor = 0
	}
	return (factor - 1) * 100
}
