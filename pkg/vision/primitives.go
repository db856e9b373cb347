package vision

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// Mask values
const (
	Off uint8 = 0
	On  uint8 = 255
)

// labAt converts one NRGBA pixel to CIE-LAB under D65
func labAt(img *image.NRGBA, x, y int) (l, a, b float64) {
	i := img.PixOffset(x, y)
	c := colorful.Color{
		R: float64(img.Pix[i+0]) / 255,
		G: float64(img.Pix[i+1]) / 255,
		B: float64(img.Pix[i+2]) / 255,
	}
	return c.Lab()
}

// RemoveBackground blacks out low-chroma pixels, keeping the saturated leaf
// tissue. The returned mask marks kept pixels. When nothing would be kept
// the image is returned unchanged with a full-frame mask.
func RemoveBackground(img image.Image, minChroma float64) (*image.NRGBA, *image.Gray) {
	src := imaging.Clone(img)
	b := src.Bounds()
	fg := image.NewGray(b)

	kept := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if src.Pix[src.PixOffset(x, y)+3] == 0 {
				continue
			}
			_, la, lb := labAt(src, x, y)
			if math.Hypot(la, lb) >= minChroma {
				fg.Pix[fg.PixOffset(x, y)] = On
				kept++
			}
		}
	}

	if kept == 0 {
		fill(fg, On)
		return src, fg
	}

	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := src.PixOffset(x, y)
			if fg.Pix[fg.PixOffset(x, y)] == On {
				copy(out.Pix[i:i+4], src.Pix[i:i+4])
			} else {
				out.Pix[i+3] = 0xff
			}
		}
	}
	return out, fg
}

// GrayLab extracts the lightness channel scaled to 0..255
func GrayLab(img image.Image) *image.Gray {
	src := imaging.Clone(img)
	b := src.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			l, _, _ := labAt(src, x, y)
			gray.Pix[gray.PixOffset(x, y)] = uint8(math.Round(clamp(l, 0, 1) * 255))
		}
	}
	return gray
}

// BinaryThreshold sets pixels above threshold to On when light is true,
// or pixels below it when light is false.
func BinaryThreshold(gray *image.Gray, threshold uint8, light bool) *image.Gray {
	out := &image.Gray{Pix: make([]uint8, len(gray.Pix)), Stride: gray.Stride, Rect: gray.Rect}
	for i, v := range gray.Pix {
		if (light && v > threshold) || (!light && v < threshold) {
			out.Pix[i] = On
		}
	}
	return out
}

// GaussianBlur smooths a gray image with a kernel of the given odd size
func GaussianBlur(gray *image.Gray, kernel int) *image.Gray {
	blurred := imaging.Blur(gray, kernelSigma(kernel))
	b := blurred.Bounds()
	out := image.NewGray(b)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = blurred.Pix[y*blurred.Stride+x*4]
		}
	}
	return out
}

// kernelSigma derives the standard deviation a box of the given size implies
func kernelSigma(kernel int) float64 {
	if kernel < 1 {
		kernel = 1
	}
	return 0.3*(float64(kernel-1)*0.5-1) + 0.8
}

// ApplyMask paints every pixel whose mask value is zero white
func ApplyMask(img image.Image, mask *image.Gray) *image.NRGBA {
	out := imaging.Clone(img)
	b := out.Bounds()
	mb := mask.Bounds()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if mask.GrayAt(mb.Min.X+x, mb.Min.Y+y).Y != Off {
				continue
			}
			i := y*out.Stride + x*4
			out.Pix[i+0] = 0xff
			out.Pix[i+1] = 0xff
			out.Pix[i+2] = 0xff
			out.Pix[i+3] = 0xff
		}
	}
	return out
}

// Coverage returns the fraction of mask pixels that are set
func Coverage(mask *image.Gray) float64 {
	b := mask.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}
	set := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.GrayAt(x, y).Y != Off {
				set++
			}
		}
	}
	return float64(set) / float64(total)
}

func fill(mask *image.Gray, v uint8) {
	for i := range mask.Pix {
		mask.Pix[i] = v
	}
}

func recolor(img *image.NRGBA, mask *image.Gray, c color.NRGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.GrayAt(x, y).Y != Off {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
