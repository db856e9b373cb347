package vision

import (
	"image"
	"image/color"
)

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func absInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// drawBox outlines rect with a border stroke pixels wide
func drawBox(img *image.NRGBA, rect image.Rectangle, c color.NRGBA, stroke int) {
	if rect.Empty() {
		return
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, rect.Min.Y+s, rect.Min.X, rect.Max.X, c)
		drawHLine(img, rect.Max.Y-1-s, rect.Min.X, rect.Max.X, c)
		drawVLine(img, rect.Min.X+s, rect.Min.Y, rect.Max.Y, c)
		drawVLine(img, rect.Max.X-1-s, rect.Min.Y, rect.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= b.Min.X || x0 >= b.Max.X {
		return
	}
	if x0 < b.Min.X {
		x0 = b.Min.X
	}
	if x1 > b.Max.X {
		x1 = b.Max.X
	}
	i := img.PixOffset(x0, y)
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= b.Min.Y || y0 >= b.Max.Y {
		return
	}
	if y0 < b.Min.Y {
		y0 = b.Min.Y
	}
	if y1 > b.Max.Y {
		y1 = b.Max.Y
	}
	i := img.PixOffset(x, y0)
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}

// drawLine rasterizes the segment p0-p1 with Bresenham's algorithm
func drawLine(img *image.NRGBA, p0, p1 image.Point, c color.NRGBA) {
	dx := absInt(p1.X - p0.X)
	dy := -absInt(p1.Y - p0.Y)
	sx, sy := 1, 1
	if p0.X > p1.X {
		sx = -1
	}
	if p0.Y > p1.Y {
		sy = -1
	}

	err := dx + dy
	x, y := p0.X, p0.Y
	b := img.Bounds()
	for {
		if image.Pt(x, y).In(b) {
			img.SetNRGBA(x, y, c)
		}
		if x == p1.X && y == p1.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// fillCircle paints a solid disc of the given radius around center
func fillCircle(img *image.NRGBA, center image.Point, radius int, c color.NRGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy > radius*radius {
				continue
			}
			p := image.Pt(center.X+dx, center.Y+dy)
			if p.In(img.Bounds()) {
				img.SetNRGBA(p.X, p.Y, c)
			}
		}
	}
}

// drawCross marks p with a plus sign of half-width size
func drawCross(img *image.NRGBA, p image.Point, size int, c color.NRGBA) {
	drawHLine(img, p.Y, p.X-size, p.X+size+1, c)
	drawVLine(img, p.X, p.Y-size, p.Y+size+1, c)
}
