package distribution

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/leaf-analyzer/internal/utils"
)

// Chart file names
const (
	PieChartFile = "pie_chart.png"
	BarChartFile = "bar_chart.png"
)

// Plotter renders a report into chart files under dir and returns their paths
type Plotter interface {
	Plot(report *Report, dir string) ([]string, error)
}

// ChartConfig holds chart dimensions
type ChartConfig struct {
	Width  int
	Height int
}

// Charts renders a pie chart and a bar chart as PNG files
type Charts struct {
	config ChartConfig
}

// NewCharts creates a Plotter drawing 800x600 charts
func NewCharts() *Charts {
	return NewChartsWithConfig(ChartConfig{Width: 800, Height: 600})
}

// NewChartsWithConfig creates a Plotter with custom dimensions
func NewChartsWithConfig(config ChartConfig) *Charts {
	return &Charts{config: config}
}

// Plot writes pie_chart.png and bar_chart.png into dir
func (c *Charts) Plot(report *Report, dir string) ([]string, error) {
	if len(report.Classes) == 0 {
		return nil, fmt.Errorf("nothing to plot")
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}

	palette := Palette(len(report.Classes))
	charts := []struct {
		file string
		img  image.Image
	}{
		{PieChartFile, c.Pie(report, palette)},
		{BarChartFile, c.Bar(report, palette)},
	}

	var paths []string
	for _, chart := range charts {
		path := filepath.Join(dir, chart.file)
		if err := imaging.Save(chart.img, path); err != nil {
			return paths, fmt.Errorf("failed to save %s: %w", chart.file, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Palette returns n evenly spaced hues of equal lightness
func Palette(n int) []color.NRGBA {
	colors := make([]color.NRGBA, n)
	for i := range colors {
		hue := 360 * float64(i) / float64(max(n, 1))
		r, g, b := colorful.Hcl(hue, 0.55, 0.7).Clamped().RGB255()
		colors[i] = color.NRGBA{r, g, b, 255}
	}
	return colors
}

// Bar draws one bar per class scaled to the largest class
func (c *Charts) Bar(report *Report, palette []color.NRGBA) *image.NRGBA {
	w, h := c.config.Width, c.config.Height
	img := imaging.New(w, h, color.White)
	title := fmt.Sprintf("%s class distribution", report.Name)
	drawText(img, title, (w-textWidth(title))/2, 24, color.Black)

	left, right, top, bottom := 60, w-20, 50, h-60
	drawAxis(img, left, top, bottom, right)

	maxCount := 0
	for _, cl := range report.Classes {
		maxCount = max(maxCount, cl.Count)
	}
	if maxCount == 0 {
		return img
	}

	n := len(report.Classes)
	slot := (right - left) / n
	barWidth := max(slot*2/3, 1)
	for i, cl := range report.Classes {
		x0 := left + i*slot + (slot-barWidth)/2
		barHeight := (bottom - top) * cl.Count / maxCount
		fillRect(img, image.Rect(x0, bottom-barHeight, x0+barWidth, bottom), palette[i])

		count := fmt.Sprintf("%d", cl.Count)
		drawText(img, count, x0+(barWidth-textWidth(count))/2, bottom-barHeight-4, color.Black)
		label := truncate(cl.Name, slot)
		drawText(img, label, x0+(barWidth-textWidth(label))/2, bottom+18, color.Black)
	}
	drawText(img, "Number of files", 4, top-8, color.Black)
	return img
}

// Pie draws the class shares as circle sectors with a legend
func (c *Charts) Pie(report *Report, palette []color.NRGBA) *image.NRGBA {
	w, h := c.config.Width, c.config.Height
	img := imaging.New(w, h, color.White)
	title := fmt.Sprintf("%s class distribution", report.Name)
	drawText(img, title, (w-textWidth(title))/2, 24, color.Black)
	if report.Total == 0 {
		return img
	}

	radius := min(w*2/3, h-60) / 2
	cx, cy := radius+30, h/2+10

	// cumulative sector ends, starting at 140 degrees counter-clockwise
	start := 140.0 * math.Pi / 180
	ends := make([]float64, len(report.Classes))
	acc := 0.0
	for i, cl := range report.Classes {
		acc += cl.Share * 2 * math.Pi
		ends[i] = acc
	}

	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			dx, dy := float64(x-cx), float64(cy-y)
			if dx*dx+dy*dy > float64(radius*radius) {
				continue
			}
			angle := math.Mod(math.Atan2(dy, dx)-start+4*math.Pi, 2*math.Pi)
			for i, end := range ends {
				if angle <= end {
					img.SetNRGBA(x, y, palette[i])
					break
				}
			}
		}
	}

	lx, ly := cx+radius+30, cy-radius+10
	for i, cl := range report.Classes {
		fillRect(img, image.Rect(lx, ly-10, lx+12, ly+2), palette[i])
		drawText(img, fmt.Sprintf("%s %.1f%%", cl.Name, cl.Share*100), lx+18, ly, color.Black)
		ly += 20
	}
	return img
}

func drawAxis(img *image.NRGBA, left, top, bottom, right int) {
	fillRect(img, image.Rect(left-1, top, left, bottom+1), color.NRGBA{0, 0, 0, 255})
	fillRect(img, image.Rect(left-1, bottom, right, bottom+1), color.NRGBA{0, 0, 0, 255})
}

func fillRect(img *image.NRGBA, rect image.Rectangle, c color.NRGBA) {
	rect = rect.Intersect(img.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

func drawText(img *image.NRGBA, s string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

// truncate shortens s so it fits in width pixels
func truncate(s string, width int) string {
	for len(s) > 1 && textWidth(s) > width {
		s = s[:len(s)-1]
	}
	return s
}
