package vision

import (
	"fmt"
	"image"
	"image/color"
)

// ROI filter policies
const (
	// ROIPartial keeps every object that overlaps the region, including the
	// parts that fall outside of it.
	ROIPartial = "partial"
	// ROICutTo keeps only the object pixels inside the region.
	ROICutTo = "cutto"
)

// Highlight is the color ROI pixels are painted with
var Highlight = color.NRGBA{0, 255, 0, 255}

// Region represents a rectangular region of interest
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// FullFrame returns the region covering the whole of bounds
func FullFrame(bounds image.Rectangle) Region {
	return Region{X: bounds.Min.X, Y: bounds.Min.Y, Width: bounds.Dx(), Height: bounds.Dy()}
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Rect returns the region as an image rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// FilterROI keeps the objects of mask selected by region under the given
// policy. Objects are 8-connected components of set pixels.
func FilterROI(mask *image.Gray, region Region, policy string) (*image.Gray, error) {
	rect := region.Rect()
	b := mask.Bounds()
	out := image.NewGray(b)

	switch policy {
	case ROICutTo:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				if mask.GrayAt(x, y).Y != Off && image.Pt(x, y).In(rect) {
					out.SetGray(x, y, color.Gray{Y: On})
				}
			}
		}
		return out, nil
	case ROIPartial, "":
		for _, component := range components(mask) {
			if !overlaps(component, rect) {
				continue
			}
			for _, p := range component {
				out.SetGray(p.X, p.Y, color.Gray{Y: On})
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown roi type: %s", policy)
	}
}

func overlaps(points []image.Point, rect image.Rectangle) bool {
	for _, p := range points {
		if p.In(rect) {
			return true
		}
	}
	return false
}

// components labels the 8-connected groups of set pixels in mask
func components(mask *image.Gray) [][]image.Point {
	b := mask.Bounds()
	seen := make([]bool, b.Dx()*b.Dy())
	index := func(p image.Point) int {
		return (p.Y-b.Min.Y)*b.Dx() + (p.X - b.Min.X)
	}

	var groups [][]image.Point
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			start := image.Pt(x, y)
			if seen[index(start)] || mask.GrayAt(x, y).Y == Off {
				continue
			}

			seen[index(start)] = true
			group := []image.Point{start}
			for i := 0; i < len(group); i++ {
				p := group[i]
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						n := image.Pt(p.X+dx, p.Y+dy)
						if !n.In(b) || seen[index(n)] || mask.GrayAt(n.X, n.Y).Y == Off {
							continue
						}
						seen[index(n)] = true
						group = append(group, n)
					}
				}
			}
			groups = append(groups, group)
		}
	}
	return groups
}
