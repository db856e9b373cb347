package vision

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// ShapeMetrics holds size and shape measurements of the masked object
type ShapeMetrics struct {
	Area        int
	Perimeter   int
	BoundingBox image.Rectangle
	Centroid    image.Point
	HullArea    float64
	Solidity    float64
	Width       int
	Height      int
}

var (
	outlineColor  = color.NRGBA{255, 0, 255, 255}
	hullColor     = color.NRGBA{0, 170, 255, 255}
	boxColor      = color.NRGBA{255, 204, 0, 255}
	centroidColor = color.NRGBA{255, 0, 0, 255}
)

// MeasureShape computes metrics for the set pixels of mask. Pixels are
// treated as unit squares, so a full-frame mask has hull area w*h.
func MeasureShape(mask *image.Gray) ShapeMetrics {
	var (
		m      ShapeMetrics
		sumX   int
		sumY   int
		bbox   image.Rectangle
		corner []image.Point
	)

	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.GrayAt(x, y).Y == Off {
				continue
			}
			m.Area++
			sumX += x
			sumY += y
			bbox = bbox.Union(image.Rect(x, y, x+1, y+1))
			if isBoundary(mask, x, y) {
				m.Perimeter++
				corner = append(corner,
					image.Pt(x, y), image.Pt(x+1, y),
					image.Pt(x, y+1), image.Pt(x+1, y+1))
			}
		}
	}
	if m.Area == 0 {
		return m
	}

	m.BoundingBox = bbox
	m.Width = bbox.Dx()
	m.Height = bbox.Dy()
	m.Centroid = image.Pt(sumX/m.Area, sumY/m.Area)
	m.HullArea = polygonArea(convexHull(corner))
	if m.HullArea > 0 {
		m.Solidity = math.Min(1, float64(m.Area)/m.HullArea)
	}
	return m
}

// AnalyzeShape measures the object in mask and returns a copy of img
// annotated with its outline, convex hull, bounding box and centroid.
func AnalyzeShape(img image.Image, mask *image.Gray) (*image.NRGBA, ShapeMetrics) {
	metrics := MeasureShape(mask)
	out := imaging.Clone(img)
	if metrics.Area == 0 {
		return out, metrics
	}

	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.GrayAt(x, y).Y != Off && isBoundary(mask, x, y) {
				out.SetNRGBA(x, y, outlineColor)
			}
		}
	}

	hull := convexHull(boundaryPoints(mask))
	for i := range hull {
		drawLine(out, hull[i], hull[(i+1)%len(hull)], hullColor)
	}

	stroke := int(math.Max(1, 0.004*float64(minInt(b.Dx(), b.Dy()))))
	cross := int(math.Max(4, 0.01*float64(minInt(b.Dx(), b.Dy()))))
	drawBox(out, metrics.BoundingBox, boxColor, stroke)
	drawCross(out, metrics.Centroid, cross, centroidColor)
	return out, metrics
}

// isBoundary reports whether a set pixel touches an unset 4-neighbor or
// the image edge.
func isBoundary(mask *image.Gray, x, y int) bool {
	b := mask.Bounds()
	for _, d := range [4]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		n := image.Pt(x+d.X, y+d.Y)
		if !n.In(b) || mask.GrayAt(n.X, n.Y).Y == Off {
			return true
		}
	}
	return false
}

func boundaryPoints(mask *image.Gray) []image.Point {
	var points []image.Point
	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.GrayAt(x, y).Y != Off && isBoundary(mask, x, y) {
				points = append(points, image.Pt(x, y))
			}
		}
	}
	return points
}

// convexHull returns the hull of points in counter-clockwise order using
// Andrew's monotone chain.
func convexHull(points []image.Point) []image.Point {
	if len(points) < 3 {
		return points
	}
	pts := append([]image.Point(nil), points...)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	cross := func(o, a, b image.Point) int {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	hull := make([]image.Point, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// polygonArea applies the shoelace formula
func polygonArea(poly []image.Point) float64 {
	if len(poly) < 3 {
		return 0
	}
	sum := 0
	for i := range poly {
		j := (i + 1) % len(poly)
		sum += poly[i].X*poly[j].Y - poly[j].X*poly[i].Y
	}
	return math.Abs(float64(sum)) / 2
}
