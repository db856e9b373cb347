package vision

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Landmark colors
var (
	TopColor     = color.NRGBA{0, 0, 255, 255}
	BottomColor  = color.NRGBA{255, 0, 255, 255}
	CenterVColor = color.NRGBA{255, 0, 0, 255}
)

// Landmarks holds the x-axis pseudolandmarks of an object
type Landmarks struct {
	Top     []image.Point
	Bottom  []image.Point
	CenterV []image.Point
}

// XAxisPseudolandmarks slices the object's horizontal extent into bins
// columns. For each non-empty column it reports the topmost and
// bottommost object points and the vertical midpoint between them.
func XAxisPseudolandmarks(mask *image.Gray, bins int) Landmarks {
	var lm Landmarks
	bbox := MeasureShape(mask).BoundingBox
	if bbox.Empty() || bins < 1 {
		return lm
	}

	width := bbox.Dx()
	for i := 0; i < bins; i++ {
		x0 := bbox.Min.X + i*width/bins
		x1 := bbox.Min.X + (i+1)*width/bins
		if x1 <= x0 {
			continue
		}

		top, bottom := bbox.Max.Y, bbox.Min.Y-1
		var topX, topN, botX, botN int
		for x := x0; x < x1; x++ {
			for y := bbox.Min.Y; y < bbox.Max.Y; y++ {
				if mask.GrayAt(x, y).Y == Off {
					continue
				}
				switch {
				case y < top:
					top, topX, topN = y, x, 1
				case y == top:
					topX += x
					topN++
				}
				switch {
				case y > bottom:
					bottom, botX, botN = y, x, 1
				case y == bottom:
					botX += x
					botN++
				}
			}
		}
		if topN == 0 {
			continue
		}

		lm.Top = append(lm.Top, image.Pt(topX/topN, top))
		lm.Bottom = append(lm.Bottom, image.Pt(botX/botN, bottom))
		lm.CenterV = append(lm.CenterV, image.Pt((x0+x1-1)/2, (top+bottom)/2))
	}
	return lm
}

// DrawLandmarks overlays the pseudolandmarks of mask on a copy of img as
// filled circles.
func DrawLandmarks(img image.Image, mask *image.Gray, bins, radius int) (*image.NRGBA, Landmarks) {
	lm := XAxisPseudolandmarks(mask, bins)
	out := imaging.Clone(img)
	for _, set := range []struct {
		points []image.Point
		color  color.NRGBA
	}{
		{lm.Top, TopColor},
		{lm.Bottom, BottomColor},
		{lm.CenterV, CenterVColor},
	} {
		for _, p := range set.points {
			fillCircle(out, p, radius, set.color)
		}
	}
	return out, lm
}
