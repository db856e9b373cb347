// Package vision implements the leaf transform chain: background removal and
// thresholding, masking, region of interest, shape analysis and
// pseudolandmarks.
package vision

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/menta2k/leaf-analyzer/internal/utils"
	"github.com/menta2k/leaf-analyzer/pkg/imageio"
)

// Artifact tags, in chain order
const (
	TagBlur     = "gauss_blur"
	TagMask     = "mask"
	TagROI      = "roi"
	TagAnalyze  = "analyze"
	TagLandmark = "plm"
)

// Tags returns the artifact tags in the order they are produced
func Tags() []string {
	return []string{TagBlur, TagMask, TagROI, TagAnalyze, TagLandmark}
}

// Config holds the transform chain parameters
type Config struct {
	Threshold      uint8
	BlurKernel     int
	MinChroma      float64
	ROIType        string
	LandmarkBins   int
	LandmarkRadius int
}

// DefaultConfig returns the standard chain parameters
func DefaultConfig() Config {
	return Config{
		Threshold:      35,
		BlurKernel:     5,
		MinChroma:      0.08,
		ROIType:        ROIPartial,
		LandmarkBins:   20,
		LandmarkRadius: 5,
	}
}

// Chain runs the five transform stages over one image
type Chain struct {
	config Config
	codec  *imageio.Codec
}

// ArtifactSet holds every stage output for one input image
type ArtifactSet struct {
	Blurred    *image.Gray
	Masked     *image.NRGBA
	ROI        *image.NRGBA
	ROIMask    *image.Gray
	Region     Region
	Analyzed   *image.NRGBA
	Shape      ShapeMetrics
	Landmarked *image.NRGBA
	Landmarks  Landmarks
}

// Images returns the persisted artifacts keyed by tag
func (s *ArtifactSet) Images() map[string]image.Image {
	return map[string]image.Image{
		TagBlur:     s.Blurred,
		TagMask:     s.Masked,
		TagROI:      s.ROI,
		TagAnalyze:  s.Analyzed,
		TagLandmark: s.Landmarked,
	}
}

// New creates a Chain with default parameters writing JPG artifacts
func New() *Chain {
	return NewWithConfig(DefaultConfig(), imageio.New())
}

// NewWithConfig creates a Chain with custom configuration
func NewWithConfig(config Config, codec *imageio.Codec) *Chain {
	if codec == nil {
		codec = imageio.New()
	}
	return &Chain{config: config, codec: codec}
}

// Process runs blur, mask, ROI, shape analysis and landmarks in that order.
// Each stage consumes the previous stage's output plus the original image.
func (c *Chain) Process(img image.Image) (*ArtifactSet, error) {
	src := imaging.Clone(img)
	if src.Bounds().Empty() {
		return nil, fmt.Errorf("failed to process image: empty bounds")
	}

	set := &ArtifactSet{}
	set.Blurred = c.Blur(src)
	set.Masked = ApplyMask(src, set.Blurred)

	roi, roiMask, region, err := c.ExtractROI(src, set.Masked)
	if err != nil {
		return nil, fmt.Errorf("failed to extract roi: %w", err)
	}
	set.ROI, set.ROIMask, set.Region = roi, roiMask, region

	set.Analyzed, set.Shape = AnalyzeShape(src, set.ROIMask)
	set.Landmarked, set.Landmarks = DrawLandmarks(src, set.ROIMask, c.config.LandmarkBins, c.config.LandmarkRadius)
	return set, nil
}

// Blur removes the background, thresholds the lightness channel and smooths
// the resulting binary mask.
func (c *Chain) Blur(img image.Image) *image.Gray {
	return GaussianBlur(c.objectMask(img), c.config.BlurKernel)
}

// ExtractROI builds a full-frame region over masked, filters the object mask
// of masked to it and paints the kept pixels green on a copy of img.
func (c *Chain) ExtractROI(img image.Image, masked *image.NRGBA) (*image.NRGBA, *image.Gray, Region, error) {
	region := FullFrame(masked.Bounds())
	roiMask, err := FilterROI(c.objectMask(masked), region, c.config.ROIType)
	if err != nil {
		return nil, nil, region, err
	}
	out := imaging.Clone(img)
	recolor(out, roiMask, Highlight)
	return out, roiMask, region, nil
}

func (c *Chain) objectMask(img image.Image) *image.Gray {
	fg, _ := RemoveBackground(img, c.config.MinChroma)
	return BinaryThreshold(GrayLab(fg), c.config.Threshold, true)
}

// SaveArtifacts writes {stem}_{tag}.{format} for every artifact into dir and
// returns the written paths in tag order.
func (c *Chain) SaveArtifacts(set *ArtifactSet, stem, dir string) ([]string, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	images := set.Images()
	paths := make([]string, 0, len(images))
	for _, tag := range Tags() {
		path, err := c.codec.SaveVariant(images[tag], dir, stem, tag)
		if err != nil {
			return paths, fmt.Errorf("failed to save %s artifact: %w", tag, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
