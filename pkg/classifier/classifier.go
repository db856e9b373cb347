// Package classifier labels leaf images with a vision model restricted to
// the classes of a trained dataset.
package classifier

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/phuslu/log"

	"github.com/menta2k/leaf-analyzer/pkg/client"
	"github.com/menta2k/leaf-analyzer/pkg/imageio"
	"github.com/menta2k/leaf-analyzer/pkg/llamacpp"
	"github.com/menta2k/leaf-analyzer/pkg/ollama"
	"github.com/menta2k/leaf-analyzer/pkg/types"
)

// Backend names
const (
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// PromptTemplate is filled with the comma separated class labels
const PromptTemplate = `You are a plant leaf disease classifier.

Look at the leaf in the image and pick exactly one label from this list:
%s

Return JSON only:
{"label": "one label from the list", "confidence": 0.0, "description": "short neutral sentence (<= 20 words)"}

HARD RULES
- The label must be copied verbatim from the list.
- confidence is a number in [0,1].
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// BuildPrompt returns the classification prompt for the given labels
func BuildPrompt(classes []string) string {
	return fmt.Sprintf(PromptTemplate, strings.Join(classes, ", "))
}

// NewBackend creates the vision client named by backend
func NewBackend(backend, url string) (client.VisionClient, error) {
	switch backend {
	case BackendOllama, "":
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case BackendLlamaCpp:
		c, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", backend)
	}
}

// Config holds configuration for the classifier
type Config struct {
	SendFormat  string
	SendMaxSide int
}

// Classifier asks a vision backend which class an image belongs to
type Classifier struct {
	client client.VisionClient
	codec  *imageio.Codec
	config Config
}

// New creates a Classifier sending JPEG images of at most 1536px
func New(c client.VisionClient) *Classifier {
	return NewWithConfig(c, imageio.New(), Config{SendFormat: "jpg", SendMaxSide: 1536})
}

// NewWithConfig creates a Classifier with custom configuration
func NewWithConfig(c client.VisionClient, codec *imageio.Codec, config Config) *Classifier {
	return &Classifier{client: c, codec: codec, config: config}
}

// DescribePrompt asks for a free-form description when no label came back
const DescribePrompt = "Describe the leaf in this image in one short neutral sentence (<= 20 words). Plain text only."

// Classify labels img with one of model's classes. The backend answer is
// snapped to the closest known class; an answer with no usable label
// comes back as a fallback prediction whose description is asked for
// separately.
func (c *Classifier) Classify(ctx context.Context, model *types.Model, img image.Image) (*types.Prediction, error) {
	imgB64, err := c.encode(model, img)
	if err != nil {
		return nil, err
	}

	prediction, err := c.classify(ctx, model, imgB64)
	if err != nil {
		return nil, err
	}

	if prediction.Fallback {
		log.Warn().Str("reason", prediction.Description).Msg("classifier returned no usable label")
		text, err := c.client.SimpleQuery(ctx, model.BackendModel, DescribePrompt, imgB64)
		if err != nil {
			log.Warn().Err(err).Msg("describe query failed")
		} else if text = strings.TrimSpace(text); text != "" {
			prediction.Description = text
		}
	}
	return prediction, nil
}

func (c *Classifier) encode(model *types.Model, img image.Image) (string, error) {
	if model == nil || len(model.Classes) == 0 {
		return "", fmt.Errorf("model has no classes")
	}
	imgB64, err := c.codec.EncodeBase64(img, c.config.SendFormat, c.config.SendMaxSide)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return imgB64, nil
}

func (c *Classifier) classify(ctx context.Context, model *types.Model, imgB64 string) (*types.Prediction, error) {
	prediction, err := c.client.ClassifyImage(ctx, model.BackendModel, BuildPrompt(model.Classes), imgB64)
	if err != nil {
		return nil, err
	}
	if prediction.Fallback {
		return prediction, nil
	}

	prediction.Label = SnapLabel(prediction.RawLabel, model.Classes)
	if prediction.Label != prediction.RawLabel {
		log.Debug().Str("raw", prediction.RawLabel).Str("label", prediction.Label).Msg("label snapped to known class")
	}
	return prediction, nil
}

// SnapLabel returns the class closest to label: an exact match ignoring
// case and separators, then a containment match, then the smallest edit
// distance.
func SnapLabel(label string, classes []string) string {
	if len(classes) == 0 {
		return label
	}

	key := normalizeLabel(label)
	for _, c := range classes {
		if normalizeLabel(c) == key {
			return c
		}
	}
	for _, c := range classes {
		ck := normalizeLabel(c)
		if ck != "" && key != "" && (strings.Contains(key, ck) || strings.Contains(ck, key)) {
			return c
		}
	}

	best, bestDist := classes[0], -1
	for _, c := range classes {
		d := levenshtein(key, normalizeLabel(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// normalizeLabel lowercases and drops separators so "Apple_scab" and
// "apple scab" compare equal.
func normalizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch r {
		case ' ', '_', '-', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
