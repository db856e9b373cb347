package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/leaf-analyzer/pkg/types"
)

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)\s//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// fallback is returned when the model answer carries no usable JSON
func fallback(description string) *types.Prediction {
	return &types.Prediction{
		Label:       "unknown",
		Confidence:  0,
		Description: description,
		Fallback:    true,
	}
}

// ParsePrediction parses a model answer into a prediction. Answers that are
// not JSON yield a fallback prediction instead of an error.
func ParsePrediction(raw string) (*types.Prediction, error) {
	raw = SanitizeModelJSON(raw)

	if !strings.HasPrefix(raw, "{") {
		return fallback("Model returned non-JSON response"), nil
	}

	var result types.Prediction
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return fallback("Failed to parse model response"), nil
	}

	result.Label = strings.TrimSpace(result.Label)
	result.RawLabel = result.Label
	if result.Label == "" {
		return fallback("Model returned an empty label"), nil
	}
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	return &result, nil
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
