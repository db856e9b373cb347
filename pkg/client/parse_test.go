package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", `{"label":"Apple_rust"}`, `{"label":"Apple_rust"}`},
		{"fenced", "```json\n{\"label\":\"Apple_rust\"}\n```", `{"label":"Apple_rust"}`},
		{"trailing comma", `{"label":"a","confidence":0.5,}`, `{"label":"a","confidence":0.5}`},
		{"prose around", "Sure! {\"label\":\"a\"} Hope this helps.", `{"label":"a"}`},
		{"block comment", `{/* note */"label":"a"}`, `{"label":"a"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeModelJSON(tt.raw))
		})
	}
}

func TestParsePrediction(t *testing.T) {
	p, err := ParsePrediction("```json\n{\"label\": \" Grape_Esca \", \"confidence\": 0.92, \"description\": \"dark stripes\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Grape_Esca", p.Label)
	assert.Equal(t, "Grape_Esca", p.RawLabel)
	assert.InDelta(t, 0.92, p.Confidence, 1e-9)
	assert.Equal(t, "dark stripes", p.Description)
	assert.False(t, p.Fallback)
}

func TestParsePredictionClampsConfidence(t *testing.T) {
	p, err := ParsePrediction(`{"label":"a","confidence":7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Confidence)

	p, err = ParsePrediction(`{"label":"a","confidence":-1}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, p.Confidence)
}

func TestParsePredictionFallback(t *testing.T) {
	for _, raw := range []string{
		"I think this is an apple leaf.",
		`{"label": }`,
		`{"label": "", "confidence": 0.4}`,
	} {
		p, err := ParsePrediction(raw)
		require.NoError(t, err, raw)
		assert.True(t, p.Fallback, raw)
		assert.Equal(t, "unknown", p.Label, raw)
		assert.Zero(t, p.Confidence, raw)
	}
}
