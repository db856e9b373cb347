package client

import (
	"context"

	"github.com/menta2k/leaf-analyzer/pkg/types"
)

// VisionClient is a multimodal backend. ClassifyImage expects a JSON answer;
// SimpleQuery returns the model's reply as plain text.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	ClassifyImage(ctx context.Context, model, prompt, imgB64 string) (*types.Prediction, error)
}
