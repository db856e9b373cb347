package types

import "time"

// SplitCounts maps a class label to its number of images in one split
type SplitCounts map[string]int

// Model is the manifest written after training. It names the classes the
// classifier may answer with and the backend that answers.
type Model struct {
	Name         string                 `yaml:"name" json:"name"`
	Backend      string                 `yaml:"backend" json:"backend"`
	BackendURL   string                 `yaml:"backend_url,omitempty" json:"backend_url,omitempty"`
	BackendModel string                 `yaml:"backend_model" json:"backend_model"`
	DatasetDir   string                 `yaml:"dataset_dir" json:"dataset_dir"`
	Classes      []string               `yaml:"classes" json:"classes"`
	Splits       map[string]SplitCounts `yaml:"splits" json:"splits"`
	CreatedAt    time.Time              `yaml:"created_at" json:"created_at"`
}

// HasClass reports whether label is one of the model's classes
func (m *Model) HasClass(label string) bool {
	for _, c := range m.Classes {
		if c == label {
			return true
		}
	}
	return false
}

// Prediction is the classifier's answer for one image
type Prediction struct {
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
	// RawLabel is the label as returned by the backend before it was matched
	// against the model classes.
	RawLabel string `json:"-"`
	Fallback bool   `json:"-"`
}

// PredictionResult bundles a prediction with the files written to explain it
type PredictionResult struct {
	Prediction *Prediction
	Image      string
	Overlay    string
	Artifacts  []string
}
