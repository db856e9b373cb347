package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Dataset      DatasetConfig      `yaml:"dataset" json:"dataset"`
	Split        SplitConfig        `yaml:"split" json:"split"`
	Augment      AugmentConfig      `yaml:"augment" json:"augment"`
	Vision       VisionConfig       `yaml:"vision" json:"vision"`
	Transform    TransformConfig    `yaml:"transform" json:"transform"`
	Output       OutputConfig       `yaml:"output" json:"output"`
	Classifier   ClassifierConfig   `yaml:"classifier" json:"classifier"`
	Distribution DistributionConfig `yaml:"distribution" json:"distribution"`
	Prompt       PromptConfig       `yaml:"prompt" json:"prompt"`
}

// DatasetConfig holds configuration for the balanced pool
type DatasetConfig struct {
	Dir   string `yaml:"dir" json:"dir"`
	Order string `yaml:"order" json:"order"`
}

// SplitConfig holds the train/val/test ratios and the split root
type SplitConfig struct {
	Dir   string  `yaml:"dir" json:"dir"`
	Train float64 `yaml:"train" json:"train"`
	Val   float64 `yaml:"val" json:"val"`
	Test  float64 `yaml:"test" json:"test"`
}

// AugmentConfig holds the parameters of the single-image augmentations
type AugmentConfig struct {
	Dir            string  `yaml:"dir" json:"dir"`
	RotateAngle    float64 `yaml:"rotate_angle" json:"rotate_angle"`
	ShearFactor    float64 `yaml:"shear_factor" json:"shear_factor"`
	CropFraction   float64 `yaml:"crop_fraction" json:"crop_fraction"`
	BlurRadius     float64 `yaml:"blur_radius" json:"blur_radius"`
	ContrastFactor float64 `yaml:"contrast_factor" json:"contrast_factor"`
}

// VisionConfig holds configuration for the vision transform chain
type VisionConfig struct {
	Threshold      uint8   `yaml:"threshold" json:"threshold"`
	BlurKernel     int     `yaml:"blur_kernel" json:"blur_kernel"`
	MinChroma      float64 `yaml:"min_chroma" json:"min_chroma"`
	ROIType        string  `yaml:"roi_type" json:"roi_type"`
	LandmarkBins   int     `yaml:"landmark_bins" json:"landmark_bins"`
	LandmarkRadius int     `yaml:"landmark_radius" json:"landmark_radius"`
}

// TransformConfig holds configuration for the transformation tool
type TransformConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format  string `yaml:"format" json:"format"`
	Quality int    `yaml:"quality" json:"quality"`
}

// ClassifierConfig holds configuration for the external classifier
type ClassifierConfig struct {
	ModelPath string `yaml:"model_path" json:"model_path"`
	Backend   string `yaml:"backend" json:"backend"`
	URL       string `yaml:"url" json:"url"`
	Model     string `yaml:"model" json:"model"`
}

// DistributionConfig holds configuration for the distribution report
type DistributionConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// PromptConfig holds configuration for interactive confirmations
type PromptConfig struct {
	MaxRetries int  `yaml:"max_retries" json:"max_retries"`
	AssumeYes  bool `yaml:"assume_yes" json:"assume_yes"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Dir:   "../images_dataset",
			Order: "rounds",
		},
		Split: SplitConfig{
			Dir:   "",
			Train: 0.70,
			Val:   0.15,
			Test:  0.15,
		},
		Augment: AugmentConfig{
			Dir:            "../augmented_directory",
			RotateAngle:    10,
			ShearFactor:    0.2,
			CropFraction:   0.8,
			BlurRadius:     2,
			ContrastFactor: 2,
		},
		Vision: VisionConfig{
			Threshold:      35,
			BlurKernel:     5,
			MinChroma:      0.08,
			ROIType:        "partial",
			LandmarkBins:   20,
			LandmarkRadius: 5,
		},
		Transform: TransformConfig{
			Dir: "../transformed_images",
		},
		Output: OutputConfig{
			Format:  "JPG",
			Quality: 90,
		},
		Classifier: ClassifierConfig{
			ModelPath: "trained_model.yaml",
			Backend:   "ollama",
			URL:       "",
			Model:     "openbmb/minicpm-v4.5",
		},
		Distribution: DistributionConfig{
			Dir: "../images_analysis",
		},
		Prompt: PromptConfig{
			MaxRetries: 2,
		},
	}
}

// SplitDir returns the root of the train/val/test trees
func (c *Config) SplitDir() string {
	if c.Split.Dir == "" {
		return c.Dataset.Dir
	}
	return c.Split.Dir
}

// LoadFromFile loads configuration from a YAML or JSON file. Missing keys
// keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Dataset.Dir == "" {
		return fmt.Errorf("dataset.dir cannot be empty")
	}

	switch c.Dataset.Order {
	case "rounds", "images":
	default:
		return fmt.Errorf("dataset.order must be one of rounds, images")
	}

	for name, r := range map[string]float64{"train": c.Split.Train, "val": c.Split.Val, "test": c.Split.Test} {
		if r < 0 || r > 1 {
			return fmt.Errorf("split.%s must be between 0 and 1", name)
		}
	}
	if sum := c.Split.Train + c.Split.Val + c.Split.Test; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("split ratios must sum to 1, got %.3f", sum)
	}

	if c.Augment.CropFraction <= 0 || c.Augment.CropFraction > 1 {
		return fmt.Errorf("augment.crop_fraction must be in (0, 1]")
	}

	if c.Augment.BlurRadius < 0 {
		return fmt.Errorf("augment.blur_radius must not be negative")
	}

	if c.Vision.BlurKernel < 1 || c.Vision.BlurKernel%2 == 0 {
		return fmt.Errorf("vision.blur_kernel must be a positive odd number")
	}

	switch c.Vision.ROIType {
	case "partial", "cutto":
	default:
		return fmt.Errorf("vision.roi_type must be one of partial, cutto")
	}

	if c.Vision.LandmarkBins < 1 {
		return fmt.Errorf("vision.landmark_bins must be positive")
	}

	switch strings.ToLower(c.Output.Format) {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("output.format must be one of jpg, png, webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	switch c.Classifier.Backend {
	case "ollama", "llamacpp":
	default:
		return fmt.Errorf("classifier.backend must be one of ollama, llamacpp")
	}

	if c.Prompt.MaxRetries < 1 {
		return fmt.Errorf("prompt.max_retries must be positive")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "leaf-analyzer", "config.yaml")
}
