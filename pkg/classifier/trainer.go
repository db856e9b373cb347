package classifier

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/phuslu/log"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/leaf-analyzer/internal/utils"
	"github.com/menta2k/leaf-analyzer/pkg/types"
)

// Trainer turns a split dataset into a model handle
type Trainer interface {
	Train(datasetRoot string) (*types.Model, error)
}

// TrainerConfig holds configuration for the manifest trainer
type TrainerConfig struct {
	ModelPath    string
	Backend      string
	BackendURL   string
	BackendModel string
	Splits       []string
}

// ManifestTrainer records the dataset classes and split sizes in a YAML
// manifest. The vision backend it names does the actual recognition.
type ManifestTrainer struct {
	config TrainerConfig
	now    func() time.Time
}

// NewManifestTrainer creates a ManifestTrainer
func NewManifestTrainer(config TrainerConfig) *ManifestTrainer {
	if len(config.Splits) == 0 {
		config.Splits = []string{"train", "val", "test"}
	}
	return &ManifestTrainer{config: config, now: time.Now}
}

// Train reads the class folders of {datasetRoot}/train and the per-split
// counts, then writes the manifest to the configured model path.
func (t *ManifestTrainer) Train(datasetRoot string) (*types.Model, error) {
	trainDir := filepath.Join(datasetRoot, t.config.Splits[0])
	classes, err := classDirs(trainDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read training split: %w", err)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("no class folders in %s", trainDir)
	}

	root, err := filepath.Abs(datasetRoot)
	if err != nil {
		return nil, err
	}

	model := &types.Model{
		Name:         utils.Stem(t.config.ModelPath),
		Backend:      t.config.Backend,
		BackendURL:   t.config.BackendURL,
		BackendModel: t.config.BackendModel,
		DatasetDir:   root,
		Classes:      classes,
		Splits:       map[string]types.SplitCounts{},
		CreatedAt:    t.now().UTC(),
	}

	for _, split := range t.config.Splits {
		counts := types.SplitCounts{}
		for _, class := range classes {
			n, err := countImages(filepath.Join(datasetRoot, split, class))
			if err != nil {
				return nil, err
			}
			counts[class] = n
		}
		model.Splits[split] = counts
	}

	if err := SaveModel(model, t.config.ModelPath); err != nil {
		return nil, err
	}
	log.Info().Str("path", t.config.ModelPath).Int("classes", len(classes)).Msg("model manifest written")
	return model, nil
}

// SaveModel writes model as YAML to path
func SaveModel(model *types.Model, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
	}

	data, err := yaml.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

// LoadModel reads a manifest written by SaveModel
func LoadModel(path string) (*types.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var model types.Model
	if err := yaml.Unmarshal(data, &model); err != nil {
		return nil, fmt.Errorf("failed to parse model file: %w", err)
	}
	if len(model.Classes) == 0 {
		return nil, fmt.Errorf("model file %s lists no classes", path)
	}
	return &model, nil
}

func classDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func countImages(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && utils.IsImageFile(entry.Name()) {
			n++
		}
	}
	return n, nil
}
