// Package leafanalyzer prepares leaf disease image datasets and runs the
// leaf transform chain.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		leafanalyzer "github.com/menta2k/leaf-analyzer"
//		"github.com/menta2k/leaf-analyzer/internal/config"
//	)
//
//	func main() {
//		analyzer := leafanalyzer.NewWithConfig(config.Default())
//
//		// Write the five transform artifacts of one leaf
//		report, err := analyzer.Transform("leaf.JPG", "")
//		if err != nil {
//			log.Fatal(leafanalyzer.UserMessage(err))
//		}
//		fmt.Println("artifacts saved in", report.Destination)
//	}
//
// The package ties together:
//
// 1. Catalog (pkg/catalog): validates dataset folders and groups images by class
// 2. Balancer (pkg/balancer): upsamples every class to the majority count
// 3. Splitter (pkg/splitter): partitions the balanced pool into train/val/test
// 4. Vision (pkg/vision): blur, mask, ROI, shape analysis and pseudolandmarks
// 5. Classifier (pkg/classifier): model manifest, vision-model prediction and evaluation
package leafanalyzer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math/rand/v2"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/phuslu/log"

	"github.com/menta2k/leaf-analyzer/internal/config"
	"github.com/menta2k/leaf-analyzer/internal/utils"
	"github.com/menta2k/leaf-analyzer/pkg/augment"
	"github.com/menta2k/leaf-analyzer/pkg/balancer"
	"github.com/menta2k/leaf-analyzer/pkg/catalog"
	"github.com/menta2k/leaf-analyzer/pkg/classifier"
	"github.com/menta2k/leaf-analyzer/pkg/client"
	"github.com/menta2k/leaf-analyzer/pkg/distribution"
	"github.com/menta2k/leaf-analyzer/pkg/imageio"
	"github.com/menta2k/leaf-analyzer/pkg/prompt"
	"github.com/menta2k/leaf-analyzer/pkg/splitter"
	"github.com/menta2k/leaf-analyzer/pkg/types"
	"github.com/menta2k/leaf-analyzer/pkg/vision"
)

// Version of the leaf analyzer
const Version = "1.0.0"

// ErrDeclined is returned when the user refuses a destructive step. It is a
// normal early exit.
var ErrDeclined = prompt.ErrDeclined

// Analyzer runs the dataset and transform pipelines
type Analyzer struct {
	config    *config.Config
	codec     *imageio.Codec
	augmenter *augment.Augmenter
	chain     *vision.Chain
	confirmer balancer.Confirmer
	progress  io.Writer
	rng       *rand.Rand
	trainer   classifier.Trainer
	plotter   distribution.Plotter
	client    client.VisionClient
}

// Option customizes an Analyzer
type Option func(*Analyzer)

// WithConfirmer replaces the terminal prompt used before destructive steps
func WithConfirmer(c balancer.Confirmer) Option {
	return func(a *Analyzer) { a.confirmer = c }
}

// WithProgress shows per-class progress bars on w while balancing
func WithProgress(w io.Writer) Option {
	return func(a *Analyzer) { a.progress = w }
}

// WithRand sets the random source used for crop placement and split shuffling
func WithRand(rng *rand.Rand) Option {
	return func(a *Analyzer) { a.rng = rng }
}

// WithTrainer replaces the manifest trainer
func WithTrainer(t classifier.Trainer) Option {
	return func(a *Analyzer) { a.trainer = t }
}

// WithPlotter replaces the chart renderer
func WithPlotter(p distribution.Plotter) Option {
	return func(a *Analyzer) { a.plotter = p }
}

// WithClient sets the vision backend used by Predict and Evaluate
func WithClient(c client.VisionClient) Option {
	return func(a *Analyzer) { a.client = c }
}

// New creates an Analyzer with default configuration
func New() *Analyzer {
	return NewWithConfig(config.Default())
}

// NewWithConfig creates an Analyzer with custom configuration
func NewWithConfig(cfg *config.Config, opts ...Option) *Analyzer {
	a := &Analyzer{config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	a.codec = imageio.NewWithConfig(imageio.Config{
		Format:  cfg.Output.Format,
		Quality: cfg.Output.Quality,
	})
	a.augmenter = augment.NewWithConfig(augment.Config{
		RotateAngle:    cfg.Augment.RotateAngle,
		ShearFactor:    cfg.Augment.ShearFactor,
		CropFraction:   cfg.Augment.CropFraction,
		BlurRadius:     cfg.Augment.BlurRadius,
		ContrastFactor: cfg.Augment.ContrastFactor,
	}, a.rng)
	a.chain = vision.NewWithConfig(vision.Config{
		Threshold:      cfg.Vision.Threshold,
		BlurKernel:     cfg.Vision.BlurKernel,
		MinChroma:      cfg.Vision.MinChroma,
		ROIType:        cfg.Vision.ROIType,
		LandmarkBins:   cfg.Vision.LandmarkBins,
		LandmarkRadius: cfg.Vision.LandmarkRadius,
	}, a.codec)

	if a.confirmer == nil {
		p := prompt.New()
		p.MaxRetries = cfg.Prompt.MaxRetries
		p.AssumeYes = cfg.Prompt.AssumeYes
		a.confirmer = p
	}
	if a.trainer == nil {
		a.trainer = classifier.NewManifestTrainer(classifier.TrainerConfig{
			ModelPath:    cfg.Classifier.ModelPath,
			Backend:      cfg.Classifier.Backend,
			BackendURL:   cfg.Classifier.URL,
			BackendModel: cfg.Classifier.Model,
		})
	}
	if a.plotter == nil {
		a.plotter = distribution.NewCharts()
	}
	return a
}

// Config returns the configuration the Analyzer was built with
func (a *Analyzer) Config() *config.Config {
	return a.config
}

// TransformReport lists what a transform run wrote
type TransformReport struct {
	Source      string
	Destination string
	Bulk        bool
	Images      []string
	Artifacts   []string
}

// Transform runs the vision chain over source and saves five artifacts per
// image into dest. A directory source must be flat; a file source must be a
// readable image. An empty dest selects the configured transform directory.
func (a *Analyzer) Transform(source, dest string) (*TransformReport, error) {
	if dest == "" {
		dest = a.config.Transform.Dir
	}
	report := &TransformReport{Source: source, Destination: dest}

	images, bulk, err := transformInputs(source)
	if err != nil {
		return nil, err
	}
	report.Bulk = bulk

	for _, path := range images {
		artifacts, err := a.transformOne(path, dest)
		if err != nil {
			return report, err
		}
		report.Images = append(report.Images, path)
		report.Artifacts = append(report.Artifacts, artifacts...)
		log.Info().Str("file", filepath.Base(path)).Msg("transformation done")
	}

	log.Info().Str("path", dest).Int("images", len(report.Images)).Msg("transformed images saved")
	return report, nil
}

func transformInputs(source string) ([]string, bool, error) {
	err := catalog.ValidateDirectory(source)
	var notDir *catalog.NotADirectoryError
	switch {
	case err == nil:
		flat, err := catalog.IsSingleLevel(source)
		if err != nil {
			return nil, true, err
		}
		if !flat {
			return nil, true, &catalog.NestedDirectoryError{Path: source}
		}
		files, err := catalog.ListFiles(source)
		return files, true, err
	case !errors.As(err, &notDir):
		return nil, true, err
	}

	if err := catalog.ValidateFile(source); err != nil {
		return nil, false, err
	}
	if !utils.IsImageFile(source) {
		return nil, false, &catalog.UnsupportedFormatError{Path: source}
	}
	return []string{source}, false, nil
}

func (a *Analyzer) transformOne(path, dest string) ([]string, error) {
	img, err := a.codec.Load(path)
	if err != nil {
		return nil, err
	}
	set, err := a.chain.Process(img)
	if err != nil {
		return nil, fmt.Errorf("failed to transform %s: %w", path, err)
	}
	return a.chain.SaveArtifacts(set, utils.Stem(path), dest)
}

// Augment writes the six augmentations of one image into the configured
// augmentation directory and returns their paths.
func (a *Analyzer) Augment(path string) ([]string, error) {
	if err := catalog.ValidateFile(path); err != nil {
		return nil, err
	}
	if !utils.IsImageFile(path) {
		return nil, &catalog.UnsupportedFormatError{Path: path}
	}

	img, err := a.codec.Load(path)
	if err != nil {
		return nil, err
	}

	dir := a.config.Augment.Dir
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	stem := utils.Stem(path)
	var paths []string
	for _, variant := range augment.Variants() {
		out, err := a.augmenter.Apply(variant, img)
		if err != nil {
			return paths, err
		}
		saved, err := a.codec.SaveVariant(out, dir, stem, string(variant))
		if err != nil {
			return paths, err
		}
		paths = append(paths, saved)
	}
	log.Info().Str("path", dir).Int("images", len(paths)).Msg("augmented images saved")
	return paths, nil
}

// Balance fills the configured pool directory from the class folders of dir
func (a *Analyzer) Balance(dir string) (*balancer.Report, error) {
	b := balancer.NewWithConfig(balancer.Config{
		DatasetDir: a.config.Dataset.Dir,
		Order:      balancer.Order(a.config.Dataset.Order),
		Progress:   a.progress,
	}, a.augmenter, a.codec, a.confirmer)
	return b.Balance(dir)
}

// Split partitions the balanced pool into train, val and test trees
func (a *Analyzer) Split() (*splitter.Report, error) {
	s := splitter.NewWithConfig(splitter.Config{
		SplitDir: a.config.SplitDir(),
		Ratios: splitter.Ratios{
			Train: a.config.Split.Train,
			Val:   a.config.Split.Val,
			Test:  a.config.Split.Test,
		},
	}, a.rng)
	return s.Split(a.config.Dataset.Dir)
}

// TrainReport describes one training run
type TrainReport struct {
	Balance *balancer.Report
	Split   *splitter.Report
	Model   *types.Model
}

// Train balances dir, splits the pool and hands the split tree to the
// trainer. An existing model file is only replaced after confirmation.
func (a *Analyzer) Train(dir string) (*TrainReport, error) {
	modelPath := a.config.Classifier.ModelPath
	if utils.FileExists(modelPath) {
		ok, err := a.confirmer.Confirm(fmt.Sprintf("The model file '%s' already exists.\nDo you want to retrain the model?", modelPath))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrDeclined
		}
	}

	report := &TrainReport{}
	var err error
	if report.Balance, err = a.Balance(dir); err != nil {
		return report, err
	}
	if report.Split, err = a.Split(); err != nil {
		return report, err
	}
	if report.Model, err = a.trainer.Train(a.config.SplitDir()); err != nil {
		return report, fmt.Errorf("failed to train model: %w", err)
	}
	return report, nil
}

// DistributionReport bundles the class distribution with its chart files
type DistributionReport struct {
	*distribution.Report
	Charts []string
}

// Distribution counts the images per class of dir and plots the result
func (a *Analyzer) Distribution(dir string) (*DistributionReport, error) {
	report, err := distribution.Analyze(dir)
	if err != nil {
		return nil, err
	}
	charts, err := a.plotter.Plot(report, a.config.Distribution.Dir)
	if err != nil {
		return nil, err
	}
	for _, c := range report.Classes {
		log.Info().Str("class", c.Name).Int("count", c.Count).Msg("class distribution")
	}
	return &DistributionReport{Report: report, Charts: charts}, nil
}

// Predict classifies the image at path with the trained model and saves the
// original next to its landmark overlay as the visual explanation.
func (a *Analyzer) Predict(ctx context.Context, path string) (*types.PredictionResult, error) {
	if err := catalog.ValidateFile(path); err != nil {
		return nil, err
	}
	if !utils.IsImageFile(path) {
		return nil, &catalog.UnsupportedFormatError{Path: path}
	}

	model, err := classifier.LoadModel(a.config.Classifier.ModelPath)
	if err != nil {
		return nil, err
	}

	vc, err := a.visionClient(model)
	if err != nil {
		return nil, err
	}

	img, err := a.codec.Load(path)
	if err != nil {
		return nil, err
	}
	set, err := a.chain.Process(img)
	if err != nil {
		return nil, fmt.Errorf("failed to transform %s: %w", path, err)
	}

	prediction, err := classifier.New(vc).Classify(ctx, model, img)
	if err != nil {
		return nil, fmt.Errorf("failed to classify %s: %w", path, err)
	}

	dest := a.config.Transform.Dir
	stem := utils.Stem(path)
	artifacts, err := a.chain.SaveArtifacts(set, stem, dest)
	if err != nil {
		return nil, err
	}
	overlay, err := a.codec.SaveVariant(sideBySide(img, set.Landmarked), dest, stem, "prediction")
	if err != nil {
		return nil, err
	}

	log.Info().Str("file", filepath.Base(path)).Str("label", prediction.Label).Float64("confidence", prediction.Confidence).Msg("prediction done")
	return &types.PredictionResult{
		Prediction: prediction,
		Image:      path,
		Overlay:    overlay,
		Artifacts:  artifacts,
	}, nil
}

// Evaluate runs the trained model over the test split recorded in its
// manifest, or the configured split directory when none is recorded, and
// scores the answers per class.
func (a *Analyzer) Evaluate(ctx context.Context) (*classifier.Evaluation, error) {
	model, err := classifier.LoadModel(a.config.Classifier.ModelPath)
	if err != nil {
		return nil, err
	}
	vc, err := a.visionClient(model)
	if err != nil {
		return nil, err
	}

	root := model.DatasetDir
	if root == "" {
		root = a.config.SplitDir()
	}
	testDir := filepath.Join(root, "test")
	if err := catalog.ValidateDirectory(testDir); err != nil {
		return nil, err
	}
	return classifier.New(vc).Evaluate(ctx, model, testDir)
}

// visionClient returns the injected client or the backend named by the
// model, falling back to the configured one.
func (a *Analyzer) visionClient(model *types.Model) (client.VisionClient, error) {
	if a.client != nil {
		return a.client, nil
	}
	backend, url := model.Backend, model.BackendURL
	if backend == "" {
		backend, url = a.config.Classifier.Backend, a.config.Classifier.URL
	}
	return classifier.NewBackend(backend, url)
}

func sideBySide(left, right image.Image) *image.NRGBA {
	lb, rb := left.Bounds(), right.Bounds()
	out := imaging.New(lb.Dx()+rb.Dx(), max(lb.Dy(), rb.Dy()), color.White)
	out = imaging.Paste(out, left, image.Pt(0, 0))
	return imaging.Paste(out, right, image.Pt(lb.Dx(), 0))
}

// UserMessage turns an error from any Analyzer operation into the one-line
// message shown to users.
func UserMessage(err error) string {
	var (
		notFound    *catalog.NotFoundError
		notReadable *catalog.NotReadableError
		empty       *catalog.EmptyDirectoryError
		unsupported *catalog.UnsupportedFormatError
		notDir      *catalog.NotADirectoryError
		isDir       *catalog.IsADirectoryError
		nested      *catalog.NestedDirectoryError
		invalid     *prompt.InvalidInputError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDeclined):
		return "operation canceled"
	case errors.As(err, &notFound):
		return fmt.Sprintf("'%s' does not exist", notFound.Path)
	case errors.As(err, &notReadable):
		return fmt.Sprintf("'%s' is not readable", notReadable.Path)
	case errors.As(err, &empty):
		return fmt.Sprintf("'%s' is empty", empty.Path)
	case errors.As(err, &unsupported):
		return fmt.Sprintf("'%s' is not a supported image (png, jpg, jpeg, bmp, gif)", unsupported.Path)
	case errors.As(err, &notDir):
		return fmt.Sprintf("'%s' is not a directory", notDir.Path)
	case errors.As(err, &isDir):
		return fmt.Sprintf("'%s' is a directory", isDir.Path)
	case errors.As(err, &nested):
		return fmt.Sprintf("'%s' must not contain subdirectories", nested.Path)
	case errors.As(err, &invalid):
		return invalid.Error()
	}
	return err.Error()
}
