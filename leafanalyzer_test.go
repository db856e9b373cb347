package leafanalyzer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/leaf-analyzer/internal/config"
	"github.com/menta2k/leaf-analyzer/pkg/catalog"
	"github.com/menta2k/leaf-analyzer/pkg/classifier"
	"github.com/menta2k/leaf-analyzer/pkg/prompt"
	"github.com/menta2k/leaf-analyzer/pkg/types"
)

// createLeafImage draws a green ellipse on a white background
func createLeafImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	cx, cy := float64(width)/2, float64(height)/2
	rx, ry := float64(width)/3, float64(height)/4
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := (float64(x)-cx)/rx, (float64(y)-cy)/ry
			if dx*dx+dy*dy <= 1 {
				img.Set(x, y, color.RGBA{40, 150, 30, 255})
			} else {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}
	return img
}

func writeLeaf(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, imaging.Save(createLeafImage(64, 48), path))
}

// testConfig points every output directory into a fresh temp dir
func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Dataset.Dir = filepath.Join(root, "images_dataset")
	cfg.Augment.Dir = filepath.Join(root, "augmented_directory")
	cfg.Transform.Dir = filepath.Join(root, "transformed_images")
	cfg.Distribution.Dir = filepath.Join(root, "images_analysis")
	cfg.Classifier.ModelPath = filepath.Join(root, "trained_model.yaml")
	return cfg, root
}

type staticConfirmer struct {
	answer bool
	asked  []string
}

func (s *staticConfirmer) Confirm(question string) (bool, error) {
	s.asked = append(s.asked, question)
	return s.answer, nil
}

type fakeClient struct {
	label string
}

func (f *fakeClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return "", nil
}

func (f *fakeClient) ClassifyImage(ctx context.Context, model, prompt, imgB64 string) (*types.Prediction, error) {
	return &types.Prediction{Label: f.label, RawLabel: f.label, Confidence: 0.75, Description: "spots"}, nil
}

func TestTransformSingleFile(t *testing.T) {
	cfg, root := testConfig(t)
	leaf := filepath.Join(root, "leaf.JPG")
	writeLeaf(t, leaf)

	report, err := NewWithConfig(cfg).Transform(leaf, "")
	require.NoError(t, err)
	assert.False(t, report.Bulk)
	assert.Equal(t, cfg.Transform.Dir, report.Destination)
	require.Len(t, report.Artifacts, 5)
	for _, tag := range []string{"gauss_blur", "mask", "roi", "analyze", "plm"} {
		assert.FileExists(t, filepath.Join(cfg.Transform.Dir, "leaf_"+tag+".JPG"))
	}
}

func TestTransformDirectory(t *testing.T) {
	cfg, root := testConfig(t)
	src := filepath.Join(root, "leaves")
	writeLeaf(t, filepath.Join(src, "a.JPG"))
	writeLeaf(t, filepath.Join(src, "b.png"))
	dst := filepath.Join(root, "out")

	report, err := NewWithConfig(cfg).Transform(src, dst)
	require.NoError(t, err)
	assert.True(t, report.Bulk)
	assert.Len(t, report.Images, 2)
	assert.Len(t, report.Artifacts, 10)
	assert.FileExists(t, filepath.Join(dst, "b_plm.JPG"))
}

func TestTransformRejectsInvalidSources(t *testing.T) {
	cfg, root := testConfig(t)
	a := NewWithConfig(cfg)

	nested := filepath.Join(root, "nested")
	writeLeaf(t, filepath.Join(nested, "sub", "a.JPG"))
	_, err := a.Transform(nested, "")
	var nestedErr *catalog.NestedDirectoryError
	require.True(t, errors.As(err, &nestedErr))
	assert.Contains(t, UserMessage(err), "must not contain subdirectories")

	note := filepath.Join(root, "note.txt")
	require.NoError(t, os.WriteFile(note, []byte("x"), 0644))
	_, err = a.Transform(note, "")
	var unsupported *catalog.UnsupportedFormatError
	require.True(t, errors.As(err, &unsupported))

	_, err = a.Transform(filepath.Join(root, "missing.JPG"), "")
	var notFound *catalog.NotFoundError
	require.True(t, errors.As(err, &notFound))

	assert.NoDirExists(t, cfg.Transform.Dir)
}

func TestAugment(t *testing.T) {
	cfg, root := testConfig(t)
	leaf := filepath.Join(root, "image (1).JPG")
	writeLeaf(t, leaf)

	paths, err := NewWithConfig(cfg, WithRand(rand.New(rand.NewPCG(3, 4)))).Augment(leaf)
	require.NoError(t, err)
	require.Len(t, paths, 6)
	for _, suffix := range []string{"flip", "rotate", "shear", "crop", "blur", "contrast"} {
		assert.FileExists(t, filepath.Join(cfg.Augment.Dir, "image (1)_"+suffix+".JPG"))
	}

	_, err = NewWithConfig(cfg).Augment(root)
	var isDir *catalog.IsADirectoryError
	assert.True(t, errors.As(err, &isDir))
}

func createClasses(t *testing.T, root string, counts map[string]int) {
	t.Helper()
	for class, n := range counts {
		for i := 0; i < n; i++ {
			writeLeaf(t, filepath.Join(root, class, fmt.Sprintf("image (%d).JPG", i+1)))
		}
	}
}

func TestTrain(t *testing.T) {
	cfg, root := testConfig(t)
	src := filepath.Join(root, "images", "Apple")
	createClasses(t, src, map[string]int{"Apple_rust": 3, "Apple_scab": 10})

	confirmer := &staticConfirmer{answer: true}
	a := NewWithConfig(cfg, WithConfirmer(confirmer), WithRand(rand.New(rand.NewPCG(1, 1))))
	report, err := a.Train(src)
	require.NoError(t, err)
	assert.Empty(t, confirmer.asked)

	assert.Equal(t, 10, report.Balance.Target)
	assert.Equal(t, []string{"Apple_rust", "Apple_scab"}, report.Model.Classes)
	assert.Equal(t, 7, report.Model.Splits["train"]["Apple_rust"])
	assert.Equal(t, 1, report.Model.Splits["val"]["Apple_scab"])
	assert.Equal(t, 2, report.Model.Splits["test"]["Apple_scab"])
	assert.FileExists(t, cfg.Classifier.ModelPath)
	assert.NoDirExists(t, filepath.Join(cfg.Dataset.Dir, "Apple_rust"))
}

func TestTrainDeclineKeepsModel(t *testing.T) {
	cfg, root := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Classifier.ModelPath, []byte("name: old\n"), 0644))

	confirmer := &staticConfirmer{answer: false}
	_, trainErr := NewWithConfig(cfg, WithConfirmer(confirmer)).Train(filepath.Join(root, "images"))
	require.ErrorIs(t, trainErr, ErrDeclined)
	assert.Equal(t, "operation canceled", UserMessage(trainErr))
	require.Len(t, confirmer.asked, 1)
	assert.Contains(t, confirmer.asked[0], "Do you want to retrain the model?")

	data, err := os.ReadFile(cfg.Classifier.ModelPath)
	require.NoError(t, err)
	assert.Equal(t, "name: old\n", string(data))
}

func TestTrainEveryOutputFormat(t *testing.T) {
	for _, format := range []string{"jpg", "jpeg", "png", "webp"} {
		t.Run(format, func(t *testing.T) {
			cfg, root := testConfig(t)
			cfg.Output.Format = format
			require.NoError(t, cfg.Validate())

			src := filepath.Join(root, "images", "Apple")
			createClasses(t, src, map[string]int{"Apple_rust": 2, "Apple_scab": 4})

			report, err := NewWithConfig(cfg, WithRand(rand.New(rand.NewPCG(5, 6)))).Train(src)
			require.NoError(t, err)
			assert.Equal(t, 4, report.Balance.Target)
			assert.Equal(t, []string{"Apple_rust", "Apple_scab"}, report.Model.Classes)

			// pool files keep the JPG extension so splitting can list them
			err = filepath.WalkDir(report.Model.DatasetDir, func(path string, d os.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return err
				}
				assert.Equal(t, ".JPG", filepath.Ext(path), path)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestDistribution(t *testing.T) {
	cfg, root := testConfig(t)
	src := filepath.Join(root, "Grape")
	createClasses(t, src, map[string]int{"Grape_Esca": 2, "Grape_spot": 1})

	report, err := NewWithConfig(cfg).Distribution(src)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	require.Len(t, report.Charts, 2)
	for _, chart := range report.Charts {
		assert.FileExists(t, chart)
	}
}

func TestPredict(t *testing.T) {
	cfg, root := testConfig(t)
	require.NoError(t, classifier.SaveModel(&types.Model{
		Name:         "trained_model",
		Backend:      classifier.BackendOllama,
		BackendModel: "llava",
		Classes:      []string{"Apple_rust", "Apple_scab"},
	}, cfg.Classifier.ModelPath))

	leaf := filepath.Join(root, "unknown leaf.JPG")
	writeLeaf(t, leaf)

	a := NewWithConfig(cfg, WithClient(&fakeClient{label: "apple scab"}))
	result, err := a.Predict(context.Background(), leaf)
	require.NoError(t, err)
	assert.Equal(t, "Apple_scab", result.Prediction.Label)
	assert.Len(t, result.Artifacts, 5)
	require.FileExists(t, result.Overlay)

	overlay, err := imaging.Open(result.Overlay)
	require.NoError(t, err)
	assert.Equal(t, 128, overlay.Bounds().Dx())
	assert.Equal(t, 48, overlay.Bounds().Dy())
}

func TestPredictWithoutModel(t *testing.T) {
	cfg, root := testConfig(t)
	leaf := filepath.Join(root, "leaf.JPG")
	writeLeaf(t, leaf)

	_, err := NewWithConfig(cfg, WithClient(&fakeClient{})).Predict(context.Background(), leaf)
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	cfg, root := testConfig(t)
	splitRoot := filepath.Join(root, "splits")
	createClasses(t, filepath.Join(splitRoot, "test"), map[string]int{"Apple_rust": 2, "Apple_scab": 3})
	require.NoError(t, classifier.SaveModel(&types.Model{
		Name:       "trained_model",
		DatasetDir: splitRoot,
		Classes:    []string{"Apple_rust", "Apple_scab"},
	}, cfg.Classifier.ModelPath))

	eval, err := NewWithConfig(cfg, WithClient(&fakeClient{label: "apple scab"})).Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(splitRoot, "test"), eval.TestDir)
	assert.Equal(t, 3, eval.Correct)
	assert.Equal(t, 5, eval.Total)
	assert.InDelta(t, 0.6, eval.Accuracy(), 1e-9)
	assert.InDelta(t, 0.0, eval.Classes[0].Accuracy(), 1e-9)
	assert.InDelta(t, (3*-math.Log(0.75)+2*-math.Log(0.25))/5, eval.Loss, 1e-9)
}

func TestEvaluateAfterTrain(t *testing.T) {
	cfg, root := testConfig(t)
	src := filepath.Join(root, "images", "Apple")
	createClasses(t, src, map[string]int{"Apple_rust": 3, "Apple_scab": 10})

	a := NewWithConfig(cfg, WithRand(rand.New(rand.NewPCG(1, 1))), WithClient(&fakeClient{label: "Apple_rust"}))
	report, err := a.Train(src)
	require.NoError(t, err)

	eval, err := a.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(report.Model.DatasetDir, "test"), eval.TestDir)
	assert.Equal(t, report.Model.Splits["test"]["Apple_rust"]+report.Model.Splits["test"]["Apple_scab"], eval.Total)
	assert.Equal(t, report.Model.Splits["test"]["Apple_rust"], eval.Correct)
}

func TestEvaluateWithoutTestSplit(t *testing.T) {
	cfg, _ := testConfig(t)
	require.NoError(t, classifier.SaveModel(&types.Model{Classes: []string{"Apple_rust"}}, cfg.Classifier.ModelPath))

	_, err := NewWithConfig(cfg, WithClient(&fakeClient{})).Evaluate(context.Background())
	var notFound *catalog.NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, filepath.Join(cfg.SplitDir(), "test"), notFound.Path)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("wrap: %w", ErrDeclined), "operation canceled"},
		{&catalog.NotFoundError{Path: "x"}, "'x' does not exist"},
		{&catalog.EmptyDirectoryError{Path: "d"}, "'d' is empty"},
		{&catalog.NotADirectoryError{Path: "f"}, "'f' is not a directory"},
		{&catalog.IsADirectoryError{Path: "d"}, "'d' is a directory"},
		{&prompt.InvalidInputError{Answer: "maybe"}, `invalid input "maybe": please enter 'yes' or 'no'`},
		{errors.New("disk full"), "disk full"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, UserMessage(tt.err))
	}
}
