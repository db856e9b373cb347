package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/leaf-analyzer/internal/config"
	"github.com/menta2k/leaf-analyzer/pkg/classifier"
	"github.com/menta2k/leaf-analyzer/pkg/types"
)

func writeLeaf(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			c := color.RGBA{255, 255, 255, 255}
			if x > 10 && x < 30 && y > 8 && y < 22 {
				c = color.RGBA{50, 140, 40, 255}
			}
			img.Set(x, y, c)
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, imaging.Save(img, path))
}

// writeConfig stores a configuration whose output directories live in root
func writeConfig(t *testing.T, root string) (string, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Dataset.Dir = filepath.Join(root, "images_dataset")
	cfg.Augment.Dir = filepath.Join(root, "augmented_directory")
	cfg.Transform.Dir = filepath.Join(root, "transformed_images")
	cfg.Distribution.Dir = filepath.Join(root, "images_analysis")
	cfg.Classifier.ModelPath = filepath.Join(root, "trained_model.yaml")

	path := filepath.Join(root, "config.yaml")
	require.NoError(t, cfg.SaveToFile(path))
	return path, cfg
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append([]string{appName}, args...), strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestTransformCommand(t *testing.T) {
	root := t.TempDir()
	cfgPath, cfg := writeConfig(t, root)
	leaf := filepath.Join(root, "leaf.JPG")
	writeLeaf(t, leaf)

	code, stdout, stderr := runCLI(t, "", "--config", cfgPath, "transform", leaf)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "1 image(s) transformed, 5 artifacts")
	assert.FileExists(t, filepath.Join(cfg.Transform.Dir, "leaf_plm.JPG"))

	dst := filepath.Join(root, "custom")
	code, _, stderr = runCLI(t, "", "--config", cfgPath, "transform", leaf, "-dst", dst)
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, filepath.Join(dst, "leaf_mask.JPG"))

	dst = filepath.Join(root, "flags")
	code, _, stderr = runCLI(t, "", "--config", cfgPath, "transform", "-src", leaf, "-dst", dst)
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, filepath.Join(dst, "leaf_roi.JPG"))
}

func TestErrorLine(t *testing.T) {
	root := t.TempDir()
	cfgPath, _ := writeConfig(t, root)
	missing := filepath.Join(root, "missing")

	code, _, stderr := runCLI(t, "", "--config", cfgPath, "distribution", missing)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, fmt.Sprintf("leaf-analyzer distribution: error: '%s' does not exist\n", missing))

	code, _, stderr = runCLI(t, "", "--config", cfgPath, "augment")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "leaf-analyzer augment: error: expected exactly one argument: <image>")
}

func TestBalanceDeclineIsNotAnError(t *testing.T) {
	root := t.TempDir()
	cfgPath, cfg := writeConfig(t, root)
	src := filepath.Join(root, "images")
	for i := 0; i < 2; i++ {
		writeLeaf(t, filepath.Join(src, "Apple_rust", fmt.Sprintf("image (%d).JPG", i)))
	}
	writeLeaf(t, filepath.Join(src, "Apple_scab", "image (1).JPG"))

	code, stdout, stderr := runCLI(t, "", "--config", cfgPath, "balance", src)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Apple_scab: 1 -> 2")

	marker := filepath.Join(cfg.Dataset.Dir, "Apple_scab", "marker.JPG")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0644))

	code, _, stderr = runCLI(t, "no\n", "--config", cfgPath, "balance", src)
	assert.Equal(t, 0, code)
	assert.Contains(t, stderr, "leaf-analyzer balance: operation canceled")
	assert.FileExists(t, marker)

	code, _, stderr = runCLI(t, "", "--config", cfgPath, "--yes", "balance", src)
	require.Equal(t, 0, code, stderr)
	assert.NoFileExists(t, marker)
}

func TestInvalidConfig(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataset:\n  order: sideways\n"), 0644))

	code, _, stderr := runCLI(t, "", "--config", path, "balance", root)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "leaf-analyzer: error: invalid configuration")
}

func TestEvaluateCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.ChatResponse{
			Message: api.Message{Role: "assistant", Content: `{"label":"Apple_rust","confidence":0.5}`},
			Done:    true,
		})
	}))
	defer srv.Close()

	root := t.TempDir()
	cfgPath, cfg := writeConfig(t, root)
	splitRoot := filepath.Join(root, "splits")
	writeLeaf(t, filepath.Join(splitRoot, "test", "Apple_rust", "image (1).JPG"))
	writeLeaf(t, filepath.Join(splitRoot, "test", "Apple_scab", "image (1).JPG"))
	require.NoError(t, classifier.SaveModel(&types.Model{
		Backend:      classifier.BackendOllama,
		BackendURL:   srv.URL,
		BackendModel: "llava",
		DatasetDir:   splitRoot,
		Classes:      []string{"Apple_rust", "Apple_scab"},
	}, cfg.Classifier.ModelPath))

	code, stdout, stderr := runCLI(t, "", "--config", cfgPath, "evaluate")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Apple_rust: 1/1 (100.00%)")
	assert.Contains(t, stdout, "Apple_scab: 0/1 (0.00%)")
	assert.Contains(t, stdout, "Test accuracy: 50.00%")
	assert.Contains(t, stdout, "Test loss: 0.6931")

	code, _, stderr = runCLI(t, "", "--config", cfgPath, "evaluate", "extra")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "leaf-analyzer evaluate: error: expected no arguments")
}
