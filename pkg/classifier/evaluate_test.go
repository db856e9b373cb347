package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/leaf-analyzer/pkg/types"
)

// createTestTree writes real images into {root}/{class}
func createTestTree(t *testing.T, root string, counts map[string]int) {
	t.Helper()
	for class, n := range counts {
		dir := filepath.Join(root, class)
		require.NoError(t, os.MkdirAll(dir, 0755))
		for i := 0; i < n; i++ {
			require.NoError(t, imaging.Save(createTestImage(16, 16), filepath.Join(dir, fmt.Sprintf("image (%d).JPG", i+1))))
		}
	}
}

func TestEvaluate(t *testing.T) {
	testDir := t.TempDir()
	createTestTree(t, testDir, map[string]int{"Apple_rust": 2, "Apple_scab": 3})

	fake := &fakeClient{prediction: &types.Prediction{Label: "apple scab", RawLabel: "apple scab", Confidence: 0.75}}
	model := &types.Model{Classes: []string{"Apple_rust", "Apple_scab", "Grape_Esca"}}

	eval, err := New(fake).Evaluate(context.Background(), model, testDir)
	require.NoError(t, err)
	require.Len(t, eval.Classes, 3)

	assert.Equal(t, ClassScore{Name: "Apple_rust", Correct: 0, Total: 2}, eval.Classes[0])
	assert.Equal(t, ClassScore{Name: "Apple_scab", Correct: 3, Total: 3}, eval.Classes[1])
	assert.Equal(t, ClassScore{Name: "Grape_Esca"}, eval.Classes[2])
	assert.Equal(t, 1.0, eval.Classes[1].Accuracy())
	assert.Equal(t, 0.0, eval.Classes[2].Accuracy())

	assert.Equal(t, 3, eval.Correct)
	assert.Equal(t, 5, eval.Total)
	assert.InDelta(t, 0.6, eval.Accuracy(), 1e-9)

	want := (3*-math.Log(0.75) + 2*-math.Log(0.25)) / 5
	assert.InDelta(t, want, eval.Loss, 1e-9)
	assert.Zero(t, fake.described)
}

func TestEvaluateFallbackCountsAsWrong(t *testing.T) {
	testDir := t.TempDir()
	createTestTree(t, testDir, map[string]int{"Apple_rust": 1})

	fake := &fakeClient{prediction: &types.Prediction{Label: "unknown", Fallback: true}}
	model := &types.Model{Classes: []string{"Apple_rust", "Apple_scab"}}

	eval, err := New(fake).Evaluate(context.Background(), model, testDir)
	require.NoError(t, err)
	assert.Equal(t, 0, eval.Correct)
	assert.Equal(t, 1, eval.Total)
	assert.InDelta(t, math.Log(2), eval.Loss, 1e-9)
}

func TestTrueClassProbabilityIsClamped(t *testing.T) {
	p := &types.Prediction{Label: "Apple_scab", Confidence: 1}
	assert.Equal(t, minProbability, trueClassProbability(p, false, 2))
	assert.Equal(t, 1.0, trueClassProbability(p, true, 2))
}

func TestEvaluateErrors(t *testing.T) {
	model := &types.Model{Classes: []string{"Apple_rust"}}
	fake := &fakeClient{prediction: &types.Prediction{Label: "Apple_rust", RawLabel: "Apple_rust", Confidence: 0.9}}

	_, err := New(fake).Evaluate(context.Background(), model, t.TempDir())
	assert.ErrorContains(t, err, "no test images")

	_, err = New(fake).Evaluate(context.Background(), &types.Model{}, t.TempDir())
	assert.ErrorContains(t, err, "no classes")

	testDir := t.TempDir()
	createTestTree(t, testDir, map[string]int{"Apple_rust": 1})
	_, err = New(&fakeClient{err: errors.New("connection refused")}).Evaluate(context.Background(), model, testDir)
	assert.ErrorContains(t, err, "connection refused")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New(fake).Evaluate(ctx, model, testDir)
	assert.ErrorIs(t, err, context.Canceled)
}
