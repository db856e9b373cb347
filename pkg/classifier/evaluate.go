package classifier

import (
	"context"
	"fmt"
	"math"
	"path/filepath"

	"github.com/phuslu/log"
	"gonum.org/v1/gonum/stat"

	"github.com/menta2k/leaf-analyzer/internal/utils"
	"github.com/menta2k/leaf-analyzer/pkg/catalog"
	"github.com/menta2k/leaf-analyzer/pkg/types"
)

// minProbability keeps the loss finite for a confident wrong answer
const minProbability = 1e-7

// ClassScore counts the correct answers for one class
type ClassScore struct {
	Name    string
	Correct int
	Total   int
}

// Accuracy returns Correct/Total, or 0 for a class without images
func (s ClassScore) Accuracy() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total)
}

// Evaluation is the result of running a model over a labeled test tree
type Evaluation struct {
	TestDir string
	Classes []ClassScore
	Correct int
	Total   int
	// Loss is the mean negative log of the probability given to the true
	// class: the confidence when the answer is right, what is left of it
	// when it is wrong, and a uniform guess for a fallback.
	Loss float64
}

// Accuracy returns the overall share of correct answers
func (e *Evaluation) Accuracy() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Correct) / float64(e.Total)
}

// Evaluate classifies every image of {testDir}/{class} for each class of
// model and scores the answers against the folder names. Classes without a
// test folder are reported with zero images.
func (c *Classifier) Evaluate(ctx context.Context, model *types.Model, testDir string) (*Evaluation, error) {
	if model == nil || len(model.Classes) == 0 {
		return nil, fmt.Errorf("model has no classes")
	}

	eval := &Evaluation{TestDir: testDir}
	var losses []float64
	for _, class := range model.Classes {
		score := ClassScore{Name: class}
		dir := filepath.Join(testDir, class)
		if !utils.DirExists(dir) {
			log.Warn().Str("class", class).Str("dir", dir).Msg("no test folder for class")
			eval.Classes = append(eval.Classes, score)
			continue
		}

		files, err := catalog.ListFiles(dir)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			img, err := c.codec.Load(file)
			if err != nil {
				return nil, err
			}
			imgB64, err := c.encode(model, img)
			if err != nil {
				return nil, err
			}
			prediction, err := c.classify(ctx, model, imgB64)
			if err != nil {
				return nil, fmt.Errorf("failed to classify %s: %w", file, err)
			}

			correct := !prediction.Fallback && prediction.Label == class
			if correct {
				score.Correct++
			}
			score.Total++
			losses = append(losses, -math.Log(trueClassProbability(prediction, correct, len(model.Classes))))
			log.Debug().Str("file", filepath.Base(file)).Str("class", class).Str("label", prediction.Label).Bool("correct", correct).Msg("test image scored")
		}

		eval.Correct += score.Correct
		eval.Total += score.Total
		eval.Classes = append(eval.Classes, score)
	}

	if eval.Total == 0 {
		return nil, fmt.Errorf("no test images found in %s", testDir)
	}
	eval.Loss = stat.Mean(losses, nil)

	log.Info().Int("correct", eval.Correct).Int("total", eval.Total).Float64("accuracy", eval.Accuracy()).Float64("loss", eval.Loss).Msg("evaluation done")
	return eval, nil
}

func trueClassProbability(p *types.Prediction, correct bool, classes int) float64 {
	var prob float64
	switch {
	case p.Fallback:
		prob = 1 / float64(classes)
	case correct:
		prob = p.Confidence
	default:
		prob = 1 - p.Confidence
	}
	return math.Min(math.Max(prob, minProbability), 1)
}
