// Package splitter partitions a balanced pool into train, val and test trees.
package splitter

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/phuslu/log"

	"github.com/menta2k/leaf-analyzer/internal/utils"
	"github.com/menta2k/leaf-analyzer/pkg/catalog"
)

// Split names, in the order files are assigned to them
const (
	Train = "train"
	Val   = "val"
	Test  = "test"
)

// Names returns the split directory names
func Names() []string {
	return []string{Train, Val, Test}
}

// Ratios holds the fraction of each class assigned to train and val; test
// receives the remainder.
type Ratios struct {
	Train float64
	Val   float64
	Test  float64
}

// DefaultRatios returns the 70/15/15 split
func DefaultRatios() Ratios {
	return Ratios{Train: 0.70, Val: 0.15, Test: 0.15}
}

// Counts returns how many of n files go to each split. train and val are
// floored; test takes the rest so the three always sum to n.
func (r Ratios) Counts(n int) (train, val, test int) {
	train = int(math.Floor(float64(n) * r.Train))
	val = int(math.Floor(float64(n) * r.Val))
	if train+val > n {
		val = n - train
	}
	return train, val, n - train - val
}

// Config holds configuration for the splitter
type Config struct {
	// SplitDir is where train/val/test are created. Empty means inside the
	// balanced root.
	SplitDir string
	Ratios   Ratios
}

// Splitter copies pool files into split trees
type Splitter struct {
	config Config
	rng    *rand.Rand
}

// ClassReport holds the per-split counts of one class
type ClassReport struct {
	Name  string
	Train int
	Val   int
	Test  int
}

// Total returns the number of files copied for the class
func (c ClassReport) Total() int {
	return c.Train + c.Val + c.Test
}

// Report summarizes a split run
type Report struct {
	SplitDir string
	Classes  []ClassReport
	Bytes    int64
}

// New creates a Splitter with the default ratios
func New() *Splitter {
	return NewWithConfig(Config{Ratios: DefaultRatios()}, nil)
}

// NewWithConfig creates a Splitter. A nil rng shuffles from a random seed,
// so two runs over the same pool produce different memberships.
func NewWithConfig(config Config, rng *rand.Rand) *Splitter {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Splitter{config: config, rng: rng}
}

// Split shuffles each class of balancedRoot, copies its files into
// {splitDir}/{train,val,test}/{class}/ and then deletes the class staging
// directory. Previous split trees are deleted first, never merged.
func (s *Splitter) Split(balancedRoot string) (*Report, error) {
	ctx := context.Background()
	splitDir := s.config.SplitDir
	if splitDir == "" {
		splitDir = balancedRoot
	}

	groups, err := s.scan(balancedRoot, splitDir)
	if err != nil {
		return nil, err
	}

	for _, name := range Names() {
		if err := utils.RecreateDir(ctx, filepath.Join(splitDir, name)); err != nil {
			return nil, fmt.Errorf("failed to recreate split directory: %w", err)
		}
	}

	report := &Report{SplitDir: splitDir}
	for _, group := range groups {
		log.Info().Str("class", group.Name).Int("files", len(group.Files)).Msg("splitting images")

		files := append([]string(nil), group.Files...)
		s.rng.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })

		nTrain, nVal, nTest := s.config.Ratios.Counts(len(files))
		parts := map[string][]string{
			Train: files[:nTrain],
			Val:   files[nTrain : nTrain+nVal],
			Test:  files[nTrain+nVal:],
		}

		for _, name := range Names() {
			dir := filepath.Join(splitDir, name, group.Name)
			if err := utils.EnsureDir(dir); err != nil {
				return report, fmt.Errorf("failed to create %s: %w", dir, err)
			}
			for _, file := range parts[name] {
				dst := filepath.Join(dir, filepath.Base(file))
				if err := utils.CopyFile(ctx, file, dst); err != nil {
					return report, fmt.Errorf("failed to copy %s: %w", file, err)
				}
				if info, err := os.Stat(dst); err == nil {
					report.Bytes += info.Size()
				}
			}
		}

		staging := filepath.Join(balancedRoot, group.Name)
		if err := utils.RemoveAll(ctx, staging); err != nil {
			return report, fmt.Errorf("failed to delete %s: %w", staging, err)
		}

		report.Classes = append(report.Classes, ClassReport{Name: group.Name, Train: nTrain, Val: nVal, Test: nTest})
		log.Info().Str("class", group.Name).Int("train", nTrain).Int("val", nVal).Int("test", nTest).Msg("splitting done")
	}

	log.Info().Str("path", splitDir).Str("size", utils.FormatFileSize(report.Bytes)).Msg("dataset splitting completed")
	return report, nil
}

// scan groups the staging class folders of balancedRoot, leaving out any
// split tree that lives inside it.
func (s *Splitter) scan(balancedRoot, splitDir string) (catalog.Groups, error) {
	if err := catalog.ValidateDirectory(balancedRoot); err != nil {
		return nil, err
	}
	root, err := filepath.Abs(balancedRoot)
	if err != nil {
		return nil, err
	}
	splitRoot, err := filepath.Abs(splitDir)
	if err != nil {
		return nil, err
	}

	skip := map[string]bool{}
	if splitRoot == root {
		for _, name := range Names() {
			skip[name] = true
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() || skip[entry.Name()] {
			continue
		}
		classFiles, err := catalog.ListFiles(filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, classFiles...)
	}
	return catalog.GroupByClass(root, files, true), nil
}
