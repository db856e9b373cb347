// Package balancer upsamples every class of a labeled image folder to the
// size of the largest class by writing augmented copies into a pool
// directory.
package balancer

import (
	"context"
	"fmt"
	"image"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/phuslu/log"
	"github.com/schollz/progressbar/v3"

	"github.com/menta2k/leaf-analyzer/internal/utils"
	"github.com/menta2k/leaf-analyzer/pkg/augment"
	"github.com/menta2k/leaf-analyzer/pkg/catalog"
	"github.com/menta2k/leaf-analyzer/pkg/imageio"
	"github.com/menta2k/leaf-analyzer/pkg/prompt"
)

// ErrDeclined is returned when the user refuses to overwrite an existing pool
var ErrDeclined = prompt.ErrDeclined

// PoolFormat is the extension of every generated pool file, whatever the
// configured artifact format.
const PoolFormat = "JPG"

// Order selects how (source, variant) pairs are visited
type Order string

const (
	// OrderRounds applies variant k to every source before variant k+1, so
	// each source contributes its original before any source is augmented.
	OrderRounds Order = "rounds"
	// OrderImages runs the full variant cycle on one source before moving to
	// the next one.
	OrderImages Order = "images"
)

// Confirmer asks for permission before destructive work
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// Config holds configuration for the balancer
type Config struct {
	DatasetDir string
	Order      Order
	// Progress receives a progress bar per class when set.
	Progress io.Writer
}

// Balancer fills one pool directory per class up to the majority count
type Balancer struct {
	config    Config
	augmenter *augment.Augmenter
	codec     *imageio.Codec
	confirmer Confirmer
}

// ClassReport describes what balancing did for one class
type ClassReport struct {
	Name      string
	Sources   int
	Generated int
}

// Report summarizes a balancing run
type Report struct {
	DatasetDir string
	Target     int
	Classes    []ClassReport
}

// New creates a Balancer writing to ../images_dataset
func New() *Balancer {
	return NewWithConfig(Config{DatasetDir: "../images_dataset", Order: OrderRounds}, augment.New(), imageio.New(), prompt.New())
}

// NewWithConfig creates a Balancer with custom collaborators
func NewWithConfig(config Config, augmenter *augment.Augmenter, codec *imageio.Codec, confirmer Confirmer) *Balancer {
	if config.Order == "" {
		config.Order = OrderRounds
	}
	return &Balancer{
		config:    config,
		augmenter: augmenter,
		codec:     codec,
		confirmer: confirmer,
	}
}

// Balance validates sourceDir, asks before replacing an existing pool and
// then writes exactly max(class sizes) images per class as
// {class}/{stem}_{variant}.JPG. Declining returns ErrDeclined and leaves the
// existing pool untouched. An I/O error aborts the whole run; files already
// written stay on disk.
//
// With OrderRounds (the default) every source contributes its original
// before any source is augmented, so a class already at the target keeps
// only originals. OrderImages walks the full variant cycle of one source
// before the next, the literal per-image order.
func (b *Balancer) Balance(sourceDir string) (*Report, error) {
	groups, err := catalog.Scan(sourceDir, true)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no class folders found in %s", sourceDir)
	}

	ctx := context.Background()
	exists, err := utils.Exists(ctx, b.config.DatasetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to check dataset path: %w", err)
	}
	if exists {
		ok, err := b.confirmer.Confirm(fmt.Sprintf("The dataset path '%s' already exists.\nDo you want to rebalance the dataset?", b.config.DatasetDir))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrDeclined
		}
		if err := utils.RemoveAll(ctx, b.config.DatasetDir); err != nil {
			return nil, fmt.Errorf("failed to delete previous dataset: %w", err)
		}
		log.Info().Str("path", b.config.DatasetDir).Msg("deleted previous dataset")
	}

	report := &Report{DatasetDir: b.config.DatasetDir, Target: groups.Max()}
	for _, group := range groups {
		generated, err := b.balanceClass(group, report.Target)
		if err != nil {
			return report, fmt.Errorf("failed to balance class %s: %w", group.Name, err)
		}
		report.Classes = append(report.Classes, ClassReport{
			Name:      group.Name,
			Sources:   len(group.Files),
			Generated: generated,
		})
	}

	log.Info().Str("path", b.config.DatasetDir).Int("target", report.Target).Int("classes", len(report.Classes)).Msg("balancing dataset done")
	return report, nil
}

// balanceClass writes variants for one class until target files exist. The
// cap is checked before every save, so a class never exceeds target.
func (b *Balancer) balanceClass(group catalog.ClassGroup, target int) (int, error) {
	classDir := filepath.Join(b.config.DatasetDir, group.Name)
	if err := utils.EnsureDir(classDir); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", classDir, err)
	}

	count, err := countFiles(classDir)
	if err != nil {
		return 0, err
	}

	var bar *progressbar.ProgressBar
	if b.config.Progress != nil {
		bar = progressbar.NewOptions(target,
			progressbar.OptionSetWriter(b.config.Progress),
			progressbar.OptionSetDescription(group.Name),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Close()
		_ = bar.Set(count)
	}

	var (
		cachedPath string
		cachedImg  image.Image
	)
	for source, variant := range b.pairs(group.Files) {
		if count >= target {
			break
		}

		// a second source with the same stem must not replace the first one's file
		path := utils.GenerateOutputFilename(utils.Stem(source), classDir, string(variant), PoolFormat)
		if utils.FileExists(path) {
			log.Warn().Str("class", group.Name).Str("file", path).Msg("duplicate source stem, variant skipped")
			continue
		}

		if source != cachedPath {
			img, err := b.codec.Load(source)
			if err != nil {
				return count, err
			}
			cachedPath, cachedImg = source, img
		}

		out, err := b.augmenter.Apply(variant, cachedImg)
		if err != nil {
			return count, err
		}

		if err := b.codec.Save(out, path); err != nil {
			return count, err
		}

		count++
		if bar != nil {
			_ = bar.Add(1)
		}
		log.Debug().Str("class", group.Name).Str("file", filepath.Base(path)).Int("count", count).Msg("augmented image saved")
	}

	if count < target {
		log.Warn().Str("class", group.Name).Int("count", count).Int("target", target).Msg("not enough sources to reach target")
	} else {
		log.Info().Str("class", group.Name).Int("count", count).Msg("augmentations done")
	}
	return count, nil
}

// pairs yields the (source, variant) sequence in the configured order
func (b *Balancer) pairs(files []string) iter.Seq2[string, augment.Variant] {
	cycle := augment.Cycle()
	return func(yield func(string, augment.Variant) bool) {
		if b.config.Order == OrderImages {
			for _, file := range files {
				for _, variant := range cycle {
					if !yield(file, variant) {
						return
					}
				}
			}
			return
		}
		for _, variant := range cycle {
			for _, file := range files {
				if !yield(file, variant) {
					return
				}
			}
		}
	}
}

func countFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			n++
		}
	}
	return n, nil
}
