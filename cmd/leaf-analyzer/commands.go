package main

import (
	"errors"
	"fmt"

	"github.com/phuslu/log"
	"github.com/urfave/cli/v2"

	leafanalyzer "github.com/menta2k/leaf-analyzer"
	"github.com/menta2k/leaf-analyzer/internal/utils"
	"github.com/menta2k/leaf-analyzer/pkg/prompt"
)

// action wraps a command body so failures carry the command name and a
// declined confirmation ends the command quietly.
func (e *environment) action(name string, fn func(c *cli.Context, a *leafanalyzer.Analyzer) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		err := fn(c, e.analyzer())
		if errors.Is(err, leafanalyzer.ErrDeclined) {
			fmt.Fprintf(e.stderr, "%s %s: %s\n", appName, name, leafanalyzer.UserMessage(err))
			return nil
		}
		if err != nil {
			return &commandError{command: name, err: err}
		}
		return nil
	}
}

func (e *environment) analyzer() *leafanalyzer.Analyzer {
	p := prompt.New()
	p.In = e.stdin
	p.Out = e.stderr
	p.MaxRetries = e.config.Prompt.MaxRetries
	p.AssumeYes = e.config.Prompt.AssumeYes

	opts := []leafanalyzer.Option{leafanalyzer.WithConfirmer(p)}
	if isTerminal(e.stderr) {
		opts = append(opts, leafanalyzer.WithProgress(e.stderr))
	}
	return leafanalyzer.NewWithConfig(e.config, opts...)
}

// requireArg returns the single positional argument of a command
func requireArg(c *cli.Context, name string) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one argument: <%s>", name)
	}
	return c.Args().First(), nil
}

func (e *environment) distributionCommand() *cli.Command {
	return &cli.Command{
		Name:      "distribution",
		Usage:     "Count images per class and plot pie and bar charts",
		ArgsUsage: "<images_directory>",
		Action: e.action("distribution", func(c *cli.Context, a *leafanalyzer.Analyzer) error {
			dir, err := requireArg(c, "images_directory")
			if err != nil {
				return err
			}
			report, err := a.Distribution(dir)
			if err != nil {
				return err
			}
			for _, cl := range report.Classes {
				fmt.Fprintf(e.stdout, "%s: %d\n", cl.Name, cl.Count)
			}
			fmt.Fprintf(e.stdout, "total: %d, mean: %.1f, std: %.1f, imbalance: %.2f\n",
				report.Total, report.Mean, report.StdDev, report.Imbalance)
			for _, chart := range report.Charts {
				fmt.Fprintf(e.stdout, "chart saved at %s\n", chart)
			}
			return nil
		}),
	}
}

func (e *environment) augmentCommand() *cli.Command {
	return &cli.Command{
		Name:      "augment",
		Usage:     "Write the six augmentations of one image",
		ArgsUsage: "<image>",
		Action: e.action("augment", func(c *cli.Context, a *leafanalyzer.Analyzer) error {
			path, err := requireArg(c, "image")
			if err != nil {
				return err
			}
			paths, err := a.Augment(path)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(e.stdout, p)
			}
			return nil
		}),
	}
}

func (e *environment) transformCommand() *cli.Command {
	return &cli.Command{
		Name:      "transform",
		Usage:     "Run the leaf transform chain on an image or a flat directory",
		ArgsUsage: "(<source> | -src <source>) [-dst <destination>]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "src", Usage: "Source image or directory"},
			&cli.StringFlag{Name: "dst", Usage: "Destination directory"},
		},
		Action: e.action("transform", func(c *cli.Context, a *leafanalyzer.Analyzer) error {
			source, dest := c.String("src"), c.String("dst")
			args := c.Args().Slice()
			if source == "" && len(args) > 0 {
				source, args = args[0], args[1:]
			}
			// flag parsing stops at the positional source
			if len(args) == 2 && (args[0] == "-dst" || args[0] == "--dst") {
				dest, args = args[1], nil
			}
			if source == "" || len(args) > 0 {
				return fmt.Errorf("expected exactly one source: <source> or -src <source>")
			}

			report, err := a.Transform(source, dest)
			if err != nil {
				return err
			}
			size, err := utils.DirSize(report.Destination)
			if err != nil {
				log.Warn().Err(err).Str("path", report.Destination).Msg("failed to measure output")
			}
			fmt.Fprintf(e.stdout, "%d image(s) transformed, %d artifacts (%s) saved at %s\n",
				len(report.Images), len(report.Artifacts), utils.FormatFileSize(size), report.Destination)
			return nil
		}),
	}
}

func (e *environment) balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Upsample every class to the size of the largest one",
		ArgsUsage: "<images_directory>",
		Action: e.action("balance", func(c *cli.Context, a *leafanalyzer.Analyzer) error {
			dir, err := requireArg(c, "images_directory")
			if err != nil {
				return err
			}
			report, err := a.Balance(dir)
			if err != nil {
				return err
			}
			for _, cl := range report.Classes {
				fmt.Fprintf(e.stdout, "%s: %d -> %d\n", cl.Name, cl.Sources, cl.Generated)
			}
			fmt.Fprintf(e.stdout, "balanced dataset saved at %s\n", report.DatasetDir)
			return nil
		}),
	}
}

func (e *environment) trainCommand() *cli.Command {
	return &cli.Command{
		Name:      "train",
		Usage:     "Balance, split and train on a labeled image directory",
		ArgsUsage: "<images_directory>",
		Action: e.action("train", func(c *cli.Context, a *leafanalyzer.Analyzer) error {
			dir, err := requireArg(c, "images_directory")
			if err != nil {
				return err
			}
			report, err := a.Train(dir)
			if err != nil {
				return err
			}
			for _, cl := range report.Split.Classes {
				fmt.Fprintf(e.stdout, "%s: train=%d val=%d test=%d\n", cl.Name, cl.Train, cl.Val, cl.Test)
			}
			fmt.Fprintf(e.stdout, "model saved at %s (%d classes)\n", a.Config().Classifier.ModelPath, len(report.Model.Classes))
			return nil
		}),
	}
}

func (e *environment) predictCommand() *cli.Command {
	return &cli.Command{
		Name:      "predict",
		Usage:     "Predict the class of one image with the trained model",
		ArgsUsage: "<image>",
		Action: e.action("predict", func(c *cli.Context, a *leafanalyzer.Analyzer) error {
			path, err := requireArg(c, "image")
			if err != nil {
				return err
			}
			result, err := a.Predict(c.Context, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.stdout, "Class predicted: %s (confidence %.2f)\n", result.Prediction.Label, result.Prediction.Confidence)
			fmt.Fprintf(e.stdout, "overlay saved at %s\n", result.Overlay)
			return nil
		}),
	}
}

func (e *environment) evaluateCommand() *cli.Command {
	return &cli.Command{
		Name:  "evaluate",
		Usage: "Score the trained model on the test split",
		Action: e.action("evaluate", func(c *cli.Context, a *leafanalyzer.Analyzer) error {
			if c.NArg() != 0 {
				return fmt.Errorf("expected no arguments")
			}
			eval, err := a.Evaluate(c.Context)
			if err != nil {
				return err
			}
			for _, class := range eval.Classes {
				fmt.Fprintf(e.stdout, "%s: %d/%d (%.2f%%)\n", class.Name, class.Correct, class.Total, 100*class.Accuracy())
			}
			fmt.Fprintf(e.stdout, "Test accuracy: %.2f%%\n", 100*eval.Accuracy())
			fmt.Fprintf(e.stdout, "Test loss: %.4f\n", eval.Loss)
			return nil
		}),
	}
}
