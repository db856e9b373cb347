package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/phuslu/log"
	"github.com/urfave/cli/v2"

	leafanalyzer "github.com/menta2k/leaf-analyzer"
	"github.com/menta2k/leaf-analyzer/internal/config"
)

const appName = "leaf-analyzer"

// commandError remembers which subcommand failed
type commandError struct {
	command string
	err     error
}

func (e *commandError) Error() string { return e.err.Error() }

func (e *commandError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	app := newApp(stdin, stdout, stderr)
	if err := app.Run(args); err != nil {
		command := appName
		var cmdErr *commandError
		if errors.As(err, &cmdErr) {
			command = appName + " " + cmdErr.command
		}
		fmt.Fprintf(stderr, "%s: error: %s\n", command, leafanalyzer.UserMessage(err))
		return 1
	}
	return 0
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	env := &environment{stdin: stdin, stdout: stdout, stderr: stderr}
	return &cli.App{
		Name:      appName,
		Usage:     "Prepare leaf disease datasets and inspect leaf images",
		Version:   leafanalyzer.Version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a YAML or JSON configuration file",
				Aliases: []string{"c"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: trace, debug, info, warn, error",
				Value: "info",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Usage:   "Answer yes to every overwrite confirmation",
				Aliases: []string{"y"},
			},
		},
		Before: env.setup,
		Commands: []*cli.Command{
			env.distributionCommand(),
			env.augmentCommand(),
			env.transformCommand(),
			env.balanceCommand(),
			env.trainCommand(),
			env.predictCommand(),
			env.evaluateCommand(),
		},
	}
}

// environment carries the streams and the configuration shared by commands
type environment struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	config *config.Config
}

// setup loads the configuration and configures the default logger
func (e *environment) setup(c *cli.Context) error {
	setupLogger(c.String("log-level"), e.stderr)

	path := c.String("config")
	if path == "" {
		if candidate := config.GetConfigPath(); fileExists(candidate) {
			path = candidate
		}
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return err
		}
		cfg = loaded
		log.Debug().Str("path", path).Msg("configuration loaded")
	}
	if c.Bool("yes") {
		cfg.Prompt.AssumeYes = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	e.config = cfg
	return nil
}

func setupLogger(level string, w io.Writer) {
	var writer log.Writer = &log.IOWriter{Writer: w}
	if isTerminal(w) {
		writer = &log.ConsoleWriter{Writer: w, ColorOutput: true, EndWithMessage: true}
	}
	log.DefaultLogger = log.Logger{
		Level:      log.ParseLevel(level),
		TimeFormat: "15:04:05",
		Writer:     writer,
	}
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
