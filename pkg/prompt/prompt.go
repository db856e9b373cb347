// Package prompt asks yes/no questions on a terminal before destructive work.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrDeclined is returned by operations that stop because the user said no.
// It marks a normal early exit, not a failure.
var ErrDeclined = errors.New("operation canceled by user")

// InvalidInputError reports an answer that is neither yes nor no
type InvalidInputError struct {
	Answer string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: please enter 'yes' or 'no'", e.Answer)
}

// Prompter reads answers from In and writes questions to Out
type Prompter struct {
	In         io.Reader
	Out        io.Writer
	MaxRetries int
	AssumeYes  bool

	reader *bufio.Reader
}

// New creates a Prompter on stdin/stderr allowing two invalid answers
func New() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr, MaxRetries: 2}
}

// Confirm asks question until it gets a yes or no. Invalid answers consume
// one retry each; running out of retries or input counts as a no.
func (p *Prompter) Confirm(question string) (bool, error) {
	if p.AssumeYes {
		return true, nil
	}
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}

	for attempt := 0; attempt < p.MaxRetries; attempt++ {
		fmt.Fprintf(p.Out, "%s (yes/no): ", question)

		line, err := p.reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(p.Out)
				return false, nil
			}
			return false, fmt.Errorf("failed to read answer: %w", err)
		}

		ok, perr := parseAnswer(line)
		if perr == nil {
			return ok, nil
		}
		fmt.Fprintf(p.Out, "Error: %v\n", perr)
	}

	fmt.Fprintln(p.Out, "Too many invalid attempts.")
	return false, nil
}

func parseAnswer(line string) (bool, error) {
	answer := strings.ToLower(strings.TrimSpace(line))
	switch answer {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	return false, &InvalidInputError{Answer: answer}
}
