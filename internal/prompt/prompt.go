// Package prompt reads validated answers from an interactive user.
//
// Every question goes through one bounded loop: read a line, run the
// validator, and on a recoverable error (bad input, wrong password) show the
// error and ask again. Other errors end the loop immediately.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

// DefaultMaxAttempts bounds how often a question is repeated.
const DefaultMaxAttempts = 3

// ErrClosed is returned when input ends before an answer was read.
var ErrClosed = errors.New("input closed")

// Validator checks an answer. Recoverable errors cause a re-prompt.
type Validator func(answer string) error

// Prompter asks questions on out and reads answers from in.
type Prompter struct {
	in          *bufio.Reader
	fd          int
	tty         bool
	out         io.Writer
	maxAttempts int
}

// Option configures a Prompter.
type Option func(*Prompter)

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(p *Prompter) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// New returns a prompter. Hidden input uses the terminal only when in is a
// terminal file; otherwise secrets are read as plain lines.
func New(in io.Reader, out io.Writer, opts ...Option) *Prompter {
	p := &Prompter{
		in:          bufio.NewReader(in),
		out:         out,
		maxAttempts: DefaultMaxAttempts,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115: fd fits in int
		p.fd = int(f.Fd()) //nolint:gosec // G115: fd fits in int
		p.tty = true
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ask repeats label until validate accepts the trimmed answer, a
// non-recoverable error occurs, or the attempts run out. The last error is
// returned in the latter two cases.
func (p *Prompter) Ask(label string, validate Validator) (string, error) {
	return p.ask(label, false, validate)
}

// AskSecret is Ask with hidden input.
func (p *Prompter) AskSecret(label string, validate Validator) (string, error) {
	return p.ask(label, true, validate)
}

func (p *Prompter) ask(label string, hidden bool, validate Validator) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		answer, err := p.read(label, hidden)
		if err != nil {
			return "", err
		}
		if validate == nil {
			return answer, nil
		}

		err = validate(answer)
		if err == nil {
			return answer, nil
		}
		if !satchelerr.Recoverable(err) {
			return "", err
		}
		lastErr = err
		p.reject(err, p.maxAttempts-attempt)
	}
	return "", lastErr
}

func (p *Prompter) reject(err error, left int) {
	msg := "  " + err.Error()
	if s := satchelerr.Suggestion(err); s != "" {
		msg += "\n  " + s
	}
	if left > 0 {
		msg += fmt.Sprintf("\n  (%d attempt(s) left)", left)
	}
	_, _ = fmt.Fprintln(p.out, msg)
}

// Password asks for a hidden password. An empty answer is re-prompted.
func (p *Prompter) Password(label string) (string, error) {
	return p.AskSecret(label, nonEmpty)
}

// NewPassword asks for a password twice. validate runs on the first entry; a
// mismatch starts over.
func (p *Prompter) NewPassword(validate Validator) (string, error) {
	var first string
	_, err := p.ask("New password", true, func(pw string) error {
		if validate != nil {
			if err := validate(pw); err != nil {
				return err
			}
		}
		confirm, err := p.read("Confirm password", true)
		if err != nil {
			return err
		}
		if confirm != pw {
			return satchelerr.WithSuggestion(satchelerr.ErrInvalidInput, "passwords do not match")
		}
		first = pw
		return nil
	})
	if err != nil {
		return "", err
	}
	return first, nil
}

// Confirm asks a yes/no question. An empty answer selects def.
func (p *Prompter) Confirm(label string, def bool) (bool, error) {
	hint := " [y/N]"
	if def {
		hint = " [Y/n]"
	}

	var yes bool
	_, err := p.Ask(label+hint, func(answer string) error {
		switch strings.ToLower(answer) {
		case "":
			yes = def
		case "y", "yes":
			yes = true
		case "n", "no":
			yes = false
		default:
			return satchelerr.WithSuggestion(satchelerr.ErrInvalidInput, "answer y or n")
		}
		return nil
	})
	return yes, err
}

// Select lists options numbered from 1 and returns the chosen index.
func (p *Prompter) Select(label string, options []string) (int, error) {
	if len(options) == 0 {
		return -1, satchelerr.WithDetails(satchelerr.ErrInvalidInput, map[string]string{"reason": "nothing to choose from"})
	}

	_, _ = fmt.Fprintln(p.out, label)
	for i, o := range options {
		_, _ = fmt.Fprintf(p.out, "  %d) %s\n", i+1, o)
	}

	choice := -1
	_, err := p.Ask("Choice", func(answer string) error {
		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > len(options) {
			return satchelerr.WithSuggestion(satchelerr.ErrInvalidInput,
				fmt.Sprintf("enter a number from 1 to %d", len(options)))
		}
		choice = n - 1
		return nil
	})
	return choice, err
}

func (p *Prompter) read(label string, hidden bool) (string, error) {
	_, _ = fmt.Fprintf(p.out, "%s: ", label)

	if hidden && p.tty {
		b, err := term.ReadPassword(p.fd)
		_, _ = fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := p.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		if errors.Is(err, io.EOF) {
			return "", ErrClosed
		}
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func nonEmpty(s string) error {
	if s == "" {
		return satchelerr.WithSuggestion(satchelerr.ErrInvalidInput, "a value is required")
	}
	return nil
}
