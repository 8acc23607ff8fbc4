// Package presenter renders user-facing CLI output: step outcomes,
// proposals awaiting confirmation, warnings and errors, with color support
// and a quiet mode.
package presenter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// ColorEnv selects the color mode: always, never or auto
const ColorEnv = "PEPPER_COLOR"

// Presenter is the output surface used by the CLI
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Section(title string)
	Step(name, state, detail string)
	Proposal(text string)
	Confirm(question string) bool
	Separator()
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// ColorMode controls colored output
type ColorMode int

const (
	// ColorAuto leaves detection to the terminal
	ColorAuto ColorMode = iota
	// ColorAlways forces color
	ColorAlways
	// ColorNever disables color
	ColorNever
)

// TerminalPresenter writes to a terminal or any pair of writers
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	input       *bufio.Reader
	quiet       bool
}

// New creates a TerminalPresenter on the standard streams
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, os.Stdin, DetectColorMode())
}

// NewWithOptions creates a TerminalPresenter with explicit streams
func NewWithOptions(output, errorOutput io.Writer, input io.Reader, mode ColorMode) *TerminalPresenter {
	switch mode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	}

	p := &TerminalPresenter{output: output, errorOutput: errorOutput}
	if input != nil {
		p.input = bufio.NewReader(input)
	}
	return p
}

// DetectColorMode reads NO_COLOR and PEPPER_COLOR
func DetectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}
	switch os.Getenv(ColorEnv) {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Error writes err to the error stream. It is shown even in quiet mode.
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}
	c := color.New(color.FgRed, color.Bold)
	if context != "" {
		c.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
		return
	}
	c.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
}

// Success writes a success line
func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

// Warning writes a warning line
func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.output, "⚠ %s\n", message)
}

// Info writes plain text
func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.output, message)
}

// Section writes an underlined header
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}
	c := color.New(color.Bold)
	c.Fprintln(p.output, title)
	c.Fprintln(p.output, strings.Repeat("-", len(title)))
}

// Step writes the state of one step, e.g. "✓ build (shell)"
func (p *TerminalPresenter) Step(name, state, detail string) {
	if p.quiet {
		return
	}

	var c *color.Color
	mark := "•"
	switch state {
	case "succeeded":
		c, mark = color.New(color.FgGreen), "✓"
	case "failed":
		c, mark = color.New(color.FgRed), "✗"
	case "halted":
		c, mark = color.New(color.FgCyan), "⏸"
	default:
		c = color.New(color.Faint)
	}

	if detail != "" {
		c.Fprintf(p.output, "%s %s (%s)\n", mark, name, detail)
		return
	}
	c.Fprintf(p.output, "%s %s\n", mark, name)
}

// Proposal writes the text of a halted run. It is shown even in quiet
// mode since the run cannot continue without it.
func (p *TerminalPresenter) Proposal(text string) {
	c := color.New(color.FgCyan, color.Bold)
	c.Fprintln(p.output, strings.Repeat("=", 60))
	c.Fprintln(p.output, text)
	c.Fprintln(p.output, strings.Repeat("=", 60))
}

// Confirm asks a yes/no question and reads the answer. Anything other
// than y or yes, including a read failure, is a no.
func (p *TerminalPresenter) Confirm(question string) bool {
	if p.input == nil {
		return false
	}
	color.New(color.FgCyan).Fprintf(p.output, "%s [y/N]: ", question)

	answer, err := p.input.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// Separator writes a faint rule
func (p *TerminalPresenter) Separator() {
	if p.quiet {
		return
	}
	color.New(color.Faint).Fprintln(p.output, strings.Repeat("-", 60))
}

// SetQuiet toggles quiet mode
func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// IsQuiet reports quiet mode
func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

var defaultPresenter Presenter = New()

// SetDefault replaces the presenter used by the package-level functions
func SetDefault(p Presenter) Presenter {
	prev := defaultPresenter
	defaultPresenter = p
	return prev
}

// Error writes to the default presenter
func Error(err error, context string) { defaultPresenter.Error(err, context) }

// Success writes to the default presenter
func Success(message string) { defaultPresenter.Success(message) }

// Warning writes to the default presenter
func Warning(message string) { defaultPresenter.Warning(message) }

// Info writes to the default presenter
func Info(message string) { defaultPresenter.Info(message) }

// Section writes to the default presenter
func Section(title string) { defaultPresenter.Section(title) }

// Step writes to the default presenter
func Step(name, state, detail string) { defaultPresenter.Step(name, state, detail) }

// Proposal writes to the default presenter
func Proposal(text string) { defaultPresenter.Proposal(text) }

// Confirm asks through the default presenter
func Confirm(question string) bool { return defaultPresenter.Confirm(question) }

// Separator writes to the default presenter
func Separator() { defaultPresenter.Separator() }

// SetQuiet toggles quiet mode on the default presenter
func SetQuiet(quiet bool) { defaultPresenter.SetQuiet(quiet) }

// IsQuiet reports quiet mode of the default presenter
func IsQuiet() bool { return defaultPresenter.IsQuiet() }
