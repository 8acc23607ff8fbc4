package runner

import (
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// PolicyDefaultAllow names the gate's policy: commands matching neither the
// deny list nor the allow list run anyway, with a warning.
const PolicyDefaultAllow = "default-allow"

var (
	// DefaultAllowPrefixes are commands that pass the gate silently
	DefaultAllowPrefixes = []string{"git ", "npm test"}
	// DefaultDenySubstrings block any command containing them
	DefaultDenySubstrings = []string{"rm -rf /"}
	// DefaultDenyPatterns catch the flag spellings of a recursive forced
	// removal of an absolute path. A single * stays within one word.
	DefaultDenyPatterns = []string{
		"rm -*{r,R}*f* /**",
		"rm -*f*{r,R}* /**",
		"rm -*{r,R}* -*f* /**",
		"rm -*f* -*{r,R}* /**",
	}
)

// Decision is the outcome of a command that was not blocked
type Decision int

const (
	// Allowed means every sub-command matched the allow list
	Allowed Decision = iota
	// Unchecked means the command runs under PolicyDefaultAllow
	Unchecked
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "unchecked"
}

// Gate decides whether a shell command may run
type Gate struct {
	allowPrefixes  []string
	allowPatterns  []glob.Glob
	denySubstrings []string
	defaultDeny    []glob.Glob
	denyPatterns   []glob.Glob
}

// GateOption configures a Gate
type GateOption func(*Gate) error

// WithAllowPrefixes replaces the default allow prefixes
func WithAllowPrefixes(prefixes ...string) GateOption {
	return func(g *Gate) error {
		g.allowPrefixes = prefixes
		return nil
	}
}

// WithDenySubstrings replaces the default deny list, including
// DefaultDenyPatterns
func WithDenySubstrings(substrings ...string) GateOption {
	return func(g *Gate) error {
		g.denySubstrings = substrings
		g.defaultDeny = nil
		return nil
	}
}

// WithAllowPatterns adds glob patterns such as "make *" to the allow list
func WithAllowPatterns(patterns ...string) GateOption {
	return func(g *Gate) error {
		compiled, err := compilePatterns(patterns)
		if err != nil {
			return err
		}
		g.allowPatterns = append(g.allowPatterns, compiled...)
		return nil
	}
}

// WithDenyPatterns adds glob patterns such as "curl * | sh" to the deny list
func WithDenyPatterns(patterns ...string) GateOption {
	return func(g *Gate) error {
		compiled, err := compilePatterns(patterns)
		if err != nil {
			return err
		}
		g.denyPatterns = append(g.denyPatterns, compiled...)
		return nil
	}
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid command pattern %q", p)
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// NewGate creates a gate with the default lists, modified by opts
func NewGate(opts ...GateOption) (*Gate, error) {
	g := &Gate{
		allowPrefixes:  append([]string(nil), DefaultAllowPrefixes...),
		denySubstrings: append([]string(nil), DefaultDenySubstrings...),
	}
	for _, p := range DefaultDenyPatterns {
		compiled, err := glob.Compile(p, ' ')
		if err != nil {
			return nil, errors.Wrapf(err, "invalid default deny pattern %q", p)
		}
		g.defaultDeny = append(g.defaultDeny, compiled)
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Check evaluates a resolved command. Deny rules win over allow rules and
// return a SecurityViolation. Anything not on the allow list is Unchecked.
// Runs of whitespace count as a single space.
func (g *Gate) Check(command string) (Decision, error) {
	trimmed := strings.Join(strings.Fields(command), " ")
	subCommands := splitCommands(trimmed)

	for _, deny := range g.denySubstrings {
		if deny != "" && strings.Contains(trimmed, deny) {
			return Unchecked, &SecurityViolation{Command: command}
		}
	}
	for _, pattern := range slices.Concat(g.defaultDeny, g.denyPatterns) {
		if pattern.Match(trimmed) {
			return Unchecked, &SecurityViolation{Command: command}
		}
		for _, sub := range subCommands {
			if pattern.Match(sub) {
				return Unchecked, &SecurityViolation{Command: command}
			}
		}
	}

	if len(subCommands) == 0 {
		return Unchecked, nil
	}
	for _, sub := range subCommands {
		if !g.allowed(sub) {
			return Unchecked, nil
		}
	}
	return Allowed, nil
}

func (g *Gate) allowed(command string) bool {
	for _, prefix := range g.allowPrefixes {
		if prefix != "" && strings.HasPrefix(command, prefix) {
			return true
		}
	}
	for _, pattern := range g.allowPatterns {
		if pattern.Match(command) {
			return true
		}
	}
	return false
}

// splitCommands splits a command line on &&, || and ; and drops empty parts
func splitCommands(command string) []string {
	var parts []string
	for _, andPart := range strings.Split(command, "&&") {
		for _, orPart := range strings.Split(andPart, "||") {
			for _, part := range strings.Split(orPart, ";") {
				if part = strings.TrimSpace(part); part != "" {
					parts = append(parts, part)
				}
			}
		}
	}
	return parts
}
