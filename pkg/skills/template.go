package skills

import (
	"regexp"
	"strings"
)

var referencePattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Reference is a parsed `${path || default}` template expression
type Reference struct {
	Expression string   // text between the braces
	Path       []string // dot-separated lookup path
	Default    string   // default with surrounding quotes stripped
	HasDefault bool     // true when a non-empty default was given
}

// Root returns the first path segment, e.g. "inputs" or "steps"
func (r Reference) Root() string {
	if len(r.Path) == 0 {
		return ""
	}
	return r.Path[0]
}

// ParseReference parses the expression inside `${...}`. Only the first
// `||` alternative is used as the default.
func ParseReference(expression string) Reference {
	parts := strings.Split(expression, "||")

	ref := Reference{
		Expression: expression,
		Path:       strings.Split(strings.TrimSpace(parts[0]), "."),
	}
	if len(parts) > 1 {
		def := strings.TrimSpace(parts[1])
		if def != "" {
			ref.HasDefault = true
			ref.Default = stripQuotes(def)
		}
	}
	return ref
}

// FindReferences returns every reference in a template, in order
func FindReferences(template string) []Reference {
	matches := referencePattern.FindAllStringSubmatch(template, -1)
	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, ParseReference(m[1]))
	}
	return refs
}

// ExpandTemplate replaces every reference with the value returned by
// resolve. Text outside references is left untouched.
func ExpandTemplate(template string, resolve func(Reference) string) string {
	if !strings.Contains(template, "${") {
		return template
	}
	return referencePattern.ReplaceAllStringFunc(template, func(match string) string {
		return resolve(ParseReference(match[2 : len(match)-1]))
	})
}

// stripQuotes removes one leading and one trailing quote character
func stripQuotes(s string) string {
	if len(s) > 0 && (s[0] == '"' || s[0] == '\'') {
		s = s[1:]
	}
	if len(s) > 0 && (s[len(s)-1] == '"' || s[len(s)-1] == '\'') {
		s = s[:len(s)-1]
	}
	return s
}
