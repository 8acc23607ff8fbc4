package skills

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const frontmatterDelimiter = "---"

var (
	fieldLinePattern  = regexp.MustCompile(`^([a-zA-Z0-9_-]+):\s*(.*)$`)
	stepMarkerPattern = regexp.MustCompile(`^##\s+(.*)$`)
)

// ParseError reports a skill document that is structurally malformed
type ParseError struct {
	Source string
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("failed to parse skill %s: line %d: %s", e.Source, e.Line, e.Reason)
	}
	return fmt.Sprintf("failed to parse skill %s: %s", e.Source, e.Reason)
}

// Parse turns the content of a skill document into a Skill. id is the
// identity of the source, normally the file name without extension. Parse
// performs no I/O.
func Parse(id string, content []byte) (*Skill, error) {
	if !utf8.Valid(content) {
		return nil, &ParseError{Source: id, Reason: "document is not valid UTF-8"}
	}

	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")

	metadata, bodyStart, err := splitFrontmatter(id, lines)
	if err != nil {
		return nil, err
	}

	skill := &Skill{
		ID:          id,
		Name:        id,
		Description: "",
		Version:     DefaultVersion,
		Metadata:    map[string]any{},
		Steps:       []Step{},
	}
	for key, value := range metadata {
		switch key {
		case "name":
			if s := FormatScalar(value); s != "" {
				skill.Name = s
			}
		case "description":
			skill.Description = FormatScalar(value)
		case "version":
			if s := FormatScalar(value); s != "" {
				skill.Version = s
			}
		default:
			skill.Metadata[key] = value
		}
	}

	steps, err := parseSteps(id, lines, bodyStart)
	if err != nil {
		return nil, err
	}
	skill.Steps = steps

	return skill, nil
}

// splitFrontmatter parses the leading frontmatter block, if any, and returns
// the index of the first body line
func splitFrontmatter(id string, lines []string) (map[string]any, int, error) {
	if len(lines) == 0 || strings.TrimRight(lines[0], " \t") != frontmatterDelimiter {
		return map[string]any{}, 0, nil
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t") == frontmatterDelimiter {
			return parseFrontmatter(lines[1:i]), i + 1, nil
		}
	}

	return nil, 0, &ParseError{Source: id, Line: 1, Reason: "frontmatter is not terminated by '---'"}
}

// parseFrontmatter coerces every key except the identity fields, which
// keep their text so that `version: 1.0` stays "1.0"
func parseFrontmatter(lines []string) map[string]any {
	raw := scanFieldBlock(lines)
	result := make(map[string]any, len(raw))
	for key, field := range raw {
		switch {
		case key == "name" || key == "description" || key == "version":
			result[key] = field.value
		case field.inline:
			result[key] = coerceValue(field.value)
		default:
			result[key] = field.value
		}
	}
	return result
}

func parseSteps(id string, lines []string, start int) ([]Step, error) {
	steps := []Step{}
	seen := map[string]int{}

	name := ""
	nameLine := 0
	var block []string
	flush := func() {
		if nameLine == 0 {
			return
		}
		fields := parseFieldBlock(block)
		stepType := StepTypeUnknown
		if t, ok := fields["type"]; ok {
			if s := FormatScalar(t); s != "" {
				stepType = StepType(s)
			}
		}
		steps = append(steps, Step{Name: name, Type: stepType, Fields: fields})
	}

	for i := start; i < len(lines); i++ {
		line := lines[i]
		m := stepMarkerPattern.FindStringSubmatch(line)
		if m == nil {
			if nameLine != 0 {
				block = append(block, line)
			}
			continue
		}

		stepName := strings.TrimSpace(m[1])
		if stepName == "" {
			return nil, &ParseError{Source: id, Line: i + 1, Reason: "step marker has no name"}
		}
		if prev, dup := seen[stepName]; dup {
			return nil, &ParseError{
				Source: id,
				Line:   i + 1,
				Reason: fmt.Sprintf("duplicate step name %q (first defined on line %d)", stepName, prev),
			}
		}
		seen[stepName] = i + 1

		flush()
		name = stepName
		nameLine = i + 1
		block = nil
	}
	flush()

	return steps, nil
}

type rawField struct {
	value  string
	inline bool
}

// parseFieldBlock parses the flat key/value grammar shared by frontmatter
// and step sections and coerces inline values
func parseFieldBlock(lines []string) map[string]any {
	raw := scanFieldBlock(lines)
	result := make(map[string]any, len(raw))
	for key, field := range raw {
		if field.inline {
			result[key] = coerceValue(field.value)
		} else {
			result[key] = field.value
		}
	}
	return result
}

// scanFieldBlock splits a field block into keys and their raw text. A key
// with no inline value opens a multi-line value that runs until the next
// key line.
func scanFieldBlock(lines []string) map[string]rawField {
	result := map[string]rawField{}

	currentKey := ""
	var multiline []string
	flush := func() {
		if currentKey != "" && len(multiline) > 0 {
			result[currentKey] = rawField{value: strings.TrimSpace(strings.Join(multiline, "\n"))}
		}
		currentKey = ""
		multiline = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if m := fieldLinePattern.FindStringSubmatch(trimmed); m != nil {
			flush()
			key, value := m[1], m[2]
			if value == "" {
				currentKey = key
				result[key] = rawField{}
				continue
			}
			result[key] = rawField{value: value, inline: true}
			continue
		}

		if currentKey != "" {
			multiline = append(multiline, line)
		}
	}
	flush()

	return result
}

// coerceValue converts an inline value to bool, number or string, in that
// order of priority
func coerceValue(value string) any {
	switch value {
	case "true":
		return true
	case "false":
		return false
	}

	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if looksDecimal(value) {
		if f, err := strconv.ParseFloat(value, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return f
		}
	}

	return value
}

// looksDecimal rejects forms ParseFloat accepts that are not plain decimal
// notation, such as hex floats, "Inf" or underscores
func looksDecimal(value string) bool {
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9':
		case r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return false
		}
	}
	return true
}

// FormatScalar renders a coerced field value the way it was written:
// integral numbers without a fractional part, bools as true/false
func FormatScalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
