package skills

import (
	"sort"

	"github.com/invopop/jsonschema"
)

// ConfirmInput is the reserved input consumed by interactive steps
const ConfirmInput = "confirm"

// InputSchema derives the JSON schema of the inputs a skill reads. Every
// `${inputs.X}` reference found in a step field becomes a string property;
// it is required unless all of its references carry a default. Skills with
// an interactive step also accept the boolean confirm input.
func InputSchema(skill *Skill) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:        "object",
		Title:       skill.Name,
		Description: skill.Description,
		Properties:  jsonschema.NewProperties(),
	}

	// input name -> every reference has a default
	optional := map[string]bool{}
	order := []string{}
	hasInteractive := false

	for _, step := range skill.Steps {
		if step.Type == StepTypeInteractive {
			hasInteractive = true
		}

		keys := make([]string, 0, len(step.Fields))
		for key := range step.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			// mock_output is returned as written, never resolved
			if step.Type == StepTypeGenerate && key == "mock_output" {
				continue
			}
			value, ok := step.Fields[key].(string)
			if !ok {
				continue
			}
			for _, ref := range FindReferences(value) {
				if ref.Root() != "inputs" || len(ref.Path) < 2 || ref.Path[1] == "" {
					continue
				}
				name := ref.Path[1]
				if name == ConfirmInput {
					continue
				}
				prev, seen := optional[name]
				if !seen {
					order = append(order, name)
					optional[name] = ref.HasDefault
					continue
				}
				optional[name] = prev && ref.HasDefault
			}
		}
	}

	for _, name := range order {
		prop := &jsonschema.Schema{Type: "string"}
		schema.Properties.Set(name, prop)
		if !optional[name] {
			schema.Required = append(schema.Required, name)
		}
	}

	if hasInteractive {
		schema.Properties.Set(ConfirmInput, &jsonschema.Schema{
			Type:        "boolean",
			Description: "Confirm the pending proposal of interactive steps",
		})
	}

	return schema
}
