package agent

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// decompositionSchema constrains the structured decomposition output. The
// model is shown this schema in the prompt and its output is validated
// against it locally before acceptance.
func decompositionSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"ingredients"},
		"properties": map[string]any{
			"ingredients": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"name", "quantity"},
					"properties": map[string]any{
						"name":     map[string]any{"type": "string", "minLength": 1},
						"quantity": map[string]any{"type": "string", "minLength": 1},
					},
				},
			},
		},
	}
}

// estimateSchema constrains the market-estimate output.
func estimateSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"sourceable"},
		"properties": map[string]any{
			"sourceable":         map[string]any{"type": "boolean"},
			"price_per_quantity": map[string]any{"type": []any{"number", "null"}},
			"reasoning":          map[string]any{"type": "string"},
		},
	}
}

// menuSchema constrains the free-text menu parse output.
func menuSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"items"},
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"name"},
					"properties": map[string]any{
						"name":        map[string]any{"type": "string", "minLength": 1},
						"description": map[string]any{"type": "string"},
						"category":    map[string]any{"type": "string"},
					},
				},
			},
		},
	}
}

// validateAgainst validates data against the given schema map.
func validateAgainst(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return eris.Wrap(err, "agent: marshal schema")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return eris.Wrap(err, "agent: add schema resource")
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return eris.Wrap(err, "agent: compile schema")
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return eris.Wrap(err, "agent: output is not valid JSON")
	}
	if err := schema.Validate(v); err != nil {
		return eris.Wrap(err, "agent: output does not match schema")
	}
	return nil
}
