package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// mappingsSchema guards the mappings array on compile and import requests
// before it reaches the compiler.
const mappingsSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["source_field", "target_field"],
		"properties": {
			"source_field":     {"type": "string", "minLength": 1},
			"target_field":     {"type": "string", "minLength": 1},
			"source_type":      {"type": "string"},
			"target_type":      {"type": "string"},
			"transform_type":   {"type": "string", "enum": ["", "direct", "default_value", "lookup", "aggregate", "expression"]},
			"transform_config": {"type": "object", "additionalProperties": {"type": "string"}},
			"required":         {"type": "boolean"}
		}
	}
}`

var mappingsSchemaLoader = gojsonschema.NewStringLoader(mappingsSchema)

// decodeMappings validates the raw mappings payload against the schema and
// decodes it.
func decodeMappings(raw json.RawMessage) ([]wireMapping, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("mappings are required")
	}

	result, err := gojsonschema.Validate(mappingsSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid mappings payload: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return nil, fmt.Errorf("invalid mappings payload: %s", strings.Join(msgs, "; "))
	}

	var wire []wireMapping
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	return wire, nil
}
