package ocr

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildReadResultSchema returns the JSON-Schema of a Read analyzeResults payload,
// limited to the fields we decode.
func BuildReadResultSchema() map[string]any {
	word := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text":       map[string]any{"type": "string"},
			"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
		"required": []string{"text"},
	}
	line := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text":  map[string]any{"type": "string"},
			"words": map[string]any{"type": "array", "items": word},
		},
		"required": []string{"words"},
	}
	page := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"page":  map[string]any{"type": "integer", "minimum": 1},
			"lines": map[string]any{"type": "array", "items": line},
		},
		"required": []string{"lines"},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"status": map[string]any{
				"type": "string",
				"enum": []string{readStatusNotStarted, readStatusRunning, readStatusFailed, readStatusSucceeded},
			},
			"analyzeResult": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"readResults": map[string]any{"type": "array", "items": page},
				},
				"required": []string{"readResults"},
			},
		},
		"required": []string{"status"},
		// analyzeResult is mandatory once the operation has succeeded.
		"if": map[string]any{
			"properties": map[string]any{"status": map[string]any{"const": readStatusSucceeded}},
		},
		"then": map[string]any{"required": []string{"analyzeResult"}},
	}
}

var readResultSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return compileSchema("read_result.json", BuildReadResultSchema())
})

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// validateReadResult validates a raw poll response against the Read result schema.
func validateReadResult(data []byte) error {
	schema, err := readResultSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
