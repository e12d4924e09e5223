package tools

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
)

// parameterSchema renders the tool's input schema as a JSON object schema.
func parameterSchema(t mcp.Tool) json.RawMessage {
	props := t.InputSchema.Properties
	if props == nil {
		props = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(t.InputSchema.Required) > 0 {
		schema["required"] = t.InputSchema.Required
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return data
}

// validateArgs checks required arguments and scalar types against the
// declared schema. Unknown arguments are ignored.
func validateArgs(t mcp.Tool, args map[string]any) error {
	var missing []string
	for _, name := range t.InputSchema.Required {
		v, ok := args[name]
		if !ok || v == nil {
			missing = append(missing, name)
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required argument(s): %v", missing)
	}

	for name, v := range args {
		prop, ok := t.InputSchema.Properties[name].(map[string]any)
		if !ok || v == nil {
			continue
		}
		want, _ := prop["type"].(string)
		if !matchesType(want, v) {
			return fmt.Errorf("argument %q must be of type %s, got %T", name, want, v)
		}
	}
	return nil
}

func matchesType(want string, v any) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "number", "integer":
		switch n := v.(type) {
		case float64:
			return want == "number" || n == float64(int64(n))
		case float32, int, int32, int64:
			return true
		case json.Number:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	}
	return true
}
