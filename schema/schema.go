package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jurraca/req-llm"
)

// DefaultToolName is the synthetic tool name used when Compile is given an empty name.
const DefaultToolName = "structured_output"

const defaultToolDescription = "Return the structured output that matches the schema."

// Schema describes the object a model must return.
type Schema struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Fields      []Field `yaml:"fields"`
}

// Field describes one property. Type is one of: string, integer, pos_integer, non_neg_integer,
// number (float), boolean, object (map), array (list), any.
// Items is required for arrays; Fields is optional for objects (omit for a free-form map).
type Field struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Required bool    `yaml:"required"`
	Doc      string  `yaml:"doc"`
	Enum     []any   `yaml:"enum"`
	Items    *Field  `yaml:"items"`
	Fields   []Field `yaml:"fields"`
}

// Compiled is the result of Compile. Treat it as read-only; it is safe to share between goroutines.
type Compiled struct {
	Schema     Schema
	ToolName   string
	JSONSchema map[string]any // {"type":"object","properties":...,"required":...}
	Tool       reqllm.Tool

	properties string
	validator  *jsonschema.Schema
}

// Compile renders s as a JSON Schema object and wraps it in a synthetic tool named toolName.
// The tool's callback is a no-op: the tool only carries the schema. Returns a *reqllm.SchemaError
// (errors.Is reqllm.ErrInvalidSchema) when s is malformed.
func Compile(s Schema, toolName string) (*Compiled, error) {
	if toolName == "" {
		toolName = DefaultToolName
	}
	if len(s.Fields) == 0 {
		return nil, &reqllm.SchemaError{Reason: "schema has no fields"}
	}
	js, err := objectSchema("", s.Fields)
	if err != nil {
		return nil, err
	}
	props, err := json.MarshalIndent(js["properties"], "", "  ")
	if err != nil {
		return nil, &reqllm.SchemaError{Reason: fmt.Sprintf("render properties: %v", err)}
	}
	validator, err := compileValidator(js)
	if err != nil {
		return nil, err
	}
	desc := s.Description
	if desc == "" {
		desc = defaultToolDescription
	}
	return &Compiled{
		Schema:     s,
		ToolName:   toolName,
		JSONSchema: js,
		Tool: reqllm.Tool{
			Name:        toolName,
			Description: desc,
			Parameters:  js,
			Callback:    func(context.Context, map[string]any) (any, error) { return nil, nil },
		},
		properties: string(props),
		validator:  validator,
	}, nil
}

// Check reports whether c was produced by Compile. A Compiled built as a struct literal
// carries no rendered properties and no validator, and is rejected with a *reqllm.SchemaError.
func (c *Compiled) Check() error {
	if c == nil {
		return &reqllm.SchemaError{Reason: "compiled schema is nil"}
	}
	if c.properties == "" || c.validator == nil {
		return &reqllm.SchemaError{Reason: "compiled schema was not built by schema.Compile"}
	}
	return nil
}

// PropertiesJSON returns the "properties" object of the JSON Schema, pretty-printed with two-space indent.
func (c *Compiled) PropertiesJSON() string {
	return c.properties
}

// FieldNames returns the top-level field names in declaration order.
func (c *Compiled) FieldNames() []string {
	out := make([]string, 0, len(c.Schema.Fields))
	for _, f := range c.Schema.Fields {
		out = append(out, f.Name)
	}
	return out
}

func objectSchema(path string, fields []Field) (map[string]any, error) {
	props := make(map[string]any, len(fields))
	var required []string
	for i, f := range fields {
		fieldPath := joinPath(path, f.Name)
		if f.Name == "" {
			return nil, &reqllm.SchemaError{Path: joinPath(path, "["+strconv.Itoa(i)+"]"), Reason: "field name must not be empty"}
		}
		if _, dup := props[f.Name]; dup {
			return nil, &reqllm.SchemaError{Path: fieldPath, Reason: "duplicate field name"}
		}
		fs, err := fieldSchema(fieldPath, f)
		if err != nil {
			return nil, err
		}
		props[f.Name] = fs
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	// No required fields means an all-optional object; the key is omitted rather than emitted empty.
	if len(required) > 0 {
		out["required"] = required
	}
	return out, nil
}

func fieldSchema(path string, f Field) (map[string]any, error) {
	var out map[string]any
	switch f.Type {
	case "string":
		out = map[string]any{"type": "string"}
	case "integer":
		out = map[string]any{"type": "integer"}
	case "pos_integer":
		out = map[string]any{"type": "integer", "minimum": 1}
	case "non_neg_integer":
		out = map[string]any{"type": "integer", "minimum": 0}
	case "number", "float":
		out = map[string]any{"type": "number"}
	case "boolean":
		out = map[string]any{"type": "boolean"}
	case "object", "map":
		if len(f.Fields) == 0 {
			out = map[string]any{"type": "object"}
			break
		}
		nested, err := objectSchema(path, f.Fields)
		if err != nil {
			return nil, err
		}
		out = nested
	case "array", "list":
		if f.Items == nil {
			return nil, &reqllm.SchemaError{Path: path, Reason: "array field requires items"}
		}
		items, err := fieldSchema(path+"[]", *f.Items)
		if err != nil {
			return nil, err
		}
		out = map[string]any{"type": "array", "items": items}
	case "any":
		out = map[string]any{}
	case "":
		return nil, &reqllm.SchemaError{Path: path, Reason: "missing type"}
	default:
		return nil, &reqllm.SchemaError{Path: path, Reason: fmt.Sprintf("unknown type %q", f.Type)}
	}
	if f.Doc != "" {
		out["description"] = f.Doc
	}
	if len(f.Enum) > 0 {
		out["enum"] = f.Enum
	}
	return out, nil
}

func compileValidator(js map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(js)
	if err != nil {
		return nil, &reqllm.SchemaError{Reason: fmt.Sprintf("marshal JSON schema: %v", err)}
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(raw)); err != nil {
		return nil, &reqllm.SchemaError{Reason: fmt.Sprintf("add schema resource: %v", err)}
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, &reqllm.SchemaError{Reason: fmt.Sprintf("compile JSON schema: %v", err)}
	}
	return compiled, nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	if name != "" && name[0] == '[' {
		return parent + name
	}
	return parent + "." + name
}
