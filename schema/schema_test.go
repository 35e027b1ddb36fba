package schema

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurraca/req-llm"
)

func personSchema() Schema {
	return Schema{
		Name: "person",
		Fields: []Field{
			{Name: "name", Type: "string", Required: true, Doc: "Full name"},
			{Name: "age", Type: "pos_integer"},
			{Name: "tags", Type: "array", Items: &Field{Type: "string"}},
			{Name: "address", Type: "object", Fields: []Field{
				{Name: "city", Type: "string", Required: true},
				{Name: "zip", Type: "string"},
			}},
		},
	}
}

func TestCompile_JSONSchema(t *testing.T) {
	t.Parallel()
	c, err := Compile(personSchema(), "")
	require.NoError(t, err)
	assert.Equal(t, DefaultToolName, c.ToolName)
	assert.Equal(t, "object", c.JSONSchema["type"])
	assert.Equal(t, []string{"name"}, c.JSONSchema["required"])

	props, ok := c.JSONSchema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, props, 4)
	assert.Equal(t, map[string]any{"type": "string", "description": "Full name"}, props["name"])
	assert.Equal(t, map[string]any{"type": "integer", "minimum": 1}, props["age"])
	assert.Equal(t, map[string]any{"type": "array", "items": map[string]any{"type": "string"}}, props["tags"])

	address, ok := props["address"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"city"}, address["required"])
}

func TestCompile_PropertiesJSONRoundTrip(t *testing.T) {
	t.Parallel()
	c, err := Compile(personSchema(), "person_tool")
	require.NoError(t, err)

	text := c.PropertiesJSON()
	assert.True(t, json.Valid([]byte(text)))
	assert.Contains(t, text, "\n  \"address\": {")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	keys := make([]string, 0, len(decoded))
	for k := range decoded {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, c.FieldNames(), keys)
}

func TestCompile_AllOptionalOmitsRequired(t *testing.T) {
	t.Parallel()
	c, err := Compile(Schema{Fields: []Field{
		{Name: "a", Type: "string"},
		{Name: "b", Type: "boolean"},
	}}, "")
	require.NoError(t, err)
	_, has := c.JSONSchema["required"]
	assert.False(t, has)
	assert.NoError(t, c.Validate(map[string]any{}))
}

func TestCompile_Tool(t *testing.T) {
	t.Parallel()
	c, err := Compile(Schema{Description: "A person", Fields: []Field{{Name: "name", Type: "string"}}}, "emit_person")
	require.NoError(t, err)
	assert.Equal(t, "emit_person", c.Tool.Name)
	assert.Equal(t, "A person", c.Tool.Description)
	assert.Equal(t, c.JSONSchema, c.Tool.Parameters)
	require.NotNil(t, c.Tool.Callback)
	out, err := c.Tool.Callback(context.Background(), map[string]any{"name": "Ada"})
	assert.NoError(t, err)
	assert.Nil(t, out)
}

func TestCompile_Malformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		schema Schema
		path   string
	}{
		{"no fields", Schema{}, ""},
		{"empty name", Schema{Fields: []Field{{Type: "string"}}}, "[0]"},
		{"duplicate", Schema{Fields: []Field{{Name: "a", Type: "string"}, {Name: "a", Type: "integer"}}}, "a"},
		{"unknown type", Schema{Fields: []Field{{Name: "a", Type: "tuple"}}}, "a"},
		{"missing type", Schema{Fields: []Field{{Name: "a"}}}, "a"},
		{"array without items", Schema{Fields: []Field{{Name: "list", Type: "array"}}}, "list"},
		{"nested", Schema{Fields: []Field{{Name: "addr", Type: "object", Fields: []Field{{Name: "zip", Type: "zipcode"}}}}}, "addr.zip"},
		{"bad items", Schema{Fields: []Field{{Name: "xs", Type: "list", Items: &Field{Type: "nope"}}}}, "xs[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := Compile(tt.schema, "")
			require.Error(t, err)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, reqllm.ErrInvalidSchema)
			var se *reqllm.SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.path, se.Path)
		})
	}
}

func TestCompiled_Validate(t *testing.T) {
	t.Parallel()
	c, err := Compile(Schema{Fields: []Field{
		{Name: "name", Type: "string", Required: true},
		{Name: "age", Type: "pos_integer"},
		{Name: "color", Type: "string", Enum: []any{"red", "green"}},
	}}, "")
	require.NoError(t, err)

	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{"valid", map[string]any{"name": "Ada", "age": float64(36)}, true},
		{"missing required", map[string]any{"age": float64(3)}, false},
		{"wrong type", map[string]any{"name": 12.0}, false},
		{"below minimum", map[string]any{"name": "Ada", "age": float64(0)}, false},
		{"enum miss", map[string]any{"name": "Ada", "color": "blue"}, false},
		{"struct value", struct {
			Name string `json:"name"`
		}{Name: "Ada"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := c.Validate(tt.value)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, reqllm.ErrSchemaMismatch)
		})
	}
}

func TestCompiled_CheckRejectsLiteral(t *testing.T) {
	t.Parallel()
	c, err := Compile(personSchema(), "")
	require.NoError(t, err)
	require.NoError(t, c.Check())

	var nilCompiled *Compiled
	require.ErrorIs(t, nilCompiled.Check(), reqllm.ErrInvalidSchema)

	literal := &Compiled{ToolName: "x", JSONSchema: c.JSONSchema}
	require.ErrorIs(t, literal.Check(), reqllm.ErrInvalidSchema)
	assert.NotPanics(t, func() { err = literal.Validate(map[string]any{"name": "Ada"}) })
	require.ErrorIs(t, err, reqllm.ErrInvalidSchema)
}
