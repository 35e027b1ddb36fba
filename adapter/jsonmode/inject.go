package jsonmode

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/jurraca/req-llm"
	"github.com/jurraca/req-llm/schema"
)

// DefaultMaxTokens is the token budget set for object requests that carry no max_tokens.
const DefaultMaxTokens = 4096

var instructionTmpl = template.Must(template.New("schema_instruction").Parse(
	`You must respond with a single JSON object that strictly matches the following JSON Schema properties.
Do not include any text, explanation or markdown outside the JSON object.

{{.Properties}}`))

// Instruction renders the schema instruction that object requests append to the system prompt.
// The pretty-printed properties object is embedded verbatim.
func Instruction(compiled *schema.Compiled) (string, error) {
	if err := compiled.Check(); err != nil {
		return "", err
	}
	var b strings.Builder
	if err := instructionTmpl.Execute(&b, struct{ Properties string }{compiled.PropertiesJSON()}); err != nil {
		return "", fmt.Errorf("jsonmode: render instruction: %w", err)
	}
	return b.String(), nil
}

// InjectSchema returns a copy of opts prepared for an object request:
// the instruction becomes or extends the system prompt (caller text first, then two newlines),
// response_format is json_object, max_tokens defaults to DefaultMaxTokens,
// and operation and compiled_schema are set. opts itself is never modified.
// A max_tokens value that is not a number is a *reqllm.ParameterError.
func InjectSchema(opts reqllm.Options, compiled *schema.Compiled) (reqllm.Options, error) {
	instruction, err := Instruction(compiled)
	if err != nil {
		return reqllm.Options{}, err
	}
	system := instruction
	if existing, ok := opts.String(reqllm.OptionSystemPrompt); ok && existing != "" {
		system = existing + "\n\n" + instruction
	}
	out := opts.
		With(reqllm.OptionSystemPrompt, system).
		With(reqllm.OptionResponseFormat, reqllm.ResponseFormatJSONObject)
	if v, ok := out.Get(reqllm.OptionMaxTokens); !ok {
		out = out.With(reqllm.OptionMaxTokens, DefaultMaxTokens)
	} else if _, ok := out.Int64(reqllm.OptionMaxTokens); !ok {
		return reqllm.Options{}, &reqllm.ParameterError{Name: reqllm.OptionMaxTokens, Value: v, Reason: "must be an integer"}
	}
	return out.
		With(reqllm.OptionOperation, reqllm.OperationObject).
		With(reqllm.OptionCompiledSchema, compiled), nil
}

// resolveSchema finds the schema for an object request: a *schema.Compiled under compiled_schema,
// or a schema.Schema under schema compiled on the spot.
func resolveSchema(opts reqllm.Options) (*schema.Compiled, error) {
	if v, ok := opts.Get(reqllm.OptionCompiledSchema); ok {
		if c, ok := v.(*schema.Compiled); ok && c != nil {
			if err := c.Check(); err != nil {
				return nil, err
			}
			return c, nil
		}
		return nil, &reqllm.SchemaError{Reason: fmt.Sprintf("option %q holds %T, want *schema.Compiled", reqllm.OptionCompiledSchema, v)}
	}
	v, ok := opts.Get(reqllm.OptionSchema)
	if !ok {
		return nil, &reqllm.SchemaError{Reason: "object operation requires a schema option"}
	}
	switch s := v.(type) {
	case schema.Schema:
		return schema.Compile(s, "")
	case *schema.Schema:
		if s == nil {
			return nil, &reqllm.SchemaError{Reason: "schema option is nil"}
		}
		return schema.Compile(*s, "")
	default:
		return nil, &reqllm.SchemaError{Reason: fmt.Sprintf("option %q holds %T, want schema.Schema", reqllm.OptionSchema, v)}
	}
}
