package schema

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jurraca/req-llm"
)

// ParseBytes parses a YAML schema description. Unknown keys are rejected.
//
//	name: person
//	description: A person record
//	fields:
//	  - name: name
//	    type: string
//	    required: true
//	  - name: tags
//	    type: array
//	    items: {type: string}
func ParseBytes(data []byte) (Schema, error) {
	var s Schema
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Schema{}, fmt.Errorf("%w: %w", reqllm.ErrInvalidSchema, err)
	}
	return s, nil
}

// ParseFile reads and parses a schema file.
func ParseFile(path string) (Schema, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is chosen by the caller
	if err != nil {
		return Schema{}, fmt.Errorf("schema: read file: %w", err)
	}
	return ParseBytes(data)
}

// ParseFS reads and parses a schema from fs.FS (e.g. embed.FS).
func ParseFS(fsys fs.FS, name string) (Schema, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Schema{}, fmt.Errorf("schema: read fs: %w", err)
	}
	return ParseBytes(data)
}

// CompileFile parses the schema file at path and compiles it with toolName.
func CompileFile(path, toolName string) (*Compiled, error) {
	s, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(s, toolName)
}
