package schema

import (
	"encoding/json"
	"fmt"

	"github.com/jurraca/req-llm"
)

// Validate checks a decoded JSON value against the compiled JSON Schema.
// v should come from encoding/json (maps, slices, float64, string, bool, nil); other
// Go values are normalized through a JSON round trip first.
func (c *Compiled) Validate(v any) error {
	if err := c.Check(); err != nil {
		return err
	}
	norm, err := normalize(v)
	if err != nil {
		return fmt.Errorf("%w: %w", reqllm.ErrSchemaMismatch, err)
	}
	if err := c.validator.Validate(norm); err != nil {
		return fmt.Errorf("%w: %w", reqllm.ErrSchemaMismatch, err)
	}
	return nil
}

func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, map[string]any, []any, string, bool, float64, json.Number:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
