package reqllm

import (
	"maps"
	"slices"

	"github.com/jurraca/req-llm/internal/cast"
)

// Well-known option keys.
const (
	OptionSystemPrompt   = "system_prompt"
	OptionTemperature    = "temperature"
	OptionMaxTokens      = "max_tokens"
	OptionTopP           = "top_p"
	OptionStop           = "stop"
	OptionOperation      = "operation"
	OptionResponseFormat = "response_format"
	OptionSchema         = "schema"
	OptionCompiledSchema = "compiled_schema"
	OptionTools          = "tools"
)

// ResponseFormatJSONObject is the response_format value requesting JSON-object output.
const ResponseFormatJSONObject = "json_object"

// Options is a persistent ordered key/value set. Every write returns a new set;
// the receiver is never modified, so an Options value can be shared freely.
// The zero value is an empty set.
type Options struct {
	keys   []string
	values map[string]any
}

// KV is a single key/value pair for NewOptions.
type KV struct {
	Key   string
	Value any
}

// NewOptions builds a set from pairs in order. A repeated key keeps its first position and its last value.
func NewOptions(kvs ...KV) Options {
	var o Options
	for _, kv := range kvs {
		o = o.With(kv.Key, kv.Value)
	}
	return o
}

// FromMap builds a set from m with keys in sorted order.
func FromMap(m map[string]any) Options {
	var o Options
	for _, k := range slices.Sorted(maps.Keys(m)) {
		o = o.With(k, m[k])
	}
	return o
}

// With returns a copy of o with key set to value. An existing key keeps its position.
func (o Options) With(key string, value any) Options {
	out := Options{
		keys:   slices.Clone(o.keys),
		values: maps.Clone(o.values),
	}
	if out.values == nil {
		out.values = make(map[string]any, 1)
	}
	if _, exists := out.values[key]; !exists {
		out.keys = append(out.keys, key)
	}
	out.values[key] = value
	return out
}

// Without returns a copy of o with key removed.
func (o Options) Without(key string) Options {
	if !o.Has(key) {
		return o
	}
	out := Options{
		keys:   slices.DeleteFunc(slices.Clone(o.keys), func(k string) bool { return k == key }),
		values: maps.Clone(o.values),
	}
	delete(out.values, key)
	return out
}

// Merge returns o overlaid with other; on conflicting keys the value from other wins.
func (o Options) Merge(other Options) Options {
	out := o
	for _, k := range other.keys {
		out = out.With(k, other.values[k])
	}
	return out
}

// Get returns the value stored under key.
func (o Options) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is set.
func (o Options) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (o Options) Keys() []string {
	return slices.Clone(o.keys)
}

// Len returns the number of keys.
func (o Options) Len() int {
	return len(o.keys)
}

// Map returns a copy of the set as a plain map.
func (o Options) Map() map[string]any {
	return maps.Clone(o.values)
}

// String returns the value under key if it is a string.
func (o Options) String(key string) (string, bool) {
	s, ok := o.values[key].(string)
	return s, ok
}

// Int64 returns the value under key converted to int64. Accepts any numeric type.
func (o Options) Int64(key string) (int64, bool) {
	v, ok := o.values[key]
	if !ok {
		return 0, false
	}
	return cast.ToInt64(v)
}

// Float64 returns the value under key converted to float64. Accepts any numeric type.
func (o Options) Float64(key string) (float64, bool) {
	v, ok := o.values[key]
	if !ok {
		return 0, false
	}
	return cast.ToFloat64(v)
}

// Strings returns the value under key as []string. Accepts []string, []any of strings, or a single string.
func (o Options) Strings(key string) ([]string, bool) {
	v, ok := o.values[key]
	if !ok {
		return nil, false
	}
	return cast.ToStringSlice(v)
}

// Operation returns the operation tag, if set.
func (o Options) Operation() (Operation, bool) {
	switch v := o.values[OptionOperation].(type) {
	case Operation:
		return v, true
	case string:
		return Operation(v), true
	default:
		return "", false
	}
}

// Tools returns the tools under OptionTools.
func (o Options) Tools() []Tool {
	tools, _ := o.values[OptionTools].([]Tool)
	return tools
}
