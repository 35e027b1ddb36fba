// Package schema compiles object descriptions into JSON Schema and a synthetic
// "structured_output" tool, loads descriptions from YAML, and validates decoded
// objects against the compiled schema.
package schema
