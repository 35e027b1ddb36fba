package reqllm

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for request compilation and response decoding.
// All use prefix "reqllm:" for identification. Callers should use errors.Is/errors.As.
var (
	ErrInvalidSchema     = errors.New("reqllm: schema description is malformed")
	ErrInvalidParameter  = errors.New("reqllm: invalid parameter")
	ErrProviderMismatch  = errors.New("reqllm: model belongs to a different provider")
	ErrHTTPStatus        = errors.New("reqllm: unexpected HTTP status")
	ErrMalformedObject   = errors.New("reqllm: response does not contain a parsable object")
	ErrMissingContent    = errors.New("reqllm: response contains no content")
	ErrSchemaMismatch    = errors.New("reqllm: object does not match schema")
	ErrNilRequest        = errors.New("reqllm: request must not be nil")
	ErrInvalidResponse   = errors.New("reqllm: response body is not a valid chat completion")
	ErrUnsupportedRole   = errors.New("reqllm: unsupported message role")
	ErrUnsupportedPart   = errors.New("reqllm: unsupported content part for this role")
	ErrMalformedToolArgs = errors.New("reqllm: tool call arguments are not valid JSON")
)

// SchemaError is a configuration error raised while compiling a schema description.
// Path is the dotted field path (empty for the schema root).
type SchemaError struct {
	Path   string
	Reason string
}

// Error implements error.
func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("reqllm: schema: %s", e.Reason)
	}
	return fmt.Sprintf("reqllm: schema field %q: %s", e.Path, e.Reason)
}

// Unwrap returns ErrInvalidSchema.
func (e *SchemaError) Unwrap() error { return ErrInvalidSchema }

// ParameterError reports an invalid call parameter such as an unsupported operation.
type ParameterError struct {
	Name   string
	Value  any
	Reason string
}

// Error implements error.
func (e *ParameterError) Error() string {
	return fmt.Sprintf("reqllm: parameter %s=%v: %s", e.Name, e.Value, e.Reason)
}

// Unwrap returns ErrInvalidParameter.
func (e *ParameterError) Unwrap() error { return ErrInvalidParameter }

// ProviderMismatchError is returned when a model reference names another provider.
type ProviderMismatchError struct {
	Expected string
	Got      string
}

// Error implements error.
func (e *ProviderMismatchError) Error() string {
	return fmt.Sprintf("reqllm: provider mismatch: adapter serves %q, model belongs to %q", e.Expected, e.Got)
}

// Unwrap returns ErrProviderMismatch.
func (e *ProviderMismatchError) Unwrap() error { return ErrProviderMismatch }

// HTTPError carries a non-success response. Message is the provider's error message when one could be read from Body.
type HTTPError struct {
	StatusCode int
	Body       []byte
	Message    string
}

// Error implements error.
func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("reqllm: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("reqllm: HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap returns ErrHTTPStatus.
func (e *HTTPError) Unwrap() error { return ErrHTTPStatus }

// Retryable reports whether the status is transient (429 or 5xx).
func (e *HTTPError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Compile-time checks that typed errors implement error.
var (
	_ error = (*SchemaError)(nil)
	_ error = (*ParameterError)(nil)
	_ error = (*ProviderMismatchError)(nil)
	_ error = (*HTTPError)(nil)
)
