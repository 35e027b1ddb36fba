package reqllm

import (
	"net/http"
	"strings"
)

// Operation selects how a request is compiled and how its response is decoded.
type Operation string

// Supported operations.
const (
	OperationChat   Operation = "chat"
	OperationObject Operation = "object"
)

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	switch o {
	case OperationChat, OperationObject:
		return true
	default:
		return false
	}
}

// Model identifies the target model and the provider that serves it.
type Model struct {
	Provider string
	ID       string
}

// ParseModel parses a "provider:model" reference. The model part may itself contain colons.
func ParseModel(ref string) (Model, error) {
	provider, id, ok := strings.Cut(ref, ":")
	if !ok || provider == "" || id == "" {
		return Model{}, &ParameterError{Name: "model", Value: ref, Reason: `expected "provider:model"`}
	}
	return Model{Provider: provider, ID: id}, nil
}

// String returns the "provider:model" form.
func (m Model) String() string {
	return m.Provider + ":" + m.ID
}

// Request is a transport-ready HTTP request produced by a provider's chat builder.
// Operation and Options record how it was compiled so the paired response can be decoded.
type Request struct {
	ID        string
	Method    string
	URL       string
	Header    http.Header
	Body      []byte
	Operation Operation
	Model     Model
	Options   Options
}

// RawResponse is the undecoded HTTP response returned by the transport.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Success reports whether the status code is in the 2xx range.
func (r *RawResponse) Success() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}
