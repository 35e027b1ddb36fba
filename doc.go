// Package reqllm compiles chat and structured-object generation calls into
// transport-ready HTTP requests for an OpenAI-compatible chat-completion API and
// decodes the responses into a normalized Response.
//
// The root package holds the data model shared by every layer: messages and
// content parts, the persistent Options set, Request/RawResponse/Response, and
// the error taxonomy. Provider logic lives in adapter subpackages; HTTP
// execution lives in transport; generate ties them together.
package reqllm
