package adapter

import (
	"context"

	"github.com/jurraca/req-llm"
)

// Provider is what callers use: compile a call into a transport request, then decode the paired response.
type Provider interface {
	// Prepare compiles op, model, conversation and options into a transport-ready request.
	Prepare(ctx context.Context, op reqllm.Operation, model reqllm.Model, conv reqllm.Conversation, opts reqllm.Options) (*reqllm.Request, error)
	// Decode turns the raw response into a normalized Response. req must be the request raw answers.
	Decode(ctx context.Context, req *reqllm.Request, raw *reqllm.RawResponse) (*reqllm.Response, error)
}

// ChatEncoder is the shared chat-request builder. It validates the operation and model provider
// and renders options into the wire body.
type ChatEncoder interface {
	EncodeChat(ctx context.Context, op reqllm.Operation, model reqllm.Model, conv reqllm.Conversation, opts reqllm.Options) (*reqllm.Request, error)
}

// ChatDecoder is the shared chat-response decoder: role, content parts, usage. Non-success statuses
// become *reqllm.HTTPError.
type ChatDecoder interface {
	DecodeChat(ctx context.Context, req *reqllm.Request, raw *reqllm.RawResponse) (*reqllm.Response, error)
}

// ObjectExtractor reads a structured object delivered as a tool call in an already decoded response.
// Returns an error wrapping reqllm.ErrMalformedObject when no usable tool call exists.
type ObjectExtractor interface {
	ExtractObject(ctx context.Context, req *reqllm.Request, resp *reqllm.Response) (*reqllm.Response, error)
}

// Codec bundles the shared default implementation a provider adapter delegates to.
type Codec interface {
	ChatEncoder
	ChatDecoder
	ObjectExtractor
}

// ModelParams holds well-known generation parameters read from an Options set.
type ModelParams struct {
	Temperature *float64
	MaxTokens   *int64
	TopP        *float64
	Stop        []string
}

// ExtractModelParams reads "temperature", "max_tokens", "top_p" and "stop" from opts.
// Values of the wrong type are ignored.
func ExtractModelParams(opts reqllm.Options) ModelParams {
	var out ModelParams
	if f, ok := opts.Float64(reqllm.OptionTemperature); ok {
		out.Temperature = &f
	}
	if i, ok := opts.Int64(reqllm.OptionMaxTokens); ok {
		out.MaxTokens = &i
	}
	if f, ok := opts.Float64(reqllm.OptionTopP); ok {
		out.TopP = &f
	}
	if ss, ok := opts.Strings(reqllm.OptionStop); ok && len(ss) > 0 {
		out.Stop = ss
	}
	return out
}
