package jsonmode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jurraca/req-llm"
	"github.com/jurraca/req-llm/adapter"
	"github.com/jurraca/req-llm/schema"
)

// Adapter is the structured-object provider. Chat calls pass straight through to the codec;
// object calls get the schema instruction on the way out and the extraction chain on the way back.
// An Adapter holds no per-call state and is safe for concurrent use.
type Adapter struct {
	codec      adapter.Codec
	logger     *slog.Logger
	validate   bool
	strategies []strategy
}

// strategy is one attempt at pulling an object out of a decoded response.
// A failure wrapping reqllm.ErrMalformedObject passes control to the next strategy.
type strategy struct {
	name string
	fn   func(ctx context.Context, req *reqllm.Request, resp *reqllm.Response) (*reqllm.Response, error)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger. If l is nil, the default discard logger is kept.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithValidation enables JSON Schema validation of extracted objects (reqllm.ErrSchemaMismatch on failure).
func WithValidation(enabled bool) Option {
	return func(a *Adapter) { a.validate = enabled }
}

// New returns an Adapter delegating chat encoding, decoding and tool-call extraction to codec.
func New(codec adapter.Codec, opts ...Option) *Adapter {
	a := &Adapter{
		codec:  codec,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.strategies = []strategy{
		{name: "text", fn: decodeText},
		{name: "tool_call", fn: codec.ExtractObject},
	}
	return a
}

// Prepare compiles a call into a transport request. OperationObject injects the schema
// instruction before delegating; every other operation goes to the codec unmodified,
// which rejects unsupported operations with a *reqllm.ParameterError.
func (a *Adapter) Prepare(ctx context.Context, op reqllm.Operation, model reqllm.Model, conv reqllm.Conversation, opts reqllm.Options) (*reqllm.Request, error) {
	switch op {
	case reqllm.OperationObject:
		compiled, err := resolveSchema(opts)
		if err != nil {
			return nil, err
		}
		enhanced, err := InjectSchema(opts, compiled)
		if err != nil {
			return nil, err
		}
		req, err := a.codec.EncodeChat(ctx, op, model, conv, enhanced)
		if err != nil {
			return nil, err
		}
		a.logger.Debug("object request prepared",
			"request_id", req.ID,
			"model", model.String(),
			"tool", compiled.ToolName,
		)
		return req, nil
	default:
		return a.codec.EncodeChat(ctx, op, model, conv, opts)
	}
}

// Decode decodes raw as the answer to req. The state is chosen by req.Operation, not by the
// shape of the response. Non-success statuses always yield the codec's *reqllm.HTTPError.
func (a *Adapter) Decode(ctx context.Context, req *reqllm.Request, raw *reqllm.RawResponse) (*reqllm.Response, error) {
	if req == nil {
		return nil, reqllm.ErrNilRequest
	}
	if raw == nil || !raw.Success() {
		return a.codec.DecodeChat(ctx, req, raw)
	}
	switch req.Operation {
	case reqllm.OperationObject:
		return a.decodeObject(ctx, req, raw)
	default:
		return a.codec.DecodeChat(ctx, req, raw)
	}
}

func (a *Adapter) decodeObject(ctx context.Context, req *reqllm.Request, raw *reqllm.RawResponse) (*reqllm.Response, error) {
	resp, err := a.codec.DecodeChat(ctx, req, raw)
	if err != nil {
		return nil, err
	}
	out, err := a.extract(ctx, req, resp)
	if err != nil {
		return nil, err
	}
	if a.validate {
		if compiled, ok := req.Options.Get(reqllm.OptionCompiledSchema); ok {
			if c, ok := compiled.(*schema.Compiled); ok && c != nil {
				if err := c.Validate(out.Object); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

func (a *Adapter) extract(ctx context.Context, req *reqllm.Request, resp *reqllm.Response) (*reqllm.Response, error) {
	var failures []error
	for _, s := range a.strategies {
		out, err := s.fn(ctx, req, resp)
		if err == nil {
			a.logger.Debug("object extracted", "request_id", req.ID, "strategy", s.name)
			return out, nil
		}
		if !errors.Is(err, reqllm.ErrMalformedObject) {
			return nil, err
		}
		a.logger.Warn("object strategy failed",
			"request_id", req.ID,
			"strategy", s.name,
			"error", err,
		)
		failures = append(failures, err)
	}
	return nil, errors.Join(failures...)
}

// codeFenceRe matches a markdown code fence wrapping the whole text.
var codeFenceRe = regexp.MustCompile("(?si)^```(?:json)?\\s*(.*?)\\s*```$")

// decodeText parses the first text part as a JSON document.
func decodeText(_ context.Context, _ *reqllm.Request, resp *reqllm.Response) (*reqllm.Response, error) {
	if resp == nil || len(resp.Message.Content) == 0 {
		return nil, fmt.Errorf("%w: message has no content parts", reqllm.ErrMissingContent)
	}
	for _, p := range resp.Message.Content {
		tp, ok := p.(reqllm.TextPart)
		if !ok {
			continue
		}
		var obj any
		if err := json.Unmarshal([]byte(stripCodeFences(tp.Text)), &obj); err != nil {
			return nil, fmt.Errorf("%w: text content: %w", reqllm.ErrMalformedObject, err)
		}
		if obj == nil {
			return nil, fmt.Errorf("%w: text content is null", reqllm.ErrMalformedObject)
		}
		out := resp.Clone()
		out.Object = obj
		return out, nil
	}
	return nil, fmt.Errorf("%w: no text part", reqllm.ErrMalformedObject)
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// Compile-time check that Adapter implements adapter.Provider.
var _ adapter.Provider = (*Adapter)(nil)
