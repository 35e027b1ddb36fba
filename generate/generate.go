package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jurraca/req-llm"
	"github.com/jurraca/req-llm/adapter"
	"github.com/jurraca/req-llm/schema"
)

const (
	tracerName         = "github.com/jurraca/req-llm/generate"
	defaultConcurrency = 4
)

// Doer executes a compiled request. *transport.Client implements it.
type Doer interface {
	Do(ctx context.Context, req *reqllm.Request) (*reqllm.RawResponse, error)
}

// Client runs the prepare, execute, decode pipeline. Safe for concurrent use.
type Client struct {
	provider    adapter.Provider
	doer        Doer
	logger      *slog.Logger
	tracer      trace.Tracer
	concurrency int
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. If l is nil, the default discard logger is kept.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider. Default is the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithConcurrency bounds the number of in-flight calls in Objects. n < 1 keeps the default (4).
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New returns a Client that compiles and decodes with provider and sends with doer.
func New(provider adapter.Provider, doer Doer, opts ...Option) *Client {
	c := &Client{
		provider:    provider,
		doer:        doer,
		logger:      slog.New(slog.DiscardHandler),
		tracer:      otel.Tracer(tracerName),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Text generates a chat reply.
func (c *Client) Text(ctx context.Context, model reqllm.Model, conv reqllm.Conversation, opts reqllm.Options) (*reqllm.Response, error) {
	return c.call(ctx, reqllm.OperationChat, model, conv, opts)
}

// Object generates a structured object matching compiled. The object is in Response.Object.
func (c *Client) Object(ctx context.Context, model reqllm.Model, conv reqllm.Conversation, compiled *schema.Compiled, opts reqllm.Options) (*reqllm.Response, error) {
	if err := compiled.Check(); err != nil {
		return nil, err
	}
	return c.call(ctx, reqllm.OperationObject, model, conv, opts.With(reqllm.OptionCompiledSchema, compiled))
}

// Objects runs Object for every conversation with bounded concurrency. Results keep the input order.
// The first failure cancels the calls still in flight and is returned.
func (c *Client) Objects(ctx context.Context, model reqllm.Model, convs []reqllm.Conversation, compiled *schema.Compiled, opts reqllm.Options) ([]*reqllm.Response, error) {
	out := make([]*reqllm.Response, len(convs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, conv := range convs {
		g.Go(func() error {
			resp, err := c.Object(gctx, model, conv, compiled, opts)
			if err != nil {
				return fmt.Errorf("generate: item %d: %w", i, err)
			}
			out[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, op reqllm.Operation, model reqllm.Model, conv reqllm.Conversation, opts reqllm.Options) (*reqllm.Response, error) {
	ctx, span := c.tracer.Start(ctx, "reqllm."+string(op), trace.WithAttributes(
		attribute.String("reqllm.operation", string(op)),
		attribute.String("reqllm.provider", model.Provider),
		attribute.String("reqllm.model", model.ID),
		attribute.Int("reqllm.messages", len(conv)),
	))
	defer span.End()

	start := time.Now()
	resp, err := c.run(ctx, op, model, conv, opts, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("generation failed",
			"operation", string(op),
			"model", model.String(),
			"error", err,
		)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("reqllm.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int64("reqllm.usage.output_tokens", resp.Usage.OutputTokens),
		attribute.String("reqllm.finish_reason", resp.FinishReason),
	)
	span.SetStatus(codes.Ok, "")
	c.logger.Info("generation completed",
		"operation", string(op),
		"model", model.String(),
		"duration", time.Since(start),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}

func (c *Client) run(ctx context.Context, op reqllm.Operation, model reqllm.Model, conv reqllm.Conversation, opts reqllm.Options, span trace.Span) (*reqllm.Response, error) {
	req, err := c.provider.Prepare(ctx, op, model, conv, opts)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("reqllm.request_id", req.ID))
	raw, err := c.doer.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", raw.StatusCode))
	return c.provider.Decode(ctx, req, raw)
}
