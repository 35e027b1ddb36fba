package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
	"github.com/openai/openai-go/v3/shared/constant"
	"github.com/tidwall/gjson"

	"github.com/jurraca/req-llm"
	"github.com/jurraca/req-llm/adapter"
	"github.com/jurraca/req-llm/schema"
)

// Defaults for New.
const (
	DefaultProvider = "openai"
	DefaultBaseURL  = "https://api.openai.com/v1"
)

const chatCompletionsPath = "/chat/completions"

// Codec is the shared chat codec for OpenAI-compatible chat-completion APIs.
// EncodeChat renders openai.ChatCompletionNewParams into the request body; DecodeChat reads openai.ChatCompletion.
// A Codec is immutable after New and safe for concurrent use.
type Codec struct {
	provider string
	baseURL  string
	newID    func() string
	logger   *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithProvider sets the provider name that model references must carry.
func WithProvider(name string) Option {
	return func(c *Codec) { c.provider = name }
}

// WithBaseURL sets the API base URL (e.g. https://api.groq.com/openai/v1).
func WithBaseURL(u string) Option {
	return func(c *Codec) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithLogger sets the logger. If l is nil, the default discard logger is kept.
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIDGenerator overrides request ID generation (ULIDs by default).
func WithIDGenerator(fn func() string) Option {
	return func(c *Codec) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// New returns a Codec for provider "openai" at DefaultBaseURL unless overridden.
func New(opts ...Option) *Codec {
	c := &Codec{
		provider: DefaultProvider,
		baseURL:  DefaultBaseURL,
		newID:    func() string { return ulid.Make().String() },
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the provider name this codec serves.
func (c *Codec) Provider() string { return c.provider }

// EncodeChat validates op and model and renders conv and opts into a POST to {base}/chat/completions.
// The system_prompt option becomes a leading system message.
func (c *Codec) EncodeChat(_ context.Context, op reqllm.Operation, model reqllm.Model, conv reqllm.Conversation, opts reqllm.Options) (*reqllm.Request, error) {
	if !op.Valid() {
		return nil, &reqllm.ParameterError{Name: "operation", Value: op, Reason: "unsupported operation"}
	}
	if model.Provider != c.provider {
		return nil, &reqllm.ProviderMismatchError{Expected: c.provider, Got: model.Provider}
	}
	if model.ID == "" {
		return nil, &reqllm.ParameterError{Name: "model", Value: model.String(), Reason: "model id must not be empty"}
	}
	params, err := c.Params(model, conv, opts)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("openaicompat: marshal request: %w", err)
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	req := &reqllm.Request{
		ID:        c.newID(),
		Method:    http.MethodPost,
		URL:       c.baseURL + chatCompletionsPath,
		Header:    header,
		Body:      body,
		Operation: op,
		Model:     model,
		Options:   opts,
	}
	c.logger.Debug("chat request encoded",
		"request_id", req.ID,
		"operation", string(op),
		"model", model.String(),
		"messages", len(params.Messages),
	)
	return req, nil
}

// Params builds the typed request parameters without serializing them.
func (c *Codec) Params(model reqllm.Model, conv reqllm.Conversation, opts reqllm.Options) (*openai.ChatCompletionNewParams, error) {
	params := &openai.ChatCompletionNewParams{
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(conv)+1),
		Model:    shared.ChatModel(model.ID), //nolint:unconvert // ChatModel is a distinct type
	}
	mp := adapter.ExtractModelParams(opts)
	if mp.Temperature != nil {
		params.Temperature = openai.Float(*mp.Temperature)
	}
	if mp.MaxTokens != nil {
		params.MaxTokens = openai.Int(*mp.MaxTokens)
	}
	if mp.TopP != nil {
		params.TopP = openai.Float(*mp.TopP)
	}
	if len(mp.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: mp.Stop}
	}
	if sys, ok := opts.String(reqllm.OptionSystemPrompt); ok && sys != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(sys))
	}
	for _, msg := range conv {
		union, err := messageToUnion(msg)
		if err != nil {
			return nil, err
		}
		params.Messages = append(params.Messages, union)
	}
	if v, ok := opts.Get(reqllm.OptionResponseFormat); ok {
		switch v {
		case reqllm.ResponseFormatJSONObject:
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONObject: &shared.ResponseFormatJSONObjectParam{}}
		case "text":
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{OfText: &shared.ResponseFormatTextParam{}}
		default:
			return nil, &reqllm.ParameterError{Name: reqllm.OptionResponseFormat, Value: v, Reason: `expected "json_object" or "text"`}
		}
	}
	if tools := opts.Tools(); len(tools) > 0 {
		params.Tools = make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
		for _, t := range tools {
			params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			}))
		}
	}
	return params, nil
}

func messageToUnion(msg reqllm.Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case reqllm.RoleSystem:
		return openai.SystemMessage(msg.Text()), nil
	case reqllm.RoleUser:
		for _, p := range msg.Content {
			if _, ok := p.(reqllm.TextPart); !ok {
				return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: %s in user message", reqllm.ErrUnsupportedPart, reqllm.PartType(p))
			}
		}
		return openai.UserMessage(msg.Text()), nil
	case reqllm.RoleAssistant:
		return assistantMessage(msg.Content)
	case reqllm.RoleTool:
		for _, p := range msg.Content {
			if tr, ok := p.(reqllm.ToolResultPart); ok {
				return openai.ToolMessage(tr.Content, tr.ToolCallID), nil
			}
		}
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: tool message missing tool result", reqllm.ErrUnsupportedPart)
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: %q", reqllm.ErrUnsupportedRole, msg.Role)
	}
}

func assistantMessage(parts []reqllm.ContentPart) (openai.ChatCompletionMessageParamUnion, error) {
	var b strings.Builder
	var toolCalls []openai.ChatCompletionMessageToolCallUnionParam
	for _, p := range parts {
		switch x := p.(type) {
		case reqllm.TextPart:
			b.WriteString(x.Text)
		case reqllm.ToolCallPart:
			if x.Args != "" && !json.Valid([]byte(x.Args)) {
				return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: call %q", reqllm.ErrMalformedToolArgs, x.ID)
			}
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallUnionParam{
				OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
					ID: x.ID,
					Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
						Name:      x.Name,
						Arguments: x.Args,
					},
					Type: "function",
				},
			})
		default:
			return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("%w: %s in assistant message", reqllm.ErrUnsupportedPart, reqllm.PartType(p))
		}
	}
	if len(toolCalls) > 0 {
		return openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{
				Content:   openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(b.String())},
				ToolCalls: toolCalls,
				Role:      constant.Assistant("assistant"),
			},
		}, nil
	}
	return openai.AssistantMessage(b.String()), nil
}

// DecodeChat decodes a chat completion: first choice's text and function tool calls, usage and finish reason.
// Non-2xx statuses return *reqllm.HTTPError whatever the request's operation.
func (c *Codec) DecodeChat(_ context.Context, req *reqllm.Request, raw *reqllm.RawResponse) (*reqllm.Response, error) {
	if req == nil {
		return nil, reqllm.ErrNilRequest
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: nil raw response", reqllm.ErrInvalidResponse)
	}
	if !raw.Success() {
		return nil, httpError(raw)
	}
	var completion openai.ChatCompletion
	if err := json.Unmarshal(raw.Body, &completion); err != nil {
		return nil, fmt.Errorf("%w: %w", reqllm.ErrInvalidResponse, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", reqllm.ErrMissingContent)
	}
	choice := completion.Choices[0]
	var parts []reqllm.ContentPart
	if choice.Message.Content != "" {
		parts = append(parts, reqllm.TextPart{Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Type == "function" {
			parts = append(parts, reqllm.ToolCallPart{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: tc.Function.Arguments,
			})
		}
	}
	resp := &reqllm.Response{
		ID:    completion.ID,
		Model: completion.Model,
		Message: reqllm.Message{
			Role:    reqllm.RoleAssistant,
			Content: parts,
		},
		Usage: reqllm.Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
			TotalTokens:  completion.Usage.TotalTokens,
		},
		FinishReason: string(choice.FinishReason),
	}
	c.logger.Debug("chat response decoded",
		"request_id", req.ID,
		"parts", len(parts),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp, nil
}

// ExtractObject parses the arguments of the tool call named after the request's compiled schema
// (schema.DefaultToolName when none is attached) and returns a copy of resp with Object set.
func (c *Codec) ExtractObject(_ context.Context, req *reqllm.Request, resp *reqllm.Response) (*reqllm.Response, error) {
	if req == nil {
		return nil, reqllm.ErrNilRequest
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", reqllm.ErrMissingContent)
	}
	name := schema.DefaultToolName
	if compiled, ok := req.Options.Get(reqllm.OptionCompiledSchema); ok {
		if cs, ok := compiled.(*schema.Compiled); ok && cs != nil {
			name = cs.ToolName
		}
	}
	for _, tc := range resp.ToolCalls() {
		if tc.Name != name {
			continue
		}
		var obj any
		if err := json.Unmarshal([]byte(tc.Args), &obj); err != nil {
			return nil, fmt.Errorf("%w: tool call %q arguments: %w", reqllm.ErrMalformedObject, name, err)
		}
		out := resp.Clone()
		out.Object = obj
		return out, nil
	}
	return nil, fmt.Errorf("%w: no %q tool call in response", reqllm.ErrMalformedObject, name)
}

// httpError builds *reqllm.HTTPError, reading the provider message from {"error":{"message":...}} or {"message":...}.
func httpError(raw *reqllm.RawResponse) error {
	e := &reqllm.HTTPError{StatusCode: raw.StatusCode, Body: raw.Body}
	if gjson.ValidBytes(raw.Body) {
		res := gjson.GetManyBytes(raw.Body, "error.message", "message", "error")
		for _, r := range res {
			if r.Type == gjson.String && r.Str != "" {
				e.Message = r.Str
				break
			}
		}
	}
	return e
}

// Compile-time check that Codec implements adapter.Codec.
var _ adapter.Codec = (*Codec)(nil)
