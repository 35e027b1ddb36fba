package jsonmode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/jurraca/req-llm"
	"github.com/jurraca/req-llm/adapter/openaicompat"
	"github.com/jurraca/req-llm/schema"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testModel = reqllm.Model{Provider: "openai", ID: "gpt-4o-mini"}

func newCodec() *openaicompat.Codec {
	return openaicompat.New(openaicompat.WithIDGenerator(func() string { return "req-1" }))
}

func personSchema(t *testing.T) *schema.Compiled {
	t.Helper()
	c, err := schema.Compile(schema.Schema{
		Name: "person",
		Fields: []schema.Field{
			{Name: "name", Type: "string", Required: true},
			{Name: "age", Type: "pos_integer"},
		},
	}, "")
	require.NoError(t, err)
	return c
}

func objectOpts(c *schema.Compiled, kvs ...reqllm.KV) reqllm.Options {
	return reqllm.NewOptions(kvs...).With(reqllm.OptionCompiledSchema, c)
}

// completion renders an OpenAI chat completion body with the given text and tool calls.
func completion(content string, calls ...reqllm.ToolCallPart) []byte {
	msg := map[string]any{"role": "assistant", "content": content}
	if len(calls) > 0 {
		tcs := make([]map[string]any, 0, len(calls))
		for _, c := range calls {
			tcs = append(tcs, map[string]any{
				"id":       c.ID,
				"type":     "function",
				"function": map[string]any{"name": c.Name, "arguments": c.Args},
			})
		}
		msg["tool_calls"] = tcs
	}
	body, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{"index": 0, "message": msg, "finish_reason": "stop"}},
		"usage":   map[string]any{"prompt_tokens": 20, "completion_tokens": 6, "total_tokens": 26},
	})
	return body
}

func prepareObject(t *testing.T, a *Adapter, opts reqllm.Options) *reqllm.Request {
	t.Helper()
	req, err := a.Prepare(context.Background(), reqllm.OperationObject, testModel,
		reqllm.Conversation{reqllm.UserMessage("Who wrote the first program?")}, opts)
	require.NoError(t, err)
	return req
}

func ExampleInstruction() {
	compiled, _ := schema.Compile(schema.Schema{Fields: []schema.Field{{Name: "name", Type: "string"}}}, "")
	text, _ := Instruction(compiled)
	fmt.Println(strings.Contains(text, compiled.PropertiesJSON()))
	// Output: true
}

func TestInstruction_EmbedsProperties(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	text, err := Instruction(c)
	require.NoError(t, err)
	assert.Contains(t, text, "JSON Schema")
	require.True(t, strings.HasSuffix(text, c.PropertiesJSON()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.PropertiesJSON()), &decoded))
	assert.ElementsMatch(t, []string{"name", "age"}, keys(decoded))

	_, err = Instruction(nil)
	assert.ErrorIs(t, err, reqllm.ErrInvalidSchema)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestInjectSchema(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	instruction, err := Instruction(c)
	require.NoError(t, err)

	tests := []struct {
		name       string
		opts       reqllm.Options
		wantSystem string
		wantMax    int64
	}{
		{"no system prompt", reqllm.Options{}, instruction, DefaultMaxTokens},
		{"empty system prompt", reqllm.NewOptions(reqllm.KV{Key: reqllm.OptionSystemPrompt, Value: ""}), instruction, DefaultMaxTokens},
		{"caller system prompt first", reqllm.NewOptions(reqllm.KV{Key: reqllm.OptionSystemPrompt, Value: "You are terse."}),
			"You are terse.\n\n" + instruction, DefaultMaxTokens},
		{"caller max_tokens kept", reqllm.NewOptions(reqllm.KV{Key: reqllm.OptionMaxTokens, Value: 256}), instruction, 256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			before := tt.opts.Map()
			out, err := InjectSchema(tt.opts, c)
			require.NoError(t, err)

			sys, ok := out.String(reqllm.OptionSystemPrompt)
			require.True(t, ok)
			assert.Equal(t, tt.wantSystem, sys)
			maxTokens, ok := out.Int64(reqllm.OptionMaxTokens)
			require.True(t, ok)
			assert.Equal(t, tt.wantMax, maxTokens)
			format, _ := out.String(reqllm.OptionResponseFormat)
			assert.Equal(t, reqllm.ResponseFormatJSONObject, format)
			op, ok := out.Operation()
			require.True(t, ok)
			assert.Equal(t, reqllm.OperationObject, op)
			got, _ := out.Get(reqllm.OptionCompiledSchema)
			assert.Same(t, c, got)

			assert.Equal(t, before, tt.opts.Map())
		})
	}

	_, err = InjectSchema(reqllm.NewOptions(reqllm.KV{Key: reqllm.OptionMaxTokens, Value: "512"}), c)
	var perr *reqllm.ParameterError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, reqllm.OptionMaxTokens, perr.Name)
}

func TestHandBuiltCompiledIsRejected(t *testing.T) {
	t.Parallel()
	built := personSchema(t)
	literal := &schema.Compiled{ToolName: "x", JSONSchema: built.JSONSchema}
	a := New(newCodec(), WithValidation(true))

	_, err := Instruction(literal)
	require.ErrorIs(t, err, reqllm.ErrInvalidSchema)

	req, err := a.Prepare(context.Background(), reqllm.OperationObject, testModel,
		reqllm.Conversation{reqllm.UserMessage("Ada")}, objectOpts(literal))
	require.ErrorIs(t, err, reqllm.ErrInvalidSchema)
	assert.Nil(t, req)

	req = prepareObject(t, a, objectOpts(built))
	req.Options = req.Options.With(reqllm.OptionCompiledSchema, literal)
	raw := &reqllm.RawResponse{StatusCode: 200, Body: completion(`{"name":"Ada"}`)}
	assert.NotPanics(t, func() {
		_, err = a.Decode(context.Background(), req, raw)
	})
	require.ErrorIs(t, err, reqllm.ErrInvalidSchema)
}

func TestPrepare_ObjectRequest(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	a := New(newCodec())
	instruction, err := Instruction(c)
	require.NoError(t, err)

	req := prepareObject(t, a, objectOpts(c))
	assert.Equal(t, reqllm.OperationObject, req.Operation)
	body := gjson.ParseBytes(req.Body)
	assert.Equal(t, "system", body.Get("messages.0.role").String())
	assert.Equal(t, instruction, body.Get("messages.0.content").String())
	assert.Contains(t, body.Get("messages.0.content").String(), c.PropertiesJSON())
	assert.Equal(t, "json_object", body.Get("response_format.type").String())
	assert.Equal(t, int64(DefaultMaxTokens), body.Get("max_tokens").Int())
	assert.False(t, body.Get("tools").Exists())
}

func TestPrepare_CallerSystemPromptAndMaxTokens(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	a := New(newCodec())
	instruction, err := Instruction(c)
	require.NoError(t, err)

	opts := objectOpts(c,
		reqllm.KV{Key: reqllm.OptionSystemPrompt, Value: "Answer about computing history."},
		reqllm.KV{Key: reqllm.OptionMaxTokens, Value: 512},
	)
	before := opts.Map()
	req := prepareObject(t, a, opts)
	body := gjson.ParseBytes(req.Body)
	assert.Equal(t, "Answer about computing history.\n\n"+instruction, body.Get("messages.0.content").String())
	assert.Equal(t, int64(512), body.Get("max_tokens").Int())
	assert.Equal(t, before, opts.Map())
	assert.False(t, opts.Has(reqllm.OptionResponseFormat))
}

func TestPrepare_SchemaOption(t *testing.T) {
	t.Parallel()
	a := New(newCodec())
	s := schema.Schema{Fields: []schema.Field{{Name: "title", Type: "string", Required: true}}}

	for _, v := range []any{s, &s} {
		req := prepareObject(t, a, reqllm.NewOptions(reqllm.KV{Key: reqllm.OptionSchema, Value: v}))
		assert.Contains(t, gjson.GetBytes(req.Body, "messages.0.content").String(), `"title"`)
		compiled, ok := req.Options.Get(reqllm.OptionCompiledSchema)
		require.True(t, ok)
		assert.Equal(t, schema.DefaultToolName, compiled.(*schema.Compiled).ToolName)
	}
}

func TestPrepare_Errors(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	a := New(newCodec())
	conv := reqllm.Conversation{reqllm.UserMessage("Hi")}
	tests := []struct {
		name  string
		op    reqllm.Operation
		model reqllm.Model
		opts  reqllm.Options
		want  error
	}{
		{"unsupported operation", reqllm.Operation("embedding"), testModel, objectOpts(c), reqllm.ErrInvalidParameter},
		{"empty operation", reqllm.Operation(""), testModel, reqllm.Options{}, reqllm.ErrInvalidParameter},
		{"object without schema", reqllm.OperationObject, testModel, reqllm.Options{}, reqllm.ErrInvalidSchema},
		{"object with wrong schema type", reqllm.OperationObject, testModel,
			reqllm.NewOptions(reqllm.KV{Key: reqllm.OptionSchema, Value: "name: string"}), reqllm.ErrInvalidSchema},
		{"object with malformed schema", reqllm.OperationObject, testModel,
			reqllm.NewOptions(reqllm.KV{Key: reqllm.OptionSchema, Value: schema.Schema{Fields: []schema.Field{{Name: "x", Type: "blob"}}}}),
			reqllm.ErrInvalidSchema},
		{"object provider mismatch", reqllm.OperationObject, reqllm.Model{Provider: "anthropic", ID: "claude"}, objectOpts(c), reqllm.ErrProviderMismatch},
		{"chat provider mismatch", reqllm.OperationChat, reqllm.Model{Provider: "anthropic", ID: "claude"}, reqllm.Options{}, reqllm.ErrProviderMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req, err := a.Prepare(context.Background(), tt.op, tt.model, conv, tt.opts)
			require.Error(t, err)
			assert.Nil(t, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	var perr *reqllm.ParameterError
	_, err := a.Prepare(context.Background(), reqllm.Operation("embedding"), testModel, conv, reqllm.Options{})
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "operation", perr.Name)
}

func TestChatPassThrough(t *testing.T) {
	t.Parallel()
	codec := newCodec()
	a := New(codec)
	conv := reqllm.Conversation{reqllm.UserMessage("Hello")}
	opts := reqllm.NewOptions(
		reqllm.KV{Key: reqllm.OptionSystemPrompt, Value: "Be kind."},
		reqllm.KV{Key: reqllm.OptionTemperature, Value: 0.2},
	)

	direct, err := codec.EncodeChat(context.Background(), reqllm.OperationChat, testModel, conv, opts)
	require.NoError(t, err)
	via, err := a.Prepare(context.Background(), reqllm.OperationChat, testModel, conv, opts)
	require.NoError(t, err)
	assert.Equal(t, direct, via)
	assert.Equal(t, string(direct.Body), string(via.Body))

	raw := &reqllm.RawResponse{StatusCode: 200, Body: completion(`{"name":"Ada"}`)}
	directResp, err := codec.DecodeChat(context.Background(), direct, raw)
	require.NoError(t, err)
	viaResp, err := a.Decode(context.Background(), via, raw)
	require.NoError(t, err)
	assert.Equal(t, directResp, viaResp)
	assert.Nil(t, viaResp.Object)
}

func TestDecode_ObjectFromText(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	a := New(newCodec())
	req := prepareObject(t, a, objectOpts(c))

	tests := []struct {
		name    string
		content string
		want    any
	}{
		{"plain json", `{"name":"Ada"}`, map[string]any{"name": "Ada"}},
		{"surrounding whitespace", "\n  {\"name\":\"Ada\",\"age\":36}\n", map[string]any{"name": "Ada", "age": float64(36)}},
		{"json code fence", "```json\n{\"name\":\"Ada\"}\n```", map[string]any{"name": "Ada"}},
		{"bare code fence", "```\n{\"name\":\"Ada\"}\n```", map[string]any{"name": "Ada"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, err := a.Decode(context.Background(), req, &reqllm.RawResponse{StatusCode: 200, Body: completion(tt.content)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Object)
			assert.Equal(t, reqllm.RoleAssistant, resp.Message.Role)
			assert.Equal(t, int64(26), resp.Usage.TotalTokens)
		})
	}
}

func TestDecode_FallbackToToolCall(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	a := New(newCodec())
	req := prepareObject(t, a, objectOpts(c))

	body := completion("not json", reqllm.ToolCallPart{ID: "call_1", Name: schema.DefaultToolName, Args: `{"name":"Ada"}`})
	resp, err := a.Decode(context.Background(), req, &reqllm.RawResponse{StatusCode: 200, Body: body})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada"}, resp.Object)
	assert.Equal(t, "not json", resp.Text())
}

func TestDecode_ToolCallWithoutText(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	a := New(newCodec())
	req := prepareObject(t, a, objectOpts(c))

	body := completion("", reqllm.ToolCallPart{ID: "call_1", Name: schema.DefaultToolName, Args: `{"name":"Grace"}`})
	resp, err := a.Decode(context.Background(), req, &reqllm.RawResponse{StatusCode: 200, Body: body})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Grace"}, resp.Object)
}

func TestDecode_FallbackFails(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	a := New(newCodec())
	req := prepareObject(t, a, objectOpts(c))

	tests := []struct {
		name string
		body []byte
	}{
		{"no tool call", completion("not json")},
		{"null text", completion("null")},
		{"tool call with bad args", completion("not json", reqllm.ToolCallPart{ID: "c", Name: schema.DefaultToolName, Args: "{"})},
		{"unrelated tool call", completion("", reqllm.ToolCallPart{ID: "c", Name: "get_weather", Args: "{}"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, err := a.Decode(context.Background(), req, &reqllm.RawResponse{StatusCode: 200, Body: tt.body})
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, reqllm.ErrMalformedObject)
			assert.NotErrorIs(t, err, reqllm.ErrHTTPStatus)
		})
	}
}

func TestDecode_HTTPErrorInObjectMode(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	a := New(newCodec())
	req := prepareObject(t, a, objectOpts(c))

	body := []byte(`{"name":"Ada"}`)
	resp, err := a.Decode(context.Background(), req, &reqllm.RawResponse{StatusCode: 401, Body: body})
	require.Error(t, err)
	assert.Nil(t, resp)
	var httpErr *reqllm.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 401, httpErr.StatusCode)
	assert.Equal(t, body, httpErr.Body)
	assert.NotErrorIs(t, err, reqllm.ErrMalformedObject)
}

func TestDecode_MissingContent(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	a := New(newCodec())
	req := prepareObject(t, a, objectOpts(c))

	tests := []struct {
		name string
		body string
	}{
		{"no choices", `{"id":"x","object":"chat.completion","choices":[]}`},
		{"empty message", `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":""},"finish_reason":"stop"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := a.Decode(context.Background(), req, &reqllm.RawResponse{StatusCode: 200, Body: []byte(tt.body)})
			require.Error(t, err)
			assert.ErrorIs(t, err, reqllm.ErrMissingContent)
			assert.NotErrorIs(t, err, reqllm.ErrMalformedObject)
		})
	}
}

func TestDecode_NilInputs(t *testing.T) {
	t.Parallel()
	a := New(newCodec())
	_, err := a.Decode(context.Background(), nil, &reqllm.RawResponse{StatusCode: 200})
	require.ErrorIs(t, err, reqllm.ErrNilRequest)

	req := &reqllm.Request{Operation: reqllm.OperationObject}
	_, err = a.Decode(context.Background(), req, nil)
	require.ErrorIs(t, err, reqllm.ErrInvalidResponse)
}

func TestDecode_Validation(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	strict := New(newCodec(), WithValidation(true))
	lenient := New(newCodec())
	req := prepareObject(t, strict, objectOpts(c))
	raw := &reqllm.RawResponse{StatusCode: 200, Body: completion(`{"age":0}`)}

	_, err := strict.Decode(context.Background(), req, raw)
	require.ErrorIs(t, err, reqllm.ErrSchemaMismatch)

	resp, err := lenient.Decode(context.Background(), req, raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"age": float64(0)}, resp.Object)

	ok := &reqllm.RawResponse{StatusCode: 200, Body: completion(`{"name":"Ada","age":36}`)}
	resp, err = strict.Decode(context.Background(), req, ok)
	require.NoError(t, err)
	assert.Equal(t, "Ada", resp.Object.(map[string]any)["name"])
}

// stubCodec wraps the real codec and fails tool-call extraction with extractErr.
type stubCodec struct {
	*openaicompat.Codec
	extractErr error
}

func (s *stubCodec) ExtractObject(ctx context.Context, req *reqllm.Request, resp *reqllm.Response) (*reqllm.Response, error) {
	if s.extractErr != nil {
		return nil, s.extractErr
	}
	return s.Codec.ExtractObject(ctx, req, resp)
}

func TestDecode_NonMalformedFallbackErrorPropagates(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	boom := errors.New("extractor exploded")
	a := New(&stubCodec{Codec: newCodec(), extractErr: boom})
	req := prepareObject(t, a, objectOpts(c))

	_, err := a.Decode(context.Background(), req, &reqllm.RawResponse{StatusCode: 200, Body: completion("not json")})
	require.ErrorIs(t, err, boom)
	assert.Same(t, boom, err)
	assert.NotErrorIs(t, err, reqllm.ErrMalformedObject)
}

func TestConcurrentCalls(t *testing.T) {
	t.Parallel()
	c := personSchema(t)
	a := New(openaicompat.New())
	shared := objectOpts(c, reqllm.KV{Key: reqllm.OptionSystemPrompt, Value: "Shared prompt."})
	before := shared.Map()

	var g errgroup.Group
	for i := range 32 {
		g.Go(func() error {
			req, err := a.Prepare(context.Background(), reqllm.OperationObject, testModel,
				reqllm.Conversation{reqllm.UserMessage(fmt.Sprintf("person %d", i))}, shared)
			if err != nil {
				return err
			}
			body := completion(fmt.Sprintf(`{"name":"p%d"}`, i))
			resp, err := a.Decode(context.Background(), req, &reqllm.RawResponse{StatusCode: 200, Body: body})
			if err != nil {
				return err
			}
			if got := resp.Object.(map[string]any)["name"]; got != fmt.Sprintf("p%d", i) {
				return fmt.Errorf("call %d decoded %v", i, got)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, before, shared.Map())
}
