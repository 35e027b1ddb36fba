// Package jsonmode implements structured-object generation over a chat-completion API
// that has no enforced output grammar.
//
// Prepare with reqllm.OperationObject appends a schema instruction to the system prompt,
// requests a JSON-object response format and defaults max_tokens to 4096. Decode reads the
// object from the first text part as JSON and, when that text is not JSON, falls back to the
// synthetic tool call the model may have used instead. Chat calls are passed through to the
// underlying codec unchanged.
//
// Usage:
//
//	p := jsonmode.New(openaicompat.New())
//	compiled, _ := schema.Compile(schema.Schema{Fields: fields}, "")
//	opts := reqllm.NewOptions(reqllm.KV{Key: reqllm.OptionCompiledSchema, Value: compiled})
//	req, err := p.Prepare(ctx, reqllm.OperationObject, model, conv, opts)
//	// send req, then
//	resp, err := p.Decode(ctx, req, raw)
//	_ = resp.Object
package jsonmode
