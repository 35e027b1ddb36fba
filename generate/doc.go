// Package generate is the caller-facing pipeline: compile a call with an adapter.Provider,
// send it with a Doer, and decode the answer. Each call is traced as one OpenTelemetry span
// named after the operation ("reqllm.chat" or "reqllm.object").
//
// Example:
//
//	provider := jsonmode.New(openaicompat.New())
//	client := generate.New(provider, transport.New(transport.WithAPIKey(key)))
//	resp, err := client.Object(ctx, model, conv, compiled, reqllm.Options{})
package generate
