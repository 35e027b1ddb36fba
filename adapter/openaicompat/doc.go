// Package openaicompat is the shared chat codec for OpenAI-compatible
// chat-completion APIs. EncodeChat renders a conversation and options into a
// POST {base}/chat/completions request; DecodeChat reads the first choice,
// usage and finish reason; ExtractObject reads a structured object delivered
// as a function tool call.
//
// The model reference must name the codec's provider, otherwise
// reqllm.ErrProviderMismatch is returned. ToolCallPart.Args must be valid JSON
// when non-empty; otherwise reqllm.ErrMalformedToolArgs is returned.
package openaicompat
