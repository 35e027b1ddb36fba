// Package transport executes compiled requests over HTTP.
//
// Client attaches the Bearer API key and any static headers, waits on an optional
// client-side rate limiter, and runs the round trip through an optional circuit breaker.
// Transport failures and 5xx responses count against the breaker; 5xx bodies are still
// returned so the decoder can surface them as *reqllm.HTTPError. Response bodies are
// capped (10 MB by default).
package transport
