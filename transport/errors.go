package transport

import "errors"

// Sentinel errors for request execution. Callers should use errors.Is to check.
var (
	// ErrSendFailed indicates the request could not be sent or its body could not be read.
	ErrSendFailed = errors.New("transport: send failed")
	// ErrBodyTooLarge indicates the response body exceeded the configured limit.
	ErrBodyTooLarge = errors.New("transport: response body too large")
	// ErrCircuitOpen indicates the circuit breaker rejected the call without sending it.
	ErrCircuitOpen = errors.New("transport: circuit open")
	// ErrRateLimited indicates the rate limiter could not grant a slot before the context ended.
	ErrRateLimited = errors.New("transport: rate limit wait failed")
)

// errServerStatus marks a 5xx response as a breaker failure. It never leaves the package.
var errServerStatus = errors.New("transport: server error status")
