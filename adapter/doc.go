// Package adapter defines the Provider contract exposed to callers and the
// shared chat codec interfaces (encoder, decoder, tool-call object extractor)
// that provider adapters delegate to. Implementations live in subpackages:
// openaicompat is the shared default codec, jsonmode is the structured-object
// provider built on top of it.
package adapter
