package transport

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Option configures a Client (functional options pattern).
type Option func(*Client)

// BreakerConfig configures the circuit breaker. Zero fields take the package defaults.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a half-open probe.
	Timeout time.Duration
	// Interval is the cyclic period of the closed state for clearing failure counts.
	Interval time.Duration
}

// WithHTTPClient sets the HTTP client. Default has a 60s timeout. If c is nil, the default client is kept.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithAPIKey sets the Bearer token for the Authorization header.
func WithAPIKey(key string) Option {
	return func(cl *Client) { cl.apiKey = key }
}

// WithHeader adds a header sent with every request (e.g. OpenAI-Organization).
func WithHeader(key, value string) Option {
	return func(cl *Client) { cl.headers.Add(key, value) }
}

// WithRateLimit limits outgoing requests to rps per second with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(cl *Client) {
		if rps <= 0 {
			cl.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		cl.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBreaker enables the circuit breaker. Transport failures and 5xx responses count as failures.
func WithBreaker(cfg BreakerConfig) Option {
	return func(cl *Client) { cl.breakerCfg = &cfg }
}

// WithLogger sets the logger. If l is nil, the default discard logger is kept.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithMaxBodySize caps the response body size. n <= 0 keeps the default (10 MB).
func WithMaxBodySize(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBody = n
		}
	}
}
