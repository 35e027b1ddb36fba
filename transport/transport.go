package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/jurraca/req-llm"
)

// Defaults for New.
const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxBodySize = 10 << 20

	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

const defaultUserAgent = "reqllm/1.0"

// Client sends compiled requests and returns raw responses. Non-2xx statuses are not errors here;
// they are returned as RawResponse for the decoder to classify. Safe for concurrent use.
type Client struct {
	http       *http.Client
	apiKey     string
	headers    http.Header
	limiter    *rate.Limiter
	breakerCfg *BreakerConfig
	breaker    *gobreaker.CircuitBreaker[*reqllm.RawResponse]
	logger     *slog.Logger
	maxBody    int64
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: DefaultTimeout},
		headers: make(http.Header),
		logger:  slog.New(slog.DiscardHandler),
		maxBody: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breakerCfg != nil {
		c.breaker = c.newBreaker(*c.breakerCfg)
	}
	return c
}

func (c *Client) newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[*reqllm.RawResponse] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}
	return gobreaker.NewCircuitBreaker[*reqllm.RawResponse](gobreaker.Settings{
		Name:        "transport",
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is not an upstream failure.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// Do sends req and returns the response status, headers and body.
func (c *Client) Do(ctx context.Context, req *reqllm.Request) (*reqllm.RawResponse, error) {
	if req == nil {
		return nil, reqllm.ErrNilRequest
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
	}
	if c.breaker == nil {
		return c.send(ctx, req)
	}
	raw, err := c.breaker.Execute(func() (*reqllm.RawResponse, error) {
		raw, err := c.send(ctx, req)
		if err != nil {
			return nil, err
		}
		if raw.StatusCode >= http.StatusInternalServerError {
			return raw, errServerStatus
		}
		return raw, nil
	})
	switch {
	case err == nil:
		return raw, nil
	case errors.Is(err, errServerStatus):
		return raw, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	default:
		return nil, err
	}
}

// State reports the circuit breaker state, or gobreaker.StateClosed when no breaker is configured.
func (c *Client) State() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}

func (c *Client) send(ctx context.Context, req *reqllm.Request) (*reqllm.RawResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range c.headers {
		httpReq.Header[k] = append([]string(nil), vs...)
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", defaultUserAgent)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq) // #nosec G704 -- URL is built by the codec from configured base URL
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrSendFailed, method, req.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	limit := c.maxBody
	if limit < math.MaxInt64 {
		limit++
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrSendFailed, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, c.maxBody)
	}
	c.logger.Debug("http round trip",
		"request_id", req.ID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"bytes", len(body),
	)
	return &reqllm.RawResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}
