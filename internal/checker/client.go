package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"strings"
	"time"
)

const maxResponseBodySize = 10 << 20 // 10MB

// connection pooling limits to prevent resource exhaustion when probing many endpoints
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

const userAgent = "pulsewatch"

// Request describes one outbound probe request.
type Request struct {
	// Method defaults to GET.
	Method  string
	URL     string
	Headers map[string]string
	Body    string

	// Timeout aborts the request, including the body read. Zero means no limit.
	Timeout time.Duration
}

// Response holds the result of an HTTP request made by [Client].
type Response struct {
	// Body contains the HTTP response body, limited to 10MB.
	Body []byte

	// StatusCode is zero if the request failed before receiving a response.
	StatusCode int

	Header http.Header

	Timings Timings

	// Error contains any error that occurred during the request.
	// nil indicates the request completed (though status may indicate an error).
	Error error
}

// Client is an HTTP client wrapper for probing endpoints.
//
// Client uses per-request timeouts via context rather than a global timeout,
// allowing different endpoints to have different timeout configurations.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new probing [Client].
//
// Timeouts are applied per-request via the context in [Client.Fetch], not as
// a global client timeout.
func NewClient() *Client {
	return NewClientWith(&http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			MaxConnsPerHost:     defaultMaxConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
		},
	})
}

// NewClientWith wraps an existing http.Client.
func NewClientWith(httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient}
}

// Fetch performs the request and returns a structured [Response].
//
// Fetch always returns a Response; errors are captured in the Error field
// rather than returned separately. A request cut short by req.Timeout
// reports "request timed out after <timeout>".
func (c *Client) Fetch(ctx context.Context, req Request) Response {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	tracer := NewTracer()
	ctx = httptrace.WithClientTrace(ctx, tracer.ClientTrace())

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{
			Timings: tracer.Timings(start, time.Now()),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	httpReq.Header.Set("User-Agent", userAgent)
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{
			Timings: tracer.Timings(start, time.Now()),
			Error:   requestError(ctx, req.Timeout, "request failed", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	timings := tracer.Timings(start, time.Now())
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Timings:    timings,
			Error:      requestError(ctx, req.Timeout, "failed to read response body", err),
		}
	}

	return Response{
		Body:       data,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Timings:    timings,
	}
}

func requestError(ctx context.Context, timeout time.Duration, msg string, err error) error {
	if timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("request timed out after %s: %w", timeout, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Close closes all idle connections in the client's connection pool.
// Safe to call multiple times.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
