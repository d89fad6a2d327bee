// Package http is the transport: it executes single HTTP calls on top of
// go-retryablehttp and returns the status, headers and body of any response.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/internal/retry"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"github.com/hashicorp/go-retryablehttp"
)

// Client implements apicore.Transport.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
	logger     apicore.Logger
	userAgent  string
	debug      bool
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets the logger, also used for retryablehttp's own messages.
func WithLogger(logger apicore.Logger) Option {
	return func(c *Client) {
		c.logger = apicore.LoggerOrNop(logger)
		c.httpClient.Logger = leveledLogger{logger: c.logger}
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.HTTPClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient.HTTPClient = httpClient
		}
	}
}

// WithRetryConfig lets the transport retry transient failures itself using
// retryablehttp's default policy. The request pipeline keeps this at zero
// and retries on its own.
func WithRetryConfig(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = maxRetries
		c.httpClient.RetryWaitMin = waitMin
		c.httpClient.RetryWaitMax = waitMax
	}
}

// WithRetryPolicy drives transport-level retries with policy.
func WithRetryPolicy(policy *retry.Policy, maxRetries int) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = maxRetries
		c.httpClient.CheckRetry = policy.CheckRetry()
		c.httpClient.Backoff = policy.Backoff()
	}
}

// NewClient creates a transport. Relative URLs are resolved against baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = constants.DefaultRetryCount
	retryClient.RetryWaitMin = constants.DefaultRetryDelay
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	client := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: retryClient,
		logger:     apicore.NopLogger(),
		userAgent:  constants.DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// HTTPClient returns the standard client underneath, for libraries that
// need one.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient.StandardClient()
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}

	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.baseURL + path
}

// Execute performs one call. Any HTTP status yields a response and a nil
// error; an error means no response was received.
func (c *Client) Execute(ctx context.Context, req *apicore.TransportRequest) (*apicore.TransportResponse, error) {
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc

		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	var body interface{}
	if req.Body != nil {
		body = req.Body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, c.URL(req.URL), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	if httpReq.Header.Get(constants.HeaderUserAgent) == "" {
		httpReq.Header.Set(constants.HeaderUserAgent, c.userAgent)
	}

	if httpReq.Header.Get(constants.HeaderAccept) == "" {
		httpReq.Header.Set(constants.HeaderAccept, constants.ContentTypeJSON)
	}

	if len(req.Body) > 0 && httpReq.Header.Get(constants.HeaderContentType) == "" {
		httpReq.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    httpReq.URL.String(),
		})
	}

	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status":   resp.StatusCode,
			"duration": time.Since(start).String(),
			"bytes":    len(respBody),
		})
	}

	return &apicore.TransportResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// Stream performs a GET and copies the response body into w when the
// status is 2xx. Other responses are returned with their body buffered.
func (c *Client) Stream(ctx context.Context, req *apicore.TransportRequest, w io.Writer) (*apicore.TransportResponse, int64, error) {
	if !req.Deadline.IsZero() {
		var cancel context.CancelFunc

		ctx, cancel = context.WithDeadline(ctx, req.Deadline)
		defer cancel()
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, c.URL(req.URL), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}

	httpReq.Header.Set(constants.HeaderUserAgent, c.userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	result := &apicore.TransportResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var buf bytes.Buffer

		_, err = io.Copy(&buf, resp.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read response body: %w", err)
		}

		result.Body = buf.Bytes()

		return result, 0, nil
	}

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return nil, written, fmt.Errorf("failed to stream response body: %w", err)
	}

	return result, written, nil
}

// leveledLogger adapts apicore.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger apicore.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, fields(keysAndValues))
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, fields(keysAndValues))
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues))
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, fields(keysAndValues))
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		result[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}

	return result
}
