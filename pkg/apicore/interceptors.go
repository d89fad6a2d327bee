package apicore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Request represents an HTTP request that can be intercepted.
type Request struct {
	ID       string
	Method   string
	Path     string
	Query    url.Values
	Headers  http.Header
	Body     []byte
	Options  *RequestOptions
	Metadata map[string]interface{}

	entered int
}

// SetMetadata stores a value in the request metadata.
func (r *Request) SetMetadata(key string, value interface{}) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}

	r.Metadata[key] = value
}

// Response represents an HTTP response that can be intercepted.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Data       json.RawMessage
	Attempts   int
	Error      error
}

// Decode unmarshals the unwrapped payload into v.
func (r *Response) Decode(v interface{}) error {
	payload := r.Data
	if len(payload) == 0 {
		payload = r.Body
	}

	if len(payload) == 0 {
		return nil
	}

	err := json.Unmarshal(payload, v)
	if err != nil {
		return fmt.Errorf("failed to decode response payload: %w", err)
	}

	return nil
}

// RequestInterceptor is called before a request is sent.
type RequestInterceptor func(ctx context.Context, req *Request) error

// ResponseInterceptor is called after a response is received.
type ResponseInterceptor func(ctx context.Context, req *Request, resp *Response) error

// Stage is one element of the pipeline. Before runs on the way out in
// registration order, After runs on the way back in reverse order. A Before
// error short-circuits the chain.
type Stage interface {
	Before(ctx context.Context, req *Request) error
	After(ctx context.Context, req *Request, resp *Response) error
}

type funcStage struct {
	before RequestInterceptor
	after  ResponseInterceptor
}

func (s funcStage) Before(ctx context.Context, req *Request) error {
	if s.before == nil {
		return nil
	}

	return s.before(ctx, req)
}

func (s funcStage) After(ctx context.Context, req *Request, resp *Response) error {
	if s.after == nil {
		return nil
	}

	return s.after(ctx, req, resp)
}

// StageFuncs builds a Stage from a pair of functions; either may be nil.
func StageFuncs(before RequestInterceptor, after ResponseInterceptor) Stage {
	return funcStage{before: before, after: after}
}

// InterceptorChain manages an ordered list of stages.
type InterceptorChain struct {
	stages []Stage
}

// NewInterceptorChain creates a new interceptor chain.
func NewInterceptorChain(stages ...Stage) *InterceptorChain {
	chain := &InterceptorChain{
		stages: make([]Stage, 0, len(stages)),
	}

	for _, stage := range stages {
		chain.AddStage(stage)
	}

	return chain
}

// AddStage appends a stage to the chain.
func (c *InterceptorChain) AddStage(stage Stage) {
	if stage != nil {
		c.stages = append(c.stages, stage)
	}
}

// AddRequestInterceptor adds a request interceptor to the chain.
func (c *InterceptorChain) AddRequestInterceptor(interceptor RequestInterceptor) {
	c.AddStage(funcStage{before: interceptor})
}

// AddResponseInterceptor adds a response interceptor to the chain.
func (c *InterceptorChain) AddResponseInterceptor(interceptor ResponseInterceptor) {
	c.AddStage(funcStage{after: interceptor})
}

// Len returns the number of stages.
func (c *InterceptorChain) Len() int {
	return len(c.stages)
}

// ExecuteRequestInterceptors runs Before of every stage in order and stops
// at the first error.
func (c *InterceptorChain) ExecuteRequestInterceptors(ctx context.Context, req *Request) error {
	req.entered = 0

	for _, stage := range c.stages {
		err := stage.Before(ctx, req)
		if err != nil {
			return fmt.Errorf("request interceptor failed: %w", err)
		}

		req.entered++
	}

	return nil
}

// ExecuteResponseInterceptors runs After in reverse order for the stages
// whose Before completed. Every stage runs even if an earlier one fails.
func (c *InterceptorChain) ExecuteResponseInterceptors(ctx context.Context, req *Request, resp *Response) error {
	entered := min(req.entered, len(c.stages))

	var errs []error

	for i := entered - 1; i >= 0; i-- {
		err := c.stages[i].After(ctx, req, resp)
		if err != nil {
			errs = append(errs, fmt.Errorf("response interceptor failed: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Common Interceptors

// LoggingInterceptor logs requests and responses.
func LoggingInterceptor(logger Logger) Stage {
	logger = LoggerOrNop(logger)

	return funcStage{
		before: func(ctx context.Context, req *Request) error {
			logger.Debug("API Request", map[string]interface{}{
				"method":     req.Method,
				"path":       req.Path,
				"request_id": req.ID,
			})

			return nil
		},
		after: func(ctx context.Context, req *Request, resp *Response) error {
			fields := map[string]interface{}{
				"method":      req.Method,
				"path":        req.Path,
				"request_id":  req.ID,
				"status_code": resp.StatusCode,
				"attempts":    resp.Attempts,
			}

			if resp.Error != nil && !IsCancelled(resp.Error) {
				fields["error"] = resp.Error.Error()
				logger.Error("API Response Error", fields)
			} else {
				logger.Debug("API Response", fields)
			}

			return nil
		},
	}
}

// HeaderInterceptor adds custom headers to requests.
func HeaderInterceptor(headers map[string]string) RequestInterceptor {
	return func(ctx context.Context, req *Request) error {
		if req.Headers == nil {
			req.Headers = make(http.Header)
		}

		for key, value := range headers {
			req.Headers.Set(key, value)
		}

		return nil
	}
}
