// Package client implements the request pipeline: credential attachment,
// request tracking, retries, error classification and notification.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fivetwenty-io/apicore/internal/auth"
	"github.com/fivetwenty-io/apicore/internal/classify"
	"github.com/fivetwenty-io/apicore/internal/constants"
	apihttp "github.com/fivetwenty-io/apicore/internal/http"
	"github.com/fivetwenty-io/apicore/internal/registry"
	"github.com/fivetwenty-io/apicore/internal/retry"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
)

// Streamer is implemented by transports that can copy a response body
// straight into a writer.
type Streamer interface {
	Stream(ctx context.Context, req *apicore.TransportRequest, w io.Writer) (*apicore.TransportResponse, int64, error)
}

var _ apicore.Client = (*Client)(nil)

// Client implements apicore.Client for one session.
type Client struct {
	config     apicore.Config
	transport  apicore.Transport
	tokens     *auth.Manager
	registry   *registry.Registry
	loading    *registry.LoadingCounter
	policy     *retry.Policy
	classifier *classify.Classifier
	session    *classify.SessionGuard
	chain      *apicore.InterceptorChain
	logger     apicore.Logger

	closed        atomic.Bool
	unsubscribers []func()
}

// New creates a client from config. The config is copied and defaulted.
func New(config *apicore.Config) (*Client, error) {
	err := config.Validate()
	if err != nil {
		return nil, err
	}

	cfg := config.WithDefaults()

	client := &Client{
		config:     cfg,
		registry:   registry.New(),
		loading:    registry.NewLoadingCounter(),
		policy:     retry.NewPolicy(cfg.RetryDelay, cfg.RetryWaitMax),
		classifier: classify.New(),
		logger:     cfg.Logger,
	}

	client.transport = cfg.Transport
	if client.transport == nil {
		client.transport = apihttp.NewClient(cfg.APIEndpoint, createHTTPClientOptions(&cfg)...)
	}

	client.tokens = auth.NewManager(cfg.CredentialStore,
		auth.WithRefresher(client.createRefresher()),
		auth.WithLogger(cfg.Logger),
		auth.WithRefreshTimeout(cfg.Timeout),
		auth.WithExpiryLeeway(cfg.ExpiryLeeway),
	)

	client.session = classify.NewSessionGuard(client.tokens, cfg.Redirector, cfg.AuthEntryPoint, cfg.RedirectDelay, cfg.Logger)
	client.chain = client.buildChain()

	if cfg.Metrics != nil {
		client.unsubscribers = append(client.unsubscribers, client.loading.Subscribe(cfg.Metrics.SetLoading))
	}

	return client, nil
}

func createHTTPClientOptions(cfg *apicore.Config) []apihttp.Option {
	return []apihttp.Option{
		apihttp.WithLogger(cfg.Logger),
		apihttp.WithDebug(cfg.Debug),
		apihttp.WithUserAgent(cfg.UserAgent),
		apihttp.WithTimeout(cfg.Timeout),
	}
}

// createRefresher picks the OAuth2 grant when a token URL is configured and
// the service's refresh endpoint otherwise.
func (c *Client) createRefresher() auth.Refresher {
	refreshTransport := c.config.Transport

	var httpTransport *apihttp.Client

	if refreshTransport == nil {
		opts := append(createHTTPClientOptions(&c.config),
			apihttp.WithRetryPolicy(c.policy, constants.RefreshRetryMax))
		httpTransport = apihttp.NewClient(c.config.APIEndpoint, opts...)
		refreshTransport = httpTransport
	}

	if c.config.TokenURL != "" {
		var httpClient *http.Client
		if httpTransport != nil {
			httpClient = httpTransport.HTTPClient()
		}

		return auth.NewOAuth2Refresher(c.config.TokenURL, c.config.ClientID, c.config.ClientSecret, httpClient)
	}

	return auth.NewEndpointRefresher(refreshTransport, c.config.APIEndpoint+c.config.RefreshPath)
}

func (c *Client) buildChain() *apicore.InterceptorChain {
	chain := apicore.NewInterceptorChain(requestIDStage{})

	// Ahead of auth so that short-circuited requests are still counted.
	if c.config.Metrics != nil {
		chain.AddStage(c.config.Metrics.Stage())
	}

	chain.AddStage(authStage{tokens: c.tokens, classifier: c.classifier})
	chain.AddStage(apicore.StageFuncs(filterQuery, nil))
	chain.AddStage(loadingStage{counter: c.loading})
	chain.AddStage(registryStage{registry: c.registry})
	chain.AddStage(apicore.StageFuncs(nil, unwrapPayload))

	if c.config.Debug {
		chain.AddStage(apicore.LoggingInterceptor(c.logger))
	}

	for _, stage := range c.config.Interceptors {
		chain.AddStage(stage)
	}

	return chain
}

// Do runs req through the pipeline. On failure the returned error is an
// *apicore.Error and the response carries whatever the server sent.
func (c *Client) Do(ctx context.Context, req *apicore.Request) (*apicore.Response, error) {
	if c.closed.Load() {
		return nil, constants.ErrClientShutdown
	}

	c.normalize(req)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req.SetMetadata(metadataCancel, context.CancelFunc(cancel))

	resp := &apicore.Response{}

	err := c.chain.ExecuteRequestInterceptors(ctx, req)
	if err == nil {
		err = c.dispatch(ctx, req, resp)
	}

	if err != nil {
		err = c.toAPIError(req, err)
		resp.Error = err
	}

	afterErr := c.chain.ExecuteResponseInterceptors(ctx, req, resp)
	if err == nil && afterErr != nil {
		err = c.toAPIError(req, afterErr)
		resp.Error = err
	}

	if err != nil {
		return resp, c.settle(ctx, req, err)
	}

	return resp, nil
}

func (c *Client) normalize(req *apicore.Request) {
	req.Method = strings.ToUpper(req.Method)
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	if req.Options == nil {
		req.Options = apicore.DefaultRequestOptions(&c.config)
	}

	if req.Headers == nil {
		req.Headers = make(http.Header)
	}

	if req.Query == nil {
		req.Query = url.Values{}
	}
}

func (c *Client) dispatch(ctx context.Context, req *apicore.Request, resp *apicore.Response) error {
	target := c.target(req)
	maxAttempts := req.Options.RetryCount + 1
	policy := c.policy.WithBaseDelay(req.Options.RetryDelay)

	for attempt := 1; ; attempt++ {
		resp.Attempts = attempt

		transportResp, err := c.execute(ctx, req)

		if c.superseded(ctx, req) {
			return c.classifier.Cancelled(target, context.Canceled)
		}

		if err == nil && transportResp.StatusCode >= http.StatusOK && transportResp.StatusCode < http.StatusMultipleChoices {
			resp.StatusCode = transportResp.StatusCode
			resp.Headers = transportResp.Header
			resp.Body = transportResp.Body

			return nil
		}

		if transportResp != nil {
			resp.StatusCode = transportResp.StatusCode
			resp.Headers = transportResp.Header
			resp.Body = transportResp.Body
		}

		apiErr := c.classifier.Classify(classify.Outcome{Response: transportResp, Err: err}, target)
		if apiErr.Kind == apicore.KindCancelled || !policy.ShouldRetry(apiErr, attempt, maxAttempts) {
			return apiErr
		}

		// A partial download cannot be rewound in the caller's writer.
		if writer, ok := req.Metadata[metadataDownload].(*countingWriter); ok && writer.written > 0 {
			return apiErr
		}

		delay := policy.DelayFor(attempt)

		c.logger.Warn("Retrying request", map[string]interface{}{
			"request_id": req.ID,
			"method":     req.Method,
			"path":       req.Path,
			"attempt":    attempt,
			"delay":      delay.String(),
			"error":      apiErr.Error(),
		})

		err = retry.Wait(ctx, delay)
		if errors.Is(err, context.Canceled) {
			return c.classifier.Cancelled(target, err)
		}

		if err != nil {
			return apiErr
		}
	}
}

func (c *Client) execute(ctx context.Context, req *apicore.Request) (*apicore.TransportResponse, error) {
	transportReq := &apicore.TransportRequest{
		Method:   req.Method,
		URL:      c.url(req),
		Header:   req.Headers.Clone(),
		Body:     req.Body,
		Deadline: time.Now().Add(c.config.Timeout),
	}

	writer, ok := req.Metadata[metadataDownload].(*countingWriter)
	if !ok {
		return c.transport.Execute(ctx, transportReq)
	}

	streamer, ok := c.transport.(Streamer)
	if !ok {
		transportResp, err := c.transport.Execute(ctx, transportReq)
		if err == nil && transportResp.StatusCode < http.StatusMultipleChoices {
			_, err = writer.Write(transportResp.Body)
			transportResp.Body = nil
		}

		return transportResp, err
	}

	transportResp, _, err := streamer.Stream(ctx, transportReq, writer)

	return transportResp, err
}

// superseded reports whether the request was cancelled by its caller or
// replaced by a newer request under the same key.
func (c *Client) superseded(ctx context.Context, req *apicore.Request) bool {
	if errors.Is(ctx.Err(), context.Canceled) {
		return true
	}

	ticket, ok := req.Metadata[metadataTicket].(registry.Ticket)

	return ok && !c.registry.Active(ticket)
}

func (c *Client) url(req *apicore.Request) string {
	path := req.Path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}

		path = c.config.APIEndpoint + path
	}

	if len(req.Query) > 0 {
		path += "?" + req.Query.Encode()
	}

	return path
}

func (c *Client) target(req *apicore.Request) classify.Target {
	return classify.Target{
		Method:       req.Method,
		Path:         req.Path,
		RequestID:    req.ID,
		AuthEndpoint: c.config.IsAuthEndpoint(req.Path),
	}
}

// sessionEndpoint reports whether path is the login or logout endpoint,
// whose auth failures never end the session.
func (c *Client) sessionEndpoint(path string) bool {
	return c.config.IsAuthEndpoint(path) || c.config.IsLogoutEndpoint(path)
}

// toAPIError maps any pipeline failure onto an *apicore.Error.
func (c *Client) toAPIError(req *apicore.Request, err error) *apicore.Error {
	if apiErr, ok := apicore.AsError(err); ok {
		return apiErr
	}

	target := c.target(req)

	if errors.Is(err, context.Canceled) {
		return c.classifier.Cancelled(target, err)
	}

	return &apicore.Error{
		Kind:      apicore.KindUnknown,
		Message:   err.Error(),
		RequestID: target.RequestID,
		Method:    target.Method,
		Path:      target.Path,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// settle applies session side effects and reports the error. Cancelled
// requests are returned to the caller but never reported.
func (c *Client) settle(ctx context.Context, req *apicore.Request, err error) error {
	apiErr, _ := apicore.AsError(err)

	if apiErr.Kind == apicore.KindCancelled {
		c.logger.Debug("Request cancelled", map[string]interface{}{
			"request_id": req.ID,
			"path":       req.Path,
		})

		return apiErr
	}

	ctx = context.WithoutCancel(ctx)

	switch {
	case c.sessionEndpoint(req.Path):
	case errors.Is(apiErr.Cause, constants.ErrAuthRequired):
		c.session.ScheduleRedirect()
	default:
		c.session.Handle(ctx, apiErr)
	}

	if req.Options.ErrorHandler != nil {
		req.Options.ErrorHandler.HandleError(ctx, apiErr)

		return apiErr
	}

	if req.Options.ShowErrorMessage && c.config.Notifier != nil {
		c.config.Notifier.Notify(ctx, apiErr)
	}

	return apiErr
}

// Tokens returns the token manager.
func (c *Client) Tokens() *auth.Manager {
	return c.tokens
}

// Loading returns the loading counter.
func (c *Client) Loading() *registry.LoadingCounter {
	return c.loading
}

// Pending returns the number of registered in-flight requests.
func (c *Client) Pending() int {
	return c.registry.Len()
}

// Cancel aborts the request registered under key.
func (c *Client) Cancel(key string) bool {
	return c.registry.Cancel(key)
}

// CancelAll aborts every in-flight request.
func (c *Client) CancelAll() int {
	return c.registry.CancelAll()
}

// Config returns the effective configuration.
func (c *Client) Config() apicore.Config {
	return c.config
}

// Credential returns a copy of the current credential, or nil.
func (c *Client) Credential() *apicore.Credential {
	return c.tokens.Current()
}

// OnLoadingChange subscribes fn to loading edges and returns the
// unsubscribe function.
func (c *Client) OnLoadingChange(fn func(loading bool)) func() {
	return c.loading.Subscribe(fn)
}

// IsAuthenticated reports whether a credential is held, valid or not.
func (c *Client) IsAuthenticated() bool {
	return c.tokens.Current() != nil
}

// String implements fmt.Stringer.
func (c *Client) String() string {
	return fmt.Sprintf("apicore client for %s", c.config.APIEndpoint)
}
