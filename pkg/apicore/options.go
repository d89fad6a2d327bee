package apicore

import "time"

// RequestOptions is the per-request configuration.
type RequestOptions struct {
	// SkipAuth bypasses the token manager entirely.
	SkipAuth bool
	// ShowLoading makes the request participate in the loading counter.
	ShowLoading bool
	// ShowErrorMessage reports failures to the global Notifier.
	ShowErrorMessage bool
	// RetryCount is the number of retries after the first attempt.
	RetryCount int
	// RetryDelay is the base retry delay.
	RetryDelay time.Duration
	// ErrorHandler, when set, replaces the global Notifier for this request.
	ErrorHandler ErrorHandler
	// RequestKey groups duplicate logical operations; the latest one wins.
	// Empty means the request id is used.
	RequestKey string
}

// RequestOption mutates RequestOptions.
type RequestOption func(*RequestOptions)

// DefaultRequestOptions returns the options a request starts with.
func DefaultRequestOptions(config *Config) *RequestOptions {
	opts := &RequestOptions{
		ShowLoading:      true,
		ShowErrorMessage: true,
	}

	if config != nil {
		opts.RetryCount = config.RetryCount
		opts.RetryDelay = config.RetryDelay
	}

	return opts
}

// NewRequestOptions applies opts on top of the config defaults.
func NewRequestOptions(config *Config, opts ...RequestOption) *RequestOptions {
	options := DefaultRequestOptions(config)
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	if options.RetryCount < 0 {
		options.RetryCount = 0
	}

	return options
}

// WithSkipAuth sends the request without a bearer credential.
func WithSkipAuth() RequestOption {
	return func(o *RequestOptions) {
		o.SkipAuth = true
	}
}

// WithoutLoading keeps the request out of the loading counter.
func WithoutLoading() RequestOption {
	return func(o *RequestOptions) {
		o.ShowLoading = false
	}
}

// WithoutErrorMessage keeps failures away from the global Notifier.
func WithoutErrorMessage() RequestOption {
	return func(o *RequestOptions) {
		o.ShowErrorMessage = false
	}
}

// WithRetry overrides the retry count and base delay.
func WithRetry(count int, delay time.Duration) RequestOption {
	return func(o *RequestOptions) {
		o.RetryCount = count
		if delay > 0 {
			o.RetryDelay = delay
		}
	}
}

// WithErrorHandler routes failures of this request to handler only.
func WithErrorHandler(handler ErrorHandler) RequestOption {
	return func(o *RequestOptions) {
		o.ErrorHandler = handler
	}
}

// WithRequestKey registers the request under key, cancelling any request
// already registered under it.
func WithRequestKey(key string) RequestOption {
	return func(o *RequestOptions) {
		o.RequestKey = key
	}
}
