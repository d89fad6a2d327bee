package apicore

import (
	"context"
	"net/http"
	"time"
)

// Credential is the authenticated-session state owned by the token manager.
type Credential struct {
	AccessToken  string    `json:"access_token"            yaml:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"    yaml:"expires_at,omitempty"`
}

// Clone returns a copy of the credential, nil-safe.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}

	clone := *c

	return &clone
}

// HasRefreshToken reports whether a dedicated refresh credential is present.
func (c *Credential) HasRefreshToken() bool {
	return c != nil && c.RefreshToken != ""
}

// CredentialStore is the durable storage for the session credential.
// Load returns (nil, nil) when nothing is stored.
type CredentialStore interface {
	Load(ctx context.Context) (*Credential, error)
	Save(ctx context.Context, cred *Credential) error
	Clear(ctx context.Context) error
}

// TransportRequest is a single call handed to the Transport.
type TransportRequest struct {
	Method   string
	URL      string
	Header   http.Header
	Body     []byte
	Deadline time.Time
}

// TransportResponse is what the Transport returns for any HTTP status.
type TransportResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport executes HTTP calls. Cancellation is carried by ctx. A non-nil
// error means no HTTP response was received.
type Transport interface {
	Execute(ctx context.Context, req *TransportRequest) (*TransportResponse, error)
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, map[string]interface{}) {}
func (noopLogger) Info(string, map[string]interface{})  {}
func (noopLogger) Warn(string, map[string]interface{})  {}
func (noopLogger) Error(string, map[string]interface{}) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return noopLogger{}
}

// LoggerOrNop returns logger, or a no-op logger when it is nil.
func LoggerOrNop(logger Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}

	return logger
}

// Notifier is the global channel classified errors are reported through.
type Notifier interface {
	Notify(ctx context.Context, err *Error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, err *Error)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, err *Error) {
	f(ctx, err)
}

// ErrorHandler replaces the global Notifier for a single request.
type ErrorHandler interface {
	HandleError(ctx context.Context, err *Error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(ctx context.Context, err *Error)

// HandleError implements ErrorHandler.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, err *Error) {
	f(ctx, err)
}

// Redirector sends the user to the authentication entry point.
type Redirector interface {
	Redirect(entryPoint string)
}

// RedirectFunc adapts a function to Redirector.
type RedirectFunc func(entryPoint string)

// Redirect implements Redirector.
func (f RedirectFunc) Redirect(entryPoint string) {
	f(entryPoint)
}
