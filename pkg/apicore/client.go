package apicore

import (
	"context"
	"io"
	"net/url"
)

// FilePart is one file of a multipart upload.
type FilePart struct {
	FieldName string
	FileName  string
	Content   io.Reader
}

// Call is one request of a concurrent batch.
type Call func(ctx context.Context) (*Response, error)

// Client is the API client interface.
type Client interface {
	// Do runs a fully built request through the pipeline.
	Do(ctx context.Context, req *Request) (*Response, error)

	Get(ctx context.Context, path string, query url.Values, opts ...RequestOption) (*Response, error)
	Post(ctx context.Context, path string, body interface{}, opts ...RequestOption) (*Response, error)
	Put(ctx context.Context, path string, body interface{}, opts ...RequestOption) (*Response, error)
	Patch(ctx context.Context, path string, body interface{}, opts ...RequestOption) (*Response, error)
	Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error)
	Upload(ctx context.Context, path string, fields map[string]string, files []FilePart, opts ...RequestOption) (*Response, error)
	Download(ctx context.Context, path string, query url.Values, w io.Writer, opts ...RequestOption) (int64, error)
	All(ctx context.Context, calls ...Call) ([]*Response, error)

	// Session
	Login(ctx context.Context, username, password string, opts ...RequestOption) (*Credential, error)
	Logout(ctx context.Context) error
	SetCredential(ctx context.Context, cred *Credential) error
	Credential() *Credential
	IsAuthenticated() bool

	// Request tracking
	Cancel(key string) bool
	CancelAll() int
	OnLoadingChange(fn func(loading bool)) func()

	// Lifecycle
	Init(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
