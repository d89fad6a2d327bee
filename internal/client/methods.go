package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/fivetwenty-io/apicore/internal/constants"
	apihttp "github.com/fivetwenty-io/apicore/internal/http"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"golang.org/x/sync/errgroup"
)

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values, opts ...apicore.RequestOption) (*apicore.Response, error) {
	return c.send(ctx, http.MethodGet, path, query, nil, opts)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}, opts ...apicore.RequestOption) (*apicore.Response, error) {
	return c.send(ctx, http.MethodPost, path, nil, body, opts)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}, opts ...apicore.RequestOption) (*apicore.Response, error) {
	return c.send(ctx, http.MethodPut, path, nil, body, opts)
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}, opts ...apicore.RequestOption) (*apicore.Response, error) {
	return c.send(ctx, http.MethodPatch, path, nil, body, opts)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...apicore.RequestOption) (*apicore.Response, error) {
	return c.send(ctx, http.MethodDelete, path, nil, nil, opts)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body interface{}, opts []apicore.RequestOption) (*apicore.Response, error) {
	data, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	return c.Do(ctx, &apicore.Request{
		Method:  method,
		Path:    path,
		Query:   query,
		Body:    data,
		Options: apicore.NewRequestOptions(&c.config, opts...),
	})
}

func encodeBody(body interface{}) ([]byte, error) {
	switch value := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return value, nil
	case json.RawMessage:
		return value, nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}

		return data, nil
	}
}

// Upload posts fields and files as multipart/form-data.
func (c *Client) Upload(ctx context.Context, path string, fields map[string]string, files []apicore.FilePart, opts ...apicore.RequestOption) (*apicore.Response, error) {
	body, contentType, err := apihttp.BuildMultipart(fields, files...)
	if err != nil {
		return nil, err
	}

	headers := make(http.Header)
	headers.Set(constants.HeaderContentType, contentType)

	return c.Do(ctx, &apicore.Request{
		Method:  http.MethodPost,
		Path:    path,
		Headers: headers,
		Body:    body,
		Options: apicore.NewRequestOptions(&c.config, opts...),
	})
}

// Download copies the body of a successful GET into w and returns the
// number of bytes written.
func (c *Client) Download(ctx context.Context, path string, query url.Values, w io.Writer, opts ...apicore.RequestOption) (int64, error) {
	writer := &countingWriter{w: w}

	req := &apicore.Request{
		Method:  http.MethodGet,
		Path:    path,
		Query:   query,
		Options: apicore.NewRequestOptions(&c.config, opts...),
	}
	req.SetMetadata(metadataDownload, writer)

	_, err := c.Do(ctx, req)

	return writer.written, err
}

// All runs calls concurrently and waits for every one to settle. Results are
// in call order; the first error encountered is returned.
func (c *Client) All(ctx context.Context, calls ...apicore.Call) ([]*apicore.Response, error) {
	results := make([]*apicore.Response, len(calls))

	var group errgroup.Group

	for i, call := range calls {
		group.Go(func() error {
			resp, err := call(ctx)
			results[i] = resp

			return err
		})
	}

	err := group.Wait()

	return results, err
}
