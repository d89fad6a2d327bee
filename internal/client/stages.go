package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/fivetwenty-io/apicore/internal/auth"
	"github.com/fivetwenty-io/apicore/internal/classify"
	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/internal/registry"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"github.com/google/uuid"
)

// Request metadata keys used by the built-in stages.
const (
	metadataCancel   = "cancel"
	metadataTicket   = "registry_ticket"
	metadataLoading  = "loading"
	metadataDownload = "download_writer"
)

type requestIDStage struct{}

func (requestIDStage) Before(ctx context.Context, req *apicore.Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	req.Headers.Set(constants.HeaderRequestID, req.ID)

	return nil
}

func (requestIDStage) After(context.Context, *apicore.Request, *apicore.Response) error {
	return nil
}

type authStage struct {
	tokens     *auth.Manager
	classifier *classify.Classifier
}

func (s authStage) Before(ctx context.Context, req *apicore.Request) error {
	if req.Options.SkipAuth {
		return nil
	}

	token, err := s.tokens.GetValidToken(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}

		return s.classifier.AuthRequired(classify.Target{
			Method:    req.Method,
			Path:      req.Path,
			RequestID: req.ID,
		}, err)
	}

	req.Headers.Set(constants.HeaderAuthorization, constants.BearerPrefix+token)

	return nil
}

func (authStage) After(context.Context, *apicore.Request, *apicore.Response) error {
	return nil
}

// filterQuery drops parameters whose values are all empty.
func filterQuery(ctx context.Context, req *apicore.Request) error {
	for key, values := range req.Query {
		kept := values[:0]

		for _, value := range values {
			if value != "" {
				kept = append(kept, value)
			}
		}

		if len(kept) == 0 {
			req.Query.Del(key)
		} else {
			req.Query[key] = kept
		}
	}

	return nil
}

type loadingStage struct {
	counter *registry.LoadingCounter
}

func (s loadingStage) Before(ctx context.Context, req *apicore.Request) error {
	if !req.Options.ShowLoading {
		return nil
	}

	s.counter.Begin()
	req.SetMetadata(metadataLoading, true)

	return nil
}

func (s loadingStage) After(ctx context.Context, req *apicore.Request, resp *apicore.Response) error {
	if active, _ := req.Metadata[metadataLoading].(bool); active {
		req.SetMetadata(metadataLoading, false)
		s.counter.End()
	}

	return nil
}

type registryStage struct {
	registry *registry.Registry
}

func (s registryStage) Before(ctx context.Context, req *apicore.Request) error {
	cancel, _ := req.Metadata[metadataCancel].(context.CancelFunc)

	key := req.Options.RequestKey
	if key == "" {
		key = req.ID
	}

	req.SetMetadata(metadataTicket, s.registry.Register(key, cancel))

	return nil
}

func (s registryStage) After(ctx context.Context, req *apicore.Request, resp *apicore.Response) error {
	if ticket, ok := req.Metadata[metadataTicket].(registry.Ticket); ok {
		s.registry.Release(ticket)
	}

	return nil
}

// unwrapPayload exposes the "data" member of an enveloped success body as
// Response.Data, or the whole body when it is JSON without an envelope.
func unwrapPayload(ctx context.Context, req *apicore.Request, resp *apicore.Response) error {
	if resp.Error != nil || len(resp.Body) == 0 || !json.Valid(resp.Body) {
		return nil
	}

	var envelope map[string]json.RawMessage

	err := json.Unmarshal(resp.Body, &envelope)
	if err == nil {
		if data, ok := envelope["data"]; ok {
			resp.Data = data

			return nil
		}
	}

	resp.Data = json.RawMessage(resp.Body)

	return nil
}

// countingWriter tracks bytes written for downloads.
type countingWriter struct {
	w       io.Writer
	written int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.written += int64(n)

	return n, err
}
