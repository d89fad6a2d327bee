package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"golang.org/x/oauth2"
)

// Refresher exchanges the current credential for a fresh one.
type Refresher interface {
	Refresh(ctx context.Context, current *apicore.Credential) (*apicore.Credential, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, current *apicore.Credential) (*apicore.Credential, error)

// Refresh implements Refresher.
func (f RefresherFunc) Refresh(ctx context.Context, current *apicore.Credential) (*apicore.Credential, error) {
	return f(ctx, current)
}

// EndpointRefresher calls the service's own refresh endpoint. The refresh
// token is sent as bearer credential and in the body; when no refresh token
// exists the access token is used as bearer instead.
type EndpointRefresher struct {
	transport apicore.Transport
	url       string
	now       func() time.Time
}

// NewEndpointRefresher creates a refresher posting to refreshURL.
func NewEndpointRefresher(transport apicore.Transport, refreshURL string) *EndpointRefresher {
	return &EndpointRefresher{
		transport: transport,
		url:       refreshURL,
		now:       time.Now,
	}
}

// Refresh implements Refresher.
func (r *EndpointRefresher) Refresh(ctx context.Context, current *apicore.Credential) (*apicore.Credential, error) {
	if current == nil || current.AccessToken == "" {
		return nil, constants.ErrAuthRequired
	}

	header := http.Header{}
	header.Set(constants.HeaderAccept, constants.ContentTypeJSON)

	var body []byte

	bearer := current.AccessToken

	if current.HasRefreshToken() {
		bearer = current.RefreshToken

		payload, err := json.Marshal(map[string]string{"refresh_token": current.RefreshToken})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", constants.ErrRefreshFailed, err)
		}

		body = payload

		header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	}

	header.Set(constants.HeaderAuthorization, constants.BearerPrefix+bearer)

	req := &apicore.TransportRequest{
		Method: http.MethodPost,
		URL:    r.url,
		Header: header,
		Body:   body,
	}

	if deadline, ok := ctx.Deadline(); ok {
		req.Deadline = deadline
	}

	resp, err := r.transport.Execute(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrRefreshFailed, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: refresh endpoint returned status %d", constants.ErrRefreshFailed, resp.StatusCode)
	}

	tokenResp, err := DecodeTokenResponse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrRefreshFailed, err)
	}

	return tokenResp.Credential(r.now())
}

// DecodeTokenResponse parses a token body, accepting a {"data": ...} envelope.
func DecodeTokenResponse(body []byte) (*TokenResponse, error) {
	var envelope struct {
		Data *TokenResponse `json:"data"`
	}

	err := json.Unmarshal(body, &envelope)
	if err == nil && envelope.Data != nil && envelope.Data.AccessToken != "" {
		return envelope.Data, nil
	}

	var tokenResp TokenResponse

	err = json.Unmarshal(body, &tokenResp)
	if err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, constants.ErrMissingAccessToken
	}

	return &tokenResp, nil
}

// OAuth2Refresher renews the credential with the OAuth2 refresh_token grant.
type OAuth2Refresher struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewOAuth2Refresher creates a refresher against tokenURL.
func NewOAuth2Refresher(tokenURL, clientID, clientSecret string, httpClient *http.Client) *OAuth2Refresher {
	return &OAuth2Refresher{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL: tokenURL,
			},
		},
		httpClient: httpClient,
	}
}

// Refresh implements Refresher.
func (r *OAuth2Refresher) Refresh(ctx context.Context, current *apicore.Credential) (*apicore.Credential, error) {
	if !current.HasRefreshToken() {
		return nil, constants.ErrNoRefreshPath
	}

	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	seed := &oauth2.Token{RefreshToken: current.RefreshToken}

	token, err := r.config.TokenSource(ctx, seed).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", constants.ErrRefreshFailed, err)
	}

	return &apicore.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}, nil
}
