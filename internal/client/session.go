package client

import (
	"context"
	"fmt"
	"time"

	"github.com/fivetwenty-io/apicore/internal/auth"
	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
)

// Init restores the credential from the configured store.
func (c *Client) Init(ctx context.Context) error {
	if c.closed.Load() {
		return constants.ErrClientShutdown
	}

	return c.tokens.Load(ctx)
}

// Shutdown cancels in-flight requests and pending redirects. The client
// rejects every call afterwards.
func (c *Client) Shutdown(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	cancelled := c.registry.CancelAll()
	c.session.Stop()

	for _, unsubscribe := range c.unsubscribers {
		unsubscribe()
	}

	c.logger.Debug("Client shut down", map[string]interface{}{
		"cancelled_requests": cancelled,
	})

	return nil
}

// Login authenticates against the login endpoint and stores the
// resulting credential. A 401 here is auth_invalid and never ends a session.
func (c *Client) Login(ctx context.Context, username, password string, opts ...apicore.RequestOption) (*apicore.Credential, error) {
	if username == "" {
		return nil, constants.ErrUsernameRequired
	}

	opts = append([]apicore.RequestOption{apicore.WithSkipAuth()}, opts...)

	resp, err := c.Post(ctx, c.config.LoginPath, map[string]string{
		"username": username,
		"password": password,
	}, opts...)
	if err != nil {
		return nil, err
	}

	var tokenResp auth.TokenResponse

	err = resp.Decode(&tokenResp)
	if err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}

	cred, err := tokenResp.Credential(time.Now())
	if err != nil {
		return nil, err
	}

	err = c.tokens.SetCredential(ctx, cred)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Logged in", map[string]interface{}{
		"username": username,
	})

	return cred, nil
}

// Logout notifies the server best-effort, aborts in-flight requests and
// drops the credential. No redirect is scheduled.
func (c *Client) Logout(ctx context.Context) error {
	if c.tokens.Current() != nil {
		_, err := c.Post(ctx, c.config.LogoutPath, nil,
			apicore.WithoutErrorMessage(),
			apicore.WithoutLoading(),
		)
		if err != nil {
			c.logger.Debug("Logout call failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	c.registry.CancelAll()
	c.tokens.Invalidate(ctx)

	return nil
}

// SetCredential installs a credential obtained elsewhere.
func (c *Client) SetCredential(ctx context.Context, cred *apicore.Credential) error {
	return c.tokens.SetCredential(ctx, cred)
}
