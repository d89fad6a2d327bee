// Package apiclient provides the main entry point for creating API clients.
package apiclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/apicore/internal/auth"
	"github.com/fivetwenty-io/apicore/internal/client"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
)

// Option adjusts the config before the client is built.
type Option func(*apicore.Config) error

// WithLogger sets the logger.
func WithLogger(logger apicore.Logger) Option {
	return func(c *apicore.Config) error {
		c.Logger = logger

		return nil
	}
}

// WithNotifier sets the global error notifier.
func WithNotifier(notifier apicore.Notifier) Option {
	return func(c *apicore.Config) error {
		c.Notifier = notifier

		return nil
	}
}

// WithRedirector sets what happens when the session ends.
func WithRedirector(redirector apicore.Redirector) Option {
	return func(c *apicore.Config) error {
		c.Redirector = redirector

		return nil
	}
}

// WithCredentialStore sets the credential store.
func WithCredentialStore(store apicore.CredentialStore) Option {
	return func(c *apicore.Config) error {
		c.CredentialStore = store

		return nil
	}
}

// WithFileStore persists credentials in a YAML file at path. An empty path
// means ~/.apicore/credentials.yml.
func WithFileStore(path string) Option {
	return func(c *apicore.Config) error {
		if path == "" {
			defaultPath, err := auth.DefaultFileStorePath()
			if err != nil {
				return fmt.Errorf("failed to locate credential file: %w", err)
			}

			path = defaultPath
		}

		c.CredentialStore = auth.NewFileStore(path)

		return nil
	}
}

// New creates a client and restores any stored credential.
func New(ctx context.Context, config *apicore.Config, opts ...Option) (apicore.Client, error) {
	if config == nil {
		return nil, apicore.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return nil, apicore.ErrAPIEndpointRequired
	}

	cfg := *config
	cfg.APIEndpoint = normalizeEndpoint(cfg.APIEndpoint)

	for _, opt := range opts {
		err := opt(&cfg)
		if err != nil {
			return nil, err
		}
	}

	apiClient, err := client.New(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	err = apiClient.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}

	return apiClient, nil
}

// NewWithEndpoint creates a client with default settings.
func NewWithEndpoint(ctx context.Context, endpoint string, opts ...Option) (apicore.Client, error) {
	return New(ctx, &apicore.Config{APIEndpoint: endpoint}, opts...)
}

// NewWithToken creates a client holding an existing access token.
func NewWithToken(ctx context.Context, endpoint, token string, opts ...Option) (apicore.Client, error) {
	apiClient, err := NewWithEndpoint(ctx, endpoint, opts...)
	if err != nil {
		return nil, err
	}

	err = apiClient.SetCredential(ctx, &apicore.Credential{AccessToken: token})
	if err != nil {
		_ = apiClient.Shutdown(ctx)

		return nil, fmt.Errorf("failed to set credential: %w", err)
	}

	return apiClient, nil
}

func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	return endpoint
}
