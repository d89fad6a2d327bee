package constants

import "errors"

// Authentication errors.
var (
	ErrAuthRequired       = errors.New("authentication required")
	ErrNoRefreshPath      = errors.New("no refresh path available")
	ErrRefreshFailed      = errors.New("token refresh failed")
	ErrInvalidTokenFormat = errors.New("invalid token format")
	ErrNoExpirationClaim  = errors.New("no expiration claim found")
	ErrMissingAccessToken = errors.New("response is missing access_token")
)

// Configuration errors.
var (
	ErrConfigRequired      = errors.New("config is required")
	ErrAPIEndpointRequired = errors.New("API endpoint is required")
	ErrNoTransport         = errors.New("no transport configured")
	ErrClientShutdown      = errors.New("client has been shut down")
)

// CLI errors.
var (
	ErrUsernameRequired = errors.New("username is required")
	ErrNotAuthenticated = errors.New("not authenticated, use 'apicore login' first")
	ErrInvalidQuery     = errors.New("query parameters must be key=value")
	ErrUnknownFormat    = errors.New("unknown output format")
)
