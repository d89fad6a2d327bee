package apicore

import (
	"strings"
	"time"

	"github.com/fivetwenty-io/apicore/internal/constants"
)

// Config represents client configuration for building an API client.
//
// # Authentication
//
// The client attaches "Authorization: Bearer <token>" to every request that
// does not opt out with WithSkipAuth. Tokens come from the CredentialStore
// (loaded on Init), from Login, or from a refresh. Refresh uses the endpoint
// at RefreshPath unless TokenURL is set, in which case the OAuth2
// refresh-token grant is used with ClientID/ClientSecret.
//
// # Timeouts and retries
//
// Timeout is the transport-level deadline for every call including the
// refresh call. RetryCount and RetryDelay are per-request defaults that
// individual requests may override.
type Config struct {
	// APIEndpoint: base URL every request path is resolved against.
	APIEndpoint string

	// Timeout: transport deadline per call. Defaults to 120s.
	Timeout time.Duration
	// RetryCount: retries after the first attempt for transient failures.
	RetryCount int
	// RetryDelay: base delay; the wait before retry N is N*RetryDelay.
	RetryDelay time.Duration
	// RetryWaitMax: cap on a single retry wait.
	RetryWaitMax time.Duration

	// LoginPath: authentication endpoint. A 401 from it means invalid credentials.
	LoginPath string
	// RefreshPath: token refresh endpoint.
	RefreshPath string
	// LogoutPath: logout endpoint, called best-effort by Logout.
	LogoutPath string
	// AuthEntryPoint: where the Redirector sends the user when the session ends.
	AuthEntryPoint string
	// RedirectDelay: grace period before the redirect fires.
	RedirectDelay time.Duration
	// ExpiryLeeway: subtracted from token expiry when checking validity.
	ExpiryLeeway time.Duration

	// TokenURL: OAuth2 token endpoint. When set, refresh uses the OAuth2 grant.
	TokenURL string
	// ClientID: OAuth2 client ID used with TokenURL.
	ClientID string
	// ClientSecret: OAuth2 client secret used with TokenURL.
	ClientSecret string

	// UserAgent: overrides the default User-Agent header.
	UserAgent string
	// Debug: enables request/response logging.
	Debug bool
	// Logger: optional structured logger.
	Logger Logger

	// Notifier: global error channel. Nil means errors are only returned.
	Notifier Notifier
	// Redirector: invoked after the session ends. Nil disables redirects.
	Redirector Redirector
	// CredentialStore: durable credential storage. Nil means in-memory only.
	CredentialStore CredentialStore
	// Transport: overrides the default HTTP transport.
	Transport Transport
	// Interceptors: extra stages appended after the built-in ones.
	Interceptors []Stage
	// Metrics: optional prometheus collector.
	Metrics *MetricsCollector
}

// WithDefaults returns a copy of the config with zero values filled in.
func (c Config) WithDefaults() Config {
	c.APIEndpoint = strings.TrimSuffix(c.APIEndpoint, "/")

	if c.Timeout <= 0 {
		c.Timeout = constants.DefaultHTTPTimeout
	}

	if c.RetryCount < 0 {
		c.RetryCount = constants.DefaultRetryCount
	}

	if c.RetryDelay <= 0 {
		c.RetryDelay = constants.DefaultRetryDelay
	}

	if c.RetryWaitMax <= 0 {
		c.RetryWaitMax = constants.DefaultRetryWaitMax
	}

	if c.LoginPath == "" {
		c.LoginPath = constants.DefaultLoginPath
	}

	if c.RefreshPath == "" {
		c.RefreshPath = constants.DefaultRefreshPath
	}

	if c.LogoutPath == "" {
		c.LogoutPath = constants.DefaultLogoutPath
	}

	if c.AuthEntryPoint == "" {
		c.AuthEntryPoint = constants.DefaultAuthEntryPoint
	}

	if c.RedirectDelay <= 0 {
		c.RedirectDelay = constants.DefaultRedirectDelay
	}

	if c.ExpiryLeeway < 0 {
		c.ExpiryLeeway = constants.DefaultExpiryLeeway
	}

	if c.UserAgent == "" {
		c.UserAgent = constants.DefaultUserAgent
	}

	c.Logger = LoggerOrNop(c.Logger)

	return c
}

// Validate checks the required fields.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigRequired
	}

	if c.APIEndpoint == "" {
		return ErrAPIEndpointRequired
	}

	return nil
}

// IsAuthEndpoint reports whether path is the authentication endpoint itself.
// Relative, slash-less and absolute forms of the same endpoint all match.
func (c *Config) IsAuthEndpoint(path string) bool {
	return c.samePath(path, c.LoginPath)
}

// IsLogoutEndpoint reports whether path is the logout endpoint.
func (c *Config) IsLogoutEndpoint(path string) bool {
	return c.samePath(path, c.LogoutPath)
}

func (c *Config) samePath(path, configured string) bool {
	if configured == "" {
		return false
	}

	return c.EndpointPath(path) == c.EndpointPath(configured)
}

// EndpointPath reduces path to the form "/a/b" relative to APIEndpoint:
// the endpoint prefix, query and fragment are dropped and a leading slash
// is ensured. URLs on other hosts are returned without their query only.
func (c *Config) EndpointPath(path string) string {
	path, _, _ = strings.Cut(path, "#")
	path, _, _ = strings.Cut(path, "?")

	endpoint := strings.TrimSuffix(c.APIEndpoint, "/")
	if endpoint != "" {
		if rest, ok := strings.CutPrefix(path, endpoint); ok && (rest == "" || strings.HasPrefix(rest, "/")) {
			path = rest
		}
	}

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}

	return path
}
