package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration and credential files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the transport-level deadline applied to every call,
	// including the token refresh call.
	DefaultHTTPTimeout = 120 * time.Second

	// ShortHTTPTimeout is used for best-effort calls such as logout.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits.
const (
	// DefaultRetryCount is the number of retries after the first attempt.
	DefaultRetryCount = 0

	// DefaultRetryDelay is the base delay, multiplied by the attempt number.
	DefaultRetryDelay = 1 * time.Second

	// DefaultRetryWaitMax caps a single retry delay.
	DefaultRetryWaitMax = 30 * time.Second

	// RefreshRetryMax is the retry budget of the refresh call itself.
	RefreshRetryMax = 2
)

// Session handling.
const (
	// DefaultRedirectDelay lets the current error surface before the redirect fires.
	DefaultRedirectDelay = 2 * time.Second

	// DefaultExpiryLeeway is subtracted from token expiry; expiry is exact by default.
	DefaultExpiryLeeway = 0 * time.Second

	// TokenExpiringSoon is the window used by status displays.
	TokenExpiringSoon = 5 * time.Minute

	// TokenPartsCount is the number of dot separated segments in a JWT.
	TokenPartsCount = 3
)

// Default endpoint paths.
const (
	// DefaultLoginPath is the authentication endpoint.
	DefaultLoginPath = "/user/login"

	// DefaultRefreshPath is the token refresh endpoint.
	DefaultRefreshPath = "/user/refresh_token"

	// DefaultLogoutPath is the logout endpoint.
	DefaultLogoutPath = "/user/logout"

	// DefaultAuthEntryPoint is where callers are redirected when the session ends.
	DefaultAuthEntryPoint = "/login"
)

// Header names.
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	HeaderContentType   = "Content-Type"
	HeaderAccept        = "Accept"
	HeaderUserAgent     = "User-Agent"

	// BearerPrefix precedes the access token in the Authorization header.
	BearerPrefix = "Bearer "

	ContentTypeJSON = "application/json"
)

// HTTP status codes with special handling.
const (
	// HTTPStatusInactiveAccount is the non-standard status for accounts requiring activation.
	HTTPStatusInactiveAccount = 498

	// HTTPStatusServerErrorMin is the lowest status treated as a server error.
	HTTPStatusServerErrorMin = 500
)

// Notification defaults.
const (
	// DefaultNATSSubject is the subject error events are published on.
	DefaultNATSSubject = "apicore.errors"

	// DefaultUserAgent is sent when Config.UserAgent is empty.
	DefaultUserAgent = "apicore-go"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"

	// JSONIndentSize is used when pretty-printing JSON output.
	JSONIndentSize = 2

	// NotAvailable is shown for unknown values.
	NotAvailable = "N/A"
)
