package apicore

import (
	"errors"
	"fmt"
	"time"

	"github.com/fivetwenty-io/apicore/internal/constants"
)

// ErrorKind is the closed taxonomy every failure is mapped onto.
type ErrorKind string

// Error kinds.
const (
	KindValidation         ErrorKind = "validation"
	KindAuthExpired        ErrorKind = "auth_expired"
	KindAuthInvalid        ErrorKind = "auth_invalid"
	KindForbidden          ErrorKind = "forbidden"
	KindNotFound           ErrorKind = "not_found"
	KindConflict           ErrorKind = "conflict"
	KindRateLimited        ErrorKind = "rate_limited"
	KindServerError        ErrorKind = "server_error"
	KindTimeout            ErrorKind = "timeout"
	KindNetworkUnreachable ErrorKind = "network_unreachable"
	KindCancelled          ErrorKind = "cancelled"
	KindUnknown            ErrorKind = "unknown"
)

// Retryable reports whether the kind is transient.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindServerError, KindTimeout, KindNetworkUnreachable:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	return string(k)
}

// FieldError is one entry of a 422 "detail" array.
type FieldError struct {
	Loc  []interface{} `json:"loc"  yaml:"loc"`
	Msg  string        `json:"msg"  yaml:"msg"`
	Type string        `json:"type" yaml:"type"`
}

// Error is the normalized representation of a failed request. It is built
// once by the classifier and must not be mutated afterwards.
type Error struct {
	Kind      ErrorKind              `json:"kind"                 yaml:"kind"`
	Message   string                 `json:"message"              yaml:"message"`
	Status    int                    `json:"status,omitempty"     yaml:"status,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"    yaml:"details,omitempty"`
	Fields    []FieldError           `json:"fields,omitempty"     yaml:"fields,omitempty"`
	RequestID string                 `json:"request_id,omitempty" yaml:"request_id,omitempty"`
	Method    string                 `json:"method,omitempty"     yaml:"method,omitempty"`
	Path      string                 `json:"path,omitempty"       yaml:"path,omitempty"`
	Timestamp time.Time              `json:"timestamp"            yaml:"timestamp"`
	Cause     error                  `json:"-"                    yaml:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status: %d)", e.Kind, e.Message, e.Status)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the transport cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HasResponse reports whether the server answered at all.
func (e *Error) HasResponse() bool {
	return e.Status > 0
}

// Common static errors that can be wrapped with context.
var (
	ErrAuthRequired        = constants.ErrAuthRequired
	ErrNoRefreshPath       = constants.ErrNoRefreshPath
	ErrRefreshFailed       = constants.ErrRefreshFailed
	ErrInvalidTokenFormat  = constants.ErrInvalidTokenFormat
	ErrNoExpirationClaim   = constants.ErrNoExpirationClaim
	ErrConfigRequired      = constants.ErrConfigRequired
	ErrAPIEndpointRequired = constants.ErrAPIEndpointRequired
	ErrClientShutdown      = constants.ErrClientShutdown
)

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	apiErr := &Error{}
	if errors.As(err, &apiErr) {
		return apiErr, true
	}

	return nil, false
}

// IsKind checks if the error is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	apiErr, ok := AsError(err)

	return ok && apiErr.Kind == kind
}

// IsCancelled checks if the error represents an intentional abort.
func IsCancelled(err error) bool {
	return IsKind(err, KindCancelled)
}

// IsRetryable checks if the error is of a transient kind.
func IsRetryable(err error) bool {
	apiErr, ok := AsError(err)

	return ok && apiErr.Kind.Retryable()
}

// IsValidation checks if the error is a 422 validation error.
func IsValidation(err error) bool {
	return IsKind(err, KindValidation)
}

// IsAuthError checks if the error ends or rejects the session.
func IsAuthError(err error) bool {
	return IsKind(err, KindAuthExpired) || IsKind(err, KindAuthInvalid)
}
