// Package classify maps transport outcomes onto the apicore error taxonomy
// and applies the session side effects of authentication failures.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
)

// Outcome is what came back from one transport attempt.
type Outcome struct {
	Response *apicore.TransportResponse
	Err      error
}

// Target describes the request that failed.
type Target struct {
	Method    string
	Path      string
	RequestID string
	// AuthEndpoint is true when the request was the login call itself.
	AuthEndpoint bool
}

// Classifier builds *apicore.Error values.
type Classifier struct {
	now func() time.Time
}

// New creates a classifier.
func New() *Classifier {
	return &Classifier{now: time.Now}
}

// Classify turns a failed outcome into an error. A 2xx response must not be
// passed in.
func (c *Classifier) Classify(outcome Outcome, target Target) *apicore.Error {
	apiErr := &apicore.Error{
		RequestID: target.RequestID,
		Method:    target.Method,
		Path:      target.Path,
		Timestamp: c.now().UTC(),
		Cause:     outcome.Err,
	}

	if outcome.Response == nil {
		c.classifyTransportError(apiErr, outcome.Err)

		return apiErr
	}

	status := outcome.Response.StatusCode
	apiErr.Status = status
	apiErr.Kind = kindForStatus(status, target.AuthEndpoint)

	body := decodeBody(outcome.Response.Body)
	if body != nil {
		apiErr.Details = body
	}

	if apiErr.Kind == apicore.KindValidation {
		apiErr.Fields = fieldErrors(body)
	}

	apiErr.Message = serverMessage(body)
	if apiErr.Message == "" {
		apiErr.Message = defaultMessage(apiErr, target.AuthEndpoint)
	}

	return apiErr
}

// Cancelled builds the error returned for superseded or aborted requests.
func (c *Classifier) Cancelled(target Target, cause error) *apicore.Error {
	return &apicore.Error{
		Kind:      apicore.KindCancelled,
		Message:   "request cancelled",
		RequestID: target.RequestID,
		Method:    target.Method,
		Path:      target.Path,
		Timestamp: c.now().UTC(),
		Cause:     cause,
	}
}

// AuthRequired builds the error returned when no usable credential exists.
func (c *Classifier) AuthRequired(target Target, cause error) *apicore.Error {
	return &apicore.Error{
		Kind:      apicore.KindAuthExpired,
		Message:   "authentication required",
		RequestID: target.RequestID,
		Method:    target.Method,
		Path:      target.Path,
		Timestamp: c.now().UTC(),
		Cause:     cause,
	}
}

func (c *Classifier) classifyTransportError(apiErr *apicore.Error, err error) {
	var netErr net.Error

	switch {
	case errors.Is(err, context.Canceled):
		apiErr.Kind = apicore.KindCancelled
		apiErr.Message = "request cancelled"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		apiErr.Kind = apicore.KindTimeout
		apiErr.Message = "request timed out"
	case err != nil:
		apiErr.Kind = apicore.KindNetworkUnreachable
		apiErr.Message = "network unreachable"
	default:
		apiErr.Kind = apicore.KindUnknown
		apiErr.Message = "request failed"
	}
}

func kindForStatus(status int, authEndpoint bool) apicore.ErrorKind {
	switch {
	case status == http.StatusUnauthorized && authEndpoint:
		return apicore.KindAuthInvalid
	case status == http.StatusUnauthorized, status == constants.HTTPStatusInactiveAccount:
		return apicore.KindAuthExpired
	case status == http.StatusForbidden:
		return apicore.KindForbidden
	case status == http.StatusNotFound:
		return apicore.KindNotFound
	case status == http.StatusRequestTimeout:
		return apicore.KindTimeout
	case status == http.StatusConflict:
		return apicore.KindConflict
	case status == http.StatusUnprocessableEntity:
		return apicore.KindValidation
	case status == http.StatusTooManyRequests:
		return apicore.KindRateLimited
	case status >= constants.HTTPStatusServerErrorMin:
		return apicore.KindServerError
	default:
		return apicore.KindUnknown
	}
}

func defaultMessage(apiErr *apicore.Error, authEndpoint bool) string {
	switch {
	case apiErr.Status == http.StatusUnauthorized && authEndpoint:
		return "invalid credentials"
	case apiErr.Status == http.StatusUnauthorized:
		return "session expired"
	case apiErr.Status == constants.HTTPStatusInactiveAccount:
		return "account requires activation"
	case apiErr.Kind == apicore.KindValidation && len(apiErr.Fields) > 0:
		field := apiErr.Fields[0]

		return fmt.Sprintf("validation failed: %s: %s", formatLoc(field.Loc), field.Msg)
	default:
		return fmt.Sprintf("request failed (%d)", apiErr.Status)
	}
}

func decodeBody(body []byte) map[string]interface{} {
	if len(body) == 0 {
		return nil
	}

	var payload map[string]interface{}

	err := json.Unmarshal(body, &payload)
	if err != nil {
		return nil
	}

	return payload
}

func serverMessage(body map[string]interface{}) string {
	for _, key := range []string{"detail", "message"} {
		if msg, ok := body[key].(string); ok && msg != "" {
			return msg
		}
	}

	return ""
}

func fieldErrors(body map[string]interface{}) []apicore.FieldError {
	items, ok := body["detail"].([]interface{})
	if !ok {
		return nil
	}

	fields := make([]apicore.FieldError, 0, len(items))

	for _, item := range items {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		field := apicore.FieldError{}
		field.Loc, _ = entry["loc"].([]interface{})
		field.Msg, _ = entry["msg"].(string)
		field.Type, _ = entry["type"].(string)

		fields = append(fields, field)
	}

	return fields
}

func formatLoc(loc []interface{}) string {
	parts := make([]string, 0, len(loc))
	for _, part := range loc {
		parts = append(parts, fmt.Sprint(part))
	}

	return strings.Join(parts, ".")
}
