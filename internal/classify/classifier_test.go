package classify_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fivetwenty-io/apicore/internal/classify"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func response(status int, body string) classify.Outcome {
	return classify.Outcome{Response: &apicore.TransportResponse{StatusCode: status, Body: []byte(body)}}
}

func TestClassify_StatusTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		outcome classify.Outcome
		login   bool
		kind    apicore.ErrorKind
		message string
	}{
		{"session expired", response(401, ""), false, apicore.KindAuthExpired, "session expired"},
		{"login rejected", response(401, ""), true, apicore.KindAuthInvalid, "invalid credentials"},
		{"inactive account", response(498, ""), false, apicore.KindAuthExpired, "account requires activation"},
		{"forbidden", response(403, ""), false, apicore.KindForbidden, "request failed (403)"},
		{"not found", response(404, "not json"), false, apicore.KindNotFound, "request failed (404)"},
		{"request timeout", response(408, ""), false, apicore.KindTimeout, "request failed (408)"},
		{"conflict", response(409, `{"message":"name taken"}`), false, apicore.KindConflict, "name taken"},
		{"rate limited", response(429, ""), false, apicore.KindRateLimited, "request failed (429)"},
		{"server error", response(503, ""), false, apicore.KindServerError, "request failed (503)"},
		{"bad request", response(400, ""), false, apicore.KindUnknown, "request failed (400)"},
		{"detail wins", response(401, `{"detail":"token revoked"}`), false, apicore.KindAuthExpired, "token revoked"},
		{
			"network", classify.Outcome{Err: errors.New("dial tcp: connection refused")}, false,
			apicore.KindNetworkUnreachable, "network unreachable",
		},
		{
			"deadline", classify.Outcome{Err: fmt.Errorf("post: %w", context.DeadlineExceeded)}, false,
			apicore.KindTimeout, "request timed out",
		},
		{"net timeout", classify.Outcome{Err: timeoutError{}}, false, apicore.KindTimeout, "request timed out"},
		{"cancelled", classify.Outcome{Err: context.Canceled}, false, apicore.KindCancelled, "request cancelled"},
	}

	classifier := classify.New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			apiErr := classifier.Classify(tt.outcome, classify.Target{
				Method:       "GET",
				Path:         "/x",
				RequestID:    "req-1",
				AuthEndpoint: tt.login,
			})

			assert.Equal(t, tt.kind, apiErr.Kind)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, "req-1", apiErr.RequestID)
			assert.False(t, apiErr.Timestamp.IsZero())
		})
	}
}

func TestClassify_Validation(t *testing.T) {
	t.Parallel()

	body := `{"detail":[{"loc":["body","name"],"msg":"required","type":"missing"}]}`

	apiErr := classify.New().Classify(response(422, body), classify.Target{Method: "GET", Path: "/storage"})

	require.Equal(t, apicore.KindValidation, apiErr.Kind)
	assert.Equal(t, "validation failed: body.name: required", apiErr.Message)
	assert.Equal(t, 422, apiErr.Status)

	detail, ok := apiErr.Details["detail"].([]interface{})
	require.True(t, ok)
	require.Len(t, detail, 1)
	assert.Equal(t, map[string]interface{}{
		"loc":  []interface{}{"body", "name"},
		"msg":  "required",
		"type": "missing",
	}, detail[0])

	require.Len(t, apiErr.Fields, 1)
	assert.Equal(t, "required", apiErr.Fields[0].Msg)
	assert.Equal(t, "missing", apiErr.Fields[0].Type)
	assert.True(t, apicore.IsValidation(apiErr))
}

func TestClassify_ValidationWithoutFields(t *testing.T) {
	t.Parallel()

	apiErr := classify.New().Classify(response(422, `{}`), classify.Target{})
	assert.Equal(t, "request failed (422)", apiErr.Message)
}
