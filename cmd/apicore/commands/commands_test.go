package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/fivetwenty-io/apicore/internal/auth"
	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return token
}

// setupViper points the CLI at endpoint with a temporary credentials file.
func setupViper(t *testing.T, endpoint string) string {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	credentials := filepath.Join(t.TempDir(), "credentials.yml")
	viper.Set("api", endpoint)
	viper.Set("credentials", credentials)
	viper.Set("log-level", "error")

	return credentials
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestNewRequestCommand(t *testing.T) {
	cmd := NewRequestCommand()
	assert.Equal(t, "request METHOD PATH", cmd.Use)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Args)

	for _, flagName := range []string{"data", "query", "skip-auth", "retry", "retry-delay", "key"} {
		assert.NotNil(t, cmd.Flags().Lookup(flagName), "flag %s", flagName)
	}

	assert.Error(t, cmd.Args(cmd, []string{"GET"}))
}

func TestNewTokenCommand(t *testing.T) {
	cmd := NewTokenCommand()
	assert.Equal(t, "token", cmd.Use)
	require.Len(t, cmd.Commands(), 1)
	assert.Equal(t, "status", cmd.Commands()[0].Name())
}

func TestParseQuery(t *testing.T) {
	query, err := parseQuery([]string{"page=2", "tag=a", "tag=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, "2", query.Get("page"))
	assert.Equal(t, []string{"a", "b"}, query["tag"])
	assert.Empty(t, query.Get("empty"))

	_, err = parseQuery([]string{"novalue"})
	require.ErrorIs(t, err, constants.ErrInvalidQuery)

	_, err = parseQuery([]string{"=x"})
	require.ErrorIs(t, err, constants.ErrInvalidQuery)
}

func TestBuildTokenStatus(t *testing.T) {
	now := time.Now().Truncate(time.Second)

	tests := []struct {
		name          string
		cred          *apicore.Credential
		status        string
		authenticated bool
	}{
		{name: "no credential", cred: nil, status: "not logged in"},
		{
			name:          "valid",
			cred:          &apicore.Credential{AccessToken: signedToken(t, now.Add(time.Hour)), RefreshToken: "r"},
			status:        "valid",
			authenticated: true,
		},
		{
			name:          "expiring soon",
			cred:          &apicore.Credential{AccessToken: signedToken(t, now.Add(time.Minute))},
			status:        "expiring soon",
			authenticated: true,
		},
		{
			name:          "expired",
			cred:          &apicore.Credential{AccessToken: signedToken(t, now.Add(-time.Minute))},
			status:        "expired",
			authenticated: true,
		},
		{
			name:          "malformed",
			cred:          &apicore.Credential{AccessToken: "opaque"},
			status:        "unknown expiry",
			authenticated: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := buildTokenStatus(tt.cred, now)
			assert.Equal(t, tt.status, status.Status)
			assert.Equal(t, tt.authenticated, status.Authenticated)
		})
	}

	status := buildTokenStatus(&apicore.Credential{AccessToken: signedToken(t, now.Add(time.Hour)), RefreshToken: "r"}, now)
	assert.True(t, status.RefreshTokenAvailable)
	assert.Equal(t, "1h0m0s", status.TimeUntilExpiry)
}

func TestRequestCommand(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":7,"name":"alice"}}`))
	}))
	defer server.Close()

	credentials := setupViper(t, server.URL)
	require.NoError(t, auth.NewFileStore(credentials).Save(context.Background(), &apicore.Credential{AccessToken: token}))

	out, err := run(t, NewRequestCommand(), "GET", "/users", "--query", "page=2")
	require.NoError(t, err)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.InDelta(t, 7, payload["id"], 0)
	assert.Equal(t, "alice", payload["name"])
}

func TestRequestCommandWithoutCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer server.Close()

	setupViper(t, server.URL)

	_, err := run(t, NewRequestCommand(), "GET", "/users")
	require.Error(t, err)
	assert.True(t, apicore.IsAuthError(err))
}

func TestRequestCommandRequiresEndpoint(t *testing.T) {
	setupViper(t, "")

	_, err := run(t, NewRequestCommand(), "GET", "/users")
	require.ErrorIs(t, err, constants.ErrAPIEndpointRequired)
}

func TestLoginAndStatus(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, constants.DefaultLoginPath, r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, "secret", body["password"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"` + token + `","refresh_token":"refresh-1"}`))
	}))
	defer server.Close()

	credentials := setupViper(t, server.URL)

	out, err := run(t, NewLoginCommand(), "--username", "alice", "--password", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in")

	stored, err := auth.NewFileStore(credentials).Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, token, stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)

	viper.Set("output", constants.FormatJSON)

	out, err = run(t, NewTokenCommand(), "status")
	require.NoError(t, err)

	var status tokenStatus
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Authenticated)
	assert.Equal(t, "valid", status.Status)
	assert.True(t, status.RefreshTokenAvailable)
}

func TestConfigShow(t *testing.T) {
	setupViper(t, "https://api.example.com")
	viper.Set("output", constants.FormatJSON)

	out, err := run(t, NewConfigCommand(), "show")
	require.NoError(t, err)

	var settings map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &settings))
	assert.Equal(t, "https://api.example.com", settings["api"])
	assert.Equal(t, "error", settings["log-level"])
}

func TestVersion(t *testing.T) {
	setupViper(t, "https://api.example.com")
	viper.Set("output", constants.FormatJSON)

	out, err := run(t, NewVersionCommand("1.2.0", "abc123", "2026-01-01"))
	require.NoError(t, err)

	var info buildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "1.2.0", info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.Equal(t, constants.DefaultUserAgent, info.UserAgent)
	assert.Equal(t, "https://api.example.com", info.Endpoint)
	assert.NotEmpty(t, info.GoVersion)

	viper.Set("output", "table")
	viper.Set("api", "")

	out, err = run(t, NewVersionCommand("1.2.0", "abc123", "2026-01-01"))
	require.NoError(t, err)
	assert.Contains(t, out, "1.2.0")
	assert.NotContains(t, out, "API endpoint")
}
