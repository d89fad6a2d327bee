package client_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/apicore/internal/client"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testEndpoint = "https://api.test"

type transportFunc func(ctx context.Context, req *apicore.TransportRequest) (*apicore.TransportResponse, error)

// fakeTransport records every call and delegates to handler.
type fakeTransport struct {
	mutex   sync.Mutex
	calls   []*apicore.TransportRequest
	handler transportFunc
}

func (f *fakeTransport) Execute(ctx context.Context, req *apicore.TransportRequest) (*apicore.TransportResponse, error) {
	f.mutex.Lock()
	f.calls = append(f.calls, req)
	f.mutex.Unlock()

	return f.handler(ctx, req)
}

func (f *fakeTransport) count(pathSuffix string) int {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	n := 0

	for _, call := range f.calls {
		if strings.HasSuffix(strings.SplitN(call.URL, "?", 2)[0], pathSuffix) {
			n++
		}
	}

	return n
}

func (f *fakeTransport) last() *apicore.TransportRequest {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	return f.calls[len(f.calls)-1]
}

func reply(status int, body string) (*apicore.TransportResponse, error) {
	return &apicore.TransportResponse{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
	}, nil
}

type recorder struct {
	notified  atomic.Int32
	handled   atomic.Int32
	redirects atomic.Int32

	mutex sync.Mutex
	last  *apicore.Error
}

func (r *recorder) Notify(ctx context.Context, err *apicore.Error) {
	r.notified.Add(1)

	r.mutex.Lock()
	r.last = err
	r.mutex.Unlock()
}

func (r *recorder) HandleError(ctx context.Context, err *apicore.Error) {
	r.handled.Add(1)
}

func (r *recorder) Redirect(string) {
	r.redirects.Add(1)
}

func newTestClient(t *testing.T, handler transportFunc, mutate func(*apicore.Config)) (*client.Client, *fakeTransport, *recorder) {
	t.Helper()

	transport := &fakeTransport{handler: handler}
	rec := &recorder{}

	config := &apicore.Config{
		APIEndpoint:   testEndpoint,
		Transport:     transport,
		RetryDelay:    time.Millisecond,
		RedirectDelay: 20 * time.Millisecond,
		Notifier:      rec,
		Redirector:    rec,
	}

	if mutate != nil {
		mutate(config)
	}

	c, err := client.New(config)
	require.NoError(t, err)

	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	return c, transport, rec
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return token
}

func login(t *testing.T, c *client.Client) string {
	t.Helper()

	token := signedToken(t, time.Now().Add(time.Hour))
	require.NoError(t, c.SetCredential(context.Background(), &apicore.Credential{AccessToken: token}))

	return token
}
