package client_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamingTransport serves downloads through stream.
type streamingTransport struct {
	*fakeTransport

	streams atomic.Int32
	stream  func(attempt int32, w io.Writer) (*apicore.TransportResponse, int64, error)
}

func (s *streamingTransport) Stream(ctx context.Context, req *apicore.TransportRequest, w io.Writer) (*apicore.TransportResponse, int64, error) {
	return s.stream(s.streams.Add(1), w)
}

func TestDo_LoginFailureKeepsSessionForEveryPathForm(t *testing.T) {
	t.Parallel()

	paths := []string{
		"/user/login",
		"user/login",
		"user/login/",
		"/user/login?next=%2Fstorage",
		testEndpoint + "/user/login",
		"/user/logout",
		"user/logout/",
		testEndpoint + "/user/logout",
	}

	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			c, _, rec := newTestClient(t, func(ctx context.Context, req *apicore.TransportRequest) (*apicore.TransportResponse, error) {
				return reply(401, ``)
			}, nil)
			login(t, c)

			_, err := c.Post(context.Background(), path, map[string]string{"username": "u"})
			require.Error(t, err)

			if strings.Contains(path, "login") {
				assert.True(t, apicore.IsKind(err, apicore.KindAuthInvalid))
			}

			time.Sleep(40 * time.Millisecond)
			assert.True(t, c.IsAuthenticated())
			assert.Zero(t, rec.redirects.Load())
			assert.Zero(t, rec.handled.Load())
		})
	}
}

func TestSetCredential_RejectsOpaqueToken(t *testing.T) {
	t.Parallel()

	c, transport, _ := newTestClient(t, func(ctx context.Context, req *apicore.TransportRequest) (*apicore.TransportResponse, error) {
		return reply(200, `{}`)
	}, nil)

	err := c.SetCredential(context.Background(), &apicore.Credential{
		AccessToken: "opaque-token",
		ExpiresAt:   time.Now().Add(time.Hour),
	})
	require.ErrorIs(t, err, constants.ErrInvalidTokenFormat)
	assert.False(t, c.IsAuthenticated())

	_, err = c.Get(context.Background(), "/storage", nil)
	assert.True(t, apicore.IsKind(err, apicore.KindAuthExpired))
	assert.Zero(t, transport.count("/storage"))
}

func TestDo_OpaqueRefreshResultIsNotStored(t *testing.T) {
	t.Parallel()

	stale := signedToken(t, time.Now().Add(-time.Minute))

	c, transport, _ := newTestClient(t, func(ctx context.Context, req *apicore.TransportRequest) (*apicore.TransportResponse, error) {
		if req.URL == testEndpoint+"/user/refresh_token" {
			return reply(200, `{"access_token":"opaque-token"}`)
		}

		return reply(200, `{}`)
	}, nil)

	require.NoError(t, c.SetCredential(context.Background(), &apicore.Credential{
		AccessToken:  stale,
		RefreshToken: "refresh",
	}))

	_, err := c.Get(context.Background(), "/storage", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, transport.count("/user/refresh_token"))
	assert.Equal(t, "Bearer "+stale, transport.last().Header.Get("Authorization"))
	assert.Equal(t, stale, c.Credential().AccessToken)
}

func TestDo_MetricsCountShortCircuitedRequests(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()

	c, transport, _ := newTestClient(t, func(ctx context.Context, req *apicore.TransportRequest) (*apicore.TransportResponse, error) {
		return reply(200, `{}`)
	}, func(cfg *apicore.Config) {
		cfg.Metrics = apicore.NewMetricsCollectorWithRegistry(registry)
	})

	_, err := c.Get(context.Background(), "/storage", nil)
	require.ErrorIs(t, err, constants.ErrAuthRequired)
	assert.Zero(t, transport.count("/storage"))

	expected := `
# HELP apicore_errors_total Total number of classified errors
# TYPE apicore_errors_total counter
apicore_errors_total{kind="auth_expired"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "apicore_errors_total"))

	count, err := testutil.GatherAndCount(registry, "apicore_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDownload_PartialBodyIsNotRetried(t *testing.T) {
	t.Parallel()

	var transport *streamingTransport

	c, _, _ := newTestClient(t, nil, func(cfg *apicore.Config) {
		transport = &streamingTransport{
			fakeTransport: &fakeTransport{handler: func(ctx context.Context, req *apicore.TransportRequest) (*apicore.TransportResponse, error) {
				return reply(200, `{}`)
			}},
			stream: func(attempt int32, w io.Writer) (*apicore.TransportResponse, int64, error) {
				n, _ := w.Write([]byte("partial"))

				return nil, int64(n), errors.New("connection reset by peer")
			},
		}
		cfg.Transport = transport
	})

	var buf bytes.Buffer

	written, err := c.Download(context.Background(), "/images/1/blob", nil, &buf,
		apicore.WithSkipAuth(), apicore.WithRetry(2, time.Millisecond))
	require.Error(t, err)
	assert.True(t, apicore.IsKind(err, apicore.KindNetworkUnreachable))
	assert.Equal(t, int32(1), transport.streams.Load())
	assert.Equal(t, int64(7), written)
	assert.Equal(t, "partial", buf.String())
}

func TestDownload_RetriesBeforeFirstByte(t *testing.T) {
	t.Parallel()

	var transport *streamingTransport

	c, _, _ := newTestClient(t, nil, func(cfg *apicore.Config) {
		transport = &streamingTransport{
			fakeTransport: &fakeTransport{},
			stream: func(attempt int32, w io.Writer) (*apicore.TransportResponse, int64, error) {
				if attempt == 1 {
					return nil, 0, errors.New("connection refused")
				}

				n, _ := w.Write([]byte("blob"))

				return &apicore.TransportResponse{StatusCode: 200}, int64(n), nil
			},
		}
		cfg.Transport = transport
	})

	var buf bytes.Buffer

	written, err := c.Download(context.Background(), "/images/1/blob", nil, &buf,
		apicore.WithSkipAuth(), apicore.WithRetry(2, time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int32(2), transport.streams.Load())
	assert.Equal(t, int64(4), written)
	assert.Equal(t, "blob", buf.String())
}

func TestDo_WithoutLoadingLeavesCounterUntouched(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{}, 1)
	release := make(chan struct{})

	c, _, _ := newTestClient(t, func(ctx context.Context, req *apicore.TransportRequest) (*apicore.TransportResponse, error) {
		entered <- struct{}{}
		<-release

		return reply(200, `{}`)
	}, nil)
	login(t, c)

	run := func(opts ...apicore.RequestOption) int64 {
		done := make(chan error, 1)

		go func() {
			_, err := c.Get(context.Background(), "/storage", nil, opts...)
			done <- err
		}()

		<-entered
		count := c.Loading().Count()
		release <- struct{}{}
		require.NoError(t, <-done)

		return count
	}

	assert.Equal(t, int64(0), run(apicore.WithoutLoading()))
	assert.Equal(t, int64(1), run())
	assert.Equal(t, int64(0), c.Loading().Count())
}
