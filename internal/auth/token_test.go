package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fivetwenty-io/apicore/internal/auth"
	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpiry(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	got, err := auth.ParseExpiry(signedToken(t, exp))
	require.NoError(t, err)
	assert.True(t, exp.Equal(got))

	_, err = auth.ParseExpiry("not-a-jwt")
	require.ErrorIs(t, err, constants.ErrInvalidTokenFormat)

	_, err = auth.ParseExpiry("a.b.c")
	require.ErrorIs(t, err, constants.ErrInvalidTokenFormat)

	_, err = auth.ParseExpiry(tokenWithoutExp(t))
	require.ErrorIs(t, err, constants.ErrNoExpirationClaim)
}

func TestValid(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name     string
		cred     *apicore.Credential
		leeway   time.Duration
		expected bool
	}{
		{
			name:     "nil credential",
			cred:     nil,
			expected: false,
		},
		{
			name:     "empty access token",
			cred:     &apicore.Credential{},
			expected: false,
		},
		{
			name:     "malformed token",
			cred:     &apicore.Credential{AccessToken: "opaque"},
			expected: false,
		},
		{
			name:     "future exp",
			cred:     &apicore.Credential{AccessToken: signedToken(t, now.Add(time.Hour))},
			expected: true,
		},
		{
			name:     "past exp",
			cred:     &apicore.Credential{AccessToken: signedToken(t, now.Add(-time.Minute))},
			expected: false,
		},
		{
			name:     "within leeway",
			cred:     &apicore.Credential{AccessToken: signedToken(t, now.Add(time.Minute))},
			leeway:   5 * time.Minute,
			expected: false,
		},
		{
			name: "no exp claim falls back to ExpiresAt",
			cred: &apicore.Credential{
				AccessToken: tokenWithoutExp(t),
				ExpiresAt:   now.Add(time.Hour),
			},
			expected: true,
		},
		{
			name:     "no exp claim and no ExpiresAt",
			cred:     &apicore.Credential{AccessToken: tokenWithoutExp(t)},
			expected: false,
		},
		{
			name: "embedded exp wins over ExpiresAt",
			cred: &apicore.Credential{
				AccessToken: signedToken(t, now.Add(-time.Minute)),
				ExpiresAt:   now.Add(time.Hour),
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, auth.Valid(tt.cred, now, tt.leeway))
		})
	}
}

func TestTokenResponse_Credential(t *testing.T) {
	t.Parallel()

	now := time.Now()

	cred, err := (&auth.TokenResponse{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}).Credential(now)
	require.NoError(t, err)
	assert.Equal(t, "a", cred.AccessToken)
	assert.Equal(t, "r", cred.RefreshToken)
	assert.Equal(t, now.Add(time.Minute), cred.ExpiresAt)

	_, err = (&auth.TokenResponse{}).Credential(now)
	require.ErrorIs(t, err, constants.ErrMissingAccessToken)
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := auth.NewMemoryStore()

	cred, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)

	original := &apicore.Credential{AccessToken: "token", RefreshToken: "refresh"}
	require.NoError(t, store.Save(ctx, original))

	original.AccessToken = "mutated"

	cred, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token", cred.AccessToken)

	require.NoError(t, store.Clear(ctx))

	cred, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestMemoryStore_Concurrency(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := auth.NewMemoryStore()

	var wg sync.WaitGroup

	for range 100 {
		wg.Add(2)

		go func() {
			defer wg.Done()

			_ = store.Save(ctx, &apicore.Credential{AccessToken: "token"})
		}()

		go func() {
			defer wg.Done()

			_, _ = store.Load(ctx)
		}()
	}

	wg.Wait()

	cred, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token", cred.AccessToken)
}
