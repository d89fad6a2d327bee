package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"golang.org/x/sync/singleflight"
)

const (
	refreshFlightKey      = "refresh"
	defaultRefreshTimeout = constants.DefaultHTTPTimeout
)

// Manager owns the session credential. It answers "give me a valid token"
// and guarantees that concurrent callers share a single refresh.
type Manager struct {
	store     apicore.CredentialStore
	refresher Refresher
	logger    apicore.Logger
	leeway    time.Duration
	timeout   time.Duration
	now       func() time.Time

	mutex      sync.RWMutex
	credential *apicore.Credential
	epoch      uint64

	group singleflight.Group
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRefresher sets the refresh strategy. Without one, expired tokens
// cannot be renewed.
func WithRefresher(refresher Refresher) ManagerOption {
	return func(m *Manager) {
		m.refresher = refresher
	}
}

// WithLogger sets the logger.
func WithLogger(logger apicore.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = apicore.LoggerOrNop(logger)
	}
}

// WithRefreshTimeout bounds a single refresh call.
func WithRefreshTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithExpiryLeeway treats tokens as expired this long before exp.
func WithExpiryLeeway(leeway time.Duration) ManagerOption {
	return func(m *Manager) {
		if leeway >= 0 {
			m.leeway = leeway
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a manager persisting through store. A nil store keeps
// the credential in memory only.
func NewManager(store apicore.CredentialStore, opts ...ManagerOption) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}

	manager := &Manager{
		store:   store,
		logger:  apicore.NopLogger(),
		leeway:  constants.DefaultExpiryLeeway,
		timeout: defaultRefreshTimeout,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(manager)
	}

	return manager
}

// Load restores the credential from the store.
func (m *Manager) Load(ctx context.Context) error {
	cred, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load credential: %w", err)
	}

	if cred != nil {
		err = checkFormat(cred)
		if err != nil {
			m.logger.Warn("Discarding malformed stored credential", map[string]interface{}{
				"error": err.Error(),
			})

			cred = nil
		}
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.credential = cred.Clone()

	return nil
}

// Current returns a copy of the credential, or nil.
func (m *Manager) Current() *apicore.Credential {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.credential.Clone()
}

// SetCredential replaces the credential, typically after a login, and
// persists it.
func (m *Manager) SetCredential(ctx context.Context, cred *apicore.Credential) error {
	if cred == nil || cred.AccessToken == "" {
		return constants.ErrMissingAccessToken
	}

	err := checkFormat(cred)
	if err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.credential = cred.Clone()
	m.epoch++

	err = m.store.Save(ctx, m.credential)
	if err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	return nil
}

// IsValid reports whether the current access token is unexpired.
func (m *Manager) IsValid() bool {
	return Valid(m.Current(), m.now(), m.leeway)
}

// ExpiresAt returns the current token's expiry.
func (m *Manager) ExpiresAt() (time.Time, error) {
	return Expiry(m.Current())
}

// GetValidToken returns a usable access token, refreshing if needed. When
// the refresh fails but an old token exists, the old token is returned and
// the server decides.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	cred := m.Current()
	if cred == nil || cred.AccessToken == "" {
		return "", constants.ErrAuthRequired
	}

	if Valid(cred, m.now(), m.leeway) {
		return cred.AccessToken, nil
	}

	token, err := m.RefreshIfNeeded(ctx)
	if err == nil {
		return token, nil
	}

	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	stale := m.Current()
	if stale != nil && stale.AccessToken != "" {
		m.logger.Warn("Token refresh failed, using existing token", map[string]interface{}{
			"error": err.Error(),
		})

		return stale.AccessToken, nil
	}

	return "", fmt.Errorf("%w: %w", constants.ErrAuthRequired, err)
}

// RefreshIfNeeded refreshes the credential unless it is already valid. At
// most one refresh is in flight; every concurrent caller observes its result.
func (m *Manager) RefreshIfNeeded(ctx context.Context) (string, error) {
	if m.refresher == nil {
		return "", constants.ErrNoRefreshPath
	}

	resultCh := m.group.DoChan(refreshFlightKey, func() (interface{}, error) {
		return m.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-resultCh:
		if result.Err != nil {
			return "", result.Err
		}

		token, _ := result.Val.(string)

		return token, nil
	}
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.mutex.RLock()
	cred := m.credential.Clone()
	epoch := m.epoch
	m.mutex.RUnlock()

	if cred == nil {
		return "", constants.ErrAuthRequired
	}

	// A previous flight may have finished between the caller's check and now.
	if Valid(cred, m.now(), m.leeway) {
		return cred.AccessToken, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.logger.Debug("Refreshing access token", map[string]interface{}{
		"has_refresh_token": cred.HasRefreshToken(),
	})

	fresh, err := m.refresher.Refresh(ctx, cred)
	if err != nil {
		if !errors.Is(err, constants.ErrRefreshFailed) && !errors.Is(err, constants.ErrNoRefreshPath) {
			err = fmt.Errorf("%w: %w", constants.ErrRefreshFailed, err)
		}

		return "", err
	}

	if fresh == nil || fresh.AccessToken == "" {
		return "", fmt.Errorf("%w: %w", constants.ErrRefreshFailed, constants.ErrMissingAccessToken)
	}

	err = checkFormat(fresh)
	if err != nil {
		return "", fmt.Errorf("%w: %w", constants.ErrRefreshFailed, err)
	}

	if fresh.RefreshToken == "" {
		fresh.RefreshToken = cred.RefreshToken
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.epoch != epoch {
		return "", fmt.Errorf("%w: session changed during refresh", constants.ErrRefreshFailed)
	}

	m.credential = fresh.Clone()
	m.epoch++

	err = m.store.Save(ctx, m.credential)
	if err != nil {
		m.logger.Warn("Failed to persist refreshed credential", map[string]interface{}{
			"error": err.Error(),
		})
	}

	m.logger.Info("Access token refreshed", nil)

	return fresh.AccessToken, nil
}

// Invalidate drops the credential. It returns true only for the call that
// actually removed one, so session-end side effects run once.
func (m *Manager) Invalidate(ctx context.Context) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.credential == nil {
		return false
	}

	m.credential = nil
	m.epoch++

	err := m.store.Clear(ctx)
	if err != nil {
		m.logger.Warn("Failed to clear stored credential", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return true
}

// checkFormat rejects an access token that is not a JWT carrying an exp
// claim, unless ExpiresAt stands in for a missing claim.
func checkFormat(cred *apicore.Credential) error {
	_, err := Expiry(cred)
	if err == nil || errors.Is(err, constants.ErrInvalidTokenFormat) {
		return err
	}

	return fmt.Errorf("%w: %w", constants.ErrInvalidTokenFormat, err)
}
