package classify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fivetwenty-io/apicore/pkg/apicore"
)

// Invalidator drops the session credential and reports whether one existed.
type Invalidator interface {
	Invalidate(ctx context.Context) bool
}

// SessionGuard ends the session after an auth_expired error: the
// credential is invalidated and a redirect is scheduled once per session end.
type SessionGuard struct {
	invalidator Invalidator
	redirector  apicore.Redirector
	entryPoint  string
	delay       time.Duration
	logger      apicore.Logger

	pending atomic.Bool

	mutex   sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewSessionGuard creates a guard. A nil redirector disables redirects.
func NewSessionGuard(invalidator Invalidator, redirector apicore.Redirector, entryPoint string, delay time.Duration, logger apicore.Logger) *SessionGuard {
	return &SessionGuard{
		invalidator: invalidator,
		redirector:  redirector,
		entryPoint:  entryPoint,
		delay:       delay,
		logger:      apicore.LoggerOrNop(logger),
	}
}

// Handle applies the side effects for apiErr. Only auth_expired errors act.
func (g *SessionGuard) Handle(ctx context.Context, apiErr *apicore.Error) {
	if apiErr == nil || apiErr.Kind != apicore.KindAuthExpired {
		return
	}

	if !g.invalidator.Invalidate(ctx) {
		return
	}

	g.logger.Warn("Session ended, credential invalidated", map[string]interface{}{
		"status":     apiErr.Status,
		"request_id": apiErr.RequestID,
	})

	g.ScheduleRedirect()
}

// ScheduleRedirect arranges a redirect after the grace delay. Calls made
// while one is pending are ignored.
func (g *SessionGuard) ScheduleRedirect() {
	if g.redirector == nil {
		return
	}

	if !g.pending.CompareAndSwap(false, true) {
		return
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.stopped {
		g.pending.Store(false)

		return
	}

	g.logger.Warn("Redirect scheduled", map[string]interface{}{
		"entry_point": g.entryPoint,
		"delay":       g.delay.String(),
	})

	g.timer = time.AfterFunc(g.delay, func() {
		g.pending.Store(false)
		g.redirector.Redirect(g.entryPoint)
	})
}

// Pending reports whether a redirect is scheduled.
func (g *SessionGuard) Pending() bool {
	return g.pending.Load()
}

// Stop cancels a pending redirect and disables new ones.
func (g *SessionGuard) Stop() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.stopped = true

	if g.timer != nil && g.timer.Stop() {
		g.pending.Store(false)
	}
}
