package classify_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/apicore/internal/classify"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type onceInvalidator struct {
	used  atomic.Bool
	calls atomic.Int32
}

func (i *onceInvalidator) Invalidate(context.Context) bool {
	i.calls.Add(1)

	return i.used.CompareAndSwap(false, true)
}

func TestSessionGuard_RedirectsOnce(t *testing.T) {
	t.Parallel()

	var redirects atomic.Int32

	invalidator := &onceInvalidator{}
	guard := classify.NewSessionGuard(invalidator, apicore.RedirectFunc(func(entryPoint string) {
		assert.Equal(t, "/login", entryPoint)
		redirects.Add(1)
	}), "/login", 10*time.Millisecond, nil)

	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			guard.Handle(context.Background(), &apicore.Error{Kind: apicore.KindAuthExpired, Status: 401})
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(10), invalidator.calls.Load())
	require.Eventually(t, func() bool { return redirects.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), redirects.Load())
	assert.False(t, guard.Pending())
}

func TestSessionGuard_IgnoresOtherKinds(t *testing.T) {
	t.Parallel()

	invalidator := &onceInvalidator{}
	guard := classify.NewSessionGuard(invalidator, nil, "/login", time.Millisecond, nil)

	guard.Handle(context.Background(), &apicore.Error{Kind: apicore.KindAuthInvalid, Status: 401})
	guard.Handle(context.Background(), &apicore.Error{Kind: apicore.KindServerError, Status: 500})
	guard.Handle(context.Background(), nil)

	assert.Zero(t, invalidator.calls.Load())
}

func TestSessionGuard_StopCancelsPendingRedirect(t *testing.T) {
	t.Parallel()

	var redirects atomic.Int32

	guard := classify.NewSessionGuard(&onceInvalidator{}, apicore.RedirectFunc(func(string) {
		redirects.Add(1)
	}), "/login", 50*time.Millisecond, nil)

	guard.ScheduleRedirect()
	assert.True(t, guard.Pending())

	guard.Stop()
	guard.ScheduleRedirect()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, redirects.Load())
	assert.False(t, guard.Pending())
}
