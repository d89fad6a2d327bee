// Package retry decides whether a failed attempt is retried and how long to
// wait before the next one.
package retry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fivetwenty-io/apicore/internal/constants"
	"github.com/fivetwenty-io/apicore/pkg/apicore"
	"github.com/hashicorp/go-retryablehttp"
)

// Policy is a linear backoff capped at MaxDelay.
type Policy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NewPolicy creates a policy; non-positive values take the defaults.
func NewPolicy(base, maxDelay time.Duration) *Policy {
	if base <= 0 {
		base = constants.DefaultRetryDelay
	}

	if maxDelay <= 0 {
		maxDelay = constants.DefaultRetryWaitMax
	}

	return &Policy{BaseDelay: base, MaxDelay: maxDelay}
}

// ShouldRetry reports whether attempt (1-based) may be followed by another.
// Only transport failures and 5xx responses are retried, never
// cancellations and never more than maxAttempts in total.
func (p *Policy) ShouldRetry(err error, attempt, maxAttempts int) bool {
	if attempt >= maxAttempts || err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	apiErr, ok := apicore.AsError(err)
	if !ok {
		return true
	}

	switch {
	case apiErr.Kind == apicore.KindCancelled:
		return false
	case !apiErr.HasResponse():
		return true
	default:
		return apiErr.Status >= constants.HTTPStatusServerErrorMin
	}
}

// DelayFor returns the wait before retry number attempt: attempt*BaseDelay,
// capped at MaxDelay.
func (p *Policy) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(attempt) * p.BaseDelay
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	return delay
}

// WithBaseDelay returns a copy of the policy using base.
func (p *Policy) WithBaseDelay(base time.Duration) *Policy {
	clone := *p
	if base > 0 {
		clone.BaseDelay = base
	}

	return &clone
}

// Wait sleeps for d or until ctx is done.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CheckRetry adapts the policy to retryablehttp for calls that are retried
// inside the transport, such as the token refresh.
func (p *Policy) CheckRetry() retryablehttp.CheckRetry {
	return func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		if err != nil {
			return !errors.Is(err, context.Canceled), nil
		}

		return resp.StatusCode >= constants.HTTPStatusServerErrorMin, nil
	}
}

// Backoff adapts the policy to retryablehttp. attemptNum is 0-based there.
func (p *Policy) Backoff() retryablehttp.Backoff {
	return func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		return p.DelayFor(attemptNum + 1)
	}
}
