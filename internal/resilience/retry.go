package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy describes when and how long to wait before repeating a
// failed operation. The zero value is valid and retries nothing.
type RetryPolicy struct {
	// MaxRetries is the number of repeats after the first try.
	MaxRetries int

	// BackoffFactor is the delay before the first retry.
	BackoffFactor time.Duration

	// Multiplier scales the delay for each subsequent retry.
	Multiplier float64

	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration

	// JitterFraction spreads each delay by ±fraction.
	JitterFraction float64

	// RetryStatuses are HTTP statuses worth repeating.
	RetryStatuses []int

	// RetryMethods are the HTTP methods that may be repeated.
	RetryMethods []string

	// ShouldRetry classifies errors. Nil means IsTransient.
	ShouldRetry func(err error) bool

	// OnRetry runs before each retry sleep.
	OnRetry func(retry int, err error)
}

// DefaultRetryPolicy mirrors the scraper defaults: three retries with a
// one second factor on throttling and gateway statuses, idempotent
// methods only.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		BackoffFactor:  time.Second,
		Multiplier:     2.0,
		MaxBackoff:     30 * time.Second,
		JitterFraction: 0.1,
		RetryStatuses: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
		RetryMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}
}

// FromRetryConfig builds a policy from config values, keeping defaults
// for anything unset.
func FromRetryConfig(maxRetries, backoffFactorMs, maxBackoffMs int, multiplier float64) RetryPolicy {
	p := DefaultRetryPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if backoffFactorMs > 0 {
		p.BackoffFactor = time.Duration(backoffFactorMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	if multiplier > 0 {
		p.Multiplier = multiplier
	}
	return p
}

// AllowsMethod reports whether requests with method may be repeated.
func (p RetryPolicy) AllowsMethod(method string) bool {
	if method == "" {
		method = http.MethodGet
	}
	return slices.ContainsFunc(p.RetryMethods, func(m string) bool {
		return strings.EqualFold(m, method)
	})
}

// RetryableStatus reports whether status is in the retry set.
func (p RetryPolicy) RetryableStatus(status int) bool {
	return slices.Contains(p.RetryStatuses, status)
}

// RetryableError reports whether err is worth another attempt.
func (p RetryPolicy) RetryableError(err error) bool {
	if err == nil {
		return false
	}
	if p.ShouldRetry != nil {
		return p.ShouldRetry(err)
	}
	return IsTransient(err)
}

// Backoff returns the delay before retry n (1-based).
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 || p.BackoffFactor <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2.0
	}
	delay := float64(p.BackoffFactor) * math.Pow(mult, float64(n-1))
	if p.MaxBackoff > 0 && delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}
	if p.JitterFraction > 0 {
		spread := delay * p.JitterFraction
		delay += (rand.Float64()*2 - 1) * spread
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Wait sleeps for Backoff(n) or until ctx is done.
func (p RetryPolicy) Wait(ctx context.Context, n int) error {
	d := p.Backoff(n)
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

// Do runs fn, repeating it while the policy accepts the error and
// retries remain. The last error is returned.
func Do(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt >= p.MaxRetries || !p.RetryableError(err) {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}
		if werr := p.Wait(ctx, attempt+1); werr != nil {
			return err
		}
	}
}

// RetryLogger returns an OnRetry callback that logs each retry.
func RetryLogger(component, operation string) func(int, error) {
	return func(retry int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("component", component),
			zap.String("operation", operation),
			zap.Int("retry", retry),
			zap.Error(err),
		)
	}
}
