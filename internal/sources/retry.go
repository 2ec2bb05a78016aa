package sources

import (
	"context"
	"math"
	"time"

	"citegraph/internal/config"
	"citegraph/internal/logger"

	"github.com/cenkalti/backoff/v5"
	"go.temporal.io/sdk/temporal"
)

// RetryPolicy bounds retries of network-bound fetches with exponential
// backoff. Attempts count the first try.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, Multiplier: 2, MaxDelay: 20 * time.Second}
}

func RetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.FetchMaxAttempts,
		BaseDelay:   cfg.FetchBaseDelay,
		Multiplier:  cfg.FetchMultiplier,
		MaxDelay:    cfg.FetchMaxDelay,
	}.normalized()
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Delay is the wait after the given failed attempt (1-based), before jitter.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0.1,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxDelay,
	}
}

// Temporal renders the policy for activity options.
func (p RetryPolicy) Temporal() *temporal.RetryPolicy {
	p = p.normalized()
	return &temporal.RetryPolicy{
		InitialInterval:    p.BaseDelay,
		BackoffCoefficient: p.Multiplier,
		MaximumInterval:    p.MaxDelay,
		MaximumAttempts:    int32(p.MaxAttempts),
	}
}

// Retry runs op until it succeeds, returns a backoff.Permanent error, the
// attempts run out or ctx ends.
func Retry[T any](ctx context.Context, p RetryPolicy, log *logger.Logger, name string, op func() (T, error)) (T, error) {
	p = p.normalized()
	if log == nil {
		log = logger.Nop()
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn("retrying after failure", "operation", name, "error", err, "wait", wait)
		}),
	)
}
