package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/alphacouncil/core/internal/errkind"
	"github.com/alphacouncil/core/internal/obslog"
)

// RetryConfig parameterizes exponential backoff with jitter:
// delay = min(base * exponentialBase^i, maxDelay) + uniform(-jitter, +jitter),
// clamped to >= 0.1s.
type RetryConfig struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          time.Duration
	// RetryableKinds restricts retries to these error kinds; empty means
	// "retry whatever Kind.Retryable() says".
	RetryableKinds []errkind.Kind
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		BaseDelay:       100 * time.Millisecond,
		MaxDelay:        5 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          50 * time.Millisecond,
	}
}

var minDelay = 100 * time.Millisecond

func (c RetryConfig) delayFor(attempt int) time.Duration {
	raw := float64(c.BaseDelay) * math.Pow(c.ExponentialBase, float64(attempt))
	capped := math.Min(raw, float64(c.MaxDelay))

	jitter := 0.0
	if c.Jitter > 0 {
		jitter = (rand.Float64()*2 - 1) * float64(c.Jitter)
	}

	d := time.Duration(capped + jitter)
	if d < minDelay {
		d = minDelay
	}
	return d
}

func (c RetryConfig) isRetryable(kind errkind.Kind) bool {
	if len(c.RetryableKinds) == 0 {
		return kind.Retryable()
	}
	for _, k := range c.RetryableKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Operation is a unit of work that may be retried.
type Operation func(ctx context.Context) error

// WithRetry executes op with exponential-backoff-and-jitter retry. The last
// attempt's error always propagates, whether or not it was retryable.
func WithRetry(ctx context.Context, cfg RetryConfig, op Operation) error {
	log := obslog.New("resilience.retry")
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().Int("attempt", attempt+1).Msg("operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if attempt == cfg.MaxAttempts-1 {
			break
		}
		if !cfg.isRetryable(errkind.KindOf(err)) {
			return err
		}

		delay := cfg.delayFor(attempt)
		log.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying after backoff")

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// WithTimeout runs op with a deadline; on expiry it returns def and logs a
// warning rather than propagating an error.
func WithTimeout[T any](ctx context.Context, d time.Duration, def T, op func(ctx context.Context) (T, error)) T {
	log := obslog.New("resilience.timeout")

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := op(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			log.Warn().Err(r.err).Msg("operation returned error within deadline")
			return def
		}
		return r.val
	case <-ctx.Done():
		log.Warn().Dur("deadline", d).Msg("operation exceeded deadline, returning default")
		return def
	}
}
