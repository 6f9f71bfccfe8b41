package resilience

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/alphacouncil/core/internal/obslog"
)

// Provider is one entry in a FallbackChain: a named callable that may fail.
// T is the provider's result type (e.g. price quote, bar series, news list).
// Limiter, when set, paces calls to upstreams that enforce a request budget
// (e.g. free-tier quote APIs); the chain waits for a token before calling.
type Provider[T any] struct {
	Name    string
	Call    func(ctx context.Context, args any) (T, error)
	Limiter *rate.Limiter
}

// FallbackChain tries providers in priority order, skipping any whose
// resource-named circuit breaker forbids the call, and returns the first
// non-empty success. Each provider shares the Manager so its
// breaker state is visible to every other resilience consumer of the same
// resource name.
type FallbackChain[T any] struct {
	providers []Provider[T]
	breakers  *Manager
	isEmpty   func(T) bool
}

// NewFallbackChain builds a chain. isEmpty classifies a successful-but-empty
// result (e.g. a zero-length bar series) as a failure for chain-advancement
// purposes; only a provider returning non-empty counts as success.
func NewFallbackChain[T any](breakers *Manager, isEmpty func(T) bool, providers ...Provider[T]) *FallbackChain[T] {
	return &FallbackChain[T]{providers: providers, breakers: breakers, isEmpty: isEmpty}
}

// Execute iterates providers by descending priority (slice order). If all
// fail, it returns the zero value of T and an aggregate error; the caller
// decides whether to escalate (e.g. into the Tier-2/3 recovery ladder).
func (c *FallbackChain[T]) Execute(ctx context.Context, args any) (T, error) {
	log := obslog.New("resilience.fallback_chain")
	var zero T
	var lastErr error

	for _, p := range c.providers {
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				log.Debug().Str("provider", p.Name).Err(err).Msg("rate-limit wait cancelled, advancing chain")
				lastErr = err
				continue
			}
		}
		result, err := c.breakers.Execute(p.Name, func() (any, error) {
			return p.Call(ctx, args)
		})
		if err != nil {
			log.Debug().Str("provider", p.Name).Err(err).Msg("provider failed or breaker refused, advancing chain")
			lastErr = err
			continue
		}

		typed, ok := result.(T)
		if !ok {
			lastErr = fmt.Errorf("provider %s returned unexpected type", p.Name)
			continue
		}
		if c.isEmpty != nil && c.isEmpty(typed) {
			log.Debug().Str("provider", p.Name).Msg("provider returned empty result, advancing chain")
			continue
		}

		log.Debug().Str("provider", p.Name).Msg("fallback chain satisfied")
		return typed, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("all providers exhausted with no error detail")
	}
	return zero, fmt.Errorf("fallback chain exhausted: %w", lastErr)
}
