package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func neverEmpty(s string) bool { return s == "" }

func TestFallbackChain_FirstProviderSucceeds(t *testing.T) {
	chain := NewFallbackChain(NewManager(DefaultBreakerSettings()), neverEmpty,
		Provider[string]{Name: "primary", Call: func(ctx context.Context, args any) (string, error) { return "from-primary", nil }},
		Provider[string]{Name: "secondary", Call: func(ctx context.Context, args any) (string, error) { return "from-secondary", nil }},
	)

	v, err := chain.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "from-primary", v)
}

func TestFallbackChain_AdvancesOnFailure(t *testing.T) {
	chain := NewFallbackChain(NewManager(DefaultBreakerSettings()), neverEmpty,
		Provider[string]{Name: "primary", Call: func(ctx context.Context, args any) (string, error) { return "", errors.New("primary down") }},
		Provider[string]{Name: "secondary", Call: func(ctx context.Context, args any) (string, error) { return "from-secondary", nil }},
	)

	v, err := chain.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "from-secondary", v)
}

func TestFallbackChain_AdvancesOnEmptyResult(t *testing.T) {
	chain := NewFallbackChain(NewManager(DefaultBreakerSettings()), neverEmpty,
		Provider[string]{Name: "primary", Call: func(ctx context.Context, args any) (string, error) { return "", nil }},
		Provider[string]{Name: "secondary", Call: func(ctx context.Context, args any) (string, error) { return "from-secondary", nil }},
	)

	v, err := chain.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "from-secondary", v)
}

func TestFallbackChain_AllProvidersExhaustedReturnsError(t *testing.T) {
	chain := NewFallbackChain(NewManager(DefaultBreakerSettings()), neverEmpty,
		Provider[string]{Name: "primary", Call: func(ctx context.Context, args any) (string, error) { return "", errors.New("primary down") }},
		Provider[string]{Name: "secondary", Call: func(ctx context.Context, args any) (string, error) { return "", errors.New("secondary down") }},
	)

	v, err := chain.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "", v)
	assert.Contains(t, err.Error(), "fallback chain exhausted")
}

func TestFallbackChain_NoProvidersReturnsError(t *testing.T) {
	chain := NewFallbackChain[string](NewManager(DefaultBreakerSettings()), neverEmpty)
	_, err := chain.Execute(context.Background(), nil)
	require.Error(t, err)
}

func TestFallbackChain_RateLimitedProviderPacesCalls(t *testing.T) {
	calls := 0
	chain := NewFallbackChain(NewManager(DefaultBreakerSettings()), neverEmpty,
		Provider[string]{
			Name:    "limited",
			Limiter: rate.NewLimiter(rate.Inf, 1),
			Call: func(ctx context.Context, args any) (string, error) {
				calls++
				return "from-limited", nil
			},
		},
	)

	v, err := chain.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "from-limited", v)
	assert.Equal(t, 1, calls)
}

func TestFallbackChain_RateLimitWaitCancelledAdvancesChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A zero-burst limiter can never grant a token, so Wait fails without
	// calling the provider; the chain must advance, not hang.
	chain := NewFallbackChain(NewManager(DefaultBreakerSettings()), neverEmpty,
		Provider[string]{
			Name:    "starved",
			Limiter: rate.NewLimiter(0, 0),
			Call: func(ctx context.Context, args any) (string, error) {
				t.Fatal("starved provider must not be called")
				return "", nil
			},
		},
		Provider[string]{Name: "secondary", Call: func(ctx context.Context, args any) (string, error) { return "from-secondary", nil }},
	)

	v, err := chain.Execute(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-secondary", v)
}

func TestFallbackChain_ArgsPassedThroughToProviders(t *testing.T) {
	var seen any
	chain := NewFallbackChain(NewManager(DefaultBreakerSettings()), neverEmpty,
		Provider[string]{Name: "primary", Call: func(ctx context.Context, args any) (string, error) {
			seen = args
			return "ok", nil
		}},
	)

	_, err := chain.Execute(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, "TSLA", seen)
}
