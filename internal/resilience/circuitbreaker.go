// Package resilience implements the core's resilience primitives:
// circuit breaker, retry-with-backoff-and-jitter, fallback chain, and bounded
// timeout.
package resilience

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"github.com/alphacouncil/core/internal/errkind"
	"github.com/alphacouncil/core/internal/obslog"
)

// BreakerSettings configures one named circuit breaker
// (circuit_breaker.{failure_threshold, recovery_timeout_s, half_open_max_calls}).
type BreakerSettings struct {
	FailureThreshold uint32
	RecoveryTimeout  time.Duration
	HalfOpenMaxCalls uint32
	CountInterval    time.Duration
}

// DefaultBreakerSettings is the per-resource default used when no explicit
// settings are configured.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 3,
		CountInterval:    10 * time.Second,
	}
}

var (
	breakerMetricsOnce sync.Once
	breakerMetrics     *breakerMetricSet
)

type breakerMetricSet struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func getBreakerMetrics() *breakerMetricSet {
	breakerMetricsOnce.Do(func() {
		breakerMetrics = &breakerMetricSet{
			state: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "alphacouncil_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed,1=open,2=half_open) per resource.",
			}, []string{"resource"}),
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "alphacouncil_circuit_breaker_requests_total",
				Help: "Circuit breaker requests per resource and outcome.",
			}, []string{"resource", "outcome"}),
			failures: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "alphacouncil_circuit_breaker_failures_total",
				Help: "Circuit breaker recorded failures per resource.",
			}, []string{"resource"}),
		}
	})
	return breakerMetrics
}

// Manager owns one gobreaker.CircuitBreaker per named resource, created
// lazily on first use so callers never have to pre-register a resource name.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	settings map[string]BreakerSettings
	defaults BreakerSettings
}

// NewManager creates a Manager using defaults for any resource not given
// explicit settings via WithResource.
func NewManager(defaults BreakerSettings) *Manager {
	return &Manager{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		settings: make(map[string]BreakerSettings),
		defaults: defaults,
	}
}

// WithResource registers explicit settings for a named resource, to be used
// before its first call. Safe to call before any Execute for that resource.
func (m *Manager) WithResource(resource string, s BreakerSettings) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[resource] = s
	return m
}

func (m *Manager) breakerFor(resource string) *gobreaker.CircuitBreaker[any] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[resource]; ok {
		return b
	}

	s, ok := m.settings[resource]
	if !ok {
		s = m.defaults
	}

	metrics := getBreakerMetrics()
	logger := obslog.New("resilience.circuit_breaker")

	cbSettings := gobreaker.Settings{
		Name:        resource,
		MaxRequests: s.HalfOpenMaxCalls,
		Interval:    s.CountInterval,
		Timeout:     s.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().
				Str("resource", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.state.WithLabelValues(name).Set(stateValue(to))
		},
	}

	b := gobreaker.NewCircuitBreaker[any](cbSettings)
	m.breakers[resource] = b
	return b
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Execute runs fn through the named resource's circuit breaker. A refusal
// while Open surfaces as errkind.CircuitOpen.
func (m *Manager) Execute(resource string, fn func() (any, error)) (any, error) {
	b := m.breakerFor(resource)
	metrics := getBreakerMetrics()

	result, err := b.Execute(fn)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.requests.WithLabelValues(resource, "refused").Inc()
			return nil, errkind.Wrap(errkind.CircuitOpen, "circuit open for "+resource, err)
		}
		metrics.requests.WithLabelValues(resource, "failure").Inc()
		metrics.failures.WithLabelValues(resource).Inc()
		return nil, err
	}
	metrics.requests.WithLabelValues(resource, "success").Inc()
	return result, nil
}

// State reports the current state of a resource's breaker without executing
// a call (for status/debug surfaces and testing P6).
func (m *Manager) State(resource string) gobreaker.State {
	return m.breakerFor(resource).State()
}
