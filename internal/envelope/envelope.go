// Package envelope implements the uniform per-specialist execution
// wrapper: disabled-check, cache lookup, timed call, telemetry, and bus
// event emission. No specialist is called directly; every call goes through
// Execute so caching/timeouts/events stay consistent across the swarm.
package envelope

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alphacouncil/core/internal/bus"
	"github.com/alphacouncil/core/internal/cache"
	"github.com/alphacouncil/core/internal/errkind"
	"github.com/alphacouncil/core/internal/governance"
	"github.com/alphacouncil/core/internal/obslog"
)

// Specialist is the one capability every plugin agent satisfies. The
// envelope holds the specialist; specialists hold no base-class state.
type Specialist interface {
	Name() string
	Analyze(ctx context.Context, input map[string]any) (map[string]any, error)
}

// TimeoutOverride lets a specialist declare a non-default call timeout.
type TimeoutOverride interface {
	Timeout() time.Duration
}

// CacheTTLOverride lets a specialist declare a non-default cache TTL.
type CacheTTLOverride interface {
	CacheTTL() time.Duration
}

// CacheKeyOverride lets a specialist derive its own cache key from input
// instead of the default "<name>:<ticker>".
type CacheKeyOverride interface {
	CacheKey(input map[string]any) string
}

const (
	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 300 * time.Second
)

var (
	envelopeMetricsOnce sync.Once
	envelopeMetrics     *envelopeMetricSet
)

type envelopeMetricSet struct {
	latency  *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

func getEnvelopeMetrics() *envelopeMetricSet {
	envelopeMetricsOnce.Do(func() {
		envelopeMetrics = &envelopeMetricSet{
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "alphacouncil_specialist_latency_seconds",
				Help:    "Specialist call latency through the envelope, per agent.",
				Buckets: prometheus.DefBuckets,
			}, []string{"agent"}),
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "alphacouncil_specialist_requests_total",
				Help: "Specialist invocations per agent and outcome (success, failure, cached, disabled).",
			}, []string{"agent", "outcome"}),
		}
	})
	return envelopeMetrics
}

// Telemetry is one record of a specialist invocation.
type Telemetry struct {
	AgentName     string    `json:"agent_name"`
	ModelVersion  string    `json:"model_version,omitempty"`
	LatencyMs     int64     `json:"latency_ms"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Cached        bool      `json:"cached"`
	TokensUsed    int       `json:"tokens_used,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Response is the envelope's uniform result.
type Response struct {
	AgentName string         `json:"agent_name"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	LatencyMs int64          `json:"latency_ms"`
	Cached    bool           `json:"cached"`
	Telemetry *Telemetry     `json:"telemetry,omitempty"`
}

// TelemetrySink receives one Telemetry record per envelope invocation (the
// alpha audit store's ingestion point, C9).
type TelemetrySink interface {
	Record(t Telemetry)
}

// Envelope wraps a Specialist with caching, timeouts, telemetry, and bus
// event emission.
type Envelope struct {
	specialist Specialist
	enabled    bool
	cache      cache.Cache
	bus        *bus.Bus
	governance *governance.Table
	sink       TelemetrySink
}

func New(s Specialist, enabled bool, c cache.Cache, b *bus.Bus, g *governance.Table, sink TelemetrySink) *Envelope {
	return &Envelope{specialist: s, enabled: enabled, cache: c, bus: b, governance: g, sink: sink}
}

func (e *Envelope) Name() string { return e.specialist.Name() }

// Execute runs the full wrapper. correlationID threads through telemetry
// and bus events for tracing.
func (e *Envelope) Execute(ctx context.Context, input map[string]any, correlationID string) Response {
	name := e.specialist.Name()
	log := obslog.NewAgent(name, "specialist")
	metrics := getEnvelopeMetrics()

	if !e.enabled {
		metrics.requests.WithLabelValues(name, "disabled").Inc()
		return Response{AgentName: name, Success: false, Error: "disabled"}
	}

	start := time.Now()
	e.emit("agent_started", name, correlationID, map[string]any{})

	key := e.cacheKey(input)
	var cached map[string]any
	if e.cache != nil && e.cache.Get(ctx, key, &cached) {
		resp := Response{
			AgentName: name,
			Success:   true,
			Data:      cached,
			LatencyMs: time.Since(start).Milliseconds(),
			Cached:    true,
		}
		resp.Telemetry = e.recordTelemetry(name, correlationID, resp.LatencyMs, true, 0)
		metrics.requests.WithLabelValues(name, "cached").Inc()
		e.emit("agent_complete", name, correlationID, map[string]any{"cached": true})
		return resp
	}

	data, err := e.callWithTimeout(ctx, input)
	latency := time.Since(start).Milliseconds()
	metrics.latency.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		kind := errkind.KindOf(err)
		metrics.requests.WithLabelValues(name, "failure").Inc()
		resp := Response{AgentName: name, Success: false, Error: string(kind), LatencyMs: latency}
		resp.Telemetry = e.recordTelemetry(name, correlationID, latency, false, 0)
		e.emit("agent_complete", name, correlationID, map[string]any{"success": false, "error": string(kind)})
		log.Warn().Err(err).Str("kind", string(kind)).Msg("specialist call failed")
		return resp
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, data, e.cacheTTL()); err != nil {
			log.Debug().Err(err).Msg("failed to populate cache")
		}
	}

	metrics.requests.WithLabelValues(name, "success").Inc()
	resp := Response{AgentName: name, Success: true, Data: data, LatencyMs: latency}
	resp.Telemetry = e.recordTelemetry(name, correlationID, latency, false, 0)
	e.emit("agent_complete", name, correlationID, map[string]any{"success": true, "latency_ms": latency})
	return resp
}

// callWithTimeout runs analyze under the specialist's timeout and recovers
// from panics, converting both into typed failures: failures never leave
// the envelope as exceptions.
func (e *Envelope) callWithTimeout(ctx context.Context, input map[string]any) (data map[string]any, callErr error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	type result struct {
		data map[string]any
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- result{err: errkind.New(errkind.FatalInternal, fmt.Sprintf("panic in specialist %s: %v", e.specialist.Name(), r))}
			}
		}()
		d, err := e.specialist.Analyze(timeoutCtx, input)
		resultCh <- result{data: d, err: err}
	}()

	select {
	case <-timeoutCtx.Done():
		return nil, errkind.New(errkind.Timeout, "specialist "+e.specialist.Name()+" timed out")
	case r := <-resultCh:
		return r.data, r.err
	}
}

func (e *Envelope) timeout() time.Duration {
	if t, ok := e.specialist.(TimeoutOverride); ok {
		return t.Timeout()
	}
	return defaultTimeout
}

func (e *Envelope) cacheTTL() time.Duration {
	if t, ok := e.specialist.(CacheTTLOverride); ok {
		return t.CacheTTL()
	}
	return defaultCacheTTL
}

func (e *Envelope) cacheKey(input map[string]any) string {
	if c, ok := e.specialist.(CacheKeyOverride); ok {
		return c.CacheKey(input)
	}
	ticker, _ := input["ticker"].(string)
	return fmt.Sprintf("%s:%s", e.specialist.Name(), ticker)
}

func (e *Envelope) recordTelemetry(name, correlationID string, latencyMs int64, cached bool, tokens int) *Telemetry {
	t := Telemetry{
		AgentName:     name,
		LatencyMs:     latencyMs,
		CorrelationID: correlationID,
		Cached:        cached,
		TokensUsed:    tokens,
		Timestamp:     time.Now(),
	}
	if e.sink != nil {
		e.sink.Record(t)
	}
	return &t
}

func (e *Envelope) emit(subject, agentName, correlationID string, payload map[string]any) {
	if e.bus == nil {
		return
	}
	payload["agent_name"] = agentName
	msg := bus.NewMessage(agentName, bus.Broadcast, subject, payload, correlationID)
	if e.governance != nil {
		_ = e.governance.SecureDispatch(msg)
		return
	}
	_ = e.bus.Send(msg)
}
