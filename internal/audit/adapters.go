package audit

import (
	"context"
	"time"

	"github.com/alphacouncil/core/internal/envelope"
	"github.com/alphacouncil/core/internal/obslog"
)

// TelemetrySink adapts *Store to envelope.TelemetrySink, persisting every
// specialist invocation record the envelope emits.
type TelemetrySink struct {
	store *Store
}

func NewTelemetrySink(store *Store) *TelemetrySink {
	return &TelemetrySink{store: store}
}

func (s *TelemetrySink) Record(t envelope.Telemetry) {
	log := obslog.New("audit.telemetry")
	payload := map[string]any{
		"model_version": t.ModelVersion,
		"latency_ms":    t.LatencyMs,
		"cached":        t.Cached,
		"tokens_used":   t.TokensUsed,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.RecordTelemetry(ctx, t.CorrelationID, t.AgentName, "agent_complete", payload, t.Timestamp); err != nil {
		log.Warn().Err(err).Str("agent", t.AgentName).Msg("failed to persist telemetry")
	}
}

// AlphaLookup adapts *Store to orchestrator.AlphaLookup, surfacing a
// ticker's historical alpha metrics into the reasoning model's draft
// prompt.
type AlphaLookup struct {
	store *Store
}

func NewAlphaLookup(store *Store) *AlphaLookup {
	return &AlphaLookup{store: store}
}

func (a *AlphaLookup) Lookup(ctx context.Context, ticker string) map[string]any {
	log := obslog.New("audit.alpha")
	metrics, err := a.store.GetAgentAlphaMetrics(ctx, ticker)
	if err != nil {
		log.Warn().Err(err).Str("ticker", ticker).Msg("failed to look up historical alpha")
		return nil
	}
	return map[string]any{
		"avg_1d":         metrics.Avg1d,
		"avg_5d":         metrics.Avg5d,
		"total_sessions": metrics.TotalSessions,
		"specialists":    metrics.Specialists,
	}
}

// AttributionScheduler adapts *Store to orchestrator.AttributionScheduler,
// running the forward-return attribution job in the background after the
// configured delay has let the market settle; the job is scheduled, never
// run inline with the request.
type AttributionScheduler struct {
	store *Store
}

func NewAttributionScheduler(store *Store) *AttributionScheduler {
	return &AttributionScheduler{store: store}
}

func (a *AttributionScheduler) Schedule(correlationID string, delay time.Duration) {
	log := obslog.New("audit.attribution")
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.store.AttributeReturns(ctx, correlationID, time.Now().Add(-delay)); err != nil {
			log.Warn().Err(err).Str("correlation_id", correlationID).Msg("attribution job failed")
		}
	})
}
