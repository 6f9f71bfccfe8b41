// Package audit implements the alpha-audit store: append-only
// telemetry/OHLCV persistence, forward-return attribution, and a
// hash-chained audit log for tamper-evidence.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alphacouncil/core/internal/money"
	"github.com/alphacouncil/core/internal/obslog"
)

// DBPool is the subset of *pgxpool.Pool the store needs, narrowed so tests
// can substitute pgxmock.NewPool() instead of a live Postgres connection.
type DBPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	auditMetricsOnce sync.Once
	auditWrites      *prometheus.CounterVec
)

func getAuditWrites() *prometheus.CounterVec {
	auditMetricsOnce.Do(func() {
		auditWrites = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "alphacouncil_audit_writes_total",
			Help: "Rows written to the alpha-audit store, per table.",
		}, []string{"table"})
	})
	return auditWrites
}

// Store persists OHLCV history, per-call telemetry, and post-hoc
// attribution, and maintains the hash-chained decision log.
type Store struct {
	db DBPool
}

func NewStore(db DBPool) *Store {
	return &Store{db: db}
}

// NewStoreWithPool is a convenience constructor for the common case of a
// live *pgxpool.Pool.
func NewStoreWithPool(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// InitSchema creates the store's four tables when they don't exist yet.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ohlcv_history (
			ticker TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			open NUMERIC NOT NULL,
			high NUMERIC NOT NULL,
			low NUMERIC NOT NULL,
			close NUMERIC NOT NULL,
			volume NUMERIC NOT NULL,
			PRIMARY KEY (ticker, timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS agent_telemetry (
			id BIGSERIAL PRIMARY KEY,
			correlation_id TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			subject TEXT NOT NULL,
			payload_json JSONB NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS agent_performance (
			correlation_id TEXT PRIMARY KEY,
			ticker TEXT NOT NULL,
			entry_price NUMERIC NOT NULL,
			return_1d DOUBLE PRECISION NOT NULL,
			return_5d DOUBLE PRECISION NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id BIGSERIAL PRIMARY KEY,
			correlation_id TEXT NOT NULL,
			subject TEXT NOT NULL,
			payload TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			previous_hash TEXT NOT NULL,
			hash TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("audit: schema init failed: %w", err)
		}
	}
	return nil
}

// UpsertBar writes one OHLCV sample, keyed (ticker, timestamp).
func (s *Store) UpsertBar(ctx context.Context, ticker string, timestamp time.Time, open, high, low, close, volume money.Money) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO ohlcv_history (ticker, timestamp, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (ticker, timestamp) DO UPDATE SET
			open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			close = EXCLUDED.close, volume = EXCLUDED.volume
	`, ticker, timestamp, open.String(), high.String(), low.String(), close.String(), volume.String())
	if err == nil {
		getAuditWrites().WithLabelValues("ohlcv_history").Inc()
	}
	return err
}

// RecordTelemetry persists one agent_complete/agent_started style bus event
// for later attribution joins.
func (s *Store) RecordTelemetry(ctx context.Context, correlationID, agentName, subject string, payload map[string]any, timestamp time.Time) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO agent_telemetry (correlation_id, agent_name, subject, payload_json, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`, correlationID, agentName, subject, payloadJSON, timestamp)
	if err == nil {
		getAuditWrites().WithLabelValues("agent_telemetry").Inc()
	}
	return err
}

// Performance is one upserted row of forward-return attribution.
type Performance struct {
	CorrelationID string
	Ticker        string
	EntryPrice    money.Money
	Return1d      float64
	Return5d      float64
	Timestamp     time.Time
}

func (s *Store) UpsertPerformance(ctx context.Context, p Performance) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO agent_performance (correlation_id, ticker, entry_price, return_1d, return_5d, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (correlation_id) DO UPDATE SET
			ticker = EXCLUDED.ticker, entry_price = EXCLUDED.entry_price,
			return_1d = EXCLUDED.return_1d, return_5d = EXCLUDED.return_5d,
			timestamp = EXCLUDED.timestamp
	`, p.CorrelationID, p.Ticker, p.EntryPrice.String(), p.Return1d, p.Return5d, p.Timestamp)
	if err == nil {
		getAuditWrites().WithLabelValues("agent_performance").Inc()
	}
	return err
}

// AttributeReturns runs the ~2s-delayed attribution job: reads
// the context_fabricated event to find the ticker, the entry close at/before
// t0, and the first closes at/after t0+1d and t0+5d, then upserts the
// computed returns.
func (s *Store) AttributeReturns(ctx context.Context, correlationID string, t0 time.Time) error {
	log := obslog.New("audit")

	var payloadJSON []byte
	err := s.db.QueryRow(ctx, `
		SELECT payload_json FROM agent_telemetry
		WHERE correlation_id = $1 AND subject = 'context_fabricated'
		ORDER BY timestamp ASC LIMIT 1
	`, correlationID).Scan(&payloadJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			log.Debug().Str("correlation_id", correlationID).Msg("no context_fabricated event, skipping attribution")
			return nil
		}
		return err
	}

	var payload struct {
		Ticker string `json:"ticker"`
	}
	if err := json.Unmarshal(payloadJSON, &payload); err != nil || payload.Ticker == "" {
		return fmt.Errorf("audit: context_fabricated payload missing ticker: %w", err)
	}

	entry, err := s.closeAtOrBefore(ctx, payload.Ticker, t0)
	if err != nil {
		return err
	}
	if entry == nil {
		log.Debug().Str("ticker", payload.Ticker).Msg("no entry price found, skipping attribution")
		return nil
	}

	p1, err := s.closeAtOrAfter(ctx, payload.Ticker, t0.Add(24*time.Hour))
	if err != nil {
		return err
	}
	p5, err := s.closeAtOrAfter(ctx, payload.Ticker, t0.Add(5*24*time.Hour))
	if err != nil {
		return err
	}

	perf := Performance{
		CorrelationID: correlationID,
		Ticker:        payload.Ticker,
		EntryPrice:    *entry,
		Timestamp:     time.Now(),
	}
	if p1 != nil && !entry.IsZero() {
		ret, _ := p1.Sub(*entry).Div(*entry).Float64()
		perf.Return1d = ret
	}
	if p5 != nil && !entry.IsZero() {
		ret, _ := p5.Sub(*entry).Div(*entry).Float64()
		perf.Return5d = ret
	}

	return s.UpsertPerformance(ctx, perf)
}

func (s *Store) closeAtOrBefore(ctx context.Context, ticker string, at time.Time) (*money.Money, error) {
	var raw string
	err := s.db.QueryRow(ctx, `
		SELECT close FROM ohlcv_history
		WHERE ticker = $1 AND timestamp <= $2
		ORDER BY timestamp DESC LIMIT 1
	`, ticker, at).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m := money.MustFromString(raw)
	return &m, nil
}

func (s *Store) closeAtOrAfter(ctx context.Context, ticker string, at time.Time) (*money.Money, error) {
	var raw string
	err := s.db.QueryRow(ctx, `
		SELECT close FROM ohlcv_history
		WHERE ticker = $1 AND timestamp >= $2
		ORDER BY timestamp ASC LIMIT 1
	`, ticker, at).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m := money.MustFromString(raw)
	return &m, nil
}

// SpecialistStats is one specialist's aggregated alpha contribution.
type SpecialistStats struct {
	Avg1d         float64 `json:"avg_1d"`
	Avg5d         float64 `json:"avg_5d"`
	TotalSessions int     `json:"total_sessions"`
}

// AlphaMetrics is the get_agent_alpha_metrics read.
type AlphaMetrics struct {
	Avg1d         float64                    `json:"avg_1d"`
	Avg5d         float64                    `json:"avg_5d"`
	TotalSessions int                        `json:"total_sessions"`
	Specialists   map[string]SpecialistStats `json:"specialists"`
}

// GetAgentAlphaMetrics joins agent_telemetry (agent_complete, non-Orchestrator
// rows) with agent_performance, optionally filtered to one ticker.
func (s *Store) GetAgentAlphaMetrics(ctx context.Context, ticker string) (AlphaMetrics, error) {
	metrics := AlphaMetrics{Specialists: map[string]SpecialistStats{}}

	overallQuery := `
		SELECT COALESCE(AVG(p.return_1d), 0), COALESCE(AVG(p.return_5d), 0), COUNT(*)
		FROM agent_performance p
		WHERE ($1 = '' OR p.ticker = $1)
	`
	if err := s.db.QueryRow(ctx, overallQuery, ticker).Scan(&metrics.Avg1d, &metrics.Avg5d, &metrics.TotalSessions); err != nil {
		return metrics, err
	}

	perAgentQuery := `
		SELECT t.agent_name, COALESCE(AVG(p.return_1d), 0), COALESCE(AVG(p.return_5d), 0), COUNT(DISTINCT t.correlation_id)
		FROM agent_telemetry t
		JOIN agent_performance p ON p.correlation_id = t.correlation_id
		WHERE t.subject = 'agent_complete' AND t.agent_name <> 'Orchestrator'
		  AND ($1 = '' OR p.ticker = $1)
		GROUP BY t.agent_name
	`
	rows, err := s.db.Query(ctx, perAgentQuery, ticker)
	if err != nil {
		return metrics, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var stats SpecialistStats
		if err := rows.Scan(&name, &stats.Avg1d, &stats.Avg5d, &stats.TotalSessions); err != nil {
			return metrics, err
		}
		metrics.Specialists[name] = stats
	}
	return metrics, rows.Err()
}

// ChainEntry is one hash-chained decision-log record: each entry's Hash
// covers its own canonical JSON plus PreviousHash, so altering any past
// entry breaks every hash after it.
type ChainEntry struct {
	CorrelationID string    `json:"correlation_id"`
	Subject       string    `json:"subject"`
	Payload       string    `json:"payload"`
	Timestamp     time.Time `json:"timestamp"`
	PreviousHash  string    `json:"previous_hash"`
	Hash          string    `json:"hash"`
}

var genesisHash = "0x" + fmt.Sprintf("%064d", 0)

// AppendChain computes the next entry's hash from the last entry in the
// chain (or the genesis hash if the chain is empty) and persists it.
func (s *Store) AppendChain(ctx context.Context, correlationID, subject string, payload map[string]any, timestamp time.Time) (ChainEntry, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return ChainEntry{}, err
	}

	prevHash := genesisHash
	err = s.db.QueryRow(ctx, `SELECT hash FROM audit_log ORDER BY id DESC LIMIT 1`).Scan(&prevHash)
	if err != nil && err != pgx.ErrNoRows {
		return ChainEntry{}, err
	}

	entry := ChainEntry{
		CorrelationID: correlationID,
		Subject:       subject,
		Payload:       string(payloadJSON),
		// Postgres TIMESTAMPTZ stores microseconds; truncate before hashing
		// so a verifier reading the row back recomputes the same hash.
		Timestamp:    timestamp.UTC().Truncate(time.Microsecond),
		PreviousHash: prevHash,
	}
	entry.Hash = hashEntry(entry)

	_, err = s.db.Exec(ctx, `
		INSERT INTO audit_log (correlation_id, subject, payload, timestamp, previous_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.CorrelationID, entry.Subject, entry.Payload, entry.Timestamp, entry.PreviousHash, entry.Hash)
	if err != nil {
		return ChainEntry{}, err
	}
	getAuditWrites().WithLabelValues("audit_log").Inc()
	return entry, nil
}

// hashEntry hashes the canonical JSON encoding of the entry minus its own
// Hash field. Struct field order fixes the key order, and the timestamp is
// encoded as epoch nanoseconds so the encoding is zone-free and
// reproducible by an external verifier.
func hashEntry(e ChainEntry) string {
	canonical, _ := json.Marshal(struct {
		CorrelationID string `json:"correlation_id"`
		Subject       string `json:"subject"`
		Payload       string `json:"payload"`
		Timestamp     int64  `json:"timestamp"`
		PreviousHash  string `json:"previous_hash"`
	}{e.CorrelationID, e.Subject, e.Payload, e.Timestamp.UnixNano(), e.PreviousHash})
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// VerifyChain reads every entry in insertion order and confirms each hash
// matches a recomputation and chains from the previous entry's hash.
func (s *Store) VerifyChain(ctx context.Context) (bool, error) {
	rows, err := s.db.Query(ctx, `
		SELECT correlation_id, subject, payload, timestamp, previous_hash, hash
		FROM audit_log ORDER BY id ASC
	`)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	expectedPrev := genesisHash
	for rows.Next() {
		var e ChainEntry
		if err := rows.Scan(&e.CorrelationID, &e.Subject, &e.Payload, &e.Timestamp, &e.PreviousHash, &e.Hash); err != nil {
			return false, err
		}
		if e.PreviousHash != expectedPrev {
			return false, nil
		}
		if hashEntry(e) != e.Hash {
			return false, nil
		}
		expectedPrev = e.Hash
	}
	return true, rows.Err()
}
