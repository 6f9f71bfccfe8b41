package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphacouncil/core/internal/cache"
	"github.com/alphacouncil/core/internal/envelope"
	"github.com/alphacouncil/core/internal/errkind"
)

type fakeSpecialist struct {
	name    string
	analyze func(ctx context.Context, input map[string]any) (map[string]any, error)
}

func (f fakeSpecialist) Name() string { return f.name }
func (f fakeSpecialist) Analyze(ctx context.Context, input map[string]any) (map[string]any, error) {
	return f.analyze(ctx, input)
}

func newEnvelope(s envelope.Specialist) *envelope.Envelope {
	return envelope.New(s, true, cache.NewMemoryCache(0), nil, nil, nil)
}

func TestRunSwarm_AllSucceed(t *testing.T) {
	quant := newEnvelope(fakeSpecialist{name: "quant", analyze: func(ctx context.Context, input map[string]any) (map[string]any, error) {
		return map[string]any{"signal": "Buy"}, nil
	}})
	research := newEnvelope(fakeSpecialist{name: "research", analyze: func(ctx context.Context, input map[string]any) (map[string]any, error) {
		return map[string]any{"sentiment_label": "Bearish"}, nil
	}})

	envelopes := map[string]*envelope.Envelope{"quant": quant, "research": research}
	inputs := map[string]map[string]any{
		"quant":    {"ticker": "TSLA"},
		"research": {"ticker": "TSLA"},
	}

	results := RunSwarm(context.Background(), envelopes, inputs, Recovery{}, "corr-1")

	require.Len(t, results, 2)
	byTag := map[string]envelope.Response{}
	for _, r := range results {
		byTag[r.Tag] = r.Response
	}
	assert.True(t, byTag["quant"].Success)
	assert.True(t, byTag["research"].Success)
}

func TestRunSwarm_FailureRecordedWithoutAbortingOthers(t *testing.T) {
	ok := newEnvelope(fakeSpecialist{name: "ok", analyze: func(ctx context.Context, input map[string]any) (map[string]any, error) {
		return map[string]any{"value": 1}, nil
	}})
	broken := newEnvelope(fakeSpecialist{name: "broken", analyze: func(ctx context.Context, input map[string]any) (map[string]any, error) {
		return nil, errkind.New(errkind.ValidationError, "fewer than 50 bars")
	}})

	envelopes := map[string]*envelope.Envelope{"ok": ok, "broken": broken}
	inputs := map[string]map[string]any{"ok": {}, "broken": {}}

	results := RunSwarm(context.Background(), envelopes, inputs, Recovery{}, "corr-1")

	byTag := map[string]envelope.Response{}
	for _, r := range results {
		byTag[r.Tag] = r.Response
	}
	assert.True(t, byTag["ok"].Success)
	assert.False(t, byTag["broken"].Success)
	assert.Equal(t, string(errkind.ValidationError), byTag["broken"].Error)
}

func TestRunSwarm_Tier2RecoveryResolvesTickerAndRetries(t *testing.T) {
	attempt := 0
	quant := newEnvelope(fakeSpecialist{name: "quant", analyze: func(ctx context.Context, input map[string]any) (map[string]any, error) {
		attempt++
		ticker, _ := input["ticker"].(string)
		if ticker != "LLOY.L" {
			return nil, errkind.New(errkind.NotFound, "instrument not found")
		}
		return map[string]any{"signal": "Hold"}, nil
	}})

	recovery := Recovery{
		InstrumentSearch: stubSearch{candidates: []InstrumentCandidate{
			{Ticker: "LLOY1", Name: "Lloyds Banking Group"},
		}},
	}

	envelopes := map[string]*envelope.Envelope{"quant": quant}
	inputs := map[string]map[string]any{"quant": {"ticker": "LLOY"}}

	results := RunSwarm(context.Background(), envelopes, inputs, recovery, "corr-1")

	require.Len(t, results, 1)
	assert.True(t, results[0].Response.Success)
	assert.Equal(t, 2, attempt)
}

func TestRunSwarm_Tier3RecoveryAppliesSandboxedRepair(t *testing.T) {
	attempt := 0
	quant := newEnvelope(fakeSpecialist{name: "quant", analyze: func(ctx context.Context, input map[string]any) (map[string]any, error) {
		attempt++
		ticker, _ := input["ticker"].(string)
		if ticker != "LLOY.L" {
			return nil, errkind.New(errkind.UpstreamUnavailable, "persistent failure")
		}
		return map[string]any{"signal": "Hold"}, nil
	}})

	recovery := Recovery{
		CodeRepair: stubRepair{code: `({ticker: input.ticker + ".L"})`},
	}

	envelopes := map[string]*envelope.Envelope{"quant": quant}
	inputs := map[string]map[string]any{"quant": {"ticker": "LLOY"}}

	results := RunSwarm(context.Background(), envelopes, inputs, recovery, "corr-1")

	require.Len(t, results, 1)
	assert.True(t, results[0].Response.Success)
	assert.Equal(t, 2, attempt)
}

func TestRunSwarm_RecoveryLadderGivesUpWhenNoToolsConfigured(t *testing.T) {
	quant := newEnvelope(fakeSpecialist{name: "quant", analyze: func(ctx context.Context, input map[string]any) (map[string]any, error) {
		return nil, errkind.New(errkind.NotFound, "instrument not found")
	}})

	envelopes := map[string]*envelope.Envelope{"quant": quant}
	inputs := map[string]map[string]any{"quant": {"ticker": "XXXX"}}

	results := RunSwarm(context.Background(), envelopes, inputs, Recovery{}, "corr-1")

	require.Len(t, results, 1)
	assert.False(t, results[0].Response.Success)
}

func TestLcsRatio_IdenticalStringsScoreOne(t *testing.T) {
	assert.Equal(t, 1.0, lcsRatio("LLOY", "LLOY"))
}

func TestLcsRatio_EmptyScoresZero(t *testing.T) {
	assert.Equal(t, 0.0, lcsRatio("", "LLOY"))
}

type stubSearch struct {
	candidates []InstrumentCandidate
}

func (s stubSearch) Search(ctx context.Context, query string) ([]InstrumentCandidate, error) {
	return s.candidates, nil
}

type stubRepair struct {
	code string
}

func (s stubRepair) Repair(ctx context.Context, specialistName string, input map[string]any, errKind string) (string, string, error) {
	return "append .L suffix", s.code, nil
}
