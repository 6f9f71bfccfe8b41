package mcptools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	lastServer string
	lastTool   string
	lastArgs   map[string]any
	response   string
	err        error
}

func (f *fakeCaller) CallTool(_ context.Context, serverName, toolName string, arguments map[string]any) (string, error) {
	f.lastServer = serverName
	f.lastTool = toolName
	f.lastArgs = arguments
	return f.response, f.err
}

func TestExecutor_RoutesToConfiguredServer(t *testing.T) {
	fake := &fakeCaller{response: `{"ok":true}`}
	e := &Executor{client: fake, routing: map[string]string{"get_quote": "market_data"}}

	out, err := e.Execute(context.Background(), "get_quote", map[string]any{"ticker": "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "market_data", fake.lastServer)
	assert.Equal(t, "get_quote", fake.lastTool)
}

func TestExecutor_UnknownToolErrors(t *testing.T) {
	e := &Executor{client: &fakeCaller{}, routing: map[string]string{}}
	_, err := e.Execute(context.Background(), "unknown_tool", nil)
	require.Error(t, err)
}

func TestInstrumentSearcher_ParsesCandidates(t *testing.T) {
	fake := &fakeCaller{response: `[{"ticker":"AAPL","name":"Apple Inc"},{"ticker":"MSFT","name":"Microsoft Corp"}]`}
	s := &InstrumentSearcher{client: fake}

	candidates, err := s.Search(context.Background(), "apple")
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "AAPL", candidates[0].Ticker)
	assert.Equal(t, "Apple Inc", candidates[0].Name)
	assert.Equal(t, instrumentSearchServer, fake.lastServer)
	assert.Equal(t, instrumentSearchTool, fake.lastTool)
}

func TestInstrumentSearcher_UnparseableResultErrors(t *testing.T) {
	fake := &fakeCaller{response: "not json"}
	s := &InstrumentSearcher{client: fake}
	_, err := s.Search(context.Background(), "apple")
	require.Error(t, err)
}
