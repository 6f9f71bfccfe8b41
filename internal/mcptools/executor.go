package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alphacouncil/core/internal/orchestrator"
)

// toolCaller is the narrow surface Executor and InstrumentSearcher depend
// on; *Client satisfies it, and tests supply a fake instead of a live MCP
// session.
type toolCaller interface {
	CallTool(ctx context.Context, serverName, toolName string, arguments map[string]any) (string, error)
}

// Executor implements orchestrator.ToolExecutor by routing a tool name to
// whichever MCP server was registered to host it (the reasoning loop's
// non-sensitive tool-call execution).
type Executor struct {
	client  toolCaller
	routing map[string]string // toolName -> serverName
}

// NewExecutor builds an Executor. routing maps each supported tool name to
// the MCP server that hosts it (e.g. "get_quote" -> "market_data").
func NewExecutor(client *Client, routing map[string]string) *Executor {
	return &Executor{client: client, routing: routing}
}

func (e *Executor) Execute(ctx context.Context, toolName string, args map[string]any) (string, error) {
	serverName, ok := e.routing[toolName]
	if !ok {
		return "", fmt.Errorf("mcptools: no server registered for tool %q", toolName)
	}
	return e.client.CallTool(ctx, serverName, toolName, args)
}

// instrumentSearchTool and instrumentSearchServer name the fixed MCP tool
// Tier 2 recovery calls when a specialist fails to resolve a ticker.
const (
	instrumentSearchTool   = "instrument_search"
	instrumentSearchServer = "instrument_search"
)

// InstrumentSearcher implements orchestrator.InstrumentSearch over the MCP
// instrument-search tool.
type InstrumentSearcher struct {
	client toolCaller
}

func NewInstrumentSearcher(client *Client) *InstrumentSearcher {
	return &InstrumentSearcher{client: client}
}

func (s *InstrumentSearcher) Search(ctx context.Context, query string) ([]orchestrator.InstrumentCandidate, error) {
	text, err := s.client.CallTool(ctx, instrumentSearchServer, instrumentSearchTool, map[string]any{"query": query})
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Ticker string `json:"ticker"`
		Name   string `json:"name"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("mcptools: instrument_search returned unparseable result: %w", err)
	}

	candidates := make([]orchestrator.InstrumentCandidate, len(raw))
	for i, r := range raw {
		candidates[i] = orchestrator.InstrumentCandidate{Ticker: r.Ticker, Name: r.Name}
	}
	return candidates, nil
}
