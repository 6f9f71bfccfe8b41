// Package mcptools wires the core's tool calls (broker actions, instrument
// search, data lookups) over the Model Context Protocol, the way the
// core's collaborators expose external tools.
package mcptools

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/alphacouncil/core/internal/obslog"
)

const toolCallTimeout = 60 * time.Second

// ServerConfig names one MCP server the core connects to at startup —
// "internal" spawns a local stdio subprocess, "external" dials an SSE
// endpoint.
type ServerConfig struct {
	Name    string
	Type    string // "internal" or "external"
	Command string
	Args    []string
	Env     map[string]string
	URL     string
}

// Client owns one mcp.Client and a session per configured server.
type Client struct {
	client   *mcp.Client
	sessions map[string]*mcp.ClientSession
}

// New creates the client; call Connect per ServerConfig before use.
func New(name, version string) *Client {
	return &Client{
		client: mcp.NewClient(&mcp.Implementation{
			Name:    name,
			Version: version,
		}, nil),
		sessions: make(map[string]*mcp.ClientSession),
	}
}

// Connect dials the given server and stores the session under its name.
func (c *Client) Connect(ctx context.Context, cfg ServerConfig) error {
	log := obslog.NewMCP(cfg.Name)

	var session *mcp.ClientSession
	var err error
	switch cfg.Type {
	case "internal":
		session, err = c.connectStdio(ctx, cfg)
	case "external":
		session, err = c.connectHTTP(ctx, cfg)
	default:
		return fmt.Errorf("mcptools: unknown server type %q for %s", cfg.Type, cfg.Name)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to connect MCP server")
		return fmt.Errorf("mcptools: connect %s: %w", cfg.Name, err)
	}

	c.sessions[cfg.Name] = session
	log.Info().Msg("MCP server connected")
	return nil
}

func (c *Client) connectStdio(ctx context.Context, cfg ServerConfig) (*mcp.ClientSession, error) {
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...) // #nosec G204 Command from validated server config
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	transport := &mcp.CommandTransport{Command: cmd}
	return c.client.Connect(ctx, transport, nil)
}

func (c *Client) connectHTTP(ctx context.Context, cfg ServerConfig) (*mcp.ClientSession, error) {
	transport := &mcp.SSEClientTransport{Endpoint: cfg.URL}
	return c.client.Connect(ctx, transport, nil)
}

// Close closes every open session.
func (c *Client) Close() {
	for name, session := range c.sessions {
		if err := session.Close(); err != nil {
			logger := obslog.NewMCP(name)
			logger.Warn().Err(err).Msg("failed to close MCP session")
		}
	}
}

// CallTool calls toolName on serverName and returns the first text content
// block's raw text (spec tool calls are expected to reply with a single
// JSON-encoded text block).
func (c *Client) CallTool(ctx context.Context, serverName, toolName string, arguments map[string]any) (string, error) {
	session, ok := c.sessions[serverName]
	if !ok {
		return "", fmt.Errorf("mcptools: server %s not connected", serverName)
	}

	callCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
	defer cancel()

	result, err := session.CallTool(callCtx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: arguments,
	})
	if err != nil {
		return "", fmt.Errorf("mcptools: tool call %s failed: %w", toolName, err)
	}

	return firstText(result), nil
}

func firstText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}
