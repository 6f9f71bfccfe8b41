// Package obslog initializes and scopes the structured logger used across the core.
package obslog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. level is parsed case-insensitively
// and falls back to info on a bad value. format is "json" (default) or "console".
func Init(level, format string) {
	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer = os.Stdout
	if format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()

	log.Info().
		Str("level", logLevel.String()).
		Str("format", format).
		Msg("logger initialized")
}

// New returns a logger scoped to a component name.
func New(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// NewAgent returns a logger scoped to a specialist agent.
func NewAgent(name, kind string) zerolog.Logger {
	return log.With().
		Str("component", "agent").
		Str("agent_name", name).
		Str("agent_type", kind).
		Logger()
}

// NewBus returns a logger scoped to the message bus.
func NewBus() zerolog.Logger {
	return log.With().Str("component", "bus").Logger()
}

// NewMCP returns a logger scoped to an MCP tool server connection.
func NewMCP(serverName string) zerolog.Logger {
	return log.With().
		Str("component", "mcp_server").
		Str("server_name", serverName).
		Logger()
}

// WithCorrelation returns a child logger carrying a correlation_id field.
func WithCorrelation(l zerolog.Logger, correlationID string) zerolog.Logger {
	if correlationID == "" {
		return l
	}
	return l.With().Str("correlation_id", correlationID).Logger()
}
