// Package config loads the core's runtime configuration (the "Recognized
// configuration options"): model identifiers, timeouts, per-resource circuit
// breaker settings, per-domain cache TTLs, risk gate thresholds, and the ACE
// scoring coefficients. Config is loaded once at startup and is read-only
// thereafter ("Config & policy tables: loaded once at startup,
// read-only thereafter").
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App             AppConfig                  `mapstructure:"app"`
	Database        DatabaseConfig             `mapstructure:"database"`
	Redis           RedisConfig                `mapstructure:"redis"`
	Models          ModelsConfig               `mapstructure:"models"`
	MCP             MCPConfig                  `mapstructure:"mcp"`
	Timeouts        TimeoutsConfig             `mapstructure:"timeouts"`
	CircuitBreakers map[string]BreakerConfig   `mapstructure:"circuit_breaker"`
	CacheTTL        map[string]int             `mapstructure:"cache_ttl"`
	Risk            RiskConfig                 `mapstructure:"risk"`
	ACE             ACEConfig                  `mapstructure:"ace"`
	Specialists     map[string]SpecialistConfig `mapstructure:"specialists"`
	Governance      GovernanceConfig           `mapstructure:"governance"`
}

// GovernanceConfig points at an optional on-disk policy table; when empty
// the built-in default policies are used.
type GovernanceConfig struct {
	PolicyFile string `mapstructure:"policy_file"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "console" or "json"
}

// DatabaseConfig contains the alpha-audit store's Postgres/TimescaleDB settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
}

// RedisConfig contains the process-local cache's backing Redis settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ModelsConfig names the three opaque model identifiers the core calls
// plus the LLM
// gateway endpoint they're reached through.
type ModelsConfig struct {
	Gateway       string  `mapstructure:"gateway"`        // e.g. "bifrost"
	Endpoint      string  `mapstructure:"endpoint"`       // OpenAI-compatible chat completions URL
	RoutingModel  string  `mapstructure:"routing_model"`  // small, low-temp classifier
	ReasoningModel string `mapstructure:"reasoning_model"`
	RiskModel     string  `mapstructure:"risk_model"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	TimeoutMS     int     `mapstructure:"timeout_ms"`
}

// MCPConfig configures the MCP servers the core reaches for tool execution
// and instrument-search disambiguation.
type MCPConfig struct {
	Servers map[string]MCPServerConfig `mapstructure:"servers"`
}

// MCPServerConfig is one configured MCP server connection.
type MCPServerConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Name      string   `mapstructure:"name"`
	Transport string   `mapstructure:"transport"` // "stdio" or "sse"
	Command   string   `mapstructure:"command"`
	Args      []string `mapstructure:"args"`
	URL       string   `mapstructure:"url"`
	Tools     []string `mapstructure:"tools"`
}

// TimeoutsConfig carries the two top-level deadlines the runtime names
// explicitly; per-specialist overrides live in SpecialistConfig.
type TimeoutsConfig struct {
	SpecialistMS   int `mapstructure:"specialist_ms"`
	OrchestratorMS int `mapstructure:"orchestrator_ms"`
}

// BreakerConfig is one named resource's circuit breaker settings
// (circuit_breaker.{failure_threshold, recovery_timeout_s, half_open_max_calls}).
type BreakerConfig struct {
	FailureThreshold uint32 `mapstructure:"failure_threshold"`
	RecoveryTimeoutS int    `mapstructure:"recovery_timeout_s"`
	HalfOpenMaxCalls uint32 `mapstructure:"half_open_max_calls"`
}

func (b BreakerConfig) RecoveryTimeout() time.Duration {
	return time.Duration(b.RecoveryTimeoutS) * time.Second
}

// RiskConfig carries the risk.* options consumed by internal/risk.Gate.
type RiskConfig struct {
	PositionSizeLimitPct float64 `mapstructure:"position_size_limit_pct"` // default 5 (percent)
	WashSaleWindowDays   int     `mapstructure:"wash_sale_window_days"`   // default 30
}

// ACEConfig carries the ace.* coefficients. internal/risk.Score's
// formula is pinned and does not read these directly today;
// they are surfaced here so a deployment can audit the values the formula
// assumes without reading source.
type ACEConfig struct {
	TurnPenalty    float64 `mapstructure:"turn_penalty"`    // default 0.1
	BlockFactor    float64 `mapstructure:"block_factor"`    // default 0.2
	FlagFactor     float64 `mapstructure:"flag_factor"`     // default 0.6
	ResolutionBonus float64 `mapstructure:"resolution_bonus"` // default 0.05
}

// SpecialistConfig is one specialist's enable flag and timeout/cache-ttl
// override (per-specialist defaults differ for
// forecast/math/quant/price).
type SpecialistConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	TimeoutMS  int  `mapstructure:"timeout_ms"`
	CacheTTLS  int  `mapstructure:"cache_ttl_s"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("ALPHACOUNCIL")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "alphacouncil-core")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	v.SetDefault("governance.policy_file", "")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "alphacouncil")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("models.gateway", "bifrost")
	v.SetDefault("models.endpoint", "http://localhost:8080/v1/chat/completions")
	v.SetDefault("models.routing_model", "claude-haiku-4-20250514")
	v.SetDefault("models.reasoning_model", "claude-sonnet-4-20250514")
	v.SetDefault("models.risk_model", "claude-sonnet-4-20250514")
	v.SetDefault("models.temperature", 0.2)
	v.SetDefault("models.max_tokens", 2000)
	v.SetDefault("models.timeout_ms", 30000)

	v.SetDefault("mcp.servers.instrument_search.enabled", true)
	v.SetDefault("mcp.servers.instrument_search.name", "Instrument Search")
	v.SetDefault("mcp.servers.instrument_search.transport", "stdio")
	v.SetDefault("mcp.servers.instrument_search.command", "./bin/instrument-search-server")

	v.SetDefault("timeouts.specialist_ms", 15000)
	v.SetDefault("timeouts.orchestrator_ms", 60000)

	v.SetDefault("circuit_breaker.price_provider.failure_threshold", 5)
	v.SetDefault("circuit_breaker.price_provider.recovery_timeout_s", 30)
	v.SetDefault("circuit_breaker.price_provider.half_open_max_calls", 3)
	v.SetDefault("circuit_breaker.bars_provider.failure_threshold", 5)
	v.SetDefault("circuit_breaker.bars_provider.recovery_timeout_s", 30)
	v.SetDefault("circuit_breaker.bars_provider.half_open_max_calls", 3)
	v.SetDefault("circuit_breaker.news_provider.failure_threshold", 5)
	v.SetDefault("circuit_breaker.news_provider.recovery_timeout_s", 30)
	v.SetDefault("circuit_breaker.news_provider.half_open_max_calls", 3)
	v.SetDefault("circuit_breaker.llm.failure_threshold", 5)
	v.SetDefault("circuit_breaker.llm.recovery_timeout_s", 30)
	v.SetDefault("circuit_breaker.llm.half_open_max_calls", 3)

	v.SetDefault("cache_ttl.price_data", 60)
	v.SetDefault("cache_ttl.quant", 60)
	v.SetDefault("cache_ttl.forecast", 300)
	v.SetDefault("cache_ttl.portfolio", 3600)
	v.SetDefault("cache_ttl.research", 300)
	v.SetDefault("cache_ttl.social", 300)
	v.SetDefault("cache_ttl.whale", 300)
	v.SetDefault("cache_ttl.goal", 300)

	v.SetDefault("risk.position_size_limit_pct", 5.0)
	v.SetDefault("risk.wash_sale_window_days", 30)

	v.SetDefault("ace.turn_penalty", 0.1)
	v.SetDefault("ace.block_factor", 0.2)
	v.SetDefault("ace.flag_factor", 0.6)
	v.SetDefault("ace.resolution_bonus", 0.05)

	v.SetDefault("specialists.quant.enabled", true)
	v.SetDefault("specialists.quant.timeout_ms", 10000)
	v.SetDefault("specialists.quant.cache_ttl_s", 60)

	v.SetDefault("specialists.forecast.enabled", true)
	v.SetDefault("specialists.forecast.timeout_ms", 30000)
	v.SetDefault("specialists.forecast.cache_ttl_s", 300)

	v.SetDefault("specialists.portfolio.enabled", true)
	v.SetDefault("specialists.portfolio.timeout_ms", 10000)
	v.SetDefault("specialists.portfolio.cache_ttl_s", 3600)

	v.SetDefault("specialists.research.enabled", true)
	v.SetDefault("specialists.research.timeout_ms", 10000)
	v.SetDefault("specialists.research.cache_ttl_s", 300)

	v.SetDefault("specialists.social.enabled", true)
	v.SetDefault("specialists.social.timeout_ms", 10000)
	v.SetDefault("specialists.social.cache_ttl_s", 300)

	v.SetDefault("specialists.whale.enabled", true)
	v.SetDefault("specialists.whale.timeout_ms", 10000)
	v.SetDefault("specialists.whale.cache_ttl_s", 300)

	v.SetDefault("specialists.goal.enabled", true)
	v.SetDefault("specialists.goal.timeout_ms", 10000)
	v.SetDefault("specialists.goal.cache_ttl_s", 300)

	v.SetDefault("specialists.mathgen.enabled", true)
	v.SetDefault("specialists.mathgen.timeout_ms", 30000)
	v.SetDefault("specialists.mathgen.cache_ttl_s", 300)
}

// GetDSN returns the PostgreSQL connection string for the audit store.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address for the process-local cache.
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SpecialistTimeout returns the configured timeout, falling back to def
// when unset.
func (s SpecialistConfig) SpecialistTimeout(def time.Duration) time.Duration {
	if s.TimeoutMS <= 0 {
		return def
	}
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// SpecialistCacheTTL returns the configured cache TTL, falling back to def
// when unset.
func (s SpecialistConfig) SpecialistCacheTTL(def time.Duration) time.Duration {
	if s.CacheTTLS <= 0 {
		return def
	}
	return time.Duration(s.CacheTTLS) * time.Second
}
