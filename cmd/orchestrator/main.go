package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/alphacouncil/core/internal/audit"
	"github.com/alphacouncil/core/internal/bus"
	"github.com/alphacouncil/core/internal/cache"
	"github.com/alphacouncil/core/internal/config"
	"github.com/alphacouncil/core/internal/envelope"
	"github.com/alphacouncil/core/internal/fabricator"
	"github.com/alphacouncil/core/internal/governance"
	"github.com/alphacouncil/core/internal/llm"
	"github.com/alphacouncil/core/internal/mcptools"
	"github.com/alphacouncil/core/internal/obslog"
	"github.com/alphacouncil/core/internal/orchestrator"
	"github.com/alphacouncil/core/internal/resilience"
	"github.com/alphacouncil/core/internal/risk"
	"github.com/alphacouncil/core/internal/specialists/forecast"
	"github.com/alphacouncil/core/internal/specialists/goal"
	"github.com/alphacouncil/core/internal/specialists/mathgen"
	"github.com/alphacouncil/core/internal/specialists/portfolio"
	"github.com/alphacouncil/core/internal/specialists/quant"
	"github.com/alphacouncil/core/internal/specialists/research"
	"github.com/alphacouncil/core/internal/specialists/social"
	"github.com/alphacouncil/core/internal/specialists/whale"
	"github.com/alphacouncil/core/internal/vaultsecrets"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./configs/config.yaml)")
	query := flag.String("query", "", "run a single query non-interactively and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	obslog.Init(cfg.App.LogLevel, cfg.App.LogFormat)
	log := obslog.New("main")
	log.Info().Str("version", cfg.App.Version).Str("env", cfg.App.Environment).Msg("starting alphacouncil-core")

	orch, cleanup := buildOrchestrator(cfg)
	defer cleanup()

	ctx := context.Background()

	if *query != "" {
		runOne(ctx, orch, *query)
		return
	}

	runREPL(ctx, orch)
}

// buildOrchestrator wires every collaborator the Orchestrator needs from
// cfg, returning a cleanup func that releases the audit store's connection
// pool and any MCP sessions.
func buildOrchestrator(cfg *config.Config) (*orchestrator.Orchestrator, func()) {
	log := obslog.New("main")

	b := bus.New()
	gov := buildGovernance(b)
	if cfg.Governance.PolicyFile != "" {
		if err := gov.LoadFromFile(cfg.Governance.PolicyFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.Governance.PolicyFile).Msg("failed to load policy file, keeping built-in policies")
		}
	}
	memCache := cache.NewMemoryCache(time.Hour)

	var c cache.Cache = memCache
	// A MemoryCache is always available; Redis is preferred when configured
	// so specialist caching survives process restarts.
	if cfg.Redis.Host != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c = cache.NewRedisCache(redisClient, time.Hour)
		log.Info().Str("addr", cfg.Redis.GetRedisAddr()).Msg("cache backend configured for redis")
	}

	routerClient, reasoningClient, riskClient := buildLLMClients(cfg)

	var pool *pgxpool.Pool
	var store *audit.Store
	if p, err := pgxpool.New(context.Background(), cfg.Database.GetDSN()); err != nil {
		log.Warn().Err(err).Msg("alpha audit store unavailable, telemetry/attribution will be skipped")
	} else {
		pool = p
		store = audit.NewStore(pool)
		if err := store.InitSchema(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to initialize audit schema")
		}
	}

	breakers := resilience.NewManager(resilience.DefaultBreakerSettings())
	for name, bc := range cfg.CircuitBreakers {
		breakers = breakers.WithResource(name, resilience.BreakerSettings{
			FailureThreshold: bc.FailureThreshold,
			RecoveryTimeout:  bc.RecoveryTimeout(),
			HalfOpenMaxCalls: bc.HalfOpenMaxCalls,
			CountInterval:    10 * time.Second,
		})
	}

	fab := fabricator.NewFabricator(fabricator.Providers{
		Price:     resilience.NewFallbackChain(breakers, func(p *fabricator.PriceData) bool { return p == nil }),
		Bars:      resilience.NewFallbackChain(breakers, func(bars []fabricator.Bar) bool { return len(bars) == 0 }),
		News:      resilience.NewFallbackChain(breakers, func(r *fabricator.ResearchData) bool { return r == nil }),
		Social:    resilience.NewFallbackChain(breakers, func(s *fabricator.SocialData) bool { return s == nil }),
		Whale:     resilience.NewFallbackChain(breakers, func(w *fabricator.WhaleData) bool { return w == nil }),
		Portfolio: resilience.NewFallbackChain(breakers, func(p *fabricator.PortfolioData) bool { return p == nil }),
	})

	var sink envelope.TelemetrySink
	if store != nil {
		sink = audit.NewTelemetrySink(store)
	}

	envelopes := buildEnvelopes(cfg, c, b, gov, sink)

	mcpClient, toolExec, searcher := buildMCP(cfg)

	gate := risk.DefaultGate()
	if cfg.Risk.PositionSizeLimitPct > 0 {
		gate.PositionSizeLimitPct = cfg.Risk.PositionSizeLimitPct / 100
	}
	if cfg.Risk.WashSaleWindowDays > 0 {
		gate.WashSaleWindowDays = cfg.Risk.WashSaleWindowDays
	}

	orch := &orchestrator.Orchestrator{
		Bus:        b,
		Governance: gov,
		Fabricator: fab,
		Envelopes:  envelopes,
		Recovery: orchestrator.Recovery{
			InstrumentSearch: searcher,
			CodeRepair:       llm.NewCodeRepairAgent(reasoningClient),
		},
		Router:    llm.NewRouterAgent(routerClient),
		Reasoning: llm.NewReasoningAgent(reasoningClient),
		Critic:    llm.NewRiskCriticAgent(riskClient),
		RiskGate:  gate,
		ToolExec:  toolExec,
	}

	if store != nil {
		orch.Alpha = audit.NewAlphaLookup(store)
		orch.Attribution = audit.NewAttributionScheduler(store)
	}

	cleanup := func() {
		if mcpClient != nil {
			mcpClient.Close()
		}
		if pool != nil {
			pool.Close()
		}
	}

	return orch, cleanup
}

func buildGovernance(b *bus.Bus) *governance.Table {
	gov := governance.NewTable(b)
	gov.Register(governance.Policy{
		Name:              "Orchestrator",
		Capabilities:      map[governance.Capability]bool{governance.CapabilityReadPortfolio: true},
		AllowedRecipients: map[string]bool{bus.Broadcast: true},
	})
	for _, name := range []string{"quant", "forecast", "portfolio", "research", "social", "whale", "goal", "math"} {
		caps := map[governance.Capability]bool{}
		if name == "portfolio" {
			caps[governance.CapabilityReadPortfolio] = true
		}
		gov.Register(governance.Policy{
			Name:              name,
			Capabilities:      caps,
			AllowedRecipients: map[string]bool{bus.Broadcast: true, "Orchestrator": true},
		})
	}
	return gov
}

func buildLLMClients(cfg *config.Config) (routerClient, reasoningClient, riskClient llm.LLMClient) {
	var creds vaultsecrets.ModelCredentials
	if vcfg := vaultsecrets.FromEnv(); vcfg.Enabled {
		logger := obslog.New("main")
		if vc, err := vaultsecrets.New(vcfg); err != nil {
			logger.Warn().Err(err).Msg("vault unavailable, falling back to env-supplied model credentials")
		} else if loaded, err := vc.LoadModelCredentials(context.Background(), creds); err != nil {
			logger.Warn().Err(err).Msg("failed to load model credentials from vault")
		} else {
			creds = loaded
		}
	}

	timeout := time.Duration(cfg.Models.TimeoutMS) * time.Millisecond
	routerClient = llm.NewClient(llm.ClientConfig{
		Endpoint: cfg.Models.Endpoint, APIKey: firstNonEmpty(creds.RouterAPIKey, os.Getenv("ALPHACOUNCIL_ROUTER_API_KEY")),
		Model: cfg.Models.RoutingModel, Temperature: cfg.Models.Temperature, MaxTokens: cfg.Models.MaxTokens, Timeout: timeout,
	})
	reasoningClient = llm.NewClient(llm.ClientConfig{
		Endpoint: cfg.Models.Endpoint, APIKey: firstNonEmpty(creds.ReasoningAPIKey, os.Getenv("ALPHACOUNCIL_REASONING_API_KEY")),
		Model: cfg.Models.ReasoningModel, Temperature: cfg.Models.Temperature, MaxTokens: cfg.Models.MaxTokens, Timeout: timeout,
	})
	riskClient = llm.NewClient(llm.ClientConfig{
		Endpoint: cfg.Models.Endpoint, APIKey: firstNonEmpty(creds.RiskCriticAPIKey, os.Getenv("ALPHACOUNCIL_RISK_API_KEY")),
		Model: cfg.Models.RiskModel, Temperature: cfg.Models.Temperature, MaxTokens: cfg.Models.MaxTokens, Timeout: timeout,
	})
	return routerClient, reasoningClient, riskClient
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func buildEnvelopes(cfg *config.Config, c cache.Cache, b *bus.Bus, gov *governance.Table, sink envelope.TelemetrySink) map[string]*envelope.Envelope {
	return map[string]*envelope.Envelope{
		"quant":     envelope.New(quant.New(), cfg.Specialists["quant"].Enabled, c, b, gov, sink),
		"forecast":  envelope.New(forecast.New(nil), cfg.Specialists["forecast"].Enabled, c, b, gov, sink),
		"goal":      envelope.New(goal.New(), cfg.Specialists["goal"].Enabled, c, b, gov, sink),
		"portfolio": envelope.New(portfolio.New(nopPortfolioProvider{}, c), cfg.Specialists["portfolio"].Enabled, c, b, gov, sink),
		"research":  envelope.New(research.New(nopResearchProvider{}), cfg.Specialists["research"].Enabled, c, b, gov, sink),
		"social":    envelope.New(social.New(nopSocialProvider{}), cfg.Specialists["social"].Enabled, c, b, gov, sink),
		"whale":     envelope.New(whale.New(nopWhaleProvider{}), cfg.Specialists["whale"].Enabled, c, b, gov, sink),
		"math":      envelope.New(mathgen.New(), cfg.Specialists["mathgen"].Enabled, c, b, gov, sink),
	}
}

func buildMCP(cfg *config.Config) (*mcptools.Client, *mcptools.Executor, *mcptools.InstrumentSearcher) {
	log := obslog.New("main")
	client := mcptools.New("alphacouncil-core", "0.1.0")

	routing := map[string]string{}
	for name, srv := range cfg.MCP.Servers {
		if !srv.Enabled {
			continue
		}
		mcpType := "internal"
		if srv.Transport == "sse" {
			mcpType = "external"
		}
		if err := client.Connect(context.Background(), mcptools.ServerConfig{
			Name: name, Type: mcpType, Command: srv.Command, Args: srv.Args, URL: srv.URL,
		}); err != nil {
			log.Warn().Err(err).Str("server", name).Msg("failed to connect configured MCP server")
			continue
		}
		for _, tool := range srv.Tools {
			routing[tool] = name
		}
	}

	return client, mcptools.NewExecutor(client, routing), mcptools.NewInstrumentSearcher(client)
}

func runOne(ctx context.Context, orch *orchestrator.Orchestrator, query string) {
	answer := orch.Run(ctx, orchestrator.Request{Query: query, AccountScope: orchestrator.ScopeAll})
	fmt.Println(answer.Content)
}

func runREPL(ctx context.Context, orch *orchestrator.Orchestrator) {
	fmt.Println("alphacouncil-core: type a query, Ctrl-D to exit")
	scanner := bufio.NewScanner(os.Stdin)
	var history []orchestrator.HistoryMessage
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		answer := orch.Run(ctx, orchestrator.Request{Query: line, AccountScope: orchestrator.ScopeAll, History: history})
		fmt.Println(answer.Content)
		history = append(history,
			orchestrator.HistoryMessage{Role: "user", Content: line, Timestamp: time.Now()},
			orchestrator.HistoryMessage{Role: "assistant", Content: answer.Content, Timestamp: time.Now()},
		)
	}
}

// nop{Portfolio,Research,Social,Whale}Provider are placeholder collaborators
// for the broker/news/social/whale data vendors this core treats as out of
// scope: every fallback chain and specialist Provider wired above degrades
// to "no data" rather than being left unconfigurable.
type nopPortfolioProvider struct{}

func (nopPortfolioProvider) Fetch(ctx context.Context, accountScope string) (*fabricator.PortfolioData, error) {
	return nil, fmt.Errorf("no portfolio provider configured")
}

type nopResearchProvider struct{}

func (nopResearchProvider) Fetch(ctx context.Context, ticker string) (*fabricator.ResearchData, error) {
	return nil, fmt.Errorf("no research provider configured")
}

type nopSocialProvider struct{}

func (nopSocialProvider) Fetch(ctx context.Context, ticker string) (*fabricator.SocialData, error) {
	return nil, fmt.Errorf("no social provider configured")
}

type nopWhaleProvider struct{}

func (nopWhaleProvider) Fetch(ctx context.Context, ticker string) (*fabricator.WhaleData, error) {
	return nil, fmt.Errorf("no whale provider configured")
}
