package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/haasonsaas/agentcore/internal/adminapi"
	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/agent/providers"
	"github.com/haasonsaas/agentcore/internal/auth"
	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/prompt"
	"github.com/haasonsaas/agentcore/internal/ratelimit"
	"github.com/haasonsaas/agentcore/internal/scheduler"
	"github.com/haasonsaas/agentcore/internal/sessionmgr"
	"github.com/haasonsaas/agentcore/internal/storage"
	"github.com/haasonsaas/agentcore/internal/tools/builtin"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// runtime is the process-wide "core services" record described in the
// spec's design notes: every component is constructed once here and
// passed by reference into whatever needs it. There are no package-level
// singletons anywhere in this module.
type runtime struct {
	cfg            *config.Config
	logger         *observability.Logger
	metrics        *observability.Metrics
	tracer         *observability.Tracer
	tracerShutdown func(context.Context) error
	store          *storage.Store
	registry       *agent.ToolRegistry
	risk           *agent.RiskClassifier
	approvals      *agent.ApprovalGate
	gateway        agent.Gateway
	compactor      *agent.Compactor
	loop           *agent.Loop
	sessions       *sessionmgr.Manager
	limiter        *ratelimit.Limiter
	jwt            *auth.JWTService
}

func newRuntime(cfg *config.Config) (*runtime, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	metrics := observability.NewMetrics()
	tracer, tracerShutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "agentcore",
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})

	store, err := storage.Open(cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	gw, err := buildGateway(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build gateway: %w", err)
	}

	registry := agent.NewToolRegistry()
	registry.SetMetrics(metrics)
	registry.SetTracer(tracer)
	for _, t := range []agent.Tool{
		builtin.NewWebSearchTool(5),
		builtin.NewReadFileTool(".", 1<<20),
		builtin.NewRunCommandTool("."),
	} {
		if err := registry.Register(t); err != nil {
			store.Close()
			return nil, fmt.Errorf("register tool %s: %w", t.Name(), err)
		}
	}

	defaultRisk := models.RiskModerate
	if cfg.Agent.ToolDefaultRisk == string(models.RiskDangerous) {
		defaultRisk = models.RiskDangerous
	} else if cfg.Agent.ToolDefaultRisk == string(models.RiskSafe) {
		defaultRisk = models.RiskSafe
	}
	risk := agent.NewRiskClassifier(defaultRisk)
	risk.Set("run_command", models.RiskDangerous)
	risk.Set("read_file", models.RiskSafe)
	risk.Set("web_search", models.RiskSafe)

	approvals := agent.NewApprovalGate(risk, cfg.Approval.Required, cfg.Approval.Timeout)

	compactor := agent.NewCompactor(agent.CompactionConfig{
		Enabled:             cfg.Agent.CompactionEnabled,
		MaxContextTokens:    cfg.Agent.MaxContextTokens,
		CompactionThreshold: cfg.Agent.CompactionThreshold,
		KeepRecentMessages:  cfg.Agent.KeepRecentMessages,
	}, &agent.GatewaySummarizer{Gateway: gw, Model: cfg.LLM.DefaultModel})

	loop := agent.NewLoop(gw, registry, approvals, compactor, agent.LoopConfig{
		MaxIterations:      cfg.Agent.MaxToolIterations,
		MaxContextMessages: cfg.Agent.MaxContextMessages,
	})
	loop.SetMetrics(metrics)
	loop.SetTracer(tracer)

	systemPrompt := prompt.NewBuilder(prompt.DefaultBase).Build()
	sessions := sessionmgr.NewManager(store, loop, systemPrompt, cfg.LLM.DefaultModel).
		WithIdleTimeout(cfg.Session.IdleTimeout).
		WithCapacity(cfg.Session.CacheCapacity).
		SetMetrics(metrics)

	var jwt *auth.JWTService
	if cfg.Server.JWTSecret != "" {
		jwt = auth.NewJWTService(cfg.Server.JWTSecret, 0)
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerSecond: float64(cfg.RateLimit.PerMinute) / 60.0,
		BurstSize:         cfg.RateLimit.PerMinute,
		Enabled:           cfg.RateLimit.Enabled == nil || *cfg.RateLimit.Enabled,
	})

	return &runtime{
		cfg:            cfg,
		logger:         logger,
		metrics:        metrics,
		tracer:         tracer,
		tracerShutdown: tracerShutdown,
		store:          store,
		registry:       registry,
		risk:           risk,
		approvals:      approvals,
		gateway:        gw,
		compactor:      compactor,
		loop:           loop,
		sessions:       sessions,
		limiter:        limiter,
		jwt:            jwt,
	}, nil
}

func buildGateway(cfg *config.Config) (agent.Gateway, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return providers.NewOpenAIGateway(providers.OpenAIConfig{
			APIKey:       cfg.LLM.APIKey,
			BaseURL:      cfg.LLM.BaseURL,
			DefaultModel: cfg.LLM.DefaultModel,
		})
	case "anthropic":
		return providers.NewAnthropicGateway(providers.AnthropicConfig{
			APIKey:       cfg.LLM.APIKey,
			BaseURL:      cfg.LLM.BaseURL,
			DefaultModel: cfg.LLM.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
}

// schedulerCallback treats a fired task's prompt text as if the user said
// it, and logs the generated reply. The core supplies no delivery
// mechanism of its own (that's the transport's job), and there is no live
// chat transport in this stand-in binary.
func (rt *runtime) schedulerCallback(userKey string) scheduler.Callback {
	return func(ctx context.Context, task *models.ScheduledTask) error {
		reply, err := rt.sessions.ProcessMessage(ctx, userKey, task.PromptText)
		if err != nil {
			return err
		}
		rt.logger.Info(ctx, "scheduled task delivered", "task_id", task.ID, "task_name", task.Name, "reply", reply)
		return nil
	}
}

func (rt *runtime) newAdminServer(sched *scheduler.Scheduler) *adminapi.Server {
	return adminapi.NewServer(adminapi.Config{
		Host:      rt.cfg.Server.Host,
		Port:      rt.cfg.Server.Port,
		Approvals: rt.approvals,
		Tasks:     sched,
		Auth:      rt.jwt,
		Logger:    rt.logger,
		Metrics:   rt.metrics,
		Tracer:    rt.tracer,
	})
}

func (rt *runtime) close() {
	if rt.tracerShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = rt.tracerShutdown(shutdownCtx)
		cancel()
	}
	rt.store.Close()
}
