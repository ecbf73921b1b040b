package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/retry"
	"github.com/haasonsaas/agentcore/pkg/models"
	"go.opentelemetry.io/otel/trace"
)

// LoopConfig configures one Loop instance.
type LoopConfig struct {
	// MaxIterations bounds the tool-use cycles within one turn. An
	// approval-pending tool call still counts toward this cap: the model
	// can keep retrying a pending call, but only MaxIterations times.
	MaxIterations int

	// MaxTokens is the default max tokens requested from the Gateway.
	MaxTokens int

	// MaxContextMessages bounds the conversation length after a turn with
	// no tool calls returns.
	MaxContextMessages int

	// MaxGatewayAttempts bounds the retries the Loop makes around one
	// Gateway.Generate call within a single iteration, counting the first
	// attempt. Only errors classified as transient (network blips, rate
	// limits, provider 5xx) are retried; anything else fails the iteration
	// on the first attempt.
	MaxGatewayAttempts int
}

// DefaultLoopConfig returns the spec's stated defaults.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations:      10,
		MaxTokens:          4096,
		MaxContextMessages: 50,
		MaxGatewayAttempts: 3,
	}
}

func sanitizeLoopConfig(cfg LoopConfig) LoopConfig {
	defaults := DefaultLoopConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaults.MaxIterations
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.MaxContextMessages <= 0 {
		cfg.MaxContextMessages = defaults.MaxContextMessages
	}
	if cfg.MaxGatewayAttempts <= 0 {
		cfg.MaxGatewayAttempts = defaults.MaxGatewayAttempts
	}
	return cfg
}

// retryableError is satisfied by providers.GatewayError without importing
// that package: internal/agent/providers already imports internal/agent for
// the Gateway interface, so the dependency can't run the other way.
type retryableError interface {
	Retryable() bool
}

// Loop is the Agent Loop: one bounded, tool-using reasoning cycle per user
// turn. A transient Gateway failure (network blip, rate limit, provider
// 5xx) gets a bounded number of retries with exponential backoff within the
// same iteration; anything else, or a retry budget exhausted, ends the turn
// with an assistant-visible error message. A failed tool call is never
// retried by the Loop itself — it's reported back to the model as a
// tool-role message so the model can decide what to do next.
type Loop struct {
	gateway   Gateway
	registry  *ToolRegistry
	approvals *ApprovalGate
	compactor *Compactor
	config    LoopConfig
	metrics   *observability.Metrics
	tracer    *observability.Tracer
}

// NewLoop builds a Loop. compactor may be nil to disable compaction.
func NewLoop(gateway Gateway, registry *ToolRegistry, approvals *ApprovalGate, compactor *Compactor, config LoopConfig) *Loop {
	return &Loop{
		gateway:   gateway,
		registry:  registry,
		approvals: approvals,
		compactor: compactor,
		config:    sanitizeLoopConfig(config),
	}
}

// SetMetrics attaches a Prometheus metrics sink. nil disables instrumentation.
func (l *Loop) SetMetrics(m *observability.Metrics) { l.metrics = m }

// SetTracer attaches an OpenTelemetry tracer. nil disables tracing.
func (l *Loop) SetTracer(t *observability.Tracer) { l.tracer = t }

// generateWithRetry calls the Gateway with a bounded number of attempts.
// Only failures classified as transient (via the retryableError interface)
// are retried; anything else returns on the first attempt. Each attempt is
// recorded as an LLM request metric/span, and each retry as an LLM retry
// metric.
func (l *Loop) generateWithRetry(ctx context.Context, conv *models.Conversation) (*Response, error) {
	req := &CompletionRequest{
		Model:     conv.ModelHint,
		System:    conv.SystemPrompt,
		Messages:  conv.Messages,
		Tools:     l.registry.AsLLMTools(),
		MaxTokens: l.config.MaxTokens,
	}

	provider := l.gateway.Name()
	cfg := retry.Exponential(l.config.MaxGatewayAttempts, 500*time.Millisecond, 10*time.Second)

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		var span trace.Span
		attemptCtx := ctx
		if l.tracer != nil {
			attemptCtx, span = l.tracer.TraceLLMRequest(ctx, provider, req.Model)
		}

		start := time.Now()
		resp, err := l.gateway.Generate(attemptCtx, req)
		duration := time.Since(start)

		if err == nil {
			if span != nil {
				span.End()
			}
			if l.metrics != nil {
				l.metrics.RecordLLMRequest(provider, req.Model, "success", duration.Seconds(), resp.InputTokens, resp.OutputTokens)
			}
			return resp, nil
		}

		if span != nil {
			l.tracer.RecordError(span, err)
			span.End()
		}

		lastErr = err
		retryable := false
		var re retryableError
		if errors.As(err, &re) {
			retryable = re.Retryable()
		}

		status := "error"
		if l.metrics != nil {
			l.metrics.RecordLLMRequest(provider, req.Model, status, duration.Seconds(), 0, 0)
		}

		if !retryable || attempt >= cfg.MaxAttempts {
			if l.metrics != nil && attempt > 1 {
				l.metrics.RecordLLMRetry(provider, "exhausted")
			}
			return nil, lastErr
		}

		if l.metrics != nil {
			l.metrics.RecordLLMRetry(provider, "retried")
		}

		delay := retry.BackoffWithJitter(attempt, cfg.InitialDelay, cfg.MaxDelay, cfg.Factor)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

// Process runs one turn: append the user message, then iterate Gateway
// calls and tool dispatch until the model stops requesting tools, the
// iteration cap is hit, or the Gateway itself fails. It returns the final
// assistant-visible text and the updated conversation; err is non-nil
// only for a caller-side problem (never for a Gateway or tool failure,
// both of which are folded into the conversation instead).
func (l *Loop) Process(ctx context.Context, userText string, conv *models.Conversation) (string, *models.Conversation, error) {
	if conv == nil {
		conv = &models.Conversation{}
	}

	if l.compactor != nil && l.compactor.ShouldCompact(conv) {
		if l.metrics != nil {
			l.metrics.RecordContextWindow(conv.ModelHint, EstimateTokens(conv.Messages))
		}
		var span trace.Span
		compactCtx := ctx
		if l.tracer != nil {
			compactCtx, span = l.tracer.Start(ctx, "compact")
		}
		l.compactor.Compact(compactCtx, conv)
		if span != nil {
			span.End()
		}
		if l.metrics != nil {
			l.metrics.RecordCompaction("success")
		}
	}

	conv.AddUserMessage(userText)

	lastText := ""
	for iteration := 0; iteration < l.config.MaxIterations; iteration++ {
		resp, err := l.generateWithRetry(ctx, conv)
		if err != nil {
			if l.metrics != nil {
				l.metrics.RecordError("loop", "generate_failed")
			}
			loopErr := &LoopError{Phase: PhaseGenerate, Iteration: iteration, Cause: err}
			conv.AddAssistantMessage("I ran into an error processing your request: "+loopErr.Error(), nil)
			return conv.Messages[len(conv.Messages)-1].Content, conv, nil
		}

		if len(resp.ToolCalls) == 0 {
			conv.AddAssistantMessage(resp.Content, nil)
			conv.TruncateMessages(l.config.MaxContextMessages)
			return resp.Content, conv, nil
		}

		conv.AddAssistantMessage(resp.Content, resp.ToolCalls)
		lastText = resp.Content

		for _, tc := range resp.ToolCalls {
			if l.approvals != nil && l.approvals.NeedsApproval(tc.Name) {
				pending := l.approvals.Create(tc.Name, tc.Arguments)
				conv.AddToolResult(tc.ID, tc.Name,
					fmt.Sprintf("This action requires approval before it can run. Approval id: %s. Ask the user to approve or deny it, then retry.", pending.ID))
				continue
			}

			result := l.registry.Execute(ctx, tc.Name, tc.Arguments)
			conv.AddToolResult(tc.ID, tc.Name, result.Text())
		}
	}

	final := "iteration cap reached: " + lastText + "\n\nI've reached the maximum number of tool iterations. Here's what I have so far."
	conv.AddAssistantMessage(final, nil)
	return final, conv, nil
}
