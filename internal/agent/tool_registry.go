package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// ToolRegistry manages available tools with thread-safe registration and
// lookup. Tools are registered by name and dispatched by name during a
// loop turn.
type ToolRegistry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewToolRegistry creates a new empty tool registry ready for registration.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// SetMetrics attaches a Prometheus metrics sink. Execute records tool
// execution counts and durations through it once set; nil disables
// instrumentation (the default).
func (r *ToolRegistry) SetMetrics(m *observability.Metrics) { r.metrics = m }

// SetTracer attaches an OpenTelemetry tracer. Execute wraps each tool call
// in a span once set; nil disables tracing (the default).
func (r *ToolRegistry) SetTracer(t *observability.Tracer) { r.tracer = t }

// Register adds a tool to the registry by its name. Registering a name
// already present replaces the prior entry, so re-registration is
// idempotent from the caller's point of view.
//
// This only checks that the tool's own Schema() is well-formed
// JSON-Schema (R1); it never validates the arguments an LLM later supplies
// against it — that remains the tool's own discretion at Execute time.
func (r *ToolRegistry) Register(tool Tool) error {
	if err := validateSchema(tool.Name(), tool.Schema()); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
	return nil
}

// MustRegister is Register, panicking on a malformed schema. Intended for
// process-startup wiring where a bad builtin schema is a programming error.
func (r *ToolRegistry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// validateSchema compiles a tool's parameter schema with jsonschema/v5,
// rejecting anything that is not a well-formed JSON-Schema document.
func validateSchema(toolName string, schema map[string]any) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("tool registry: %s: encode schema: %w", toolName, err)
	}
	if _, err := jsonschema.CompileString(toolName+".schema.json", string(raw)); err != nil {
		return fmt.Errorf("tool registry: %s: invalid parameter schema: %w", toolName, err)
	}
	return nil
}

// Unregister removes a tool from the registry by name.
func (r *ToolRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name and whether it was found.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Tool parameter limits to prevent resource exhaustion on malformed or
// adversarial tool_call input.
const (
	// MaxToolNameLength is the maximum length of a tool name.
	MaxToolNameLength = 256

	// MaxToolArgumentsSize is the maximum size of a tool_call's arguments
	// JSON payload (10MB).
	MaxToolArgumentsSize = 10 << 20
)

// Execute runs a tool by name with the given JSON arguments. Execute never
// returns a Go error: an unknown tool, an oversized payload, a panicking
// tool, or a failing tool all come back as a ToolResult with Success=false,
// so the Agent Loop can always feed a tool-role message back to the model.
func (r *ToolRegistry) Execute(ctx context.Context, name string, arguments []byte) *models.ToolResult {
	if len(name) > MaxToolNameLength {
		return &models.ToolResult{Error: fmt.Sprintf("tool name exceeds maximum length of %d characters", MaxToolNameLength)}
	}
	if len(arguments) > MaxToolArgumentsSize {
		return &models.ToolResult{Error: fmt.Sprintf("tool arguments exceed maximum size of %d bytes", MaxToolArgumentsSize)}
	}

	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		if r.metrics != nil {
			r.metrics.RecordToolExecution(name, "error", 0)
		}
		return &models.ToolResult{Error: "tool not found: " + name}
	}

	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.TraceToolExecution(ctx, name)
		defer span.End()
	}

	start := time.Now()
	result, toolErr := r.executeRecovered(ctx, tool, name, arguments)
	duration := time.Since(start)

	status := "success"
	if toolErr != nil {
		status = "error"
		if te, ok := GetToolError(toolErr); ok && te.Type == ToolErrorPanic {
			status = "panic"
		}
		if span := trace.SpanFromContext(ctx); r.tracer != nil {
			r.tracer.RecordError(span, toolErr)
		}
		result = &models.ToolResult{Error: toolErr.Error()}
	}
	if r.metrics != nil {
		r.metrics.RecordToolExecution(name, status, duration.Seconds())
	}
	return result
}

// executeRecovered runs tool.Execute on its own goroutine so a panic inside
// the tool is recovered and converted into a *ToolError{Type: ToolErrorPanic}
// instead of crashing the process.
func (r *ToolRegistry) executeRecovered(ctx context.Context, tool Tool, name string, arguments []byte) (*models.ToolResult, error) {
	type outcome struct {
		result *models.ToolResult
		err    error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				err := NewToolError(name, fmt.Errorf("panic: %v\n%s", rec, debug.Stack())).WithType(ToolErrorPanic)
				resultCh <- outcome{err: err}
			}
		}()
		result := tool.Execute(ctx, arguments)
		if result == nil {
			resultCh <- outcome{err: NewToolError(name, fmt.Errorf("tool returned no result"))}
			return
		}
		resultCh <- outcome{result: result}
	}()

	select {
	case o := <-resultCh:
		return o.result, o.err
	case <-ctx.Done():
		return nil, NewToolError(name, ctx.Err()).WithType(ToolErrorTimeout)
	}
}

// AsLLMTools returns all registered tools' definitions for inclusion in a
// Gateway request, in no particular order.
func (r *ToolRegistry) AsLLMTools() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	return defs
}

// Names returns the registered tool names, in no particular order.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// conversationLock is a refcounted mutex for one conversation id. It is
// deleted from its owning map once its last holder releases it, so the
// map never grows unbounded with conversations that are no longer active.
type conversationLock struct {
	mu   sync.Mutex
	refs int
}

// ConversationLocker serializes turns against the same conversation,
// including a scheduler-originated turn racing a live user turn for the
// same conversation id.
type ConversationLocker struct {
	mu    sync.Mutex
	locks map[string]*conversationLock
}

// NewConversationLocker builds an empty locker.
func NewConversationLocker() *ConversationLocker {
	return &ConversationLocker{locks: make(map[string]*conversationLock)}
}

// Lock blocks until the caller holds the named conversation's lock, and
// returns a function that releases it. An empty id is a no-op lock.
func (l *ConversationLocker) Lock(conversationID string) func() {
	if strings.TrimSpace(conversationID) == "" {
		return func() {}
	}

	l.mu.Lock()
	lock := l.locks[conversationID]
	if lock == nil {
		lock = &conversationLock{}
		l.locks[conversationID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		l.mu.Lock()
		lock.refs--
		if lock.refs <= 0 {
			delete(l.locks, conversationID)
		}
		l.mu.Unlock()
	}
}
