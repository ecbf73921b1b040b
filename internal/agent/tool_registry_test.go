package agent

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

type stubTool struct {
	name   string
	schema map[string]any
	result *models.ToolResult
}

func (t *stubTool) Name() string           { return t.name }
func (t *stubTool) Description() string    { return "stub tool for tests" }
func (t *stubTool) Schema() map[string]any { return t.schema }
func (t *stubTool) Execute(_ context.Context, _ []byte) *models.ToolResult {
	return t.result
}

// panickingTool always panics on Execute, to exercise Execute's recovery path.
type panickingTool struct{ name string }

func (t *panickingTool) Name() string           { return t.name }
func (t *panickingTool) Description() string    { return "panics unconditionally" }
func (t *panickingTool) Schema() map[string]any { return objectSchema() }
func (t *panickingTool) Execute(context.Context, []byte) *models.ToolResult {
	panic("boom")
}

// nilResultTool returns a nil ToolResult, which Execute must also treat as a
// failure rather than handing a nil pointer back to the Loop.
type nilResultTool struct{ name string }

func (t *nilResultTool) Name() string           { return t.name }
func (t *nilResultTool) Description() string    { return "returns nil" }
func (t *nilResultTool) Schema() map[string]any { return objectSchema() }
func (t *nilResultTool) Execute(context.Context, []byte) *models.ToolResult {
	return nil
}

// blockingTool does not return from Execute until release is closed.
type blockingTool struct {
	name    string
	release chan struct{}
}

func (t *blockingTool) Name() string           { return t.name }
func (t *blockingTool) Description() string    { return "blocks until released" }
func (t *blockingTool) Schema() map[string]any { return objectSchema() }
func (t *blockingTool) Execute(context.Context, []byte) *models.ToolResult {
	<-t.release
	return &models.ToolResult{Success: true}
}

func objectSchema(required ...string) map[string]any {
	props := map[string]any{}
	for _, r := range required {
		props[r] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// R1: registering a Tool then listing schemas yields a schema whose name
// matches and whose parameters object contains every required parameter.
func TestToolRegistry_SchemaRoundTrip(t *testing.T) {
	reg := NewToolRegistry()
	tool := &stubTool{
		name:   "web_search",
		schema: objectSchema("query"),
		result: &models.ToolResult{Success: true, Output: "found"},
	}
	if err := reg.Register(tool); err != nil {
		t.Fatalf("Register: %v", err)
	}

	defs := reg.AsLLMTools()
	if len(defs) != 1 {
		t.Fatalf("expected 1 schema, got %d", len(defs))
	}
	def := defs[0]
	if def.Name != "web_search" {
		t.Fatalf("expected name web_search, got %q", def.Name)
	}
	props, ok := def.Parameters["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %T", def.Parameters["properties"])
	}
	required, ok := def.Parameters["required"].([]string)
	if !ok {
		t.Fatalf("expected required []string, got %T", def.Parameters["required"])
	}
	for _, r := range required {
		if _, ok := props[r]; !ok {
			t.Errorf("required param %q missing from properties", r)
		}
	}
}

func TestToolRegistry_RejectsMalformedSchema(t *testing.T) {
	reg := NewToolRegistry()
	tool := &stubTool{
		name:   "broken",
		schema: map[string]any{"type": 123}, // type must be a string or array
	}
	if err := reg.Register(tool); err == nil {
		t.Fatal("expected an error registering a malformed schema")
	}
	if _, ok := reg.Get("broken"); ok {
		t.Fatal("malformed tool should not have been registered")
	}
}

func TestToolRegistry_RegisterIsIdempotent(t *testing.T) {
	reg := NewToolRegistry()
	first := &stubTool{name: "x", schema: objectSchema(), result: &models.ToolResult{Success: true, Output: "first"}}
	second := &stubTool{name: "x", schema: objectSchema(), result: &models.ToolResult{Success: true, Output: "second"}}

	if err := reg.Register(first); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(second); err != nil {
		t.Fatal(err)
	}
	if len(reg.Names()) != 1 {
		t.Fatalf("expected 1 tool after re-registration, got %d", len(reg.Names()))
	}
	result := reg.Execute(context.Background(), "x", nil)
	if result.Output != "second" {
		t.Fatalf("expected re-registration to replace the prior tool, got output %q", result.Output)
	}
}

func TestToolRegistry_ExecuteUnknownTool(t *testing.T) {
	reg := NewToolRegistry()
	result := reg.Execute(context.Background(), "does_not_exist", nil)
	if result.Success {
		t.Fatal("expected failure for unknown tool")
	}
	if result.Error != "tool not found: does_not_exist" {
		t.Fatalf("unexpected error message: %q", result.Error)
	}
}

func TestToolRegistry_ExecuteOversizedArguments(t *testing.T) {
	reg := NewToolRegistry()
	tool := &stubTool{name: "x", schema: objectSchema(), result: &models.ToolResult{Success: true}}
	if err := reg.Register(tool); err != nil {
		t.Fatal(err)
	}
	oversized := make([]byte, MaxToolArgumentsSize+1)
	result := reg.Execute(context.Background(), "x", oversized)
	if result.Success {
		t.Fatal("expected failure for oversized arguments")
	}
}

// R1: a panicking tool never crashes Execute's caller; it comes back as a
// ToolResult carrying the panic's message, classified as ToolErrorPanic.
func TestToolRegistry_ExecuteRecoversPanic(t *testing.T) {
	reg := NewToolRegistry()
	if err := reg.Register(&panickingTool{name: "explode"}); err != nil {
		t.Fatal(err)
	}

	done := make(chan *models.ToolResult, 1)
	go func() {
		done <- reg.Execute(context.Background(), "explode", nil)
	}()

	select {
	case result := <-done:
		if result.Success {
			t.Fatal("expected failure for a panicking tool")
		}
		if result.Error == "" {
			t.Fatal("expected a non-empty error message describing the panic")
		}
	case <-time.After(time.Second):
		t.Fatal("Execute never returned after its tool panicked")
	}
}

func TestToolRegistry_ExecuteNilResultIsFailure(t *testing.T) {
	reg := NewToolRegistry()
	if err := reg.Register(&nilResultTool{name: "empty"}); err != nil {
		t.Fatal(err)
	}

	result := reg.Execute(context.Background(), "empty", nil)
	if result.Success {
		t.Fatal("expected failure when a tool returns a nil result")
	}
}

// Execute must still honor context cancellation even while its tool's
// goroutine is still running, instead of blocking forever.
func TestToolRegistry_ExecuteRespectsContextCancellation(t *testing.T) {
	reg := NewToolRegistry()
	blocking := &blockingTool{name: "slow", release: make(chan struct{})}
	defer close(blocking.release)
	if err := reg.Register(blocking); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan *models.ToolResult, 1)
	go func() {
		done <- reg.Execute(ctx, "slow", nil)
	}()

	select {
	case result := <-done:
		if result.Success {
			t.Fatal("expected failure for an already-cancelled context")
		}
	case <-time.After(time.Second):
		t.Fatal("Execute did not return promptly after context cancellation")
	}
}

func TestConversationLocker_SerializesSameConversation(t *testing.T) {
	locker := NewConversationLocker()
	unlock := locker.Lock("conv-1")

	done := make(chan struct{})
	go func() {
		unlock2 := locker.Lock("conv-1")
		defer unlock2()
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("second lock acquired before first was released")
	default:
	}
	unlock()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after release")
	}
}

func TestConversationLocker_DifferentConversationsDoNotBlock(t *testing.T) {
	locker := NewConversationLocker()
	unlock := locker.Lock("conv-1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		unlock2 := locker.Lock("conv-2")
		defer unlock2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different conversation id should not block")
	}
}
