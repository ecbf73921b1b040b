package agent

import (
	"context"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Gateway abstracts one LLM provider call: messages + tool schemas + system
// prompt in, text + tool-call intents out. Implementations must not retry on
// their own — all retries and backoff live in the Agent Loop, because
// retrying a partial tool-calling turn would create duplicate side effects.
//
// Implementations must be safe for concurrent use.
type Gateway interface {
	// Generate performs one non-streaming completion.
	Generate(ctx context.Context, req *CompletionRequest) (*Response, error)

	// Stream performs one completion, delivering text incrementally. The
	// channel is closed after a final chunk with Done=true or an Error.
	Stream(ctx context.Context, req *CompletionRequest) (<-chan *Chunk, error)

	// Name returns the provider name, e.g. "anthropic" or "openai".
	Name() string
}

// CompletionRequest is one turn's worth of context handed to a provider.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []models.Message
	Tools     []ToolDefinition
	MaxTokens int
}

// ToolDefinition is what gets handed to the LLM Gateway verbatim: a tool's
// name, description, and JSON-Schema-shaped parameter schema.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Response is the result of one non-streaming Generate call.
type Response struct {
	Content      string
	ToolCalls    []models.ToolCall
	InputTokens  int
	OutputTokens int
	Model        string
	StopReason   string
}

// Chunk is one increment of a streamed response.
type Chunk struct {
	Text         string
	ToolCall     *models.ToolCall
	Done         bool
	Error        error
	InputTokens  int
	OutputTokens int
}

// Tool is a named capability with a typed parameter schema and an
// execution method. The registry is a dispatcher over Tools, not a
// validator of their arguments.
type Tool interface {
	Name() string
	Description() string
	// Schema returns a JSON-Schema-shaped object: {"type":"object",
	// "properties": {...}, "required": [...]}.
	Schema() map[string]any
	Execute(ctx context.Context, arguments []byte) *models.ToolResult
}
