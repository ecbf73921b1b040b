package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// OpenAIGateway implements agent.Gateway against the Chat Completions API.
// Like AnthropicGateway it makes exactly one attempt per call; it never
// retries on its own.
type OpenAIGateway struct {
	client       *openai.Client
	defaultModel string
}

// OpenAIConfig configures an OpenAIGateway.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// NewOpenAIGateway builds a gateway from config.
func NewOpenAIGateway(config OpenAIConfig) (*OpenAIGateway, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gpt-4o"
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIGateway{
		client:       openai.NewClientWithConfig(clientConfig),
		defaultModel: config.DefaultModel,
	}, nil
}

// Name implements agent.Gateway.
func (g *OpenAIGateway) Name() string { return "openai" }

// Generate implements agent.Gateway by draining Stream into one Response.
func (g *OpenAIGateway) Generate(ctx context.Context, req *agent.CompletionRequest) (*agent.Response, error) {
	chunks, err := g.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var content string
	toolCalls := make(map[int]*models.ToolCall)
	var order []int
	var inputTokens, outputTokens int

	for chunk := range chunks {
		if chunk.Error != nil {
			return nil, chunk.Error
		}
		if chunk.Text != "" {
			content += chunk.Text
		}
		if chunk.ToolCall != nil {
			toolCalls[len(order)] = chunk.ToolCall
			order = append(order, len(order))
		}
		if chunk.InputTokens > 0 {
			inputTokens = chunk.InputTokens
		}
		if chunk.OutputTokens > 0 {
			outputTokens = chunk.OutputTokens
		}
	}

	calls := make([]models.ToolCall, 0, len(order))
	for _, idx := range order {
		calls = append(calls, *toolCalls[idx])
	}

	return &agent.Response{
		Content:      content,
		ToolCalls:    calls,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Model:        g.getModel(req.Model),
	}, nil
}

// Stream implements agent.Gateway.
func (g *OpenAIGateway) Stream(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.Chunk, error) {
	model := g.getModel(req.Model)

	messages := g.convertMessages(req.Messages, req.System)

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = g.convertTools(req.Tools)
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, g.wrapError(err, model)
	}

	chunks := make(chan *agent.Chunk)
	go g.processStream(stream, chunks, model)
	return chunks, nil
}

func (g *OpenAIGateway) processStream(stream *openai.ChatCompletionStream, chunks chan<- *agent.Chunk, model string) {
	defer close(chunks)
	defer stream.Close()

	toolCalls := make(map[int]*models.ToolCall)
	var toolOrder []int
	seen := make(map[int]bool)

	flush := func() {
		for _, idx := range toolOrder {
			tc := toolCalls[idx]
			if tc != nil && tc.ID != "" && tc.Name != "" {
				chunks <- &agent.Chunk{ToolCall: tc}
			}
		}
		toolCalls = make(map[int]*models.ToolCall)
		toolOrder = nil
		seen = make(map[int]bool)
	}

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flush()
				chunks <- &agent.Chunk{Done: true}
				return
			}
			chunks <- &agent.Chunk{Error: g.wrapError(err, model)}
			return
		}

		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			chunks <- &agent.Chunk{Text: delta.Content}
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if toolCalls[index] == nil {
				toolCalls[index] = &models.ToolCall{}
			}
			if !seen[index] {
				seen[index] = true
				toolOrder = append(toolOrder, index)
			}
			if tc.ID != "" {
				toolCalls[index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[index].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				current := string(toolCalls[index].Arguments)
				toolCalls[index].Arguments = json.RawMessage(current + tc.Function.Arguments)
			}
		}

		if choice.FinishReason == openai.FinishReasonToolCalls {
			flush()
		}
	}
}

// convertMessages translates the canonical 4-role Message log into the
// Chat Completions shape, where tool results are plain tool-role messages
// carrying a tool_call_id rather than a nested result list.
func (g *OpenAIGateway) convertMessages(messages []models.Message, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			continue

		case models.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})

		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			if len(msg.ToolCalls) > 0 {
				oaiMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					oaiMsg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.Name,
							Arguments: string(tc.Arguments),
						},
					}
				}
			}
			result = append(result, oaiMsg)

		default: // user
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}

	return result
}

func (g *OpenAIGateway) convertTools(tools []agent.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		}
	}
	return result
}

func (g *OpenAIGateway) getModel(model string) string {
	if model == "" {
		return g.defaultModel
	}
	return model
}

func (g *OpenAIGateway) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsGatewayError(err) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		gwErr := NewGatewayError("openai", model, err).WithStatus(apiErr.HTTPStatusCode)
		if apiErr.Message != "" {
			gwErr.Message = apiErr.Message
		}
		if apiErr.Code != nil {
			if code, ok := apiErr.Code.(string); ok && code != "" {
				gwErr = gwErr.WithCode(code)
			}
		}
		return gwErr
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewGatewayError("openai", model, err).WithStatus(reqErr.HTTPStatusCode)
	}

	return NewGatewayError("openai", model, err)
}
