package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// WebSearchResult mirrors one hit in a web_search response.
type WebSearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearchResponse is web_search's structured output.
type WebSearchResponse struct {
	Query       string            `json:"query"`
	Results     []WebSearchResult `json:"results"`
	ResultCount int               `json:"result_count"`
}

// WebSearchTool is a stand-in for a real search backend: no network call is
// made, since wiring a concrete search API is out of scope for this core.
// It returns canned results shaped like a real backend's response so the
// Agent Loop and its tests can exercise the full tool-call round trip.
type WebSearchTool struct {
	defaultResultCount int
}

// NewWebSearchTool creates a web_search tool with a default result count.
func NewWebSearchTool(defaultResultCount int) *WebSearchTool {
	if defaultResultCount <= 0 {
		defaultResultCount = 5
	}
	return &WebSearchTool{defaultResultCount: defaultResultCount}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web for a query and return a short list of results (title, url, snippet)."
}

func (t *WebSearchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query.",
			},
			"result_count": map[string]any{
				"type":        "integer",
				"description": "Number of results to return (default 5, max 10).",
				"minimum":     1,
				"maximum":     10,
			},
		},
		"required": []string{"query"},
	}
}

type webSearchArgs struct {
	Query       string `json:"query"`
	ResultCount int    `json:"result_count"`
}

func (t *WebSearchTool) Execute(ctx context.Context, arguments []byte) *models.ToolResult {
	var args webSearchArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return &models.ToolResult{Error: "invalid parameters: " + err.Error()}
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return &models.ToolResult{Error: "query is required"}
	}

	count := t.defaultResultCount
	if args.ResultCount > 0 && args.ResultCount <= 10 {
		count = args.ResultCount
	}

	resp := WebSearchResponse{Query: query, Results: make([]WebSearchResult, 0, count)}
	for i := 1; i <= count; i++ {
		resp.Results = append(resp.Results, WebSearchResult{
			Title:   fmt.Sprintf("Result %d for %q", i, query),
			URL:     fmt.Sprintf("https://example.invalid/search?q=%s&rank=%d", strings.ReplaceAll(query, " ", "+"), i),
			Snippet: fmt.Sprintf("A stubbed summary of result %d for %q. No live search backend is configured.", i, query),
		})
	}
	resp.ResultCount = len(resp.Results)

	payload, err := json.Marshal(resp)
	if err != nil {
		return &models.ToolResult{Error: "encode result: " + err.Error()}
	}
	return &models.ToolResult{Success: true, Output: string(payload), StructuredData: resp}
}
