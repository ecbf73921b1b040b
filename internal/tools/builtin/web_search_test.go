package builtin

import (
	"context"
	"encoding/json"
	"testing"
)

func TestWebSearchToolDefaultCount(t *testing.T) {
	tool := NewWebSearchTool(0)
	args, _ := json.Marshal(map[string]any{"query": "idiomatic go"})
	result := tool.Execute(context.Background(), args)
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	resp, ok := result.StructuredData.(WebSearchResponse)
	if !ok {
		t.Fatalf("expected WebSearchResponse, got %T", result.StructuredData)
	}
	if resp.ResultCount != 5 {
		t.Fatalf("result_count = %d, want 5", resp.ResultCount)
	}
}

func TestWebSearchToolRespectsResultCount(t *testing.T) {
	tool := NewWebSearchTool(5)
	args, _ := json.Marshal(map[string]any{"query": "go concurrency", "result_count": 2})
	result := tool.Execute(context.Background(), args)
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	resp := result.StructuredData.(WebSearchResponse)
	if len(resp.Results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(resp.Results))
	}
}

func TestWebSearchToolMissingQuery(t *testing.T) {
	tool := NewWebSearchTool(0)
	args, _ := json.Marshal(map[string]any{"query": ""})
	result := tool.Execute(context.Background(), args)
	if result.Success {
		t.Fatal("expected failure for missing query")
	}
}
