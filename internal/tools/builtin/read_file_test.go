package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadFileTool(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hello world"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	tool := NewReadFileTool(root, 0)

	args, _ := json.Marshal(map[string]any{"path": "notes.txt"})
	result := tool.Execute(context.Background(), args)
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if !strings.Contains(result.Output, "hello world") {
		t.Fatalf("expected content in output, got %s", result.Output)
	}
}

func TestReadFileToolTruncates(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "big.txt"), []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	tool := NewReadFileTool(root, 4)

	args, _ := json.Marshal(map[string]any{"path": "big.txt"})
	result := tool.Execute(context.Background(), args)
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	out, ok := result.StructuredData.(readFileOutput)
	if !ok {
		t.Fatalf("expected readFileOutput, got %T", result.StructuredData)
	}
	if !out.Truncated {
		t.Error("expected truncated=true")
	}
	if out.Bytes != 4 {
		t.Errorf("bytes = %d, want 4", out.Bytes)
	}
}

func TestReadFileToolMissingPath(t *testing.T) {
	tool := NewReadFileTool(t.TempDir(), 0)
	args, _ := json.Marshal(map[string]any{"path": ""})
	result := tool.Execute(context.Background(), args)
	if result.Success {
		t.Fatal("expected failure for missing path")
	}
}

func TestReadFileToolEscapeRejected(t *testing.T) {
	tool := NewReadFileTool(t.TempDir(), 0)
	args, _ := json.Marshal(map[string]any{"path": "../outside.txt"})
	result := tool.Execute(context.Background(), args)
	if result.Success {
		t.Fatal("expected failure for path escaping workspace")
	}
}

func TestReadFileToolNotFound(t *testing.T) {
	tool := NewReadFileTool(t.TempDir(), 0)
	args, _ := json.Marshal(map[string]any{"path": "missing.txt"})
	result := tool.Execute(context.Background(), args)
	if result.Success {
		t.Fatal("expected failure for missing file")
	}
}
