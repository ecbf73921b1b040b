package builtin

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestRunCommandToolSuccess(t *testing.T) {
	tool := NewRunCommandTool(t.TempDir())
	args, _ := json.Marshal(map[string]any{"command": "echo hello"})
	result := tool.Execute(context.Background(), args)
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if !strings.Contains(result.Output, "hello") {
		t.Fatalf("expected stdout in output, got %s", result.Output)
	}
}

func TestRunCommandToolNonZeroExitStillSucceedsAsTool(t *testing.T) {
	tool := NewRunCommandTool(t.TempDir())
	args, _ := json.Marshal(map[string]any{"command": "exit 3"})
	result := tool.Execute(context.Background(), args)
	if !result.Success {
		t.Fatalf("a nonzero exit code is not a tool-level failure, got error %q", result.Error)
	}
	if !strings.Contains(result.Output, `"exit_code":3`) {
		t.Fatalf("expected exit_code 3 in output, got %s", result.Output)
	}
}

func TestRunCommandToolMissingCommand(t *testing.T) {
	tool := NewRunCommandTool(t.TempDir())
	args, _ := json.Marshal(map[string]any{"command": ""})
	result := tool.Execute(context.Background(), args)
	if result.Success {
		t.Fatal("expected failure for missing command")
	}
}

func TestRunCommandToolTimeout(t *testing.T) {
	tool := NewRunCommandTool(t.TempDir())
	args, _ := json.Marshal(map[string]any{"command": "sleep 2", "timeout_seconds": 1})
	result := tool.Execute(context.Background(), args)
	if result.Success {
		t.Fatal("expected a timed-out command to report failure")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Fatalf("expected timeout error, got %q", result.Error)
	}
}

func TestRunCommandToolInvalidParams(t *testing.T) {
	tool := NewRunCommandTool(t.TempDir())
	result := tool.Execute(context.Background(), []byte("not json"))
	if result.Success {
		t.Fatal("expected failure for invalid JSON arguments")
	}
}
