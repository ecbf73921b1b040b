package builtin

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// DefaultShellTimeout is the tool-level timeout applied when a run_command
// call does not supply its own timeout_seconds.
const DefaultShellTimeout = 30 * time.Second

const maxCommandOutputBytes = 64000

// RunCommandTool shells out via os/exec with a bounded context timeout. It
// is the dangerous tool this repo's Approval Gate exists to gate.
type RunCommandTool struct {
	resolver resolver
}

// NewRunCommandTool creates a run_command tool whose relative cwd arguments
// resolve under workspace.
func NewRunCommandTool(workspace string) *RunCommandTool {
	return &RunCommandTool{resolver: newResolver(workspace)}
}

func (t *RunCommandTool) Name() string { return "run_command" }

func (t *RunCommandTool) Description() string {
	return "Run a shell command in the workspace and return its stdout, stderr, and exit code."
}

func (t *RunCommandTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Shell command to execute.",
			},
			"cwd": map[string]any{
				"type":        "string",
				"description": "Working directory, relative to the workspace root.",
			},
			"timeout_seconds": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (default 30, 0 disables the override and keeps the default).",
				"minimum":     0,
			},
		},
		"required": []string{"command"},
	}
}

type commandArgs struct {
	Command        string `json:"command"`
	Cwd            string `json:"cwd"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type commandOutput struct {
	Command  string `json:"command"`
	Cwd      string `json:"cwd"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

func (t *RunCommandTool) Execute(ctx context.Context, arguments []byte) *models.ToolResult {
	var args commandArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return &models.ToolResult{Error: "invalid parameters: " + err.Error()}
	}
	command := strings.TrimSpace(args.Command)
	if command == "" {
		return &models.ToolResult{Error: "command is required"}
	}

	timeout := DefaultShellTimeout
	if args.TimeoutSeconds > 0 {
		timeout = time.Duration(args.TimeoutSeconds) * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir := ""
	if strings.TrimSpace(args.Cwd) != "" {
		resolved, err := t.resolver.resolve(args.Cwd)
		if err != nil {
			return &models.ToolResult{Error: err.Error()}
		}
		dir = resolved
	} else if resolved, err := t.resolver.resolve("."); err == nil {
		dir = resolved
	}

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Dir = dir
	stdout := newLimitedBuffer(maxCommandOutputBytes)
	stderr := newLimitedBuffer(maxCommandOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()
	out := commandOutput{
		Command:  command,
		Cwd:      dir,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode(runErr),
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return &models.ToolResult{Error: "encode result: " + err.Error()}
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return &models.ToolResult{Output: string(payload), Error: "command timed out after " + timeout.String()}
	}
	return &models.ToolResult{Success: true, Output: string(payload)}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// limitedBuffer caps how much of a command's stdout/stderr is retained, so
// a runaway process cannot grow a tool-result payload without bound.
type limitedBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newLimitedBuffer(max int) *limitedBuffer {
	return &limitedBuffer{max: max}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) >= b.max {
		return len(p), nil
	}
	remaining := b.max - len(b.buf)
	if len(p) > remaining {
		b.buf = append(b.buf, p[:remaining]...)
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
