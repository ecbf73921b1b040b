package builtin

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// DefaultMaxReadBytes caps how much of a file read_file returns when the
// caller does not supply a smaller max_bytes.
const DefaultMaxReadBytes = 200000

// ReadFileTool reads a file under a configured workspace root.
type ReadFileTool struct {
	resolver   resolver
	maxReadLen int
}

// NewReadFileTool creates a read_file tool scoped to workspace.
func NewReadFileTool(workspace string, maxReadBytes int) *ReadFileTool {
	if maxReadBytes <= 0 {
		maxReadBytes = DefaultMaxReadBytes
	}
	return &ReadFileTool{resolver: newResolver(workspace), maxReadLen: maxReadBytes}
}

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read a file from the workspace with an optional byte offset and limit."
}

func (t *ReadFileTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the file, relative to the workspace root.",
			},
			"offset": map[string]any{
				"type":        "integer",
				"description": "Byte offset to start reading from (default 0).",
				"minimum":     0,
			},
			"max_bytes": map[string]any{
				"type":        "integer",
				"description": "Maximum bytes to read, capped by the tool's configured limit.",
				"minimum":     0,
			},
		},
		"required": []string{"path"},
	}
}

type readFileArgs struct {
	Path     string `json:"path"`
	Offset   int64  `json:"offset"`
	MaxBytes int    `json:"max_bytes"`
}

type readFileOutput struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Offset    int64  `json:"offset"`
	Bytes     int    `json:"bytes"`
	Truncated bool   `json:"truncated"`
}

func (t *ReadFileTool) Execute(ctx context.Context, arguments []byte) *models.ToolResult {
	var args readFileArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return &models.ToolResult{Error: "invalid parameters: " + err.Error()}
	}
	if strings.TrimSpace(args.Path) == "" {
		return &models.ToolResult{Error: "path is required"}
	}
	if args.Offset < 0 {
		return &models.ToolResult{Error: "offset must be >= 0"}
	}

	resolved, err := t.resolver.resolve(args.Path)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}
	}

	file, err := os.Open(resolved)
	if err != nil {
		return &models.ToolResult{Error: "open file: " + err.Error()}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return &models.ToolResult{Error: "stat file: " + err.Error()}
	}
	if info.IsDir() {
		return &models.ToolResult{Error: "path is a directory"}
	}

	if args.Offset > 0 {
		if _, err := file.Seek(args.Offset, io.SeekStart); err != nil {
			return &models.ToolResult{Error: "seek file: " + err.Error()}
		}
	}

	limit := t.maxReadLen
	if args.MaxBytes > 0 && args.MaxBytes < limit {
		limit = args.MaxBytes
	}

	remaining := int64(limit)
	if size := info.Size(); size > 0 {
		remaining = size - args.Offset
		if remaining < 0 {
			remaining = 0
		}
		if remaining > int64(limit) {
			remaining = int64(limit)
		}
	}

	buf, err := io.ReadAll(io.LimitReader(file, remaining))
	if err != nil {
		return &models.ToolResult{Error: "read file: " + err.Error()}
	}

	out := readFileOutput{
		Path:      args.Path,
		Content:   string(buf),
		Offset:    args.Offset,
		Bytes:     len(buf),
		Truncated: info.Size() > 0 && args.Offset+int64(len(buf)) < info.Size(),
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return &models.ToolResult{Error: "encode result: " + err.Error()}
	}
	return &models.ToolResult{
		Success:        true,
		Output:         string(payload),
		StructuredData: out,
	}
}
