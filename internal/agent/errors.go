package agent

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for agent operations.
var (
	// ErrMaxIterations indicates the agentic loop exceeded its iteration limit.
	ErrMaxIterations = errors.New("max iterations exceeded")

	// ErrNoProvider indicates no LLM provider is configured for a model.
	ErrNoProvider = errors.New("no provider configured")

	// ErrToolNotFound indicates a requested tool doesn't exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolPanic indicates a tool panicked during execution.
	ErrToolPanic = errors.New("tool panicked")

	// ErrBackpressure indicates the per-user rate limiter rejected a
	// message before it reached the Agent Loop.
	ErrBackpressure = errors.New("backpressure: rate limit exceeded")
)

// ToolErrorType categorizes a tool failure for retry and logging purposes.
type ToolErrorType string

const (
	ToolErrorNotFound     ToolErrorType = "not_found"
	ToolErrorInvalidInput ToolErrorType = "invalid_input"
	ToolErrorTimeout      ToolErrorType = "timeout"
	ToolErrorNetwork      ToolErrorType = "network"
	ToolErrorPermission   ToolErrorType = "permission"
	ToolErrorPanic        ToolErrorType = "panic"
	ToolErrorExecution    ToolErrorType = "execution"
	ToolErrorUnknown      ToolErrorType = "unknown"
)

// IsRetryable reports whether a tool error of this type is worth retrying.
// Only timeouts and transient network errors qualify; everything else
// (bad input, missing tool, a panic) will fail the same way again.
func (t ToolErrorType) IsRetryable() bool {
	switch t {
	case ToolErrorTimeout, ToolErrorNetwork:
		return true
	default:
		return false
	}
}

// ToolError is a structured tool-execution failure, carrying enough context
// for the Agent Loop to log and classify it without re-parsing strings.
type ToolError struct {
	Type       ToolErrorType
	ToolName   string
	ToolCallID string
	Message    string
	Cause      error
}

func (e *ToolError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[tool:%s]", e.Type))
	if e.ToolName != "" {
		parts = append(parts, e.ToolName)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError builds a ToolError from a cause, classifying its type from
// the cause's error text.
func NewToolError(toolName string, cause error) *ToolError {
	e := &ToolError{ToolName: toolName, Cause: cause, Type: ToolErrorUnknown}
	if cause != nil {
		e.Message = cause.Error()
		e.Type = classifyToolError(cause)
	}
	return e
}

// WithType overrides the classified error type.
func (e *ToolError) WithType(t ToolErrorType) *ToolError {
	e.Type = t
	return e
}

// WithToolCallID attaches the tool_call id this failure answers.
func (e *ToolError) WithToolCallID(id string) *ToolError {
	e.ToolCallID = id
	return e
}

// classifyToolError infers a ToolErrorType from an error's text when the
// caller hasn't already classified it via WithType.
func classifyToolError(err error) ToolErrorType {
	if err == nil {
		return ToolErrorUnknown
	}
	if errors.Is(err, ErrToolNotFound) {
		return ToolErrorNotFound
	}
	if errors.Is(err, ErrToolPanic) {
		return ToolErrorPanic
	}

	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded"):
		return ToolErrorTimeout
	case strings.Contains(s, "connection") || strings.Contains(s, "network") ||
		strings.Contains(s, "dns") || strings.Contains(s, "refused") || strings.Contains(s, "unreachable"):
		return ToolErrorNetwork
	case strings.Contains(s, "permission") || strings.Contains(s, "forbidden") ||
		strings.Contains(s, "unauthorized") || strings.Contains(s, "access denied"):
		return ToolErrorPermission
	case strings.Contains(s, "invalid") || strings.Contains(s, "validation") ||
		strings.Contains(s, "required") || strings.Contains(s, "missing"):
		return ToolErrorInvalidInput
	default:
		return ToolErrorExecution
	}
}

// IsToolError reports whether err is or wraps a *ToolError.
func IsToolError(err error) bool {
	var toolErr *ToolError
	return errors.As(err, &toolErr)
}

// GetToolError extracts a *ToolError from err's chain.
func GetToolError(err error) (*ToolError, bool) {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr, true
	}
	return nil, false
}

// IsToolRetryable reports whether err represents a transient tool failure
// worth retrying.
func IsToolRetryable(err error) bool {
	if toolErr, ok := GetToolError(err); ok {
		return toolErr.Type.IsRetryable()
	}
	return classifyToolError(err).IsRetryable()
}

// LoopPhase names a distinct stage of one Agent Loop iteration.
type LoopPhase string

const (
	PhaseInit         LoopPhase = "init"
	PhaseGenerate     LoopPhase = "generate"
	PhaseExecuteTools LoopPhase = "execute_tools"
	PhaseCompact      LoopPhase = "compact"
	PhaseComplete     LoopPhase = "complete"
)

// LoopError reports a failure during one Agent Loop iteration, with enough
// context (phase, iteration) to locate it in logs without a stack trace.
type LoopError struct {
	Phase     LoopPhase
	Iteration int
	Message   string
	Cause     error
}

func (e *LoopError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("loop error at %s (iteration %d): %s", e.Phase, e.Iteration, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("loop error at %s (iteration %d): %v", e.Phase, e.Iteration, e.Cause)
	}
	return fmt.Sprintf("loop error at %s (iteration %d)", e.Phase, e.Iteration)
}

func (e *LoopError) Unwrap() error { return e.Cause }
