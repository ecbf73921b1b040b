// Package models holds the data types shared across the agent core:
// conversation messages, tool calls, risk levels, pending approvals, and
// scheduled tasks. None of these types carry behavior beyond small
// constructors and predicates; the components in internal/ own the logic.
package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type in the canonical 4-role model.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is an ordered entry in a Conversation. Immutable once appended.
type Message struct {
	ID         string         `json:"id"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ToolCall represents an LLM's request to execute a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of a tool execution. Success is purely a
// tool-side signal; the loop always feeds a tool-role message back to the
// LLM regardless of its value.
type ToolResult struct {
	Success        bool   `json:"success"`
	Output         string `json:"output,omitempty"`
	StructuredData any    `json:"structured_data,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Text returns the content that belongs in the tool-role message fed back
// to the model: the output on success, an "Error: " prefix on failure.
func (r *ToolResult) Text() string {
	if r == nil {
		return ""
	}
	if r.Success {
		return r.Output
	}
	return "Error: " + r.Error
}

// Conversation is the ordered message log for one user session.
type Conversation struct {
	ID              string    `json:"id"`
	UserKey         string    `json:"user_key"`
	SystemPrompt    string    `json:"system_prompt"`
	ModelHint       string    `json:"model_hint,omitempty"`
	Messages        []Message `json:"messages"`
	CompactionCount int       `json:"compaction_count"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AddUserMessage appends a user-role message.
func (c *Conversation) AddUserMessage(content string) {
	c.Messages = append(c.Messages, Message{Role: RoleUser, Content: content, CreatedAt: time.Now()})
}

// AddAssistantMessage appends an assistant-role message, optionally
// carrying tool_calls.
func (c *Conversation) AddAssistantMessage(content string, toolCalls []ToolCall) {
	c.Messages = append(c.Messages, Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls, CreatedAt: time.Now()})
}

// AddToolResult appends a tool-role message referencing a prior tool_call.
func (c *Conversation) AddToolResult(toolCallID, toolName, content string) {
	c.Messages = append(c.Messages, Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
		ToolName:   toolName,
		CreatedAt:  time.Now(),
	})
}

// TruncateMessages keeps only the trailing max messages, matching the
// original ConversationContext.truncate behavior.
func (c *Conversation) TruncateMessages(max int) {
	if max > 0 && len(c.Messages) > max {
		c.Messages = c.Messages[len(c.Messages)-max:]
	}
}

// RiskLevel classifies the blast radius of a tool invocation.
type RiskLevel string

const (
	RiskSafe      RiskLevel = "safe"
	RiskModerate  RiskLevel = "moderate"
	RiskDangerous RiskLevel = "dangerous"
)

// ApprovalState is a PendingApproval's position in its state machine.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalDenied   ApprovalState = "denied"
	ApprovalExpired  ApprovalState = "expired"
)

// PendingApproval is a human-in-the-loop gate on one dangerous tool call.
type PendingApproval struct {
	ID        string          `json:"id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
	RiskLevel RiskLevel       `json:"risk_level"`
	State     ApprovalState   `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// IsTerminal reports whether the approval has left the pending state.
func (p *PendingApproval) IsTerminal() bool {
	return p.State != ApprovalPending
}

// TaskKind identifies a ScheduledTask's firing semantics.
type TaskKind string

const (
	TaskCron           TaskKind = "cron"
	TaskOneShot        TaskKind = "one_shot"
	TaskReminder       TaskKind = "reminder"
	TaskDailyBriefing  TaskKind = "daily_briefing"
	TaskHeartbeat      TaskKind = "heartbeat"
)

// ActiveWindow restricts a task's firing to an hour-of-day range in local time.
type ActiveWindow struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// Contains reports whether hour h (0-23, local time) falls in the window.
func (w *ActiveWindow) Contains(hour int) bool {
	if w == nil {
		return true
	}
	return hour >= w.StartHour && hour < w.EndHour
}

// ScheduledTask is a persisted unit of future work the Scheduler will fire.
type ScheduledTask struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Kind          TaskKind       `json:"kind"`
	PromptText    string         `json:"prompt_text"`
	CronExpr      string         `json:"cron_expr,omitempty"`
	ScheduledAt   *time.Time     `json:"scheduled_at,omitempty"`
	ActiveWindow  *ActiveWindow  `json:"active_window,omitempty"`
	Enabled       bool           `json:"enabled"`
	LastRun       *time.Time     `json:"last_run,omitempty"`
	NextRun       *time.Time     `json:"next_run,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// User identifies the end-user driving a conversation.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email,omitempty"`
	Name            string    `json:"name,omitempty"`
	Role            string    `json:"role"` // admin|user|pending|blocked
	PreferredModel  string    `json:"preferred_model,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Session groups messages for one user within an idle window.
type Session struct {
	ID           string    `json:"id"`
	UserKey      string    `json:"user_key"`
	Model        string    `json:"model,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UsageRecord is a passive observation of one Gateway call's token cost.
type UsageRecord struct {
	UserKey      string    `json:"user_key"`
	SessionID    string    `json:"session_id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	ToolName     string    `json:"tool_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
