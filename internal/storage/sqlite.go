// Package storage is the long-term relational store backing sessions,
// messages, pending approvals, and scheduled tasks. It is a thin mirror,
// not the system of record for everything: the Scheduler's JSON file
// remains authoritative for ScheduledTasks (see internal/scheduler/store.go).
// The approval and task tables are written only through MirrorApproval and
// MirrorTasks, which nothing else in this module calls; the admin surface
// reads approvals and tasks from the ApprovalGate and Scheduler directly.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Store is the SQLite-backed long-term log. A single *sql.DB is safe for
// concurrent use by multiple goroutines; SQLite itself serializes writers.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the SQLite database at path and ensures the
// schema exists. path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite has no real concurrent-writer story

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_key TEXT NOT NULL,
			model TEXT,
			system_prompt TEXT,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user_active ON sessions(user_key, is_active, updated_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_calls TEXT,
			tool_call_id TEXT,
			tool_name TEXT,
			metadata TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS pending_approvals (
			id TEXT PRIMARY KEY,
			tool_name TEXT NOT NULL,
			arguments TEXT,
			risk_level TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			prompt_text TEXT NOT NULL,
			cron_expr TEXT,
			scheduled_at DATETIME,
			active_window TEXT,
			enabled INTEGER NOT NULL,
			last_run DATETIME,
			next_run DATETIME,
			metadata TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS usage_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_key TEXT NOT NULL,
			session_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			tool_name TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_records(user_key, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("storage: migrate: %w", err)
		}
	}
	return nil
}

// GetActiveSession returns the most recently updated active session for
// userKey whose UpdatedAt is at or after idleCutoff, or nil if none.
func (s *Store) GetActiveSession(ctx context.Context, userKey string, idleCutoff time.Time) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_key, model, system_prompt, is_active, created_at, updated_at
		FROM sessions
		WHERE user_key = ? AND is_active = 1 AND updated_at >= ?
		ORDER BY updated_at DESC LIMIT 1`, userKey, idleCutoff)

	var sess models.Session
	var isActive int
	if err := row.Scan(&sess.ID, &sess.UserKey, &sess.Model, &sess.SystemPrompt, &isActive, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: get active session: %w", err)
	}
	sess.IsActive = isActive != 0
	return &sess, nil
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_key, model, system_prompt, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserKey, session.Model, session.SystemPrompt,
		boolToInt(session.IsActive), session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("storage: create session: %w", err)
	}
	return nil
}

// UpdateSession rewrites a session's mutable fields.
func (s *Store) UpdateSession(ctx context.Context, session *models.Session) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET model = ?, system_prompt = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		session.Model, session.SystemPrompt, boolToInt(session.IsActive), session.UpdatedAt, session.ID)
	if err != nil {
		return fmt.Errorf("storage: update session: %w", err)
	}
	return nil
}

// AppendMessage persists one message row under sessionID. Messages are
// immutable once appended; this is the only write path for them.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg models.Message) error {
	toolCallsJSON, err := json.Marshal(msg.ToolCalls)
	if err != nil {
		return fmt.Errorf("storage: marshal tool_calls: %w", err)
	}
	metadataJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("storage: marshal metadata: %w", err)
	}
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("%s-%d", sessionID, time.Now().UnixNano())
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, tool_calls, tool_call_id, tool_name, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, sessionID, string(msg.Role), msg.Content, string(toolCallsJSON), msg.ToolCallID, msg.ToolName, string(metadataJSON), msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: append message: %w", err)
	}
	return nil
}

// LoadMessages returns every message for sessionID in creation order.
func (s *Store) LoadMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, tool_calls, tool_call_id, tool_name, metadata, created_at
		FROM messages WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("storage: load messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var toolCallsJSON, metadataJSON string
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &toolCallsJSON, &m.ToolCallID, &m.ToolName, &metadataJSON, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan message: %w", err)
		}
		if toolCallsJSON != "" && toolCallsJSON != "null" {
			if err := json.Unmarshal([]byte(toolCallsJSON), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("storage: unmarshal tool_calls: %w", err)
			}
		}
		if metadataJSON != "" && metadataJSON != "null" {
			if err := json.Unmarshal([]byte(metadataJSON), &m.Metadata); err != nil {
				return nil, fmt.Errorf("storage: unmarshal metadata: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordUsage appends one UsageRecord observed after a Gateway call.
func (s *Store) RecordUsage(ctx context.Context, u models.UsageRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records (user_key, session_id, provider, model, input_tokens, output_tokens, tool_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.UserKey, u.SessionID, u.Provider, u.Model, u.InputTokens, u.OutputTokens, u.ToolName, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: record usage: %w", err)
	}
	return nil
}

// MirrorApproval upserts a PendingApproval snapshot so its history can
// outlive the in-memory ApprovalGate. Nothing else in this module calls it.
func (s *Store) MirrorApproval(ctx context.Context, pa *models.PendingApproval) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_approvals (id, tool_name, arguments, risk_level, state, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state`,
		pa.ID, pa.ToolName, string(pa.Arguments), string(pa.RiskLevel), string(pa.State), pa.CreatedAt, pa.ExpiresAt)
	if err != nil {
		return fmt.Errorf("storage: mirror approval: %w", err)
	}
	return nil
}

// MirrorTasks replaces the scheduled_tasks mirror with the given set.
// The scheduler does not call it; nothing else in this module does either.
func (s *Store) MirrorTasks(ctx context.Context, tasks []*models.ScheduledTask) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: mirror tasks: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scheduled_tasks`); err != nil {
		return fmt.Errorf("storage: mirror tasks: %w", err)
	}
	for _, t := range tasks {
		activeWindowJSON, err := json.Marshal(t.ActiveWindow)
		if err != nil {
			return fmt.Errorf("storage: marshal active_window: %w", err)
		}
		metadataJSON, err := json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("storage: marshal metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scheduled_tasks (id, name, kind, prompt_text, cron_expr, scheduled_at, active_window, enabled, last_run, next_run, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Name, string(t.Kind), t.PromptText, t.CronExpr, t.ScheduledAt,
			string(activeWindowJSON), boolToInt(t.Enabled), t.LastRun, t.NextRun, string(metadataJSON)); err != nil {
			return fmt.Errorf("storage: mirror tasks: %w", err)
		}
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
