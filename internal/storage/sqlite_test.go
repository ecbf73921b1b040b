package storage

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SessionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	session := &models.Session{
		ID:           "sess-1",
		UserKey:      "user-1",
		Model:        "claude-3",
		SystemPrompt: "be helpful",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	got, err := s.GetActiveSession(ctx, "user-1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetActiveSession: %v", err)
	}
	if got == nil || got.ID != "sess-1" {
		t.Fatalf("expected to find the created session, got %+v", got)
	}

	session.Model = "claude-4"
	if err := s.UpdateSession(ctx, session); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	got2, err := s.GetActiveSession(ctx, "user-1", now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetActiveSession after update: %v", err)
	}
	if got2.Model != "claude-4" {
		t.Fatalf("expected updated model, got %q", got2.Model)
	}
}

func TestStore_GetActiveSession_RespectsIdleCutoff(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	stale := time.Now().UTC().Add(-48 * time.Hour)

	if err := s.CreateSession(ctx, &models.Session{
		ID: "sess-stale", UserKey: "user-1", IsActive: true, CreatedAt: stale, UpdatedAt: stale,
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetActiveSession(ctx, "user-1", time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("GetActiveSession: %v", err)
	}
	if got != nil {
		t.Fatalf("expected a stale session to be excluded by the idle cutoff, got %+v", got)
	}
}

func TestStore_AppendAndLoadMessages_PreservesOrderAndToolCalls(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	msgs := []models.Message{
		{Role: models.RoleUser, Content: "hi", CreatedAt: base},
		{
			Role: models.RoleAssistant, Content: "",
			ToolCalls: []models.ToolCall{{ID: "call-1", Name: "read_file", Arguments: []byte(`{"path":"a"}`)}},
			CreatedAt: base.Add(time.Second),
		},
		{Role: models.RoleTool, Content: "file contents", ToolCallID: "call-1", ToolName: "read_file", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, m := range msgs {
		if err := s.AppendMessage(ctx, "sess-1", m); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	loaded, err := s.LoadMessages(ctx, "sess-1")
	if err != nil {
		t.Fatalf("LoadMessages: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(loaded))
	}
	if loaded[0].Content != "hi" || loaded[2].ToolCallID != "call-1" {
		t.Fatalf("unexpected message order/content: %+v", loaded)
	}
	if len(loaded[1].ToolCalls) != 1 || loaded[1].ToolCalls[0].Name != "read_file" {
		t.Fatalf("expected tool call to round-trip, got %+v", loaded[1].ToolCalls)
	}
}

func TestStore_RecordUsage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.RecordUsage(ctx, models.UsageRecord{
		UserKey: "user-1", SessionID: "sess-1", Provider: "anthropic", Model: "claude-3",
		InputTokens: 10, OutputTokens: 20, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
}

func TestStore_MirrorApproval_UpsertsState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	pa := &models.PendingApproval{
		ID: "appr-1", ToolName: "run_command", RiskLevel: models.RiskDangerous,
		State: models.ApprovalPending, CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute),
	}
	if err := s.MirrorApproval(ctx, pa); err != nil {
		t.Fatalf("MirrorApproval insert: %v", err)
	}

	pa.State = models.ApprovalApproved
	if err := s.MirrorApproval(ctx, pa); err != nil {
		t.Fatalf("MirrorApproval update: %v", err)
	}

	var state string
	row := s.db.QueryRowContext(ctx, `SELECT state FROM pending_approvals WHERE id = ?`, "appr-1")
	if err := row.Scan(&state); err != nil {
		t.Fatalf("scan state: %v", err)
	}
	if state != string(models.ApprovalApproved) {
		t.Fatalf("expected upserted state %q, got %q", models.ApprovalApproved, state)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_approvals WHERE id = ?`, "appr-1").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row after upsert, got %d", count)
	}
}

func TestStore_MirrorTasks_ReplacesWholeSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := []*models.ScheduledTask{{ID: "t1", Name: "one", Kind: models.TaskOneShot, PromptText: "hi", Enabled: true}}
	if err := s.MirrorTasks(ctx, first); err != nil {
		t.Fatalf("MirrorTasks first: %v", err)
	}

	second := []*models.ScheduledTask{{ID: "t2", Name: "two", Kind: models.TaskReminder, PromptText: "bye", Enabled: true}}
	if err := s.MirrorTasks(ctx, second); err != nil {
		t.Fatalf("MirrorTasks second: %v", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scheduled_tasks`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected mirroring to replace the whole set, got %d rows", count)
	}
	var id string
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM scheduled_tasks`).Scan(&id); err != nil {
		t.Fatal(err)
	}
	if id != "t2" {
		t.Fatalf("expected the surviving row to be t2, got %q", id)
	}
}
