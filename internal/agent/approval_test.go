package agent

import (
	"context"
	"testing"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

func newTestGate(enabled bool, ttl time.Duration) *ApprovalGate {
	risk := NewRiskClassifier(models.RiskModerate)
	risk.Set("run_command", models.RiskDangerous)
	return NewApprovalGate(risk, enabled, ttl)
}

func TestApprovalGate_NeedsApproval(t *testing.T) {
	gate := newTestGate(true, time.Minute)
	if !gate.NeedsApproval("run_command") {
		t.Fatal("expected run_command to need approval")
	}
	if gate.NeedsApproval("read_file") {
		t.Fatal("expected read_file (moderate, default) to not need approval")
	}

	disabled := newTestGate(false, time.Minute)
	if disabled.NeedsApproval("run_command") {
		t.Fatal("expected NeedsApproval to be false when the gate is globally disabled")
	}
}

// I4: approve/deny are no-ops for a terminal id and return false thereafter.
func TestApprovalGate_TerminalTransitionsAreNoOps(t *testing.T) {
	gate := newTestGate(true, time.Minute)
	pa := gate.Create("run_command", []byte(`{"command":"ls"}`))

	if !gate.Approve(pa.ID) {
		t.Fatal("expected first Approve to succeed")
	}
	if gate.Approve(pa.ID) {
		t.Fatal("expected second Approve on an already-approved id to return false")
	}
	if gate.Deny(pa.ID) {
		t.Fatal("expected Deny on an approved id to return false")
	}
}

func TestApprovalGate_DenyIsTerminal(t *testing.T) {
	gate := newTestGate(true, time.Minute)
	pa := gate.Create("run_command", nil)
	if !gate.Deny(pa.ID) {
		t.Fatal("expected Deny to succeed")
	}
	if gate.Approve(pa.ID) {
		t.Fatal("expected Approve after Deny to return false")
	}
}

func TestApprovalGate_UnknownIDTransitionsFail(t *testing.T) {
	gate := newTestGate(true, time.Minute)
	if gate.Approve("nonexistent") {
		t.Fatal("expected Approve on an unknown id to return false")
	}
	if gate.Deny("nonexistent") {
		t.Fatal("expected Deny on an unknown id to return false")
	}
}

// B3: wait(id, timeout) returns true when approve happens before timeout,
// false when neither approval nor denial occurs.
func TestApprovalGate_WaitApprovedBeforeTimeout(t *testing.T) {
	gate := newTestGate(true, time.Minute)
	pa := gate.Create("run_command", nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		gate.Approve(pa.ID)
	}()

	if !gate.Wait(context.Background(), pa.ID, time.Second) {
		t.Fatal("expected Wait to return true once approved")
	}
}

func TestApprovalGate_WaitTimesOutWithoutDecision(t *testing.T) {
	gate := newTestGate(true, time.Minute)
	pa := gate.Create("run_command", nil)

	if gate.Wait(context.Background(), pa.ID, 20*time.Millisecond) {
		t.Fatal("expected Wait to return false on timeout with no decision")
	}
}

func TestApprovalGate_WaitFalseOnDenial(t *testing.T) {
	gate := newTestGate(true, time.Minute)
	pa := gate.Create("run_command", nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		gate.Deny(pa.ID)
	}()

	if gate.Wait(context.Background(), pa.ID, time.Second) {
		t.Fatal("expected Wait to return false on denial")
	}
}

func TestApprovalGate_ExpirySweeping(t *testing.T) {
	gate := newTestGate(true, 10*time.Millisecond)
	pa := gate.Create("run_command", nil)
	time.Sleep(30 * time.Millisecond)

	pending := gate.ListPending()
	for _, p := range pending {
		if p.ID == pa.ID {
			t.Fatal("expected expired request to be swept from ListPending")
		}
	}
	got := gate.Get(pa.ID)
	if got == nil || got.State != models.ApprovalExpired {
		t.Fatalf("expected expired state, got %+v", got)
	}
	if gate.Approve(pa.ID) {
		t.Fatal("expected Approve on an expired id to return false")
	}
}

func TestApprovalGate_ListPendingSnapshot(t *testing.T) {
	gate := newTestGate(true, time.Minute)
	a := gate.Create("run_command", nil)
	b := gate.Create("run_command", nil)
	gate.Approve(a.ID)

	pending := gate.ListPending()
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("expected only %s pending, got %+v", b.ID, pending)
	}
}

func TestRiskClassifier_DefaultsToFallback(t *testing.T) {
	c := NewRiskClassifier(models.RiskModerate)
	if c.Classify("anything") != models.RiskModerate {
		t.Fatal("expected unknown tool to classify as fallback")
	}
	c.Set("danger_tool", models.RiskDangerous)
	if c.Classify("danger_tool") != models.RiskDangerous {
		t.Fatal("expected overridden classification to stick")
	}
}
