package prompt

import (
	"strings"
	"testing"
	"time"
)

func TestBuilder_Build_IncludesBaseAndCurrentTime(t *testing.T) {
	fixed := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	b := NewBuilder("be helpful")
	b.Now = func() time.Time { return fixed }

	out := b.Build()

	if !strings.HasPrefix(out, "be helpful\n\nCurrent time: ") {
		t.Fatalf("expected base prompt followed by current time, got %q", out)
	}
	if !strings.Contains(out, fixed.Format(time.RFC1123)) {
		t.Fatalf("expected formatted fixed time in output, got %q", out)
	}
}

func TestBuilder_WithSection_AppendsInOrder(t *testing.T) {
	fixed := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	b := NewBuilder("base")
	b.Now = func() time.Time { return fixed }
	b.WithSection("Tool policy", "Ask before running dangerous commands.")
	b.WithSection("User profile", "Name: Ada")

	out := b.Build()

	toolIdx := strings.Index(out, "Tool policy:")
	profileIdx := strings.Index(out, "User profile:")
	if toolIdx == -1 || profileIdx == -1 {
		t.Fatalf("expected both sections present, got %q", out)
	}
	if toolIdx > profileIdx {
		t.Fatalf("expected sections to render in the order they were added")
	}
	if !strings.Contains(out, "Ask before running dangerous commands.") {
		t.Fatalf("expected section body in output, got %q", out)
	}
}

func TestBuilder_WithSection_SkipsBlankBody(t *testing.T) {
	b := NewBuilder("base")
	b.WithSection("Empty", "   ")

	if len(b.Sections) != 0 {
		t.Fatalf("expected a blank-body section to be skipped, got %+v", b.Sections)
	}
}

func TestBuilder_WithSection_ReturnsSameBuilderForChaining(t *testing.T) {
	b := NewBuilder("base")
	got := b.WithSection("A", "x").WithSection("B", "y")

	if got != b {
		t.Fatal("expected WithSection to return the same Builder instance")
	}
	if len(b.Sections) != 2 {
		t.Fatalf("expected two sections after chaining, got %d", len(b.Sections))
	}
}

func TestBuilder_Build_DefaultsToWallClockWhenNowUnset(t *testing.T) {
	b := &Builder{Base: "base"}

	before := time.Now()
	out := b.Build()
	after := time.Now()

	if !strings.Contains(out, "Current time: ") {
		t.Fatalf("expected a current-time section, got %q", out)
	}
	// Sanity check the rendered timestamp parses back to within the call window.
	idx := strings.Index(out, "Current time: ")
	parsed, err := time.Parse(time.RFC1123, strings.TrimSpace(out[idx+len("Current time: "):]))
	if err != nil {
		t.Fatalf("failed to parse rendered time: %v", err)
	}
	if parsed.Before(before.Add(-time.Second)) || parsed.After(after.Add(time.Second)) {
		t.Fatalf("rendered time %v outside expected window [%v, %v]", parsed, before, after)
	}
}

func TestDefaultBase_MentionsApprovalWorkflow(t *testing.T) {
	if !strings.Contains(DefaultBase, "approval") {
		t.Fatal("expected the default base prompt to mention the approval workflow")
	}
}
