package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// RiskClassifier is the static map Tool-name -> RiskLevel that gates the
// Approval Gate's decisions. Unknown tools default to moderate.
type RiskClassifier struct {
	mu      sync.RWMutex
	levels  map[string]models.RiskLevel
	fallback models.RiskLevel
}

// NewRiskClassifier builds a classifier. fallback is returned for any tool
// name that has no explicit entry; per spec this should be RiskModerate.
func NewRiskClassifier(fallback models.RiskLevel) *RiskClassifier {
	if fallback == "" {
		fallback = models.RiskModerate
	}
	return &RiskClassifier{levels: make(map[string]models.RiskLevel), fallback: fallback}
}

// Set assigns (or overrides) the risk level for a tool name at runtime.
func (c *RiskClassifier) Set(toolName string, level models.RiskLevel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levels[toolName] = level
}

// Classify returns the risk level for a tool name, falling back to the
// classifier's default for unknown tools.
func (c *RiskClassifier) Classify(toolName string) models.RiskLevel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if level, ok := c.levels[toolName]; ok {
		return level
	}
	return c.fallback
}

// pendingEntry pairs a PendingApproval with a broadcast-on-transition
// channel so multiple concurrent Wait callers all wake up.
type pendingEntry struct {
	approval *models.PendingApproval
	done     chan struct{}
}

// ApprovalGate is the human-in-the-loop gate on dangerous tool calls.
// create and terminal transitions appear atomic to any observer; the
// single mutex below is held only for the duration of a map lookup plus
// state mutation, never across a Wait.
type ApprovalGate struct {
	mu       sync.Mutex
	requests map[string]*pendingEntry
	risk     *RiskClassifier
	enabled  bool
	ttl      time.Duration
}

// NewApprovalGate builds a gate. ttl is the default expiry window for a
// created PendingApproval (spec default: 5 minutes).
func NewApprovalGate(risk *RiskClassifier, enabled bool, ttl time.Duration) *ApprovalGate {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ApprovalGate{
		requests: make(map[string]*pendingEntry),
		risk:     risk,
		enabled:  enabled,
		ttl:      ttl,
	}
}

// NeedsApproval reports whether a tool call must be routed through the
// gate: the global flag is enabled AND the tool's risk is dangerous.
func (g *ApprovalGate) NeedsApproval(toolName string) bool {
	return g.enabled && g.risk.Classify(toolName) == models.RiskDangerous
}

// Create allocates a PendingApproval and arms its completion signal.
func (g *ApprovalGate) Create(toolName string, arguments []byte) *models.PendingApproval {
	now := time.Now()
	pa := &models.PendingApproval{
		ID:        newShortID(),
		ToolName:  toolName,
		Arguments: arguments,
		RiskLevel: models.RiskDangerous,
		State:     models.ApprovalPending,
		CreatedAt: now,
		ExpiresAt: now.Add(g.ttl),
	}
	g.mu.Lock()
	g.requests[pa.ID] = &pendingEntry{approval: pa, done: make(chan struct{})}
	g.mu.Unlock()
	return pa
}

// sweepLocked expires any pending request past its ExpiresAt. Must be
// called with mu held.
func (g *ApprovalGate) sweepLocked() {
	now := time.Now()
	for _, e := range g.requests {
		if e.approval.State == models.ApprovalPending && now.After(e.approval.ExpiresAt) {
			e.approval.State = models.ApprovalExpired
			close(e.done)
		}
	}
}

func (g *ApprovalGate) transition(id string, to models.ApprovalState) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked()
	e, ok := g.requests[id]
	if !ok || e.approval.IsTerminal() {
		return false
	}
	e.approval.State = to
	close(e.done)
	return true
}

// Approve transitions id to approved. Returns false if unknown or already terminal.
func (g *ApprovalGate) Approve(id string) bool {
	return g.transition(id, models.ApprovalApproved)
}

// Deny transitions id to denied. Returns false if unknown or already terminal.
func (g *ApprovalGate) Deny(id string) bool {
	return g.transition(id, models.ApprovalDenied)
}

// Wait blocks until id reaches approved, is denied/expired, the timeout
// elapses, or ctx is cancelled. Returns true iff id reached approved
// before any of the others.
func (g *ApprovalGate) Wait(ctx context.Context, id string, timeout time.Duration) bool {
	g.mu.Lock()
	g.sweepLocked()
	e, ok := g.requests[id]
	if !ok {
		g.mu.Unlock()
		return false
	}
	if e.approval.IsTerminal() {
		approved := e.approval.State == models.ApprovalApproved
		g.mu.Unlock()
		return approved
	}
	done := e.done
	g.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		g.mu.Lock()
		state := e.approval.State
		g.mu.Unlock()
		return state == models.ApprovalApproved
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// ListPending returns a snapshot of non-terminal requests, sweeping
// expired ones first.
func (g *ApprovalGate) ListPending() []*models.PendingApproval {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked()
	out := make([]*models.PendingApproval, 0, len(g.requests))
	for _, e := range g.requests {
		if e.approval.State == models.ApprovalPending {
			out = append(out, e.approval)
		}
	}
	return out
}

// Get returns a request by id, or nil if unknown.
func (g *ApprovalGate) Get(id string) *models.PendingApproval {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweepLocked()
	if e, ok := g.requests[id]; ok {
		return e.approval
	}
	return nil
}

// newShortID returns an 8-character, lowercase-hex short id derived from
// a fresh UUID. Collisions are astronomically unlikely at this ID space's
// expected volume (a handful of outstanding approvals at a time).
func newShortID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:8]
}
