// Package sessionmgr maps (user, idle-window) pairs to live Conversations,
// bounding how many are held in memory and rehydrating from persisted
// message rows on a cache miss.
package sessionmgr

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/models"
)

// DefaultCacheCapacity bounds the in-memory conversation cache, mirroring
// the per-session message bounding in the teacher's in-memory session
// store.
const DefaultCacheCapacity = 1000

// DefaultIdleTimeout is how long a session may go untouched before a new
// inbound message starts a fresh session rather than resuming it.
const DefaultIdleTimeout = 24 * time.Hour

// Store persists sessions and the message rows within them. The Session
// Manager only ever reads message rows in creation order and appends new
// ones; it never rewrites history itself (that's the Compactor's job,
// and compaction lives in the in-memory Conversation, not in this store).
type Store interface {
	GetActiveSession(ctx context.Context, userKey string, idleCutoff time.Time) (*models.Session, error)
	CreateSession(ctx context.Context, session *models.Session) error
	UpdateSession(ctx context.Context, session *models.Session) error
	AppendMessage(ctx context.Context, sessionID string, msg models.Message) error
	LoadMessages(ctx context.Context, sessionID string) ([]models.Message, error)
}

// Processor is the Agent Loop's single-turn contract as consumed here.
type Processor interface {
	Process(ctx context.Context, userText string, conv *models.Conversation) (string, *models.Conversation, error)
}

type cacheEntry struct {
	sessionID string
	conv      *models.Conversation
}

// Manager is the Session Manager component.
type Manager struct {
	store        Store
	loop         Processor
	locker       *agent.ConversationLocker
	idleTimeout  time.Duration
	capacity     int
	systemPrompt string
	defaultModel string
	metrics      *observability.Metrics

	mu    sync.Mutex
	cache map[string]*list.Element
	order *list.List // front = most recently touched
}

// NewManager builds a Manager with the spec's defaults. Use the With*
// setters to override idle timeout or cache capacity.
func NewManager(store Store, loop Processor, systemPrompt, defaultModel string) *Manager {
	return &Manager{
		store:        store,
		loop:         loop,
		locker:       agent.NewConversationLocker(),
		idleTimeout:  DefaultIdleTimeout,
		capacity:     DefaultCacheCapacity,
		systemPrompt: systemPrompt,
		defaultModel: defaultModel,
		cache:        make(map[string]*list.Element),
		order:        list.New(),
	}
}

// WithIdleTimeout overrides the default idle window.
func (m *Manager) WithIdleTimeout(d time.Duration) *Manager {
	if d > 0 {
		m.idleTimeout = d
	}
	return m
}

// WithCapacity overrides the default cache capacity.
func (m *Manager) WithCapacity(n int) *Manager {
	if n > 0 {
		m.capacity = n
	}
	return m
}

// SetMetrics attaches a Prometheus metrics sink. nil disables instrumentation.
func (m *Manager) SetMetrics(metrics *observability.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// ProcessMessage resolves the user's current session, loads or rehydrates
// its Conversation, runs one Agent Loop turn under the per-conversation
// lock, persists both sides of the exchange, and re-caches the result.
func (m *Manager) ProcessMessage(ctx context.Context, userKey, text string) (string, error) {
	session, err := m.resolveSession(ctx, userKey)
	if err != nil {
		return "", err
	}

	unlock := m.locker.Lock(session.ID)
	defer unlock()

	conv, err := m.loadConversation(ctx, session)
	if err != nil {
		return "", err
	}

	reply, updated, err := m.loop.Process(ctx, text, conv)
	if err != nil {
		return "", err
	}

	if err := m.persistTurn(ctx, session, text, reply); err != nil {
		return "", err
	}

	m.touch(session.ID, updated)
	return reply, nil
}

// Clear marks a session inactive and evicts it from the cache. A
// subsequent message for the same user starts a fresh session.
func (m *Manager) Clear(ctx context.Context, session *models.Session) error {
	session.IsActive = false
	session.UpdatedAt = time.Now()
	if err := m.store.UpdateSession(ctx, session); err != nil {
		return err
	}
	m.evict(session.ID)
	return nil
}

func (m *Manager) resolveSession(ctx context.Context, userKey string) (*models.Session, error) {
	cutoff := time.Now().Add(-m.idleTimeout)
	session, err := m.store.GetActiveSession(ctx, userKey, cutoff)
	if err != nil {
		return nil, err
	}
	if session != nil {
		return session, nil
	}

	now := time.Now()
	session = &models.Session{
		ID:           uuid.NewString(),
		UserKey:      userKey,
		Model:        m.defaultModel,
		SystemPrompt: m.systemPrompt,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (m *Manager) loadConversation(ctx context.Context, session *models.Session) (*models.Conversation, error) {
	m.mu.Lock()
	if el, ok := m.cache[session.ID]; ok {
		m.order.MoveToFront(el)
		conv := el.Value.(*cacheEntry).conv
		m.mu.Unlock()
		return conv, nil
	}
	m.mu.Unlock()

	messages, err := m.store.LoadMessages(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return &models.Conversation{
		ID:           session.ID,
		UserKey:      session.UserKey,
		SystemPrompt: session.SystemPrompt,
		ModelHint:    session.Model,
		Messages:     messages,
	}, nil
}

func (m *Manager) persistTurn(ctx context.Context, session *models.Session, userText, replyText string) error {
	now := time.Now()
	if err := m.store.AppendMessage(ctx, session.ID, models.Message{
		ID: uuid.NewString(), Role: models.RoleUser, Content: userText, CreatedAt: now,
	}); err != nil {
		return err
	}
	if err := m.store.AppendMessage(ctx, session.ID, models.Message{
		ID: uuid.NewString(), Role: models.RoleAssistant, Content: replyText, CreatedAt: time.Now(),
	}); err != nil {
		return err
	}
	session.UpdatedAt = time.Now()
	return m.store.UpdateSession(ctx, session)
}

// touch caches the conversation as most-recently-touched, evicting the
// least-recently-touched entry if the cache is over capacity.
func (m *Manager) touch(sessionID string, conv *models.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.cache[sessionID]; ok {
		el.Value = &cacheEntry{sessionID: sessionID, conv: conv}
		m.order.MoveToFront(el)
		return
	}

	el := m.order.PushFront(&cacheEntry{sessionID: sessionID, conv: conv})
	m.cache[sessionID] = el
	if m.metrics != nil {
		m.metrics.SessionStarted()
	}

	for m.order.Len() > m.capacity {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.order.Remove(oldest)
		delete(m.cache, oldest.Value.(*cacheEntry).sessionID)
		if m.metrics != nil {
			m.metrics.SessionEnded()
		}
	}
}

func (m *Manager) evict(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.cache[sessionID]; ok {
		m.order.Remove(el)
		delete(m.cache, sessionID)
		if m.metrics != nil {
			m.metrics.SessionEnded()
		}
	}
}
