// Package conversations owns per-conversation working state.
package conversations

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/chative/botcore/internal/agent/model"
	logx "github.com/chative/botcore/pkg/logger"
)

const (
	DefaultHistoryLimit       = 10
	DefaultIntentHistoryLimit = 50
	DefaultTTL                = 24 * time.Hour

	NoHistoryMessage = "No conversation history available."
)

// Manager is the process-wide context store shared by every bot. Records are
// keyed by conversation id; one shared record per id.
type Manager struct {
	mu       sync.RWMutex
	contexts map[string]*model.ConversationContext
	locks    *KeyedMutex

	repo         model.ContextRepository
	historyLimit int
	intentLimit  int
	ttl          time.Duration
	sweepEvery   time.Duration
	now          func() time.Time
}

type Option func(*Manager)

// WithRepository enables load-on-miss and Persist against an external store.
func WithRepository(repo model.ContextRepository) Option {
	return func(m *Manager) { m.repo = repo }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(cfg model.ContextConfig, opts ...Option) *Manager {
	m := &Manager{
		contexts:     make(map[string]*model.ConversationContext),
		locks:        NewKeyedMutex(),
		historyLimit: cfg.HistoryLimit,
		intentLimit:  cfg.IntentHistoryLimit,
		ttl:          cfg.TTL,
		sweepEvery:   cfg.SweepInterval,
		now:          time.Now,
	}
	if m.historyLimit <= 0 {
		m.historyLimit = DefaultHistoryLimit
	}
	if m.intentLimit <= 0 {
		m.intentLimit = DefaultIntentHistoryLimit
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Lock serializes pipeline runs for one conversation.
func (m *Manager) Lock(conversationID string) (unlock func()) {
	return m.locks.Lock(conversationID)
}

// Get returns the shared context for id, creating it on first access. A
// repository load failure is logged and a fresh context is used.
func (m *Manager) Get(ctx context.Context, conversationID string) *model.ConversationContext {
	m.mu.RLock()
	c, ok := m.contexts[conversationID]
	m.mu.RUnlock()
	if ok {
		return c
	}

	var loaded *model.ConversationContext
	if m.repo != nil {
		var err error
		loaded, err = m.repo.Load(ctx, conversationID)
		if err != nil {
			logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to load context; starting fresh")
			loaded = nil
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.contexts[conversationID]; ok {
		return c
	}
	if loaded != nil {
		normalize(loaded)
		loaded.PreviousMessages = trimTail(loaded.PreviousMessages, m.historyLimit)
		m.contexts[conversationID] = loaded
		return loaded
	}
	c = model.NewConversationContext(conversationID, m.now())
	m.contexts[conversationID] = c
	return c
}

// Update merges upd onto the context and bumps LastUpdated and TurnCount.
func (m *Manager) Update(ctx context.Context, conversationID string, upd model.ContextUpdate) *model.ConversationContext {
	c := m.Get(ctx, conversationID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if upd.CurrentState != nil {
		c.CurrentState = *upd.CurrentState
	}
	if upd.LastIntent != nil {
		c.LastIntent = *upd.LastIntent
	}
	for k, v := range upd.Entities {
		c.Entities[k] = v
	}
	for k, v := range upd.Variables {
		c.Variables[k] = v
	}
	for k, v := range upd.UserReceptiveness {
		c.UserReceptiveness[k] = v
	}
	c.LastUpdated = m.now()
	c.TurnCount++
	return c
}

// AddMessage appends to the history window, keeping the newest entries.
func (m *Manager) AddMessage(ctx context.Context, conversationID, role, content string, metadata map[string]any) {
	c := m.Get(ctx, conversationID)

	m.mu.Lock()
	defer m.mu.Unlock()
	c.PreviousMessages = append(c.PreviousMessages, model.HistoryMessage{
		Role:      role,
		Content:   content,
		Timestamp: m.now(),
		Metadata:  metadata,
	})
	c.PreviousMessages = trimTail(c.PreviousMessages, m.historyLimit)
}

// AddIntent appends to the intent history, evicting the oldest entries past
// the configured capacity.
func (m *Manager) AddIntent(ctx context.Context, conversationID string, intent model.Intent) {
	c := m.Get(ctx, conversationID)

	m.mu.Lock()
	defer m.mu.Unlock()
	c.IntentHistory = append(c.IntentHistory, model.IntentRecord{
		Intent:     intent.Name,
		Confidence: intent.Confidence,
		Timestamp:  m.now(),
	})
	c.IntentHistory = trimTail(c.IntentHistory, m.intentLimit)
}

// Clear deletes the context; the next access recreates a fresh one.
func (m *Manager) Clear(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	delete(m.contexts, conversationID)
	m.mu.Unlock()

	if m.repo != nil {
		return m.repo.Delete(ctx, conversationID)
	}
	return nil
}

// Summary renders the history window as "role: content" lines.
func (m *Manager) Summary(ctx context.Context, conversationID string) string {
	c := m.Get(ctx, conversationID)

	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(c.PreviousMessages) == 0 {
		return NoHistoryMessage
	}
	var b strings.Builder
	for i, msg := range c.PreviousMessages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(msg.Role + ": " + msg.Content)
	}
	return b.String()
}

// Messages converts the history window into eino messages for model calls.
func (m *Manager) Messages(ctx context.Context, conversationID string) []*schema.Message {
	c := m.Get(ctx, conversationID)

	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := make([]*schema.Message, 0, len(c.PreviousMessages))
	for _, h := range c.PreviousMessages {
		if h.Content == "" {
			continue
		}
		switch h.Role {
		case model.RoleUser:
			msgs = append(msgs, schema.UserMessage(h.Content))
		case model.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(h.Content, nil))
		}
	}
	return msgs
}

// Snapshot returns a deep-enough copy of the context for persistence.
func (m *Manager) Snapshot(ctx context.Context, conversationID string) *model.ConversationContext {
	c := m.Get(ctx, conversationID)

	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := *c
	cp.Entities = copyMap(c.Entities)
	cp.Variables = copyMap(c.Variables)
	cp.UserReceptiveness = make(map[string]float64, len(c.UserReceptiveness))
	for k, v := range c.UserReceptiveness {
		cp.UserReceptiveness[k] = v
	}
	cp.IntentHistory = append([]model.IntentRecord(nil), c.IntentHistory...)
	cp.PreviousMessages = append([]model.HistoryMessage(nil), c.PreviousMessages...)
	return &cp
}

// Persist writes the current snapshot to the repository, if configured.
func (m *Manager) Persist(ctx context.Context, conversationID string) error {
	if m.repo == nil {
		return nil
	}
	return m.repo.Save(ctx, m.Snapshot(ctx, conversationID))
}

// Sweep evicts contexts idle for longer than the TTL. Conversations that are
// currently locked are kept.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, c := range m.contexts {
		if c.LastUpdated.Before(cutoff) && !m.locks.Held(id) {
			delete(m.contexts, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.sweepEvery
	if interval <= 0 {
		interval = m.ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logx.Debug().Int("evicted", n).Msg("expired conversation contexts evicted")
			}
		}
	}
}

// Len returns the number of live contexts.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.contexts)
}

// ====================== Helper function ======================
func trimTail[T any](items []T, max int) []T {
	if len(items) <= max {
		return items
	}
	out := make([]T, max)
	copy(out, items[len(items)-max:])
	return out
}

func normalize(c *model.ConversationContext) {
	if c.Entities == nil {
		c.Entities = map[string]any{}
	}
	if c.Variables == nil {
		c.Variables = map[string]any{}
	}
	if c.UserReceptiveness == nil {
		c.UserReceptiveness = map[string]float64{}
	}
	if c.CurrentState == "" {
		c.CurrentState = model.DefaultState
	}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
