package conversations

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative/botcore/internal/agent/model"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type memRepo struct {
	mu    sync.Mutex
	saved map[string]*model.ConversationContext
}

func (r *memRepo) Load(_ context.Context, id string) (*model.ConversationContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved[id], nil
}

func (r *memRepo) Save(_ context.Context, c *model.ConversationContext) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved[c.ID] = c
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.saved, id)
	return nil
}

func TestGetCreatesDefaultContextOnce(t *testing.T) {
	ctx := context.Background()
	m := NewManager(model.ContextConfig{})

	c := m.Get(ctx, "s1")
	require.NotNil(t, c)
	assert.Equal(t, "s1", c.ID)
	assert.Equal(t, model.DefaultState, c.CurrentState)
	assert.Zero(t, c.TurnCount)
	assert.Empty(t, c.PreviousMessages)

	assert.Same(t, c, m.Get(ctx, "s1"))
	assert.Equal(t, 1, m.Len())
}

func TestAddMessageKeepsNewestWindow(t *testing.T) {
	ctx := context.Background()
	m := NewManager(model.ContextConfig{})

	for i := 0; i < 25; i++ {
		m.AddMessage(ctx, "s1", model.RoleUser, fmt.Sprintf("msg-%d", i), nil)
		assert.LessOrEqual(t, len(m.Get(ctx, "s1").PreviousMessages), DefaultHistoryLimit)
	}

	msgs := m.Get(ctx, "s1").PreviousMessages
	require.Len(t, msgs, DefaultHistoryLimit)
	for i, msg := range msgs {
		assert.Equal(t, fmt.Sprintf("msg-%d", 15+i), msg.Content)
	}
}

func TestAddIntentIsCapped(t *testing.T) {
	ctx := context.Background()
	m := NewManager(model.ContextConfig{IntentHistoryLimit: 3})

	for _, name := range []string{"a", "b", "c", "d"} {
		m.AddIntent(ctx, "s1", model.Intent{Name: name, Confidence: 0.8})
	}
	c := m.Get(ctx, "s1")
	require.Len(t, c.IntentHistory, 3)
	assert.Equal(t, "b", c.IntentHistory[0].Intent)
	prev, ok := c.PreviousIntent()
	require.True(t, ok)
	assert.Equal(t, "d", prev.Intent)
}

func TestUpdateMergesAndCountsTurns(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(model.ContextConfig{}, WithClock(clock.Now))

	m.Update(ctx, "s1", model.ContextUpdate{Entities: map[string]any{"email": "a@b.co"}})
	clock.Advance(time.Minute)
	state := "browsing"
	c := m.Update(ctx, "s1", model.ContextUpdate{
		CurrentState: &state,
		Entities:     map[string]any{"date": "12/05/2024"},
		Variables:    map[string]any{"name": "Ana"},
	})

	assert.Equal(t, 2, c.TurnCount)
	assert.Equal(t, "browsing", c.CurrentState)
	assert.Equal(t, map[string]any{"email": "a@b.co", "date": "12/05/2024"}, c.Entities)
	assert.Equal(t, "Ana", c.Variables["name"])
	assert.Equal(t, clock.Now(), c.LastUpdated)
}

func TestClearRecreatesFreshContext(t *testing.T) {
	ctx := context.Background()
	m := NewManager(model.ContextConfig{})

	m.AddMessage(ctx, "s1", model.RoleUser, "hello", nil)
	m.Update(ctx, "s1", model.ContextUpdate{})
	require.NoError(t, m.Clear(ctx, "s1"))

	c := m.Get(ctx, "s1")
	assert.Zero(t, c.TurnCount)
	assert.Empty(t, c.PreviousMessages)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	m := NewManager(model.ContextConfig{})

	assert.Equal(t, NoHistoryMessage, m.Summary(ctx, "s1"))

	m.AddMessage(ctx, "s1", model.RoleUser, "hi", nil)
	m.AddMessage(ctx, "s1", model.RoleAssistant, "hello!", nil)
	assert.Equal(t, "user: hi\nassistant: hello!", m.Summary(ctx, "s1"))

	msgs := m.Messages(ctx, "s1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestSweepEvictsIdleContexts(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	m := NewManager(model.ContextConfig{TTL: time.Hour}, WithClock(clock.Now))

	m.Get(ctx, "old")
	m.Get(ctx, "busy")
	clock.Advance(30 * time.Minute)
	m.Get(ctx, "fresh")
	clock.Advance(45 * time.Minute)

	unlock := m.Lock("busy")
	defer unlock()

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 2, m.Len())
}

func TestRepositoryLoadOnMissAndPersist(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{saved: map[string]*model.ConversationContext{}}
	m := NewManager(model.ContextConfig{}, WithRepository(repo))

	m.AddMessage(ctx, "s1", model.RoleUser, "remember me", nil)
	m.Update(ctx, "s1", model.ContextUpdate{})
	require.NoError(t, m.Persist(ctx, "s1"))

	restarted := NewManager(model.ContextConfig{}, WithRepository(repo))
	c := restarted.Get(ctx, "s1")
	assert.Equal(t, 1, c.TurnCount)
	require.Len(t, c.PreviousMessages, 1)
	assert.Equal(t, "remember me", c.PreviousMessages[0].Content)

	require.NoError(t, restarted.Clear(ctx, "s1"))
	assert.Empty(t, repo.saved)
}

func TestConcurrentUpdatesUnderLock(t *testing.T) {
	ctx := context.Background()
	m := NewManager(model.ContextConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("s1")
			defer unlock()
			m.Update(ctx, "s1", model.ContextUpdate{})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, m.Get(ctx, "s1").TurnCount)
	assert.False(t, m.locks.Held("s1"))
}

func TestKeyedMutexUnlockIsIdempotent(t *testing.T) {
	k := NewKeyedMutex()
	unlock := k.Lock("a")
	assert.True(t, k.Held("a"))
	unlock()
	unlock()
	assert.False(t, k.Held("a"))

	// a second lock on the same key must not block after a double unlock
	done := make(chan struct{})
	go func() {
		k.Lock("a")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock not released")
	}
}
