package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative/botcore/internal/agent/knowledge"
	"github.com/chative/botcore/internal/agent/memory"
	"github.com/chative/botcore/internal/agent/model"
	"github.com/chative/botcore/internal/metrics"
)

func newTestFramework(t *testing.T, cfg model.ActionConfig, available ...string) (*Framework, *metrics.Metrics) {
	t.Helper()
	reg, err := NewDefaultRegistry(context.Background(), nil)
	require.NoError(t, err)
	m := metrics.New()
	return NewFramework("bot-1", reg, cfg, available, m), m
}

func userContext() ExecutionContext {
	return ExecutionContext{BotID: "bot-1", UserID: "u1", SessionID: "s1", Permission: PermissionUser, Memory: memory.NewInMemoryStore(0)}
}

func TestSystemActionsAlwaysAvailable(t *testing.T) {
	f, _ := newTestFramework(t, model.ActionConfig{})
	for _, name := range SystemActions {
		assert.True(t, f.IsAvailable(name))
		assert.ErrorIs(t, f.RemoveAvailableAction(name), ErrSystemAction)
	}
	assert.False(t, f.IsAvailable(ActionCreateTicket))

	require.NoError(t, f.AddAvailableAction(ActionCreateTicket))
	assert.True(t, f.IsAvailable(ActionCreateTicket))
	require.NoError(t, f.RemoveAvailableAction(ActionCreateTicket))
	assert.False(t, f.IsAvailable(ActionCreateTicket))
}

func TestExecuteFiltersByAllowList(t *testing.T) {
	f, m := newTestFramework(t, model.ActionConfig{})
	ctx := context.Background()

	res := f.ExecuteActions(ctx, []model.ActionRequest{{Type: ActionCreateTicket, Params: map[string]any{"subject": "x"}}}, userContext())
	assert.NotNil(t, res)
	assert.Empty(t, res)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActionsDropped.WithLabelValues("not_allowed")))

	res = f.ExecuteActions(ctx, []model.ActionRequest{
		{Type: ActionCreateTicket},
		{Type: ActionGetCurrentTime},
	}, userContext())
	require.Len(t, res, 1)
	assert.Equal(t, ActionGetCurrentTime, res[0].Type)
	assert.True(t, res[0].Success)
	assert.NotEmpty(t, res[0].ID, "missing ids are generated")
}

func TestExecuteCapsBatch(t *testing.T) {
	f, m := newTestFramework(t, model.ActionConfig{MaxConcurrentActions: 2})
	reqs := make([]model.ActionRequest, 4)
	for i := range reqs {
		reqs[i] = model.ActionRequest{ID: fmt.Sprint(i), Type: ActionGetCurrentTime}
	}
	res := f.ExecuteActions(context.Background(), reqs, userContext())
	require.Len(t, res, 2)
	assert.Equal(t, "0", res[0].ID)
	assert.Equal(t, "1", res[1].ID)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ActionsDropped.WithLabelValues("capacity")))
}

func TestExecuteRunsConcurrently(t *testing.T) {
	f, _ := newTestFramework(t, model.ActionConfig{Timeout: 2 * time.Second})
	var started sync.WaitGroup
	started.Add(3)
	barrier := func(ctx context.Context, _ map[string]any, _ ExecutionContext) (any, error) {
		started.Done()
		done := make(chan struct{})
		go func() { started.Wait(); close(done) }()
		select {
		case <-done:
			return "met", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	for _, name := range []string{"b1", "b2", "b3"} {
		require.NoError(t, f.Registry().Register(Definition{Name: name, Handler: barrier}))
		require.NoError(t, f.AddAvailableAction(name))
	}

	res := f.ExecuteActions(context.Background(), []model.ActionRequest{{Type: "b1"}, {Type: "b2"}, {Type: "b3"}}, userContext())
	require.Len(t, res, 3)
	for _, r := range res {
		assert.True(t, r.Success, r.Error)
	}
}

func TestExecuteIsolatesFailures(t *testing.T) {
	f, m := newTestFramework(t, model.ActionConfig{Timeout: 50 * time.Millisecond})
	reg := f.Registry()
	require.NoError(t, reg.Register(Definition{Name: "boom", Handler: func(context.Context, map[string]any, ExecutionContext) (any, error) {
		panic("kaboom")
	}}))
	require.NoError(t, reg.Register(Definition{Name: "fails", Handler: func(context.Context, map[string]any, ExecutionContext) (any, error) {
		return nil, errors.New("upstream down")
	}}))
	require.NoError(t, reg.Register(Definition{Name: "slow", Handler: func(ctx context.Context, _ map[string]any, _ ExecutionContext) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}))
	require.NoError(t, reg.Register(Definition{Name: "premium", Permission: PermissionPremium, Handler: noop}))
	for _, n := range []string{"boom", "fails", "slow", "premium"} {
		require.NoError(t, f.AddAvailableAction(n))
	}

	res := f.ExecuteActions(context.Background(), []model.ActionRequest{
		{Type: "boom"}, {Type: "fails"}, {Type: "slow"}, {Type: "premium"}, {Type: ActionGetCurrentTime},
	}, userContext())
	require.Len(t, res, 5)

	assert.False(t, res[0].Success)
	assert.Contains(t, res[0].Error, "kaboom")
	assert.Equal(t, "upstream down", res[1].Error)
	assert.Contains(t, res[2].Error, "timed out")
	assert.Contains(t, res[3].Error, "premium permission")
	assert.True(t, res[4].Success)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActionsTotal.WithLabelValues("slow", "error")))
}

func TestExecuteUnregisteredButAllowed(t *testing.T) {
	f, _ := newTestFramework(t, model.ActionConfig{}, "ghost")
	res := f.ExecuteActions(context.Background(), []model.ActionRequest{{Type: "ghost"}}, userContext())
	require.Len(t, res, 1)
	assert.False(t, res[0].Success)
	assert.Contains(t, res[0].Error, "not registered")
}

func TestMemoryBackedSystemActions(t *testing.T) {
	f, _ := newTestFramework(t, model.ActionConfig{}, ActionCollectUserInfo)
	ec := userContext()
	ctx := context.Background()

	res := f.ExecuteActions(ctx, []model.ActionRequest{
		{Type: ActionSaveConversationNote, Params: map[string]any{"note": "prefers email"}},
		{Type: ActionSetReminder, Params: map[string]any{"message": "call back", "time": "12/05/2024"}},
		{Type: ActionCollectUserInfo, Params: map[string]any{"email": "ana@example.com"}},
	}, ec)
	require.Len(t, res, 3)
	for _, r := range res {
		require.True(t, r.Success, r.Error)
	}

	reminders, err := ec.Memory.Retrieve(ctx, "u1", memory.Filter{Type: model.MemoryReminder})
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, "12/05/2024", reminders[0].Metadata["due"])

	res = f.ExecuteActions(ctx, []model.ActionRequest{{Type: ActionGetUserProfile}}, ec)
	require.True(t, res[0].Success, res[0].Error)
	profile := res[0].Result.(map[string]any)
	assert.Equal(t, "ana@example.com", profile["contact"].(map[string]any)["email"])

	anon := ec
	anon.Permission = PermissionPublic
	res = f.ExecuteActions(ctx, []model.ActionRequest{{Type: ActionSaveConversationNote, Params: map[string]any{"note": "x"}}}, anon)
	assert.False(t, res[0].Success)
}

func TestGetCurrentTime(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ec := ExecutionContext{Now: func() time.Time { return fixed }}

	out, err := getCurrentTime(context.Background(), nil, ec)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z", out.(map[string]any)["time"])

	_, err = getCurrentTime(context.Background(), map[string]any{"timezone": "Mars/Olympus"}, ec)
	assert.Error(t, err)
}

func TestSearchKnowledgeBaseAction(t *testing.T) {
	f, _ := newTestFramework(t, model.ActionConfig{})
	kb := knowledge.NewBase(knowledge.Options{}, knowledge.NewFAQSource("faq", []knowledge.FAQEntry{{
		ID: "hours", Question: "What are your opening hours?", Answer: "9 to 5", Intents: []string{"information"},
	}}))
	ec := userContext()
	ec.Knowledge = kb

	res := f.ExecuteActions(context.Background(), []model.ActionRequest{
		{Type: ActionSearchKnowledgeBase, Params: map[string]any{"query": "opening hours"}},
	}, ec)
	require.True(t, res[0].Success, res[0].Error)
	out := res[0].Result.(map[string]any)
	assert.Equal(t, true, out["found"])

	ec.Knowledge = nil
	res = f.ExecuteActions(context.Background(), []model.ActionRequest{
		{Type: ActionSearchKnowledgeBase, Params: map[string]any{"query": "opening hours"}},
	}, ec)
	assert.False(t, res[0].Success)
}

func TestCatalogToolsThroughFramework(t *testing.T) {
	f, _ := newTestFramework(t, model.ActionConfig{}, ToolSearchProducts, ToolGetProductDetails)
	res := f.ExecuteActions(context.Background(), []model.ActionRequest{
		{Type: ToolSearchProducts, Params: map[string]any{"query": "laptop", "category": "laptops"}},
		{Type: ToolGetProductDetails, Params: map[string]any{"product_id": "prod-001"}},
		{Type: ToolGetProductDetails, Params: map[string]any{"product_id": "nope"}},
	}, userContext())
	require.Len(t, res, 3)

	require.True(t, res[0].Success, res[0].Error)
	search := res[0].Result.(map[string]any)
	assert.Equal(t, float64(2), search["total"])

	require.True(t, res[1].Success, res[1].Error)
	assert.Equal(t, "iPhone 15 Pro", res[1].Result.(map[string]any)["name"])

	assert.False(t, res[2].Success)
	assert.Contains(t, res[2].Error, "product not found")
}
