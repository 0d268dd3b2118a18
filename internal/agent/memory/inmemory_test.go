package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative/botcore/internal/agent/model"
	errx "github.com/chative/botcore/internal/core/error"
)

func TestRetrieveOrdersByImportance(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(0)

	for _, imp := range []int{3, 9, 0, 7, 1} {
		_, err := s.Add(ctx, "u1", Input{Type: model.MemoryNote, Content: "x", Importance: imp})
		require.NoError(t, err)
	}

	got, err := s.Retrieve(ctx, "u1", Filter{})
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Importance, got[i].Importance)
	}
	assert.Equal(t, []int{9, 7, 5, 3, 1}, importances(got))
}

func TestRetrieveFilters(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(0)
	_, _ = s.Add(ctx, "u1", Input{Type: model.MemoryNote, Content: "a", Importance: 8})
	_, _ = s.Add(ctx, "u1", Input{Type: model.MemoryReminder, Content: "b", Importance: 6})
	_, _ = s.Add(ctx, "u1", Input{Type: model.MemoryNote, Content: "c", Importance: 2})
	_, _ = s.Add(ctx, "u2", Input{Type: model.MemoryNote, Content: "d", Importance: 10})

	notes, err := s.Retrieve(ctx, "u1", Filter{Type: model.MemoryNote})
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	important, err := s.Retrieve(ctx, "u1", Filter{MinImportance: 5, Limit: 1})
	require.NoError(t, err)
	require.Len(t, important, 1)
	assert.Equal(t, "a", important[0].Content)

	none, err := s.Retrieve(ctx, "nobody", Filter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRetrieveTouchesLastAccessed(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewInMemoryStore(0)
	s.SetClock(func() time.Time { return now })

	m, err := s.Add(ctx, "u1", Input{Content: "a"})
	require.NoError(t, err)
	assert.Equal(t, now, m.LastAccessed)

	now = now.Add(time.Hour)
	got, err := s.Retrieve(ctx, "u1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, now, got[0].LastAccessed)
}

func TestCapacityEvictsLeastImportant(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(2)
	_, _ = s.Add(ctx, "u1", Input{Content: "low", Importance: 1})
	_, _ = s.Add(ctx, "u1", Input{Content: "high", Importance: 9})
	_, _ = s.Add(ctx, "u1", Input{Content: "mid", Importance: 5})

	got, err := s.Retrieve(ctx, "u1", Filter{})
	require.NoError(t, err)
	assert.Equal(t, []int{9, 5}, importances(got))
}

func TestUpdateResortsAndStamps(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(0)
	a, _ := s.Add(ctx, "u1", Input{Content: "a", Importance: 2})
	_, _ = s.Add(ctx, "u1", Input{Content: "b", Importance: 5})

	imp := 42
	updated, err := s.Update(ctx, "u1", a.ID, Patch{Importance: &imp})
	require.NoError(t, err)
	assert.Equal(t, model.MaxImportance, updated.Importance)
	assert.NotNil(t, updated.LastModified)

	got, _ := s.Retrieve(ctx, "u1", Filter{})
	assert.Equal(t, "a", got[0].Content)

	_, err = s.Update(ctx, "u1", "missing", Patch{})
	assert.ErrorIs(t, err, ErrMemoryNotFound)
	assert.Equal(t, errx.CodeNotFound, errx.CodeOf(err))
}

func TestDeleteAndClear(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(0)
	a, _ := s.Add(ctx, "u1", Input{Content: "a"})
	_, _ = s.Add(ctx, "u1", Input{Content: "b"})

	require.NoError(t, s.Delete(ctx, "u1", a.ID))
	assert.ErrorIs(t, s.Delete(ctx, "u1", a.ID), ErrMemoryNotFound)

	require.NoError(t, s.Clear(ctx, "u1"))
	got, _ := s.Retrieve(ctx, "u1", Filter{})
	assert.Empty(t, got)
}

func TestAddRequiresUser(t *testing.T) {
	_, err := NewInMemoryStore(0).Add(context.Background(), "", Input{Content: "a"})
	assert.Equal(t, errx.CodeValidation, errx.CodeOf(err))
}

func TestIDsAreOrdered(t *testing.T) {
	g := NewIDGenerator()
	now := time.Now()
	a := g.New(now)
	b := g.New(now)
	assert.Less(t, a, b)
}

func importances(ms []model.Memory) []int {
	out := make([]int, len(ms))
	for i, m := range ms {
		out[i] = m.Importance
	}
	return out
}
