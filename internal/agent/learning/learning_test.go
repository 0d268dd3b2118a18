package learning

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative/botcore/internal/agent/model"
	"github.com/chative/botcore/internal/metrics"
)

func turn(bot, intent, text string, score float64, actions ...model.ActionResult) Interaction {
	return Interaction{
		BotID:   bot,
		UserID:  "u1",
		Message: text,
		Understanding: model.Understanding{
			Intent:    model.Intent{Name: intent},
			Sentiment: model.Sentiment{Score: score},
		},
		Actions: actions,
	}
}

func TestLearnCountsPerBot(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	l := NewInMemoryLearner(0, m)

	require.NoError(t, l.Learn(ctx, turn("b1", "greeting", "hi", 0.2)))
	require.NoError(t, l.Learn(ctx, turn("b1", "greeting", "hello", 0,
		model.ActionResult{Type: "get_current_time", Success: true},
		model.ActionResult{Type: "create_ticket", Success: false},
	)))
	require.NoError(t, l.Learn(ctx, turn("b2", "help", "help", 0)))

	s := l.Stats("b1")
	assert.Equal(t, 2, s.Interactions)
	assert.Equal(t, 2, s.Intents["greeting"])
	assert.Equal(t, ActionStats{Success: 1}, s.Actions["get_current_time"])
	assert.Equal(t, ActionStats{Failure: 1}, s.Actions["create_ticket"])
	assert.InDelta(t, 0.1, s.AverageSentiment, 1e-9)

	assert.Equal(t, 1, l.Stats("b2").Interactions)
	assert.Zero(t, l.Stats("nobody").Interactions)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.LearningEventsTotal.WithLabelValues("b1")))
}

func TestUnknownSamplesRing(t *testing.T) {
	ctx := context.Background()
	l := NewInMemoryLearner(3, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Learn(ctx, turn("b1", model.IntentUnknown, fmt.Sprintf("q%d", i), 0)))
	}
	s := l.Stats("b1")
	require.Len(t, s.Unknown, 3)
	assert.Equal(t, "q2", s.Unknown[0].Text)
	assert.Equal(t, "q4", s.Unknown[2].Text)
	assert.Equal(t, 5, s.Intents[model.IntentUnknown])
}

func TestLearnHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewInMemoryLearner(0, nil)
	assert.ErrorIs(t, l.Learn(ctx, turn("b1", "greeting", "hi", 0)), context.Canceled)
	assert.Zero(t, l.Stats("b1").Interactions)
}
