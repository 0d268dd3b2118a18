package graph

import (
	"context"
	"math"
	"strings"

	"github.com/chative/botcore/internal/agent/learning"
	"github.com/chative/botcore/internal/agent/memory"
	"github.com/chative/botcore/internal/agent/model"
)

const (
	baseConversationImportance = 3
	strongSentiment            = 0.5
)

func (a *Agent) scheduleFollowups(ctx context.Context, t *turn) {
	bg := context.WithoutCancel(ctx)
	if !a.followups.enqueue(t.conversationID, func() { a.followup(bg, t) }) {
		a.log.Warn().Str("conversation_id", t.conversationID).Msg("agent closed; follow-up work dropped")
	}
}

// followup stores the turn in long-term memory, feeds the learner, then
// persists the context and transcript. Failures are logged only.
func (a *Agent) followup(ctx context.Context, t *turn) {
	a.remember(ctx, t)
	a.learn(ctx, t)

	if err := a.contexts.Persist(ctx, t.conversationID); err != nil {
		a.log.Warn().Err(err).Str("conversation_id", t.conversationID).Msg("context persist failed")
	}
	a.appendTranscript(ctx, t)
}

func (a *Agent) remember(ctx context.Context, t *turn) {
	if a.memory == nil || t.msg.UserID == "" || strings.TrimSpace(t.text) == "" {
		return
	}
	_, err := a.memory.Add(ctx, t.msg.UserID, memory.Input{
		Type:       model.MemoryConversation,
		Content:    "user: " + t.text + "\nassistant: " + t.output.Text,
		Importance: turnImportance(t),
		Metadata: map[string]any{
			"bot_id":     a.botID,
			"session_id": t.msg.SessionID,
			"intent":     t.understanding.Intent.Name,
		},
	})
	if err != nil {
		a.log.Warn().Err(err).Str("user_id", t.msg.UserID).Msg("memory store failed")
		return
	}
	a.metrics.RecordMemoryWrite(model.MemoryConversation)
}

// turnImportance rates a turn on the memory scale: actionable intents,
// extracted entities and strong sentiment make a turn worth keeping.
func turnImportance(t *turn) int {
	v := baseConversationImportance
	if t.understanding.Intent.Actionable {
		v += 2
	}
	if len(t.understanding.Entities) > 0 {
		v++
	}
	if math.Abs(t.understanding.Sentiment.Score) > strongSentiment {
		v += 2
	}
	for _, r := range t.results {
		if r.Success {
			v++
			break
		}
	}
	return model.ClampImportance(v)
}

func (a *Agent) learn(ctx context.Context, t *turn) {
	if a.learner == nil {
		return
	}
	err := a.learner.Learn(ctx, learning.Interaction{
		BotID:         a.botID,
		UserID:        t.msg.UserID,
		SessionID:     t.msg.SessionID,
		Message:       t.text,
		Understanding: t.understanding,
		Actions:       t.results,
		Response:      t.output.Text,
		Timestamp:     t.received,
	})
	if err != nil {
		a.log.Warn().Err(err).Msg("learning failed")
	}
}

func (a *Agent) appendTranscript(ctx context.Context, t *turn) {
	if a.transcript == nil {
		return
	}
	msgs := []model.HistoryMessage{
		{Role: model.RoleUser, Content: t.text, Timestamp: t.received, Metadata: map[string]any{"intent": t.understanding.Intent.Name}},
		{Role: model.RoleAssistant, Content: t.output.Text, Timestamp: a.now()},
	}
	for _, m := range msgs {
		if err := a.transcript.AppendMessage(ctx, t.conversationID, m); err != nil {
			a.log.Warn().Err(err).Str("conversation_id", t.conversationID).Msg("transcript append failed")
			return
		}
	}
}
