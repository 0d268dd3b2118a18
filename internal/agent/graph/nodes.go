package graph

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chative/botcore/internal/agent/actions"
	"github.com/chative/botcore/internal/agent/knowledge"
	"github.com/chative/botcore/internal/agent/model"
	"github.com/chative/botcore/internal/agent/personality"
	"github.com/chative/botcore/internal/agent/response"
)

const (
	NodeUnderstand    = "understand"
	NodeContextualize = "contextualize"
	NodeRetrieve      = "retrieve"
	NodePlan          = "plan"
	NodeAct           = "act"
	NodeRespond       = "respond"
)

// MaxMessageRunes bounds the text handed to the pipeline; longer input is
// cut and flagged in the response metadata.
const MaxMessageRunes = 4000

// Metadata keys read from the inbound envelope.
const (
	MetaPermission    = "permission"
	MetaVariables     = "variables"
	MetaReceptiveness = "receptiveness"
)

// turn is the state one pipeline run threads through the graph.
type turn struct {
	botID          string
	msg            model.InboundMessage
	text           string
	truncated      bool
	conversationID string
	received       time.Time

	understanding model.Understanding
	context       *model.ConversationContext
	knowledge     knowledge.Result
	options       personality.ResponseOptions
	requests      []model.ActionRequest
	results       []model.ActionResult
	output        response.Output
}

func newTurn(botID string, msg model.InboundMessage, now time.Time) *turn {
	text := strings.ToValidUTF8(msg.Text, "")
	truncated := false
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		text = string([]rune(text)[:MaxMessageRunes])
		truncated = true
	}
	return &turn{
		botID:          botID,
		msg:            msg,
		text:           text,
		truncated:      truncated,
		conversationID: ConversationID(botID, msg),
		received:       now,
	}
}

// ConversationID scopes a session to its bot so bots sharing a context
// manager never see each other's state. Without a session the user id is
// used, and without either every message lands in one anonymous thread.
func ConversationID(botID string, msg model.InboundMessage) string {
	switch {
	case msg.SessionID != "":
		return botID + ":" + msg.SessionID
	case msg.UserID != "":
		return botID + ":user:" + msg.UserID
	default:
		return botID + ":anonymous"
	}
}

func (a *Agent) understand(ctx context.Context, t *turn) (*turn, error) {
	t.understanding = a.nlu.Process(ctx, t.text)
	return t, nil
}

func (a *Agent) contextualize(ctx context.Context, t *turn) (*turn, error) {
	u := t.understanding
	intent := u.Intent.Name
	upd := model.ContextUpdate{
		LastIntent:        &intent,
		Entities:          u.EntityMap(),
		Variables:         mapMeta(t.msg.Metadata, MetaVariables),
		UserReceptiveness: receptivenessMeta(t.msg.Metadata),
	}

	a.contexts.AddMessage(ctx, t.conversationID, model.RoleUser, t.text, map[string]any{"intent": intent})
	a.contexts.Update(ctx, t.conversationID, upd)
	t.context = a.contexts.Snapshot(ctx, t.conversationID)
	return t, nil
}

func (a *Agent) retrieve(ctx context.Context, t *turn) (*turn, error) {
	t.knowledge = a.knowledge.Query(ctx, knowledge.Query{
		Understanding: t.understanding,
		Context:       t.context,
		UserID:        t.msg.UserID,
	})
	return t, nil
}

func (a *Agent) plan(ctx context.Context, t *turn) (*turn, error) {
	t.options = a.personality.ResponseOptions(t.understanding, personality.SignalsFrom(t.context), t.received)
	t.requests = determineActions(t.understanding, t.text, t.knowledge, t.options.SuggestedActions)
	return t, nil
}

func (a *Agent) act(ctx context.Context, t *turn) (*turn, error) {
	if len(t.requests) == 0 {
		t.results = []model.ActionResult{}
		return t, nil
	}
	t.results = a.actions.ExecuteActions(ctx, t.requests, actions.ExecutionContext{
		BotID:      a.botID,
		UserID:     t.msg.UserID,
		SessionID:  t.msg.SessionID,
		Permission: permissionFor(t.msg),
		Knowledge:  a.knowledge,
		Memory:     a.memory,
		Metadata:   t.msg.Metadata,
		Now:        a.now,
	})
	return t, nil
}

func (a *Agent) respond(ctx context.Context, t *turn) (model.Response, error) {
	out := a.responder.Generate(ctx, response.Input{
		Understanding: t.understanding,
		Context:       t.context,
		Knowledge:     t.knowledge,
		ActionResults: t.results,
		Options:       t.options,
	})
	t.output = out

	a.contexts.AddIntent(ctx, t.conversationID, t.understanding.Intent)
	a.contexts.AddMessage(ctx, t.conversationID, model.RoleAssistant, out.Text, nil)

	meta := make(map[string]any, len(out.Metadata)+8)
	for k, v := range out.Metadata {
		meta[k] = v
	}
	meta["bot_id"] = a.botID
	meta["conversation_id"] = t.conversationID
	meta["turn"] = t.context.TurnCount
	meta["language"] = t.understanding.Language
	meta["sentiment"] = t.understanding.Sentiment.Score
	meta["knowledge_found"] = t.knowledge.Found
	if t.understanding.Error {
		meta["nlu_error"] = true
	}
	if t.knowledge.Error != "" {
		meta["knowledge_error"] = true
	}
	if t.truncated {
		meta["truncated"] = true
	}

	suggestions := out.QuickReplies
	if suggestions == nil {
		suggestions = []string{}
	}
	return model.Response{
		Text:             out.Text,
		Actions:          t.results,
		Suggestions:      suggestions,
		SuggestedActions: out.SuggestedActions,
		Metadata:         meta,
	}, nil
}

// determineActions concatenates the intent's action, knowledge triggers
// and personality suggestions, then keeps the first request of each type.
func determineActions(u model.Understanding, text string, kr knowledge.Result, suggested []model.ActionRequest) []model.ActionRequest {
	var reqs []model.ActionRequest
	if u.Intent.Actionable && u.Intent.Action != "" {
		params := u.EntityMap()
		params["message"] = text
		reqs = append(reqs, model.ActionRequest{Type: u.Intent.Action, Params: params})
	}
	if kr.RequiresAction {
		reqs = append(reqs, kr.SuggestedActions...)
	}
	reqs = append(reqs, suggested...)
	return dedupeByType(reqs)
}

func dedupeByType(reqs []model.ActionRequest) []model.ActionRequest {
	seen := make(map[string]bool, len(reqs))
	out := make([]model.ActionRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.Type == "" || seen[r.Type] {
			continue
		}
		seen[r.Type] = true
		out = append(out, r)
	}
	return out
}

// permissionFor trusts the adapter-supplied level; otherwise a known user
// is PermissionUser and an anonymous caller is public.
func permissionFor(msg model.InboundMessage) actions.Permission {
	if v, ok := msg.Metadata[MetaPermission].(string); ok && v != "" {
		return actions.ParsePermission(v)
	}
	if msg.UserID != "" {
		return actions.PermissionUser
	}
	return actions.PermissionPublic
}

func mapMeta(meta map[string]any, key string) map[string]any {
	m, _ := meta[key].(map[string]any)
	return m
}

func receptivenessMeta(meta map[string]any) map[string]float64 {
	switch v := meta[MetaReceptiveness].(type) {
	case map[string]float64:
		return v
	case map[string]any:
		out := make(map[string]float64, len(v))
		for k, x := range v {
			switch n := x.(type) {
			case float64:
				out[k] = n
			case int:
				out[k] = float64(n)
			}
		}
		return out
	}
	return nil
}
