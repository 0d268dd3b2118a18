// Package graph runs the per-message agent pipeline as an eino graph:
// understand, contextualize, retrieve, plan, act, respond. Memory, learning
// and persistence follow on a per-conversation background queue.
package graph

import (
	"context"
	"fmt"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"

	"github.com/chative/botcore/internal/agent/actions"
	"github.com/chative/botcore/internal/agent/conversations"
	"github.com/chative/botcore/internal/agent/graph/observers"
	"github.com/chative/botcore/internal/agent/knowledge"
	"github.com/chative/botcore/internal/agent/learning"
	"github.com/chative/botcore/internal/agent/memory"
	"github.com/chative/botcore/internal/agent/model"
	"github.com/chative/botcore/internal/agent/nlu"
	"github.com/chative/botcore/internal/agent/personality"
	"github.com/chative/botcore/internal/agent/response"
	"github.com/chative/botcore/internal/metrics"
	logx "github.com/chative/botcore/pkg/logger"
)

// ApologyText is returned whenever the pipeline itself fails.
const ApologyText = "I'm sorry, I encountered an error processing your message. Please try again."

const (
	statusOK    = "ok"
	statusError = "error"
)

// TranscriptWriter keeps the full message log of a conversation.
type TranscriptWriter interface {
	AppendMessage(ctx context.Context, conversationID string, msg model.HistoryMessage) error
}

// Config wires one bot. Contexts, Memory and Learner may be shared between
// agents; they key their records by conversation and user id.
type Config struct {
	BotID       string
	NLU         nlu.Engine
	Contexts    *conversations.Manager
	Knowledge   *knowledge.Base
	Actions     *actions.Framework
	Personality *personality.Personality
	Responder   *response.Generator

	// Optional.
	Memory     memory.Store
	Learner    learning.Learner
	Transcript TranscriptWriter
	Metrics    *metrics.Metrics
	Now        func() time.Time

	FollowupLanes int
	FollowupDepth int
}

func (c Config) validate() error {
	switch {
	case c.BotID == "":
		return fmt.Errorf("bot id is empty")
	case c.NLU == nil:
		return fmt.Errorf("nlu engine is nil")
	case c.Contexts == nil:
		return fmt.Errorf("context manager is nil")
	case c.Knowledge == nil:
		return fmt.Errorf("knowledge base is nil")
	case c.Actions == nil:
		return fmt.Errorf("action framework is nil")
	case c.Personality == nil:
		return fmt.Errorf("personality is nil")
	case c.Responder == nil:
		return fmt.Errorf("response generator is nil")
	}
	return nil
}

// Agent is one bot's pipeline.
type Agent struct {
	botID       string
	nlu         nlu.Engine
	contexts    *conversations.Manager
	knowledge   *knowledge.Base
	actions     *actions.Framework
	personality *personality.Personality
	responder   *response.Generator
	memory      memory.Store
	learner     learning.Learner
	transcript  TranscriptWriter
	metrics     *metrics.Metrics
	now         func() time.Time

	runnable  compose.Runnable[*turn, model.Response]
	callbacks einocb.Handler
	followups *followups
	log       zerolog.Logger
}

func NewAgent(ctx context.Context, cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		botID:       cfg.BotID,
		nlu:         cfg.NLU,
		contexts:    cfg.Contexts,
		knowledge:   cfg.Knowledge,
		actions:     cfg.Actions,
		personality: cfg.Personality,
		responder:   cfg.Responder,
		memory:      cfg.Memory,
		learner:     cfg.Learner,
		transcript:  cfg.Transcript,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
		callbacks:   observers.New(cfg.BotID, cfg.Metrics),
		log:         logx.With("agent").With().Str("bot_id", cfg.BotID).Logger(),
	}
	if a.now == nil {
		a.now = time.Now
	}

	runnable, err := newGraphBuilder(a).build(ctx)
	if err != nil {
		return nil, err
	}
	a.runnable = runnable
	a.followups = newFollowups(cfg.FollowupLanes, cfg.FollowupDepth, a.log)
	return a, nil
}

func (a *Agent) BotID() string                         { return a.botID }
func (a *Agent) Personality() *personality.Personality { return a.personality }
func (a *Agent) Knowledge() *knowledge.Base            { return a.knowledge }
func (a *Agent) Actions() *actions.Framework           { return a.actions }
func (a *Agent) Contexts() *conversations.Manager      { return a.contexts }

// ProcessMessage runs one turn. It never fails: any pipeline error or panic
// yields the apology response with metadata error=true.
func (a *Agent) ProcessMessage(ctx context.Context, msg model.InboundMessage) (resp model.Response) {
	start := time.Now()
	release := a.metrics.TrackInFlight()
	status := statusOK
	defer func() {
		if r := recover(); r != nil {
			a.log.Error().Interface("panic", r).Str("session_id", msg.SessionID).Msg("pipeline panicked")
			resp, status = a.apology(), statusError
		}
		release()
		a.metrics.RecordMessage(a.botID, status, time.Since(start))
	}()

	t := newTurn(a.botID, msg, a.now())
	unlock := a.contexts.Lock(t.conversationID)
	defer unlock()

	out, err := a.runnable.Invoke(ctx, t, compose.WithCallbacks(a.callbacks))
	if err != nil {
		a.log.Error().Err(err).Str("conversation_id", t.conversationID).Msg("pipeline failed")
		status = statusError
		return a.apology()
	}

	// Still under the conversation lock, so follow-ups keep turn order.
	a.scheduleFollowups(ctx, t)
	return out
}

// Drain waits for follow-up work queued so far.
func (a *Agent) Drain(ctx context.Context) error {
	return a.followups.drain(ctx)
}

// Close finishes queued follow-up work and rejects new turns' follow-ups.
func (a *Agent) Close() {
	a.followups.close()
}

func (a *Agent) apology() model.Response {
	return model.Response{
		Text:        ApologyText,
		Actions:     []model.ActionResult{},
		Suggestions: []string{},
		Metadata: map[string]any{
			"error":  true,
			"bot_id": a.botID,
		},
	}
}

// graphBuilder assembles the pipeline graph.
type graphBuilder struct {
	agent *Agent
	graph *compose.Graph[*turn, model.Response]
}

func newGraphBuilder(a *Agent) *graphBuilder {
	return &graphBuilder{
		agent: a,
		graph: compose.NewGraph[*turn, model.Response](),
	}
}

func (b *graphBuilder) build(ctx context.Context) (compose.Runnable[*turn, model.Response], error) {
	if err := b.addNodes(); err != nil {
		return nil, err
	}
	if err := b.addEdges(); err != nil {
		return nil, err
	}
	return b.compile(ctx)
}

func (b *graphBuilder) addNodes() error {
	a := b.agent
	steps := []struct {
		name string
		fn   func(context.Context, *turn) (*turn, error)
	}{
		{NodeUnderstand, a.understand},
		{NodeContextualize, a.contextualize},
		{NodeRetrieve, a.retrieve},
		{NodePlan, a.plan},
		{NodeAct, a.act},
	}
	for _, s := range steps {
		if err := b.graph.AddLambdaNode(s.name, compose.InvokableLambda(s.fn), compose.WithNodeName(s.name)); err != nil {
			logx.Error().Err(err).Str("node", s.name).Msg("Error adding node")
			return fmt.Errorf("add node %s: %w", s.name, err)
		}
	}
	if err := b.graph.AddLambdaNode(NodeRespond, compose.InvokableLambda(a.respond), compose.WithNodeName(NodeRespond)); err != nil {
		logx.Error().Err(err).Str("node", NodeRespond).Msg("Error adding node")
		return fmt.Errorf("add node %s: %w", NodeRespond, err)
	}
	return nil
}

func (b *graphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, NodeUnderstand},
		{NodeUnderstand, NodeContextualize},
		{NodeContextualize, NodeRetrieve},
		{NodeRetrieve, NodePlan},
		{NodePlan, NodeAct},
		{NodeAct, NodeRespond},
		{NodeRespond, compose.END},
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			logx.Error().Err(err).Str("from", edge[0]).Str("to", edge[1]).Msg("Error adding edge")
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

func (b *graphBuilder) compile(ctx context.Context) (compose.Runnable[*turn, model.Response], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithGraphName("agent_pipeline"))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	logx.Debug().Str("bot_id", b.agent.botID).Msg("Graph compiled successfully")
	return runnable, nil
}
