package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/chative/botcore/internal/agent/actions"
	"github.com/chative/botcore/internal/agent/conversations"
	"github.com/chative/botcore/internal/agent/graph"
	"github.com/chative/botcore/internal/agent/knowledge"
	"github.com/chative/botcore/internal/agent/learning"
	"github.com/chative/botcore/internal/agent/llm"
	"github.com/chative/botcore/internal/agent/memory"
	"github.com/chative/botcore/internal/agent/nlu"
	"github.com/chative/botcore/internal/agent/personality"
	"github.com/chative/botcore/internal/agent/response"
	errx "github.com/chative/botcore/internal/core/error"
	"github.com/chative/botcore/internal/metrics"
	logx "github.com/chative/botcore/pkg/logger"
)

var (
	ErrMissingBotID    = errors.New("botId is required")
	ErrUnknownTemplate = errors.New("unknown template")
	ErrUnknownSource   = errors.New("unknown knowledge source type")
)

// ResolveConfig deep-merges overrides onto DefaultConfig. Durations in
// overrides are strings such as "30s".
func ResolveConfig(overrides map[string]any) (BotConfig, error) {
	base, err := toMap(DefaultConfig())
	if err != nil {
		return BotConfig{}, errx.Internal(err)
	}
	cfg, err := fromMap(DeepMerge(base, overrides))
	if err != nil {
		return BotConfig{}, errx.Validation(err, "invalid bot config")
	}
	if cfg.BotID == "" {
		return BotConfig{}, errx.Validation(ErrMissingBotID, "botId is required")
	}
	return cfg, nil
}

// ResolveTemplate layers the named template, then overrides, onto
// DefaultConfig.
func ResolveTemplate(name string, overrides map[string]any) (BotConfig, error) {
	tpl, ok := templates[name]
	if !ok {
		return BotConfig{}, errx.Validation(fmt.Errorf("%w: %q", ErrUnknownTemplate, name), "unknown template "+name)
	}
	layer := tpl()
	layer["template"] = name
	return ResolveConfig(DeepMerge(layer, overrides))
}

// Deps are the services shared by every bot a Factory builds. Nil entries
// are created per bot from its config.
type Deps struct {
	Contexts   *conversations.Manager
	Memory     memory.Store
	Learner    learning.Learner
	Transcript graph.TranscriptWriter
	ChatModels *llm.ChatModels
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

type Factory struct {
	deps Deps
}

func New(deps Deps) *Factory {
	return &Factory{deps: deps}
}

// Chatbot is a built agent together with its resolved config.
type Chatbot struct {
	*graph.Agent
	Config  BotConfig
	closers []io.Closer
}

// Close drains the agent's follow-up work and releases its sources.
func (b *Chatbot) Close() error {
	b.Agent.Close()
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (f *Factory) CreateChatbot(ctx context.Context, overrides map[string]any) (*Chatbot, error) {
	cfg, err := ResolveConfig(overrides)
	if err != nil {
		return nil, err
	}
	return f.Build(ctx, cfg)
}

func (f *Factory) CreateFromTemplate(ctx context.Context, name string, overrides map[string]any) (*Chatbot, error) {
	cfg, err := ResolveTemplate(name, overrides)
	if err != nil {
		return nil, err
	}
	return f.Build(ctx, cfg)
}

// Build wires every component for cfg.
func (f *Factory) Build(ctx context.Context, cfg BotConfig) (*Chatbot, error) {
	if cfg.BotID == "" {
		return nil, errx.Validation(ErrMissingBotID, "botId is required")
	}
	log := logx.With("factory").With().Str("bot_id", cfg.BotID).Logger()
	bot := &Chatbot{Config: cfg}
	fail := func(err error) (*Chatbot, error) {
		for _, c := range bot.closers {
			_ = c.Close()
		}
		return nil, err
	}

	engine, err := f.buildNLU(cfg)
	if err != nil {
		return fail(errx.Validation(err, "invalid nlu config"))
	}

	sources := make([]knowledge.Source, 0, len(cfg.Knowledge.Sources))
	for _, sc := range cfg.Knowledge.Sources {
		src, closer, err := buildSource(ctx, sc, cfg.Knowledge.ExcerptLength)
		if err != nil {
			return fail(err)
		}
		if closer != nil {
			bot.closers = append(bot.closers, closer)
		}
		sources = append(sources, src)
	}
	kopts := cfg.knowledgeOptions()
	kopts.Metrics = f.deps.Metrics
	kopts.Now = f.deps.Now
	kb := knowledge.NewBase(kopts, sources...)

	registry, err := actions.NewDefaultRegistry(ctx, cfg.Catalog)
	if err != nil {
		return fail(errx.Internal(err))
	}
	framework := actions.NewFramework(cfg.BotID, registry, cfg.actionConfig(), cfg.AvailableActions, f.deps.Metrics)

	genOpts := []response.Option{response.WithCopy(cfg.Response.Copy)}
	if cfg.Response.Rewrite && f.deps.ChatModels != nil {
		rw, err := llm.NewRewriter(f.deps.ChatModels.Response, f.deps.ChatModels.ResponseModelName, 0, f.deps.Metrics)
		if err != nil {
			return fail(errx.Internal(err))
		}
		genOpts = append(genOpts, response.WithRewriter(rw))
	}

	contexts := f.deps.Contexts
	if contexts == nil {
		contexts = conversations.NewManager(cfg.contextConfig())
	}

	agentCfg := graph.Config{
		BotID:         cfg.BotID,
		NLU:           engine,
		Contexts:      contexts,
		Knowledge:     kb,
		Actions:       framework,
		Personality:   personality.New(cfg.Personality),
		Responder:     response.NewGenerator(cfg.responseConfig(), genOpts...),
		Transcript:    f.deps.Transcript,
		Metrics:       f.deps.Metrics,
		Now:           f.deps.Now,
		FollowupLanes: cfg.Followups.Lanes,
		FollowupDepth: cfg.Followups.Depth,
	}
	if cfg.Memory.Enabled {
		agentCfg.Memory = f.deps.Memory
		if agentCfg.Memory == nil {
			agentCfg.Memory = memory.NewInMemoryStore(cfg.Memory.MaxPerUser)
		}
	}
	if cfg.Learning.Enabled {
		agentCfg.Learner = f.deps.Learner
		if agentCfg.Learner == nil {
			agentCfg.Learner = learning.NewInMemoryLearner(cfg.Learning.UnknownSamples, f.deps.Metrics)
		}
	}

	agent, err := graph.NewAgent(ctx, agentCfg)
	if err != nil {
		return fail(errx.Internal(err))
	}
	bot.Agent = agent

	log.Info().
		Str("template", cfg.Template).
		Int("sources", len(sources)).
		Strs("actions", framework.AvailableActions()).
		Bool("llm_nlu", cfg.NLU.UseLLM && f.deps.ChatModels != nil).
		Msg("chatbot ready")
	return bot, nil
}

func (f *Factory) buildNLU(cfg BotConfig) (nlu.Engine, error) {
	kw, err := nlu.NewKeywordEngine(nlu.Options{
		ConfidenceThreshold: cfg.NLU.ConfidenceThreshold,
		Language:            cfg.NLU.Language,
		Intents:             cfg.NLU.Intents,
		Entities:            cfg.NLU.Entities,
	})
	if err != nil {
		return nil, err
	}
	if !cfg.NLU.UseLLM || f.deps.ChatModels == nil {
		return kw, nil
	}
	engine, err := nlu.NewLLMEngine(f.deps.ChatModels.NLU, kw, 0)
	if err != nil {
		return nil, err
	}
	name, m := f.deps.ChatModels.NLUModelName, f.deps.Metrics
	engine.OnCompletion(func(msg *schema.Message) {
		if cost, ok := llm.UsageOf(name, msg); ok {
			cost.Record(m)
		}
	})
	return engine, nil
}

func buildSource(ctx context.Context, sc SourceConfig, excerptLen int) (knowledge.Source, io.Closer, error) {
	if sc.ID == "" {
		return nil, nil, errx.Validation(nil, "knowledge source id is required")
	}
	switch sc.Type {
	case knowledge.SourceFAQ:
		return knowledge.NewFAQSource(sc.ID, sc.FAQs), nil, nil
	case knowledge.SourceDocument:
		return knowledge.NewDocumentSource(sc.ID, sc.Documents, excerptLen), nil, nil
	case knowledge.SourceDatabase:
		dsn := sc.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		backend, err := knowledge.OpenSQLiteBackend(ctx, dsn)
		if err != nil {
			return nil, nil, errx.Internal(fmt.Errorf("source %s: %w", sc.ID, err))
		}
		for _, d := range sc.Documents {
			if err := backend.Upsert(ctx, d); err != nil {
				backend.Close()
				return nil, nil, errx.Internal(fmt.Errorf("source %s: seed %s: %w", sc.ID, d.ID, err))
			}
		}
		return knowledge.NewDatabaseSource(sc.ID, backend), backend, nil
	case knowledge.SourceAPI:
		if sc.Endpoint == "" {
			return nil, nil, errx.Validation(nil, "api source "+sc.ID+" needs an endpoint")
		}
		return knowledge.NewAPISource(sc.ID, sc.Endpoint, sc.Headers, sc.Timeout), nil, nil
	default:
		return nil, nil, errx.Validation(fmt.Errorf("%w: %q", ErrUnknownSource, sc.Type), "unknown knowledge source type "+sc.Type)
	}
}
