package nlu

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/chative/botcore/internal/agent/model"
	logx "github.com/chative/botcore/pkg/logger"
)

const defaultLLMTimeout = 8 * time.Second

// ChatModel is the slice of an eino chat model the LLM engine needs.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// LLMEngine asks a chat model for a tuple analysis and falls back to the
// keyword engine whenever the model fails or reports no usable intent.
type LLMEngine struct {
	chat     ChatModel
	fallback *KeywordEngine
	timeout  time.Duration
	onUsage  func(*schema.Message)
}

// OnCompletion registers a hook that sees every completion, e.g. for token
// accounting.
func (e *LLMEngine) OnCompletion(fn func(*schema.Message)) {
	e.onUsage = fn
}

func NewLLMEngine(chat ChatModel, fallback *KeywordEngine, timeout time.Duration) (*LLMEngine, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if fallback == nil {
		return nil, fmt.Errorf("fallback engine is nil")
	}
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	return &LLMEngine{chat: chat, fallback: fallback, timeout: timeout}, nil
}

func (e *LLMEngine) Process(ctx context.Context, text string) (u model.Understanding) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "nlu_llm").Msgf("panic recovered: %v", r)
			u = e.fallback.Process(ctx, text)
		}
	}()

	if strings.TrimSpace(text) == "" {
		return e.fallback.Process(ctx, text)
	}

	analysis, err := e.analyse(ctx, text)
	if err != nil {
		logx.Warn().Err(err).Str("component", "nlu_llm").Msg("llm analysis failed; using keyword engine")
		return e.fallback.Process(ctx, text)
	}
	if len(analysis.Errors) > 0 {
		logx.Debug().Strs("parsing_errors", analysis.Errors).Msg("llm analysis had malformed records")
	}

	base := e.fallback.Process(ctx, text)
	best, ok := analysis.BestIntent()
	if !ok || best.Confidence < e.fallback.threshold {
		return base
	}

	u = base
	u.Intent = e.intentFor(best)
	for _, ent := range analysis.Entities {
		u.Entities = append(u.Entities, model.Entity{Type: ent.Type, Value: ent.Value, Text: ent.Value})
	}
	if analysis.HasSentiment {
		s := math.Max(-1, math.Min(1, analysis.SentimentScore))
		u.Sentiment = model.Sentiment{Score: s, Magnitude: math.Abs(s)}
	}
	if analysis.Language != "" {
		u.Language = analysis.Language
	}
	return u
}

func (e *LLMEngine) analyse(ctx context.Context, text string) (*Analysis, error) {
	entityTypes := make([]string, 0, len(e.fallback.entities))
	for _, p := range e.fallback.entities {
		entityTypes = append(entityTypes, p.typ)
	}
	system, err := RenderSystemPrompt(ctx, e.fallback.intents, entityTypes)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	out, err := e.chat.Generate(cctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(text),
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	if out != nil && e.onUsage != nil {
		e.onUsage(out)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return nil, fmt.Errorf("empty completion")
	}
	return ParseAnalysis(out.Content)
}

// intentFor maps a model intent onto the configured table so known intents
// keep their actions.
func (e *LLMEngine) intentFor(it ScoredIntent) model.Intent {
	for _, def := range e.fallback.intents {
		if def.Name == it.Name {
			return model.Intent{Name: def.Name, Confidence: it.Confidence, Actionable: def.Action != "", Action: def.Action}
		}
	}
	return model.Intent{Name: it.Name, Confidence: it.Confidence}
}
