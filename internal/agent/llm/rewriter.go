package llm

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/chative/botcore/internal/agent/response"
	"github.com/chative/botcore/internal/metrics"
	logx "github.com/chative/botcore/pkg/logger"
)

//go:embed template/rewrite_prompt.txt
var rewritePrompt string

const (
	defaultRewriteTimeout = 6 * time.Second
	maxFacts              = 3
)

// Rewriter asks the response model to polish a drafted reply.
type Rewriter struct {
	chat      ChatModel
	modelName string
	timeout   time.Duration
	metrics   *metrics.Metrics
	tpl       prompt.ChatTemplate
}

func NewRewriter(chat ChatModel, modelName string, timeout time.Duration, m *metrics.Metrics) (*Rewriter, error) {
	if chat == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if timeout <= 0 {
		timeout = defaultRewriteTimeout
	}
	return &Rewriter{
		chat:      chat,
		modelName: modelName,
		timeout:   timeout,
		metrics:   m,
		tpl: prompt.FromMessages(
			schema.GoTemplate,
			schema.SystemMessage(rewritePrompt),
			schema.UserMessage("DRAFT:\n{{.Draft}}"),
		),
	}, nil
}

func (r *Rewriter) Rewrite(ctx context.Context, draft string, in response.Input) (string, error) {
	msgs, err := r.tpl.Format(ctx, r.vars(draft, in))
	if err != nil {
		return "", fmt.Errorf("rewrite prompt render: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	out, err := r.chat.Generate(cctx, msgs)
	if err != nil {
		return "", fmt.Errorf("rewrite generate: %w", err)
	}
	if cost, ok := UsageOf(r.modelName, out); ok {
		cost.Record(r.metrics)
		logx.Debug().
			Str("model", r.modelName).
			Int("prompt_tokens", cost.PromptTokens).
			Int("completion_tokens", cost.CompletionTokens).
			Float64("total_cost_usd", cost.TotalCost).
			Msg("LLM usage")
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", fmt.Errorf("rewrite: empty completion")
	}
	return strings.TrimSpace(out.Content), nil
}

func (r *Rewriter) vars(draft string, in response.Input) map[string]any {
	opts := in.Options
	industry := opts.Industry
	if industry == "" {
		industry = "general"
	}
	language := in.Understanding.Language
	if language == "" {
		language = "en"
	}

	var facts []string
	if info := in.Knowledge.Information; info != nil {
		if c := strings.TrimSpace(info.Content); c != "" {
			facts = append(facts, c)
		}
	}
	for _, src := range in.Knowledge.Sources {
		if len(facts) >= maxFacts {
			break
		}
		if c := strings.TrimSpace(src.Content); c != "" && !contains(facts, c) {
			facts = append(facts, c)
		}
	}

	return map[string]any{
		"Industry":     industry,
		"Formality":    opts.Tone.Formality,
		"Friendliness": opts.Tone.Friendliness,
		"Empathy":      opts.Tone.Empathy,
		"Humor":        opts.Tone.Humor,
		"Language":     language,
		"Intent":       in.Understanding.Intent.Name,
		"Facts":        facts,
		"Draft":        draft,
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
