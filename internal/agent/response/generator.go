// Package response turns a processed turn into the bot's reply.
package response

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chative/botcore/internal/agent/knowledge"
	"github.com/chative/botcore/internal/agent/model"
	"github.com/chative/botcore/internal/agent/personality"
	logx "github.com/chative/botcore/pkg/logger"
)

const (
	DefaultSignoffProbability = 0.3

	SourceHandler   = "handler"
	SourceTemplate  = "template"
	SourceKnowledge = "knowledge"
	SourceFallback  = "fallback"

	empathyThreshold = 0.7
	negativeMood     = -0.3
	formalThreshold  = 0.6
)

var placeholderPattern = regexp.MustCompile(`\{[A-Za-z0-9_]+\}`)

type Input struct {
	Understanding model.Understanding
	Context       *model.ConversationContext
	Knowledge     knowledge.Result
	ActionResults []model.ActionResult
	Options       personality.ResponseOptions
}

type Output struct {
	Text             string
	QuickReplies     []string
	SuggestedActions []model.ActionRequest
	Metadata         map[string]any
}

// Rewriter polishes a draft reply. Failures keep the draft.
type Rewriter interface {
	Rewrite(ctx context.Context, draft string, in Input) (string, error)
}

type handler func(g *Generator, in Input) (text string, replies []string, ok bool)

var handlers = map[string]handler{
	"greeting":    (*Generator).greeting,
	"farewell":    staticBranch(func(c Copy) string { return c.Farewell }),
	"thanks":      staticBranch(func(c Copy) string { return c.Thanks }),
	"help":        (*Generator).help,
	"information": (*Generator).information,
	"question":    (*Generator).information,
	"command":     (*Generator).command,
	"statement":   staticBranch(func(c Copy) string { return c.Statement }),
	"confirm":     staticBranch(func(c Copy) string { return c.Confirm }),
	"decline":     staticBranch(func(c Copy) string { return c.Decline }),
}

type Generator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	signoff float64

	copy     Copy
	rewriter Rewriter
	log      zerolog.Logger
}

type Option func(*Generator)

func WithCopy(c Copy) Option { return func(g *Generator) { g.copy = c } }

func WithRewriter(r Rewriter) Option { return func(g *Generator) { g.rewriter = r } }

// NewGenerator seeds its rng from cfg.Seed; zero seeds from the clock.
func NewGenerator(cfg model.ResponseConfig, opts ...Option) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &Generator{
		rng:     rand.New(rand.NewSource(seed)),
		signoff: cfg.SignoffProbability,
		copy:    DefaultCopy(),
		log:     logx.With("response"),
	}
	if g.signoff < 0 {
		g.signoff = 0
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate picks the intent's handler, else a registered template, else the
// knowledge answer, else a random fallback, then applies the personality's
// voice.
func (g *Generator) Generate(ctx context.Context, in Input) Output {
	intent := in.Understanding.Intent.Name
	source := SourceFallback

	var (
		text    string
		replies []string
	)
	if h, ok := handlers[intent]; ok {
		if t, r, ok := h(g, in); ok {
			text, replies, source = t, r, SourceHandler
		}
	}
	if source == SourceFallback {
		if t, ok := g.template(in); ok {
			text, source = t, SourceTemplate
		} else if t, r, ok := knowledgeAnswer(in); ok {
			text, replies, source = t, r, SourceKnowledge
		} else {
			text = g.pick(g.copy.Fallbacks)
		}
	}
	if intent != "command" {
		text = joinSentences(text, g.alsoDone(in.ActionResults))
	}
	if in.Understanding.Sentiment.Score < negativeMood && in.Options.Tone.Empathy >= empathyThreshold {
		text = joinSentences(g.copy.Empathy, text)
	}

	if g.rewriter != nil && text != "" {
		rewritten, err := g.rewriter.Rewrite(ctx, text, in)
		switch {
		case err != nil:
			g.log.Warn().Err(err).Str("intent", intent).Msg("rewrite failed; keeping draft")
		case strings.TrimSpace(rewritten) != "":
			text = strings.TrimSpace(rewritten)
		}
	}
	text = g.decorate(text, intent, in.Options.Voice)

	if replies == nil {
		replies = []string{}
	}
	return Output{
		Text:             text,
		QuickReplies:     replies,
		SuggestedActions: suggested(in),
		Metadata: map[string]any{
			"intent":     intent,
			"confidence": in.Understanding.Intent.Confidence,
			"source":     source,
		},
	}
}

func staticBranch(pick func(Copy) string) handler {
	return func(g *Generator, in Input) (string, []string, bool) {
		if t, ok := g.template(in); ok {
			return t, nil, true
		}
		return pick(g.copy), nil, true
	}
}

func (g *Generator) greeting(in Input) (string, []string, bool) {
	replies := append([]string(nil), g.copy.GreetingReplies...)
	if in.Options.SpecialResponse != "" {
		return in.Options.SpecialResponse, replies, true
	}
	if t, ok := g.template(in); ok {
		return t, replies, true
	}
	if in.Options.Tone.Formality >= formalThreshold {
		return g.copy.GreetingFormal, replies, true
	}
	return g.copy.GreetingCasual, replies, true
}

func (g *Generator) help(in Input) (string, []string, bool) {
	replies := append([]string(nil), g.copy.HelpReplies...)
	if t, ok := g.template(in); ok {
		return t, replies, true
	}
	return g.copy.Help, replies, true
}

func knowledgeAnswer(in Input) (string, []string, bool) {
	if info := in.Knowledge.Information; in.Knowledge.Found && info != nil && info.Content != "" {
		return info.Content, append([]string(nil), info.Related...), true
	}
	return "", nil, false
}

func (g *Generator) information(in Input) (string, []string, bool) {
	if t, r, ok := knowledgeAnswer(in); ok {
		return t, r, true
	}
	for _, r := range in.ActionResults {
		if r.Type != "search_knowledge_base" || !r.Success {
			continue
		}
		if m, ok := r.Result.(map[string]any); ok {
			if info, ok := m["information"].(*knowledge.Information); ok && info != nil && info.Content != "" {
				return info.Content, nil, true
			}
		}
	}
	if t, ok := g.template(in); ok {
		return t, nil, true
	}
	return g.copy.NoAnswer, nil, true
}

func (g *Generator) command(in Input) (string, []string, bool) {
	if len(in.ActionResults) == 0 {
		if t, ok := g.template(in); ok {
			return t, nil, true
		}
		return g.copy.CommandUnknown, nil, true
	}
	var failed []string
	for _, r := range in.ActionResults {
		if !r.Success {
			failed = append(failed, r.Type)
		}
	}
	if len(failed) == 0 {
		return g.copy.CommandDone, nil, true
	}
	return fmt.Sprintf("%s (%s)", g.copy.CommandFailed, strings.Join(failed, ", ")), nil, true
}

// template fills a random registered template for the intent. Entity and
// variable placeholders are substituted; unknown ones are removed.
func (g *Generator) template(in Input) (string, bool) {
	t := g.pick(in.Options.Templates)
	if t == "" {
		return "", false
	}
	return Fill(t, in.Understanding, in.Context), true
}

// Fill substitutes {name} placeholders from the understanding's entities,
// then the context entities and variables.
func Fill(t string, u model.Understanding, c *model.ConversationContext) string {
	values := map[string]any{}
	if c != nil {
		for k, v := range c.Entities {
			values[k] = v
		}
		for k, v := range c.Variables {
			values[k] = v
		}
	}
	for k, v := range u.EntityMap() {
		values[k] = v
	}
	pairs := make([]string, 0, 2*len(values))
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	out := strings.NewReplacer(pairs...).Replace(t)
	out = placeholderPattern.ReplaceAllString(out, "")
	return strings.Join(strings.Fields(out), " ")
}

func (g *Generator) alsoDone(results []model.ActionResult) string {
	var done []string
	for _, r := range results {
		if r.Success && r.Type != "search_knowledge_base" {
			done = append(done, strings.ReplaceAll(r.Type, "_", " "))
		}
	}
	if len(done) == 0 {
		return ""
	}
	return g.copy.AlsoDone + " " + strings.Join(done, ", ") + "."
}

func (g *Generator) decorate(text, intent string, v personality.Voice) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(v.Emojis) > 0 && g.rng.Float64() < v.EmojiFrequency {
		text += " " + v.Emojis[g.rng.Intn(len(v.Emojis))]
	}
	if intent != "farewell" && len(v.Signoffs) > 0 && g.rng.Float64() < g.signoff {
		text += "\n\n" + v.Signoffs[g.rng.Intn(len(v.Signoffs))]
	}
	return text
}

func (g *Generator) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return options[g.rng.Intn(len(options))]
}

func suggested(in Input) []model.ActionRequest {
	executed := map[string]bool{}
	for _, r := range in.ActionResults {
		if r.Success {
			executed[r.Type] = true
		}
	}
	seen := map[string]bool{}
	out := []model.ActionRequest{}
	add := func(reqs []model.ActionRequest) {
		for _, r := range reqs {
			if executed[r.Type] || seen[r.Type] {
				continue
			}
			seen[r.Type] = true
			out = append(out, r)
		}
	}
	add(in.Knowledge.SuggestedActions)
	add(in.Options.SuggestedActions)
	return out
}

func joinSentences(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
