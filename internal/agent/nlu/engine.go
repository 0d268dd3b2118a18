// Package nlu turns raw message text into a model.Understanding.
package nlu

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/chative/botcore/internal/agent/model"
	logx "github.com/chative/botcore/pkg/logger"
)

const (
	// MatchConfidence is the score an intent receives when any of its
	// keywords occurs in the text.
	MatchConfidence = 0.8

	DefaultConfidenceThreshold = 0.6
	DefaultLanguage            = "en"

	sentimentStep = 0.2
)

// Engine is the NLU contract. Process never fails; internal errors produce a
// degraded Understanding with Error set.
type Engine interface {
	Process(ctx context.Context, text string) model.Understanding
}

// IntentDefinition describes a keyword intent. A non-empty Action makes the
// intent actionable.
type IntentDefinition struct {
	Name     string   `yaml:"name" json:"name"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	Action   string   `yaml:"action,omitempty" json:"action,omitempty"`
}

// EntityDefinition adds a regex entity type.
type EntityDefinition struct {
	Type    string `yaml:"type" json:"type"`
	Pattern string `yaml:"pattern" json:"pattern"`
}

type Options struct {
	ConfidenceThreshold float64
	Language            string
	Intents             []IntentDefinition
	Entities            []EntityDefinition
}

// BaseIntents is the built-in intent table. Its order is the tie-break order.
var BaseIntents = []IntentDefinition{
	{Name: "greeting", Keywords: []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening", "greetings"}},
	{Name: "farewell", Keywords: []string{"bye", "goodbye", "see you", "farewell", "take care"}},
	{Name: "thanks", Keywords: []string{"thank", "thanks", "appreciate", "grateful"}},
	{Name: "help", Keywords: []string{"help", "support", "assist", "problem", "issue"}},
	{Name: "information", Keywords: []string{"what", "how", "when", "where", "why", "who", "tell me", "info"}},
	{Name: "confirm", Keywords: []string{"yes", "yeah", "sure", "okay", "correct", "confirm"}},
	{Name: "decline", Keywords: []string{"no", "nope", "don't", "cancel"}},
}

var (
	positiveWords = wordSet("good", "great", "excellent", "amazing", "happy", "love", "wonderful",
		"fantastic", "awesome", "nice", "pleased", "perfect", "thanks", "helpful")
	negativeWords = wordSet("bad", "terrible", "awful", "hate", "angry", "upset", "disappointed",
		"horrible", "poor", "sad", "frustrated", "annoyed", "broken", "useless", "worst")

	wordPattern = regexp.MustCompile(`[\p{L}']+`)
)

type entityPattern struct {
	typ   string
	re    *regexp.Regexp
	value func(match string) any
}

func builtinEntityPatterns() []entityPattern {
	return []entityPattern{
		{
			typ: "date",
			re: regexp.MustCompile(`(?i)\b(?:\d{4}-\d{2}-\d{2}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|` +
				`(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\s+\d{1,2}(?:st|nd|rd|th)?|` +
				`today|tomorrow|tonight)\b`),
			value: func(m string) any { return m },
		},
		{
			typ: "number",
			re:  regexp.MustCompile(`\b\d+\b`),
			value: func(m string) any {
				if n, err := strconv.Atoi(m); err == nil {
					return n
				}
				return m
			},
		},
		{
			typ:   "email",
			re:    regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
			value: func(m string) any { return strings.ToLower(m) },
		},
	}
}

// KeywordEngine is the heuristic engine: keyword intents, regex entities and
// bag-of-words sentiment.
type KeywordEngine struct {
	threshold float64
	language  string
	intents   []IntentDefinition
	entities  []entityPattern
}

// NewKeywordEngine builds an engine. Custom intents are appended after the
// base table; a custom intent reusing a base name replaces it in place.
func NewKeywordEngine(opts Options) (*KeywordEngine, error) {
	e := &KeywordEngine{
		threshold: opts.ConfidenceThreshold,
		language:  opts.Language,
		intents:   mergeIntents(BaseIntents, opts.Intents),
		entities:  builtinEntityPatterns(),
	}
	if e.threshold <= 0 {
		e.threshold = DefaultConfidenceThreshold
	}
	if e.language == "" {
		e.language = DefaultLanguage
	}
	for _, def := range opts.Entities {
		if def.Type == "" {
			return nil, fmt.Errorf("custom entity has empty type")
		}
		re, err := regexp.Compile(def.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile entity %q: %w", def.Type, err)
		}
		e.entities = append(e.entities, entityPattern{typ: def.Type, re: re, value: func(m string) any { return m }})
	}
	return e, nil
}

func (e *KeywordEngine) Process(ctx context.Context, text string) (u model.Understanding) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "nlu").Msgf("panic recovered: %v", r)
			u = Degraded(text, e.language)
		}
	}()

	lower := strings.ToLower(text)
	return model.Understanding{
		Text:      text,
		Intent:    e.detectIntent(lower),
		Entities:  e.extractEntities(text),
		Sentiment: analyzeSentiment(lower),
		Language:  e.language,
	}
}

// Intents returns the effective intent table in tie-break order.
func (e *KeywordEngine) Intents() []IntentDefinition {
	out := make([]IntentDefinition, len(e.intents))
	copy(out, e.intents)
	return out
}

// detectIntent keeps the first intent with the highest confidence, so equal
// scores resolve by table order.
func (e *KeywordEngine) detectIntent(lower string) model.Intent {
	var best *IntentDefinition
	bestConf := 0.0
	for i := range e.intents {
		def := &e.intents[i]
		conf := 0.0
		for _, kw := range def.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				conf = MatchConfidence
				break
			}
		}
		if conf >= e.threshold && conf > bestConf {
			best, bestConf = def, conf
		}
	}
	if best == nil {
		return model.UnknownIntent()
	}
	return model.Intent{
		Name:       best.Name,
		Confidence: bestConf,
		Actionable: best.Action != "",
		Action:     best.Action,
	}
}

func (e *KeywordEngine) extractEntities(text string) []model.Entity {
	entities := []model.Entity{}
	for _, p := range e.entities {
		for _, m := range p.re.FindAllString(text, -1) {
			entities = append(entities, model.Entity{Type: p.typ, Value: p.value(m), Text: m})
		}
	}
	return entities
}

func analyzeSentiment(lower string) model.Sentiment {
	score := 0.0
	for _, w := range wordPattern.FindAllString(lower, -1) {
		switch {
		case positiveWords[w]:
			score += sentimentStep
		case negativeWords[w]:
			score -= sentimentStep
		}
	}
	score = math.Max(-1, math.Min(1, score))
	return model.Sentiment{Score: score, Magnitude: math.Abs(score)}
}

// Degraded is the Understanding returned when processing fails.
func Degraded(text, language string) model.Understanding {
	if language == "" {
		language = DefaultLanguage
	}
	return model.Understanding{
		Text:     text,
		Intent:   model.Intent{Name: model.IntentUnknown, Confidence: 0},
		Entities: []model.Entity{},
		Language: language,
		Error:    true,
	}
}

func mergeIntents(base, custom []IntentDefinition) []IntentDefinition {
	out := make([]IntentDefinition, len(base))
	copy(out, base)
	for _, c := range custom {
		if c.Name == "" {
			continue
		}
		replaced := false
		for i := range out {
			if out[i].Name == c.Name {
				out[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, c)
		}
	}
	return out
}

func wordSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
