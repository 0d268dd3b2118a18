// Package factory builds configured agents from a default config, a named
// template and caller overrides.
package factory

import (
	"time"

	"github.com/chative/botcore/internal/agent/actions"
	"github.com/chative/botcore/internal/agent/knowledge"
	"github.com/chative/botcore/internal/agent/model"
	"github.com/chative/botcore/internal/agent/nlu"
	"github.com/chative/botcore/internal/agent/personality"
	"github.com/chative/botcore/internal/agent/response"
)

// BotConfig is the full declarative description of one bot. Its yaml keys
// are the keys accepted in overrides.
type BotConfig struct {
	BotID            string              `yaml:"botId" json:"botId"`
	Name             string              `yaml:"name" json:"name"`
	Template         string              `yaml:"template,omitempty" json:"template,omitempty"`
	Personality      personality.Profile `yaml:"personalityProfile" json:"personalityProfile"`
	Knowledge        KnowledgeSettings   `yaml:"knowledge" json:"knowledge"`
	AvailableActions []string            `yaml:"availableActions" json:"availableActions"`
	Actions          ActionSettings      `yaml:"actions" json:"actions"`
	NLU              NLUSettings         `yaml:"nlu" json:"nlu"`
	Context          ContextSettings     `yaml:"context" json:"context"`
	Response         ResponseSettings    `yaml:"response" json:"response"`
	Memory           MemorySettings      `yaml:"memory" json:"memory"`
	Learning         LearningSettings    `yaml:"learning" json:"learning"`
	Catalog          []actions.Product   `yaml:"catalog,omitempty" json:"catalog,omitempty"`
	Followups        FollowupSettings    `yaml:"followups" json:"followups"`
	Metadata         map[string]any      `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

type KnowledgeSettings struct {
	MinRelevance  float64        `yaml:"minRelevance" json:"minRelevance"`
	MaxResults    int            `yaml:"maxResults" json:"maxResults"`
	CacheTTL      time.Duration  `yaml:"cacheTTL" json:"cacheTTL"`
	CacheSize     int            `yaml:"cacheSize" json:"cacheSize"`
	SourceTimeout time.Duration  `yaml:"sourceTimeout" json:"sourceTimeout"`
	ExcerptLength int            `yaml:"excerptLength" json:"excerptLength"`
	Sources       []SourceConfig `yaml:"sources" json:"sources"`
}

// SourceConfig declares one knowledge source. Which fields apply depends on
// Type: faq uses FAQs, document uses Documents, database opens DSN and seeds
// it with Documents, api calls Endpoint.
type SourceConfig struct {
	ID        string               `yaml:"id" json:"id"`
	Type      string               `yaml:"type" json:"type"`
	FAQs      []knowledge.FAQEntry `yaml:"faqs,omitempty" json:"faqs,omitempty"`
	Documents []knowledge.Document `yaml:"documents,omitempty" json:"documents,omitempty"`
	DSN       string               `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Endpoint  string               `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Headers   map[string]string    `yaml:"headers,omitempty" json:"headers,omitempty"`
	Timeout   time.Duration        `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

type ActionSettings struct {
	MaxConcurrent int           `yaml:"maxConcurrent" json:"maxConcurrent"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

type NLUSettings struct {
	ConfidenceThreshold float64                `yaml:"confidenceThreshold" json:"confidenceThreshold"`
	Language            string                 `yaml:"language" json:"language"`
	UseLLM              bool                   `yaml:"useLLM" json:"useLLM"`
	Intents             []nlu.IntentDefinition `yaml:"intents,omitempty" json:"intents,omitempty"`
	Entities            []nlu.EntityDefinition `yaml:"entities,omitempty" json:"entities,omitempty"`
}

type ContextSettings struct {
	HistoryLimit       int           `yaml:"historyLimit" json:"historyLimit"`
	IntentHistoryLimit int           `yaml:"intentHistoryLimit" json:"intentHistoryLimit"`
	TTL                time.Duration `yaml:"ttl" json:"ttl"`
}

type ResponseSettings struct {
	SignoffProbability float64       `yaml:"signoffProbability" json:"signoffProbability"`
	Seed               int64         `yaml:"seed" json:"seed"`
	Rewrite            bool          `yaml:"rewrite" json:"rewrite"`
	Copy               response.Copy `yaml:"copy" json:"copy"`
}

type MemorySettings struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	MaxPerUser int  `yaml:"maxPerUser" json:"maxPerUser"`
}

type LearningSettings struct {
	Enabled        bool `yaml:"enabled" json:"enabled"`
	UnknownSamples int  `yaml:"unknownSamples" json:"unknownSamples"`
}

type FollowupSettings struct {
	Lanes int `yaml:"lanes" json:"lanes"`
	Depth int `yaml:"depth" json:"depth"`
}

// DefaultConfig is the base every bot is merged onto. It carries no bot id.
func DefaultConfig() BotConfig {
	available := append([]string(nil), actions.SystemActions...)
	available = append(available, actions.TemplateActions...)

	return BotConfig{
		Name:             "Assistant",
		Personality:      personality.DefaultProfile(),
		AvailableActions: available,
		Knowledge: KnowledgeSettings{
			MinRelevance:  knowledge.DefaultMinRelevance,
			MaxResults:    knowledge.DefaultMaxResults,
			CacheTTL:      time.Hour,
			CacheSize:     1000,
			SourceTimeout: knowledge.DefaultSourceTimeout,
			ExcerptLength: knowledge.DefaultExcerptLength,
			Sources:       []SourceConfig{},
		},
		Actions: ActionSettings{
			MaxConcurrent: actions.DefaultMaxConcurrent,
			Timeout:       actions.DefaultTimeout,
		},
		NLU: NLUSettings{
			ConfidenceThreshold: nlu.DefaultConfidenceThreshold,
			Language:            nlu.DefaultLanguage,
		},
		Context: ContextSettings{
			HistoryLimit:       10,
			IntentHistoryLimit: 50,
			TTL:                24 * time.Hour,
		},
		Response: ResponseSettings{
			SignoffProbability: response.DefaultSignoffProbability,
			Copy:               response.DefaultCopy(),
		},
		Memory:   MemorySettings{Enabled: true, MaxPerUser: 200},
		Learning: LearningSettings{Enabled: true, UnknownSamples: 100},
	}
}

func (c BotConfig) knowledgeOptions() knowledge.Options {
	return knowledge.Options{
		MinRelevance:  c.Knowledge.MinRelevance,
		MaxResults:    c.Knowledge.MaxResults,
		CacheTTL:      c.Knowledge.CacheTTL,
		CacheSize:     c.Knowledge.CacheSize,
		SourceTimeout: c.Knowledge.SourceTimeout,
	}
}

func (c BotConfig) actionConfig() model.ActionConfig {
	return model.ActionConfig{
		MaxConcurrentActions: c.Actions.MaxConcurrent,
		Timeout:              c.Actions.Timeout,
	}
}

func (c BotConfig) contextConfig() model.ContextConfig {
	return model.ContextConfig{
		HistoryLimit:       c.Context.HistoryLimit,
		IntentHistoryLimit: c.Context.IntentHistoryLimit,
		TTL:                c.Context.TTL,
	}
}

func (c BotConfig) responseConfig() model.ResponseConfig {
	return model.ResponseConfig{
		SignoffProbability: c.Response.SignoffProbability,
		Seed:               c.Response.Seed,
	}
}
