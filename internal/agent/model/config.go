package model

import "time"

// ================ Config ================
// Process-wide defaults bound from the environment. Per-bot overrides come
// from the chatbot factory.

type NLUConfig struct {
	ConfidenceThreshold float64 `envconfig:"NLU_CONFIDENCE_THRESHOLD" default:"0.6"`
	DefaultLanguage     string  `envconfig:"NLU_DEFAULT_LANGUAGE" default:"en"`
	UseLLM              bool    `envconfig:"NLU_USE_LLM" default:"false"`
}

type ContextConfig struct {
	HistoryLimit       int           `envconfig:"CONTEXT_HISTORY_LIMIT" default:"10"`
	IntentHistoryLimit int           `envconfig:"CONTEXT_INTENT_HISTORY_LIMIT" default:"50"`
	TTL                time.Duration `envconfig:"CONTEXT_TTL" default:"24h"`
	SweepInterval      time.Duration `envconfig:"CONTEXT_SWEEP_INTERVAL" default:"10m"`
}

type KnowledgeConfig struct {
	CacheTTL          time.Duration `envconfig:"KNOWLEDGE_CACHE_TTL" default:"1h"`
	CacheSize         int           `envconfig:"KNOWLEDGE_CACHE_SIZE" default:"1000"`
	MinRelevanceScore float64       `envconfig:"KNOWLEDGE_MIN_RELEVANCE" default:"0.6"`
	MaxResults        int           `envconfig:"KNOWLEDGE_MAX_RESULTS" default:"5"`
	SourceTimeout     time.Duration `envconfig:"KNOWLEDGE_SOURCE_TIMEOUT" default:"3s"`
	ExcerptLength     int           `envconfig:"KNOWLEDGE_EXCERPT_LENGTH" default:"300"`
}

type ActionConfig struct {
	MaxConcurrentActions int           `envconfig:"ACTION_MAX_CONCURRENT" default:"5"`
	Timeout              time.Duration `envconfig:"ACTION_TIMEOUT" default:"10s"`
}

type ResponseConfig struct {
	SignoffProbability float64 `envconfig:"RESPONSE_SIGNOFF_PROBABILITY" default:"0.3"`
	Seed               int64   `envconfig:"RESPONSE_SEED" default:"0"`
}

type MemoryConfig struct {
	MaxPerUser int  `envconfig:"MEMORY_MAX_PER_USER" default:"200"`
	Enabled    bool `envconfig:"MEMORY_ENABLED" default:"true"`
}

type LearningConfig struct {
	Enabled        bool `envconfig:"LEARNING_ENABLED" default:"true"`
	UnknownSamples int  `envconfig:"LEARNING_UNKNOWN_SAMPLES" default:"100"`
}

type LLMConfig struct {
	APIKey      string  `envconfig:"GEMINI_API_KEY"`
	BaseURL     string  `envconfig:"GEMINI_BASE_URL"`
	NLUModel    string  `envconfig:"NLU_MODEL" default:"gemini-2.5-flash-lite"`
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
	Rewrite     bool    `envconfig:"RESPONSE_REWRITE" default:"false"`
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}
