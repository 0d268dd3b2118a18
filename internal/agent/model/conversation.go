package model

import (
	"context"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DefaultState = "initial"
)

// ConversationContext is the mutable working state of one conversation.
// Holders share one record per id; mutate only while holding the
// conversation lock.
type ConversationContext struct {
	ID                string             `json:"id"`
	SessionStarted    time.Time          `json:"sessionStarted"`
	LastUpdated       time.Time          `json:"lastUpdated"`
	TurnCount         int                `json:"turnCount"`
	Entities          map[string]any     `json:"entities"`
	Variables         map[string]any     `json:"variables"`
	IntentHistory     []IntentRecord     `json:"intentHistory"`
	PreviousMessages  []HistoryMessage   `json:"previousMessages"`
	CurrentState      string             `json:"currentState"`
	LastIntent        string             `json:"lastIntent,omitempty"`
	UserReceptiveness map[string]float64 `json:"userReceptiveness,omitempty"`
}

type IntentRecord struct {
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

type HistoryMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewConversationContext returns the default record for a fresh conversation.
func NewConversationContext(id string, now time.Time) *ConversationContext {
	return &ConversationContext{
		ID:                id,
		SessionStarted:    now,
		LastUpdated:       now,
		Entities:          map[string]any{},
		Variables:         map[string]any{},
		IntentHistory:     []IntentRecord{},
		PreviousMessages:  []HistoryMessage{},
		CurrentState:      DefaultState,
		UserReceptiveness: map[string]float64{},
	}
}

// PreviousIntent returns the most recent recorded intent, if any.
func (c *ConversationContext) PreviousIntent() (IntentRecord, bool) {
	if c == nil || len(c.IntentHistory) == 0 {
		return IntentRecord{}, false
	}
	return c.IntentHistory[len(c.IntentHistory)-1], true
}

// ContextUpdate is merged onto a context by the Context Manager. Nil fields
// are left untouched; map fields merge key by key.
type ContextUpdate struct {
	CurrentState      *string
	LastIntent        *string
	Entities          map[string]any
	Variables         map[string]any
	UserReceptiveness map[string]float64
}

// ContextRepository persists context snapshots outside the process.
type ContextRepository interface {
	// Load returns the stored context or (nil, nil) when none exists.
	Load(ctx context.Context, conversationID string) (*ConversationContext, error)
	Save(ctx context.Context, c *ConversationContext) error
	Delete(ctx context.Context, conversationID string) error
}
