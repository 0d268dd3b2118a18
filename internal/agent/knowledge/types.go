// Package knowledge answers questions from a bot's configured sources.
package knowledge

import (
	"context"

	"github.com/chative/botcore/internal/agent/model"
)

const (
	SourceFAQ      = "faq"
	SourceDocument = "document"
	SourceDatabase = "database"
	SourceAPI      = "api"

	ContentForm    = "form"
	ContentBooking = "booking"
	ContentPayment = "payment"
)

// Source is one searchable knowledge source. Search returns candidates with
// relevance in [0,1]; pooling and thresholds are applied by the Base.
type Source interface {
	ID() string
	Type() string
	Search(ctx context.Context, q StructuredQuery) ([]Item, error)
}

// Item is the common result shape of every source.
type Item struct {
	ID        string         `json:"id" yaml:"id"`
	Title     string         `json:"title" yaml:"title"`
	Content   string         `json:"content" yaml:"content"`
	Relevance float64        `json:"relevance" yaml:"relevance"`
	Type      string         `json:"type" yaml:"type"`
	Source    string         `json:"source,omitempty" yaml:"source,omitempty"`
	Actions   []string       `json:"actions,omitempty" yaml:"actions,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Query is what the pipeline hands to the knowledge base.
type Query struct {
	Understanding model.Understanding
	Context       *model.ConversationContext
	UserID        string
}

// StructuredQuery is the normalized form every source receives.
type StructuredQuery struct {
	Text           string         `json:"text"`
	Intent         string         `json:"intent"`
	Entities       map[string]any `json:"entities"`
	Filters        map[string]any `json:"filters,omitempty"`
	PreviousIntent string         `json:"previousIntent,omitempty"`
	UserID         string         `json:"userId,omitempty"`
}

// MatchesIntent reports whether any of intents is the query intent. An
// unknown intent falls back to the previous turn's intent.
func (q StructuredQuery) MatchesIntent(intents []string) bool {
	target := q.Intent
	if (target == "" || target == model.IntentUnknown) && q.PreviousIntent != "" {
		target = q.PreviousIntent
	}
	for _, in := range intents {
		if in == target {
			return true
		}
	}
	return false
}

// Category returns the category filter, if any.
func (q StructuredQuery) Category() string {
	c, _ := q.Filters["category"].(string)
	return c
}

// Information is consolidated from the top results.
type Information struct {
	Content  string         `json:"content"`
	Title    string         `json:"title,omitempty"`
	Type     string         `json:"type,omitempty"`
	SourceID string         `json:"sourceId,omitempty"`
	ItemID   string         `json:"itemId,omitempty"`
	Triggers []string       `json:"triggers,omitempty"`
	Related  []string       `json:"related,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Result struct {
	Query            StructuredQuery       `json:"query"`
	Found            bool                  `json:"found"`
	Confidence       float64               `json:"confidence"`
	Sources          []Item                `json:"sources"`
	Information      *Information          `json:"information,omitempty"`
	RequiresAction   bool                  `json:"requiresAction"`
	SuggestedActions []model.ActionRequest `json:"suggestedActions,omitempty"`
	Error            string                `json:"error,omitempty"`
}
