package model

import "time"

const (
	IntentUnknown = "unknown"

	// UnknownIntentConfidence is deliberately below the default threshold: the
	// sentinel marks "nothing matched", not a weak match.
	UnknownIntentConfidence = 0.3
)

// Understanding is the structured NLU output for one message.
type Understanding struct {
	Text      string    `json:"text"`
	Intent    Intent    `json:"intent"`
	Entities  []Entity  `json:"entities"`
	Sentiment Sentiment `json:"sentiment"`
	Language  string    `json:"language"`
	Error     bool      `json:"error,omitempty"`
}

type Intent struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Actionable bool    `json:"actionable"`
	Action     string  `json:"action,omitempty"`
}

// Entity is one detected span. Several entity types may claim the same text.
type Entity struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
	Text  string `json:"text"`
}

type Sentiment struct {
	Score     float64 `json:"score"`
	Magnitude float64 `json:"magnitude"`
}

// UnknownIntent is the sentinel returned when no intent clears the threshold.
func UnknownIntent() Intent {
	return Intent{Name: IntentUnknown, Confidence: UnknownIntentConfidence}
}

// EntityMap folds entities into type -> value; later entities of the same
// type win.
func (u Understanding) EntityMap() map[string]any {
	m := make(map[string]any, len(u.Entities))
	for _, e := range u.Entities {
		m[e.Type] = e.Value
	}
	return m
}

// FirstEntity returns the first entity of the given type.
func (u Understanding) FirstEntity(typ string) (Entity, bool) {
	for _, e := range u.Entities {
		if e.Type == typ {
			return e, true
		}
	}
	return Entity{}, false
}

// InboundMessage is the transport-agnostic envelope delivered by adapters.
type InboundMessage struct {
	Text      string         `json:"text"`
	UserID    string         `json:"userId"`
	SessionID string         `json:"sessionId"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Response is what the pipeline hands back to adapters. Suggestions carries
// the quick replies.
type Response struct {
	Text             string          `json:"text"`
	Actions          []ActionResult  `json:"actions"`
	Suggestions      []string        `json:"suggestions"`
	SuggestedActions []ActionRequest `json:"suggestedActions,omitempty"`
	Metadata         map[string]any  `json:"metadata"`
}

// ActionRequest asks the framework to run one action.
type ActionRequest struct {
	ID     string         `json:"id,omitempty"`
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

type ActionResult struct {
	ID       string        `json:"id,omitempty"`
	Type     string        `json:"type"`
	Success  bool          `json:"success"`
	Result   any           `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}
