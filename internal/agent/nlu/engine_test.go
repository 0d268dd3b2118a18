package nlu

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative/botcore/internal/agent/model"
)

func newEngine(t *testing.T, opts Options) *KeywordEngine {
	t.Helper()
	e, err := NewKeywordEngine(opts)
	require.NoError(t, err)
	return e
}

func TestKeywordEngine_Greeting(t *testing.T) {
	e := newEngine(t, Options{})
	u := e.Process(context.Background(), "Hello")

	assert.Equal(t, "Hello", u.Text)
	assert.Equal(t, "greeting", u.Intent.Name)
	assert.Equal(t, MatchConfidence, u.Intent.Confidence)
	assert.False(t, u.Intent.Actionable)
	assert.Equal(t, DefaultLanguage, u.Language)
	assert.False(t, u.Error)
}

func TestKeywordEngine_UnknownSentinel(t *testing.T) {
	e := newEngine(t, Options{})
	u := e.Process(context.Background(), "purple elephants")

	assert.Equal(t, model.IntentUnknown, u.Intent.Name)
	assert.Equal(t, model.UnknownIntentConfidence, u.Intent.Confidence)
}

func TestKeywordEngine_ThresholdFiltersMatches(t *testing.T) {
	e := newEngine(t, Options{ConfidenceThreshold: 0.9})
	u := e.Process(context.Background(), "hello there")
	assert.Equal(t, model.IntentUnknown, u.Intent.Name)
}

func TestKeywordEngine_TieBreakUsesTableOrder(t *testing.T) {
	e := newEngine(t, Options{})

	// greeting and thanks both match; greeting comes first in the table.
	u := e.Process(context.Background(), "hello and thanks")
	assert.Equal(t, "greeting", u.Intent.Name)

	// information precedes the custom intent appended after the base table.
	e = newEngine(t, Options{Intents: []IntentDefinition{{Name: "hours", Keywords: []string{"hours"}}}})
	u = e.Process(context.Background(), "what are your business hours")
	assert.Equal(t, "information", u.Intent.Name)

	u = e.Process(context.Background(), "opening hours please")
	assert.Equal(t, "hours", u.Intent.Name)
}

func TestKeywordEngine_CustomIntentReplacesBaseInPlace(t *testing.T) {
	e := newEngine(t, Options{Intents: []IntentDefinition{
		{Name: "greeting", Keywords: []string{"howdy"}, Action: "get_user_profile"},
	}})

	intents := e.Intents()
	require.Equal(t, len(BaseIntents), len(intents))
	assert.Equal(t, "greeting", intents[0].Name)

	u := e.Process(context.Background(), "howdy partner")
	assert.Equal(t, "greeting", u.Intent.Name)
	assert.True(t, u.Intent.Actionable)
	assert.Equal(t, "get_user_profile", u.Intent.Action)
}

func TestKeywordEngine_EntitiesKeepDetectionOrderAndOverlaps(t *testing.T) {
	e := newEngine(t, Options{Entities: []EntityDefinition{{Type: "order_id", Pattern: `ORD-\d+`}}})
	u := e.Process(context.Background(), "Order ORD-42 on 12/05/2024, mail bob@example.com")

	var types []string
	for _, ent := range u.Entities {
		types = append(types, ent.Type)
	}
	// date first, then every number (including the ones inside the date and
	// the order id), then email, then custom.
	assert.Equal(t, []string{"date", "number", "number", "number", "number", "email", "order_id"}, types)
	assert.Equal(t, "12/05/2024", u.Entities[0].Value)
	assert.Equal(t, 42, u.Entities[1].Value)
	assert.Equal(t, "bob@example.com", u.Entities[5].Value)
	assert.Equal(t, "ORD-42", u.Entities[6].Text)
}

func TestKeywordEngine_InvalidCustomPattern(t *testing.T) {
	_, err := NewKeywordEngine(Options{Entities: []EntityDefinition{{Type: "bad", Pattern: "("}}})
	require.Error(t, err)
}

func TestKeywordEngine_Sentiment(t *testing.T) {
	e := newEngine(t, Options{})

	u := e.Process(context.Background(), "this is bad, really terrible and awful")
	assert.InDelta(t, -0.6, u.Sentiment.Score, 1e-9)
	assert.InDelta(t, 0.6, u.Sentiment.Magnitude, 1e-9)

	u = e.Process(context.Background(), strings.Repeat("great ", 10))
	assert.Equal(t, 1.0, u.Sentiment.Score)
	assert.Equal(t, 1.0, u.Sentiment.Magnitude)
}

func TestKeywordEngine_AdversarialInput(t *testing.T) {
	e := newEngine(t, Options{})
	for _, text := range []string{"", "   ", "こんにちは 👋", strings.Repeat("x", 100_000)} {
		u := e.Process(context.Background(), text)
		assert.Equal(t, text, u.Text)
		assert.NotNil(t, u.Entities)
	}
}

func TestDegraded(t *testing.T) {
	u := Degraded("hi", "")
	assert.True(t, u.Error)
	assert.Equal(t, model.IntentUnknown, u.Intent.Name)
	assert.Zero(t, u.Intent.Confidence)
	assert.Empty(t, u.Entities)
	assert.Equal(t, DefaultLanguage, u.Language)
}
