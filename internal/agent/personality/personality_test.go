package personality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative/botcore/internal/agent/model"
)

func ptr[T any](v T) *T { return &v }

func understanding(text, intent string, score float64, entities ...model.Entity) model.Understanding {
	return model.Understanding{
		Text:      text,
		Intent:    model.Intent{Name: intent, Confidence: 0.8},
		Entities:  entities,
		Sentiment: model.Sentiment{Score: score},
	}
}

func TestToneShiftOnNegativeSentiment(t *testing.T) {
	tone := Tone{Formality: 0.5, Empathy: 0.8, Humor: 0.3}
	got := AdjustTone(tone, understanding("this is terrible", "unknown", -0.6), Signals{})
	assert.GreaterOrEqual(t, got.Empathy, 0.9)
	assert.LessOrEqual(t, got.Formality, 0.4)
	assert.Equal(t, 1.0, got.Empathy)
	assert.InDelta(t, 0.4, got.Formality, 1e-9)
}

func TestToneShiftLongConversationAndHumor(t *testing.T) {
	tone := Tone{Formality: 0.5, Humor: 0.3}

	got := AdjustTone(tone, understanding("ok", "confirm", 0), Signals{ConversationTurns: 5})
	assert.Equal(t, 0.5, got.Formality, "no shift at five turns")

	got = AdjustTone(tone, understanding("ok", "confirm", 0), Signals{ConversationTurns: 10})
	assert.InDelta(t, 0.3, got.Formality, 1e-9)

	got = AdjustTone(tone, understanding("ok", "confirm", 0), Signals{ConversationTurns: 100})
	assert.InDelta(t, 0.2, got.Formality, 1e-9, "shift capped at 0.3")

	got = AdjustTone(tone, understanding("ok", "confirm", 0), Signals{UserReceptiveness: map[string]float64{"humor": 0.05}})
	assert.Equal(t, 0.05, got.Humor, "humor is replaced, not added")

	floor := AdjustTone(Tone{Formality: 0.05}, understanding("awful", "x", -0.9), Signals{ConversationTurns: 50})
	assert.Zero(t, floor.Formality)
}

func TestSuggestActionsRespectsProactivity(t *testing.T) {
	prof := DefaultProfile()
	prof.Industry = IndustrySales
	prof.Behavior.Proactivity = 0.2
	p := New(prof)

	u := understanding("what does it cost?", "information", 0)
	assert.Empty(t, p.SuggestActions(u, Signals{}))

	p.Update(ProfileUpdate{Behavior: &BehaviorPatch{Proactivity: ptr(0.3)}})
	got := p.SuggestActions(u, Signals{})
	require.Len(t, got, 1)
	assert.Equal(t, "collect_user_info", got[0].Type)

	assert.Empty(t, p.SuggestActions(u, Signals{Variables: map[string]any{"user_email": "a@b.co"}}))
}

func TestDefaultRules(t *testing.T) {
	support := DefaultProfile()
	support.Industry = IndustrySupport

	got := SupportEscalationRule(support, understanding("this is awful", "unknown", -0.6), Signals{})
	require.Len(t, got, 1)
	assert.Equal(t, "escalate_to_human", got[0].Type)
	assert.Empty(t, SupportEscalationRule(support, understanding("meh", "unknown", -0.4), Signals{}))

	date := model.Entity{Type: "date", Value: "12/05/2024", Text: "12/05/2024"}
	got = ReminderRule(support, understanding("Remind me on 12/05/2024", "unknown", 0, date), Signals{})
	require.Len(t, got, 1)
	assert.Equal(t, "set_reminder", got[0].Type)
	assert.Equal(t, "12/05/2024", got[0].Params["time"])
	assert.Empty(t, ReminderRule(support, understanding("Ship on 12/05/2024", "unknown", 0, date), Signals{}))
}

func TestCustomRules(t *testing.T) {
	always := func(Profile, model.Understanding, Signals) []model.ActionRequest {
		return []model.ActionRequest{{Type: "custom"}}
	}
	p := New(DefaultProfile(), always)
	got := p.SuggestActions(understanding("hi", "greeting", 0), Signals{})
	require.Len(t, got, 1)
	assert.Equal(t, "custom", got[0].Type)
}

func TestSpecialResponse(t *testing.T) {
	prof := DefaultProfile()
	prof.SpecialDays = SpecialDays{
		Dates:      map[string]string{"12-25": "Merry Christmas!"},
		TimesOfDay: map[TimeOfDay]string{Morning: "Good morning!", Night: "Up late?"},
	}
	p := New(prof)

	r, ok := p.SpecialResponse(time.Date(2024, 12, 25, 9, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "Merry Christmas!", r)

	r, ok = p.SpecialResponse(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, "Good morning!", r)

	_, ok = p.SpecialResponse(time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC))
	assert.False(t, ok)

	r, _ = p.SpecialResponse(time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC))
	assert.Equal(t, "Up late?", r)
}

func TestTimeOfDayBuckets(t *testing.T) {
	at := func(h int) TimeOfDay { return TimeOfDayAt(time.Date(2024, 1, 1, h, 0, 0, 0, time.UTC)) }
	assert.Equal(t, Night, at(4))
	assert.Equal(t, Morning, at(5))
	assert.Equal(t, Afternoon, at(12))
	assert.Equal(t, Evening, at(17))
	assert.Equal(t, Night, at(22))
}

func TestUpdateMergesSections(t *testing.T) {
	prof := DefaultProfile()
	prof.Templates = map[string][]string{"greeting": {"Hi!"}, "help": {"How can I help?"}}
	prof.Traits = []string{"helpful", "patient"}
	p := New(prof)

	got := p.Update(ProfileUpdate{
		Tone:      &TonePatch{Humor: ptr(0.9)},
		Templates: map[string][]string{"greeting": {"Hey there!"}},
		Industry:  ptr(IndustrySales),
		Traits:    []string{"bold"},
	})
	assert.Equal(t, 0.9, got.Tone.Humor)
	assert.Equal(t, prof.Tone.Formality, got.Tone.Formality, "untouched fields keep their values")
	assert.Equal(t, []string{"Hey there!"}, got.Templates["greeting"])
	assert.Equal(t, []string{"How can I help?"}, got.Templates["help"])
	assert.Equal(t, IndustrySales, got.Industry)
	assert.Equal(t, []string{"bold"}, got.Traits)

	got = p.Update(ProfileUpdate{Tone: &TonePatch{Empathy: ptr(3.0)}})
	assert.Equal(t, 1.0, got.Tone.Empathy)
}

func TestResponseOptions(t *testing.T) {
	prof := DefaultProfile()
	prof.Templates = map[string][]string{"greeting": {"Hello {name}!"}}
	prof.SpecialDays.TimesOfDay = map[TimeOfDay]string{Evening: "Good evening!"}
	p := New(prof)

	c := model.NewConversationContext("s1", time.Now())
	c.TurnCount = 10
	opts := p.ResponseOptions(understanding("hello", "greeting", 0), SignalsFrom(c), time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC))
	assert.Equal(t, []string{"Hello {name}!"}, opts.Templates)
	assert.InDelta(t, 0.3, opts.Tone.Formality, 1e-9)
	assert.Equal(t, "Good evening!", opts.SpecialResponse)
	assert.Equal(t, prof.Voice.EmojiFrequency, opts.Voice.EmojiFrequency)
}

func TestMonthDayString(t *testing.T) {
	assert.Equal(t, "02-07", MonthDay{Month: time.February, Day: 7}.String())
}
