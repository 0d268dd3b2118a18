package response

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative/botcore/internal/agent/knowledge"
	"github.com/chative/botcore/internal/agent/model"
	"github.com/chative/botcore/internal/agent/personality"
)

// quiet disables the probabilistic voice so the unmodified text is tested.
func quiet() *Generator {
	return NewGenerator(model.ResponseConfig{SignoffProbability: 0, Seed: 42})
}

func input(text, intent string) Input {
	return Input{
		Understanding: model.Understanding{Text: text, Intent: model.Intent{Name: intent, Confidence: 0.8}},
		Context:       model.NewConversationContext("s1", time.Now()),
		Options:       personality.ResponseOptions{Tone: personality.Tone{Formality: 0.5, Empathy: 0.5}},
	}
}

func TestGreetingHasQuickReplies(t *testing.T) {
	out := quiet().Generate(context.Background(), input("Hello", "greeting"))
	assert.Equal(t, DefaultCopy().GreetingCasual, out.Text)
	assert.NotEmpty(t, out.QuickReplies)
	assert.Equal(t, SourceHandler, out.Metadata["source"])

	formal := input("Hello", "greeting")
	formal.Options.Tone.Formality = 0.9
	assert.Equal(t, DefaultCopy().GreetingFormal, quiet().Generate(context.Background(), formal).Text)

	special := input("Hello", "greeting")
	special.Options.SpecialResponse = "Happy new year!"
	assert.Equal(t, "Happy new year!", quiet().Generate(context.Background(), special).Text)
}

func TestTemplatesOverrideBranchCopy(t *testing.T) {
	in := input("hi", "greeting")
	in.Understanding.Entities = []model.Entity{{Type: "email", Value: "ana@example.com", Text: "ana@example.com"}}
	in.Context.Variables["name"] = "Ana"
	in.Options.Templates = []string{"Welcome back {name}, we'll write to {email}. {missing}"}

	out := quiet().Generate(context.Background(), in)
	assert.Equal(t, "Welcome back Ana, we'll write to ana@example.com.", out.Text)
}

func TestUnknownIntentUsesTemplateThenFallback(t *testing.T) {
	in := input("asdf", model.IntentUnknown)
	out := quiet().Generate(context.Background(), in)
	assert.Contains(t, DefaultCopy().Fallbacks, out.Text)
	assert.Equal(t, SourceFallback, out.Metadata["source"])

	in.Options.Templates = []string{"Custom unknown reply."}
	out = quiet().Generate(context.Background(), in)
	assert.Equal(t, "Custom unknown reply.", out.Text)
	assert.Equal(t, SourceTemplate, out.Metadata["source"])
}

func TestCustomIntentFallsBackToKnowledge(t *testing.T) {
	in := input("opening hours please", "hours")
	in.Knowledge = knowledge.Result{Found: true, Information: &knowledge.Information{Content: "9 AM to 5 PM"}}

	out := quiet().Generate(context.Background(), in)
	assert.Equal(t, "9 AM to 5 PM", out.Text)
	assert.Equal(t, SourceKnowledge, out.Metadata["source"])

	in.Options.Templates = []string{"Our hours vary."}
	out = quiet().Generate(context.Background(), in)
	assert.Equal(t, SourceTemplate, out.Metadata["source"])
}

func TestInformationUsesKnowledge(t *testing.T) {
	in := input("What are your opening hours?", "information")
	in.Knowledge = knowledge.Result{
		Found:       true,
		Information: &knowledge.Information{Content: "We are open 9 to 5.", Related: []string{"Holiday hours"}},
		SuggestedActions: []model.ActionRequest{
			{Type: "fill_form"},
		},
	}
	in.Options.SuggestedActions = []model.ActionRequest{{Type: "collect_user_info"}, {Type: "fill_form"}}

	out := quiet().Generate(context.Background(), in)
	assert.Equal(t, "We are open 9 to 5.", out.Text)
	assert.Equal(t, []string{"Holiday hours"}, out.QuickReplies)
	require.Len(t, out.SuggestedActions, 2)
	assert.Equal(t, "fill_form", out.SuggestedActions[0].Type)
	assert.Equal(t, "collect_user_info", out.SuggestedActions[1].Type)

	missing := quiet().Generate(context.Background(), input("what is the meaning of life", "information"))
	assert.Equal(t, DefaultCopy().NoAnswer, missing.Text)
}

func TestCommandSummarisesActions(t *testing.T) {
	g := quiet()
	in := input("book it", "command")
	assert.Equal(t, DefaultCopy().CommandUnknown, g.Generate(context.Background(), in).Text)

	in.ActionResults = []model.ActionResult{{Type: "create_booking", Success: true}}
	assert.Equal(t, DefaultCopy().CommandDone, g.Generate(context.Background(), in).Text)

	in.ActionResults = append(in.ActionResults, model.ActionResult{Type: "process_payment", Error: "declined"})
	assert.Contains(t, g.Generate(context.Background(), in).Text, "process_payment")
}

func TestOtherIntentsMentionCompletedActions(t *testing.T) {
	in := input("thanks", "thanks")
	in.ActionResults = []model.ActionResult{{Type: "set_reminder", Success: true}, {Type: "create_ticket"}}
	out := quiet().Generate(context.Background(), in)
	assert.Equal(t, DefaultCopy().Thanks+" "+DefaultCopy().AlsoDone+" set reminder.", out.Text)
	assert.Empty(t, out.SuggestedActions)
}

func TestEmpathyPrefix(t *testing.T) {
	in := input("this is terrible", "statement")
	in.Understanding.Sentiment.Score = -0.6
	in.Options.Tone.Empathy = 0.9
	out := quiet().Generate(context.Background(), in)
	assert.True(t, strings.HasPrefix(out.Text, DefaultCopy().Empathy))
}

func TestVoiceDecoration(t *testing.T) {
	in := input("bye", "thanks")
	in.Options.Voice = personality.Voice{EmojiFrequency: 1, Emojis: []string{"🎉"}, Signoffs: []string{"Cheers!"}}

	g := NewGenerator(model.ResponseConfig{SignoffProbability: 1, Seed: 7})
	out := g.Generate(context.Background(), in)
	assert.Equal(t, DefaultCopy().Thanks+" 🎉\n\nCheers!", out.Text)

	in.Understanding.Intent.Name = "farewell"
	out = g.Generate(context.Background(), in)
	assert.Equal(t, DefaultCopy().Farewell+" 🎉", out.Text, "no signoff after a farewell")
}

func TestSeededGeneratorsAgree(t *testing.T) {
	in := input("???", model.IntentUnknown)
	a := NewGenerator(model.ResponseConfig{Seed: 99})
	b := NewGenerator(model.ResponseConfig{Seed: 99})
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.Generate(context.Background(), in).Text, b.Generate(context.Background(), in).Text)
	}
}

type stubRewriter struct {
	out string
	err error
}

func (s stubRewriter) Rewrite(context.Context, string, Input) (string, error) { return s.out, s.err }

func TestRewriter(t *testing.T) {
	in := input("hello", "greeting")
	g := NewGenerator(model.ResponseConfig{Seed: 1}, WithRewriter(stubRewriter{out: "  Howdy!  "}))
	assert.Equal(t, "Howdy!", g.Generate(context.Background(), in).Text)

	g = NewGenerator(model.ResponseConfig{Seed: 1}, WithRewriter(stubRewriter{err: errors.New("quota")}))
	assert.Equal(t, DefaultCopy().GreetingCasual, g.Generate(context.Background(), in).Text)
}

func TestCustomCopy(t *testing.T) {
	c := DefaultCopy()
	c.Farewell = "See ya."
	g := NewGenerator(model.ResponseConfig{Seed: 1}, WithCopy(c))
	assert.Equal(t, "See ya.", g.Generate(context.Background(), input("bye", "farewell")).Text)
}
