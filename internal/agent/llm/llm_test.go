package llm

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chative/botcore/internal/agent/knowledge"
	"github.com/chative/botcore/internal/agent/model"
	"github.com/chative/botcore/internal/agent/personality"
	"github.com/chative/botcore/internal/agent/response"
	"github.com/chative/botcore/internal/metrics"
)

type fakeChat struct {
	out  *schema.Message
	err  error
	last []*schema.Message
}

func (f *fakeChat) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.last = input
	return f.out, f.err
}

func TestComputeCost(t *testing.T) {
	c := ComputeCost("gemini-2.5-flash", &schema.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 200_000, TotalTokens: 1_200_000})
	assert.InDelta(t, 0.30, c.InputCost, 1e-9)
	assert.InDelta(t, 0.50, c.OutputCost, 1e-9)
	assert.InDelta(t, 0.80, c.TotalCost, 1e-9)
	assert.Equal(t, "USD", c.Currency)

	unknown := ComputeCost("some-other-model", &schema.TokenUsage{PromptTokens: 100})
	assert.Zero(t, unknown.TotalCost)
	assert.Equal(t, 100, unknown.PromptTokens)

	_, ok := UsageOf("gemini-2.5-flash", schema.AssistantMessage("x", nil))
	assert.False(t, ok)
}

func TestNewChatModels_RequiresKey(t *testing.T) {
	_, err := NewChatModels(context.Background(), model.LLMConfig{})
	require.Error(t, err)
}

func rewriteInput() response.Input {
	return response.Input{
		Understanding: model.Understanding{
			Intent:   model.Intent{Name: "information", Confidence: 0.8},
			Language: "en",
		},
		Knowledge: knowledge.Result{
			Found:       true,
			Information: &knowledge.Information{Content: "We ship worldwide."},
			Sources: []knowledge.Item{
				{ID: "a", Content: "We ship worldwide."},
				{ID: "b", Content: "Returns are free within 30 days."},
			},
		},
		Options: personality.ResponseOptions{
			Tone:     personality.Tone{Formality: 0.9, Friendliness: 0.4},
			Industry: "retail",
		},
	}
}

func TestRewriter_RendersPromptAndRecordsUsage(t *testing.T) {
	out := schema.AssistantMessage("  We ship to every country.  ", nil)
	out.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 1000, CompletionTokens: 100, TotalTokens: 1100}}
	chat := &fakeChat{out: out}
	m := metrics.New()

	r, err := NewRewriter(chat, "gemini-2.5-flash", 0, m)
	require.NoError(t, err)

	text, err := r.Rewrite(context.Background(), "We ship worldwide.", rewriteInput())
	require.NoError(t, err)
	assert.Equal(t, "We ship to every country.", text)

	require.Len(t, chat.last, 2)
	system := chat.last[0].Content
	assert.Contains(t, system, "retail assistant")
	assert.Contains(t, system, "formality: 0.9")
	assert.Contains(t, system, `"information"`)
	assert.Contains(t, system, "- Returns are free within 30 days.")
	assert.Equal(t, "DRAFT:\nWe ship worldwide.", chat.last[1].Content)

	assert.Equal(t, 1000.0, testutil.ToFloat64(m.LLMTokensTotal.WithLabelValues("gemini-2.5-flash", "prompt")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.LLMTokensTotal.WithLabelValues("gemini-2.5-flash", "completion")))
}

func TestRewriter_Failures(t *testing.T) {
	r, err := NewRewriter(&fakeChat{err: errors.New("quota")}, "m", 0, nil)
	require.NoError(t, err)
	_, err = r.Rewrite(context.Background(), "draft", rewriteInput())
	require.Error(t, err)

	r, err = NewRewriter(&fakeChat{out: schema.AssistantMessage("   ", nil)}, "m", 0, nil)
	require.NoError(t, err)
	_, err = r.Rewrite(context.Background(), "draft", rewriteInput())
	require.Error(t, err)

	_, err = NewRewriter(nil, "m", 0, nil)
	require.Error(t, err)
}
