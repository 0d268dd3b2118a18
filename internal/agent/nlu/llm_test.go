package nlu

import (
	"context"
	"errors"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChat struct {
	content string
	err     error
	calls   int
	last    []*schema.Message
}

func (f *fakeChat) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.calls++
	f.last = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.content, nil), nil
}

func TestParseAnalysis(t *testing.T) {
	content := "(intent<||>Book_Demo<||>0.9)##(intent<||>information<||>0.4)##" +
		"(entity<||>date<||>tomorrow<||>0.8)##(language<||>en<||>0.99)##" +
		"(sentiment<||>positive<||>0.5<||>{\"reason\":\"polite\"})##(bogus)##" +
		"(intent<||>x<||>7)<|COMPLETE|>(intent<||>ignored<||>1)"

	a, err := ParseAnalysis(content)
	require.NoError(t, err)

	require.Len(t, a.Intents, 2)
	best, ok := a.BestIntent()
	require.True(t, ok)
	assert.Equal(t, "book_demo", best.Name)
	assert.Equal(t, 0.9, best.Confidence)

	require.Len(t, a.Entities, 1)
	assert.Equal(t, "tomorrow", a.Entities[0].Value)
	assert.Equal(t, "en", a.Language)
	assert.True(t, a.HasSentiment)
	assert.Equal(t, 0.5, a.SentimentScore)
	assert.Len(t, a.Errors, 2)
}

func TestParseAnalysis_Limits(t *testing.T) {
	a, err := ParseAnalysis(strings.Repeat("(intent<||>a<||>0.5)##", maxRecords+10))
	require.NoError(t, err)
	assert.True(t, a.RecordsCapped)
	assert.Len(t, a.Intents, maxRecords)

	a, err = ParseAnalysis(strings.Repeat("x", maxContentLen+1))
	require.NoError(t, err)
	assert.True(t, a.Truncated)
}

func TestLLMEngine_UsesModelIntent(t *testing.T) {
	kw := newEngine(t, Options{Intents: []IntentDefinition{{Name: "book_demo", Keywords: []string{"demo"}, Action: "schedule_demo"}}})
	chat := &fakeChat{content: "(intent<||>book_demo<||>0.95)##(sentiment<||>negative<||>-0.4)<|COMPLETE|>"}
	e, err := NewLLMEngine(chat, kw, 0)
	require.NoError(t, err)

	u := e.Process(context.Background(), "could I see the product in action")
	assert.Equal(t, "book_demo", u.Intent.Name)
	assert.True(t, u.Intent.Actionable)
	assert.Equal(t, "schedule_demo", u.Intent.Action)
	assert.InDelta(t, -0.4, u.Sentiment.Score, 1e-9)
	assert.Equal(t, 1, chat.calls)
	require.Len(t, chat.last, 2)
	assert.Contains(t, chat.last[0].Content, "book_demo")
}

func TestLLMEngine_FallsBackOnError(t *testing.T) {
	kw := newEngine(t, Options{})
	e, err := NewLLMEngine(&fakeChat{err: errors.New("quota")}, kw, 0)
	require.NoError(t, err)

	u := e.Process(context.Background(), "hello")
	assert.Equal(t, "greeting", u.Intent.Name)
	assert.False(t, u.Error)
}

func TestLLMEngine_LowConfidenceKeepsKeywordResult(t *testing.T) {
	kw := newEngine(t, Options{})
	e, err := NewLLMEngine(&fakeChat{content: "(intent<||>farewell<||>0.2)"}, kw, 0)
	require.NoError(t, err)

	u := e.Process(context.Background(), "hello")
	assert.Equal(t, "greeting", u.Intent.Name)
}

func TestLLMEngine_OnCompletionSeesEveryCompletion(t *testing.T) {
	kw := newEngine(t, Options{})
	chat := &fakeChat{content: "(intent<||>greeting<||>0.9)<|COMPLETE|>"}
	e, err := NewLLMEngine(chat, kw, 0)
	require.NoError(t, err)

	var seen []string
	e.OnCompletion(func(msg *schema.Message) { seen = append(seen, msg.Content) })

	e.Process(context.Background(), "hello")
	e.Process(context.Background(), "hey")
	assert.Len(t, seen, 2)

	chat.err = errors.New("boom")
	e.Process(context.Background(), "hi")
	assert.Len(t, seen, 2)
}
