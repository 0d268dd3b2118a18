// Package learning aggregates per-bot interaction statistics.
package learning

import (
	"context"
	"sync"
	"time"

	"github.com/chative/botcore/internal/agent/model"
	"github.com/chative/botcore/internal/metrics"
)

const DefaultUnknownSamples = 100

// Interaction is one completed turn as seen by the learner.
type Interaction struct {
	BotID         string
	UserID        string
	SessionID     string
	Message       string
	Understanding model.Understanding
	Actions       []model.ActionResult
	Response      string
	Timestamp     time.Time
}

type Learner interface {
	Learn(ctx context.Context, in Interaction) error
}

type ActionStats struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// UnknownSample is a message the NLU could not classify.
type UnknownSample struct {
	Text      string    `json:"text"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

type Stats struct {
	Interactions     int                    `json:"interactions"`
	Intents          map[string]int         `json:"intents"`
	Actions          map[string]ActionStats `json:"actions"`
	Unknown          []UnknownSample        `json:"unknown"`
	AverageSentiment float64                `json:"averageSentiment"`
}

type botStats struct {
	interactions int
	sentimentSum float64
	intents      map[string]int
	actions      map[string]ActionStats
	unknown      []UnknownSample
	next         int
}

// InMemoryLearner keeps counters in process. Unrecognized messages go into a
// fixed-size ring per bot.
type InMemoryLearner struct {
	mu      sync.Mutex
	bots    map[string]*botStats
	samples int
	metrics *metrics.Metrics
}

func NewInMemoryLearner(samples int, m *metrics.Metrics) *InMemoryLearner {
	if samples <= 0 {
		samples = DefaultUnknownSamples
	}
	return &InMemoryLearner{bots: make(map[string]*botStats), samples: samples, metrics: m}
}

func (l *InMemoryLearner) Learn(ctx context.Context, in Interaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bots[in.BotID]
	if !ok {
		b = &botStats{intents: map[string]int{}, actions: map[string]ActionStats{}}
		l.bots[in.BotID] = b
	}
	b.interactions++
	b.sentimentSum += in.Understanding.Sentiment.Score

	intent := in.Understanding.Intent.Name
	if intent == "" {
		intent = model.IntentUnknown
	}
	b.intents[intent]++
	if intent == model.IntentUnknown && in.Message != "" {
		sample := UnknownSample{Text: in.Message, UserID: in.UserID, Timestamp: in.Timestamp}
		if len(b.unknown) < l.samples {
			b.unknown = append(b.unknown, sample)
		} else {
			b.unknown[b.next] = sample
		}
		b.next = (b.next + 1) % l.samples
	}

	for _, r := range in.Actions {
		s := b.actions[r.Type]
		if r.Success {
			s.Success++
		} else {
			s.Failure++
		}
		b.actions[r.Type] = s
	}
	l.metrics.RecordLearning(in.BotID)
	return nil
}

// Stats returns a copy of the counters for botID; unknown samples are oldest
// first.
func (l *InMemoryLearner) Stats(botID string) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := Stats{Intents: map[string]int{}, Actions: map[string]ActionStats{}, Unknown: []UnknownSample{}}
	b, ok := l.bots[botID]
	if !ok {
		return out
	}
	out.Interactions = b.interactions
	if b.interactions > 0 {
		out.AverageSentiment = b.sentimentSum / float64(b.interactions)
	}
	for k, v := range b.intents {
		out.Intents[k] = v
	}
	for k, v := range b.actions {
		out.Actions[k] = v
	}
	if len(b.unknown) < l.samples {
		out.Unknown = append(out.Unknown, b.unknown...)
	} else {
		out.Unknown = append(out.Unknown, b.unknown[b.next:]...)
		out.Unknown = append(out.Unknown, b.unknown[:b.next]...)
	}
	return out
}

var _ Learner = (*InMemoryLearner)(nil)
