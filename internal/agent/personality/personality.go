package personality

import (
	"math"
	"sync"
	"time"

	"github.com/chative/botcore/internal/agent/model"
)

const (
	negativeSentiment  = -0.3
	longConversation   = 5
	formalityPerTurn   = 0.02
	maxFormalityShift  = 0.3
	minProactivity     = 0.3
	receptivenessHumor = "humor"
)

// Signals is what the personality reads from the conversation.
type Signals struct {
	ConversationTurns int
	UserReceptiveness map[string]float64
	Entities          map[string]any
	Variables         map[string]any
}

func SignalsFrom(c *model.ConversationContext) Signals {
	if c == nil {
		return Signals{}
	}
	return Signals{
		ConversationTurns: c.TurnCount,
		UserReceptiveness: c.UserReceptiveness,
		Entities:          c.Entities,
		Variables:         c.Variables,
	}
}

type ResponseOptions struct {
	Tone             Tone
	Behavior         Behavior
	Voice            Voice
	Industry         string
	Templates        []string
	SuggestedActions []model.ActionRequest
	SpecialResponse  string
}

// Personality is a bot's profile plus its suggestion rules. Safe for
// concurrent use.
type Personality struct {
	mu      sync.RWMutex
	profile Profile
	rules   []Rule
}

// New builds a Personality; with no rules the default rule set is used.
func New(p Profile, rules ...Rule) *Personality {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Personality{profile: p.clone(), rules: rules}
}

func (p *Personality) Profile() Profile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.profile.clone()
}

// ResponseOptions adjusts the tone for this turn and gathers templates,
// suggested actions and any special-day response.
func (p *Personality) ResponseOptions(u model.Understanding, s Signals, now time.Time) ResponseOptions {
	prof := p.Profile()
	special, _ := specialResponse(prof, now)
	return ResponseOptions{
		Tone:             AdjustTone(prof.Tone, u, s),
		Behavior:         prof.Behavior,
		Voice:            prof.Voice,
		Industry:         prof.Industry,
		Templates:        prof.Templates[u.Intent.Name],
		SuggestedActions: p.SuggestActions(u, s),
		SpecialResponse:  special,
	}
}

// AdjustTone applies, in order: negative sentiment raises empathy and
// lowers formality; long conversations lower formality; a known humor
// receptiveness replaces humor.
func AdjustTone(t Tone, u model.Understanding, s Signals) Tone {
	if u.Sentiment.Score < negativeSentiment {
		t.Empathy = math.Min(1, t.Empathy+0.2)
		t.Formality = math.Max(0, t.Formality-0.1)
	}
	if s.ConversationTurns > longConversation {
		shift := math.Min(maxFormalityShift, float64(s.ConversationTurns)*formalityPerTurn)
		t.Formality = math.Max(0, t.Formality-shift)
	}
	if h, ok := s.UserReceptiveness[receptivenessHumor]; ok {
		t.Humor = clamp01(h)
	}
	return t
}

// SuggestActions runs the rules when the bot is proactive enough.
func (p *Personality) SuggestActions(u model.Understanding, s Signals) []model.ActionRequest {
	p.mu.RLock()
	prof := p.profile
	rules := p.rules
	p.mu.RUnlock()

	if prof.Behavior.Proactivity < minProactivity {
		return nil
	}
	var out []model.ActionRequest
	for _, r := range rules {
		out = append(out, r(prof, u, s)...)
	}
	return out
}

// SpecialResponse returns the date override for now, else the time-of-day
// one.
func (p *Personality) SpecialResponse(now time.Time) (string, bool) {
	return specialResponse(p.Profile(), now)
}

func specialResponse(prof Profile, now time.Time) (string, bool) {
	if r, ok := prof.SpecialDays.Dates[MonthDayOf(now).String()]; ok && r != "" {
		return r, true
	}
	if r, ok := prof.SpecialDays.TimesOfDay[TimeOfDayAt(now)]; ok && r != "" {
		return r, true
	}
	return "", false
}

type TonePatch struct {
	Formality    *float64 `json:"formality,omitempty" yaml:"formality,omitempty"`
	Friendliness *float64 `json:"friendliness,omitempty" yaml:"friendliness,omitempty"`
	Humor        *float64 `json:"humor,omitempty" yaml:"humor,omitempty"`
	Empathy      *float64 `json:"empathy,omitempty" yaml:"empathy,omitempty"`
}

type BehaviorPatch struct {
	Proactivity *float64 `json:"proactivity,omitempty" yaml:"proactivity,omitempty"`
	Verbosity   *float64 `json:"verbosity,omitempty" yaml:"verbosity,omitempty"`
	Persistence *float64 `json:"persistence,omitempty" yaml:"persistence,omitempty"`
	Creativity  *float64 `json:"creativity,omitempty" yaml:"creativity,omitempty"`
}

type VoicePatch struct {
	EmojiFrequency *float64 `json:"emojiFrequency,omitempty" yaml:"emojiFrequency,omitempty"`
	Emojis         []string `json:"emojis,omitempty" yaml:"emojis,omitempty"`
	Signoffs       []string `json:"signoffs,omitempty" yaml:"signoffs,omitempty"`
}

// ProfileUpdate merges each section field by field. Industry and Traits,
// when set, replace the current values.
type ProfileUpdate struct {
	Tone        *TonePatch          `json:"tone,omitempty" yaml:"tone,omitempty"`
	Behavior    *BehaviorPatch      `json:"behavior,omitempty" yaml:"behavior,omitempty"`
	Voice       *VoicePatch         `json:"voice,omitempty" yaml:"voice,omitempty"`
	Templates   map[string][]string `json:"templates,omitempty" yaml:"templates,omitempty"`
	SpecialDays *SpecialDays        `json:"specialDays,omitempty" yaml:"specialDays,omitempty"`
	Industry    *string             `json:"industry,omitempty" yaml:"industry,omitempty"`
	Traits      []string            `json:"traits,omitempty" yaml:"traits,omitempty"`
}

func (p *Personality) Update(u ProfileUpdate) Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	prof := p.profile.clone()

	if t := u.Tone; t != nil {
		set(&prof.Tone.Formality, t.Formality)
		set(&prof.Tone.Friendliness, t.Friendliness)
		set(&prof.Tone.Humor, t.Humor)
		set(&prof.Tone.Empathy, t.Empathy)
	}
	if b := u.Behavior; b != nil {
		set(&prof.Behavior.Proactivity, b.Proactivity)
		set(&prof.Behavior.Verbosity, b.Verbosity)
		set(&prof.Behavior.Persistence, b.Persistence)
		set(&prof.Behavior.Creativity, b.Creativity)
	}
	if v := u.Voice; v != nil {
		set(&prof.Voice.EmojiFrequency, v.EmojiFrequency)
		if v.Emojis != nil {
			prof.Voice.Emojis = append([]string(nil), v.Emojis...)
		}
		if v.Signoffs != nil {
			prof.Voice.Signoffs = append([]string(nil), v.Signoffs...)
		}
	}
	for intent, templates := range u.Templates {
		prof.Templates[intent] = append([]string(nil), templates...)
	}
	if sd := u.SpecialDays; sd != nil {
		for k, v := range sd.Dates {
			prof.SpecialDays.Dates[k] = v
		}
		for k, v := range sd.TimesOfDay {
			prof.SpecialDays.TimesOfDay[k] = v
		}
	}
	if u.Industry != nil {
		prof.Industry = *u.Industry
	}
	if u.Traits != nil {
		prof.Traits = append([]string(nil), u.Traits...)
	}
	p.profile = prof
	return prof.clone()
}

func set(dst *float64, v *float64) {
	if v != nil {
		*dst = clamp01(*v)
	}
}
