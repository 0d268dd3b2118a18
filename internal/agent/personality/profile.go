// Package personality holds a bot's tone and behaviour and turns them into
// per-turn response options.
package personality

import (
	"fmt"
	"time"
)

const (
	IndustrySales     = "sales"
	IndustrySupport   = "support"
	IndustryAssistant = "assistant"
)

type Tone struct {
	Formality    float64 `json:"formality" yaml:"formality"`
	Friendliness float64 `json:"friendliness" yaml:"friendliness"`
	Humor        float64 `json:"humor" yaml:"humor"`
	Empathy      float64 `json:"empathy" yaml:"empathy"`
}

type Behavior struct {
	Proactivity float64 `json:"proactivity" yaml:"proactivity"`
	Verbosity   float64 `json:"verbosity" yaml:"verbosity"`
	Persistence float64 `json:"persistence" yaml:"persistence"`
	Creativity  float64 `json:"creativity" yaml:"creativity"`
}

type Voice struct {
	EmojiFrequency float64  `json:"emojiFrequency" yaml:"emojiFrequency"`
	Emojis         []string `json:"emojis,omitempty" yaml:"emojis,omitempty"`
	Signoffs       []string `json:"signoffs,omitempty" yaml:"signoffs,omitempty"`
}

// TimeOfDay buckets: morning 5-12, afternoon 12-17, evening 17-22, night
// otherwise.
type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

func TimeOfDayAt(t time.Time) TimeOfDay {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 22:
		return Evening
	default:
		return Night
	}
}

// MonthDay keys date-specific responses; its string form is "MM-DD".
type MonthDay struct {
	Month time.Month
	Day   int
}

func MonthDayOf(t time.Time) MonthDay {
	return MonthDay{Month: t.Month(), Day: t.Day()}
}

func (md MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day)
}

// SpecialDays holds override responses. Dates are keyed by MonthDay.String.
type SpecialDays struct {
	Dates      map[string]string    `json:"dates,omitempty" yaml:"dates,omitempty"`
	TimesOfDay map[TimeOfDay]string `json:"timesOfDay,omitempty" yaml:"timesOfDay,omitempty"`
}

type Profile struct {
	Tone        Tone                `json:"tone" yaml:"tone"`
	Behavior    Behavior            `json:"behavior" yaml:"behavior"`
	Voice       Voice               `json:"voice" yaml:"voice"`
	Industry    string              `json:"industry" yaml:"industry"`
	Traits      []string            `json:"traits,omitempty" yaml:"traits,omitempty"`
	SpecialDays SpecialDays         `json:"specialDays" yaml:"specialDays"`
	Templates   map[string][]string `json:"templates,omitempty" yaml:"templates,omitempty"`
}

// DefaultProfile is a balanced, friendly assistant.
func DefaultProfile() Profile {
	return Profile{
		Tone:     Tone{Formality: 0.5, Friendliness: 0.7, Humor: 0.3, Empathy: 0.6},
		Behavior: Behavior{Proactivity: 0.5, Verbosity: 0.5, Persistence: 0.5, Creativity: 0.5},
		Voice: Voice{
			EmojiFrequency: 0.2,
			Emojis:         []string{"😊", "👍", "✨"},
			Signoffs:       []string{"Anything else I can help with?", "Happy to help!"},
		},
		Industry:  IndustryAssistant,
		Traits:    []string{"helpful"},
		Templates: map[string][]string{},
	}
}

func (p Profile) clone() Profile {
	cp := p
	cp.Voice.Emojis = append([]string(nil), p.Voice.Emojis...)
	cp.Voice.Signoffs = append([]string(nil), p.Voice.Signoffs...)
	cp.Traits = append([]string(nil), p.Traits...)
	cp.Templates = make(map[string][]string, len(p.Templates))
	for k, v := range p.Templates {
		cp.Templates[k] = append([]string(nil), v...)
	}
	cp.SpecialDays.Dates = make(map[string]string, len(p.SpecialDays.Dates))
	for k, v := range p.SpecialDays.Dates {
		cp.SpecialDays.Dates[k] = v
	}
	cp.SpecialDays.TimesOfDay = make(map[TimeOfDay]string, len(p.SpecialDays.TimesOfDay))
	for k, v := range p.SpecialDays.TimesOfDay {
		cp.SpecialDays.TimesOfDay[k] = v
	}
	return cp
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
