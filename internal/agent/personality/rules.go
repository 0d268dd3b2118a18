package personality

import (
	"strings"

	"github.com/chative/botcore/internal/agent/model"
)

// Rule proposes proactive actions for one turn.
type Rule func(p Profile, u model.Understanding, s Signals) []model.ActionRequest

const strongNegativeSentiment = -0.5

var (
	contactKeys   = []string{"email", "user_email", "phone", "user_phone"}
	reminderWords = []string{"remind", "reminder", "don't forget", "dont forget"}
)

func DefaultRules() []Rule {
	return []Rule{SalesContactRule, SupportEscalationRule, ReminderRule}
}

// SalesContactRule asks for contact details when a sales prospect is
// asking questions and none are known yet.
func SalesContactRule(p Profile, u model.Understanding, s Signals) []model.ActionRequest {
	if p.Industry != IndustrySales || u.Intent.Name != "information" {
		return nil
	}
	for _, k := range contactKeys {
		if _, ok := s.Entities[k]; ok {
			return nil
		}
		if _, ok := s.Variables[k]; ok {
			return nil
		}
	}
	if _, ok := u.FirstEntity("email"); ok {
		return nil
	}
	return []model.ActionRequest{{Type: "collect_user_info", Params: map[string]any{"reason": "sales_inquiry"}}}
}

// SupportEscalationRule hands strongly unhappy support users to a human.
func SupportEscalationRule(p Profile, u model.Understanding, _ Signals) []model.ActionRequest {
	if p.Industry != IndustrySupport || u.Sentiment.Score >= strongNegativeSentiment {
		return nil
	}
	return []model.ActionRequest{{Type: "escalate_to_human", Params: map[string]any{"reason": "negative_sentiment"}}}
}

// ReminderRule offers a reminder when the user mentions a date and asks to
// be reminded.
func ReminderRule(_ Profile, u model.Understanding, _ Signals) []model.ActionRequest {
	date, ok := u.FirstEntity("date")
	if !ok {
		return nil
	}
	lower := strings.ToLower(u.Text)
	for _, w := range reminderWords {
		if strings.Contains(lower, w) {
			return []model.ActionRequest{{
				Type:   "set_reminder",
				Params: map[string]any{"time": date.Text, "message": u.Text},
			}}
		}
	}
	return nil
}
