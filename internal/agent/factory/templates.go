package factory

import (
	"sort"

	"github.com/chative/botcore/internal/agent/actions"
	"github.com/chative/botcore/internal/agent/knowledge"
	"github.com/chative/botcore/internal/agent/personality"
)

const (
	TemplateSales     = "sales"
	TemplateSupport   = "support"
	TemplateAssistant = "assistant"
)

// templates are partial configs layered between DefaultConfig and the
// caller's overrides. Arrays in a template replace the defaults.
var templates = map[string]func() map[string]any{
	TemplateSales:     salesTemplate,
	TemplateSupport:   supportTemplate,
	TemplateAssistant: assistantTemplate,
}

// Templates lists the template names in order.
func Templates() []string {
	names := make([]string, 0, len(templates))
	for n := range templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func salesTemplate() map[string]any {
	return map[string]any{
		"name": "Sales Assistant",
		"personalityProfile": map[string]any{
			"tone":     map[string]any{"formality": 0.4, "friendliness": 0.9, "humor": 0.4, "empathy": 0.6},
			"behavior": map[string]any{"proactivity": 0.8, "persistence": 0.7},
			"voice":    map[string]any{"emojiFrequency": 0.3},
			"industry": personality.IndustrySales,
			"traits":   []string{"enthusiastic", "persuasive", "helpful"},
			"templates": map[string]any{
				"pricing": []string{"Happy to talk pricing! Our plans start at $29/month. Want me to set up a demo?"},
			},
		},
		"knowledge": map[string]any{
			"sources": []map[string]any{{
				"id":   "sales-faq",
				"type": knowledge.SourceFAQ,
				"faqs": []map[string]any{
					{
						"id":       "pricing",
						"question": "How much does it cost?",
						"answer":   "Plans start at $29/month, with annual discounts available.",
						"keywords": []string{"price", "pricing", "cost", "plan"},
						"intents":  []string{"pricing", "information"},
					},
					{
						"id":          "demo",
						"question":    "Can I get a demo?",
						"answer":      "Yes! Demos take 30 minutes and can be booked any weekday.",
						"keywords":    []string{"demo", "trial", "walkthrough"},
						"intents":     []string{"book_demo", "information"},
						"contentType": knowledge.ContentBooking,
						"actions":     []string{actions.ActionScheduleDemo},
					},
				},
			}},
		},
		"availableActions": []string{
			actions.ActionCollectUserInfo,
			actions.ActionScheduleDemo,
			actions.ActionCreateBooking,
			actions.ToolSearchProducts,
			actions.ToolGetProductDetails,
		},
		"nlu": map[string]any{
			"intents": []map[string]any{
				{"name": "pricing", "keywords": []string{"price", "pricing", "cost", "how much"}},
				{"name": "book_demo", "keywords": []string{"demo", "trial"}, "action": actions.ActionScheduleDemo},
			},
		},
	}
}

func supportTemplate() map[string]any {
	return map[string]any{
		"name": "Support Agent",
		"personalityProfile": map[string]any{
			"tone":     map[string]any{"formality": 0.6, "friendliness": 0.7, "humor": 0.1, "empathy": 0.9},
			"behavior": map[string]any{"proactivity": 0.6, "persistence": 0.8},
			"voice":    map[string]any{"emojiFrequency": 0.05},
			"industry": personality.IndustrySupport,
			"traits":   []string{"patient", "empathetic", "thorough"},
		},
		"knowledge": map[string]any{
			"sources": []map[string]any{{
				"id":   "support-docs",
				"type": knowledge.SourceDocument,
				"documents": []map[string]any{
					{
						"id":      "reset-password",
						"title":   "Resetting your password",
						"content": "Open the login page and choose Forgot password. We email a reset link that is valid for one hour. If it does not arrive, check your spam folder.",
						"tags":    []string{"password", "login", "account"},
					},
					{
						"id":      "refunds",
						"title":   "Refund policy",
						"content": "Refunds are available within 30 days of purchase. Approved refunds reach your account in 5 to 7 business days.",
						"tags":    []string{"refund", "money", "return"},
					},
				},
			}},
		},
		"availableActions": []string{
			actions.ActionCreateTicket,
			actions.ActionEscalateToHuman,
			actions.ActionCheckOrderStatus,
			actions.ActionCollectUserInfo,
		},
		"nlu": map[string]any{
			"intents": []map[string]any{
				{"name": "report_issue", "keywords": []string{"broken", "not working", "error", "bug"}, "action": actions.ActionCreateTicket},
				{"name": "order_status", "keywords": []string{"order status", "where is my order", "tracking"}, "action": actions.ActionCheckOrderStatus},
				{"name": "human_agent", "keywords": []string{"human", "real person", "representative"}, "action": actions.ActionEscalateToHuman},
			},
			"entities": []map[string]any{
				{"type": "order_id", "pattern": `\b[A-Z]{2}-\d{4,}\b`},
			},
		},
	}
}

func assistantTemplate() map[string]any {
	return map[string]any{
		"name": "Personal Assistant",
		"personalityProfile": map[string]any{
			"tone":     map[string]any{"formality": 0.5, "friendliness": 0.8, "humor": 0.3, "empathy": 0.7},
			"behavior": map[string]any{"proactivity": 0.5},
			"industry": personality.IndustryAssistant,
			"traits":   []string{"organized", "reliable"},
			"specialDays": map[string]any{
				"dates": map[string]any{"01-01": "Happy New Year! What can I help you plan this year?"},
			},
		},
		"availableActions": []string{
			actions.ActionCreateBooking,
			actions.ActionFillForm,
		},
		"nlu": map[string]any{
			"intents": []map[string]any{
				{"name": "booking", "keywords": []string{"book", "appointment", "reserve"}, "action": actions.ActionCreateBooking},
				{"name": "reminder", "keywords": []string{"remind me", "reminder"}},
			},
		},
	}
}
