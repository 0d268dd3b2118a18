package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chative/botcore/internal/agent/knowledge"
	"github.com/chative/botcore/internal/agent/memory"
	"github.com/chative/botcore/internal/agent/model"
)

const (
	ActionSearchKnowledgeBase  = "search_knowledge_base"
	ActionGetCurrentTime       = "get_current_time"
	ActionGetUserProfile       = "get_user_profile"
	ActionSaveConversationNote = "save_conversation_note"
	ActionSetReminder          = "set_reminder"

	CategorySystem = "system"

	reminderImportance = 7
)

var (
	errNoKnowledge = errors.New("knowledge base unavailable")
	errNoMemory    = errors.New("memory store unavailable")
)

func systemDefinitions() []Definition {
	return []Definition{
		{
			Name:           ActionSearchKnowledgeBase,
			Description:    "Search the bot's knowledge base",
			Handler:        searchKnowledgeBase,
			RequiredParams: []string{"query"},
			Category:       CategorySystem,
			Permission:     PermissionPublic,
			ReturnsData:    true,
		},
		{
			Name:        ActionGetCurrentTime,
			Description: "Current time, optionally in a named time zone",
			Handler:     getCurrentTime,
			Category:    CategorySystem,
			Permission:  PermissionPublic,
			ReturnsData: true,
		},
		{
			Name:        ActionGetUserProfile,
			Description: "Profile and contact details remembered for the user",
			Handler:     getUserProfile,
			Category:    CategorySystem,
			Permission:  PermissionUser,
			ReturnsData: true,
		},
		{
			Name:           ActionSaveConversationNote,
			Description:    "Save a note about the conversation",
			Handler:        saveConversationNote,
			RequiredParams: []string{"note"},
			Category:       CategorySystem,
			Permission:     PermissionUser,
			ReturnsData:    true,
		},
		{
			Name:           ActionSetReminder,
			Description:    "Remember something for the user at a given time",
			Handler:        setReminder,
			RequiredParams: []string{"message", "time"},
			Category:       CategorySystem,
			Permission:     PermissionUser,
			ReturnsData:    true,
		},
	}
}

func searchKnowledgeBase(ctx context.Context, params map[string]any, ec ExecutionContext) (any, error) {
	if ec.Knowledge == nil {
		return nil, errNoKnowledge
	}
	query := stringParam(params, "query")
	if query == "" {
		return nil, fmt.Errorf("query must be a non-empty string")
	}
	intent := stringParam(params, "intent")
	if intent == "" {
		intent = "information"
	}
	res := ec.Knowledge.Query(ctx, knowledge.Query{
		Understanding: model.Understanding{Text: query, Intent: model.Intent{Name: intent}},
		UserID:        ec.UserID,
	})
	if res.Error != "" {
		return nil, errors.New(res.Error)
	}
	return map[string]any{
		"found":       res.Found,
		"confidence":  res.Confidence,
		"results":     res.Sources,
		"information": res.Information,
	}, nil
}

func getCurrentTime(_ context.Context, params map[string]any, ec ExecutionContext) (any, error) {
	now := ec.now()
	tz := stringParam(params, "timezone")
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %s", tz)
		}
		now = now.In(loc)
	}
	return map[string]any{
		"time":     now.Format(time.RFC3339),
		"timezone": now.Location().String(),
		"unix":     now.Unix(),
	}, nil
}

func getUserProfile(ctx context.Context, _ map[string]any, ec ExecutionContext) (any, error) {
	profile := map[string]any{
		"userId":     ec.UserID,
		"permission": ec.Permission.String(),
	}
	if ec.Memory == nil {
		return profile, nil
	}
	contacts, err := ec.Memory.Retrieve(ctx, ec.UserID, memory.Filter{Type: model.MemoryContact})
	if err != nil {
		return nil, err
	}
	details := map[string]any{}
	for i := len(contacts) - 1; i >= 0; i-- {
		for k, v := range contacts[i].Metadata {
			details[k] = v
		}
	}
	profile["contact"] = details
	return profile, nil
}

func saveConversationNote(ctx context.Context, params map[string]any, ec ExecutionContext) (any, error) {
	if ec.Memory == nil {
		return nil, errNoMemory
	}
	note := stringParam(params, "note")
	if note == "" {
		return nil, fmt.Errorf("note must be a non-empty string")
	}
	m, err := ec.Memory.Add(ctx, ec.UserID, memory.Input{
		Type:       model.MemoryNote,
		Content:    note,
		Importance: intParam(params, "importance"),
		Metadata:   map[string]any{"sessionId": ec.SessionID, "botId": ec.BotID},
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"noteId": m.ID, "importance": m.Importance}, nil
}

func setReminder(ctx context.Context, params map[string]any, ec ExecutionContext) (any, error) {
	if ec.Memory == nil {
		return nil, errNoMemory
	}
	msg := stringParam(params, "message")
	when := stringParam(params, "time")
	if msg == "" || when == "" {
		return nil, fmt.Errorf("message and time must be non-empty strings")
	}
	m, err := ec.Memory.Add(ctx, ec.UserID, memory.Input{
		Type:       model.MemoryReminder,
		Content:    msg,
		Importance: reminderImportance,
		Metadata:   map[string]any{"due": when, "sessionId": ec.SessionID, "botId": ec.BotID},
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"reminderId": m.ID, "due": when, "message": msg}, nil
}

func stringParam(params map[string]any, key string) string {
	switch v := params[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intParam(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
