package model

import "time"

const (
	MinImportance     = 1
	MaxImportance     = 10
	DefaultImportance = 5

	MemoryConversation = "conversation"
	MemoryContact      = "contact"
	MemoryNote         = "note"
	MemoryReminder     = "reminder"
)

// Memory is a long-term fact about a user.
type Memory struct {
	ID           string         `json:"id"`
	UserID       string         `json:"userId"`
	Type         string         `json:"type"`
	Content      string         `json:"content"`
	Importance   int            `json:"importance"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	LastAccessed time.Time      `json:"lastAccessed"`
	LastModified *time.Time     `json:"lastModified,omitempty"`
}

// ClampImportance maps any value into [MinImportance, MaxImportance]; zero
// means "unset" and becomes the default.
func ClampImportance(v int) int {
	switch {
	case v == 0:
		return DefaultImportance
	case v < MinImportance:
		return MinImportance
	case v > MaxImportance:
		return MaxImportance
	default:
		return v
	}
}
