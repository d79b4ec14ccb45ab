// Package models defines the records produced and consumed by the therapy pipeline.
package models

import "time"

// SystemUserID owns artifacts generated without a specific user,
// such as platform-wide dream batches.
const SystemUserID = "system"

// TherapyMemory is the single consolidated memory kept per user.
// Its ID is the user ID.
type TherapyMemory struct {
	UserID      string    `json:"user_id"`
	Summary     string    `json:"summary"`
	KeyInsights string    `json:"key_insights"`
	EmotionTags []string  `json:"emotion_tags"`
	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

// MessageRole is the author of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is one persisted turn of the therapy chat.
type ChatMessage struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// SessionPlan is a suggested plan for the next therapy session.
// Plans are append-only; the latest by CreatedAt is current.
type SessionPlan struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Topic         string    `json:"topic"`
	FocusArea     string    `json:"focus_area"`
	SuggestedTest *string   `json:"suggested_test"`
	DailyPractice string    `json:"daily_practice"`
	AIConfidence  float64   `json:"ai_confidence"`
	Fallback      bool      `json:"fallback"`
	CreatedAt     time.Time `json:"created_at"`
}
