package models

import "time"

// MoodContext summarizes the emotional tone a dream was generated from.
type MoodContext string

const (
	MoodPositive MoodContext = "positive"
	MoodNegative MoodContext = "negative"
	MoodBalanced MoodContext = "balanced"
	MoodUnclear  MoodContext = "unclear"
)

// DreamRecord is a symbolic narrative synthesized from a user's signals.
type DreamRecord struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	Interpretation string         `json:"interpretation"`
	Inspiration    string         `json:"inspiration"`
	SourceData     map[string]any `json:"source_data"`
	MoodContext    MoodContext    `json:"mood_context"`
	CreatedAt      time.Time      `json:"created_at"`
}

// DreamPattern is a recurring symbol found across a user's dreams.
// Sentiment is in [-1,1].
type DreamPattern struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Symbol       string    `json:"symbol"`
	Frequency    int       `json:"frequency"`
	Meaning      string    `json:"meaning"`
	Sentiment    float64   `json:"sentiment"`
	RelatedTests []string  `json:"related_tests"`
	CreatedAt    time.Time `json:"created_at"`
}
