package models

import "time"

// EmotionLog records a self-reported emotion. Intensity is in [0,1].
type EmotionLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Emotion   string    `json:"emotion"`
	Intensity float64   `json:"intensity"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MoodTrend records a mood score in [1,10] for a category.
type MoodTrend struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Category  string    `json:"category"`
	Score     float64   `json:"score"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TestResult is a psychometric test the user took on their own.
// Score is a percentage.
type TestResult struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TestName  string    `json:"test_name"`
	Score     float64   `json:"score"`
	Result    string    `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientTestResult is a test a clinician assigned to a client.
type ClientTestResult struct {
	ID             string    `json:"id"`
	ClientID       string    `json:"client_id"`
	ClinicianID    string    `json:"clinician_id"`
	TestName       string    `json:"test_name"`
	Score          float64   `json:"score"`
	Interpretation string    `json:"interpretation"`
	CreatedAt      time.Time `json:"created_at"`
}

// Score bounds accepted at ingestion.
const (
	MinIntensity = 0.0
	MaxIntensity = 1.0
	MinMood      = 1.0
	MaxMood      = 10.0
	MinPercent   = 0.0
	MaxPercent   = 100.0
)
