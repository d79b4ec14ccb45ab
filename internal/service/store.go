package service

import (
	"context"

	"github.com/raphaelgruber/ravan/internal/models"
)

// Store is the persistence contract the pipeline stages rely on.
// Recent* methods return newest first. Single-record getters return
// nil without error when nothing exists.
type Store interface {
	GetTherapyMemory(ctx context.Context, userID string) (*models.TherapyMemory, error)
	UpsertTherapyMemory(ctx context.Context, mem models.TherapyMemory) (*models.TherapyMemory, error)

	CreateChatMessage(ctx context.Context, msg models.ChatMessage) error
	RecentChatMessages(ctx context.Context, userID string, role models.MessageRole, limit int) ([]models.ChatMessage, error)

	CreateEmotionLog(ctx context.Context, log models.EmotionLog) error
	RecentEmotionLogs(ctx context.Context, userID string, limit int) ([]models.EmotionLog, error)

	CreateMoodTrend(ctx context.Context, mood models.MoodTrend) error
	RecentMoodTrends(ctx context.Context, userID string, limit int) ([]models.MoodTrend, error)

	CreateTestResult(ctx context.Context, res models.TestResult) error
	RecentTestResults(ctx context.Context, userID string, limit int) ([]models.TestResult, error)

	CreateClientTestResult(ctx context.Context, res models.ClientTestResult) error
	RecentClientTestResults(ctx context.Context, clientID string, limit int) ([]models.ClientTestResult, error)

	CreateSessionPlan(ctx context.Context, plan models.SessionPlan) error
	LatestSessionPlan(ctx context.Context, userID string) (*models.SessionPlan, error)

	CreateClinicalNote(ctx context.Context, note models.ClinicalNote) error
	CreateRiskFlag(ctx context.Context, flag models.RiskFlag) error
	RecentClinicalNotes(ctx context.Context, clientID string, limit int) ([]models.ClinicalNote, error)
	RecentRiskFlags(ctx context.Context, clientID string, limit int) ([]models.RiskFlag, error)

	CreateDreamRecord(ctx context.Context, dream models.DreamRecord) error
	RecentDreamRecords(ctx context.Context, userID string, limit int) ([]models.DreamRecord, error)
	CreateDreamPatterns(ctx context.Context, patterns []models.DreamPattern) error
	RecentDreamPatterns(ctx context.Context, userID string, limit int) ([]models.DreamPattern, error)
}
