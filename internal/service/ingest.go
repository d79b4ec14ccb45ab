package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/ravan/internal/models"
)

// IngestService records user signals after validating their ranges.
type IngestService struct {
	store Store
}

// NewIngestService creates a new ingest service.
func NewIngestService(store Store) *IngestService {
	return &IngestService{store: store}
}

func stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = models.NewID()
	}
	if createdAt.IsZero() {
		*createdAt = models.Now()
	}
}

func trimNote(note *string) *string {
	if note == nil {
		return nil
	}
	t := strings.TrimSpace(*note)
	if t == "" {
		return nil
	}
	return &t
}

// RecordEmotion stores an emotion log. Intensity must be in [0,1].
func (s *IngestService) RecordEmotion(ctx context.Context, e models.EmotionLog) (*models.EmotionLog, error) {
	e.Emotion = strings.TrimSpace(e.Emotion)
	if err := requireField("userId", e.UserID); err != nil {
		return nil, err
	}
	if err := requireField("emotion", e.Emotion); err != nil {
		return nil, err
	}
	if err := requireRange("intensity", e.Intensity, models.MinIntensity, models.MaxIntensity); err != nil {
		return nil, err
	}
	e.Note = trimNote(e.Note)
	stamp(&e.ID, &e.CreatedAt)

	if err := s.store.CreateEmotionLog(ctx, e); err != nil {
		return nil, fmt.Errorf("record emotion: %w", err)
	}
	slog.Debug("emotion recorded", "user_id", e.UserID, "emotion", e.Emotion)
	return &e, nil
}

// RecordMood stores a mood entry. Score must be in [1,10].
func (s *IngestService) RecordMood(ctx context.Context, m models.MoodTrend) (*models.MoodTrend, error) {
	m.Category = strings.TrimSpace(m.Category)
	if err := requireField("userId", m.UserID); err != nil {
		return nil, err
	}
	if err := requireField("category", m.Category); err != nil {
		return nil, err
	}
	if err := requireRange("score", m.Score, models.MinMood, models.MaxMood); err != nil {
		return nil, err
	}
	m.Note = trimNote(m.Note)
	stamp(&m.ID, &m.CreatedAt)

	if err := s.store.CreateMoodTrend(ctx, m); err != nil {
		return nil, fmt.Errorf("record mood: %w", err)
	}
	return &m, nil
}

// RecordTestResult stores a self-taken test result. Score is a percentage.
func (s *IngestService) RecordTestResult(ctx context.Context, r models.TestResult) (*models.TestResult, error) {
	r.TestName = strings.TrimSpace(r.TestName)
	if err := requireField("userId", r.UserID); err != nil {
		return nil, err
	}
	if err := requireField("testName", r.TestName); err != nil {
		return nil, err
	}
	if err := requireRange("score", r.Score, models.MinPercent, models.MaxPercent); err != nil {
		return nil, err
	}
	stamp(&r.ID, &r.CreatedAt)

	if err := s.store.CreateTestResult(ctx, r); err != nil {
		return nil, fmt.Errorf("record test result: %w", err)
	}
	return &r, nil
}

// RecordClientTestResult stores a clinician-assigned test result.
func (s *IngestService) RecordClientTestResult(ctx context.Context, r models.ClientTestResult) (*models.ClientTestResult, error) {
	r.TestName = strings.TrimSpace(r.TestName)
	if err := requireField("clientId", r.ClientID); err != nil {
		return nil, err
	}
	if err := requireField("clinicianId", r.ClinicianID); err != nil {
		return nil, err
	}
	if err := requireField("testName", r.TestName); err != nil {
		return nil, err
	}
	if err := requireRange("score", r.Score, models.MinPercent, models.MaxPercent); err != nil {
		return nil, err
	}
	stamp(&r.ID, &r.CreatedAt)

	if err := s.store.CreateClientTestResult(ctx, r); err != nil {
		return nil, fmt.Errorf("record client test result: %w", err)
	}
	return &r, nil
}
