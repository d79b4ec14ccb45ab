package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/raphaelgruber/ravan/internal/llm"
	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/models"
)

const (
	maxEmotionTags     = 10
	maxEmotionTagRunes = 32
)

// memoryDraft is the JSON shape the model returns for a consolidation.
type memoryDraft struct {
	Summary     string   `json:"summary"`
	KeyInsights string   `json:"keyInsights"`
	EmotionTags []string `json:"emotionTags"`
}

func defaultMemoryDraft() memoryDraft {
	return memoryDraft{
		Summary:     "اطلاعات کافی برای جمع‌بندی وجود ندارد.",
		KeyInsights: "",
		EmotionTags: []string{},
	}
}

func validateMemoryDraft(d *memoryDraft) error {
	d.Summary = strings.TrimSpace(d.Summary)
	d.KeyInsights = strings.TrimSpace(d.KeyInsights)
	if d.Summary == "" {
		return errors.New("summary is empty")
	}
	d.EmotionTags = normalizeTags(d.EmotionTags)
	return nil
}

// normalizeTags trims, drops blanks and duplicates in order, and caps the list.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, min(len(tags), maxEmotionTags))
	for _, t := range tags {
		t = Truncate(strings.TrimSpace(t), maxEmotionTagRunes)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
		if len(out) == maxEmotionTags {
			break
		}
	}
	return out
}

// MemoryService maintains the single consolidated therapy memory per user.
type MemoryService struct {
	store   Store
	model   *llm.Model
	signals *SignalAggregator
	metrics *metrics.Collector
}

// NewMemoryService creates a new memory service.
func NewMemoryService(store Store, model *llm.Model, signals *SignalAggregator, mc *metrics.Collector) *MemoryService {
	return &MemoryService{store: store, model: model, signals: signals, metrics: mc}
}

// Get returns the user's current memory, or nil when none exists.
func (s *MemoryService) Get(ctx context.Context, userID string) (*models.TherapyMemory, error) {
	if err := requireField("userId", userID); err != nil {
		return nil, err
	}
	return s.store.GetTherapyMemory(ctx, userID)
}

// Consolidate folds recent conversation and signals into the user's memory.
// A model error or unusable output leaves the previous memory in place.
func (s *MemoryService) Consolidate(ctx context.Context, userID string) (err error) {
	start := time.Now()
	defer func() { observe(s.metrics, metrics.OpConsolidate, start, err) }()

	if err := requireField("userId", userID); err != nil {
		return err
	}

	bundle := s.signals.GatherEach(ctx, userID, map[SignalKind]int{
		KindMemory:   1,
		KindMessages: 20,
		KindMoods:    7,
		KindTests:    5,
	})

	prompt := joinSections(
		section("حافظه درمانی فعلی", bundle.Render(KindMemory)),
		section("گفتگوهای اخیر", bundle.Render(KindMessages)),
		section("روند خلق", bundle.Render(KindMoods)),
		section("نتایج آزمون‌ها", bundle.Render(KindTests)),
	)

	raw, err := s.model.Complete(ctx, memorySystemPrompt, prompt, llm.WithTemperature(0.3))
	if err != nil {
		return fmt.Errorf("consolidate memory: %w", err)
	}

	res := llm.Coerce(raw, defaultMemoryDraft, validateMemoryDraft)
	if res.Fallback {
		incr(s.metrics, metrics.CounterCoerceFallback)
		slog.Info("memory consolidation fell back", "user_id", userID, "reason", res.Reason)
		return ErrConsolidationFallback
	}

	now := models.Now()
	if _, err := s.store.UpsertTherapyMemory(ctx, models.TherapyMemory{
		UserID:      userID,
		Summary:     res.Value.Summary,
		KeyInsights: res.Value.KeyInsights,
		EmotionTags: res.Value.EmotionTags,
		LastUpdated: now,
	}); err != nil {
		return fmt.Errorf("consolidate memory: %w", err)
	}

	slog.Debug("memory consolidated", "user_id", userID, "tags", len(res.Value.EmotionTags))
	return nil
}
