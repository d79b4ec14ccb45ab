package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/ravan/internal/llm"
	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/models"
)

// DefaultPlanConfidence is the confidence attached to the fallback plan.
const DefaultPlanConfidence = 0.5

// planDraft is the JSON shape the model returns for a session plan.
type planDraft struct {
	Topic         string  `json:"topic"`
	FocusArea     string  `json:"focusArea"`
	SuggestedTest *string `json:"suggestedTest"`
	DailyPractice string  `json:"dailyPractice"`
	AIConfidence  float64 `json:"aiConfidence"`
}

func defaultPlanDraft() planDraft {
	return planDraft{
		Topic:         "مرور احساسات و تجربه‌های هفته گذشته",
		FocusArea:     "خودآگاهی هیجانی و مراقبت از خود",
		SuggestedTest: nil,
		DailyPractice: "هر روز ده دقیقه تنفس آرام و نوشتن سه احساس غالب روز در دفترچه",
		AIConfidence:  DefaultPlanConfidence,
	}
}

func validatePlanDraft(d *planDraft) error {
	d.Topic = strings.TrimSpace(d.Topic)
	d.FocusArea = strings.TrimSpace(d.FocusArea)
	d.DailyPractice = strings.TrimSpace(d.DailyPractice)
	if d.Topic == "" || d.FocusArea == "" || d.DailyPractice == "" {
		return errors.New("topic, focusArea and dailyPractice are required")
	}
	return nil
}

// PlanService produces session plans for upcoming sessions.
type PlanService struct {
	store   Store
	model   *llm.Model
	signals *SignalAggregator
	metrics *metrics.Collector
}

// NewPlanService creates a new plan service.
func NewPlanService(store Store, model *llm.Model, signals *SignalAggregator, mc *metrics.Collector) *PlanService {
	return &PlanService{store: store, model: model, signals: signals, metrics: mc}
}

// Current returns the user's latest plan, or nil when none exists.
func (s *PlanService) Current(ctx context.Context, userID string) (*models.SessionPlan, error) {
	if err := requireField("userId", userID); err != nil {
		return nil, err
	}
	return s.store.LatestSessionPlan(ctx, userID)
}

// Generate appends a new session plan for the user. Unusable model output
// yields the default plan with Fallback set; model errors are returned.
func (s *PlanService) Generate(ctx context.Context, userID string) (plan *models.SessionPlan, err error) {
	start := time.Now()
	defer func() { observe(s.metrics, metrics.OpPlan, start, err) }()

	if err := requireField("userId", userID); err != nil {
		return nil, err
	}

	bundle := s.signals.GatherEach(ctx, userID, map[SignalKind]int{
		KindMemory:   1,
		KindEmotions: 10,
		KindMoods:    5,
		KindPlan:     1,
	})

	prompt := joinSections(
		section("حافظه درمانی", bundle.Render(KindMemory)),
		section("احساسات اخیر", bundle.Render(KindEmotions)),
		section("روند خلق", bundle.Render(KindMoods)),
		section("برنامه جلسه قبلی", bundle.Render(KindPlan)),
	)

	raw, err := s.model.Complete(ctx, planSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	res := llm.Coerce(raw, defaultPlanDraft, validatePlanDraft)
	if res.Fallback {
		incr(s.metrics, metrics.CounterCoerceFallback)
		slog.Info("session plan fell back to default", "user_id", userID, "reason", res.Reason)
	}

	draft := res.Value
	plan = &models.SessionPlan{
		ID:            models.NewID(),
		UserID:        userID,
		Topic:         draft.Topic,
		FocusArea:     draft.FocusArea,
		SuggestedTest: normalizeSuggestedTest(draft.SuggestedTest),
		DailyPractice: draft.DailyPractice,
		AIConfidence:  models.Clamp(draft.AIConfidence, 0, 1),
		Fallback:      res.Fallback,
		CreatedAt:     models.Now(),
	}

	if err := s.store.CreateSessionPlan(ctx, *plan); err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	slog.Info("session plan generated", "user_id", userID, "plan_id", plan.ID, "fallback", plan.Fallback)
	return plan, nil
}

func normalizeSuggestedTest(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" || strings.EqualFold(t, "null") {
		return nil
	}
	return &t
}
