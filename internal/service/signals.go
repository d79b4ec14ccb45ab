package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/raphaelgruber/ravan/internal/models"
	"golang.org/x/sync/errgroup"
)

// SignalKind names one source of user context.
type SignalKind string

const (
	KindMessages     SignalKind = "messages"
	KindUserMessages SignalKind = "user_messages"
	KindEmotions     SignalKind = "emotions"
	KindMoods        SignalKind = "moods"
	KindTests        SignalKind = "tests"
	KindPlan         SignalKind = "plan"
	KindMemory       SignalKind = "memory"
)

const (
	// MaxFieldRunes bounds every free-text field placed in a prompt.
	MaxFieldRunes = 500

	// NoDataPlaceholder stands in for a signal that is missing or failed to load.
	NoDataPlaceholder = "اطلاعاتی موجود نیست"

	gatherConcurrency = 4
)

// ContextBundle holds the signals fetched for one user, newest first.
type ContextBundle struct {
	UserID       string
	Messages     []models.ChatMessage
	UserMessages []models.ChatMessage
	Emotions     []models.EmotionLog
	Moods        []models.MoodTrend
	Tests        []models.TestResult
	Plan         *models.SessionPlan
	Memory       *models.TherapyMemory
}

// SignalAggregator reads recent user signals from the store.
type SignalAggregator struct {
	store Store
}

// NewSignalAggregator creates a new aggregator.
func NewSignalAggregator(store Store) *SignalAggregator {
	return &SignalAggregator{store: store}
}

// Gather fetches the limit most recent records of each kind.
func (a *SignalAggregator) Gather(ctx context.Context, userID string, kinds []SignalKind, limit int) *ContextBundle {
	limits := make(map[SignalKind]int, len(kinds))
	for _, k := range kinds {
		limits[k] = limit
	}
	return a.GatherEach(ctx, userID, limits)
}

// GatherEach fetches each kind with its own limit. Read failures are logged
// and leave that kind empty.
func (a *SignalAggregator) GatherEach(ctx context.Context, userID string, limits map[SignalKind]int) *ContextBundle {
	b := &ContextBundle{UserID: userID}

	var g errgroup.Group
	g.SetLimit(gatherConcurrency)

	for kind, limit := range limits {
		g.Go(func() error {
			if err := a.fetch(ctx, b, kind, limit); err != nil {
				slog.Warn("signal fetch failed", "user_id", userID, "kind", kind, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return b
}

// fetch fills exactly one field of b, so concurrent fetches never share state.
func (a *SignalAggregator) fetch(ctx context.Context, b *ContextBundle, kind SignalKind, limit int) error {
	var err error
	switch kind {
	case KindMessages:
		b.Messages, err = a.store.RecentChatMessages(ctx, b.UserID, "", limit)
	case KindUserMessages:
		b.UserMessages, err = a.store.RecentChatMessages(ctx, b.UserID, models.RoleUser, limit)
	case KindEmotions:
		b.Emotions, err = a.store.RecentEmotionLogs(ctx, b.UserID, limit)
	case KindMoods:
		b.Moods, err = a.store.RecentMoodTrends(ctx, b.UserID, limit)
	case KindTests:
		b.Tests, err = a.store.RecentTestResults(ctx, b.UserID, limit)
	case KindPlan:
		b.Plan, err = a.store.LatestSessionPlan(ctx, b.UserID)
	case KindMemory:
		b.Memory, err = a.store.GetTherapyMemory(ctx, b.UserID)
	default:
		err = fmt.Errorf("unknown signal kind %q", kind)
	}
	return err
}

// Render formats one kind as a prompt section. Missing data renders as
// NoDataPlaceholder. Messages are listed oldest first so they read as a
// conversation.
func (b *ContextBundle) Render(kind SignalKind) string {
	var lines []string

	switch kind {
	case KindMessages, KindUserMessages:
		msgs := b.Messages
		if kind == KindUserMessages {
			msgs = b.UserMessages
		}
		for _, m := range slices.Backward(msgs) {
			speaker := "کاربر"
			if m.Role == models.RoleAssistant {
				speaker = "روانشناس"
			}
			lines = append(lines, fmt.Sprintf("%s: %s", speaker, Truncate(m.Content, MaxFieldRunes)))
		}
	case KindEmotions:
		for _, e := range b.Emotions {
			line := fmt.Sprintf("- %s (شدت %.2f)", Truncate(e.Emotion, MaxFieldRunes), e.Intensity)
			if e.Note != nil && *e.Note != "" {
				line += ": " + Truncate(*e.Note, MaxFieldRunes)
			}
			lines = append(lines, line)
		}
	case KindMoods:
		for _, m := range b.Moods {
			line := fmt.Sprintf("- %s: %g/10", Truncate(m.Category, MaxFieldRunes), m.Score)
			if m.Note != nil && *m.Note != "" {
				line += " (" + Truncate(*m.Note, MaxFieldRunes) + ")"
			}
			lines = append(lines, line)
		}
	case KindTests:
		for _, t := range b.Tests {
			line := fmt.Sprintf("- %s: %g%%", Truncate(t.TestName, MaxFieldRunes), t.Score)
			if t.Result != "" {
				line += " (" + Truncate(t.Result, MaxFieldRunes) + ")"
			}
			lines = append(lines, line)
		}
	case KindPlan:
		if p := b.Plan; p != nil {
			lines = append(lines,
				"موضوع: "+Truncate(p.Topic, MaxFieldRunes),
				"حوزه تمرکز: "+Truncate(p.FocusArea, MaxFieldRunes),
				"تمرین روزانه: "+Truncate(p.DailyPractice, MaxFieldRunes),
			)
		}
	case KindMemory:
		if m := b.Memory; m != nil {
			lines = append(lines,
				"خلاصه: "+Truncate(m.Summary, MaxFieldRunes),
				"بینش‌های کلیدی: "+Truncate(m.KeyInsights, MaxFieldRunes),
			)
			if len(m.EmotionTags) > 0 {
				lines = append(lines, "برچسب‌های احساسی: "+strings.Join(m.EmotionTags, "، "))
			}
		}
	}

	if len(lines) == 0 {
		return NoDataPlaceholder
	}
	return strings.Join(lines, "\n")
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}
