package db

import (
	"errors"
	"testing"
	"time"

	"github.com/raphaelgruber/ravan/internal/models"
	"github.com/raphaelgruber/ravan/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ service.Store = (*Client)(nil)

func TestTherapyMemoryUpsert(t *testing.T) {
	ctx := requireDB(t)

	got, err := testDB.GetTherapyMemory(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got, "missing memory returns nil without error")

	first, err := testDB.UpsertTherapyMemory(ctx, models.TherapyMemory{
		UserID:      "u1",
		Summary:     "اولین خلاصه",
		KeyInsights: "نگرانی شغلی",
		EmotionTags: []string{"اضطراب"},
		LastUpdated: at(0),
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", first.UserID)

	second, err := testDB.UpsertTherapyMemory(ctx, models.TherapyMemory{
		UserID:      "u1",
		Summary:     "خلاصه جدید",
		KeyInsights: "بهبود خواب",
		LastUpdated: at(30),
	})
	require.NoError(t, err)
	assert.Equal(t, "خلاصه جدید", second.Summary)
	assert.Empty(t, second.EmotionTags)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt), "created_at preserved across upserts")

	got, err = testDB.GetTherapyMemory(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "بهبود خواب", got.KeyInsights)
}

func TestRecentChatMessages(t *testing.T) {
	ctx := requireDB(t)

	require.NoError(t, testDB.CreateChatMessage(ctx, models.ChatMessage{UserID: "u1", Role: models.RoleUser, Content: "سلام", CreatedAt: at(0)}))
	require.NoError(t, testDB.CreateChatMessage(ctx, models.ChatMessage{UserID: "u1", Role: models.RoleAssistant, Content: "خوش آمدی", CreatedAt: at(1)}))
	require.NoError(t, testDB.CreateChatMessage(ctx, models.ChatMessage{UserID: "u1", Role: models.RoleUser, Content: "خسته‌ام", CreatedAt: at(2)}))

	all, err := testDB.RecentChatMessages(ctx, "u1", "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "خسته‌ام", all[0].Content)
	assert.NotEmpty(t, all[0].ID)

	userOnly, err := testDB.RecentChatMessages(ctx, "u1", models.RoleUser, 10)
	require.NoError(t, err)
	assert.Len(t, userOnly, 2)

	err = testDB.CreateChatMessage(ctx, models.ChatMessage{UserID: "u1", Role: "system", Content: "x"})
	assert.True(t, errors.Is(err, ErrConstraint), "role outside closed set: %v", err)
}

func TestSignals(t *testing.T) {
	ctx := requireDB(t)
	note := "بعد از جلسه"

	require.NoError(t, testDB.CreateEmotionLog(ctx, models.EmotionLog{UserID: "u1", Emotion: "غم", Intensity: 0.7, Note: &note, CreatedAt: at(1)}))
	require.NoError(t, testDB.CreateMoodTrend(ctx, models.MoodTrend{UserID: "u1", Category: "sleep", Score: 8, CreatedAt: at(2)}))
	require.NoError(t, testDB.CreateTestResult(ctx, models.TestResult{UserID: "u1", TestName: "GAD-7", Score: 40, Result: "mild", CreatedAt: at(3)}))
	require.NoError(t, testDB.CreateClientTestResult(ctx, models.ClientTestResult{ClientID: "c1", ClinicianID: "d1", TestName: "BDI", Score: 21, CreatedAt: at(4)}))

	emotions, err := testDB.RecentEmotionLogs(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, emotions, 1)
	require.NotNil(t, emotions[0].Note)
	assert.Equal(t, note, *emotions[0].Note)
	assert.True(t, emotions[0].CreatedAt.Equal(at(1)))

	moods, err := testDB.RecentMoodTrends(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, moods, 1)
	assert.Nil(t, moods[0].Note)

	tests, err := testDB.RecentTestResults(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, tests, 1)
	assert.Equal(t, "mild", tests[0].Result)

	clientTests, err := testDB.RecentClientTestResults(ctx, "c1", 10)
	require.NoError(t, err)
	require.Len(t, clientTests, 1)
	assert.Equal(t, "d1", clientTests[0].ClinicianID)

	err = testDB.CreateMoodTrend(ctx, models.MoodTrend{UserID: "u1", Category: "sleep", Score: 11})
	assert.ErrorIs(t, err, ErrConstraint)
}

func TestLatestSessionPlan(t *testing.T) {
	ctx := requireDB(t)

	p, err := testDB.LatestSessionPlan(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, p)

	test := "PHQ-9"
	require.NoError(t, testDB.CreateSessionPlan(ctx, models.SessionPlan{UserID: "u1", Topic: "old", FocusArea: "a", DailyPractice: "b", AIConfidence: 0.3, CreatedAt: at(0)}))
	require.NoError(t, testDB.CreateSessionPlan(ctx, models.SessionPlan{UserID: "u1", Topic: "new", FocusArea: "a", DailyPractice: "b", SuggestedTest: &test, AIConfidence: 0.9, CreatedAt: at(5)}))

	p, err = testDB.LatestSessionPlan(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "new", p.Topic)
	require.NotNil(t, p.SuggestedTest)
	assert.Equal(t, "PHQ-9", *p.SuggestedTest)
}

func TestClinicalNoteAndRiskFlag(t *testing.T) {
	ctx := requireDB(t)

	require.NoError(t, testDB.CreateClinicalNote(ctx, models.ClinicalNote{ID: "n1", ClientID: "c1", ClinicianID: "d1", Content: "report"}))
	require.NoError(t, testDB.CreateRiskFlag(ctx, models.RiskFlag{NoteID: "n1", ClientID: "c1", ClinicianID: "d1", Level: models.RiskCritical, Category: models.CategorySuicide}))

	flags, err := testDB.RecentRiskFlags(ctx, "c1", 5)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, "n1", flags[0].NoteID)
	assert.Equal(t, models.RiskCritical, flags[0].Level)

	err = testDB.CreateRiskFlag(ctx, models.RiskFlag{NoteID: "n1", ClientID: "c1", ClinicianID: "d1", Level: "severe", Category: models.CategoryOther})
	assert.ErrorIs(t, err, ErrConstraint)

	notes, err := testDB.RecentClinicalNotes(ctx, "c1", 5)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "n1", notes[0].ID)
}

func TestDreamsAndPatterns(t *testing.T) {
	ctx := requireDB(t)

	require.NoError(t, testDB.CreateDreamRecord(ctx, models.DreamRecord{
		UserID: models.SystemUserID, Title: "دریا", Content: "آرامش دریا", Interpretation: "i", Inspiration: "x",
		SourceData: map[string]any{"moods": 3}, MoodContext: models.MoodBalanced,
	}))
	dreams, err := testDB.RecentDreamRecords(ctx, models.SystemUserID, 30)
	require.NoError(t, err)
	require.Len(t, dreams, 1)
	assert.Equal(t, models.MoodBalanced, dreams[0].MoodContext)
	assert.Contains(t, dreams[0].SourceData, "moods")

	require.NoError(t, testDB.CreateDreamPatterns(ctx, []models.DreamPattern{
		{UserID: models.SystemUserID, Symbol: "دریا", Frequency: 4, Meaning: "m", Sentiment: 0.5, RelatedTests: []string{"GAD-7"}},
		{UserID: models.SystemUserID, Symbol: "آرامش", Frequency: 2, Meaning: "m", Sentiment: -0.2},
	}))
	patterns, err := testDB.RecentDreamPatterns(ctx, models.SystemUserID, 10)
	require.NoError(t, err)
	assert.Len(t, patterns, 2)

	require.NoError(t, testDB.CreateDreamPatterns(ctx, nil), "empty batch is a no-op")
}

func TestIncrWindowCounter(t *testing.T) {
	ctx := requireDB(t)

	n, end, err := testDB.Incr(ctx, "chat:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, end.After(time.Now()))

	n, end2, err := testDB.Incr(ctx, "chat:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, end2.Equal(end), "window end fixed within a window")

	n, _, err = testDB.Incr(ctx, "notify:c1", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	time.Sleep(50 * time.Millisecond)
	n, _, err = testDB.Incr(ctx, "notify:c1", 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "expired window restarts")
}
