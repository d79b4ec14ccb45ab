package db

import (
	"context"
	"fmt"
	"time"

	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// Projections return plain string IDs so rows decode straight into models.
const (
	memoryFields       = `user_id, summary, key_insights, emotion_tags, last_updated, created_at`
	chatFields         = `meta::id(id) AS id, user_id, role, content, created_at`
	emotionFields      = `meta::id(id) AS id, user_id, emotion, intensity, note, created_at`
	moodFields         = `meta::id(id) AS id, user_id, category, score, note, created_at`
	testFields         = `meta::id(id) AS id, user_id, test_name, score, result, created_at`
	clientTestFields   = `meta::id(id) AS id, client_id, clinician_id, test_name, score, interpretation, created_at`
	planFields         = `meta::id(id) AS id, user_id, topic, focus_area, suggested_test, daily_practice, ai_confidence, fallback, created_at`
	noteFields         = `meta::id(id) AS id, client_id, clinician_id, content, created_at`
	flagFields         = `meta::id(id) AS id, meta::id(note) AS note_id, client_id, clinician_id, level, category, created_at`
	dreamFields        = `meta::id(id) AS id, user_id, title, content, interpretation, inspiration, source_data, mood_context, created_at`
	dreamPatternFields = `meta::id(id) AS id, user_id, symbol, frequency, meaning, sentiment, related_tests, created_at`
)

// queryAll runs sql and returns the first statement's rows.
func queryAll[T any](ctx context.Context, c *Client, sql string, vars map[string]any) ([]T, error) {
	start := time.Now()
	results, err := surrealdb.Query[[]T](ctx, c.db, sql, vars)
	c.recordQuery(time.Since(start))
	if err != nil {
		return nil, wrapQueryError(err)
	}
	if results == nil || len(*results) == 0 {
		return []T{}, nil
	}
	return (*results)[0].Result, nil
}

// queryOne returns the first row, or nil when the statement produced none.
func queryOne[T any](ctx context.Context, c *Client, sql string, vars map[string]any) (*T, error) {
	rows, err := queryAll[T](ctx, c, sql, vars)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *Client) exec(ctx context.Context, sql string, vars map[string]any) error {
	start := time.Now()
	_, err := surrealdb.Query[any](ctx, c.db, sql, vars)
	c.recordQuery(time.Since(start))
	return wrapQueryError(err)
}

func (c *Client) recordQuery(d time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordTiming(metrics.OpDBQuery, d)
	}
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = models.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func recordID(id string) string {
	if id == "" {
		return models.NewID()
	}
	return id
}

// =============================================================================
// THERAPY MEMORY
// =============================================================================

// GetTherapyMemory returns the user's memory, or nil when none exists.
func (c *Client) GetTherapyMemory(ctx context.Context, userID string) (*models.TherapyMemory, error) {
	mem, err := queryOne[models.TherapyMemory](ctx, c,
		`SELECT `+memoryFields+` FROM type::record("therapy_memory", $id)`,
		map[string]any{"id": userID})
	if err != nil {
		return nil, fmt.Errorf("get therapy memory: %w", err)
	}
	return mem, nil
}

// UpsertTherapyMemory replaces the user's memory. created_at is only set on insert.
func (c *Client) UpsertTherapyMemory(ctx context.Context, mem models.TherapyMemory) (*models.TherapyMemory, error) {
	tags := mem.EmotionTags
	if tags == nil {
		tags = []string{}
	}

	out, err := queryOne[models.TherapyMemory](ctx, c, `
		UPSERT type::record("therapy_memory", $id) SET
			user_id = $id,
			summary = $summary,
			key_insights = $key_insights,
			emotion_tags = $emotion_tags,
			last_updated = <datetime>$last_updated,
			created_at = IF created_at THEN created_at ELSE time::now() END
		RETURN `+memoryFields,
		map[string]any{
			"id":           mem.UserID,
			"summary":      mem.Summary,
			"key_insights": mem.KeyInsights,
			"emotion_tags": tags,
			"last_updated": timestamp(mem.LastUpdated),
		})
	if err != nil {
		return nil, fmt.Errorf("upsert therapy memory: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("upsert therapy memory: %w", ErrNoResult)
	}
	return out, nil
}

// =============================================================================
// CHAT MESSAGES
// =============================================================================

// CreateChatMessage appends a chat message.
func (c *Client) CreateChatMessage(ctx context.Context, msg models.ChatMessage) error {
	err := c.exec(ctx, `
		CREATE type::record("chat_message", $id) SET
			user_id = $user_id, role = $role, content = $content,
			created_at = <datetime>$created_at`,
		map[string]any{
			"id":         recordID(msg.ID),
			"user_id":    msg.UserID,
			"role":       string(msg.Role),
			"content":    msg.Content,
			"created_at": timestamp(msg.CreatedAt),
		})
	if err != nil {
		return fmt.Errorf("create chat message: %w", err)
	}
	return nil
}

// RecentChatMessages returns the newest messages; an empty role matches both.
func (c *Client) RecentChatMessages(ctx context.Context, userID string, role models.MessageRole, limit int) ([]models.ChatMessage, error) {
	roleClause := ""
	vars := map[string]any{"user_id": userID, "limit": limit}
	if role != "" {
		roleClause = "AND role = $role"
		vars["role"] = string(role)
	}
	sql := fmt.Sprintf(`SELECT %s FROM chat_message WHERE user_id = $user_id %s ORDER BY created_at DESC LIMIT $limit`,
		chatFields, roleClause)

	rows, err := queryAll[models.ChatMessage](ctx, c, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("recent chat messages: %w", err)
	}
	return rows, nil
}

// =============================================================================
// SIGNALS
// =============================================================================

// CreateEmotionLog appends an emotion log.
func (c *Client) CreateEmotionLog(ctx context.Context, e models.EmotionLog) error {
	err := c.exec(ctx, `
		CREATE type::record("emotion_log", $id) SET
			user_id = $user_id, emotion = $emotion, intensity = $intensity,
			note = $note, created_at = <datetime>$created_at`,
		map[string]any{
			"id":         recordID(e.ID),
			"user_id":    e.UserID,
			"emotion":    e.Emotion,
			"intensity":  e.Intensity,
			"note":       e.Note,
			"created_at": timestamp(e.CreatedAt),
		})
	if err != nil {
		return fmt.Errorf("create emotion log: %w", err)
	}
	return nil
}

// RecentEmotionLogs returns the newest emotion logs.
func (c *Client) RecentEmotionLogs(ctx context.Context, userID string, limit int) ([]models.EmotionLog, error) {
	rows, err := queryAll[models.EmotionLog](ctx, c,
		`SELECT `+emotionFields+` FROM emotion_log WHERE user_id = $user_id ORDER BY created_at DESC LIMIT $limit`,
		map[string]any{"user_id": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent emotion logs: %w", err)
	}
	return rows, nil
}

// CreateMoodTrend appends a mood entry.
func (c *Client) CreateMoodTrend(ctx context.Context, m models.MoodTrend) error {
	err := c.exec(ctx, `
		CREATE type::record("mood_trend", $id) SET
			user_id = $user_id, category = $category, score = $score,
			note = $note, created_at = <datetime>$created_at`,
		map[string]any{
			"id":         recordID(m.ID),
			"user_id":    m.UserID,
			"category":   m.Category,
			"score":      m.Score,
			"note":       m.Note,
			"created_at": timestamp(m.CreatedAt),
		})
	if err != nil {
		return fmt.Errorf("create mood trend: %w", err)
	}
	return nil
}

// RecentMoodTrends returns the newest mood entries.
func (c *Client) RecentMoodTrends(ctx context.Context, userID string, limit int) ([]models.MoodTrend, error) {
	rows, err := queryAll[models.MoodTrend](ctx, c,
		`SELECT `+moodFields+` FROM mood_trend WHERE user_id = $user_id ORDER BY created_at DESC LIMIT $limit`,
		map[string]any{"user_id": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent mood trends: %w", err)
	}
	return rows, nil
}

// CreateTestResult appends a self-taken test result.
func (c *Client) CreateTestResult(ctx context.Context, r models.TestResult) error {
	err := c.exec(ctx, `
		CREATE type::record("test_result", $id) SET
			user_id = $user_id, test_name = $test_name, score = $score,
			result = $result, created_at = <datetime>$created_at`,
		map[string]any{
			"id":         recordID(r.ID),
			"user_id":    r.UserID,
			"test_name":  r.TestName,
			"score":      r.Score,
			"result":     r.Result,
			"created_at": timestamp(r.CreatedAt),
		})
	if err != nil {
		return fmt.Errorf("create test result: %w", err)
	}
	return nil
}

// RecentTestResults returns the newest self-taken test results.
func (c *Client) RecentTestResults(ctx context.Context, userID string, limit int) ([]models.TestResult, error) {
	rows, err := queryAll[models.TestResult](ctx, c,
		`SELECT `+testFields+` FROM test_result WHERE user_id = $user_id ORDER BY created_at DESC LIMIT $limit`,
		map[string]any{"user_id": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent test results: %w", err)
	}
	return rows, nil
}

// CreateClientTestResult appends a clinician-assigned test result.
func (c *Client) CreateClientTestResult(ctx context.Context, r models.ClientTestResult) error {
	err := c.exec(ctx, `
		CREATE type::record("client_test_result", $id) SET
			client_id = $client_id, clinician_id = $clinician_id, test_name = $test_name,
			score = $score, interpretation = $interpretation, created_at = <datetime>$created_at`,
		map[string]any{
			"id":             recordID(r.ID),
			"client_id":      r.ClientID,
			"clinician_id":   r.ClinicianID,
			"test_name":      r.TestName,
			"score":          r.Score,
			"interpretation": r.Interpretation,
			"created_at":     timestamp(r.CreatedAt),
		})
	if err != nil {
		return fmt.Errorf("create client test result: %w", err)
	}
	return nil
}

// RecentClientTestResults returns the newest results for a client.
func (c *Client) RecentClientTestResults(ctx context.Context, clientID string, limit int) ([]models.ClientTestResult, error) {
	rows, err := queryAll[models.ClientTestResult](ctx, c,
		`SELECT `+clientTestFields+` FROM client_test_result WHERE client_id = $client_id ORDER BY created_at DESC LIMIT $limit`,
		map[string]any{"client_id": clientID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent client test results: %w", err)
	}
	return rows, nil
}

// =============================================================================
// SESSION PLANS
// =============================================================================

// CreateSessionPlan appends a session plan.
func (c *Client) CreateSessionPlan(ctx context.Context, p models.SessionPlan) error {
	err := c.exec(ctx, `
		CREATE type::record("session_plan", $id) SET
			user_id = $user_id, topic = $topic, focus_area = $focus_area,
			suggested_test = $suggested_test, daily_practice = $daily_practice,
			ai_confidence = $ai_confidence, fallback = $fallback,
			created_at = <datetime>$created_at`,
		map[string]any{
			"id":             recordID(p.ID),
			"user_id":        p.UserID,
			"topic":          p.Topic,
			"focus_area":     p.FocusArea,
			"suggested_test": p.SuggestedTest,
			"daily_practice": p.DailyPractice,
			"ai_confidence":  p.AIConfidence,
			"fallback":       p.Fallback,
			"created_at":     timestamp(p.CreatedAt),
		})
	if err != nil {
		return fmt.Errorf("create session plan: %w", err)
	}
	return nil
}

// LatestSessionPlan returns the user's current plan, or nil.
func (c *Client) LatestSessionPlan(ctx context.Context, userID string) (*models.SessionPlan, error) {
	plan, err := queryOne[models.SessionPlan](ctx, c,
		`SELECT `+planFields+` FROM session_plan WHERE user_id = $user_id ORDER BY created_at DESC LIMIT 1`,
		map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("latest session plan: %w", err)
	}
	return plan, nil
}

// =============================================================================
// CLINICAL NOTES AND RISK FLAGS
// =============================================================================

// CreateClinicalNote appends a clinical note.
func (c *Client) CreateClinicalNote(ctx context.Context, n models.ClinicalNote) error {
	err := c.exec(ctx, `
		CREATE type::record("clinical_note", $id) SET
			client_id = $client_id, clinician_id = $clinician_id,
			content = $content, created_at = <datetime>$created_at`,
		map[string]any{
			"id":           recordID(n.ID),
			"client_id":    n.ClientID,
			"clinician_id": n.ClinicianID,
			"content":      n.Content,
			"created_at":   timestamp(n.CreatedAt),
		})
	if err != nil {
		return fmt.Errorf("create clinical note: %w", err)
	}
	return nil
}

// CreateRiskFlag appends a risk flag linked to its note.
func (c *Client) CreateRiskFlag(ctx context.Context, f models.RiskFlag) error {
	err := c.exec(ctx, `
		CREATE type::record("risk_flag", $id) SET
			note = type::record("clinical_note", $note_id),
			client_id = $client_id, clinician_id = $clinician_id,
			level = $level, category = $category, created_at = <datetime>$created_at`,
		map[string]any{
			"id":           recordID(f.ID),
			"note_id":      f.NoteID,
			"client_id":    f.ClientID,
			"clinician_id": f.ClinicianID,
			"level":        string(f.Level),
			"category":     string(f.Category),
			"created_at":   timestamp(f.CreatedAt),
		})
	if err != nil {
		return fmt.Errorf("create risk flag: %w", err)
	}
	return nil
}

// RecentClinicalNotes returns the newest notes for a client.
func (c *Client) RecentClinicalNotes(ctx context.Context, clientID string, limit int) ([]models.ClinicalNote, error) {
	rows, err := queryAll[models.ClinicalNote](ctx, c,
		`SELECT `+noteFields+` FROM clinical_note WHERE client_id = $client_id ORDER BY created_at DESC LIMIT $limit`,
		map[string]any{"client_id": clientID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent clinical notes: %w", err)
	}
	return rows, nil
}

// RecentRiskFlags returns the newest risk flags for a client.
func (c *Client) RecentRiskFlags(ctx context.Context, clientID string, limit int) ([]models.RiskFlag, error) {
	rows, err := queryAll[models.RiskFlag](ctx, c,
		`SELECT `+flagFields+` FROM risk_flag WHERE client_id = $client_id ORDER BY created_at DESC LIMIT $limit`,
		map[string]any{"client_id": clientID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent risk flags: %w", err)
	}
	return rows, nil
}

// =============================================================================
// DREAMS
// =============================================================================

// CreateDreamRecord appends a dream.
func (c *Client) CreateDreamRecord(ctx context.Context, d models.DreamRecord) error {
	source := d.SourceData
	if source == nil {
		source = map[string]any{}
	}
	err := c.exec(ctx, `
		CREATE type::record("dream_record", $id) SET
			user_id = $user_id, title = $title, content = $content,
			interpretation = $interpretation, inspiration = $inspiration,
			source_data = $source_data, mood_context = $mood_context,
			created_at = <datetime>$created_at`,
		map[string]any{
			"id":             recordID(d.ID),
			"user_id":        d.UserID,
			"title":          d.Title,
			"content":        d.Content,
			"interpretation": d.Interpretation,
			"inspiration":    d.Inspiration,
			"source_data":    source,
			"mood_context":   string(d.MoodContext),
			"created_at":     timestamp(d.CreatedAt),
		})
	if err != nil {
		return fmt.Errorf("create dream record: %w", err)
	}
	return nil
}

// RecentDreamRecords returns the newest dreams for a user.
func (c *Client) RecentDreamRecords(ctx context.Context, userID string, limit int) ([]models.DreamRecord, error) {
	rows, err := queryAll[models.DreamRecord](ctx, c,
		`SELECT `+dreamFields+` FROM dream_record WHERE user_id = $user_id ORDER BY created_at DESC LIMIT $limit`,
		map[string]any{"user_id": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent dream records: %w", err)
	}
	return rows, nil
}

// CreateDreamPatterns stores a batch of patterns in one transaction.
func (c *Client) CreateDreamPatterns(ctx context.Context, patterns []models.DreamPattern) error {
	if len(patterns) == 0 {
		return nil
	}

	rows := make([]map[string]any, 0, len(patterns))
	for _, p := range patterns {
		related := p.RelatedTests
		if related == nil {
			related = []string{}
		}
		rows = append(rows, map[string]any{
			"id":            recordID(p.ID),
			"user_id":       p.UserID,
			"symbol":        p.Symbol,
			"frequency":     p.Frequency,
			"meaning":       p.Meaning,
			"sentiment":     p.Sentiment,
			"related_tests": related,
			"created_at":    timestamp(p.CreatedAt),
		})
	}

	err := c.exec(ctx, `
		BEGIN TRANSACTION;
		FOR $p IN $rows {
			CREATE type::record("dream_pattern", $p.id) SET
				user_id = $p.user_id, symbol = $p.symbol, frequency = $p.frequency,
				meaning = $p.meaning, sentiment = $p.sentiment,
				related_tests = $p.related_tests, created_at = <datetime>$p.created_at;
		};
		COMMIT TRANSACTION;`,
		map[string]any{"rows": rows})
	if err != nil {
		return fmt.Errorf("create dream patterns: %w", err)
	}
	return nil
}

// RecentDreamPatterns returns the newest stored patterns for a user.
func (c *Client) RecentDreamPatterns(ctx context.Context, userID string, limit int) ([]models.DreamPattern, error) {
	rows, err := queryAll[models.DreamPattern](ctx, c,
		`SELECT `+dreamPatternFields+` FROM dream_pattern WHERE user_id = $user_id ORDER BY created_at DESC LIMIT $limit`,
		map[string]any{"user_id": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent dream patterns: %w", err)
	}
	return rows, nil
}
