// Package sqlite is a file-backed persistence adapter for the therapy
// pipeline built on the pure-Go modernc SQLite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raphaelgruber/ravan/internal/models"
	_ "modernc.org/sqlite"
)

// timeLayout has fixed width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store implements the pipeline persistence contract on SQLite.
type Store struct {
	db *sql.DB
}

// Open creates dataDir if needed and opens ravan.db inside it.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("sqlite: create data dir: %w", err)
	}
	return OpenPath(filepath.Join(dataDir, "ravan.db"))
}

// OpenPath opens the database file at path and applies migrations.
func OpenPath(path string) (*Store, error) {
	// Per-connection pragmas go in the DSN so every pooled connection gets them.
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
	CREATE TABLE IF NOT EXISTS therapy_memory (
		user_id      TEXT PRIMARY KEY,
		summary      TEXT NOT NULL,
		key_insights TEXT NOT NULL,
		emotion_tags TEXT NOT NULL DEFAULT '[]',
		last_updated TEXT NOT NULL,
		created_at   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chat_message (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_message_user ON chat_message(user_id, created_at);

	CREATE TABLE IF NOT EXISTS emotion_log (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		emotion    TEXT NOT NULL,
		intensity  REAL NOT NULL CHECK (intensity >= 0 AND intensity <= 1),
		note       TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_emotion_log_user ON emotion_log(user_id, created_at);

	CREATE TABLE IF NOT EXISTS mood_trend (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		category   TEXT NOT NULL,
		score      REAL NOT NULL CHECK (score >= 1 AND score <= 10),
		note       TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mood_trend_user ON mood_trend(user_id, created_at);

	CREATE TABLE IF NOT EXISTS test_result (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		test_name  TEXT NOT NULL,
		score      REAL NOT NULL,
		result     TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_test_result_user ON test_result(user_id, created_at);

	CREATE TABLE IF NOT EXISTS client_test_result (
		id             TEXT PRIMARY KEY,
		client_id      TEXT NOT NULL,
		clinician_id   TEXT NOT NULL,
		test_name      TEXT NOT NULL,
		score          REAL NOT NULL,
		interpretation TEXT NOT NULL DEFAULT '',
		created_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_client_test_result_client ON client_test_result(client_id, created_at);

	CREATE TABLE IF NOT EXISTS session_plan (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		topic          TEXT NOT NULL,
		focus_area     TEXT NOT NULL,
		suggested_test TEXT,
		daily_practice TEXT NOT NULL,
		ai_confidence  REAL NOT NULL,
		fallback       INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_plan_user ON session_plan(user_id, created_at);

	CREATE TABLE IF NOT EXISTS clinical_note (
		id           TEXT PRIMARY KEY,
		client_id    TEXT NOT NULL,
		clinician_id TEXT NOT NULL,
		content      TEXT NOT NULL,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_clinical_note_client ON clinical_note(client_id, created_at);

	CREATE TABLE IF NOT EXISTS risk_flag (
		id           TEXT PRIMARY KEY,
		note_id      TEXT NOT NULL REFERENCES clinical_note(id),
		client_id    TEXT NOT NULL,
		clinician_id TEXT NOT NULL,
		level        TEXT NOT NULL CHECK (level IN ('low', 'medium', 'high', 'critical')),
		category     TEXT NOT NULL CHECK (category IN ('anxiety', 'depression', 'suicide', 'self-harm', 'stress', 'other')),
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_risk_flag_client ON risk_flag(client_id, created_at);

	CREATE TABLE IF NOT EXISTS dream_record (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL,
		title          TEXT NOT NULL,
		content        TEXT NOT NULL,
		interpretation TEXT NOT NULL,
		inspiration    TEXT NOT NULL,
		source_data    TEXT NOT NULL DEFAULT '{}',
		mood_context   TEXT NOT NULL,
		created_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_dream_record_user ON dream_record(user_id, created_at);

	CREATE TABLE IF NOT EXISTS dream_pattern (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		symbol        TEXT NOT NULL,
		frequency     INTEGER NOT NULL CHECK (frequency > 0),
		meaning       TEXT NOT NULL,
		sentiment     REAL NOT NULL CHECK (sentiment >= -1 AND sentiment <= 1),
		related_tests TEXT NOT NULL DEFAULT '[]',
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_dream_pattern_user ON dream_pattern(user_id, created_at);
`

// ─── Helpers ────────────────────────────────────────────────────────────────

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = models.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func encodeJSON(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func decodeStrings(s string) []string {
	out := []string{}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}

func ensureID(id string) string {
	if id == "" {
		return models.NewID()
	}
	return id
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// ─── Therapy memory ─────────────────────────────────────────────────────────

// GetTherapyMemory returns the user's memory, or nil when none exists.
func (s *Store) GetTherapyMemory(ctx context.Context, userID string) (*models.TherapyMemory, error) {
	var (
		m                      models.TherapyMemory
		tags, updated, created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, summary, key_insights, emotion_tags, last_updated, created_at
		FROM therapy_memory WHERE user_id = ?`, userID,
	).Scan(&m.UserID, &m.Summary, &m.KeyInsights, &tags, &updated, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get therapy memory: %w", err)
	}
	m.EmotionTags = decodeStrings(tags)
	m.LastUpdated = parseTime(updated)
	m.CreatedAt = parseTime(created)
	return &m, nil
}

// UpsertTherapyMemory replaces the user's memory, keeping the original created_at.
func (s *Store) UpsertTherapyMemory(ctx context.Context, mem models.TherapyMemory) (*models.TherapyMemory, error) {
	tags, err := encodeJSON(mem.EmotionTags, "[]")
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode emotion tags: %w", err)
	}
	now := formatTime(mem.LastUpdated)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO therapy_memory (user_id, summary, key_insights, emotion_tags, last_updated, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			summary      = excluded.summary,
			key_insights = excluded.key_insights,
			emotion_tags = excluded.emotion_tags,
			last_updated = excluded.last_updated`,
		mem.UserID, mem.Summary, mem.KeyInsights, tags, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upsert therapy memory: %w", err)
	}
	return s.GetTherapyMemory(ctx, mem.UserID)
}

// ─── Chat messages ──────────────────────────────────────────────────────────

// CreateChatMessage appends a chat message.
func (s *Store) CreateChatMessage(ctx context.Context, msg models.ChatMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_message (id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		ensureID(msg.ID), msg.UserID, string(msg.Role), msg.Content, formatTime(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create chat message: %w", err)
	}
	return nil
}

// RecentChatMessages returns the newest messages; an empty role matches both.
func (s *Store) RecentChatMessages(ctx context.Context, userID string, role models.MessageRole, limit int) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, role, content, created_at FROM chat_message
		WHERE user_id = ? AND (? = '' OR role = ?)
		ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, string(role), string(role), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent chat messages: %w", err)
	}
	defer rows.Close()

	out := []models.ChatMessage{}
	for rows.Next() {
		var (
			m     models.ChatMessage
			r, ts string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &r, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan chat message: %w", err)
		}
		m.Role = models.MessageRole(r)
		m.CreatedAt = parseTime(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ─── Emotion logs and mood trends ───────────────────────────────────────────

// CreateEmotionLog appends an emotion log.
func (s *Store) CreateEmotionLog(ctx context.Context, e models.EmotionLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emotion_log (id, user_id, emotion, intensity, note, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ensureID(e.ID), e.UserID, e.Emotion, e.Intensity, nullString(e.Note), formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create emotion log: %w", err)
	}
	return nil
}

// RecentEmotionLogs returns the newest emotion logs.
func (s *Store) RecentEmotionLogs(ctx context.Context, userID string, limit int) ([]models.EmotionLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, emotion, intensity, note, created_at FROM emotion_log
		WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent emotion logs: %w", err)
	}
	defer rows.Close()

	out := []models.EmotionLog{}
	for rows.Next() {
		var (
			e    models.EmotionLog
			note sql.NullString
			ts   string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Emotion, &e.Intensity, &note, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan emotion log: %w", err)
		}
		e.Note = stringPtr(note)
		e.CreatedAt = parseTime(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateMoodTrend appends a mood entry.
func (s *Store) CreateMoodTrend(ctx context.Context, m models.MoodTrend) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mood_trend (id, user_id, category, score, note, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ensureID(m.ID), m.UserID, m.Category, m.Score, nullString(m.Note), formatTime(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create mood trend: %w", err)
	}
	return nil
}

// RecentMoodTrends returns the newest mood entries.
func (s *Store) RecentMoodTrends(ctx context.Context, userID string, limit int) ([]models.MoodTrend, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, category, score, note, created_at FROM mood_trend
		WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent mood trends: %w", err)
	}
	defer rows.Close()

	out := []models.MoodTrend{}
	for rows.Next() {
		var (
			m    models.MoodTrend
			note sql.NullString
			ts   string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Category, &m.Score, &note, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan mood trend: %w", err)
		}
		m.Note = stringPtr(note)
		m.CreatedAt = parseTime(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ─── Test results ───────────────────────────────────────────────────────────

// CreateTestResult appends a self-taken test result.
func (s *Store) CreateTestResult(ctx context.Context, r models.TestResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO test_result (id, user_id, test_name, score, result, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ensureID(r.ID), r.UserID, r.TestName, r.Score, r.Result, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create test result: %w", err)
	}
	return nil
}

// RecentTestResults returns the newest self-taken test results.
func (s *Store) RecentTestResults(ctx context.Context, userID string, limit int) ([]models.TestResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, test_name, score, result, created_at FROM test_result
		WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent test results: %w", err)
	}
	defer rows.Close()

	out := []models.TestResult{}
	for rows.Next() {
		var (
			r  models.TestResult
			ts string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.TestName, &r.Score, &r.Result, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan test result: %w", err)
		}
		r.CreatedAt = parseTime(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateClientTestResult appends a clinician-assigned test result.
func (s *Store) CreateClientTestResult(ctx context.Context, r models.ClientTestResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO client_test_result (id, client_id, clinician_id, test_name, score, interpretation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ensureID(r.ID), r.ClientID, r.ClinicianID, r.TestName, r.Score, r.Interpretation, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create client test result: %w", err)
	}
	return nil
}

// RecentClientTestResults returns the newest results for a client.
func (s *Store) RecentClientTestResults(ctx context.Context, clientID string, limit int) ([]models.ClientTestResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, clinician_id, test_name, score, interpretation, created_at FROM client_test_result
		WHERE client_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent client test results: %w", err)
	}
	defer rows.Close()

	out := []models.ClientTestResult{}
	for rows.Next() {
		var (
			r  models.ClientTestResult
			ts string
		)
		if err := rows.Scan(&r.ID, &r.ClientID, &r.ClinicianID, &r.TestName, &r.Score, &r.Interpretation, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan client test result: %w", err)
		}
		r.CreatedAt = parseTime(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ─── Session plans ──────────────────────────────────────────────────────────

// CreateSessionPlan appends a session plan.
func (s *Store) CreateSessionPlan(ctx context.Context, p models.SessionPlan) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_plan (id, user_id, topic, focus_area, suggested_test, daily_practice, ai_confidence, fallback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ensureID(p.ID), p.UserID, p.Topic, p.FocusArea, nullString(p.SuggestedTest),
		p.DailyPractice, p.AIConfidence, p.Fallback, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create session plan: %w", err)
	}
	return nil
}

// LatestSessionPlan returns the user's current plan, or nil.
func (s *Store) LatestSessionPlan(ctx context.Context, userID string) (*models.SessionPlan, error) {
	var (
		p         models.SessionPlan
		suggested sql.NullString
		ts        string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, topic, focus_area, suggested_test, daily_practice, ai_confidence, fallback, created_at
		FROM session_plan WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, userID,
	).Scan(&p.ID, &p.UserID, &p.Topic, &p.FocusArea, &suggested, &p.DailyPractice, &p.AIConfidence, &p.Fallback, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: latest session plan: %w", err)
	}
	p.SuggestedTest = stringPtr(suggested)
	p.CreatedAt = parseTime(ts)
	return &p, nil
}

// ─── Clinical notes and risk flags ──────────────────────────────────────────

// CreateClinicalNote appends a clinical note.
func (s *Store) CreateClinicalNote(ctx context.Context, n models.ClinicalNote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clinical_note (id, client_id, clinician_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		ensureID(n.ID), n.ClientID, n.ClinicianID, n.Content, formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create clinical note: %w", err)
	}
	return nil
}

// CreateRiskFlag appends a risk flag for an existing note.
func (s *Store) CreateRiskFlag(ctx context.Context, f models.RiskFlag) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO risk_flag (id, note_id, client_id, clinician_id, level, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ensureID(f.ID), f.NoteID, f.ClientID, f.ClinicianID, string(f.Level), string(f.Category), formatTime(f.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create risk flag: %w", err)
	}
	return nil
}

// RecentClinicalNotes returns the newest notes for a client.
func (s *Store) RecentClinicalNotes(ctx context.Context, clientID string, limit int) ([]models.ClinicalNote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, clinician_id, content, created_at FROM clinical_note
		WHERE client_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent clinical notes: %w", err)
	}
	defer rows.Close()

	out := []models.ClinicalNote{}
	for rows.Next() {
		var (
			n  models.ClinicalNote
			ts string
		)
		if err := rows.Scan(&n.ID, &n.ClientID, &n.ClinicianID, &n.Content, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan clinical note: %w", err)
		}
		n.CreatedAt = parseTime(ts)
		out = append(out, n)
	}
	return out, rows.Err()
}

// RecentRiskFlags returns the newest risk flags for a client.
func (s *Store) RecentRiskFlags(ctx context.Context, clientID string, limit int) ([]models.RiskFlag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, note_id, client_id, clinician_id, level, category, created_at FROM risk_flag
		WHERE client_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent risk flags: %w", err)
	}
	defer rows.Close()

	out := []models.RiskFlag{}
	for rows.Next() {
		var (
			f              models.RiskFlag
			level, cat, ts string
		)
		if err := rows.Scan(&f.ID, &f.NoteID, &f.ClientID, &f.ClinicianID, &level, &cat, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan risk flag: %w", err)
		}
		f.Level = models.RiskLevel(level)
		f.Category = models.RiskCategory(cat)
		f.CreatedAt = parseTime(ts)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ─── Dreams ─────────────────────────────────────────────────────────────────

// CreateDreamRecord appends a dream.
func (s *Store) CreateDreamRecord(ctx context.Context, d models.DreamRecord) error {
	source, err := encodeJSON(d.SourceData, "{}")
	if err != nil {
		return fmt.Errorf("sqlite: encode source data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dream_record (id, user_id, title, content, interpretation, inspiration, source_data, mood_context, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ensureID(d.ID), d.UserID, d.Title, d.Content, d.Interpretation, d.Inspiration,
		source, string(d.MoodContext), formatTime(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create dream record: %w", err)
	}
	return nil
}

// RecentDreamRecords returns the newest dreams for a user.
func (s *Store) RecentDreamRecords(ctx context.Context, userID string, limit int) ([]models.DreamRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, content, interpretation, inspiration, source_data, mood_context, created_at
		FROM dream_record WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent dream records: %w", err)
	}
	defer rows.Close()

	out := []models.DreamRecord{}
	for rows.Next() {
		var (
			d                models.DreamRecord
			source, mood, ts string
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.Content, &d.Interpretation, &d.Inspiration, &source, &mood, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan dream record: %w", err)
		}
		_ = json.Unmarshal([]byte(source), &d.SourceData)
		d.MoodContext = models.MoodContext(mood)
		d.CreatedAt = parseTime(ts)
		out = append(out, d)
	}
	return out, rows.Err()
}

// CreateDreamPatterns stores a batch of patterns in one transaction.
func (s *Store) CreateDreamPatterns(ctx context.Context, patterns []models.DreamPattern) error {
	if len(patterns) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO dream_pattern (id, user_id, symbol, frequency, meaning, sentiment, related_tests, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare dream pattern: %w", err)
	}
	defer stmt.Close()

	for _, p := range patterns {
		related, err := encodeJSON(p.RelatedTests, "[]")
		if err != nil {
			return fmt.Errorf("sqlite: encode related tests: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, ensureID(p.ID), p.UserID, p.Symbol, p.Frequency,
			p.Meaning, p.Sentiment, related, formatTime(p.CreatedAt)); err != nil {
			return fmt.Errorf("sqlite: create dream pattern %q: %w", p.Symbol, err)
		}
	}
	return tx.Commit()
}

// RecentDreamPatterns returns the newest stored patterns for a user.
func (s *Store) RecentDreamPatterns(ctx context.Context, userID string, limit int) ([]models.DreamPattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, symbol, frequency, meaning, sentiment, related_tests, created_at
		FROM dream_pattern WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent dream patterns: %w", err)
	}
	defer rows.Close()

	out := []models.DreamPattern{}
	for rows.Next() {
		var (
			p           models.DreamPattern
			related, ts string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Symbol, &p.Frequency, &p.Meaning, &p.Sentiment, &related, &ts); err != nil {
			return nil, fmt.Errorf("sqlite: scan dream pattern: %w", err)
		}
		p.RelatedTests = decodeStrings(related)
		p.CreatedAt = parseTime(ts)
		out = append(out, p)
	}
	return out, rows.Err()
}
