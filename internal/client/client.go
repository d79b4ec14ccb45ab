// Package client provides an HTTP client for the ravan server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/models"
)

// Client is an HTTP client for the ravan server.
type Client struct {
	baseURL    string
	clientID   string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses RAVAN_SERVER_URL env var or defaults to localhost:8484.
// Timeout can be configured via RAVAN_CLIENT_TIMEOUT env var (default 10m for slow model calls).
// RAVAN_CLIENT_ID, when set, is sent as X-Client-ID for rate limiting.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("RAVAN_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8484"
	}

	timeout := 10 * time.Minute
	if t := os.Getenv("RAVAN_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: os.Getenv("RAVAN_CLIENT_ID"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// do sends a JSON request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.clientID != "" {
		req.Header.Set("X-Client-ID", c.clientID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// TYPES (matching server responses)
// =============================================================================

// ChatReply is the answer to one chat turn.
type ChatReply struct {
	Reply         string `json:"reply"`
	SessionEnding bool   `json:"sessionEnding"`
}

// ReportResult is the outcome of a clinical report run.
type ReportResult struct {
	Success       bool                 `json:"success"`
	Message       string               `json:"message,omitempty"`
	Report        *models.ClinicalNote `json:"report,omitempty"`
	Risk          *models.RiskFlag     `json:"risk,omitempty"`
	RiskPersisted bool                 `json:"riskPersisted"`
}

// Stats is the server's runtime statistics.
type Stats struct {
	metrics.Snapshot
	QueuePending int `json:"queuePending"`
	DeadLetters  int `json:"deadLetters"`
}

// DeadLetter is a background task that was dropped.
type DeadLetter struct {
	Task struct {
		ID       string `json:"id"`
		Stage    string `json:"stage"`
		UserID   string `json:"userId"`
		Attempts int    `json:"attempts"`
	} `json:"task"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}

// =============================================================================
// PIPELINE OPERATIONS
// =============================================================================

// Chat sends one chat turn.
func (c *Client) Chat(ctx context.Context, userID, message string) (*ChatReply, error) {
	var out ChatReply
	err := c.do(ctx, http.MethodPost, "/therapy-chat", map[string]string{"userId": userID, "message": message}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GeneratePlan generates and stores a new session plan.
func (c *Client) GeneratePlan(ctx context.Context, userID string) (*models.SessionPlan, error) {
	var out struct {
		Plan models.SessionPlan `json:"plan"`
	}
	if err := c.do(ctx, http.MethodPost, "/generate-session-plan", map[string]string{"userId": userID}, &out); err != nil {
		return nil, err
	}
	return &out.Plan, nil
}

// CurrentPlan returns the latest session plan.
func (c *Client) CurrentPlan(ctx context.Context, userID string) (*models.SessionPlan, error) {
	var out struct {
		Plan models.SessionPlan `json:"plan"`
	}
	if err := c.do(ctx, http.MethodGet, "/session-plans/"+url.PathEscape(userID)+"/current", nil, &out); err != nil {
		return nil, err
	}
	return &out.Plan, nil
}

// GenerateReport writes a clinical report and risk flag for a client.
func (c *Client) GenerateReport(ctx context.Context, clientID, clinicianID string) (*ReportResult, error) {
	var out ReportResult
	body := map[string]string{"clientId": clientID, "clinicianId": clinicianID}
	if err := c.do(ctx, http.MethodPost, "/generate-report", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateDream composes a dream. An empty userID targets the system user.
func (c *Client) GenerateDream(ctx context.Context, userID string) (*models.DreamRecord, error) {
	var out struct {
		Dream models.DreamRecord `json:"dream"`
	}
	if err := c.do(ctx, http.MethodPost, "/generate-dream", map[string]string{"userId": userID}, &out); err != nil {
		return nil, err
	}
	return &out.Dream, nil
}

// AnalyzeDreams extracts recurring dream symbols.
func (c *Client) AnalyzeDreams(ctx context.Context, userID string) ([]models.DreamPattern, error) {
	var out struct {
		Patterns []models.DreamPattern `json:"patterns"`
	}
	if err := c.do(ctx, http.MethodPost, "/analyze-dreams", map[string]string{"userId": userID}, &out); err != nil {
		return nil, err
	}
	return out.Patterns, nil
}

// GetMemory returns the user's therapy memory.
func (c *Client) GetMemory(ctx context.Context, userID string) (*models.TherapyMemory, error) {
	var out struct {
		Memory models.TherapyMemory `json:"memory"`
	}
	if err := c.do(ctx, http.MethodGet, "/therapy-memory/"+url.PathEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	return &out.Memory, nil
}

// =============================================================================
// SIGNAL INGESTION
// =============================================================================

// RecordEmotion stores an emotion log with intensity in [0,1].
func (c *Client) RecordEmotion(ctx context.Context, userID, emotion string, intensity float64) (*models.EmotionLog, error) {
	var out models.EmotionLog
	body := map[string]any{"userId": userID, "emotion": emotion, "intensity": intensity}
	if err := c.do(ctx, http.MethodPost, "/emotion-logs", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordMood stores a mood score in [1,10].
func (c *Client) RecordMood(ctx context.Context, userID, category string, score float64) (*models.MoodTrend, error) {
	var out models.MoodTrend
	body := map[string]any{"userId": userID, "category": category, "score": score}
	if err := c.do(ctx, http.MethodPost, "/mood-trends", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordTestResult stores a self-taken test score in [0,100].
func (c *Client) RecordTestResult(ctx context.Context, userID, testName string, score float64, result string) (*models.TestResult, error) {
	var out models.TestResult
	body := map[string]any{"userId": userID, "testName": testName, "score": score, "result": result}
	if err := c.do(ctx, http.MethodPost, "/test-results", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordClientTestResult stores a clinician-assigned test score in [0,100].
func (c *Client) RecordClientTestResult(ctx context.Context, r models.ClientTestResult) (*models.ClientTestResult, error) {
	var out models.ClientTestResult
	body := map[string]any{
		"clientId":       r.ClientID,
		"clinicianId":    r.ClinicianID,
		"testName":       r.TestName,
		"score":          r.Score,
		"interpretation": r.Interpretation,
	}
	if err := c.do(ctx, http.MethodPost, "/client-test-results", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Stats returns in-memory runtime statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeadLetters returns the background tasks the server dropped.
func (c *Client) DeadLetters(ctx context.Context) ([]DeadLetter, error) {
	var out struct {
		DeadLetters []DeadLetter `json:"deadLetters"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/dead-letters", nil, &out); err != nil {
		return nil, err
	}
	return out.DeadLetters, nil
}
