// Package notify delivers clinician alerts raised by urgent risk flags.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/raphaelgruber/ravan/internal/ratelimit"
)

// Alert is an urgent risk flag addressed to a clinician.
type Alert struct {
	ClientID    string    `json:"clientId"`
	ClinicianID string    `json:"clinicianId"`
	NoteID      string    `json:"noteId"`
	Level       string    `json:"level"`
	Category    string    `json:"category"`
	RaisedAt    time.Time `json:"raisedAt"`
}

// AlertFromPayload reads an alert out of a task payload.
func AlertFromPayload(payload map[string]any) (Alert, error) {
	str := func(key string) string {
		s, _ := payload[key].(string)
		return s
	}
	a := Alert{
		ClientID:    str("client_id"),
		ClinicianID: str("clinician_id"),
		NoteID:      str("note_id"),
		Level:       str("level"),
		Category:    str("category"),
		RaisedAt:    time.Now().UTC(),
	}
	if a.ClientID == "" || a.ClinicianID == "" || a.Level == "" {
		return Alert{}, fmt.Errorf("incomplete alert payload: %v", payload)
	}
	return a, nil
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(_ context.Context, a Alert) error {
	slog.Warn("clinician alert",
		"client_id", a.ClientID,
		"clinician_id", a.ClinicianID,
		"note_id", a.NoteID,
		"level", a.Level,
		"category", a.Category)
	return nil
}

// WebhookNotifier posts alerts as JSON to a URL.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
}

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// Notify implements Notifier.
func (w *WebhookNotifier) Notify(ctx context.Context, a Alert) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post alert: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// Multi fans an alert out to every notifier and returns the first error.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, a Alert) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			slog.Warn("notifier failed", "client_id", a.ClientID, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Deduper suppresses repeats of the same alert within a window.
type Deduper struct {
	next   Notifier
	store  ratelimit.CounterStore
	window time.Duration
}

// NewDeduper wraps next so that an alert for the same client, clinician and
// level is delivered at most once per window.
func NewDeduper(next Notifier, store ratelimit.CounterStore, window time.Duration) *Deduper {
	return &Deduper{next: next, store: store, window: window}
}

// Notify implements Notifier. Store errors deliver the alert anyway.
func (d *Deduper) Notify(ctx context.Context, a Alert) error {
	key := "alert:" + a.ClinicianID + ":" + a.ClientID + ":" + a.Level
	count, _, err := d.store.Incr(ctx, key, d.window)
	if err != nil {
		slog.Warn("alert dedupe failed", "key", key, "error", err)
	} else if count > 1 {
		slog.Debug("duplicate alert suppressed", "key", key, "count", count)
		return nil
	}
	return d.next.Notify(ctx, a)
}
