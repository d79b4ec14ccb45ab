package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/ravan/internal/ratelimit"
)

type recorder struct {
	alerts []Alert
	err    error
}

func (r *recorder) Notify(_ context.Context, a Alert) error {
	r.alerts = append(r.alerts, a)
	return r.err
}

func TestAlertFromPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		wantErr bool
	}{
		{
			name: "complete",
			payload: map[string]any{
				"client_id": "c1", "clinician_id": "dr1", "note_id": "n1",
				"level": "critical", "category": "suicide",
			},
		},
		{
			name:    "missing clinician",
			payload: map[string]any{"client_id": "c1", "level": "high"},
			wantErr: true,
		},
		{
			name:    "wrong type",
			payload: map[string]any{"client_id": 5, "clinician_id": "dr1", "level": "high"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := AlertFromPayload(tt.payload)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "c1", a.ClientID)
			assert.Equal(t, "dr1", a.ClinicianID)
			assert.Equal(t, "critical", a.Level)
			assert.False(t, a.RaisedAt.IsZero())
		})
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second)
	err := n.Notify(context.Background(), Alert{ClientID: "c1", ClinicianID: "dr1", Level: "high", Category: "self-harm"})
	require.NoError(t, err)
	assert.Equal(t, "self-harm", got.Category)
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, 0).Notify(context.Background(), Alert{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "nope")
}

func TestMultiContinuesAfterError(t *testing.T) {
	failing := &recorder{err: errors.New("boom")}
	ok := &recorder{}
	err := Multi{failing, ok}.Notify(context.Background(), Alert{ClientID: "c1"})
	assert.EqualError(t, err, "boom")
	assert.Len(t, ok.alerts, 1)
}

func TestDeduper(t *testing.T) {
	rec := &recorder{}
	d := NewDeduper(rec, ratelimit.NewMemoryStore(16, time.Hour), time.Hour)
	ctx := context.Background()

	a := Alert{ClientID: "c1", ClinicianID: "dr1", Level: "critical"}
	require.NoError(t, d.Notify(ctx, a))
	require.NoError(t, d.Notify(ctx, a))
	assert.Len(t, rec.alerts, 1, "repeat within window is suppressed")

	b := a
	b.Level = "high"
	require.NoError(t, d.Notify(ctx, b))
	assert.Len(t, rec.alerts, 2, "different level is a different alert")
}

type downStore struct{}

func (downStore) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("down")
}

func TestDeduperDeliversWhenStoreFails(t *testing.T) {
	rec := &recorder{}
	d := NewDeduper(rec, downStore{}, time.Hour)
	a := Alert{ClientID: "c1", ClinicianID: "dr1", Level: "critical"}
	require.NoError(t, d.Notify(context.Background(), a))
	require.NoError(t, d.Notify(context.Background(), a))
	assert.Len(t, rec.alerts, 2)
}
