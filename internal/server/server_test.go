package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/ravan/internal/db/sqlite"
	"github.com/raphaelgruber/ravan/internal/lexicon"
	"github.com/raphaelgruber/ravan/internal/llm"
	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/models"
	"github.com/raphaelgruber/ravan/internal/ratelimit"
	"github.com/raphaelgruber/ravan/internal/server"
	"github.com/raphaelgruber/ravan/internal/service"
)

// fixedBackend answers every call with the same text.
type fixedBackend struct {
	mu    sync.Mutex
	text  string
	calls int
}

func (b *fixedBackend) Generate(context.Context, llm.Request) (string, llm.Usage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	return b.text, llm.Usage{}, nil
}

func (b *fixedBackend) Stream(_ context.Context, _ llm.Request, onChunk func(string)) (llm.Usage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	onChunk(b.text)
	return llm.Usage{}, nil
}

func (b *fixedBackend) set(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
}

func (b *fixedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type fixture struct {
	handler    http.Handler
	backend    *fixedBackend
	store      *sqlite.Store
	dispatcher *service.Dispatcher
}

// testLogger creates a logger that discards output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, rateLimit int) *fixture {
	t.Helper()
	store, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mc := metrics.NewCollector()
	backend := &fixedBackend{text: "در خدمتم."}
	model := llm.NewModelWithBackend(backend, "stub", 0, mc)
	lex := lexicon.Default()
	signals := service.NewSignalAggregator(store)

	// Never started, so enqueued tasks stay queued and the second one overflows.
	dispatcher := service.NewDispatcher(service.DispatcherConfig{QueueSize: 1}, mc)

	deps := server.Deps{
		Chat:       service.NewChatService(store, model, signals, dispatcher, service.NewKeywordDetector(lex), mc),
		Plans:      service.NewPlanService(store, model, signals, mc),
		Reports:    service.NewReportService(store, model, dispatcher, mc),
		Dreams:     service.NewDreamService(store, model, signals, lex, mc),
		Memory:     service.NewMemoryService(store, model, signals, mc),
		Ingest:     service.NewIngestService(store),
		Dispatcher: dispatcher,
		Metrics:    mc,
		Limiter:    ratelimit.NewLimiter(ratelimit.NewMemoryStore(64, time.Minute), rateLimit, time.Minute),
	}
	srv := server.New(deps, testLogger())
	return &fixture{handler: srv.Handler(), backend: backend, store: store, dispatcher: dispatcher}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestMissingFieldsReturn400(t *testing.T) {
	f := newFixture(t, 0)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"chat without user", "/therapy-chat", `{"message":"سلام"}`},
		{"chat without message", "/therapy-chat", `{"userId":"u1"}`},
		{"plan without user", "/generate-session-plan", `{}`},
		{"report without clinician", "/generate-report", `{"clientId":"c1"}`},
		{"report with empty body", "/generate-report", ``},
		{"malformed json", "/therapy-chat", `{"userId":`},
		{"emotion out of range", "/emotion-logs", `{"userId":"u1","emotion":"sad","intensity":1.5}`},
		{"mood out of range", "/mood-trends", `{"userId":"u1","category":"sleep","score":0}`},
		{"test score out of range", "/test-results", `{"userId":"u1","testName":"PHQ-9","score":140}`},
		{"client test without client", "/client-test-results", `{"clinicianId":"dr1","testName":"BAI","score":20}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}
	assert.Zero(t, f.backend.callCount(), "validation happens before any model call")
}

func TestChatTurn(t *testing.T) {
	f := newFixture(t, 0)

	rec := f.do(t, http.MethodPost, "/therapy-chat", `{"userId":"u1","message":"سلام"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"reply":"در خدمتم.","sessionEnding":false}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/therapy-chat", `{"userId":"u1","message":"ممنون، خداحافظ"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["sessionEnding"])

	msgs, err := f.store.RecentChatMessages(context.Background(), "u1", "", 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)

	// Queue holds one task; the rest were dead-lettered without failing the replies.
	rec = f.do(t, http.MethodGet, "/admin/dead-letters", "")
	require.Equal(t, http.StatusOK, rec.Code)
	letters := decodeBody(t, rec)["deadLetters"].([]any)
	assert.Len(t, letters, 2)
	assert.Equal(t, "queue full", letters[0].(map[string]any)["reason"])
}

func TestGenerateSessionPlan(t *testing.T) {
	f := newFixture(t, 0)
	f.backend.set(`{"topic":"خواب","focusArea":"بهداشت خواب","suggestedTest":"","dailyPractice":"تنفس","aiConfidence":3}`)

	rec := f.do(t, http.MethodPost, "/generate-session-plan", `{"userId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	plan := decodeBody(t, rec)["plan"].(map[string]any)
	assert.Equal(t, "خواب", plan["topic"])
	assert.Equal(t, 1.0, plan["ai_confidence"])
	assert.Nil(t, plan["suggested_test"])

	rec = f.do(t, http.MethodGet, "/session-plans/u1/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "خواب", decodeBody(t, rec)["plan"].(map[string]any)["topic"])

	rec = f.do(t, http.MethodGet, "/session-plans/nobody/current", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateSessionPlanEmptyResponseIs500(t *testing.T) {
	f := newFixture(t, 0)
	f.backend.set("   ")

	rec := f.do(t, http.MethodPost, "/generate-session-plan", `{"userId":"u1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decodeBody(t, rec)["error"])
}

func TestGenerateReportNoData(t *testing.T) {
	f := newFixture(t, 0)

	rec := f.do(t, http.MethodPost, "/generate-report", `{"clientId":"c1","clinicianId":"dr1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "no data", body["message"])
	assert.Zero(t, f.backend.callCount())
}

func TestGenerateReport(t *testing.T) {
	f := newFixture(t, 0)

	rec := f.do(t, http.MethodPost, "/client-test-results",
		`{"clientId":"c1","clinicianId":"dr1","testName":"BDI-II","score":35,"interpretation":"moderate"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The same text serves as report and as unparseable risk JSON.
	f.backend.set("گزارش بالینی")
	rec = f.do(t, http.MethodPost, "/generate-report", `{"clientId":"c1","clinicianId":"dr1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	risk := body["risk"].(map[string]any)
	assert.Equal(t, "medium", risk["level"])
	assert.Equal(t, "other", risk["category"])
	assert.Equal(t, "گزارش بالینی", body["report"].(map[string]any)["content"])
}

func TestDreamEndpoints(t *testing.T) {
	f := newFixture(t, 0)

	rec := f.do(t, http.MethodPost, "/analyze-dreams", `{"userId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"patterns":[]}`, rec.Body.String())

	f.backend.set(`{"title":"دریا","content":"دریای آرام و آرامش","interpretation":"آرامش","inspiration":"نفس بکش"}`)
	rec = f.do(t, http.MethodPost, "/generate-dream", `{"userId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	dream := decodeBody(t, rec)["dream"].(map[string]any)
	assert.Equal(t, "دریا", dream["title"])
	assert.Equal(t, string(models.MoodUnclear), dream["mood_context"])

	f.backend.set(`{"patterns":[{"symbol":"آرامش","meaning":"سکون","sentiment":0.8,"relatedTests":[]}]}`)
	rec = f.do(t, http.MethodPost, "/analyze-dreams", `{"userId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patterns := decodeBody(t, rec)["patterns"].([]any)
	assert.NotEmpty(t, patterns)
}

func TestGenerateDreamWithoutUser(t *testing.T) {
	f := newFixture(t, 0)
	f.backend.set(`{"title":"شب","content":"ستاره","interpretation":"امید","inspiration":"آرام باش"}`)

	rec := f.do(t, http.MethodPost, "/generate-dream", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "system", decodeBody(t, rec)["dream"].(map[string]any)["user_id"])
}

func TestIngestion(t *testing.T) {
	f := newFixture(t, 0)

	tests := []struct {
		path string
		body string
	}{
		{"/emotion-logs", `{"userId":"u1","emotion":"anxious","intensity":0.7,"note":" before exam "}`},
		{"/mood-trends", `{"userId":"u1","category":"sleep","score":6}`},
		{"/test-results", `{"userId":"u1","testName":"GAD-7","score":40,"result":"mild"}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			assert.NotEmpty(t, body["id"])
			assert.Equal(t, "u1", body["user_id"])
		})
	}

	logs, err := f.store.RecentEmotionLogs(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].Note)
	assert.Equal(t, "before exam", *logs[0].Note)
}

func TestGetMemory(t *testing.T) {
	f := newFixture(t, 0)

	rec := f.do(t, http.MethodGet, "/therapy-memory/u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := f.store.UpsertTherapyMemory(context.Background(), models.TherapyMemory{
		UserID: "u1", Summary: "خلاصه", EmotionTags: []string{"اضطراب"}, LastUpdated: models.Now(),
	})
	require.NoError(t, err)
	rec = f.do(t, http.MethodGet, "/therapy-memory/u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "خلاصه", decodeBody(t, rec)["memory"].(map[string]any)["summary"])
}

func TestHealthAndStats(t *testing.T) {
	f := newFixture(t, 0)

	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	f.do(t, http.MethodPost, "/therapy-chat", `{"userId":"u1","message":"سلام"}`)
	rec = f.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["operations"], metrics.OpChat)
	assert.Equal(t, 1.0, body["queuePending"])
}

func TestUnknownMethodIs405(t *testing.T) {
	f := newFixture(t, 0)
	rec := f.do(t, http.MethodGet, "/therapy-chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, 2)

	for range 2 {
		rec := f.do(t, http.MethodGet, "/stats", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := f.do(t, http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code, "health is never limited")
}

func TestChatSocket(t *testing.T) {
	f := newFixture(t, 0)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/therapy-chat/ws?userId=u1"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "bye"}))
	var reply map[string]any
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "در خدمتم.", reply["reply"])
	assert.Equal(t, true, reply["sessionEnding"])

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "  "}))
	reply = nil
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Contains(t, reply["error"], "message")
}

func TestChatSocketRequiresUser(t *testing.T) {
	f := newFixture(t, 0)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/therapy-chat/ws")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoggingMiddlewarePassesStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := server.LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x?q="+strings.Repeat("a", 300), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "request failed")
	assert.Contains(t, buf.String(), "...")
	assert.NotContains(t, buf.String(), strings.Repeat("a", 250))
}
