package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/ravan/internal/db/sqlite"
	"github.com/raphaelgruber/ravan/internal/lexicon"
	"github.com/raphaelgruber/ravan/internal/llm"
	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/models"
	"github.com/raphaelgruber/ravan/internal/service"
)

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

type fixture struct {
	deps    *Dependencies
	store   *sqlite.Store
	backend *fixedBackend
}

func newFixture(t *testing.T, text string) *fixture {
	t.Helper()
	store, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mc := metrics.NewCollector()
	backend := &fixedBackend{text: text}
	model := llm.NewModelWithBackend(backend, "stub", 0, mc)
	signals := service.NewSignalAggregator(store)

	return &fixture{
		store:   store,
		backend: backend,
		deps: &Dependencies{
			Memory:  service.NewMemoryService(store, model, signals, mc),
			Plans:   service.NewPlanService(store, model, signals, mc),
			Reports: service.NewReportService(store, model, nil, mc),
			Dreams:  service.NewDreamService(store, model, signals, lexicon.Default(), mc),
		},
	}
}

// makeReq builds a mcp.CallToolRequest with the given arguments.
func makeReq(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		tool     mcp.Tool
		name     string
		required []string
	}{
		{getMemoryTool(), "get_therapy_memory", []string{"user_id"}},
		{generatePlanTool(), "generate_session_plan", []string{"user_id"}},
		{generateReportTool(), "generate_clinical_report", []string{"client_id", "clinician_id"}},
		{generateDreamTool(), "generate_dream", nil},
		{analyzeDreamsTool(), "analyze_dreams", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.tool.Name)
			assert.NotEmpty(t, tt.tool.Description)
			assert.ElementsMatch(t, tt.required, tt.tool.InputSchema.Required)
		})
	}
}

func TestNewServerRegistersTools(t *testing.T) {
	f := newFixture(t, "")
	s := NewServer(f.deps)
	require.NotNil(t, s)

	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"get_therapy_memory", "generate_session_plan", "generate_clinical_report", "generate_dream", "analyze_dreams"} {
		assert.Contains(t, string(data), `"name":"`+name+`"`)
	}
}

func TestGetMemory(t *testing.T) {
	f := newFixture(t, "")
	h := NewGetMemoryHandler(f.deps)
	ctx := context.Background()

	res, err := h(ctx, makeReq("get_therapy_memory", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "'user_id' is required")

	res, err = h(ctx, makeReq("get_therapy_memory", map[string]any{"user_id": "u1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "missing memory is a tool error")

	_, err = f.store.UpsertTherapyMemory(ctx, models.TherapyMemory{
		UserID: "u1", Summary: "خلاصه جلسه", KeyInsights: "بینش", EmotionTags: []string{"اضطراب", "امید"}, LastUpdated: models.Now(),
	})
	require.NoError(t, err)

	res, err = h(ctx, makeReq("get_therapy_memory", map[string]any{"user_id": "u1"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))
	text := resultText(res)
	assert.Contains(t, text, "خلاصه جلسه")
	assert.Contains(t, text, "اضطراب, امید")
}

func TestGeneratePlan(t *testing.T) {
	f := newFixture(t, `{"topic":"خواب","focusArea":"روتین","suggestedTest":"PSQI","dailyPractice":"تنفس","aiConfidence":-2}`)
	h := NewGeneratePlanHandler(f.deps)

	res, err := h(context.Background(), makeReq("generate_session_plan", map[string]any{"user_id": "u1"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))
	assert.Contains(t, resultText(res), `"ai_confidence": 0`)
	assert.Contains(t, resultText(res), `"suggested_test": "PSQI"`)
}

func TestGeneratePlanValidation(t *testing.T) {
	f := newFixture(t, "")
	res, err := NewGeneratePlanHandler(f.deps)(context.Background(), makeReq("generate_session_plan", nil))
	require.NoError(t, err, "validation failures are tool results, not protocol errors")
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "userId")
	assert.Zero(t, f.backend.calls)
}

func TestGenerateReport(t *testing.T) {
	f := newFixture(t, `{"level":"LOW","category":"stress"}`)
	h := NewGenerateReportHandler(f.deps)
	ctx := context.Background()
	args := map[string]any{"client_id": "c1", "clinician_id": "dr1"}

	res, err := h(ctx, makeReq("generate_clinical_report", args))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "no test results")

	require.NoError(t, f.store.CreateClientTestResult(ctx, models.ClientTestResult{
		ID: models.NewID(), ClientID: "c1", ClinicianID: "dr1", TestName: "PSS", Score: 60, CreatedAt: models.Now(),
	}))

	res, err = h(ctx, makeReq("generate_clinical_report", args))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))
	assert.Contains(t, resultText(res), `"level": "low"`)
	assert.Contains(t, resultText(res), `"category": "stress"`)
}

func TestDreamTools(t *testing.T) {
	f := newFixture(t, `{"title":"باغ","content":"باغی پر از گل","interpretation":"رشد","inspiration":"صبور باش"}`)
	ctx := context.Background()

	res, err := NewAnalyzeDreamsHandler(f.deps)(ctx, makeReq("analyze_dreams", nil))
	require.NoError(t, err)
	assert.Equal(t, "No dreams recorded yet.", resultText(res))

	res, err = NewGenerateDreamHandler(f.deps)(ctx, makeReq("generate_dream", map[string]any{"user_id": "u1"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))
	assert.Contains(t, resultText(res), "# باغ")
	assert.Contains(t, resultText(res), "**Mood context:** unclear")

	f.backend.text = `{"patterns":[]}`
	res, err = NewAnalyzeDreamsHandler(f.deps)(ctx, makeReq("analyze_dreams", map[string]any{"user_id": "u1"}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(res))
	assert.Contains(t, resultText(res), "# Dream symbols")
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := LoggingMiddleware(logger)(func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return ErrorResult("boom", "retry"), nil
	})
	res, err := h(context.Background(), makeReq("generate_dream", map[string]any{"user_id": "u1"}))
	require.NoError(t, err)
	assert.Equal(t, "boom. retry", resultText(res))
	assert.Contains(t, buf.String(), "tool returned error")
	assert.Contains(t, buf.String(), "tool=generate_dream")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"abcdefghij", 8, "abcde..."},
		{"خداحافظی", 6, "خدا..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.max))
	}
}
