package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/raphaelgruber/ravan/internal/db/sqlite"
	"github.com/raphaelgruber/ravan/internal/lexicon"
	"github.com/raphaelgruber/ravan/internal/llm"
	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/models"
)

// scriptedBackend answers calls with responses in order, repeating the last.
type scriptedBackend struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []llm.Request
}

func script(responses ...string) *scriptedBackend {
	return &scriptedBackend{responses: responses}
}

func (b *scriptedBackend) next(req llm.Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, req)
	if b.err != nil {
		return "", b.err
	}
	if len(b.responses) == 0 {
		return "", nil
	}
	i := min(len(b.calls), len(b.responses)) - 1
	return b.responses[i], nil
}

func (b *scriptedBackend) Generate(_ context.Context, req llm.Request) (string, llm.Usage, error) {
	text, err := b.next(req)
	return text, llm.Usage{}, err
}

func (b *scriptedBackend) Stream(_ context.Context, req llm.Request, onChunk func(string)) (llm.Usage, error) {
	text, err := b.next(req)
	if err != nil {
		return llm.Usage{}, err
	}
	runes := []rune(text)
	half := len(runes) / 2
	onChunk(string(runes[:half]))
	onChunk(string(runes[half:]))
	return llm.Usage{}, nil
}

func (b *scriptedBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *scriptedBackend) lastCall() llm.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[len(b.calls)-1]
}

func newModel(b llm.Backend) *llm.Model {
	return llm.NewModelWithBackend(b, "stub", 0, metrics.NewCollector())
}

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// recordingEnqueuer captures tasks instead of running them.
type recordingEnqueuer struct {
	mu    sync.Mutex
	tasks []Task
}

func (e *recordingEnqueuer) Enqueue(task Task) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
	return true
}

func (e *recordingEnqueuer) stages() []Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Stage, len(e.tasks))
	for i, t := range e.tasks {
		out[i] = t.Stage
	}
	return out
}

// failingStore fails the flagged calls and delegates the rest.
type failingStore struct {
	Store
	failEmotions bool
	failFlags    bool
}

var errStoreDown = errors.New("store unavailable")

func (f *failingStore) RecentEmotionLogs(ctx context.Context, userID string, limit int) ([]models.EmotionLog, error) {
	if f.failEmotions {
		return nil, errStoreDown
	}
	return f.Store.RecentEmotionLogs(ctx, userID, limit)
}

func (f *failingStore) CreateRiskFlag(ctx context.Context, flag models.RiskFlag) error {
	if f.failFlags {
		return errStoreDown
	}
	return f.Store.CreateRiskFlag(ctx, flag)
}

func strPtr(s string) *string { return &s }

var testLexicon = lexicon.Default()
