// Package llm is the gateway to the configured language model provider.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/ravan/internal/config"
	"github.com/raphaelgruber/ravan/internal/metrics"
)

// Request is a single system+user prompt exchange.
type Request struct {
	System      string
	User        string
	Temperature *float64
	MaxTokens   int
}

// Usage reports token counts when the provider returns them.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Backend is a provider transport. Stream delivers chunks in arrival order.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, Usage, error)
	Stream(ctx context.Context, req Request, onChunk func(chunk string)) (Usage, error)
}

// CallOption tunes a single completion.
type CallOption func(*Request)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CallOption {
	return func(r *Request) { r.Temperature = &t }
}

// WithMaxTokens caps the response length.
func WithMaxTokens(n int) CallOption {
	return func(r *Request) { r.MaxTokens = n }
}

// Model completes prompts against one provider and model.
type Model struct {
	backend   Backend
	modelName string
	timeout   time.Duration
	metrics   *metrics.Collector
}

// NewModel creates the backend selected by cfg.LLMProvider.
func NewModel(ctx context.Context, cfg config.Config, mc *metrics.Collector) (*Model, error) {
	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewModelWithBackend(backend, cfg.LLMModel, cfg.LLMTimeout, mc), nil
}

// NewModelWithBackend wraps an existing backend. A zero timeout means none.
func NewModelWithBackend(b Backend, modelName string, timeout time.Duration, mc *metrics.Collector) *Model {
	return &Model{backend: b, modelName: modelName, timeout: timeout, metrics: mc}
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.modelName
}

// Complete returns the full text of the model's answer.
// Blank answers yield ErrEmptyResponse.
func (m *Model) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ...CallOption) (string, error) {
	req := buildRequest(systemPrompt, userPrompt, opts)

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	text, usage, err := m.backend.Generate(ctx, req)
	duration := time.Since(start)
	m.record(metrics.OpLLMGenerate, duration, usage)

	if err != nil {
		slog.Warn("llm generate failed", "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("generate: %w", wrapFatalError(err))
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}

	slog.Debug("llm generate complete", "model", m.modelName, "duration_ms", duration.Milliseconds(), "chars", len(text))
	return text, nil
}

// CompleteStream uses the provider's streaming transport and returns the
// accumulated text once the stream ends. Callers never see partial output.
func (m *Model) CompleteStream(ctx context.Context, systemPrompt, userPrompt string, opts ...CallOption) (string, error) {
	req := buildRequest(systemPrompt, userPrompt, opts)

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var sb strings.Builder
	start := time.Now()
	usage, err := m.backend.Stream(ctx, req, func(chunk string) {
		sb.WriteString(chunk)
	})
	duration := time.Since(start)
	m.record(metrics.OpLLMStream, duration, usage)

	if err != nil {
		slog.Warn("llm stream failed", "model", m.modelName, "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("stream: %w", wrapFatalError(err))
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (m *Model) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.timeout)
}

func (m *Model) record(op string, d time.Duration, u Usage) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordLLMUsage(op, d, u.InputTokens, u.OutputTokens)
}

func buildRequest(system, user string, opts []CallOption) Request {
	req := Request{System: system, User: user}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}
