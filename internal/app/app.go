// Package app wires configuration, persistence, the language model and the
// pipeline services into one runnable unit shared by the HTTP and MCP entry
// points.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/ravan/internal/config"
	"github.com/raphaelgruber/ravan/internal/db"
	"github.com/raphaelgruber/ravan/internal/db/sqlite"
	"github.com/raphaelgruber/ravan/internal/lexicon"
	"github.com/raphaelgruber/ravan/internal/llm"
	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/notify"
	"github.com/raphaelgruber/ravan/internal/ratelimit"
	"github.com/raphaelgruber/ravan/internal/server"
	"github.com/raphaelgruber/ravan/internal/service"
	"github.com/raphaelgruber/ravan/internal/tools"
)

const (
	counterCacheSize = 10_000
	webhookTimeout   = 10 * time.Second
)

// App holds every long-lived dependency.
type App struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Collector

	store      service.Store
	closeStore func(ctx context.Context) error
	counters   ratelimit.CounterStore
	notifier   notify.Notifier
	limiter    *ratelimit.Limiter
	dispatcher *service.Dispatcher

	chat    *service.ChatService
	plans   *service.PlanService
	reports *service.ReportService
	dreams  *service.DreamService
	memory  *service.MemoryService
	ingest  *service.IngestService
}

// Option overrides a dependency New would otherwise build from config.
type Option func(*options)

type options struct {
	model *llm.Model
	store service.Store
}

// WithModel uses m instead of the provider selected by config.
func WithModel(m *llm.Model) Option {
	return func(o *options) { o.model = m }
}

// WithStore uses s instead of opening the configured backend. The caller
// keeps ownership and must close it.
func WithStore(s service.Store) Option {
	return func(o *options) { o.store = s }
}

// New builds the application. Call Start to begin background work and Close
// to release resources.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics.NewCollector(),
		closeStore: func(context.Context) error { return nil },
	}

	if err := a.openStore(ctx, o.store); err != nil {
		return nil, err
	}

	model := o.model
	if model == nil {
		m, err := llm.NewModel(ctx, cfg, a.metrics)
		if err != nil {
			_ = a.closeStore(ctx)
			return nil, fmt.Errorf("create model: %w", err)
		}
		model = m
	}

	if a.counters == nil {
		a.counters = ratelimit.NewMemoryStore(counterCacheSize, max(cfg.RateWindow, cfg.NotifyDedupe))
	}
	a.limiter = ratelimit.NewLimiter(a.counters, cfg.RateLimit, cfg.RateWindow)
	a.notifier = a.buildNotifier()

	a.dispatcher = service.NewDispatcher(service.DispatcherConfig{
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
		MaxAttempts: cfg.TaskMaxAttempts,
		TaskTimeout: cfg.TaskTimeout,
	}, a.metrics)

	signals := service.NewSignalAggregator(a.store)
	lex := lexicon.Default()

	a.memory = service.NewMemoryService(a.store, model, signals, a.metrics)
	a.plans = service.NewPlanService(a.store, model, signals, a.metrics)
	a.chat = service.NewChatService(a.store, model, signals, a.dispatcher, service.NewKeywordDetector(lex), a.metrics)
	a.reports = service.NewReportService(a.store, model, a.dispatcher, a.metrics)
	a.dreams = service.NewDreamService(a.store, model, signals, lex, a.metrics)
	a.ingest = service.NewIngestService(a.store)

	a.dispatcher.Handle(service.StageConsolidateMemory, a.consolidate)
	a.dispatcher.Handle(service.StageGeneratePlan, a.generatePlan)
	a.dispatcher.Handle(service.StageNotify, a.notify)

	logger.Info("app initialized",
		"store", a.storeName(o.store != nil),
		"llm_provider", cfg.LLMProvider,
		"llm_model", model.Name(),
		"workers", cfg.Workers,
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context, injected service.Store) error {
	if injected != nil {
		a.store = injected
		return nil
	}

	switch a.cfg.Store {
	case config.StoreSQLite:
		st, err := sqlite.Open(a.cfg.SQLiteDir)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		a.store = st
		a.closeStore = func(context.Context) error { return st.Close() }
		return nil

	case config.StoreSurrealDB, "":
		client, err := db.NewClient(ctx, db.Config{
			URL:       a.cfg.SurrealDBURL,
			Namespace: a.cfg.SurrealDBNamespace,
			Database:  a.cfg.SurrealDBDatabase,
			Username:  a.cfg.SurrealDBUser,
			Password:  a.cfg.SurrealDBPass,
			AuthLevel: a.cfg.SurrealDBAuthLevel,
		}, a.logger, a.metrics)
		if err != nil {
			return fmt.Errorf("connect surrealdb: %w", err)
		}
		if err := client.InitSchema(ctx); err != nil {
			_ = client.Close(ctx)
			return fmt.Errorf("init schema: %w", err)
		}
		a.store = client
		a.counters = client
		a.closeStore = client.Close
		return nil

	default:
		return fmt.Errorf("unknown store %q", a.cfg.Store)
	}
}

func (a *App) storeName(injected bool) string {
	if injected {
		return "injected"
	}
	if a.cfg.Store == "" {
		return config.StoreSurrealDB
	}
	return a.cfg.Store
}

func (a *App) buildNotifier() notify.Notifier {
	targets := notify.Multi{notify.LogNotifier{}}
	if a.cfg.NotifyWebhook != "" {
		targets = append(targets, notify.NewWebhookNotifier(a.cfg.NotifyWebhook, webhookTimeout))
	}
	return notify.NewDeduper(countingNotifier{next: targets, mc: a.metrics}, a.counters, a.cfg.NotifyDedupe)
}

// countingNotifier counts alerts that reached every target.
type countingNotifier struct {
	next notify.Notifier
	mc   *metrics.Collector
}

func (c countingNotifier) Notify(ctx context.Context, alert notify.Alert) error {
	if err := c.next.Notify(ctx, alert); err != nil {
		return err
	}
	c.mc.Incr(metrics.CounterNotificationsOut)
	return nil
}

func (a *App) consolidate(ctx context.Context, task service.Task) error {
	return a.memory.Consolidate(ctx, task.UserID)
}

func (a *App) generatePlan(ctx context.Context, task service.Task) error {
	_, err := a.plans.Generate(ctx, task.UserID)
	return err
}

func (a *App) notify(ctx context.Context, task service.Task) error {
	alert, err := notify.AlertFromPayload(task.Payload)
	if err != nil {
		return err
	}
	return a.notifier.Notify(ctx, alert)
}

// Start launches the dispatcher workers.
func (a *App) Start() {
	a.dispatcher.Start()
}

// Close drains background work and releases the store.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown dispatcher: %w", err))
	}
	if err := a.closeStore(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}

// Config returns the configuration the app was built with.
func (a *App) Config() config.Config { return a.cfg }

// Metrics returns the shared collector.
func (a *App) Metrics() *metrics.Collector { return a.metrics }

// Dispatcher returns the background task dispatcher.
func (a *App) Dispatcher() *service.Dispatcher { return a.dispatcher }

// ServerDeps returns the dependencies for the HTTP API.
func (a *App) ServerDeps() server.Deps {
	return server.Deps{
		Chat:       a.chat,
		Plans:      a.plans,
		Reports:    a.reports,
		Dreams:     a.dreams,
		Memory:     a.memory,
		Ingest:     a.ingest,
		Dispatcher: a.dispatcher,
		Metrics:    a.metrics,
		Limiter:    a.limiter,
	}
}

// ToolDeps returns the dependencies for the MCP tools.
func (a *App) ToolDeps() *tools.Dependencies {
	return &tools.Dependencies{
		Memory:  a.memory,
		Plans:   a.plans,
		Reports: a.reports,
		Dreams:  a.dreams,
		Logger:  a.logger,
	}
}
