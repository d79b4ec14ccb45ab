package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/ravan/internal/llm"
	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/models"
)

const (
	reportTestLimit = 10

	// NoDataMessage is reported when a client has no test results.
	NoDataMessage = "no data"
)

// ReportResult is the outcome of a clinical report run.
type ReportResult struct {
	Success       bool                 `json:"success"`
	Message       string               `json:"message,omitempty"`
	Report        *models.ClinicalNote `json:"report,omitempty"`
	Risk          *models.RiskFlag     `json:"risk,omitempty"`
	RiskPersisted bool                 `json:"riskPersisted"`
}

// riskDraft is the JSON shape the model returns for a risk classification.
type riskDraft struct {
	Level    string `json:"level"`
	Category string `json:"category"`
}

func defaultRiskDraft() riskDraft {
	return riskDraft{Level: string(models.RiskMedium), Category: string(models.CategoryOther)}
}

func validateRiskDraft(d *riskDraft) error {
	level, ok := models.ParseRiskLevel(d.Level)
	if !ok {
		return fmt.Errorf("unknown risk level %q", d.Level)
	}
	category, ok := models.ParseRiskCategory(d.Category)
	if !ok {
		return fmt.Errorf("unknown risk category %q", d.Category)
	}
	d.Level, d.Category = string(level), string(category)
	return nil
}

// ReportService writes clinical reports and classifies their risk.
type ReportService struct {
	store    Store
	model    *llm.Model
	enqueuer Enqueuer
	metrics  *metrics.Collector
}

// NewReportService creates a new report service. enqueuer may be nil, in
// which case urgent flags are not forwarded.
func NewReportService(store Store, model *llm.Model, enqueuer Enqueuer, mc *metrics.Collector) *ReportService {
	return &ReportService{store: store, model: model, enqueuer: enqueuer, metrics: mc}
}

// Generate writes a narrative report from the client's recent test results
// and attaches a risk flag. A client without results gets a no-data result
// and nothing is persisted.
func (s *ReportService) Generate(ctx context.Context, clientID, clinicianID string) (result *ReportResult, err error) {
	start := time.Now()
	defer func() { observe(s.metrics, metrics.OpReport, start, err) }()

	if err := requireField("clientId", clientID); err != nil {
		return nil, err
	}
	if err := requireField("clinicianId", clinicianID); err != nil {
		return nil, err
	}

	tests, err := s.store.RecentClientTestResults(ctx, clientID, reportTestLimit)
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}
	if len(tests) == 0 {
		return &ReportResult{Success: false, Message: NoDataMessage}, nil
	}

	content, err := s.model.Complete(ctx, reportSystemPrompt, renderClientTests(tests))
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}
	content = strings.TrimSpace(content)

	level, category := s.classify(ctx, clientID, content)

	now := models.Now()
	note := &models.ClinicalNote{
		ID:          models.NewID(),
		ClientID:    clientID,
		ClinicianID: clinicianID,
		Content:     content,
		CreatedAt:   now,
	}
	if err := s.store.CreateClinicalNote(ctx, *note); err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}

	flag := &models.RiskFlag{
		ID:          models.NewID(),
		NoteID:      note.ID,
		ClientID:    clientID,
		ClinicianID: clinicianID,
		Level:       level,
		Category:    category,
		CreatedAt:   now,
	}
	result = &ReportResult{Success: true, Report: note, Risk: flag, RiskPersisted: true}

	if err := s.store.CreateRiskFlag(ctx, *flag); err != nil {
		// The note stands on its own; a flag never exists without one.
		slog.Error("failed to persist risk flag", "client_id", clientID, "note_id", note.ID, "error", err)
		result.RiskPersisted = false
	}

	if level.Urgent() {
		s.notify(note, flag)
	}

	slog.Info("clinical report generated", "client_id", clientID, "note_id", note.ID, "level", level, "category", category)
	return result, nil
}

// classify asks the model for a risk flag at temperature zero. Anything
// unusable, including a failed call, classifies as medium/other.
func (s *ReportService) classify(ctx context.Context, clientID, report string) (models.RiskLevel, models.RiskCategory) {
	raw, err := s.model.Complete(ctx, riskSystemPrompt, report, llm.WithTemperature(0))
	if err != nil {
		slog.Warn("risk classification failed", "client_id", clientID, "error", err)
		raw = ""
	}

	res := llm.Coerce(raw, defaultRiskDraft, validateRiskDraft)
	if res.Fallback {
		incr(s.metrics, metrics.CounterCoerceFallback)
		slog.Info("risk classification fell back", "client_id", clientID, "reason", res.Reason)
	}
	return models.RiskLevel(res.Value.Level), models.RiskCategory(res.Value.Category)
}

func (s *ReportService) notify(note *models.ClinicalNote, flag *models.RiskFlag) {
	if s.enqueuer == nil {
		return
	}
	s.enqueuer.Enqueue(Task{
		Stage:  StageNotify,
		UserID: flag.ClientID,
		Payload: map[string]any{
			"client_id":    flag.ClientID,
			"clinician_id": flag.ClinicianID,
			"note_id":      note.ID,
			"level":        string(flag.Level),
			"category":     string(flag.Category),
		},
	})
}

func renderClientTests(tests []models.ClientTestResult) string {
	lines := make([]string, 0, len(tests))
	for _, t := range tests {
		line := fmt.Sprintf("- %s: %g (%s)", Truncate(t.TestName, MaxFieldRunes), t.Score, t.CreatedAt.Format(time.DateOnly))
		if t.Interpretation != "" {
			line += " - " + Truncate(t.Interpretation, MaxFieldRunes)
		}
		lines = append(lines, line)
	}
	return section("نتایج آزمون‌های مراجع", strings.Join(lines, "\n"))
}
