package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/raphaelgruber/ravan/internal/models"
	"github.com/raphaelgruber/ravan/internal/service"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps validation errors to 400 and everything else to 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if service.IsValidation(err) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.logger.Error("handler failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return &service.ValidationError{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}
}

type chatRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	reply, err := s.deps.Chat.Reply(r.Context(), req.UserID, req.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type userRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := s.deps.Plans.Generate(r.Context(), req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan": plan})
}

type reportRequest struct {
	ClientID    string `json:"clientId"`
	ClinicianID string `json:"clinicianId"`
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.deps.Reports.Generate(r.Context(), req.ClientID, req.ClinicianID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGenerateDream(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	dream, err := s.deps.Dreams.Generate(r.Context(), req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dream": dream})
}

func (s *Server) handleAnalyzeDreams(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	patterns, err := s.deps.Dreams.AnalyzePatterns(r.Context(), req.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if patterns == nil {
		patterns = []models.DreamPattern{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"patterns": patterns})
}

type emotionRequest struct {
	UserID    string  `json:"userId"`
	Emotion   string  `json:"emotion"`
	Intensity float64 `json:"intensity"`
	Note      *string `json:"note"`
}

func (s *Server) handleEmotionLog(w http.ResponseWriter, r *http.Request) {
	var req emotionRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.deps.Ingest.RecordEmotion(r.Context(), models.EmotionLog{
		UserID:    req.UserID,
		Emotion:   req.Emotion,
		Intensity: req.Intensity,
		Note:      req.Note,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

type moodRequest struct {
	UserID   string  `json:"userId"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Note     *string `json:"note"`
}

func (s *Server) handleMoodTrend(w http.ResponseWriter, r *http.Request) {
	var req moodRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.deps.Ingest.RecordMood(r.Context(), models.MoodTrend{
		UserID:   req.UserID,
		Category: req.Category,
		Score:    req.Score,
		Note:     req.Note,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

type testResultRequest struct {
	UserID   string  `json:"userId"`
	TestName string  `json:"testName"`
	Score    float64 `json:"score"`
	Result   string  `json:"result"`
}

func (s *Server) handleTestResult(w http.ResponseWriter, r *http.Request) {
	var req testResultRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.deps.Ingest.RecordTestResult(r.Context(), models.TestResult{
		UserID:   req.UserID,
		TestName: req.TestName,
		Score:    req.Score,
		Result:   req.Result,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

type clientTestResultRequest struct {
	ClientID       string  `json:"clientId"`
	ClinicianID    string  `json:"clinicianId"`
	TestName       string  `json:"testName"`
	Score          float64 `json:"score"`
	Interpretation string  `json:"interpretation"`
}

func (s *Server) handleClientTestResult(w http.ResponseWriter, r *http.Request) {
	var req clientTestResultRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.deps.Ingest.RecordClientTestResult(r.Context(), models.ClientTestResult{
		ClientID:       req.ClientID,
		ClinicianID:    req.ClinicianID,
		TestName:       req.TestName,
		Score:          req.Score,
		Interpretation: req.Interpretation,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	mem, err := s.deps.Memory.Get(r.Context(), r.PathValue("userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if mem == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no therapy memory for user"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memory": mem})
}

func (s *Server) handleCurrentPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.deps.Plans.Current(r.Context(), r.PathValue("userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if plan == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no session plan for user"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plan": plan})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statsResponse struct {
	metrics.Snapshot
	QueuePending int `json:"queuePending"`
	DeadLetters  int `json:"deadLetters"`
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	var resp statsResponse
	if s.deps.Metrics != nil {
		resp.Snapshot = s.deps.Metrics.Snapshot()
	}
	if d := s.deps.Dispatcher; d != nil {
		resp.QueuePending = d.Pending()
		resp.DeadLetters = len(d.DeadLetters())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeadLetters(w http.ResponseWriter, _ *http.Request) {
	letters := []service.DeadLetter{}
	if s.deps.Dispatcher != nil {
		letters = append(letters, s.deps.Dispatcher.DeadLetters()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"deadLetters": letters})
}
