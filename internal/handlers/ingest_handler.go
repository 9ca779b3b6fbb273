package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"mathpractice/internal/models"
	"mathpractice/internal/service"
)

// IngestHandler accepts telemetry from practice clients.
type IngestHandler struct {
	ingestService *service.IngestService
	logger        *slog.Logger
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(ingestService *service.IngestService, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		logger:        logger,
	}
}

type attemptRequest struct {
	SessionID       int64   `json:"session_id"`
	StudentID       int64   `json:"student_id"`
	Question        *string `json:"question"`
	Answer          *string `json:"answer"`
	IsCorrect       *bool   `json:"is_correct"`
	LatencyMs       *int    `json:"latency_ms"`
	Score           *int    `json:"score"`
	ClientAttemptID *string `json:"client_attempt_id"`
	Origin          *string `json:"origin"`
}

type attemptResponse struct {
	Status    string `json:"status"`
	AttemptID int64  `json:"attempt_id"`
}

type sessionStartRequest struct {
	DeviceID        string  `json:"device_id"`
	ClientSessionID string  `json:"client_session_id"`
	Mode            *string `json:"mode"`
	Difficulty      *string `json:"difficulty"`
	CountTarget     *int    `json:"count_target"`
	StartedAtMs     *int64  `json:"started_at_ms"`
}

type sessionEndRequest struct {
	DeviceID        string `json:"device_id"`
	ClientSessionID string `json:"client_session_id"`
	EndedAtMs       *int64 `json:"ended_at_ms"`
	Attempted       *int   `json:"attempted"`
	Correct         *int   `json:"correct"`
	AvgMs           *int   `json:"avg_ms"`
	DurationS       *int   `json:"duration_s"`
}

type questionRequest struct {
	DeviceID        string  `json:"device_id"`
	ClientSessionID string  `json:"client_session_id"`
	A               *int    `json:"a"`
	B               *int    `json:"b"`
	Op              *string `json:"op"`
	UserAnswer      *int    `json:"user_answer"`
	CorrectAnswer   *int    `json:"correct_answer"`
	IsCorrect       *bool   `json:"is_correct"`
	ElapsedMs       *int    `json:"elapsed_ms"`
	TsMs            *int64  `json:"ts_ms"`
	ClientEventID   *string `json:"client_event_id"`
}

type questionResponse struct {
	Status string `json:"status"`
	ID     *int64 `json:"id,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// RecordAttempt handles POST /api/v1/attempts
func (h *IngestHandler) RecordAttempt(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.ingestService.RecordAttempt(r.Context(), &models.Attempt{
		SessionID:       req.SessionID,
		StudentID:       req.StudentID,
		Question:        req.Question,
		Answer:          req.Answer,
		IsCorrect:       req.IsCorrect,
		LatencyMs:       req.LatencyMs,
		Score:           req.Score,
		ClientAttemptID: req.ClientAttemptID,
		Origin:          req.Origin,
	})
	if err != nil {
		respondServiceError(w, requestLogger(h.logger, r), "failed to record attempt", err)
		return
	}

	respondJSON(w, http.StatusOK, attemptResponse{Status: result.Status(), AttemptID: result.ID})
}

// StartSession handles POST /api/v1/mr/session/start
func (h *IngestHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req sessionStartRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.ingestService.StartSession(r.Context(), models.SessionStart{
		DeviceID:        req.DeviceID,
		ClientSessionID: req.ClientSessionID,
		Mode:            req.Mode,
		Difficulty:      req.Difficulty,
		CountTarget:     req.CountTarget,
		StartedAtMs:     req.StartedAtMs,
	})
	if err != nil {
		respondServiceError(w, requestLogger(h.logger, r), "failed to start session", err)
		return
	}

	respondJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// EndSession handles POST /api/v1/mr/session/end
func (h *IngestHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	var req sessionEndRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.ingestService.EndSession(r.Context(), models.SessionEnd{
		DeviceID:        req.DeviceID,
		ClientSessionID: req.ClientSessionID,
		EndedAtMs:       req.EndedAtMs,
		Attempted:       req.Attempted,
		Correct:         req.Correct,
		AvgMs:           req.AvgMs,
		DurationS:       req.DurationS,
	})
	if err != nil {
		respondServiceError(w, requestLogger(h.logger, r), "failed to end session", err)
		return
	}

	respondJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

// RecordQuestion handles POST /api/v1/mr/question
func (h *IngestHandler) RecordQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.ingestService.RecordQuestionEvent(r.Context(), &models.QuestionEvent{
		DeviceID:        req.DeviceID,
		ClientSessionID: req.ClientSessionID,
		A:               req.A,
		B:               req.B,
		Op:              req.Op,
		UserAnswer:      req.UserAnswer,
		CorrectAnswer:   req.CorrectAnswer,
		IsCorrect:       req.IsCorrect,
		ElapsedMs:       req.ElapsedMs,
		TimestampMs:     req.TsMs,
		ClientEventID:   req.ClientEventID,
	})
	if err != nil {
		respondServiceError(w, requestLogger(h.logger, r), "failed to record question event", err)
		return
	}

	resp := questionResponse{Status: result.Status()}
	if !result.Duplicate {
		resp.ID = &result.ID
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *IngestHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, ErrInvalidJSON, "", nil)
		return false
	}
	return true
}

func requestLogger(logger *slog.Logger, r *http.Request) *slog.Logger {
	if id := GetRequestID(r.Context()); id != "" {
		return logger.With("request_id", id)
	}
	return logger
}
