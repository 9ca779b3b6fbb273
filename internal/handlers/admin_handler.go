package handlers

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"mathpractice/internal/logging"
	"mathpractice/internal/models"
	"mathpractice/internal/security"
	"mathpractice/internal/service"
	"mathpractice/internal/validation"
)

const defaultListLimit = 50

var adminTemplates = template.Must(template.New("admin").Parse(`
{{define "login"}}<!doctype html>
<html><head><title>Admin login</title></head>
<body>
<h1>Admin login</h1>
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
<form method="post" action="/admin/login">
<label>Username <input name="username" autocomplete="username" required></label>
<label>Password <input name="password" type="password" autocomplete="current-password" required></label>
<button type="submit">Sign in</button>
</form>
</body></html>
{{end}}
{{define "dashboard"}}<!doctype html>
<html><head><title>Practice sessions</title></head>
<body>
<h1>Recent practice sessions</h1>
<form method="post" action="/admin/logout"><button type="submit">Log out</button></form>
<table>
<tr><th>Device</th><th>Session</th><th>Mode</th><th>Difficulty</th><th>Attempted</th><th>Correct</th><th>Events</th></tr>
{{range .Sessions}}<tr>
<td>{{.DeviceID}}</td><td>{{.ClientSessionID}}</td>
<td>{{with .Mode}}{{.}}{{end}}</td><td>{{with .Difficulty}}{{.}}{{end}}</td>
<td>{{with .Attempted}}{{.}}{{end}}</td><td>{{with .Correct}}{{.}}{{end}}</td>
<td>{{.EventCount}}</td>
</tr>{{end}}
</table>
</body></html>
{{end}}
`))

// AdminHandler serves the admin login flow and the operator read API.
type AdminHandler struct {
	ingestService *service.IngestService
	adminAuth     *service.AdminAuthService
	logger        *slog.Logger
	trustProxy    bool
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(ingestService *service.IngestService, adminAuth *service.AdminAuthService, logger *slog.Logger, trustProxy bool) *AdminHandler {
	return &AdminHandler{
		ingestService: ingestService,
		adminAuth:     adminAuth,
		logger:        logger,
		trustProxy:    trustProxy,
	}
}

type sessionSummaryResponse struct {
	ID              int64   `json:"id"`
	DeviceID        string  `json:"device_id"`
	ClientSessionID string  `json:"client_session_id"`
	Mode            *string `json:"mode"`
	Difficulty      *string `json:"difficulty"`
	CountTarget     *int    `json:"count_target"`
	StartedAtMs     *int64  `json:"started_at_ms"`
	EndedAtMs       *int64  `json:"ended_at_ms"`
	Attempted       *int    `json:"attempted"`
	Correct         *int    `json:"correct"`
	AvgMs           *int    `json:"avg_ms"`
	DurationS       *int    `json:"duration_s"`
	EventCount      int     `json:"event_count"`
}

type questionEventResponse struct {
	ID              int64   `json:"id"`
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

type attemptDetailResponse struct {
	ID              int64   `json:"id"`
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

func newSessionSummaryResponse(s models.SessionSummary) sessionSummaryResponse {
	return sessionSummaryResponse{
		ID:              s.ID,
		DeviceID:        s.DeviceID,
		ClientSessionID: s.ClientSessionID,
		Mode:            s.Mode,
		Difficulty:      s.Difficulty,
		CountTarget:     s.CountTarget,
		StartedAtMs:     s.StartedAtMs,
		EndedAtMs:       s.EndedAtMs,
		Attempted:       s.Attempted,
		Correct:         s.Correct,
		AvgMs:           s.AvgMs,
		DurationS:       s.DurationS,
		EventCount:      s.EventCount,
	}
}

func newQuestionEventResponse(e models.QuestionEvent) questionEventResponse {
	return questionEventResponse{
		ID:              e.ID,
		DeviceID:        e.DeviceID,
		ClientSessionID: e.ClientSessionID,
		A:               e.A,
		B:               e.B,
		Op:              e.Op,
		UserAnswer:      e.UserAnswer,
		CorrectAnswer:   e.CorrectAnswer,
		IsCorrect:       e.IsCorrect,
		ElapsedMs:       e.ElapsedMs,
		TsMs:            e.TimestampMs,
		ClientEventID:   e.ClientEventID,
	}
}

// ShowLogin renders the login form
func (h *AdminHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(AdminCookieName); err == nil {
		if h.adminAuth.Authenticate(cookie.Value) == nil {
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
	}
	h.renderLogin(w, http.StatusOK, "")
}

// Login handles login form submission
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.renderLogin(w, http.StatusBadRequest, ErrInvalidFormData)
		return
	}

	client := security.ClientIP(r, h.trustProxy)
	token, err := h.adminAuth.Login(client, r.PostFormValue("username"), r.PostFormValue("password"))
	switch {
	case err == nil:
	case errors.Is(err, service.ErrRateLimited):
		h.renderLogin(w, http.StatusTooManyRequests, "Too many failed attempts. Try again later.")
		return
	case errors.Is(err, service.ErrUnauthorized):
		h.renderLogin(w, http.StatusUnauthorized, "Invalid username or password")
		return
	default:
		requestLogger(h.logger, r).Error("admin login failed", logging.Err(err))
		h.renderLogin(w, http.StatusInternalServerError, ErrInternalServerError)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(AdminCookieName, token, h.adminAuth.SessionMaxAge()))
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// Logout clears the admin session cookie
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, security.CreateDeleteCookie(AdminCookieName))
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

// Dashboard shows the most recent sessions across all devices
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.ingestService.RecentSessions(r.Context(), "", defaultListLimit)
	if err != nil {
		requestLogger(h.logger, r).Error("failed to load dashboard", logging.Err(err))
		http.Error(w, ErrInternalServerError, http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"Sessions": sessions,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := adminTemplates.ExecuteTemplate(w, "dashboard", data); err != nil {
		h.logger.Error("error rendering dashboard template", logging.Err(err))
	}
}

// RecentSessions handles GET /api/v1/mr/sessions/recent
func (h *AdminHandler) RecentSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		respondServiceError(w, h.logger, "", err)
		return
	}

	sessions, err := h.ingestService.RecentSessions(r.Context(), r.URL.Query().Get("device_id"), limit)
	if err != nil {
		respondServiceError(w, requestLogger(h.logger, r), "failed to list sessions", err)
		return
	}

	resp := make([]sessionSummaryResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, newSessionSummaryResponse(s))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Attempt handles GET /api/v1/attempts/{id}
func (h *AdminHandler) Attempt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondServiceError(w, h.logger, "", validation.ValidationError{Field: "id", Message: "must be an integer"})
		return
	}

	a, err := h.ingestService.Attempt(r.Context(), id)
	if err != nil {
		respondServiceError(w, requestLogger(h.logger, r), "failed to get attempt", err)
		return
	}

	respondJSON(w, http.StatusOK, attemptDetailResponse{
		ID:              a.ID,
		SessionID:       a.SessionID,
		StudentID:       a.StudentID,
		Question:        a.Question,
		Answer:          a.Answer,
		IsCorrect:       a.IsCorrect,
		LatencyMs:       a.LatencyMs,
		Score:           a.Score,
		ClientAttemptID: a.ClientAttemptID,
		Origin:          a.Origin,
	})
}

// Session handles GET /api/v1/mr/session
func (h *AdminHandler) Session(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	session, err := h.ingestService.Session(r.Context(), q.Get("device_id"), q.Get("client_session_id"))
	if err != nil {
		respondServiceError(w, requestLogger(h.logger, r), "failed to get session", err)
		return
	}

	respondJSON(w, http.StatusOK, newSessionSummaryResponse(*session))
}

// SessionEvents handles GET /api/v1/mr/session/events
func (h *AdminHandler) SessionEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		respondServiceError(w, h.logger, "", err)
		return
	}

	q := r.URL.Query()
	events, err := h.ingestService.SessionEvents(r.Context(), q.Get("device_id"), q.Get("client_session_id"), limit)
	if err != nil {
		respondServiceError(w, requestLogger(h.logger, r), "failed to list session events", err)
		return
	}

	resp := make([]questionEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, newQuestionEventResponse(e))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) renderLogin(w http.ResponseWriter, status int, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := adminTemplates.ExecuteTemplate(w, "login", map[string]interface{}{"Error": errMsg}); err != nil {
		h.logger.Error("error rendering login template", logging.Err(err))
	}
}

// parseLimit reads ?limit=, defaulting to defaultListLimit. The repository
// clamps the value into range.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validation.ValidationError{Field: "limit", Message: "must be an integer"}
	}
	return limit, nil
}
