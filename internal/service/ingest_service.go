package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mathpractice/internal/models"
	"mathpractice/internal/repository"
	"mathpractice/internal/security"
	"mathpractice/internal/validation"
)

// IngestService validates telemetry from practice clients and hands it to the
// event store.
type IngestService struct {
	events *repository.EventRepository
	apiKey string
	logger *slog.Logger
	now    func() time.Time
}

// NewIngestService creates a new ingest service
func NewIngestService(events *repository.EventRepository, apiKey string, logger *slog.Logger) *IngestService {
	return &IngestService{
		events: events,
		apiKey: apiKey,
		logger: logger.With("component", "ingest"),
		now:    time.Now,
	}
}

// CheckAPIKey reports ErrUnauthorized unless provided matches the configured
// key. An unconfigured key rejects everything.
func (s *IngestService) CheckAPIKey(provided string) error {
	if s.apiKey == "" || provided == "" || !security.SecretEqual(provided, s.apiKey) {
		return ErrUnauthorized
	}
	return nil
}

// RecordAttempt stores an answered question.
func (s *IngestService) RecordAttempt(ctx context.Context, a *models.Attempt) (models.WriteResult, error) {
	a.ClientAttemptID = normalizeKey(a.ClientAttemptID)

	if err := validation.First(
		validation.ValidateID("session_id", a.SessionID),
		validation.ValidateID("student_id", a.StudentID),
		validation.ValidateOptionalText("question", a.Question, validation.MaxTextLen),
		validation.ValidateOptionalText("answer", a.Answer, validation.MaxTextLen),
		validation.ValidateOptionalCount("latency_ms", a.LatencyMs),
		validation.ValidateOptionalOperand("score", a.Score),
		validation.ValidateOptionalText("client_attempt_id", a.ClientAttemptID, validation.MaxIdentifierLen),
		validation.ValidateOptionalText("origin", a.Origin, validation.MaxLabelLen),
	); err != nil {
		return models.WriteResult{}, err
	}

	result, err := s.events.RecordAttempt(ctx, a)
	if err != nil {
		return models.WriteResult{}, fmt.Errorf("failed to record attempt: %w", err)
	}
	if result.Duplicate {
		s.logger.DebugContext(ctx, "duplicate attempt", "attempt_id", result.ID)
	}
	return result, nil
}

// Attempt returns one stored attempt or ErrNotFound.
func (s *IngestService) Attempt(ctx context.Context, id int64) (*models.Attempt, error) {
	if err := validation.ValidateID("id", id); err != nil {
		return nil, err
	}

	attempt, err := s.events.GetAttempt(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt == nil {
		return nil, ErrNotFound
	}
	return attempt, nil
}

// StartSession creates the session or fills in fields a retry supplies.
func (s *IngestService) StartSession(ctx context.Context, start models.SessionStart) error {
	if err := validation.First(
		validation.ValidateIdentifier("device_id", start.DeviceID),
		validation.ValidateIdentifier("client_session_id", start.ClientSessionID),
		validation.ValidateOptionalText("mode", start.Mode, validation.MaxLabelLen),
		validation.ValidateOptionalText("difficulty", start.Difficulty, validation.MaxLabelLen),
		validation.ValidateOptionalCount("count_target", start.CountTarget),
		validation.ValidateOptionalTimestampMs("started_at_ms", start.StartedAtMs, s.now()),
	); err != nil {
		return err
	}

	if err := s.events.StartOrTouchSession(ctx, start); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	return nil
}

// EndSession records the final numbers for a session. Ending a session that
// was never started succeeds without writing anything.
func (s *IngestService) EndSession(ctx context.Context, end models.SessionEnd) error {
	if err := validation.First(
		validation.ValidateIdentifier("device_id", end.DeviceID),
		validation.ValidateIdentifier("client_session_id", end.ClientSessionID),
		validation.ValidateOptionalTimestampMs("ended_at_ms", end.EndedAtMs, s.now()),
		validation.ValidateOptionalCount("attempted", end.Attempted),
		validation.ValidateOptionalCount("correct", end.Correct),
		validation.ValidateOptionalCount("avg_ms", end.AvgMs),
		validation.ValidateOptionalCount("duration_s", end.DurationS),
	); err != nil {
		return err
	}

	matched, err := s.events.EndSession(ctx, end)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if !matched {
		s.logger.InfoContext(ctx, "session end before start",
			"device_id", end.DeviceID, "client_session_id", end.ClientSessionID)
	}
	return nil
}

// RecordQuestionEvent stores one question from a practice session.
func (s *IngestService) RecordQuestionEvent(ctx context.Context, e *models.QuestionEvent) (models.WriteResult, error) {
	e.ClientEventID = normalizeKey(e.ClientEventID)

	if err := validation.First(
		validation.ValidateIdentifier("device_id", e.DeviceID),
		validation.ValidateIdentifier("client_session_id", e.ClientSessionID),
		validation.ValidateOptionalOperand("a", e.A),
		validation.ValidateOptionalOperand("b", e.B),
		validation.ValidateOptionalText("op", e.Op, validation.MaxLabelLen),
		validation.ValidateOptionalOperand("user_answer", e.UserAnswer),
		validation.ValidateOptionalOperand("correct_answer", e.CorrectAnswer),
		validation.ValidateOptionalCount("elapsed_ms", e.ElapsedMs),
		validation.ValidateOptionalTimestampMs("ts_ms", e.TimestampMs, s.now()),
		validation.ValidateOptionalText("client_event_id", e.ClientEventID, validation.MaxIdentifierLen),
	); err != nil {
		return models.WriteResult{}, err
	}

	result, err := s.events.RecordQuestionEvent(ctx, e)
	if err != nil {
		return models.WriteResult{}, fmt.Errorf("failed to record question event: %w", err)
	}
	return result, nil
}

// RecentSessions lists sessions newest first. deviceID may be empty to list
// every device.
func (s *IngestService) RecentSessions(ctx context.Context, deviceID string, limit int) ([]models.SessionSummary, error) {
	if deviceID != "" {
		if err := validation.ValidateIdentifier("device_id", deviceID); err != nil {
			return nil, err
		}
	}

	sessions, err := s.events.ListRecentSessions(ctx, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Session returns one session summary or ErrNotFound.
func (s *IngestService) Session(ctx context.Context, deviceID, clientSessionID string) (*models.SessionSummary, error) {
	if err := validation.First(
		validation.ValidateIdentifier("device_id", deviceID),
		validation.ValidateIdentifier("client_session_id", clientSessionID),
	); err != nil {
		return nil, err
	}

	session, err := s.events.GetSession(ctx, deviceID, clientSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrNotFound
	}
	return session, nil
}

// SessionEvents lists a session's question events in client time order.
func (s *IngestService) SessionEvents(ctx context.Context, deviceID, clientSessionID string, limit int) ([]models.QuestionEvent, error) {
	if err := validation.First(
		validation.ValidateIdentifier("device_id", deviceID),
		validation.ValidateIdentifier("client_session_id", clientSessionID),
	); err != nil {
		return nil, err
	}

	events, err := s.events.ListSessionEvents(ctx, deviceID, clientSessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list session events: %w", err)
	}
	return events, nil
}

// normalizeKey treats a blank dedup key as absent.
func normalizeKey(key *string) *string {
	if key == nil || strings.TrimSpace(*key) == "" {
		return nil
	}
	return key
}
